// Package device moves configuration sections to and from flash. A Device is
// a byte-range primitive addressed by mapped flash address; the helpers here
// know where a layout keeps each section and how writes must be aligned.
package device

import (
	"context"

	"github.com/gp2040ce/bintools/pkg/layout"
	storeerr "github.com/gp2040ce/bintools/pkg/storage/errors"
)

// Device reads and writes flash by mapped address.
type Device interface {
	Read(ctx context.Context, addr uint32, n int) ([]byte, error)
	Write(ctx context.Context, addr uint32, data []byte) error
}

// ReadSection reads a whole configuration section.
func ReadSection(ctx context.Context, dev Device, l layout.Layout, slot layout.Slot) ([]byte, error) {
	return dev.Read(ctx, l.Address(slot), int(l.SectionSize))
}

// ReadFlash reads everything from the start of flash to the layout's end,
// the input a whole-board dump is made of.
func ReadFlash(ctx context.Context, dev Device, l layout.Layout) ([]byte, error) {
	return dev.Read(ctx, l.Base, int(l.FlashEnd))
}

// WritePart writes data at a flash offset. The erase sectors it touches are
// written whole, with the bytes around data filled with 0xFF; flash outside
// those sectors is left alone.
func WritePart(ctx context.Context, dev Device, l layout.Layout, offset uint32, data []byte) error {
	end := uint64(offset) + uint64(len(data))
	if end > uint64(l.FlashEnd) {
		return &storeerr.LengthError{What: "flash part", Size: int(end), Limit: int(l.FlashEnd)}
	}
	if len(data) == 0 {
		return nil
	}

	start := int(offset) / layout.EraseSectorSize * layout.EraseSectorSize
	buf := make([]byte, alignUp(int(end)-start, layout.EraseSectorSize))
	for i := range buf {
		buf[i] = 0xFF
	}
	copy(buf[int(offset)-start:], data)
	return dev.Write(ctx, l.Base+uint32(start), buf)
}

// WriteSection stores a serialized payload plus footer at the end of a
// section. Only the erase sectors the data touches are written; the unused
// front of the first sector is filled with 0xFF.
func WriteSection(ctx context.Context, dev Device, l layout.Layout, slot layout.Slot, data []byte) error {
	if len(data) > int(l.SectionSize) {
		return &storeerr.LengthError{What: slot.String() + " section", Size: len(data), Limit: int(l.SectionSize)}
	}

	n := alignUp(len(data), layout.EraseSectorSize)
	if n > int(l.SectionSize) {
		n = int(l.SectionSize)
	}
	buf := make([]byte, n)
	pad := n - len(data)
	for i := 0; i < pad; i++ {
		buf[i] = 0xFF
	}
	copy(buf[pad:], data)

	addr := l.Address(slot) + l.SectionSize - uint32(n)
	return dev.Write(ctx, addr, buf)
}

func alignUp(n, to int) int {
	if n == 0 {
		return to
	}
	return (n + to - 1) / to * to
}
