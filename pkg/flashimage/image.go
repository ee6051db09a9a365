// Package flashimage assembles firmware and configuration sections into a
// sparse flash image: a sorted list of disjoint address-tagged parts. The
// gap between the end of the firmware and the configuration sections is
// never stored.
package flashimage

import (
	"bytes"
	"fmt"
	"sort"
)

// Part is a contiguous run of bytes starting at Address.
type Part struct {
	Address uint32
	Data    []byte
}

// End returns the address one past the last byte of the part.
func (p Part) End() uint64 {
	return uint64(p.Address) + uint64(len(p.Data))
}

// Image is a set of disjoint parts sorted by address.
type Image struct {
	Parts []Part
}

// NewImage sorts parts by address and checks that they do not overlap.
func NewImage(parts ...Part) (Image, error) {
	sorted := make([]Part, len(parts))
	copy(sorted, parts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Address < sorted[j].Address })

	img := Image{Parts: sorted}
	if err := img.Validate(); err != nil {
		return Image{}, err
	}
	return img, nil
}

// Validate checks ordering and overlap.
func (img Image) Validate() error {
	for i := 1; i < len(img.Parts); i++ {
		prev, cur := img.Parts[i-1], img.Parts[i]
		if cur.Address < prev.Address {
			return fmt.Errorf("part at 0x%08x is out of order after 0x%08x", cur.Address, prev.Address)
		}
		if uint64(cur.Address) < prev.End() {
			return fmt.Errorf("part at 0x%08x overlaps part 0x%08x-0x%08x", cur.Address, prev.Address, prev.End())
		}
	}
	for _, p := range img.Parts {
		if p.End() > 1<<32 {
			return fmt.Errorf("part at 0x%08x runs past the 32-bit address space", p.Address)
		}
	}
	return nil
}

// Size returns the number of stored bytes.
func (img Image) Size() int {
	n := 0
	for _, p := range img.Parts {
		n += len(p.Data)
	}
	return n
}

// Start returns the lowest address, or 0 for an empty image.
func (img Image) Start() uint32 {
	if len(img.Parts) == 0 {
		return 0
	}
	return img.Parts[0].Address
}

// End returns the address one past the highest byte.
func (img Image) End() uint64 {
	if len(img.Parts) == 0 {
		return 0
	}
	return img.Parts[len(img.Parts)-1].End()
}

// Rebase moves flash offsets to mapped addresses by adding base.
func (img Image) Rebase(base uint32) (Image, error) {
	return img.Relocate(0, base)
}

// Relocate moves every part so that address from ends up at to.
func (img Image) Relocate(from, to uint32) (Image, error) {
	out := Image{Parts: make([]Part, len(img.Parts))}
	for i, p := range img.Parts {
		if p.Address < from {
			return Image{}, fmt.Errorf("part at 0x%08x lies below 0x%08x", p.Address, from)
		}
		addr := uint64(p.Address-from) + uint64(to)
		if addr+uint64(len(p.Data)) > 1<<32 {
			return Image{}, fmt.Errorf("part at 0x%08x does not fit at 0x%08x", p.Address, addr)
		}
		out.Parts[i] = Part{Address: uint32(addr), Data: p.Data}
	}
	return out, nil
}

// Flatten materializes the image from origin to its end, filling gaps.
func (img Image) Flatten(origin uint32, fill byte) ([]byte, error) {
	if len(img.Parts) == 0 {
		return nil, nil
	}
	if img.Start() < origin {
		return nil, fmt.Errorf("part at 0x%08x lies below origin 0x%08x", img.Start(), origin)
	}
	out := bytes.Repeat([]byte{fill}, int(img.End()-uint64(origin)))
	for _, p := range img.Parts {
		copy(out[p.Address-origin:], p.Data)
	}
	return out, nil
}

// Equal reports whether two images hold the same parts.
func (img Image) Equal(other Image) bool {
	if len(img.Parts) != len(other.Parts) {
		return false
	}
	for i := range img.Parts {
		if img.Parts[i].Address != other.Parts[i].Address || !bytes.Equal(img.Parts[i].Data, other.Parts[i].Data) {
			return false
		}
	}
	return true
}

// Overlay returns a copy of the image with p written over it. Bytes of
// existing parts that p covers are dropped; the rest are kept.
func (img Image) Overlay(p Part) (Image, error) {
	parts := []Part{p}
	for _, old := range img.Parts {
		if old.End() <= uint64(p.Address) || uint64(old.Address) >= p.End() {
			parts = append(parts, old)
			continue
		}
		if old.Address < p.Address {
			parts = append(parts, Part{Address: old.Address, Data: old.Data[:p.Address-old.Address]})
		}
		if old.End() > p.End() {
			cut := p.End() - uint64(old.Address)
			parts = append(parts, Part{Address: uint32(p.End()), Data: old.Data[cut:]})
		}
	}
	return NewImage(parts...)
}
