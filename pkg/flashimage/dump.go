package flashimage

import (
	"bytes"
	"fmt"

	"github.com/gp2040ce/bintools/pkg/layout"
)

// FromDump splits a flat dump whose first byte sits at flash offset origin
// into firmware, board config and user config parts along the layout's
// boundaries. Regions the dump does not reach are left out.
func FromDump(dump []byte, origin uint32, l layout.Layout) Image {
	bounds := []uint32{0, l.BoardConfigOffset, l.UserConfigOffset, l.FlashEnd}
	end := uint64(origin) + uint64(len(dump))

	var parts []Part
	for i := 0; i+1 < len(bounds); i++ {
		lo, hi := uint64(bounds[i]), uint64(bounds[i+1])
		if i+2 == len(bounds) && end > hi {
			hi = end
		}
		if lo < uint64(origin) {
			lo = uint64(origin)
		}
		if hi > end {
			hi = end
		}
		if lo >= hi {
			continue
		}
		parts = append(parts, Part{Address: uint32(lo), Data: dump[lo-uint64(origin) : hi-uint64(origin)]})
	}
	return Image{Parts: parts}
}

// InjectSection writes a configuration section into a flat dump whose first
// byte sits at flash offset origin and returns the new dump. section may be
// unpadded; it is right-aligned in the slot. A dump too short to hold the
// slot is zero-extended first; a slot before origin cannot be written.
func InjectSection(dump, section []byte, origin uint32, slot layout.Slot, l layout.Layout) ([]byte, error) {
	padded, err := padSection(section, int(l.SectionSize))
	if err != nil {
		return nil, fmt.Errorf("inject %s: %w", slot, err)
	}
	if l.Offset(slot) < origin {
		return nil, fmt.Errorf("inject %s: section at 0x%08x lies before the dump start 0x%08x", slot, l.Offset(slot), origin)
	}

	off := int(l.Offset(slot) - origin)
	end := off + len(padded)
	out := bytes.Clone(dump)
	if len(out) < end {
		out = append(out, make([]byte, end-len(out))...)
	}
	copy(out[off:end], padded)
	return out, nil
}

// Split cuts parts that straddle the layout's firmware and section
// boundaries, so that each section ends up in a part of its own. Addresses
// must be flash offsets.
func (img Image) Split(l layout.Layout) Image {
	var parts []Part
	for _, p := range img.Parts {
		parts = append(parts, FromDump(p.Data, p.Address, l).Parts...)
	}
	return Image{Parts: parts}
}
