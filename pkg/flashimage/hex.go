package flashimage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/marcinbor85/gohex"
)

const hexLineLength = 16

// WriteIntelHex writes the image as Intel HEX records.
func WriteIntelHex(w io.Writer, img Image) error {
	mem := gohex.NewMemory()
	for _, p := range img.Parts {
		if err := mem.AddBinary(p.Address, p.Data); err != nil {
			return fmt.Errorf("add part at 0x%08x: %w", p.Address, err)
		}
	}
	if err := mem.DumpIntelHex(w, hexLineLength); err != nil {
		return fmt.Errorf("write intel hex: %w", err)
	}
	return nil
}

// ReadIntelHex parses Intel HEX records into an image. Adjacent records are
// merged into one part.
func ReadIntelHex(r io.Reader) (Image, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return Image{}, fmt.Errorf("parse intel hex: %w", err)
	}

	var parts []Part
	for _, seg := range mem.GetDataSegments() {
		parts = append(parts, Part{Address: seg.Address, Data: bytes.Clone(seg.Data)})
	}
	return NewImage(parts...)
}
