package uf2

import (
	"fmt"

	"github.com/gp2040ce/bintools/pkg/flashimage"
	"github.com/gp2040ce/bintools/pkg/logging"
	storeerr "github.com/gp2040ce/bintools/pkg/storage/errors"
)

var uf2Logger = logging.Component("gp2040ce.uf2")

// Encode splits every part into 256 byte chunks. Block numbers and counts
// are per part; addresses are taken as they are, so rebase flash offsets
// before encoding. Empty parts produce no blocks.
func Encode(img flashimage.Image, familyID uint32) ([]Block, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	var blocks []Block
	for _, p := range img.Parts {
		n := (len(p.Data) + PayloadSize - 1) / PayloadSize
		for i := 0; i < n; i++ {
			chunk := p.Data[i*PayloadSize : min((i+1)*PayloadSize, len(p.Data))]
			b := Block{
				Flags:       FlagFamilyIDPresent,
				TargetAddr:  p.Address + uint32(i*PayloadSize),
				PayloadSize: uint32(len(chunk)),
				BlockNo:     uint32(i),
				NumBlocks:   uint32(n),
				FamilyID:    familyID,
			}
			copy(b.Data[:], chunk)
			blocks = append(blocks, b)
		}
		uf2Logger.Debug("📦 Encoded part", "address", fmt.Sprintf("0x%08x", p.Address), "size", len(p.Data), "blocks", n)
	}
	return blocks, nil
}

// EncodeImage encodes an image straight to stream bytes.
func EncodeImage(img flashimage.Image, familyID uint32) ([]byte, error) {
	blocks, err := Encode(img, familyID)
	if err != nil {
		return nil, err
	}
	return Marshal(blocks), nil
}

// Decode rebuilds the parts of a stream. Blocks come in runs numbered 0 to
// NumBlocks-1 with the same count and family; a run may jump to a new
// address, which starts a new part, as when firmware and configuration are
// written as one run. A reordered or unfinished run rejects the whole stream.
func Decode(stream []byte) (flashimage.Image, error) {
	blocks, err := Unmarshal(stream)
	if err != nil {
		return flashimage.Image{}, err
	}
	return DecodeBlocks(blocks)
}

// DecodeBlocks is Decode for already parsed blocks.
func DecodeBlocks(blocks []Block) (flashimage.Image, error) {
	var (
		parts   []flashimage.Part
		current *flashimage.Part
		inRun   bool
		first   Block
		expect  uint32
		next    uint64
	)

	fail := func(i int, format string, args ...any) error {
		return &storeerr.FormatError{Op: "uf2 decode", Offset: i * BlockSize, Reason: fmt.Sprintf(format, args...)}
	}

	for i := range blocks {
		b := &blocks[i]
		if b.PayloadSize > PayloadSize {
			return flashimage.Image{}, fail(i, "payload size %d exceeds %d", b.PayloadSize, PayloadSize)
		}
		if b.NumBlocks == 0 || b.BlockNo >= b.NumBlocks {
			return flashimage.Image{}, fail(i, "block %d of %d", b.BlockNo, b.NumBlocks)
		}

		if !inRun {
			if b.BlockNo != 0 {
				return flashimage.Image{}, fail(i, "run starts at block %d, expected 0", b.BlockNo)
			}
			first, inRun = *b, true
			current = &flashimage.Part{Address: b.TargetAddr}
		} else {
			switch {
			case b.BlockNo != expect:
				return flashimage.Image{}, fail(i, "block %d where block %d was expected", b.BlockNo, expect)
			case b.NumBlocks != first.NumBlocks:
				return flashimage.Image{}, fail(i, "block count changed from %d to %d inside a run", first.NumBlocks, b.NumBlocks)
			case b.FamilyID != first.FamilyID:
				return flashimage.Image{}, fail(i, "family changed from 0x%08x to 0x%08x inside a run", first.FamilyID, b.FamilyID)
			case uint64(b.TargetAddr) != next:
				uf2Logger.Debug("📦 Address jump inside a run",
					"from", fmt.Sprintf("0x%08x", next), "to", fmt.Sprintf("0x%08x", b.TargetAddr))
				parts = append(parts, *current)
				current = &flashimage.Part{Address: b.TargetAddr}
			}
		}

		current.Data = append(current.Data, b.Payload()...)
		next = uint64(b.TargetAddr) + uint64(b.PayloadSize)
		expect = b.BlockNo + 1

		if b.BlockNo == first.NumBlocks-1 {
			parts = append(parts, *current)
			current, inRun = nil, false
		}
	}

	if current != nil {
		return flashimage.Image{}, fail(len(blocks), "stream ends inside the part at 0x%08x", current.Address)
	}

	img, err := flashimage.NewImage(parts...)
	if err != nil {
		return flashimage.Image{}, &storeerr.FormatError{Op: "uf2 decode", Offset: -1, Reason: err.Error()}
	}
	uf2Logger.Debug("📂 Decoded stream", "blocks", len(blocks), "parts", len(img.Parts))
	return img, nil
}
