package flashimage

import (
	"bytes"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/gp2040ce/bintools/pkg/layout"
	storeerr "github.com/gp2040ce/bintools/pkg/storage/errors"
)

// EraseFill is the value of erased flash, used to pad short sections.
const EraseFill = 0xFF

// Inputs are the pieces of an image. Nil entries are left out.
type Inputs struct {
	Firmware []byte
	// BoardConfig and UserConfig are either whole sections or unpadded
	// "payload + footer" blobs.
	BoardConfig []byte
	UserConfig  []byte
}

// Options tune Compose.
type Options struct {
	// ReplaceExtra truncates firmware reaching into the configuration area
	// instead of failing.
	ReplaceExtra bool
	Logger       hclog.Logger
}

// Compose places firmware at flash offset 0 and the configuration sections
// at their layout offsets. The result uses flash offsets; see Image.Rebase.
// Equal inputs always give equal images.
func Compose(in Inputs, l layout.Layout, opts Options) (Image, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	var parts []Part
	limit := l.FlashEnd
	limitName := "the end of flash"
	switch {
	case in.BoardConfig != nil:
		limit, limitName = l.BoardConfigOffset, "the board config section"
	case in.UserConfig != nil:
		limit, limitName = l.UserConfigOffset, "the user config section"
	}

	if in.Firmware != nil {
		fw := in.Firmware
		if uint64(len(fw)) > uint64(limit) {
			if !opts.ReplaceExtra {
				return Image{}, fmt.Errorf("firmware overlaps %s: %w", limitName,
					&storeerr.LengthError{What: "firmware", Size: len(fw), Limit: int(limit)})
			}
			logger.Warn("✂️ Truncating firmware", "size", len(fw), "limit", limit)
			fw = fw[:limit]
		}
		parts = append(parts, Part{Address: 0, Data: bytes.Clone(fw)})
	}

	for _, sec := range []struct {
		slot layout.Slot
		data []byte
	}{
		{layout.BoardConfig, in.BoardConfig},
		{layout.UserConfig, in.UserConfig},
	} {
		if sec.data == nil {
			continue
		}
		padded, err := padSection(sec.data, int(l.SectionSize))
		if err != nil {
			return Image{}, fmt.Errorf("%s: %w", sec.slot, err)
		}
		parts = append(parts, Part{Address: l.Offset(sec.slot), Data: padded})
	}

	img, err := NewImage(parts...)
	if err != nil {
		return Image{}, err
	}
	logger.Debug("🧩 Composed image", "parts", len(img.Parts), "bytes", img.Size(), "layout", l.Name)
	return img, nil
}

func padSection(data []byte, size int) ([]byte, error) {
	if len(data) > size {
		return nil, &storeerr.LengthError{What: "configuration section", Size: len(data), Limit: size}
	}
	out := bytes.Repeat([]byte{EraseFill}, size)
	copy(out[size-len(data):], data)
	return out, nil
}
