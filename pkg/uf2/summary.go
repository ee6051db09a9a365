package uf2

import (
	"fmt"
	"io"
	"strings"

	"github.com/gp2040ce/bintools/pkg/flashimage"
	"github.com/gp2040ce/bintools/pkg/layout"
	"github.com/gp2040ce/bintools/pkg/storage"
)

// Part labels used in summaries.
const (
	LabelFirmware = "firmware"
	LabelUnknown  = "unknown"
)

// Entry describes one part of a summarized image.
type Entry struct {
	Label   string
	Address uint32
	Size    int
	Blocks  int
	// Version is the firmware's embedded marker or the configuration's
	// boardVersion; empty when none was found.
	Version string
	// State is the slot state for configuration parts.
	State  string
	Digest string
}

// Report is the result of Summarize.
type Report struct {
	Layout  string
	Entries []Entry
}

// Summarize labels every part of img by matching its address, absolute or
// flash relative, against the layout. Configuration parts are decoded with
// codec when one is given; firmware is scanned for a version marker.
func Summarize(img flashimage.Image, l layout.Layout, codec *storage.Codec, algo DigestAlgorithm) Report {
	r := Report{Layout: l.Name}
	for _, p := range img.Parts {
		rel := p.Address
		if rel >= l.Base {
			rel -= l.Base
		}

		e := Entry{
			Label:   LabelUnknown,
			Address: p.Address,
			Size:    len(p.Data),
			Blocks:  (len(p.Data) + PayloadSize - 1) / PayloadSize,
			Digest:  CalculateDigest(p.Data, algo),
		}

		switch rel {
		case 0:
			e.Label = LabelFirmware
			e.Version, _ = flashimage.FindVersionString(p.Data)
		case l.BoardConfigOffset, l.UserConfigOffset:
			slot := layout.BoardConfig
			if rel == l.UserConfigOffset {
				slot = layout.UserConfig
			}
			e.Label = slot.String()
			if codec != nil {
				res := codec.LoadSection(p.Data, slot)
				e.State = res.State.String()
				if res.State == storage.SlotValid {
					e.Version, _ = codec.Schema().Version(res.Config.Message)
				}
			}
		}
		r.Entries = append(r.Entries, e)
	}
	return r
}

// Find returns the first entry with the given label.
func (r Report) Find(label string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Label == label {
			return e, true
		}
	}
	return Entry{}, false
}

// WriteTo prints the report as aligned text.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "layout: %s\n", r.Layout)
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "%-12s 0x%08x %8d bytes %5d blocks", e.Label, e.Address, e.Size, e.Blocks)
		if e.State != "" {
			fmt.Fprintf(&b, "  %s", e.State)
		}
		if e.Version != "" {
			fmt.Fprintf(&b, "  version %s", e.Version)
		}
		fmt.Fprintf(&b, "\n%12s %s\n", "", e.Digest)
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
