package storage

import (
	"github.com/gp2040ce/bintools/pkg/layout"
	"github.com/gp2040ce/bintools/pkg/logging"
	storeerr "github.com/gp2040ce/bintools/pkg/storage/errors"
)

var locatorLogger = logging.Component("gp2040ce.locator")

// Location says where the configuration sections of a buffer are.
type Location struct {
	// Bare is set when the buffer is a single section starting at offset 0.
	// Which slot it came from is up to the caller.
	Bare bool
	// Start is the flash offset of the first byte of the buffer.
	Start uint32
	// Board and User are buffer offsets of formatted sections, -1 if absent.
	Board int
	User  int
}

// Offset returns the buffer offset of a slot's section.
func (l Location) Offset(s layout.Slot) (int, bool) {
	if l.Bare {
		return 0, true
	}
	off := l.Board
	if s == layout.UserConfig {
		off = l.User
	}
	return off, off >= 0
}

// DumpStart returns the flash offset of the first byte of an n byte dump
// longer than one section: 0 for a whole dump, otherwise the offset that
// makes the dump end at FlashEnd.
func DumpStart(n int, l layout.Layout) uint32 {
	if n >= int(l.FlashEnd) {
		return 0
	}
	return l.FlashEnd - uint32(n)
}

// Locate finds the configuration sections in buf. Three shapes are accepted:
// a lone section (at most one section long), a whole flash dump (at least
// FlashEnd long) and a dump of the end of flash (anything in between, taken
// to end at FlashEnd). Only the layout's fixed offsets are probed.
func Locate(buf []byte, l layout.Layout) (Location, error) {
	size := int(l.SectionSize)
	if len(buf) <= size {
		locatorLogger.Debug("📍 Buffer is a single section", "size", len(buf))
		return Location{Bare: true, Board: -1, User: -1}, nil
	}

	loc := Location{Board: -1, User: -1, Start: DumpStart(len(buf), l)}

	probe := func(s layout.Slot) int {
		flashOffset := l.Offset(s)
		if flashOffset < loc.Start {
			return -1
		}
		off := int(flashOffset - loc.Start)
		if off+size > len(buf) {
			return -1
		}
		if _, err := DecodeFooter(buf[off:off+size], size); err != nil {
			locatorLogger.Debug("📍 Slot not formatted", "slot", s, "offset", off)
			return -1
		}
		return off
	}
	loc.Board = probe(layout.BoardConfig)
	loc.User = probe(layout.UserConfig)

	if loc.Board < 0 && loc.User < 0 {
		return Location{}, &storeerr.LocatorError{Length: len(buf), Layout: l.Name}
	}

	locatorLogger.Debug("📍 Located sections", "start", loc.Start, "board", loc.Board, "user", loc.User)
	return loc, nil
}
