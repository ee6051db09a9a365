package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gp2040ce/bintools/pkg/logging"
	storeerr "github.com/gp2040ce/bintools/pkg/storage/errors"
)

// FooterSize is the size of the footer closing every section.
const FooterSize = 12

// FooterMagic marks a formatted section.
var FooterMagic = [4]byte{0x65, 0xE3, 0xF1, 0xD2}

var footerLogger = logging.Component("gp2040ce.footer")

// Footer is the trailer of a configuration section.
type Footer struct {
	ContentLength uint32
	CRC32         uint32
	Magic         [4]byte
}

// NewFooter returns a footer describing payload.
func NewFooter(payload []byte) Footer {
	return Footer{
		ContentLength: uint32(len(payload)),
		CRC32:         Checksum(payload),
		Magic:         FooterMagic,
	}
}

// Pack serializes the footer to exactly 12 bytes
func (f *Footer) Pack() []byte {
	buf := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(buf[0:4], f.ContentLength)
	binary.LittleEndian.PutUint32(buf[4:8], f.CRC32)
	copy(buf[8:12], f.Magic[:])
	return buf
}

// Valid reports whether the footer carries the magic.
func (f *Footer) Valid() bool {
	return f.Magic == FooterMagic
}

func (f Footer) String() string {
	return fmt.Sprintf("length=%d crc32=0x%08x magic=%x", f.ContentLength, f.CRC32, f.Magic[:])
}

// EncodeFooter returns the footer bytes for a payload of the given length and
// checksum.
func EncodeFooter(contentLength, crc uint32) []byte {
	f := Footer{ContentLength: contentLength, CRC32: crc, Magic: FooterMagic}
	return f.Pack()
}

// DecodeFooter reads the footer at the end of buf[:min(len(buf), sectionSize)].
// It fails only when the window is shorter than a footer or the magic is
// missing; the caller treats that as an unformatted section.
func DecodeFooter(buf []byte, sectionSize int) (Footer, error) {
	window := sectionWindow(buf, sectionSize)
	if len(window) < FooterSize {
		return Footer{}, &storeerr.FormatError{Op: "footer", Offset: 0,
			Reason: fmt.Sprintf("%d bytes cannot hold a %d byte footer", len(window), FooterSize)}
	}

	raw := window[len(window)-FooterSize:]
	f := Footer{
		ContentLength: binary.LittleEndian.Uint32(raw[0:4]),
		CRC32:         binary.LittleEndian.Uint32(raw[4:8]),
	}
	copy(f.Magic[:], raw[8:12])

	if !bytes.Equal(f.Magic[:], FooterMagic[:]) {
		footerLogger.Trace("📂 No footer magic", "found", fmt.Sprintf("%x", f.Magic[:]))
		return Footer{}, &storeerr.FormatError{Op: "footer", Offset: len(window) - 4,
			Reason: fmt.Sprintf("magic %x is not %x", f.Magic[:], FooterMagic[:])}
	}

	footerLogger.Trace("📂 Decoded footer", "length", f.ContentLength, "crc32", fmt.Sprintf("0x%08x", f.CRC32))
	return f, nil
}

func sectionWindow(buf []byte, sectionSize int) []byte {
	if sectionSize > 0 && len(buf) > sectionSize {
		return buf[:sectionSize]
	}
	return buf
}
