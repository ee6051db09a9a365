package storage

import (
	"bytes"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/gp2040ce/bintools/pkg/layout"
	"github.com/gp2040ce/bintools/pkg/schema"
	storeerr "github.com/gp2040ce/bintools/pkg/storage/errors"
)

// EraseFill is the value of erased flash.
const EraseFill = 0xFF

// Section is the validated content of one configuration section. When
// Corrupted is set the payload is nil and Reason says why.
type Section struct {
	Payload   []byte
	Footer    Footer
	Corrupted bool
	Reason    error
}

// Config is a decoded configuration together with the section it came from.
type Config struct {
	Message protoreflect.Message
	Section Section
}

// Codec converts between sections and configuration messages for one schema
// and flash layout.
type Codec struct {
	schema *schema.Schema
	layout layout.Layout
	logger hclog.Logger
}

// NewCodec creates a codec. A nil logger discards output.
func NewCodec(s *schema.Schema, l layout.Layout, logger hclog.Logger) *Codec {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Codec{schema: s, layout: l, logger: logger}
}

// Schema returns the codec's schema.
func (c *Codec) Schema() *schema.Schema { return c.schema }

// Layout returns the codec's flash layout.
func (c *Codec) Layout() layout.Layout { return c.layout }

// Default returns an empty configuration.
func (c *Codec) Default() *Config {
	return &Config{Message: c.schema.New()}
}

// Decode reads the section in buf, which is either exactly one section or
// a shorter "payload + footer" blob. A missing footer magic is returned as a
// *FormatError. Any other problem yields a corrupted Config holding an empty
// message and no error.
func (c *Codec) Decode(buf []byte) (*Config, error) {
	size := int(c.layout.SectionSize)
	footer, err := DecodeFooter(buf, size)
	if err != nil {
		return nil, err
	}

	window := sectionWindow(buf, size)
	end := len(window) - FooterSize
	if int64(footer.ContentLength) > int64(end) {
		return c.corrupted(footer, &storeerr.CorruptionError{
			Reason: fmt.Sprintf("footer claims %d payload bytes, only %d precede it", footer.ContentLength, end),
		}), nil
	}

	payload := window[end-int(footer.ContentLength) : end]
	if sum := Checksum(payload); sum != footer.CRC32 {
		return c.corrupted(footer, &storeerr.CorruptionError{
			Expected: footer.CRC32,
			Actual:   sum,
			Reason:   "crc32 mismatch",
		}), nil
	}

	msg, err := c.schema.Decode(payload)
	if err != nil {
		return c.corrupted(footer, &storeerr.CorruptionError{Reason: "payload does not parse", Cause: err}), nil
	}

	c.logger.Debug("✅ Decoded configuration", "length", footer.ContentLength, "crc32", fmt.Sprintf("0x%08x", footer.CRC32))
	return &Config{
		Message: msg,
		Section: Section{Payload: bytes.Clone(payload), Footer: footer},
	}, nil
}

func (c *Codec) corrupted(footer Footer, reason error) *Config {
	c.logger.Warn("⚠️ Configuration section is corrupted, using defaults", "reason", reason)
	return &Config{
		Message: c.schema.New(),
		Section: Section{Footer: footer, Corrupted: true, Reason: reason},
	}
}

// Encode serializes cfg into a full section.
func (c *Codec) Encode(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, fmt.Errorf("encode: no configuration")
	}
	return c.EncodeMessage(cfg.Message)
}

// EncodeMessage serializes msg into a full section: 0xFF fill, payload and
// footer, SectionSize bytes in total.
func (c *Codec) EncodeMessage(msg protoreflect.Message) ([]byte, error) {
	withFooter, err := c.EncodeWithFooter(msg)
	if err != nil {
		return nil, err
	}
	return PadSection(withFooter, int(c.layout.SectionSize))
}

// EncodeWithFooter serializes msg as payload followed by its footer, without
// any fill.
func (c *Codec) EncodeWithFooter(msg protoreflect.Message) ([]byte, error) {
	payload, err := c.schema.Encode(msg)
	if err != nil {
		return nil, err
	}
	limit := int(c.layout.SectionSize)
	if len(payload)+FooterSize > limit {
		return nil, &storeerr.LengthError{What: "configuration with footer", Size: len(payload) + FooterSize, Limit: limit}
	}

	footer := NewFooter(payload)
	out := make([]byte, 0, len(payload)+FooterSize)
	out = append(out, payload...)
	out = append(out, footer.Pack()...)

	c.logger.Debug("📦 Encoded configuration", "length", len(payload), "crc32", fmt.Sprintf("0x%08x", footer.CRC32))
	return out, nil
}

// PadSection right-aligns data in a section of the given size, filling the
// front with erased flash bytes.
func PadSection(data []byte, sectionSize int) ([]byte, error) {
	if len(data) > sectionSize {
		return nil, &storeerr.LengthError{What: "configuration section", Size: len(data), Limit: sectionSize}
	}
	out := bytes.Repeat([]byte{EraseFill}, sectionSize)
	copy(out[sectionSize-len(data):], data)
	return out, nil
}

// FromJSON builds a configuration from its JSON form.
func (c *Codec) FromJSON(data []byte) (*Config, error) {
	msg, err := c.schema.FromJSON(data)
	if err != nil {
		return nil, err
	}
	return &Config{Message: msg}, nil
}

// ToJSON renders a configuration as JSON.
func (c *Codec) ToJSON(cfg *Config) ([]byte, error) {
	return c.schema.ToJSON(cfg.Message)
}
