package storage

import (
	"bytes"
	"hash/crc32"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/gp2040ce/bintools/internal/testschema"
	"github.com/gp2040ce/bintools/pkg/layout"
	"github.com/gp2040ce/bintools/pkg/schema"
	storeerr "github.com/gp2040ce/bintools/pkg/storage/errors"
)

func testCodec(t *testing.T, l layout.Layout) *Codec {
	t.Helper()
	s, err := schema.FromDescriptorSet(testschema.DescriptorSet(), "")
	require.NoError(t, err)
	logger := hclog.New(&hclog.LoggerOptions{Name: "storage_test", Level: hclog.Trace})
	return NewCodec(s, l, logger)
}

func sampleMessage(c *Codec, version string) protoreflect.Message {
	msg := c.Schema().New()
	fields := msg.Descriptor().Fields()
	msg.Set(fields.ByName("boardVersion"), protoreflect.ValueOfString(version))
	msg.Set(fields.ByName("brightness"), protoreflect.ValueOfInt32(42))
	return msg
}

func TestChecksumMatchesIEEE(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("123456789"), bytes.Repeat([]byte{0xA5}, 1000)} {
		assert.Equal(t, crc32.ChecksumIEEE(data), Checksum(data))
	}
	assert.Equal(t, uint32(0xCBF43926), Checksum([]byte("123456789")))
}

func TestFooterPackDecode(t *testing.T) {
	raw := EncodeFooter(0x1234, 0xDEADBEEF)
	require.Len(t, raw, FooterSize)
	assert.Equal(t, []byte{0x34, 0x12, 0, 0, 0xEF, 0xBE, 0xAD, 0xDE, 0x65, 0xE3, 0xF1, 0xD2}, raw)

	section := append(bytes.Repeat([]byte{EraseFill}, 100), raw...)
	f, err := DecodeFooter(section, len(section))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1234), f.ContentLength)
	assert.Equal(t, uint32(0xDEADBEEF), f.CRC32)
	assert.True(t, f.Valid())
}

func TestDecodeFooterErrors(t *testing.T) {
	testCases := []struct {
		name string
		buf  []byte
	}{
		{"short", []byte{1, 2, 3}},
		{"erased", bytes.Repeat([]byte{EraseFill}, 64)},
		{"zeroed magic", append(bytes.Repeat([]byte{0}, 20), 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeFooter(tc.buf, 8192)
			assert.ErrorIs(t, err, storeerr.ErrFormat)
		})
	}
}

func TestDecodeFooterHonoursSectionSize(t *testing.T) {
	section := append(bytes.Repeat([]byte{0}, 20), EncodeFooter(0, 0)...)
	buf := append(section, bytes.Repeat([]byte{EraseFill}, 64)...)

	_, err := DecodeFooter(buf, len(section))
	assert.NoError(t, err, "bytes past the section are ignored")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, l := range []layout.Layout{layout.Standard(), layout.Legacy()} {
		t.Run(l.Name, func(t *testing.T) {
			c := testCodec(t, l)
			msg := sampleMessage(c, "v0.7.5")

			section, err := c.EncodeMessage(msg)
			require.NoError(t, err)
			require.Len(t, section, int(l.SectionSize))
			assert.Equal(t, byte(EraseFill), section[0], "front is erased flash")

			cfg, err := c.Decode(section)
			require.NoError(t, err)
			assert.False(t, cfg.Section.Corrupted)
			assert.True(t, proto.Equal(msg.Interface(), cfg.Message.Interface()))
			assert.Equal(t, uint32(len(cfg.Section.Payload)), cfg.Section.Footer.ContentLength)
			assert.Equal(t, Checksum(cfg.Section.Payload), cfg.Section.Footer.CRC32)

			again, err := c.Encode(cfg)
			require.NoError(t, err)
			assert.Equal(t, section, again)
		})
	}
}

func TestDecodeUnpaddedBlob(t *testing.T) {
	c := testCodec(t, layout.Standard())
	blob, err := c.EncodeWithFooter(sampleMessage(c, "v0.7.8"))
	require.NoError(t, err)

	cfg, err := c.Decode(blob)
	require.NoError(t, err)
	v, ok := c.Schema().Version(cfg.Message)
	assert.True(t, ok)
	assert.Equal(t, "v0.7.8", v)
}

func TestEmptyMessageRoundTrip(t *testing.T) {
	c := testCodec(t, layout.Standard())
	section, err := c.Encode(c.Default())
	require.NoError(t, err)

	cfg, err := c.Decode(section)
	require.NoError(t, err)
	assert.False(t, cfg.Section.Corrupted)
	assert.Empty(t, cfg.Section.Payload)
}

func TestSingleByteFlipCorrupts(t *testing.T) {
	c := testCodec(t, layout.Standard())
	section, err := c.EncodeMessage(sampleMessage(c, "v0.7.5"))
	require.NoError(t, err)

	f, err := DecodeFooter(section, len(section))
	require.NoError(t, err)
	start := len(section) - FooterSize - int(f.ContentLength)

	for i := start; i < len(section)-FooterSize; i++ {
		flipped := bytes.Clone(section)
		flipped[i] ^= 0x01

		cfg, err := c.Decode(flipped)
		require.NoError(t, err, "byte %d", i)
		assert.True(t, cfg.Section.Corrupted, "byte %d", i)
		assert.ErrorIs(t, cfg.Section.Reason, storeerr.ErrCorrupted)
		assert.Nil(t, cfg.Section.Payload)
		assert.False(t, cfg.Message.Has(cfg.Message.Descriptor().Fields().ByName("boardVersion")))
	}
}

func TestDecodeCorruptionCases(t *testing.T) {
	c := testCodec(t, layout.Standard())

	t.Run("length past section", func(t *testing.T) {
		section := bytes.Repeat([]byte{EraseFill}, 8192)
		copy(section[8192-FooterSize:], EncodeFooter(9000, 0))
		cfg, err := c.Decode(section)
		require.NoError(t, err)
		assert.True(t, cfg.Section.Corrupted)
	})

	t.Run("valid crc, unparseable payload", func(t *testing.T) {
		payload := []byte{0xFF, 0xFF, 0xFF}
		blob := append(bytes.Clone(payload), EncodeFooter(uint32(len(payload)), Checksum(payload))...)
		cfg, err := c.Decode(blob)
		require.NoError(t, err)
		assert.True(t, cfg.Section.Corrupted)
		assert.Contains(t, cfg.Section.Reason.Error(), "does not parse")
	})

	t.Run("erased section", func(t *testing.T) {
		_, err := c.Decode(bytes.Repeat([]byte{EraseFill}, 8192))
		assert.ErrorIs(t, err, storeerr.ErrFormat)
	})
}

func TestEncodeTooLarge(t *testing.T) {
	c := testCodec(t, layout.Standard())
	msg := c.Schema().New()
	msg.Set(msg.Descriptor().Fields().ByName("key"), protoreflect.ValueOfBytes(make([]byte, 9000)))

	_, err := c.EncodeMessage(msg)
	assert.ErrorIs(t, err, storeerr.ErrLength)

	_, err = PadSection(make([]byte, 10), 8)
	assert.ErrorIs(t, err, storeerr.ErrLength)
}

func TestJSON(t *testing.T) {
	c := testCodec(t, layout.Standard())
	cfg, err := c.FromJSON([]byte(`{"boardVersion": "v0.7.5", "brightness": 42}`))
	require.NoError(t, err)
	assert.True(t, proto.Equal(sampleMessage(c, "v0.7.5").Interface(), cfg.Message.Interface()))

	out, err := c.ToJSON(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "v0.7.5")
}
