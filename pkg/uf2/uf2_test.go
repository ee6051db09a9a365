package uf2

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gp2040ce/bintools/pkg/flashimage"
	"github.com/gp2040ce/bintools/pkg/layout"
	storeerr "github.com/gp2040ce/bintools/pkg/storage/errors"
)

func pattern(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = seed + byte(i*7)
	}
	return out
}

func mustImage(t *testing.T, parts ...flashimage.Part) flashimage.Image {
	t.Helper()
	img, err := flashimage.NewImage(parts...)
	require.NoError(t, err)
	return img
}

func TestBlockPackUnpack(t *testing.T) {
	b := Block{Flags: FlagFamilyIDPresent, TargetAddr: 0x10000100, PayloadSize: 3, BlockNo: 1, NumBlocks: 2, FamilyID: FamilyRP2040}
	copy(b.Data[:], []byte{1, 2, 3})

	raw := b.Pack()
	require.Len(t, raw, BlockSize)
	assert.Equal(t, MagicStart0, binary.LittleEndian.Uint32(raw[0:4]))
	assert.Equal(t, MagicStart1, binary.LittleEndian.Uint32(raw[4:8]))
	assert.Equal(t, MagicEnd, binary.LittleEndian.Uint32(raw[508:512]))

	back, err := UnpackBlock(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, b, *back)
	assert.Equal(t, []byte{1, 2, 3}, back.Payload())
}

func TestRoundTripDisjointParts(t *testing.T) {
	testCases := []struct {
		name  string
		parts []flashimage.Part
	}{
		{"single byte", []flashimage.Part{{Address: 0x10000000, Data: []byte{0x42}}}},
		{"exact blocks", []flashimage.Part{{Address: 0x10000000, Data: pattern(512, 1)}}},
		{"ragged", []flashimage.Part{{Address: 0x10000000, Data: pattern(1000, 2)}}},
		{"three parts", []flashimage.Part{
			{Address: 0x10000000, Data: pattern(300, 3)},
			{Address: 0x101FC000, Data: pattern(8192, 4)},
			{Address: 0x101FE000, Data: pattern(8192, 5)},
		}},
		{"adjacent unaligned", []flashimage.Part{
			{Address: 0x20, Data: pattern(10, 6)},
			{Address: 0x2A, Data: pattern(700, 7)},
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			img := mustImage(t, tc.parts...)
			stream, err := EncodeImage(img, FamilyRP2040)
			require.NoError(t, err)
			require.Zero(t, len(stream)%BlockSize)

			back, err := Decode(stream)
			require.NoError(t, err)
			assert.True(t, img.Equal(back))
		})
	}
}

func TestFirmwareAndUserConfigScenario(t *testing.T) {
	l := layout.Standard()
	img, err := flashimage.Compose(flashimage.Inputs{
		Firmware:   pattern(37, 9),
		UserConfig: pattern(8192, 10),
	}, l, flashimage.Options{})
	require.NoError(t, err)
	img, err = img.Rebase(l.Base)
	require.NoError(t, err)

	blocks, err := Encode(img, 0xE48BFF56)
	require.NoError(t, err)
	require.Len(t, blocks, 33)

	assert.Equal(t, uint32(0), blocks[0].BlockNo)
	assert.Equal(t, uint32(1), blocks[0].NumBlocks)
	assert.Equal(t, uint32(37), blocks[0].PayloadSize)
	assert.Equal(t, uint32(0x10000000), blocks[0].TargetAddr)

	for i, b := range blocks[1:] {
		assert.Equal(t, uint32(i), b.BlockNo)
		assert.Equal(t, uint32(32), b.NumBlocks)
		assert.Equal(t, uint32(0x101FE000+i*256), b.TargetAddr)
		assert.Equal(t, uint32(0xE48BFF56), b.FamilyID)
		assert.Equal(t, FlagFamilyIDPresent, b.Flags)
	}

	back, err := Decode(Marshal(blocks))
	require.NoError(t, err)
	require.Len(t, back.Parts, 2)
	assert.Equal(t, uint32(0x10000000), back.Parts[0].Address)
	assert.Len(t, back.Parts[0].Data, 37)
	assert.Equal(t, uint32(0x101FE000), back.Parts[1].Address)
	assert.Len(t, back.Parts[1].Data, 8192)
}

// One run numbered across firmware and configuration, with an address jump
// between them, as older tools write combined images.
func TestDecodeAddressJumpInsideRun(t *testing.T) {
	firmware := pattern(37, 3)
	config := pattern(8192, 4)

	var blocks []Block
	add := func(addr uint32, chunk []byte) {
		b := Block{
			Flags:       FlagFamilyIDPresent,
			TargetAddr:  addr,
			PayloadSize: uint32(len(chunk)),
			BlockNo:     uint32(len(blocks)),
			NumBlocks:   33,
			FamilyID:    FamilyRP2040,
		}
		copy(b.Data[:], chunk)
		blocks = append(blocks, b)
	}
	add(0x10000000, firmware)
	for i := 0; i < 32; i++ {
		add(0x101FE000+uint32(i*PayloadSize), config[i*PayloadSize:(i+1)*PayloadSize])
	}

	img, err := Decode(Marshal(blocks))
	require.NoError(t, err)
	require.Len(t, img.Parts, 2)
	assert.Equal(t, uint32(0x10000000), img.Parts[0].Address)
	assert.Equal(t, firmware, img.Parts[0].Data)
	assert.Equal(t, uint32(0x101FE000), img.Parts[1].Address)
	assert.Equal(t, config, img.Parts[1].Data)

	_, err = Decode(Marshal(blocks[:20]))
	assert.ErrorIs(t, err, storeerr.ErrFormat, "the run is still unfinished")
}

func TestDecodeRejectsBrokenStreams(t *testing.T) {
	img := mustImage(t,
		flashimage.Part{Address: 0x10000000, Data: pattern(1024, 1)},
		flashimage.Part{Address: 0x10100000, Data: pattern(512, 2)},
	)
	blocks, err := Encode(img, FamilyRP2040)
	require.NoError(t, err)
	require.Len(t, blocks, 6)

	clone := func() []Block { return append([]Block(nil), blocks...) }

	testCases := []struct {
		name   string
		stream func() []byte
	}{
		{"truncated block", func() []byte { return Marshal(clone())[:BlockSize*2+100] }},
		{"missing block", func() []byte {
			b := clone()
			return Marshal(append(b[:1], b[2:]...))
		}},
		{"reordered", func() []byte {
			b := clone()
			b[1], b[2] = b[2], b[1]
			return Marshal(b)
		}},
		{"unfinished part", func() []byte { return Marshal(clone()[:3]) }},
		{"starts mid part", func() []byte { return Marshal(clone()[1:]) }},
		{"count changes", func() []byte {
			b := clone()
			b[2].NumBlocks = 5
			return Marshal(b)
		}},
		{"jump back over earlier data", func() []byte {
			b := clone()
			b[2].TargetAddr = 0x10000000
			return Marshal(b)
		}},
		{"family changes", func() []byte {
			b := clone()
			b[1].FamilyID = 0x12345678
			return Marshal(b)
		}},
		{"payload too large", func() []byte {
			raw := Marshal(clone())
			binary.LittleEndian.PutUint32(raw[BlockSize+16:], 300)
			return raw
		}},
		{"bad start magic", func() []byte {
			raw := Marshal(clone())
			raw[0] ^= 0xFF
			return raw
		}},
		{"bad end magic", func() []byte {
			raw := Marshal(clone())
			raw[3*BlockSize-1] ^= 0xFF
			return raw
		}},
		{"overlapping parts", func() []byte {
			b := clone()
			for i := 4; i < 6; i++ {
				b[i].TargetAddr = 0x10000000 + uint32((i-4)*PayloadSize)
			}
			return Marshal(b)
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			img, err := Decode(tc.stream())
			assert.ErrorIs(t, err, storeerr.ErrFormat)
			assert.Empty(t, img.Parts, "nothing is returned on failure")
		})
	}
}

func TestEncodeRejectsOverlap(t *testing.T) {
	img := flashimage.Image{Parts: []flashimage.Part{
		{Address: 0, Data: make([]byte, 10)},
		{Address: 5, Data: make([]byte, 10)},
	}}
	_, err := Encode(img, FamilyRP2040)
	assert.Error(t, err)
}

func TestDigest(t *testing.T) {
	data := []byte("gp2040-ce")
	for _, algo := range []DigestAlgorithm{DigestBlake2b, DigestSHA256, DigestAdler32} {
		t.Run(algo.String(), func(t *testing.T) {
			d := CalculateDigest(data, algo)
			assert.True(t, bytes.HasPrefix([]byte(d), []byte(algo.String()+":")))

			ok, err := VerifyDigest(data, d)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = VerifyDigest([]byte("other"), d)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}

	_, err := ParseDigestAlgorithm("md5")
	assert.Error(t, err)
	_, _, err = ParseDigest("abc")
	assert.Error(t, err)

	algo, _, err := ParseDigest("0a0b0c0d")
	require.NoError(t, err)
	assert.Equal(t, DigestAdler32, algo)
}
