package pkg

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/gp2040ce/bintools/internal/testschema"
	"github.com/gp2040ce/bintools/pkg/device"
	"github.com/gp2040ce/bintools/pkg/flashimage"
	"github.com/gp2040ce/bintools/pkg/layout"
	"github.com/gp2040ce/bintools/pkg/storage"
	"github.com/gp2040ce/bintools/pkg/uf2"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newToolkit(t *testing.T) (*Toolkit, string) {
	t.Helper()
	dir := t.TempDir()
	set, err := proto.Marshal(testschema.DescriptorSet())
	require.NoError(t, err)

	logger := hclog.New(&hclog.LoggerOptions{Name: "pkg_test", Level: hclog.Debug})
	tk, err := New(context.Background(), Options{
		DescriptorSet: writeFile(t, dir, "config.pb", set),
		Logger:        logger,
	})
	require.NoError(t, err)
	require.NotNil(t, tk.Codec)
	return tk, dir
}

func version(t *testing.T, tk *Toolkit, msg protoreflect.Message) string {
	t.Helper()
	v, ok := tk.Schema.Version(msg)
	require.True(t, ok)
	return v
}

func setVersion(msg protoreflect.Message, v string) {
	msg.Set(msg.Descriptor().Fields().ByName("boardVersion"), protoreflect.ValueOfString(v))
}

// concatenated writes a 37-byte firmware and a JSON user config and
// combines them.
func concatenated(t *testing.T, tk *Toolkit, dir string) ConcatenateRequest {
	t.Helper()
	return ConcatenateRequest{
		Firmware:   writeFile(t, dir, "firmware.bin", append([]byte("GP2040-CE v0.7.5 "), bytes.Repeat([]byte{0xAA}, 20)...)),
		UserConfig: writeFile(t, dir, "user.json", []byte(`{"boardVersion": "v0.7.5", "brightness": 3}`)),
	}
}

func TestLoadLayout(t *testing.T) {
	l, err := LoadLayout("", "")
	require.NoError(t, err)
	assert.Equal(t, layout.DefaultName, l.Name)

	t.Setenv(LayoutEnv, layout.LegacyName)
	l, err = LoadLayout("", "")
	require.NoError(t, err)
	assert.Equal(t, uint32(16384), l.SectionSize)

	l, err = LoadLayout(layout.DefaultName, "")
	require.NoError(t, err)
	assert.Equal(t, uint32(8192), l.SectionSize)

	_, err = LoadLayout("nope", "")
	assert.ErrorIs(t, err, ErrUnknownLayout)

	file := writeFile(t, t.TempDir(), "layouts.yaml", []byte(`layouts:
  - name: tiny
    section_size: 4096
    board_config_offset: 0x1000
    user_config_offset: 0x2000
    flash_end: 0x3000
`))
	l, err = LoadLayout("tiny", file)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x2000), l.UserConfigOffset)
	assert.Equal(t, layout.DefaultBase, l.Base)
}

func TestToolkitWithoutSchema(t *testing.T) {
	tk, err := New(context.Background(), Options{})
	require.NoError(t, err)
	assert.Nil(t, tk.Codec)

	_, err = tk.LoadConfig(LoadRequest{Path: "whatever.bin"})
	assert.ErrorIs(t, err, ErrNoSchema)

	dir := t.TempDir()
	_, err = tk.Concatenate(ConcatenateRequest{UserConfig: writeFile(t, dir, "user.json", []byte(`{}`))})
	assert.ErrorIs(t, err, ErrNoSchema)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatUF2, FormatOf("a/b/fw.UF2"))
	assert.Equal(t, FormatHex, FormatOf("fw.hex"))
	assert.Equal(t, FormatJSON, FormatOf("config.json"))
	assert.Equal(t, FormatBinary, FormatOf("memory.bin"))
	assert.Equal(t, FormatBinary, FormatOf("noext"))
}

func TestConcatenateAcrossFormats(t *testing.T) {
	tk, dir := newToolkit(t)
	img, err := tk.Concatenate(concatenated(t, tk, dir))
	require.NoError(t, err)
	require.Len(t, img.Parts, 2)
	assert.Equal(t, tk.Layout.UserConfigOffset, img.Parts[1].Address)

	for _, name := range []string{"out.uf2", "out.hex"} {
		t.Run(name, func(t *testing.T) {
			out := filepath.Join(dir, name)
			require.NoError(t, tk.WriteImage(out, img, false))
			back, err := tk.ReadImage(out)
			require.NoError(t, err)
			assert.True(t, img.Equal(back))

			res, err := tk.LoadConfig(LoadRequest{Path: out, Slot: layout.UserConfig})
			require.NoError(t, err)
			assert.Equal(t, storage.SlotValid, res.State)
			assert.Equal(t, "v0.7.5", version(t, tk, res.Config.Message))
		})
	}

	out := filepath.Join(dir, "out.bin")
	require.NoError(t, tk.WriteImage(out, img, false))
	flat, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, flat, int(tk.Layout.FlashEnd))
	assert.Equal(t, byte(0x00), flat[100], "gap is zero filled")

	res, err := tk.LoadConfig(LoadRequest{Path: out, Slot: layout.UserConfig, WholeBoard: true})
	require.NoError(t, err)
	assert.Equal(t, "v0.7.5", version(t, tk, res.Config.Message))

	_, err = tk.LoadConfig(LoadRequest{Path: out, Slot: layout.BoardConfig})
	assert.ErrorIs(t, err, ErrSlotNotPresent)
}

func TestConcatenateRejectsLargeFirmware(t *testing.T) {
	tk, dir := newToolkit(t)
	req := concatenated(t, tk, dir)
	req.Firmware = writeFile(t, dir, "big.bin", make([]byte, tk.Layout.UserConfigOffset+1))

	_, err := tk.Concatenate(req)
	assert.Error(t, err)

	req.ReplaceExtra = true
	img, err := tk.Concatenate(req)
	require.NoError(t, err)
	assert.Len(t, img.Parts[0].Data, int(tk.Layout.UserConfigOffset))
}

func TestSaveConfigSectionAndBackup(t *testing.T) {
	tk, dir := newToolkit(t)
	path := filepath.Join(dir, "memory.bin")

	msg := tk.Schema.New()
	setVersion(msg, "v1.0.0")
	require.NoError(t, tk.SaveConfig(path, msg, layout.UserConfig, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, int(tk.Layout.SectionSize))
	assert.NoFileExists(t, path+".old")

	setVersion(msg, "v1.0.1")
	require.NoError(t, tk.SaveConfig(path, msg, layout.UserConfig, true))
	assert.FileExists(t, path+".old")

	res, err := tk.LoadConfig(LoadRequest{Path: path, Slot: layout.UserConfig})
	require.NoError(t, err)
	assert.Equal(t, "v1.0.1", version(t, tk, res.Config.Message))

	old, err := tk.LoadConfig(LoadRequest{Path: path + ".old", Slot: layout.UserConfig})
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", version(t, tk, old.Config.Message))

	_, err = tk.LoadConfig(LoadRequest{Path: path, Slot: layout.UserConfig, WholeBoard: true})
	assert.ErrorIs(t, err, ErrNotWholeBoard)
}

func TestSaveConfigKeepsImage(t *testing.T) {
	tk, dir := newToolkit(t)
	img, err := tk.Concatenate(concatenated(t, tk, dir))
	require.NoError(t, err)

	for _, name := range []string{"board.uf2", "board.bin"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, tk.WriteImage(path, img, false))

			res, err := tk.LoadConfig(LoadRequest{Path: path, Slot: layout.UserConfig})
			require.NoError(t, err)
			setVersion(res.Config.Message, "v9.9.9")
			require.NoError(t, tk.SaveConfig(path, res.Config.Message, layout.UserConfig, false))

			back, err := tk.ReadImage(path)
			require.NoError(t, err)
			assert.Equal(t, img.Parts[0].Data, back.Parts[0].Data[:len(img.Parts[0].Data)], "firmware survives")

			again, err := tk.LoadConfig(LoadRequest{Path: path, Slot: layout.UserConfig})
			require.NoError(t, err)
			assert.Equal(t, "v9.9.9", version(t, tk, again.Config.Message))
		})
	}
}

func TestSaveConfigIntoStorageTail(t *testing.T) {
	tk, dir := newToolkit(t)

	board, user := tk.Schema.New(), tk.Schema.New()
	setVersion(board, "v1.0.0")
	setVersion(user, "v2.0.0")
	boardSection, err := tk.Codec.EncodeMessage(board)
	require.NoError(t, err)
	userSection, err := tk.Codec.EncodeMessage(user)
	require.NoError(t, err)

	// the board and user sections, as dumped from the end of flash
	tail := append(bytes.Clone(boardSection), userSection...)
	path := writeFile(t, dir, "storage.bin", tail)

	res, err := tk.LoadConfig(LoadRequest{Path: path, Slot: layout.UserConfig})
	require.NoError(t, err)
	assert.Equal(t, "v2.0.0", version(t, tk, res.Config.Message))
	setVersion(res.Config.Message, "v2.0.1")
	require.NoError(t, tk.SaveConfig(path, res.Config.Message, layout.UserConfig, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, len(tail))
	assert.Equal(t, boardSection, data[:len(boardSection)], "board section is untouched")

	again, err := tk.LoadConfig(LoadRequest{Path: path, Slot: layout.UserConfig})
	require.NoError(t, err)
	assert.Equal(t, "v2.0.1", version(t, tk, again.Config.Message))
	kept, err := tk.LoadConfig(LoadRequest{Path: path, Slot: layout.BoardConfig})
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", version(t, tk, kept.Config.Message))
}

func TestLoadConfigNewIfNotFound(t *testing.T) {
	tk, dir := newToolkit(t)

	res, err := tk.LoadConfig(LoadRequest{Path: filepath.Join(dir, "missing.bin"), NewIfNotFound: true})
	require.NoError(t, err)
	assert.Equal(t, storage.SlotAbsent, res.State)
	require.NotNil(t, res.Config)

	_, err = tk.LoadConfig(LoadRequest{Path: filepath.Join(dir, "missing.bin")})
	assert.Error(t, err)

	blank := writeFile(t, dir, "blank.bin", make([]byte, tk.Layout.SectionSize))
	_, err = tk.LoadConfig(LoadRequest{Path: blank})
	assert.ErrorIs(t, err, ErrSlotNotPresent)

	res, err = tk.LoadConfig(LoadRequest{Path: blank, NewIfNotFound: true})
	require.NoError(t, err)
	assert.Equal(t, storage.SlotAbsent, res.State)
}

func TestDeviceOperations(t *testing.T) {
	ctx := context.Background()
	tk, dir := newToolkit(t)
	img, err := tk.Concatenate(concatenated(t, tk, dir))
	require.NoError(t, err)

	dev, err := device.Open(filepath.Join(dir, "flash.bin"))
	require.NoError(t, err)
	defer dev.Close()
	require.NoError(t, tk.WriteImageToDevice(ctx, dev, img))

	res, err := tk.LoadDeviceConfig(ctx, dev, layout.UserConfig, false)
	require.NoError(t, err)
	assert.Equal(t, "v0.7.5", version(t, tk, res.Config.Message))

	_, err = tk.LoadDeviceConfig(ctx, dev, layout.BoardConfig, false)
	assert.ErrorIs(t, err, ErrSlotNotPresent)

	setVersion(res.Config.Message, "v0.8.0")
	require.NoError(t, tk.SaveDeviceConfig(ctx, dev, res.Config.Message, layout.BoardConfig))
	board, err := tk.LoadDeviceConfig(ctx, dev, layout.BoardConfig, false)
	require.NoError(t, err)
	assert.Equal(t, "v0.8.0", version(t, tk, board.Config.Message))

	section := filepath.Join(dir, "user-dump.bin")
	require.NoError(t, tk.DumpConfig(ctx, dev, layout.UserConfig, section, false))
	data, err := os.ReadFile(section)
	require.NoError(t, err)
	assert.Len(t, data, int(tk.Layout.SectionSize))

	sectionUF2 := filepath.Join(dir, "user-dump.uf2")
	require.NoError(t, tk.DumpConfig(ctx, dev, layout.UserConfig, sectionUF2, false))
	dumped, err := tk.ReadImage(sectionUF2)
	require.NoError(t, err)
	require.Len(t, dumped.Parts, 1)
	assert.Equal(t, tk.Layout.UserConfigOffset, dumped.Parts[0].Address)

	whole := filepath.Join(dir, "whole.uf2")
	require.NoError(t, tk.DumpFlash(ctx, dev, whole, false))
	report, err := tk.Summarize(whole, uf2.DigestBlake2b)
	require.NoError(t, err)

	fw, ok := report.Find(uf2.LabelFirmware)
	require.True(t, ok)
	assert.Equal(t, "v0.7.5", fw.Version)
	user, ok := report.Find(layout.UserConfig.String())
	require.True(t, ok)
	assert.Equal(t, storage.SlotValid.String(), user.State)
	boardEntry, ok := report.Find(layout.BoardConfig.String())
	require.True(t, ok)
	assert.Equal(t, "v0.8.0", boardEntry.Version)
}

func TestRender(t *testing.T) {
	tk, _ := newToolkit(t)
	msg := tk.Schema.New()
	setVersion(msg, "v0.7.5")

	text, err := tk.Render(msg, false)
	require.NoError(t, err)
	assert.Contains(t, string(text), "boardVersion")
	assert.Contains(t, string(text), `"v0.7.5"`)

	js, err := tk.Render(msg, true)
	require.NoError(t, err)
	assert.Contains(t, string(js), `"boardVersion"`)
}

func TestVerifyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "fw.bin", []byte("123456789"))

	require.NoError(t, VerifyFile(path, uf2.CalculateDigest([]byte("123456789"), uf2.DigestSHA256)))
	err := VerifyFile(path, uf2.CalculateDigest([]byte("other"), uf2.DigestSHA256))
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestWriteImageKeepsUntouchedFlash(t *testing.T) {
	ctx := context.Background()
	tk, dir := newToolkit(t)
	req := concatenated(t, tk, dir)
	l := tk.Layout

	testCases := []struct {
		name     string
		req      ConcatenateRequest
		keepFrom uint32
	}{
		{"user config only", ConcatenateRequest{UserConfig: req.UserConfig}, 0},
		{"firmware and user config", req, layout.EraseSectorSize},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "flash.bin", bytes.Repeat([]byte{0xAB}, int(l.FlashEnd)))
			img, err := tk.Concatenate(tc.req)
			require.NoError(t, err)

			dev, err := device.Open(path)
			require.NoError(t, err)
			defer dev.Close()
			require.NoError(t, tk.WriteImageToDevice(ctx, dev, img))

			flash, err := device.ReadFlash(ctx, dev, l)
			require.NoError(t, err)
			untouched := flash[tc.keepFrom:l.UserConfigOffset]
			assert.Equal(t, len(untouched), bytes.Count(untouched, []byte{0xAB}), "firmware and board config survive")

			res, err := tk.LoadDeviceConfig(ctx, dev, layout.UserConfig, false)
			require.NoError(t, err)
			assert.Equal(t, "v0.7.5", version(t, tk, res.Config.Message))
		})
	}
}

func TestSectorRuns(t *testing.T) {
	parts := []flashimage.Part{
		{Address: 0, Data: []byte{1, 2}},
		{Address: 8, Data: []byte{3}},
		{Address: layout.EraseSectorSize + 10, Data: []byte{4}},
	}

	runs := sectorRuns(parts)
	require.Len(t, runs, 2)
	assert.Equal(t, uint32(0), runs[0].Address)
	assert.Equal(t, []byte{1, 2, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 3}, runs[0].Data)
	assert.Equal(t, uint32(layout.EraseSectorSize+10), runs[1].Address)
	assert.Equal(t, []byte{1, 2}, parts[0].Data, "input is not modified")
}
