package pkg

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/gp2040ce/bintools/pkg/device"
	"github.com/gp2040ce/bintools/pkg/flashimage"
	"github.com/gp2040ce/bintools/pkg/layout"
	"github.com/gp2040ce/bintools/pkg/storage"
	"github.com/gp2040ce/bintools/pkg/uf2"
)

// ConcatenateRequest names the inputs of a combined image. Configuration
// files are binary sections or, with a .json suffix, JSON documents.
type ConcatenateRequest struct {
	Firmware     string
	BoardConfig  string
	UserConfig   string
	ReplaceExtra bool
}

// Concatenate builds an image from firmware and configuration files.
func (t *Toolkit) Concatenate(req ConcatenateRequest) (flashimage.Image, error) {
	var in flashimage.Inputs
	if req.Firmware != "" {
		fw, err := t.firmware(req.Firmware)
		if err != nil {
			return flashimage.Image{}, err
		}
		in.Firmware = fw
	}

	var err error
	if in.BoardConfig, err = t.configBlob(req.BoardConfig); err != nil {
		return flashimage.Image{}, err
	}
	if in.UserConfig, err = t.configBlob(req.UserConfig); err != nil {
		return flashimage.Image{}, err
	}

	return flashimage.Compose(in, t.Layout, flashimage.Options{
		ReplaceExtra: req.ReplaceExtra,
		Logger:       t.logger.Named("compose"),
	})
}

func (t *Toolkit) firmware(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read firmware: %w", err)
	}
	format := FormatOf(path)
	if format == FormatBinary {
		return data, nil
	}
	img, err := t.DecodeImage(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img.Flatten(0, 0x00)
}

func (t *Toolkit) configBlob(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if FormatOf(path) != FormatJSON {
		return data, nil
	}

	codec, err := t.codec()
	if err != nil {
		return nil, err
	}
	cfg, err := codec.FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return codec.EncodeWithFooter(cfg.Message)
}

// WriteImageToDevice flashes a flash-relative image part by part. Flash
// between parts is not touched.
func (t *Toolkit) WriteImageToDevice(ctx context.Context, dev device.Device, img flashimage.Image) error {
	if err := img.Validate(); err != nil {
		return err
	}
	for _, p := range sectorRuns(img.Parts) {
		if err := device.WritePart(ctx, dev, t.Layout, p.Address, p.Data); err != nil {
			return fmt.Errorf("write part at 0x%08x: %w", p.Address, err)
		}
		t.logger.Debug("💾 Wrote part", "address", fmt.Sprintf("0x%08x", p.Address), "bytes", len(p.Data))
	}
	t.logger.Info("💾 Wrote image to device", "parts", len(img.Parts), "bytes", img.Size())
	return nil
}

// DumpConfig copies one configuration section off a device. A slot holding
// no section is an error; a corrupted one is copied as is.
func (t *Toolkit) DumpConfig(ctx context.Context, dev device.Device, slot layout.Slot, out string, backup bool) error {
	section, err := device.ReadSection(ctx, dev, t.Layout, slot)
	if err != nil {
		return err
	}
	if _, err := storage.DecodeFooter(section, int(t.Layout.SectionSize)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSlotNotPresent, slot, err)
	}

	if FormatOf(out) == FormatBinary {
		return WriteFile(out, section, backup)
	}
	img, err := flashimage.NewImage(flashimage.Part{Address: t.Layout.Offset(slot), Data: section})
	if err != nil {
		return err
	}
	return t.WriteImage(out, img, backup)
}

// DumpFlash copies the whole flash region off a device.
func (t *Toolkit) DumpFlash(ctx context.Context, dev device.Device, out string, backup bool) error {
	data, err := device.ReadFlash(ctx, dev, t.Layout)
	if err != nil {
		return err
	}
	if FormatOf(out) == FormatBinary {
		return WriteFile(out, data, backup)
	}
	return t.WriteImage(out, flashimage.FromDump(data, 0, t.Layout), backup)
}

// Summarize describes every part of an image file. Configuration parts are
// decoded when a schema is loaded.
func (t *Toolkit) Summarize(path string, algo uf2.DigestAlgorithm) (uf2.Report, error) {
	img, err := t.ReadImage(path)
	if err != nil {
		return uf2.Report{}, err
	}
	return uf2.Summarize(img, t.Layout, t.Codec, algo), nil
}

// VerifyFile checks a file against an "algorithm:hex" digest.
func VerifyFile(path, digest string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	ok, err := uf2.VerifyDigest(data, digest)
	if err != nil {
		return err
	}
	if !ok {
		algo, _, _ := uf2.ParseDigest(digest)
		return fmt.Errorf("%w: %s is %s", ErrDigestMismatch, path, uf2.CalculateDigest(data, algo))
	}
	return nil
}

// sectorRuns joins parts that share an erase sector, filling the bytes
// between them with 0xFF, so that no sector is written twice.
func sectorRuns(parts []flashimage.Part) []flashimage.Part {
	const sector = layout.EraseSectorSize
	var runs []flashimage.Part
	for _, p := range parts {
		if n := len(runs); n > 0 {
			last := &runs[n-1]
			lastSector := (last.End() + sector - 1) / sector * sector
			if uint64(p.Address)/sector*sector < lastSector {
				gap := int(uint64(p.Address) - last.End())
				last.Data = append(last.Data, bytes.Repeat([]byte{0xFF}, gap)...)
				last.Data = append(last.Data, p.Data...)
				continue
			}
		}
		runs = append(runs, flashimage.Part{Address: p.Address, Data: bytes.Clone(p.Data)})
	}
	return runs
}
