package pkg

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gp2040ce/bintools/pkg/flashimage"
	"github.com/gp2040ce/bintools/pkg/uf2"
	"github.com/gp2040ce/bintools/pkg/utils/permissions"
)

// Format is an on-disk image format, chosen by file suffix.
type Format int

const (
	FormatBinary Format = iota
	FormatUF2
	FormatHex
	FormatJSON
)

// FormatOf maps a file name to its format; unknown suffixes are flat binary.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".uf2":
		return FormatUF2
	case ".hex", ".ihex":
		return FormatHex
	case ".json":
		return FormatJSON
	default:
		return FormatBinary
	}
}

func (f Format) String() string {
	switch f {
	case FormatUF2:
		return "uf2"
	case FormatHex:
		return "hex"
	case FormatJSON:
		return "json"
	default:
		return "bin"
	}
}

// DecodeImage turns file contents into an image with flash-relative
// addresses, each configuration section in a part of its own.
func (t *Toolkit) DecodeImage(data []byte, f Format) (flashimage.Image, error) {
	var (
		img flashimage.Image
		err error
	)
	switch f {
	case FormatUF2:
		img, err = uf2.Decode(data)
	case FormatHex:
		img, err = flashimage.ReadIntelHex(bytes.NewReader(data))
	case FormatBinary:
		return flashimage.FromDump(data, 0, t.Layout), nil
	default:
		return flashimage.Image{}, fmt.Errorf("%s files do not hold flash images", f)
	}
	if err != nil {
		return flashimage.Image{}, err
	}

	if len(img.Parts) > 0 && img.Start() >= t.Layout.Base {
		if img, err = img.Relocate(t.Layout.Base, 0); err != nil {
			return flashimage.Image{}, err
		}
	}
	return img.Split(t.Layout), nil
}

// ReadImage reads and decodes an image file.
func (t *Toolkit) ReadImage(path string) (flashimage.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return flashimage.Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	img, err := t.DecodeImage(data, FormatOf(path))
	if err != nil {
		return flashimage.Image{}, fmt.Errorf("%s: %w", path, err)
	}
	t.logger.Debug("📖 Read image", "path", path, "parts", len(img.Parts), "bytes", img.Size())
	return img, nil
}

// EncodeImage renders a flash-relative image in format f. Flat binaries
// start at flash offset 0 with gaps zero filled; UF2 and Intel HEX carry
// mapped addresses.
func (t *Toolkit) EncodeImage(img flashimage.Image, f Format) ([]byte, error) {
	switch f {
	case FormatBinary:
		return img.Flatten(0, 0x00)
	case FormatUF2, FormatHex:
		mapped, err := img.Rebase(t.Layout.Base)
		if err != nil {
			return nil, err
		}
		if f == FormatUF2 {
			return uf2.EncodeImage(mapped, uf2.FamilyRP2040)
		}
		var buf bytes.Buffer
		if err := flashimage.WriteIntelHex(&buf, mapped); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("cannot write a flash image as %s", f)
	}
}

// WriteImage encodes img in the format the path's suffix names.
func (t *Toolkit) WriteImage(path string, img flashimage.Image, backup bool) error {
	data, err := t.EncodeImage(img, FormatOf(path))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := WriteFile(path, data, backup); err != nil {
		return err
	}
	t.logger.Info("💾 Wrote image", "path", path, "format", FormatOf(path), "bytes", len(data))
	return nil
}

// WriteFile replaces path with data. The new contents go to a temporary
// file that is renamed into place, so a failed write leaves the old file.
// With backup, an existing file is first renamed to path.old.
func WriteFile(path string, data []byte, backup bool) error {
	mode := permissions.ModeFor(path, permissions.DefaultFilePerms)

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("failed to set output mode: %w", err)
	}

	if backup {
		if _, err := os.Stat(path); err == nil {
			if err := os.Rename(path, path+".old"); err != nil {
				return fmt.Errorf("failed to back up %s: %w", path, err)
			}
		}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
