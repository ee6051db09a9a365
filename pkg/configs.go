package pkg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/gp2040ce/bintools/pkg/device"
	"github.com/gp2040ce/bintools/pkg/flashimage"
	"github.com/gp2040ce/bintools/pkg/layout"
	"github.com/gp2040ce/bintools/pkg/storage"
)

// LoadRequest describes where to read a configuration from.
type LoadRequest struct {
	Path string
	Slot layout.Slot
	// WholeBoard requires the input to be a flash dump rather than a lone
	// section.
	WholeBoard bool
	// NewIfNotFound yields an empty configuration when Path does not exist
	// or the slot holds no section.
	NewIfNotFound bool
}

// LoadConfig reads one slot from a section file, a flash dump in any image
// format, or a JSON document.
func (t *Toolkit) LoadConfig(req LoadRequest) (*storage.SlotResult, error) {
	codec, err := t.codec()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(req.Path)
	if err != nil {
		if req.NewIfNotFound && errors.Is(err, fs.ErrNotExist) {
			t.logger.Info("🆕 No configuration file, starting empty", "path", req.Path)
			return &storage.SlotResult{Slot: req.Slot, State: storage.SlotAbsent, Offset: -1, Config: codec.Default()}, nil
		}
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	format := FormatOf(req.Path)
	if format == FormatJSON {
		cfg, err := codec.FromJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", req.Path, err)
		}
		return &storage.SlotResult{Slot: req.Slot, State: storage.SlotValid, Config: cfg}, nil
	}

	buf := data
	if format != FormatBinary {
		img, err := t.DecodeImage(data, format)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", req.Path, err)
		}
		if buf, err = img.Flatten(0, 0x00); err != nil {
			return nil, err
		}
	}
	if req.WholeBoard && len(buf) <= int(t.Layout.SectionSize) {
		return nil, fmt.Errorf("%s: %w", req.Path, ErrNotWholeBoard)
	}

	res, err := codec.Load(buf, req.Slot)
	if err != nil {
		if req.NewIfNotFound {
			return &storage.SlotResult{Slot: req.Slot, State: storage.SlotAbsent, Offset: -1, Config: codec.Default(), Err: err}, nil
		}
		return nil, fmt.Errorf("%s: %w", req.Path, err)
	}
	return t.checkSlot(res, req.NewIfNotFound)
}

// LoadDeviceConfig reads one slot straight from a device.
func (t *Toolkit) LoadDeviceConfig(ctx context.Context, dev device.Device, slot layout.Slot, newIfNotFound bool) (*storage.SlotResult, error) {
	codec, err := t.codec()
	if err != nil {
		return nil, err
	}
	section, err := device.ReadSection(ctx, dev, t.Layout, slot)
	if err != nil {
		return nil, err
	}
	res := codec.LoadSection(section, slot)
	return t.checkSlot(&res, newIfNotFound)
}

func (t *Toolkit) checkSlot(res *storage.SlotResult, newIfNotFound bool) (*storage.SlotResult, error) {
	switch res.State {
	case storage.SlotAbsent:
		if !newIfNotFound {
			return nil, fmt.Errorf("%w: %s", ErrSlotNotPresent, res.Slot)
		}
		t.logger.Info("🆕 Slot is empty, starting a new configuration", "slot", res.Slot)
	case storage.SlotCorrupted:
		t.logger.Warn("⚠️ Configuration is corrupted, showing defaults", "slot", res.Slot, "reason", res.Err)
	}
	return res, nil
}

// SaveConfig writes msg into the slot of the file at path. An existing
// image or dump keeps everything outside the slot; a missing file becomes
// a lone section (flat binary) or an image holding only that section.
func (t *Toolkit) SaveConfig(path string, msg protoreflect.Message, slot layout.Slot, backup bool) error {
	codec, err := t.codec()
	if err != nil {
		return err
	}

	format := FormatOf(path)
	if format == FormatJSON {
		data, err := codec.Schema().ToJSON(msg)
		if err != nil {
			return err
		}
		return WriteFile(path, data, backup)
	}

	section, err := codec.EncodeMessage(msg)
	if err != nil {
		return err
	}

	existing, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		existing = nil
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if format == FormatBinary {
		out := section
		if len(existing) > int(t.Layout.SectionSize) {
			origin := storage.DumpStart(len(existing), t.Layout)
			if out, err = flashimage.InjectSection(existing, section, origin, slot, t.Layout); err != nil {
				return err
			}
		}
		t.logger.Info("💾 Saving configuration", "path", path, "slot", slot, "bytes", len(out))
		return WriteFile(path, out, backup)
	}

	img := flashimage.Image{}
	if existing != nil {
		if img, err = t.DecodeImage(existing, format); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	img, err = img.Overlay(flashimage.Part{Address: t.Layout.Offset(slot), Data: section})
	if err != nil {
		return err
	}
	return t.WriteImage(path, img, backup)
}

// SaveDeviceConfig writes msg into the slot of a device.
func (t *Toolkit) SaveDeviceConfig(ctx context.Context, dev device.Device, msg protoreflect.Message, slot layout.Slot) error {
	codec, err := t.codec()
	if err != nil {
		return err
	}
	data, err := codec.EncodeWithFooter(msg)
	if err != nil {
		return err
	}
	if err := device.WriteSection(ctx, dev, t.Layout, slot, data); err != nil {
		return err
	}
	t.logger.Info("💾 Wrote configuration to device", "slot", slot, "bytes", len(data))
	return nil
}

// Render formats a configuration as protobuf text or, with asJSON, as JSON.
func (t *Toolkit) Render(msg protoreflect.Message, asJSON bool) ([]byte, error) {
	codec, err := t.codec()
	if err != nil {
		return nil, err
	}
	if asJSON {
		return codec.Schema().ToJSON(msg)
	}
	return prototext.MarshalOptions{Multiline: true, Indent: "    "}.Marshal(msg.Interface())
}
