// Package layout describes where GP2040-CE keeps its configuration sections
// in flash. Each firmware generation uses a fixed table of offsets; layouts
// are plain values handed to the codecs that need them.
package layout

import "fmt"

// Slot names one of the two configuration sections.
type Slot int

const (
	// BoardConfig is the factory default section written with the firmware.
	BoardConfig Slot = iota
	// UserConfig is the section the firmware rewrites when settings change.
	UserConfig
)

func (s Slot) String() string {
	switch s {
	case BoardConfig:
		return "board-config"
	case UserConfig:
		return "user-config"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// Layout is one firmware generation's flash map. Offsets are relative to the
// start of flash; Base is the address flash offset 0 is mapped to.
type Layout struct {
	Name              string `yaml:"name"`
	Base              uint32 `yaml:"base"`
	SectionSize       uint32 `yaml:"section_size"`
	BoardConfigOffset uint32 `yaml:"board_config_offset"`
	UserConfigOffset  uint32 `yaml:"user_config_offset"`
	FlashEnd          uint32 `yaml:"flash_end"`
}

// Offset returns the flash offset of a slot.
func (l Layout) Offset(s Slot) uint32 {
	if s == BoardConfig {
		return l.BoardConfigOffset
	}
	return l.UserConfigOffset
}

// Address returns the mapped address of a slot.
func (l Layout) Address(s Slot) uint32 {
	return l.Base + l.Offset(s)
}

// StorageStart is the first flash offset holding configuration.
func (l Layout) StorageStart() uint32 {
	return l.BoardConfigOffset
}

func (l Layout) String() string {
	return fmt.Sprintf("%s (section %d, board 0x%X, user 0x%X, end 0x%X)",
		l.Name, l.SectionSize, l.BoardConfigOffset, l.UserConfigOffset, l.FlashEnd)
}
