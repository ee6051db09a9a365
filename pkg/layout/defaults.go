package layout

// Default values for RP2040 boards.
const (
	// DefaultBase is the XIP address of flash offset 0 on the RP2040.
	DefaultBase uint32 = 0x10000000

	// DefaultFlashEnd is the end of the 2 MiB flash GP2040-CE targets.
	DefaultFlashEnd uint32 = 0x200000

	// DefaultName selects the layout used by current firmware.
	DefaultName = "standard-8k"

	// LegacyName is the layout of firmware that reserved 16 KiB per section.
	LegacyName = "legacy-16k"

	// EraseSectorSize is the RP2040 flash erase granularity.
	EraseSectorSize = 4096
)

// Standard returns the 8 KiB section layout of current firmware.
func Standard() Layout {
	return Layout{
		Name:              DefaultName,
		Base:              DefaultBase,
		SectionSize:       8192,
		BoardConfigOffset: 0x1FC000,
		UserConfigOffset:  0x1FE000,
		FlashEnd:          DefaultFlashEnd,
	}
}

// Legacy returns the 16 KiB section layout of older firmware.
func Legacy() Layout {
	return Layout{
		Name:              LegacyName,
		Base:              DefaultBase,
		SectionSize:       16384,
		BoardConfigOffset: 0x1F8000,
		UserConfigOffset:  0x1FC000,
		FlashEnd:          DefaultFlashEnd,
	}
}
