package layout

import "fmt"

// Validate checks that the sections sit back to back at the end of flash.
// It does not modify the layout.
func (l Layout) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("layout has no name")
	}
	if l.SectionSize == 0 {
		return fmt.Errorf("layout %q: section_size must be positive", l.Name)
	}
	if l.SectionSize%EraseSectorSize != 0 {
		return fmt.Errorf("layout %q: section_size %d is not a multiple of the %d byte erase sector",
			l.Name, l.SectionSize, EraseSectorSize)
	}
	if l.UserConfigOffset+l.SectionSize != l.FlashEnd {
		return fmt.Errorf("layout %q: user config at 0x%X plus section 0x%X does not end at 0x%X",
			l.Name, l.UserConfigOffset, l.SectionSize, l.FlashEnd)
	}
	if l.BoardConfigOffset+l.SectionSize != l.UserConfigOffset {
		return fmt.Errorf("layout %q: board config at 0x%X plus section 0x%X does not reach user config at 0x%X",
			l.Name, l.BoardConfigOffset, l.SectionSize, l.UserConfigOffset)
	}
	if uint64(l.Base)+uint64(l.FlashEnd) > 1<<32 {
		return fmt.Errorf("layout %q: flash end 0x%X overflows base 0x%X", l.Name, l.FlashEnd, l.Base)
	}
	return nil
}
