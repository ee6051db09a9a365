package uf2

const (
	BlockSize    = 512
	PayloadSize  = 256
	DataSize     = 476
	headerSize   = 32
	endMagicSpot = 508

	MagicStart0 uint32 = 0x0A324655
	MagicStart1 uint32 = 0x9E5D5157
	MagicEnd    uint32 = 0x0AB16F30

	FlagNotMainFlash    uint32 = 0x00000001
	FlagFileContainer   uint32 = 0x00001000
	FlagFamilyIDPresent uint32 = 0x00002000

	// FamilyRP2040 identifies RP2040 firmware.
	FamilyRP2040 uint32 = 0xE48BFF56
)
