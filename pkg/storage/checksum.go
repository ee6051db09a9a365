package storage

import "github.com/snksoft/crc"

// Checksum is the CRC-32 (IEEE, reflected) the firmware stores in footers.
func Checksum(data []byte) uint32 {
	return uint32(crc.CalculateCRC(crc.CRC32, data))
}
