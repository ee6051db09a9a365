// Package uf2 converts flash images to and from UF2, the block format the
// RP2040 boot ROM accepts over USB mass storage.
//
// Every block is 512 bytes, little endian:
//
//	offset  size  field
//	0       4     magic 0x0A324655 ("UF2\n")
//	4       4     magic 0x9E5D5157
//	8       4     flags (0x2000: family id present)
//	12      4     target address
//	16      4     payload size (at most 256)
//	20      4     block number within the part
//	24      4     number of blocks in the part
//	28      4     family id (0xE48BFF56 for the RP2040)
//	32      476   data, payload in the first 256 bytes
//	508     4     magic 0x0AB16F30
//
// Block numbers and counts restart for every part of an image, so a stream
// holding firmware and a configuration section is two independent runs.
package uf2
