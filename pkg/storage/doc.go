// Package storage reads and writes GP2040-CE configuration sections.
//
// A section is a fixed-size region at the end of flash. The serialized
// configuration sits immediately before a 12 byte footer that always ends the
// section; the bytes in front of the payload are erased flash (0xFF):
//
//	+---------------------+----------------+--------------------------------+
//	| 0xFF fill           | payload        | footer                         |
//	|                     | (protobuf)     | len u32 | crc32 u32 | 65E3F1D2 |
//	+---------------------+----------------+--------------------------------+
//	0                     size-12-len      size-12                    size
//
// All integers are little endian. A section whose footer magic is missing is
// absent; a section whose length or checksum does not hold, or whose payload
// does not parse, is corrupted. Both fall back to an empty configuration but
// are reported differently.
package storage
