package uf2

import (
	"encoding/binary"
	"fmt"

	storeerr "github.com/gp2040ce/bintools/pkg/storage/errors"
)

// Block is one 512 byte UF2 transfer unit.
type Block struct {
	Flags       uint32
	TargetAddr  uint32
	PayloadSize uint32
	BlockNo     uint32
	NumBlocks   uint32
	FamilyID    uint32
	Data        [DataSize]byte
}

// Payload returns the bytes the block writes.
func (b *Block) Payload() []byte {
	n := b.PayloadSize
	if n > PayloadSize {
		n = PayloadSize
	}
	return b.Data[:n]
}

// Pack serializes the block to exactly 512 bytes
func (b *Block) Pack() []byte {
	buf := make([]byte, BlockSize)
	b.packInto(buf)
	return buf
}

func (b *Block) packInto(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], MagicStart0)
	binary.LittleEndian.PutUint32(buf[4:8], MagicStart1)
	binary.LittleEndian.PutUint32(buf[8:12], b.Flags)
	binary.LittleEndian.PutUint32(buf[12:16], b.TargetAddr)
	binary.LittleEndian.PutUint32(buf[16:20], b.PayloadSize)
	binary.LittleEndian.PutUint32(buf[20:24], b.BlockNo)
	binary.LittleEndian.PutUint32(buf[24:28], b.NumBlocks)
	binary.LittleEndian.PutUint32(buf[28:32], b.FamilyID)
	copy(buf[headerSize:endMagicSpot], b.Data[:])
	binary.LittleEndian.PutUint32(buf[endMagicSpot:BlockSize], MagicEnd)
}

// UnpackBlock parses one block, checking magics and the payload size.
// offset is the block's position in the stream, for error messages.
func UnpackBlock(data []byte, offset int) (*Block, error) {
	if len(data) != BlockSize {
		return nil, &storeerr.FormatError{Op: "uf2 block", Offset: offset,
			Reason: fmt.Sprintf("block is %d bytes, expected %d", len(data), BlockSize)}
	}
	if m0, m1 := binary.LittleEndian.Uint32(data[0:4]), binary.LittleEndian.Uint32(data[4:8]); m0 != MagicStart0 || m1 != MagicStart1 {
		return nil, &storeerr.FormatError{Op: "uf2 block", Offset: offset,
			Reason: fmt.Sprintf("bad start magic 0x%08x 0x%08x", m0, m1)}
	}
	if m := binary.LittleEndian.Uint32(data[endMagicSpot:BlockSize]); m != MagicEnd {
		return nil, &storeerr.FormatError{Op: "uf2 block", Offset: offset + endMagicSpot,
			Reason: fmt.Sprintf("bad end magic 0x%08x", m)}
	}

	b := &Block{
		Flags:       binary.LittleEndian.Uint32(data[8:12]),
		TargetAddr:  binary.LittleEndian.Uint32(data[12:16]),
		PayloadSize: binary.LittleEndian.Uint32(data[16:20]),
		BlockNo:     binary.LittleEndian.Uint32(data[20:24]),
		NumBlocks:   binary.LittleEndian.Uint32(data[24:28]),
		FamilyID:    binary.LittleEndian.Uint32(data[28:32]),
	}
	copy(b.Data[:], data[headerSize:endMagicSpot])

	if b.PayloadSize > PayloadSize {
		return nil, &storeerr.FormatError{Op: "uf2 block", Offset: offset + 16,
			Reason: fmt.Sprintf("payload size %d exceeds %d", b.PayloadSize, PayloadSize)}
	}
	return b, nil
}

// Marshal concatenates packed blocks.
func Marshal(blocks []Block) []byte {
	out := make([]byte, len(blocks)*BlockSize)
	for i := range blocks {
		blocks[i].packInto(out[i*BlockSize : (i+1)*BlockSize])
	}
	return out
}

// Unmarshal splits a stream into blocks. The stream length must be a
// multiple of the block size.
func Unmarshal(stream []byte) ([]Block, error) {
	if len(stream)%BlockSize != 0 {
		return nil, &storeerr.FormatError{Op: "uf2 stream", Offset: len(stream) - len(stream)%BlockSize,
			Reason: fmt.Sprintf("length %d is not a multiple of %d", len(stream), BlockSize)}
	}
	blocks := make([]Block, 0, len(stream)/BlockSize)
	for off := 0; off < len(stream); off += BlockSize {
		b, err := UnpackBlock(stream[off:off+BlockSize], off)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *b)
	}
	return blocks, nil
}
