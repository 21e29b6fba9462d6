// Package bytecode defines the packaged program format shared by the
// compiler and the virtual machine: a small header, a data segment, and a
// stream of little-endian 32-bit instruction words.
package bytecode

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed prefix before the data segment. Bytes 8..11
// hold the little-endian offset of the first instruction (header
// included); the rest are reserved.
const HeaderSize = 12

// Image is an unpacked program.
type Image struct {
	Data         []byte // data segment, header excluded
	Instructions []uint32
}

// Pack serializes the image into the on-disk format.
func (img *Image) Pack() []byte {
	out := make([]byte, HeaderSize, HeaderSize+len(img.Data)+4*len(img.Instructions))
	binary.LittleEndian.PutUint32(out[8:], uint32(HeaderSize+len(img.Data)))
	out = append(out, img.Data...)
	for _, w := range img.Instructions {
		out = binary.LittleEndian.AppendUint32(out, w)
	}
	return out
}

// Load parses a packed program.
func Load(raw []byte) (*Image, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("bytecode: file too short (%d bytes)", len(raw))
	}
	dataEnd := binary.LittleEndian.Uint32(raw[8:12])
	if dataEnd < HeaderSize || int(dataEnd) > len(raw) {
		return nil, fmt.Errorf("bytecode: data segment length %d out of range", dataEnd)
	}
	rest := raw[dataEnd:]
	if len(rest)%4 != 0 {
		return nil, fmt.Errorf("bytecode: instruction stream length %d is not word-aligned", len(rest))
	}
	img := &Image{
		Data:         raw[HeaderSize:dataEnd],
		Instructions: make([]uint32, 0, len(rest)/4),
	}
	for i := 0; i < len(rest); i += 4 {
		img.Instructions = append(img.Instructions, binary.LittleEndian.Uint32(rest[i:]))
	}
	return img, nil
}

// DataMem returns the initial contents of data memory: the header bytes
// (the size word remains readable at addresses 8..11) followed by the
// data segment.
func (img *Image) DataMem() []byte {
	mem := make([]byte, HeaderSize+len(img.Data))
	binary.LittleEndian.PutUint32(mem[8:], uint32(HeaderSize+len(img.Data)))
	copy(mem[HeaderSize:], img.Data)
	return mem
}
