package gfx

import (
	"encoding/binary"
	"math"
)

// Float32Bytes encodes vs as little-endian f32s, the layout of storage buffers.
func Float32Bytes(vs ...float32) []byte {
	out := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// Float32s decodes little-endian f32s. Trailing bytes are ignored.
func Float32s(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// Uint32At reads the little-endian u32 at word index i.
func Uint32At(data []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(data[i*4:])
}

func PutUint32At(data []byte, i int, v uint32) {
	binary.LittleEndian.PutUint32(data[i*4:], v)
}
