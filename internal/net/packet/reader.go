package packet

import (
	"encoding/binary"
	"errors"
	"math"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrShortPayload  = errors.New("packet: short payload")
	ErrUnknownOpcode = errors.New("packet: unknown opcode")
	ErrTooLarge      = errors.New("packet: payload too large")
)

// Reader reads little-endian fields from a payload. Bytes 0-3 are the opcode.
// The first read past the end sets a sticky ErrShortPayload and every later
// read returns zero.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 4} // skip opcode
}

func (r *Reader) Opcode() Opcode {
	if len(r.data) < 4 {
		return OpNoop
	}
	return Opcode(binary.LittleEndian.Uint32(r.data))
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = ErrShortPayload
		r.off = len(r.data)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) ReadU32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) ReadU64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) ReadF32() float32 {
	return math.Float32frombits(r.ReadU32())
}

func (r *Reader) ReadVec3() [3]float32 {
	return [3]float32{r.ReadF32(), r.ReadF32(), r.ReadF32()}
}

// ReadString reads a u64 length followed by that many UTF-8 bytes, returned
// in NFC form.
func (r *Reader) ReadString() string {
	n := r.ReadU64()
	if r.err != nil {
		return ""
	}
	if n > uint64(r.Remaining()) {
		r.err = ErrShortPayload
		r.off = len(r.data)
		return ""
	}
	return norm.NFC.String(string(r.take(int(n))))
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) Err() error { return r.err }
