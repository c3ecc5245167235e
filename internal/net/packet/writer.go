package packet

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/unicode/norm"
)

// Writer builds a message payload. All multi-byte writes are little-endian
// and there is no padding.
type Writer struct {
	buf []byte
}

func NewWriter(op Opcode) *Writer {
	w := &Writer{buf: make([]byte, 0, 64)}
	w.WriteU32(uint32(op))
	return w
}

func (w *Writer) WriteU32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteU64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *Writer) WriteF32(v float32) {
	w.WriteU32(math.Float32bits(v))
}

func (w *Writer) WriteVec3(v [3]float32) {
	for _, f := range v {
		w.WriteF32(f)
	}
}

// WriteString writes s in NFC form behind a u64 byte length.
func (w *Writer) WriteString(s string) {
	s = norm.NFC.String(s)
	w.WriteU64(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}
