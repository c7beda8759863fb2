package link

import (
	"bytes"
	"encoding/binary"
)

// writer accumulates a container image, little-endian throughout
type writer struct {
	buf bytes.Buffer
}

func (w *writer) Write(b byte) {
	w.buf.WriteByte(b)
}

func (w *writer) WriteN(b byte, n int) {
	for range n {
		w.buf.WriteByte(b)
	}
}

func (w *writer) WriteBytes(bs []byte) {
	w.buf.Write(bs)
}

func (w *writer) Write2(v uint16) {
	w.buf.Write(binary.LittleEndian.AppendUint16(nil, v))
}

func (w *writer) Write4(v uint32) {
	w.buf.Write(binary.LittleEndian.AppendUint32(nil, v))
}

func (w *writer) Write8u(v uint64) {
	w.buf.Write(binary.LittleEndian.AppendUint64(nil, v))
}

// PadTo zero-fills up to offset n
func (w *writer) PadTo(n int) {
	if n > w.buf.Len() {
		w.WriteN(0, n-w.buf.Len())
	}
}

func (w *writer) Len() int {
	return w.buf.Len()
}

func (w *writer) Bytes() []byte {
	return w.buf.Bytes()
}

func alignTo(value, align uint32) uint32 {
	return (value + align - 1) &^ (align - 1)
}
