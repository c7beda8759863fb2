// Completion: 100% - Byte stream complete
package codegen

import (
	"encoding/binary"
	"fmt"
)

// Stream is the growing instruction byte stream of one build.
// Every append happens at the end; placeholders are patched in place.
type Stream struct {
	buf []byte
}

// NewStream creates an empty stream
func NewStream() *Stream {
	return &Stream{buf: make([]byte, 0, 1024)}
}

// StreamFrom returns a stream holding a copy of code, so finished output
// can be patched through the same checked calls as the encoder uses
func StreamFrom(code []byte) *Stream {
	return &Stream{buf: append([]byte(nil), code...)}
}

// Len returns the current write position
func (s *Stream) Len() int {
	return len(s.buf)
}

// Bytes returns a copy of the stream contents
func (s *Stream) Bytes() []byte {
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}

// Write appends one byte and returns the number of bytes written
func (s *Stream) Write(b byte) int {
	s.buf = append(s.buf, b)
	return 1
}

// WriteN appends n copies of b
func (s *Stream) WriteN(b byte, n int) int {
	for i := 0; i < n; i++ {
		s.buf = append(s.buf, b)
	}
	return n
}

// WriteBytes appends bs
func (s *Stream) WriteBytes(bs ...byte) int {
	s.buf = append(s.buf, bs...)
	return len(bs)
}

// Write4u appends a little-endian 32-bit value
func (s *Stream) Write4u(v uint32) int {
	s.buf = binary.LittleEndian.AppendUint32(s.buf, v)
	return 4
}

// Write8u appends a little-endian 64-bit value
func (s *Stream) Write8u(v uint64) int {
	s.buf = binary.LittleEndian.AppendUint64(s.buf, v)
	return 8
}

func (s *Stream) check(off, n int) error {
	if off < 0 || off+n > len(s.buf) {
		return fmt.Errorf("patch at 0x%x (%d bytes) outside stream of %d bytes", off, n, len(s.buf))
	}
	return nil
}

// PatchUint32 overwrites four bytes at off
func (s *Stream) PatchUint32(off int, v uint32) error {
	if err := s.check(off, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(s.buf[off:], v)
	return nil
}

// PatchInt32 overwrites a signed 32-bit field at off
func (s *Stream) PatchInt32(off int, v int32) error {
	return s.PatchUint32(off, uint32(v))
}

// PatchUint64 overwrites eight bytes at off
func (s *Stream) PatchUint64(off int, v uint64) error {
	if err := s.check(off, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(s.buf[off:], v)
	return nil
}

// Int32At reads the signed 32-bit field at off
func (s *Stream) Int32At(off int) (int32, error) {
	if err := s.check(off, 4); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(s.buf[off:])), nil
}

// tail returns the bytes written since start, for tracing
func (s *Stream) tail(start int) []byte {
	if start < 0 || start > len(s.buf) {
		return nil
	}
	return s.buf[start:]
}
