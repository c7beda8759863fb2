package codegen

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Out emits x86-64 instructions into a Stream.
// Instructions live one mnemonic per file, each tracing its bytes at trace level.
type Out struct {
	s     *Stream
	log   zerolog.Logger
	stack *StackValidator
}

// NewOut creates an emitter writing to s
func NewOut(s *Stream, log zerolog.Logger) *Out {
	return &Out{s: s, log: log, stack: NewStackValidator(log)}
}

// Write appends a raw byte
func (o *Out) Write(b uint8) {
	o.s.Write(b)
}

// Pos returns the current stream offset
func (o *Out) Pos() int {
	return o.s.Len()
}

func (o *Out) trace(start int, format string, args ...any) {
	if e := o.log.Trace(); e.Enabled() {
		e.Int("offset", start).Hex("bytes", o.s.tail(start)).Msg(fmt.Sprintf(format, args...))
	}
}

// disp32 writes a 32-bit displacement
func (o *Out) disp32(d int32) {
	o.s.Write4u(uint32(d))
}
