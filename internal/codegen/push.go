// Completion: 100% - Instruction implementation complete
package codegen

// PUSH/POP instructions for stack management:
//   - Function prologue/epilogue
//   - Saving the left operand of a binary expression
//   - Passing call arguments
//   - Keeping loop counters alive across a loop body

// PushReg pushes a register value onto the stack
func (o *Out) PushReg(r string) {
	start := o.Pos()
	enc := reg(r)

	// PUSH uses compact encoding: 0x50 + reg
	// For extended registers (R8-R15), need REX prefix
	if enc >= 8 {
		o.Write(0x41) // REX.B
	}
	o.Write(0x50 + enc&7)

	o.stack.Push(r)
	o.trace(start, "push %s", r)
}

// PopReg pops a value from the stack into a register
func (o *Out) PopReg(r string) error {
	start := o.Pos()
	enc := reg(r)

	// POP uses compact encoding: 0x58 + reg
	if enc >= 8 {
		o.Write(0x41) // REX.B
	}
	o.Write(0x58 + enc&7)

	o.trace(start, "pop %s", r)
	return o.stack.Pop(r)
}
