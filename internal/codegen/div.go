// Completion: 100% - Instruction implementation complete
package codegen

// Signed division: rdx:rax / src, quotient in rax, remainder in rdx.
// Division by zero is not checked and traps at run time.

// Cqo sign-extends rax into rdx
func (o *Out) Cqo() {
	start := o.Pos()
	o.Write(0x48)
	o.Write(0x99)
	o.trace(start, "cqo")
}

// IdivReg emits idiv src (REX.W F7 /7)
func (o *Out) IdivReg(src string) {
	start := o.Pos()
	s := reg(src)
	o.Write(0x48 | s>>3)
	o.Write(0xF7)
	o.Write(modRM(3, 7, s))
	o.trace(start, "idiv %s", src)
}
