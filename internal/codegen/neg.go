// Completion: 100% - Instruction implementation complete
package codegen

// NegReg emits neg reg (REX.W F7 /3), two's complement negation
func (o *Out) NegReg(r string) {
	o.unaryF7(3, "neg", r)
}

// NotReg emits not reg (REX.W F7 /2), bitwise complement
func (o *Out) NotReg(r string) {
	o.unaryF7(2, "not", r)
}

func (o *Out) unaryF7(ext uint8, name, r string) {
	start := o.Pos()
	enc := reg(r)
	o.Write(0x48 | enc>>3)
	o.Write(0xF7)
	o.Write(modRM(3, ext, enc))
	o.trace(start, "%s %s", name, r)
}
