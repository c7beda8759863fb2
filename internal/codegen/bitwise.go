// Completion: 100% - Instruction implementation complete
package codegen

// AndRegWithReg emits and dst, src (21 /r)
func (o *Out) AndRegWithReg(dst, src string) {
	o.aluRegReg(0x21, "and", dst, src)
}

// OrRegWithReg emits or dst, src (09 /r)
func (o *Out) OrRegWithReg(dst, src string) {
	o.aluRegReg(0x09, "or", dst, src)
}

// XorRegWithReg emits xor dst, src (31 /r)
func (o *Out) XorRegWithReg(dst, src string) {
	o.aluRegReg(0x31, "xor", dst, src)
}

// ZeroReg emits xor r32, r32, which clears the full 64-bit register
func (o *Out) ZeroReg(r string) {
	start := o.Pos()
	enc := reg(r)
	if rex := rexOpt(enc, enc); rex != 0 {
		o.Write(rex)
	}
	o.Write(0x31)
	o.Write(modRM(3, enc, enc))
	o.trace(start, "xor %s32, %s32", r, r)
}
