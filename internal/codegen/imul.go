// Completion: 100% - Instruction implementation complete
package codegen

// ImulRegWithReg emits imul dst, src (REX.W 0F AF /r), signed 64-bit multiply
func (o *Out) ImulRegWithReg(dst, src string) {
	start := o.Pos()
	d, s := reg(dst), reg(src)
	o.Write(rexW(d, s))
	o.Write(0x0F)
	o.Write(0xAF)
	o.Write(modRM(3, d, s))
	o.trace(start, "imul %s, %s", dst, src)
}
