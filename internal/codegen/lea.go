// Completion: 100% - Instruction implementation complete
package codegen

// LeaLocal emits lea dst, [rbp+disp32]
func (o *Out) LeaLocal(dst string, disp int32) {
	start := o.Pos()
	d := reg(dst)
	o.Write(rexW(d, 0))
	o.Write(0x8D)
	o.Write(modRM(2, d, 5))
	o.disp32(disp)
	o.trace(start, "lea %s, [rbp%+d]", dst, disp)
}
