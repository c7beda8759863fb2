// Completion: 100% - Instruction implementation complete
package codegen

// MovzxRegFromByte emits movzx dst, src8 (REX.W 0F B6 /r)
func (o *Out) MovzxRegFromByte(dst, src8 string) {
	start := o.Pos()
	d, s := reg(dst), reg(src8)
	o.Write(rexW(d, s))
	o.Write(0x0F)
	o.Write(0xB6)
	o.Write(modRM(3, d, s))
	o.trace(start, "movzx %s, %s", dst, src8)
}
