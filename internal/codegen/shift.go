// Completion: 100% - Instruction implementation complete
package codegen

// Shift instructions. The variable-count forms shift by cl.

// ShlRegByCL emits shl dst, cl (REX.W D3 /4)
func (o *Out) ShlRegByCL(dst string) {
	o.shiftCL(4, "shl", dst)
}

// ShrRegByCL emits shr dst, cl (REX.W D3 /5), a logical right shift
func (o *Out) ShrRegByCL(dst string) {
	o.shiftCL(5, "shr", dst)
}

func (o *Out) shiftCL(ext uint8, name, dst string) {
	start := o.Pos()
	d := reg(dst)
	o.Write(0x48 | d>>3)
	o.Write(0xD3)
	o.Write(modRM(3, ext, d))
	o.trace(start, "%s %s, cl", name, dst)
}

// ShlRegImm emits shl dst, imm8 (REX.W C1 /4 ib)
func (o *Out) ShlRegImm(dst string, imm uint8) {
	start := o.Pos()
	d := reg(dst)
	o.Write(0x48 | d>>3)
	o.Write(0xC1)
	o.Write(modRM(3, 4, d))
	o.Write(imm)
	o.trace(start, "shl %s, %d", dst, imm)
}
