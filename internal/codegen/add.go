// Completion: 100% - Instruction implementation complete
package codegen

// ADD/SUB instructions for arithmetic and stack pointer adjustment

// AddRegToReg emits add dst, src (01 /r)
func (o *Out) AddRegToReg(dst, src string) {
	o.aluRegReg(0x01, "add", dst, src)
}

// SubRegFromReg emits sub dst, src (29 /r)
func (o *Out) SubRegFromReg(dst, src string) {
	o.aluRegReg(0x29, "sub", dst, src)
}

func (o *Out) aluRegReg(opcode uint8, name, dst, src string) {
	start := o.Pos()
	d, s := reg(dst), reg(src)
	o.Write(rexW(s, d))
	o.Write(opcode)
	o.Write(modRM(3, s, d))
	o.trace(start, "%s %s, %s", name, dst, src)
}

// AddImmToReg emits add dst, imm using the imm8 form when it fits
func (o *Out) AddImmToReg(dst string, imm int32) {
	o.aluImm(0, "add", dst, imm)
}

// SubImmFromReg emits sub dst, imm using the imm8 form when it fits
func (o *Out) SubImmFromReg(dst string, imm int32) {
	o.aluImm(5, "sub", dst, imm)
}

func (o *Out) aluImm(ext uint8, name, dst string, imm int32) {
	start := o.Pos()
	d := reg(dst)
	o.Write(0x48 | d>>3)
	if imm >= -128 && imm <= 127 {
		o.Write(0x83)
		o.Write(modRM(3, ext, d))
		o.Write(uint8(int8(imm)))
	} else {
		o.Write(0x81)
		o.Write(modRM(3, ext, d))
		o.disp32(imm)
	}
	o.trace(start, "%s %s, %d", name, dst, imm)
}

// SubImm32FromReg always emits the imm32 form (REX.W 81 /5) and returns the
// offset of the immediate. Used for the frame size placeholder.
func (o *Out) SubImm32FromReg(dst string, imm int32) int {
	start := o.Pos()
	d := reg(dst)
	o.Write(0x48 | d>>3)
	o.Write(0x81)
	o.Write(modRM(3, 5, d))
	at := o.Pos()
	o.disp32(imm)
	o.trace(start, "sub %s, %d", dst, imm)
	return at
}
