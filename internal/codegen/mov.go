// Completion: 100% - Instruction implementation complete
package codegen

// MovRegToReg emits mov dst, src (64-bit, 89 /r)
func (o *Out) MovRegToReg(dst, src string) {
	start := o.Pos()
	d, s := reg(dst), reg(src)
	o.Write(rexW(s, d))
	o.Write(0x89)
	o.Write(modRM(3, s, d))
	o.trace(start, "mov %s, %s", dst, src)
}

// MovReg32ToReg32 emits mov dst32, src32, which zero-extends into the full register
func (o *Out) MovReg32ToReg32(dst, src string) {
	start := o.Pos()
	d, s := reg(dst), reg(src)
	if rex := rexOpt(s, d); rex != 0 {
		o.Write(rex)
	}
	o.Write(0x89)
	o.Write(modRM(3, s, d))
	o.trace(start, "mov %s, %s", dst, src)
}

// MovImmToReg emits mov dst, imm64 (REX.W B8+r) and returns the offset
// of the immediate, so callers can record an absolute relocation there.
func (o *Out) MovImmToReg(dst string, imm uint64) int {
	start := o.Pos()
	d := reg(dst)
	o.Write(0x48 | d>>3)
	o.Write(0xB8 + d&7)
	at := o.Pos()
	o.s.Write8u(imm)
	o.trace(start, "mov %s, 0x%x", dst, imm)
	return at
}

// MovImm32ToReg emits mov dst, simm32 (REX.W C7 /0), sign-extended to 64 bits
func (o *Out) MovImm32ToReg(dst string, imm int32) {
	start := o.Pos()
	d := reg(dst)
	o.Write(0x48 | d>>3)
	o.Write(0xC7)
	o.Write(modRM(3, 0, d))
	o.disp32(imm)
	o.trace(start, "mov %s, %d", dst, imm)
}

// MovImm32ToReg32 emits mov dst32, imm32 (B8+r)
func (o *Out) MovImm32ToReg32(dst string, imm uint32) {
	start := o.Pos()
	d := reg(dst)
	if d >= 8 {
		o.Write(0x41)
	}
	o.Write(0xB8 + d&7)
	o.s.Write4u(imm)
	o.trace(start, "mov %s, %d", dst, imm)
}

// StoreLocal emits mov [rbp+disp32], src
func (o *Out) StoreLocal(disp int32, src string) {
	start := o.Pos()
	s := reg(src)
	o.Write(rexW(s, 0))
	o.Write(0x89)
	o.Write(modRM(2, s, 5))
	o.disp32(disp)
	o.trace(start, "mov [rbp%+d], %s", disp, src)
}

// StoreLocal8 emits mov [rbp+disp8], src, used for register parameter spills
func (o *Out) StoreLocal8(disp int8, src string) {
	start := o.Pos()
	s := reg(src)
	o.Write(rexW(s, 0))
	o.Write(0x89)
	o.Write(modRM(1, s, 5))
	o.Write(uint8(disp))
	o.trace(start, "mov [rbp%+d], %s", disp, src)
}

// LoadLocal emits mov dst, [rbp+disp32]
func (o *Out) LoadLocal(dst string, disp int32) {
	start := o.Pos()
	d := reg(dst)
	o.Write(rexW(d, 0))
	o.Write(0x8B)
	o.Write(modRM(2, d, 5))
	o.disp32(disp)
	o.trace(start, "mov %s, [rbp%+d]", dst, disp)
}

// LoadMem emits mov dst, [base]
func (o *Out) LoadMem(dst, base string) {
	start := o.Pos()
	d, b := reg(dst), reg(base)
	o.Write(rexW(d, b))
	o.Write(0x8B)
	switch b & 7 {
	case 4: // rsp/r12 need a SIB byte
		o.Write(modRM(0, d, 4))
		o.Write(0x24)
	case 5: // rbp/r13 have no disp-less form
		o.Write(modRM(1, d, 5))
		o.Write(0)
	default:
		o.Write(modRM(0, d, b))
	}
	o.trace(start, "mov %s, [%s]", dst, base)
}
