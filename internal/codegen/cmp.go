// Completion: 100% - Instruction implementation complete
package codegen

// CmpRegWithReg emits cmp a, b (REX.W 39 /r) and sets flags for a - b
func (o *Out) CmpRegWithReg(a, b string) {
	start := o.Pos()
	ra, rb := reg(a), reg(b)
	o.Write(rexW(rb, ra))
	o.Write(0x39)
	o.Write(modRM(3, rb, ra))
	o.trace(start, "cmp %s, %s", a, b)
}

// CmpRegWithLocal emits cmp r, [rbp+disp32] (REX.W 3B /r)
func (o *Out) CmpRegWithLocal(r string, disp int32) {
	start := o.Pos()
	enc := reg(r)
	o.Write(rexW(enc, 0))
	o.Write(0x3B)
	o.Write(modRM(2, enc, 5))
	o.disp32(disp)
	o.trace(start, "cmp %s, [rbp%+d]", r, disp)
}

// TestRegWithReg emits test a, b (REX.W 85 /r)
func (o *Out) TestRegWithReg(a, b string) {
	start := o.Pos()
	ra, rb := reg(a), reg(b)
	o.Write(rexW(rb, ra))
	o.Write(0x85)
	o.Write(modRM(3, rb, ra))
	o.trace(start, "test %s, %s", a, b)
}

// SetCC emits setcc r8 (0F 90+cc). Only al, cl, dl and bl are supported.
func (o *Out) SetCC(cond JumpCondition, r8 string) {
	start := o.Pos()
	enc := reg(r8)
	o.Write(0x0F)
	o.Write(0x90 | cond.code())
	o.Write(modRM(3, 0, enc))
	o.trace(start, "set%s %s", cond.suffix(), r8)
}
