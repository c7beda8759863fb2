// Completion: 100% - Instruction implementation complete
package codegen

// CALL and RET instructions

// CallRelative emits call rel32 with a zero placeholder and returns the
// offset of the rel32 field
func (o *Out) CallRelative() int {
	start := o.Pos()
	o.Write(0xE8)
	at := o.Pos()
	o.disp32(0)
	o.trace(start, "call <rel32>")
	return at
}

// CallIndirectRIP emits call [rip+disp32] (FF 15) and returns the offset of
// the displacement
func (o *Out) CallIndirectRIP(disp int32) int {
	start := o.Pos()
	o.Write(0xFF)
	o.Write(0x15)
	at := o.Pos()
	o.disp32(disp)
	o.trace(start, "call [rip%+d]", disp)
	return at
}

// Ret emits ret
func (o *Out) Ret() {
	start := o.Pos()
	o.Write(0xC3)
	o.trace(start, "ret")
}
