// Completion: 100% - Instruction implementation complete
package codegen

// INC/DEC instructions, on registers and on frame slots

// IncReg emits inc reg (REX.W FF /0)
func (o *Out) IncReg(r string) {
	o.unaryFF(0, "inc", r)
}

// DecReg emits dec reg (REX.W FF /1)
func (o *Out) DecReg(r string) {
	o.unaryFF(1, "dec", r)
}

func (o *Out) unaryFF(ext uint8, name, r string) {
	start := o.Pos()
	enc := reg(r)
	o.Write(0x48 | enc>>3)
	o.Write(0xFF)
	o.Write(modRM(3, ext, enc))
	o.trace(start, "%s %s", name, r)
}

// IncLocal emits inc qword [rbp+disp32]
func (o *Out) IncLocal(disp int32) {
	o.localFF(0, "inc", disp)
}

// DecLocal emits dec qword [rbp+disp32]
func (o *Out) DecLocal(disp int32) {
	o.localFF(1, "dec", disp)
}

func (o *Out) localFF(ext uint8, name string, disp int32) {
	start := o.Pos()
	o.Write(0x48)
	o.Write(0xFF)
	o.Write(modRM(2, ext, 5))
	o.disp32(disp)
	o.trace(start, "%s qword [rbp%+d]", name, disp)
}
