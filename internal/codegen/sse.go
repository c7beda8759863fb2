// Completion: 100% - Instruction implementation complete
package codegen

// Scalar double conversions. Floats travel through rax as raw bit patterns.

// Cvtsi2sd emits cvtsi2sd xmm, r64 (F2 REX.W 0F 2A /r)
func (o *Out) Cvtsi2sd(xmm, src string) {
	start := o.Pos()
	x, s := reg(xmm), reg(src)
	o.Write(0xF2)
	o.Write(rexW(x, s))
	o.Write(0x0F)
	o.Write(0x2A)
	o.Write(modRM(3, x, s))
	o.trace(start, "cvtsi2sd %s, %s", xmm, src)
}

// Cvttsd2si emits cvttsd2si r64, xmm (F2 REX.W 0F 2C /r), truncating
func (o *Out) Cvttsd2si(dst, xmm string) {
	start := o.Pos()
	d, x := reg(dst), reg(xmm)
	o.Write(0xF2)
	o.Write(rexW(d, x))
	o.Write(0x0F)
	o.Write(0x2C)
	o.Write(modRM(3, d, x))
	o.trace(start, "cvttsd2si %s, %s", dst, xmm)
}

// MovqRegFromXmm emits movq r64, xmm (66 REX.W 0F 7E /r)
func (o *Out) MovqRegFromXmm(dst, xmm string) {
	start := o.Pos()
	d, x := reg(dst), reg(xmm)
	o.Write(0x66)
	o.Write(rexW(x, d))
	o.Write(0x0F)
	o.Write(0x7E)
	o.Write(modRM(3, x, d))
	o.trace(start, "movq %s, %s", dst, xmm)
}

// MovqXmmFromReg emits movq xmm, r64 (66 REX.W 0F 6E /r)
func (o *Out) MovqXmmFromReg(xmm, src string) {
	start := o.Pos()
	x, s := reg(xmm), reg(src)
	o.Write(0x66)
	o.Write(rexW(x, s))
	o.Write(0x0F)
	o.Write(0x6E)
	o.Write(modRM(3, x, s))
	o.trace(start, "movq %s, %s", xmm, src)
}
