package codegen

import (
	"github.com/xyproto/hexlink/internal/ast"
	"github.com/xyproto/hexlink/internal/diag"
)

// Prologue emits push rbp; mov rbp, rsp; sub rsp, imm32 and returns the
// offset of the frame size placeholder
func (o *Out) Prologue() int {
	start := o.Pos()
	o.Write(0x55)
	o.MovRegToReg("rbp", "rsp")
	at := o.SubImm32FromReg("rsp", 0)
	o.trace(start, "prologue")
	return at
}

// Epilogue emits mov rsp, rbp; pop rbp; ret
func (o *Out) Epilogue() {
	start := o.Pos()
	o.MovRegToReg("rsp", "rbp")
	o.Write(0x5D)
	o.Ret()
	o.trace(start, "epilogue")
}

// stackParamOffset is where the caller left parameter i (i >= 4): above the
// saved rbp, the return address and the 32-byte shadow area
func stackParamOffset(i int) int32 {
	return int32(16 + shadowSpace + 8*(i-len(argRegisters)))
}

// CompileFunction encodes one function end to end and records its symbol.
// Calls inside it stay as pending relocations.
func (c *Context) CompileFunction(fn *ast.Function) error {
	return c.compileFunction(fn.Name, fn.Params, fn.Body)
}

func (c *Context) compileFunction(name string, params []string, body []ast.Stmt) error {
	c.fn = name
	c.vars.Reset()
	c.out.stack.Reset()

	start := c.s.Len()
	if err := c.funcs.Define(name, start, params); err != nil {
		return c.errorf(&ast.Function{Name: name}, "%v", err)
	}

	for i, p := range params {
		if i < len(argRegisters) {
			c.vars.Bind(p)
		} else {
			c.vars.BindAt(p, stackParamOffset(i))
		}
	}

	framePatch := c.out.Prologue()
	for i := 0; i < len(params) && i < len(argRegisters); i++ {
		off, _ := c.vars.Lookup(params[i])
		c.out.StoreLocal8(int8(off), argRegisters[i])
	}

	if err := c.encodeBlock(body); err != nil {
		return err
	}
	if !endsWithReturn(body) {
		c.out.ZeroReg("rax")
		c.out.Epilogue()
	}
	if err := c.out.stack.Validate(c.displayName()); err != nil {
		return c.wrap(&ast.Function{Name: name}, err)
	}

	frame := c.vars.FrameSize()
	if frame > c.opts.MaxFrameSize {
		return &diag.FrameOverflowError{Function: c.displayName(), Size: frame, Limit: c.opts.MaxFrameSize}
	}
	if err := c.s.PatchInt32(framePatch, int32(frame)); err != nil {
		return c.wrap(&ast.Function{Name: name}, err)
	}
	c.funcs.Close(name, c.s.Len(), frame)

	c.log.Debug().Str("function", c.displayName()).Int("offset", start).Int("size", c.s.Len()-start).Int("frame", frame).Msg("compiled")
	return nil
}

func endsWithReturn(body []ast.Stmt) bool {
	if len(body) == 0 {
		return false
	}
	_, ok := body[len(body)-1].(*ast.Return)
	return ok
}
