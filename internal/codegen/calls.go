package codegen

import (
	"github.com/xyproto/hexlink/internal/ast"
	"github.com/xyproto/hexlink/internal/engine"
)

// Windows x64 calling convention: first four integer arguments in registers,
// 32 bytes of shadow space reserved by the caller, the rest on the stack.
var argRegisters = [...]string{"rcx", "rdx", "r8", "r9"}

const shadowSpace = 32

// alignPad returns the extra bytes needed so that rsp is 16-byte aligned at
// the call once extra stack arguments have been pushed
func (c *Context) alignPad(stackArgs int) int {
	return (c.out.stack.Depth() + 8*stackArgs) % 16
}

func (c *Context) subRSP(n int) {
	if n == 0 {
		return
	}
	c.out.SubImmFromReg("rsp", int32(n))
	c.out.stack.Sub(n)
}

func (c *Context) addRSP(n int) error {
	if n == 0 {
		return nil
	}
	c.out.AddImmToReg("rsp", int32(n))
	return c.out.stack.Add(n)
}

// encodeCall evaluates arguments right-to-left onto the stack, pops the first
// four into registers and calls through a rel32 placeholder
func (c *Context) encodeCall(call *ast.Call) error {
	n := len(call.Args)
	stackArgs := max(0, n-len(argRegisters))
	pad := c.alignPad(stackArgs)
	c.subRSP(pad)

	for i := n - 1; i >= 0; i-- {
		if err := c.encodeExpr(call.Args[i]); err != nil {
			return err
		}
		c.out.PushReg("rax")
	}
	for i := 0; i < n && i < len(argRegisters); i++ {
		if err := c.out.PopReg(argRegisters[i]); err != nil {
			return c.wrap(call, err)
		}
	}

	c.subRSP(shadowSpace)
	site := c.out.Pos()
	at := c.out.CallRelative()
	c.addReloc(Relocation{Offset: at, Site: site, Kind: RelCall, Symbol: call.Name})
	return c.wrap(call, c.addRSP(shadowSpace+8*stackArgs+pad))
}

// callImport calls a C runtime function through its import address slot.
// The displacement assumes the IAT layout in engine; the PE emitter patches
// it for the real one.
func (c *Context) callImport(node any, name string) error {
	if !c.opts.Target.HasImports() {
		return c.errorf(node, "target %s has no import table for %s", c.opts.Target, name)
	}
	slot, ok := engine.AssumedImportRVA(name)
	if !ok {
		return c.errorf(node, "%s is not an importable runtime function", name)
	}
	pad := c.alignPad(0)
	c.subRSP(pad)
	c.subRSP(shadowSpace)
	site := c.out.Pos()
	next := site + 6
	disp := int32(int64(slot) - int64(engine.PETextRVA+next))
	at := c.out.CallIndirectRIP(disp)
	c.addReloc(Relocation{Offset: at, Site: site, Kind: RelImport, Symbol: name})
	return c.wrap(node, c.addRSP(shadowSpace+pad))
}

// printf emits printf(format, rax). Floats are passed in xmm1 as well, as
// variadic calls require.
func (c *Context) printf(node any, format string, float bool) error {
	c.out.MovRegToReg("rdx", "rax")
	if err := c.loadDataAddr(node, "rcx", c.strs.Intern(format)); err != nil {
		return err
	}
	if float {
		c.out.MovqXmmFromReg("xmm1", "rdx")
	}
	return c.callImport(node, "printf")
}

// writeString emits a write(1, s, len(s)) system call
func (c *Context) writeString(node any, s string) error {
	off := c.strs.Intern(s)
	c.out.MovImm32ToReg("rax", sysWrite)
	c.out.MovImm32ToReg("rdi", 1)
	if err := c.loadDataAddr(node, "rsi", off); err != nil {
		return err
	}
	c.out.MovImm32ToReg("rdx", int32(len(s)))
	c.out.Syscall()
	return nil
}

func (c *Context) encodePrint(p *ast.Print) error {
	switch c.opts.Target.HostOS() {
	case "windows":
		if p.X != nil {
			if err := c.printWindows(p, p.X); err != nil {
				return err
			}
		}
		if p.Newline {
			return c.printf(p, "\n", false)
		}
		return nil
	case "linux":
		if p.X != nil {
			lit, ok := p.X.(*ast.StringLit)
			if !ok {
				return c.errorf(p, "printing %s values needs a runtime library; target %s only prints string literals", ast.KindOf(p.X), c.opts.Target)
			}
			if err := c.writeString(p, unescape(lit.Value)); err != nil {
				return err
			}
		}
		if p.Newline {
			return c.writeString(p, "\n")
		}
		return nil
	default:
		return c.errorf(p, "target %s has no output interface", c.opts.Target)
	}
}

func (c *Context) printWindows(p *ast.Print, x ast.Expr) error {
	if lit, ok := x.(*ast.StringLit); ok {
		s := unescape(lit.Value)
		if err := c.loadDataAddr(p, "rax", c.strs.Intern(s)); err != nil {
			return err
		}
		return c.printf(p, "%s", false)
	}
	if err := c.encodeExpr(x); err != nil {
		return err
	}
	if isFloatExpr(x) {
		return c.printf(p, "%.2f", true)
	}
	return c.printf(p, "%d", false)
}

func (c *Context) encodePrintNum(p *ast.PrintNum) error {
	if c.opts.Target.HostOS() != "windows" {
		return c.errorf(p, "print_num needs printf; target %s has none", c.opts.Target)
	}
	if err := c.encodeExpr(p.X); err != nil {
		return err
	}
	return c.printf(p, "%d\n", false)
}

// encodeInput reads one integer with scanf("%d", &slot)
func (c *Context) encodeInput(in *ast.Input) error {
	if !c.opts.Target.HasImports() {
		return c.errorf(in, "input needs scanf; target %s has no import table", c.opts.Target)
	}
	slot := c.vars.Alloc()
	c.out.ZeroReg("rax")
	c.out.StoreLocal(slot, "rax")
	if err := c.loadDataAddr(in, "rcx", c.strs.Intern("%d")); err != nil {
		return err
	}
	c.out.LeaLocal("rdx", slot)
	if err := c.callImport(in, "scanf"); err != nil {
		return err
	}
	c.out.LoadLocal("rax", slot)
	return nil
}
