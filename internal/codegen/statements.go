package codegen

import (
	"github.com/xyproto/hexlink/internal/ast"
)

func (c *Context) encodeBlock(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := c.encodeStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) encodeStmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.Assign:
		return c.encodeAssign(s)
	case *ast.ExprStmt:
		return c.encodeExpr(s.X)
	case *ast.Print:
		return c.encodePrint(s)
	case *ast.PrintNum:
		return c.encodePrintNum(s)
	case *ast.If:
		return c.encodeIf(s)
	case *ast.While:
		return c.encodeWhile(s)
	case *ast.For:
		return c.encodeFor(s)
	case *ast.ForEach:
		return c.encodeForEach(s)
	case *ast.Return:
		if s.Value == nil {
			c.out.ZeroReg("rax")
		} else if err := c.encodeExpr(s.Value); err != nil {
			return err
		}
		c.out.Epilogue()
	case *ast.Pass:
	case *ast.OpaqueStmt:
		return c.errorf(s, "no machine encoding for %q statements", s.Kind)
	case nil:
		return c.errorf(s, "missing statement")
	default:
		return c.errorf(s, "unsupported statement")
	}
	return nil
}

func (c *Context) encodeAssign(a *ast.Assign) error {
	// x = x + 1 and x = x - 1 update the slot in place
	if off, ok := c.vars.Lookup(a.Name); ok {
		if b, ok := a.Value.(*ast.Binary); ok && (b.Op == ast.Add || b.Op == ast.Sub) {
			v, isVar := b.Left.(*ast.Var)
			one, isLit := b.Right.(*ast.IntLit)
			if isVar && isLit && v.Name == a.Name && one.Value == 1 {
				if b.Op == ast.Add {
					c.out.IncLocal(off)
				} else {
					c.out.DecLocal(off)
				}
				return nil
			}
		}
	}
	if err := c.encodeExpr(a.Value); err != nil {
		return err
	}
	c.out.StoreLocal(c.vars.Bind(a.Name), "rax")
	return nil
}

// encodeIf: cond; test; je else; then; [jmp end; else:] else-body; end:
func (c *Context) encodeIf(s *ast.If) error {
	if err := c.encodeExpr(s.Cond); err != nil {
		return err
	}
	c.out.TestRegWithReg("rax", "rax")
	toElse := c.out.JumpConditional(JumpEqual)
	if err := c.encodeBlock(s.Then); err != nil {
		return err
	}
	if len(s.Else) == 0 {
		return c.wrap(s, c.out.PatchJumpHere(toElse))
	}
	toEnd := c.out.JumpUnconditional()
	if err := c.out.PatchJumpHere(toElse); err != nil {
		return c.wrap(s, err)
	}
	if err := c.encodeBlock(s.Else); err != nil {
		return err
	}
	return c.wrap(s, c.out.PatchJumpHere(toEnd))
}

// encodeWhile: top: cond; test; je exit; body; jmp top; exit:
func (c *Context) encodeWhile(s *ast.While) error {
	top := c.out.Pos()
	if err := c.encodeExpr(s.Cond); err != nil {
		return err
	}
	c.out.TestRegWithReg("rax", "rax")
	exit := c.out.JumpConditional(JumpEqual)
	if err := c.encodeBlock(s.Body); err != nil {
		return err
	}
	c.out.JumpBack(top)
	return c.wrap(s, c.out.PatchJumpHere(exit))
}

// encodeFor runs the body for var = start .. end-1. The counter lives in rcx
// and the bound in r8; both are saved across the body.
func (c *Context) encodeFor(s *ast.For) error {
	if err := c.encodeExpr(s.Start); err != nil {
		return err
	}
	c.out.PushReg("rax")
	if err := c.encodeExpr(s.End); err != nil {
		return err
	}
	c.out.MovRegToReg("r8", "rax")
	if err := c.out.PopReg("rcx"); err != nil {
		return c.wrap(s, err)
	}
	slot := c.vars.Bind(s.Var)

	top := c.out.Pos()
	c.out.CmpRegWithReg("rcx", "r8")
	exit := c.out.JumpConditional(JumpGreaterOrEqual)
	c.out.StoreLocal(slot, "rcx")
	c.out.PushReg("rcx")
	c.out.PushReg("r8")
	if err := c.encodeBlock(s.Body); err != nil {
		return err
	}
	if err := c.out.PopReg("r8"); err != nil {
		return c.wrap(s, err)
	}
	if err := c.out.PopReg("rcx"); err != nil {
		return c.wrap(s, err)
	}
	c.out.IncReg("rcx")
	c.out.JumpBack(top)
	if err := c.out.PatchJumpHere(exit); err != nil {
		return c.wrap(s, err)
	}
	c.out.StoreLocal(slot, "rcx")
	return nil
}

// encodeForEach walks a length-prefixed array with the base, length and
// index kept in anonymous slots
func (c *Context) encodeForEach(s *ast.ForEach) error {
	if err := c.encodeExpr(s.Iter); err != nil {
		return err
	}
	baseSlot := c.vars.Alloc()
	lenSlot := c.vars.Alloc()
	idxSlot := c.vars.Alloc()
	c.out.StoreLocal(baseSlot, "rax")
	c.out.LoadMem("rax", "rax")
	c.out.StoreLocal(lenSlot, "rax")
	c.out.ZeroReg("rax")
	c.out.StoreLocal(idxSlot, "rax")
	slot := c.vars.Bind(s.Var)

	top := c.out.Pos()
	c.out.LoadLocal("rax", idxSlot)
	c.out.CmpRegWithLocal("rax", lenSlot)
	exit := c.out.JumpConditional(JumpGreaterOrEqual)
	c.out.LoadLocal("rbx", baseSlot)
	c.elementAt()
	c.out.StoreLocal(slot, "rax")
	if err := c.encodeBlock(s.Body); err != nil {
		return err
	}
	c.out.IncLocal(idxSlot)
	c.out.JumpBack(top)
	return c.wrap(s, c.out.PatchJumpHere(exit))
}
