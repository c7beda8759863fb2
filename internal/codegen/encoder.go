package codegen

import (
	"math"

	"github.com/xyproto/hexlink/internal/ast"
)

// encodeExpr encodes e, leaving its value in rax
func (c *Context) encodeExpr(e ast.Expr) error {
	switch e := e.(type) {
	case *ast.IntLit:
		c.out.MovImmToReg("rax", uint64(e.Value))
	case *ast.FloatLit:
		c.out.MovImmToReg("rax", math.Float64bits(e.Value))
	case *ast.BoolLit:
		var v uint64
		if e.Value {
			v = 1
		}
		c.out.MovImmToReg("rax", v)
	case *ast.StringLit:
		return c.loadDataAddr(e, "rax", c.internString(e.Value))
	case *ast.Var:
		return c.encodeVar(e)
	case *ast.Binary:
		return c.encodeBinary(e)
	case *ast.Unary:
		return c.encodeUnary(e)
	case *ast.Compare:
		return c.encodeCompare(e)
	case *ast.Call:
		return c.encodeCall(e)
	case *ast.ArrayLit:
		return c.encodeArray(e)
	case *ast.Index:
		return c.encodeIndex(e)
	case *ast.Len:
		if err := c.encodeExpr(e.X); err != nil {
			return err
		}
		c.out.LoadMem("rax", "rax")
	case *ast.Cast:
		return c.encodeCast(e)
	case *ast.Input:
		return c.encodeInput(e)
	case *ast.AddrOf:
		off, ok := c.vars.Lookup(e.Name)
		if !ok {
			err := c.errorf(e, "address of undeclared variable %q", e.Name)
			err.Suggestion = c.suggestVar(e.Name)
			return err
		}
		c.out.LeaLocal("rax", off)
	case *ast.Deref:
		if err := c.encodeExpr(e.X); err != nil {
			return err
		}
		c.out.LoadMem("rax", "rax")
	case *ast.SizeOf:
		c.out.MovImmToReg("rax", 8)
	case *ast.Opaque:
		return c.errorf(e, "no machine encoding for %q expressions", e.Kind)
	case nil:
		return c.errorf(e, "missing expression")
	default:
		return c.errorf(e, "unsupported expression")
	}
	return nil
}

func (c *Context) encodeVar(v *ast.Var) error {
	off, ok := c.vars.Lookup(v.Name)
	if ok {
		c.out.LoadLocal("rax", off)
		return nil
	}
	if c.opts.Strict {
		err := c.errorf(v, "use of undeclared variable %q", v.Name)
		err.Suggestion = c.suggestVar(v.Name)
		return err
	}
	c.log.Debug().Str("function", c.displayName()).Str("variable", v.Name).Msg("read of unbound variable yields 0")
	c.out.ZeroReg("rax")
	return nil
}

// encodeOperands leaves the left operand in rax and the right one in rbx
func (c *Context) encodeOperands(node any, left, right ast.Expr) error {
	if err := c.encodeExpr(left); err != nil {
		return err
	}
	c.out.PushReg("rax")
	if err := c.encodeExpr(right); err != nil {
		return err
	}
	c.out.MovRegToReg("rbx", "rax")
	return c.wrap(node, c.out.PopReg("rax"))
}

func (c *Context) encodeBinary(b *ast.Binary) error {
	if err := c.encodeOperands(b, b.Left, b.Right); err != nil {
		return err
	}
	switch b.Op {
	case ast.Add:
		c.out.AddRegToReg("rax", "rbx")
	case ast.Sub:
		c.out.SubRegFromReg("rax", "rbx")
	case ast.Mul:
		c.out.ImulRegWithReg("rax", "rbx")
	case ast.Div:
		c.out.Cqo()
		c.out.IdivReg("rbx")
	case ast.Mod:
		c.out.Cqo()
		c.out.IdivReg("rbx")
		c.out.MovRegToReg("rax", "rdx")
	case ast.And:
		c.out.AndRegWithReg("rax", "rbx")
	case ast.Or:
		c.out.OrRegWithReg("rax", "rbx")
	case ast.Xor:
		c.out.XorRegWithReg("rax", "rbx")
	case ast.Shl:
		c.out.MovRegToReg("rcx", "rbx")
		c.out.ShlRegByCL("rax")
	case ast.Shr:
		c.out.MovRegToReg("rcx", "rbx")
		c.out.ShrRegByCL("rax")
	default:
		return c.errorf(b, "unknown binary operator %d", b.Op)
	}
	return nil
}

func (c *Context) encodeUnary(u *ast.Unary) error {
	if err := c.encodeExpr(u.X); err != nil {
		return err
	}
	switch u.Op {
	case ast.Neg:
		c.out.NegReg("rax")
	case ast.BitNot:
		c.out.NotReg("rax")
	case ast.Not:
		c.out.TestRegWithReg("rax", "rax")
		c.out.SetCC(JumpEqual, "al")
		c.out.MovzxRegFromByte("rax", "al")
	case ast.PreInc:
		c.out.IncReg("rax")
	case ast.PreDec:
		c.out.DecReg("rax")
	default:
		return c.errorf(u, "unknown unary operator %d", u.Op)
	}
	return nil
}

var compareConditions = map[ast.CmpOp]JumpCondition{
	ast.Eq: JumpEqual,
	ast.Ne: JumpNotEqual,
	ast.Lt: JumpLess,
	ast.Le: JumpLessOrEqual,
	ast.Gt: JumpGreater,
	ast.Ge: JumpGreaterOrEqual,
}

// encodeCompare produces 0 or 1 in rax without branching
func (c *Context) encodeCompare(cmp *ast.Compare) error {
	cond, ok := compareConditions[cmp.Op]
	if !ok {
		return c.errorf(cmp, "unknown comparison operator %d", cmp.Op)
	}
	if err := c.encodeOperands(cmp, cmp.Left, cmp.Right); err != nil {
		return err
	}
	c.out.CmpRegWithReg("rax", "rbx")
	c.out.SetCC(cond, "al")
	c.out.MovzxRegFromByte("rax", "al")
	return nil
}

// encodeArray stores a length-prefixed array in fresh frame slots:
// the length at base, element i at base-8*(i+1). rax gets the base address.
func (c *Context) encodeArray(a *ast.ArrayLit) error {
	n := len(a.Elems)
	base := c.vars.AllocN(n+1) + int32(8*n)
	c.out.MovImmToReg("rax", uint64(n))
	c.out.StoreLocal(base, "rax")
	for i, el := range a.Elems {
		if err := c.encodeExpr(el); err != nil {
			return err
		}
		c.out.StoreLocal(base-int32(8*(i+1)), "rax")
	}
	c.out.LeaLocal("rax", base)
	return nil
}

// encodeIndex loads element idx of a length-prefixed array
func (c *Context) encodeIndex(ix *ast.Index) error {
	if err := c.encodeExpr(ix.X); err != nil {
		return err
	}
	c.out.PushReg("rax")
	if err := c.encodeExpr(ix.Index); err != nil {
		return err
	}
	if err := c.out.PopReg("rbx"); err != nil {
		return c.wrap(ix, err)
	}
	c.elementAt()
	return nil
}

// elementAt loads [rbx - 8*(rax+1)] into rax
func (c *Context) elementAt() {
	c.out.IncReg("rax")
	c.out.ShlRegImm("rax", 3)
	c.out.SubRegFromReg("rbx", "rax")
	c.out.LoadMem("rax", "rbx")
}

func isFloatExpr(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.FloatLit:
		return true
	case *ast.Cast:
		return e.To == ast.CastFloat
	case *ast.Unary:
		return e.Op == ast.Neg && isFloatExpr(e.X)
	}
	return false
}

func (c *Context) encodeCast(cast *ast.Cast) error {
	if err := c.encodeExpr(cast.X); err != nil {
		return err
	}
	switch cast.To {
	case ast.CastInt:
		if isFloatExpr(cast.X) {
			c.out.MovqXmmFromReg("xmm0", "rax")
			c.out.Cvttsd2si("rax", "xmm0")
		}
	case ast.CastFloat:
		if !isFloatExpr(cast.X) {
			c.out.Cvtsi2sd("xmm0", "rax")
			c.out.MovqRegFromXmm("rax", "xmm0")
		}
	case ast.CastBool:
		c.out.TestRegWithReg("rax", "rax")
		c.out.SetCC(JumpNotEqual, "al")
		c.out.MovzxRegFromByte("rax", "al")
	default:
		return c.errorf(cast, "unknown cast target %d", cast.To)
	}
	return nil
}
