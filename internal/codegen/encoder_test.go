package codegen

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xyproto/hexlink/internal/ast"
	"github.com/xyproto/hexlink/internal/diag"
	"github.com/xyproto/hexlink/internal/engine"
)

// operands is the shared sequence for a binary node: left; push; right; mov rbx, rax; pop rax
func operands(l, r int64) []byte {
	return cat(movRax(l), []byte{0x50}, movRax(r), []byte{0x48, 0x89, 0xC3, 0x58})
}

func TestEncodeExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr ast.Expr
		want []byte
	}{
		{"int", lit(42), movRax(42)},
		{"negative int", lit(-1), movRax(-1)},
		{"bool", &ast.BoolLit{Value: true}, movRax(1)},
		{"float", &ast.FloatLit{Value: 1.0}, movRax(0x3FF0000000000000)},
		{"add", &ast.Binary{Op: ast.Add, Left: lit(2), Right: lit(3)}, cat(operands(2, 3), []byte{0x48, 0x01, 0xD8})},
		{"sub", &ast.Binary{Op: ast.Sub, Left: lit(2), Right: lit(3)}, cat(operands(2, 3), []byte{0x48, 0x29, 0xD8})},
		{"mul", &ast.Binary{Op: ast.Mul, Left: lit(2), Right: lit(3)}, cat(operands(2, 3), []byte{0x48, 0x0F, 0xAF, 0xC3})},
		{"div", &ast.Binary{Op: ast.Div, Left: lit(6), Right: lit(3)}, cat(operands(6, 3), []byte{0x48, 0x99, 0x48, 0xF7, 0xFB})},
		{"mod", &ast.Binary{Op: ast.Mod, Left: lit(7), Right: lit(3)}, cat(operands(7, 3), []byte{0x48, 0x99, 0x48, 0xF7, 0xFB, 0x48, 0x89, 0xD0})},
		{"and", &ast.Binary{Op: ast.And, Left: lit(6), Right: lit(3)}, cat(operands(6, 3), []byte{0x48, 0x21, 0xD8})},
		{"or", &ast.Binary{Op: ast.Or, Left: lit(6), Right: lit(3)}, cat(operands(6, 3), []byte{0x48, 0x09, 0xD8})},
		{"xor", &ast.Binary{Op: ast.Xor, Left: lit(6), Right: lit(3)}, cat(operands(6, 3), []byte{0x48, 0x31, 0xD8})},
		{"shl", &ast.Binary{Op: ast.Shl, Left: lit(1), Right: lit(4)}, cat(operands(1, 4), []byte{0x48, 0x89, 0xD9, 0x48, 0xD3, 0xE0})},
		{"shr", &ast.Binary{Op: ast.Shr, Left: lit(16), Right: lit(4)}, cat(operands(16, 4), []byte{0x48, 0x89, 0xD9, 0x48, 0xD3, 0xE8})},
		{"neg", &ast.Unary{Op: ast.Neg, X: lit(5)}, cat(movRax(5), []byte{0x48, 0xF7, 0xD8})},
		{"bitnot", &ast.Unary{Op: ast.BitNot, X: lit(5)}, cat(movRax(5), []byte{0x48, 0xF7, 0xD0})},
		{"not", &ast.Unary{Op: ast.Not, X: lit(5)}, cat(movRax(5), []byte{0x48, 0x85, 0xC0, 0x0F, 0x94, 0xC0, 0x48, 0x0F, 0xB6, 0xC0})},
		{"pre-inc", &ast.Unary{Op: ast.PreInc, X: lit(5)}, cat(movRax(5), []byte{0x48, 0xFF, 0xC0})},
		{"pre-dec", &ast.Unary{Op: ast.PreDec, X: lit(5)}, cat(movRax(5), []byte{0x48, 0xFF, 0xC8})},
		{"eq", &ast.Compare{Op: ast.Eq, Left: lit(1), Right: lit(2)}, cat(operands(1, 2), []byte{0x48, 0x39, 0xD8, 0x0F, 0x94, 0xC0, 0x48, 0x0F, 0xB6, 0xC0})},
		{"ne", &ast.Compare{Op: ast.Ne, Left: lit(1), Right: lit(2)}, cat(operands(1, 2), []byte{0x48, 0x39, 0xD8, 0x0F, 0x95, 0xC0, 0x48, 0x0F, 0xB6, 0xC0})},
		{"lt", &ast.Compare{Op: ast.Lt, Left: lit(1), Right: lit(2)}, cat(operands(1, 2), []byte{0x48, 0x39, 0xD8, 0x0F, 0x9C, 0xC0, 0x48, 0x0F, 0xB6, 0xC0})},
		{"le", &ast.Compare{Op: ast.Le, Left: lit(1), Right: lit(2)}, cat(operands(1, 2), []byte{0x48, 0x39, 0xD8, 0x0F, 0x9E, 0xC0, 0x48, 0x0F, 0xB6, 0xC0})},
		{"gt", &ast.Compare{Op: ast.Gt, Left: lit(1), Right: lit(2)}, cat(operands(1, 2), []byte{0x48, 0x39, 0xD8, 0x0F, 0x9F, 0xC0, 0x48, 0x0F, 0xB6, 0xC0})},
		{"ge", &ast.Compare{Op: ast.Ge, Left: lit(1), Right: lit(2)}, cat(operands(1, 2), []byte{0x48, 0x39, 0xD8, 0x0F, 0x9D, 0xC0, 0x48, 0x0F, 0xB6, 0xC0})},
		{"unbound variable", variable("nope"), []byte{0x31, 0xC0}},
		{"sizeof", &ast.SizeOf{}, movRax(8)},
		{"float cast", &ast.Cast{To: ast.CastFloat, X: lit(3)}, cat(movRax(3), []byte{0xF2, 0x48, 0x0F, 0x2A, 0xC0, 0x66, 0x48, 0x0F, 0x7E, 0xC0})},
		{"int cast of int", &ast.Cast{To: ast.CastInt, X: lit(3)}, movRax(3)},
		{"bool cast", &ast.Cast{To: ast.CastBool, X: lit(3)}, cat(movRax(3), []byte{0x48, 0x85, 0xC0, 0x0F, 0x95, 0xC0, 0x48, 0x0F, 0xB6, 0xC0})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compileBody(t, engine.TargetRaw, &ast.ExprStmt{X: tt.expr})
			if !bytes.Equal(got, tt.want) {
				t.Errorf("encoding mismatch\n got: % X\nwant: % X", got, tt.want)
			}
		})
	}
}

func TestEncodeVariables(t *testing.T) {
	got := compileBody(t, engine.TargetRaw,
		&ast.Assign{Name: "x", Value: lit(5)},
		&ast.ExprStmt{X: variable("x")},
	)
	want := cat(
		movRax(5),
		[]byte{0x48, 0x89, 0x85}, le32(-8),
		[]byte{0x48, 0x8B, 0x85}, le32(-8),
	)
	if !bytes.Equal(got, want) {
		t.Errorf("got % X\nwant % X", got, want)
	}
}

func TestIncrementPeephole(t *testing.T) {
	got := compileBody(t, engine.TargetRaw,
		&ast.Assign{Name: "x", Value: lit(0)},
		&ast.Assign{Name: "x", Value: &ast.Binary{Op: ast.Add, Left: variable("x"), Right: lit(1)}},
		&ast.Assign{Name: "x", Value: &ast.Binary{Op: ast.Sub, Left: variable("x"), Right: lit(1)}},
	)
	want := cat(
		movRax(0),
		[]byte{0x48, 0x89, 0x85}, le32(-8),
		[]byte{0x48, 0xFF, 0x85}, le32(-8),
		[]byte{0x48, 0xFF, 0x8D}, le32(-8),
	)
	if !bytes.Equal(got, want) {
		t.Errorf("got % X\nwant % X", got, want)
	}
}

func TestCallSequence(t *testing.T) {
	got := compileBody(t, engine.TargetRaw,
		&ast.ExprStmt{X: &ast.Call{Name: "add", Args: []ast.Expr{lit(2), lit(3)}}},
	)
	want := cat(
		movRax(3), []byte{0x50},
		movRax(2), []byte{0x50},
		[]byte{0x59, 0x5A}, // pop rcx; pop rdx
		[]byte{0x48, 0x83, 0xEC, 0x20},
		[]byte{0xE8}, le32(0),
		[]byte{0x48, 0x83, 0xC4, 0x20},
	)
	if !bytes.Equal(got, want) {
		t.Errorf("got % X\nwant % X", got, want)
	}
}

func TestCallWithStackArguments(t *testing.T) {
	args := []ast.Expr{lit(1), lit(2), lit(3), lit(4), lit(5)}
	got := compileBody(t, engine.TargetRaw, &ast.ExprStmt{X: &ast.Call{Name: "five", Args: args}})

	// one stack argument needs 8 bytes of padding to keep rsp 16-byte aligned
	if !bytes.HasPrefix(got, []byte{0x48, 0x83, 0xEC, 0x08}) {
		t.Errorf("missing alignment padding: % X", got[:4])
	}
	if !bytes.HasSuffix(got, []byte{0x48, 0x83, 0xC4, 0x30}) {
		t.Errorf("cleanup should release 32+8+8 bytes: % X", got[len(got)-4:])
	}
	pops := []byte{0x59, 0x5A, 0x41, 0x58, 0x41, 0x59} // rcx, rdx, r8, r9
	if !bytes.Contains(got, pops) {
		t.Errorf("missing register argument pops: % X", got)
	}
}

func TestStackParameters(t *testing.T) {
	c := newTestContext(engine.TargetRaw)
	fn := &ast.Function{
		Name:   "five",
		Params: []string{"a", "b", "c", "d", "e"},
		Body:   []ast.Stmt{&ast.Return{Value: variable("e")}},
	}
	if err := c.CompileFunction(fn); err != nil {
		t.Fatal(err)
	}
	code := c.Stream().Bytes()

	spills := []byte{
		0x48, 0x89, 0x4D, 0xF8, // mov [rbp-8], rcx
		0x48, 0x89, 0x55, 0xF0, // mov [rbp-16], rdx
		0x4C, 0x89, 0x45, 0xE8, // mov [rbp-24], r8
		0x4C, 0x89, 0x4D, 0xE0, // mov [rbp-32], r9
	}
	if !bytes.Equal(code[prologueLen:prologueLen+16], spills) {
		t.Errorf("spills: got % X", code[prologueLen:prologueLen+16])
	}
	load := cat([]byte{0x48, 0x8B, 0x85}, le32(48))
	if !bytes.Equal(code[prologueLen+16:prologueLen+23], load) {
		t.Errorf("stack parameter load: got % X", code[prologueLen+16:prologueLen+23])
	}
	if frame := int32At(t, code, 7); frame != 32 {
		t.Errorf("frame = %d, want 32", frame)
	}
}

func TestEncodeArrays(t *testing.T) {
	got := compileBody(t, engine.TargetRaw,
		&ast.Assign{Name: "xs", Value: &ast.ArrayLit{Elems: []ast.Expr{lit(10), lit(20)}}},
		&ast.ExprStmt{X: &ast.Index{X: variable("xs"), Index: lit(1)}},
		&ast.ExprStmt{X: &ast.Len{X: variable("xs")}},
	)
	// slots: length at -8, elements at -16 and -24, xs at -32
	want := cat(
		movRax(2), []byte{0x48, 0x89, 0x85}, le32(-8),
		movRax(10), []byte{0x48, 0x89, 0x85}, le32(-16),
		movRax(20), []byte{0x48, 0x89, 0x85}, le32(-24),
		[]byte{0x48, 0x8D, 0x85}, le32(-8),
		[]byte{0x48, 0x89, 0x85}, le32(-32),
		[]byte{0x48, 0x8B, 0x85}, le32(-32), []byte{0x50},
		movRax(1),
		[]byte{0x5B},                   // pop rbx
		[]byte{0x48, 0xFF, 0xC0},       // inc rax
		[]byte{0x48, 0xC1, 0xE0, 0x03}, // shl rax, 3
		[]byte{0x48, 0x29, 0xC3},       // sub rbx, rax
		[]byte{0x48, 0x8B, 0x03},       // mov rax, [rbx]
		[]byte{0x48, 0x8B, 0x85}, le32(-32),
		[]byte{0x48, 0x8B, 0x00}, // mov rax, [rax]
	)
	if !bytes.Equal(got, want) {
		t.Errorf("got  % X\nwant % X", got, want)
	}
}

func TestAddressAndDeref(t *testing.T) {
	got := compileBody(t, engine.TargetRaw,
		&ast.Assign{Name: "x", Value: lit(1)},
		&ast.ExprStmt{X: &ast.Deref{X: &ast.AddrOf{Name: "x"}}},
	)
	want := cat(
		movRax(1), []byte{0x48, 0x89, 0x85}, le32(-8),
		[]byte{0x48, 0x8D, 0x85}, le32(-8),
		[]byte{0x48, 0x8B, 0x00},
	)
	if !bytes.Equal(got, want) {
		t.Errorf("got % X\nwant % X", got, want)
	}
}

func TestEncodingErrors(t *testing.T) {
	tests := []struct {
		name   string
		target engine.Target
		stmt   ast.Stmt
		node   string
	}{
		{"opaque expression", engine.TargetRaw, &ast.ExprStmt{X: &ast.Opaque{Kind: "lambda"}}, "lambda"},
		{"opaque statement", engine.TargetRaw, &ast.OpaqueStmt{Kind: "match"}, "match"},
		{"string on raw", engine.TargetRaw, &ast.ExprStmt{X: &ast.StringLit{Value: "x"}}, "string"},
		{"print on raw", engine.TargetRaw, &ast.Print{X: &ast.StringLit{Value: "x"}}, "print"},
		{"number print on elf", engine.TargetELF, &ast.Print{X: lit(1)}, "print"},
		{"print_num on elf", engine.TargetELF, &ast.PrintNum{X: lit(1)}, "print_num"},
		{"input on elf", engine.TargetELF, &ast.ExprStmt{X: &ast.Input{}}, "input"},
		{"address of unbound", engine.TargetRaw, &ast.ExprStmt{X: &ast.AddrOf{Name: "ghost"}}, "addr"},
		{"nil expression", engine.TargetRaw, &ast.ExprStmt{}, "nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestContext(tt.target)
			err := c.CompileFunction(&ast.Function{Name: "f", Body: []ast.Stmt{tt.stmt}})
			if !errors.Is(err, diag.ErrEncoding) {
				t.Fatalf("expected encoding error, got %v", err)
			}
			var enc *diag.EncodingError
			if !errors.As(err, &enc) {
				t.Fatalf("expected *diag.EncodingError, got %T", err)
			}
			if enc.Node != tt.node {
				t.Errorf("Node = %q, want %q", enc.Node, tt.node)
			}
			if enc.Function != "f" {
				t.Errorf("Function = %q, want f", enc.Function)
			}
		})
	}
}

func TestStrictUnboundVariable(t *testing.T) {
	c := NewContext(Options{Target: engine.TargetRaw, Strict: true})
	err := c.CompileFunction(&ast.Function{Name: "f", Body: []ast.Stmt{
		&ast.Assign{Name: "count", Value: lit(1)},
		&ast.ExprStmt{X: variable("cout")},
	}})
	var enc *diag.EncodingError
	if !errors.As(err, &enc) {
		t.Fatalf("expected encoding error, got %v", err)
	}
	if enc.Suggestion != "did you mean 'count'?" {
		t.Errorf("Suggestion = %q", enc.Suggestion)
	}
}

func TestIfElseAndWhile(t *testing.T) {
	got := compileBody(t, engine.TargetRaw,
		&ast.If{
			Cond: lit(1),
			Then: []ast.Stmt{&ast.ExprStmt{X: lit(2)}},
			Else: []ast.Stmt{&ast.ExprStmt{X: lit(3)}},
		},
	)
	// cond(10) test(3) je(6) then(10) jmp(5) else(10)
	want := cat(
		movRax(1),
		[]byte{0x48, 0x85, 0xC0},
		[]byte{0x0F, 0x84}, le32(15),
		movRax(2),
		[]byte{0xE9}, le32(10),
		movRax(3),
	)
	if !bytes.Equal(got, want) {
		t.Errorf("if/else\n got % X\nwant % X", got, want)
	}

	got = compileBody(t, engine.TargetRaw,
		&ast.While{Cond: lit(0), Body: []ast.Stmt{&ast.ExprStmt{X: lit(2)}}},
	)
	// top: cond(10) test(3) je(6) body(10) jmp(5)
	want = cat(
		movRax(0),
		[]byte{0x48, 0x85, 0xC0},
		[]byte{0x0F, 0x84}, le32(15),
		movRax(2),
		[]byte{0xE9}, le32(-34),
	)
	if !bytes.Equal(got, want) {
		t.Errorf("while\n got % X\nwant % X", got, want)
	}
}

func TestForRange(t *testing.T) {
	got := compileBody(t, engine.TargetRaw,
		&ast.For{Var: "i", Start: lit(0), End: lit(3), Body: []ast.Stmt{&ast.Pass{}}},
	)
	want := cat(
		movRax(0), []byte{0x50},
		movRax(3),
		[]byte{0x49, 0x89, 0xC0}, // mov r8, rax
		[]byte{0x59},             // pop rcx
		[]byte{0x4C, 0x39, 0xC1}, // top: cmp rcx, r8
		[]byte{0x0F, 0x8D}, le32(7+1+2+2+1+3+5),
		[]byte{0x48, 0x89, 0x8D}, le32(-8),
		[]byte{0x51, 0x41, 0x50}, // push rcx; push r8
		[]byte{0x41, 0x58, 0x59}, // pop r8; pop rcx
		[]byte{0x48, 0xFF, 0xC1}, // inc rcx
		[]byte{0xE9}, le32(-(3 + 6 + 7 + 3 + 3 + 3 + 5)),
		[]byte{0x48, 0x89, 0x8D}, le32(-8),
	)
	if !bytes.Equal(got, want) {
		t.Errorf("got  % X\nwant % X", got, want)
	}
}

func TestForEachBalanced(t *testing.T) {
	c := newTestContext(engine.TargetRaw)
	err := c.CompileFunction(&ast.Function{Name: "sum", Body: []ast.Stmt{
		&ast.Assign{Name: "total", Value: lit(0)},
		&ast.ForEach{
			Var:  "x",
			Iter: &ast.ArrayLit{Elems: []ast.Expr{lit(1), lit(2), lit(3)}},
			Body: []ast.Stmt{&ast.Assign{Name: "total", Value: &ast.Binary{Op: ast.Add, Left: variable("total"), Right: variable("x")}}},
		},
		&ast.Return{Value: variable("total")},
	}})
	if err != nil {
		t.Fatal(err)
	}
	code := c.Stream().Bytes()
	// cmp rax, [rbp+len] and inc qword [rbp+idx]
	if !bytes.Contains(code, []byte{0x48, 0x3B, 0x85}) || !bytes.Contains(code, []byte{0x48, 0xFF, 0x85}) {
		t.Errorf("foreach loop shape missing: % X", code)
	}
}
