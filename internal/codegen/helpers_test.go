package codegen

import (
	"encoding/binary"
	"testing"

	"github.com/rs/zerolog"

	"github.com/xyproto/hexlink/internal/ast"
	"github.com/xyproto/hexlink/internal/engine"
)

const prologueLen = 11 // 55; 48 89 E5; 48 81 EC imm32

var implicitEpilogue = []byte{0x31, 0xC0, 0x48, 0x89, 0xEC, 0x5D, 0xC3}

func newTestContext(target engine.Target) *Context {
	return NewContext(Options{Target: target, Logger: zerolog.Nop()})
}

// compileBody compiles a parameterless function and returns the bytes
// between its prologue and its implicit epilogue
func compileBody(t *testing.T, target engine.Target, body ...ast.Stmt) []byte {
	t.Helper()
	c := newTestContext(target)
	if err := c.CompileFunction(&ast.Function{Name: "f", Body: body}); err != nil {
		t.Fatalf("CompileFunction: %v", err)
	}
	code := c.Stream().Bytes()
	if len(code) < prologueLen+len(implicitEpilogue) {
		t.Fatalf("code too short: % X", code)
	}
	return code[prologueLen : len(code)-len(implicitEpilogue)]
}

func imm64(v int64) []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(v))
}

func movRax(v int64) []byte {
	return append([]byte{0x48, 0xB8}, imm64(v)...)
}

func le32(v int32) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func int32At(t *testing.T, code []byte, off int) int32 {
	t.Helper()
	if off < 0 || off+4 > len(code) {
		t.Fatalf("offset 0x%x out of range", off)
	}
	return int32(binary.LittleEndian.Uint32(code[off:]))
}

func lit(v int64) *ast.IntLit { return &ast.IntLit{Value: v} }

func variable(name string) *ast.Var { return &ast.Var{Name: name} }
