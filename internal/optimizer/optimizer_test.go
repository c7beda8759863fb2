package optimizer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/hexlink/internal/ast"
	"github.com/xyproto/hexlink/internal/codegen"
	"github.com/xyproto/hexlink/internal/engine"
)

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func repeat(b []byte, n int) []byte {
	return bytes.Repeat(b, n)
}

func TestZeroMovBeforeRet(t *testing.T) {
	res, err := Optimize([]byte{0x48, 0xC7, 0xC0, 0x00, 0x00, 0x00, 0x00, 0xC3}, Options{Level: LevelBasic})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x31, 0xC0, 0xC3}, res.Code)
	assert.Equal(t, 5, res.Stats.BytesSaved)
	assert.Equal(t, 1, res.Stats.Patterns[PatternZeroMov])
	assert.Empty(t, res.Stats.Skipped)
}

func TestPatterns(t *testing.T) {
	inc := []byte{0x48, 0xFF, 0xC0}
	tests := []struct {
		name  string
		level Level
		in    []byte
		want  []byte
	}{
		{"nops", LevelBasic, []byte{0x90, 0x66, 0x90, 0x0F, 0x1F, 0x00, 0xC3}, []byte{0xC3}},
		{"zero-mov blocked by flag reader", LevelBasic,
			[]byte{0x48, 0xC7, 0xC0, 0, 0, 0, 0, 0x74, 0x00, 0xC3},
			[]byte{0x48, 0xC7, 0xC0, 0, 0, 0, 0, 0x74, 0x00, 0xC3}},
		{"zero-mov through a mov", LevelBasic,
			[]byte{0x48, 0xC7, 0xC1, 0, 0, 0, 0, 0x48, 0x89, 0xC3, 0x48, 0x01, 0xD8, 0xC3},
			[]byte{0x31, 0xC9, 0x48, 0x89, 0xC3, 0x48, 0x01, 0xD8, 0xC3}},
		{"zero-mov extended register", LevelBasic,
			[]byte{0x49, 0xC7, 0xC0, 0, 0, 0, 0, 0xC3},
			[]byte{0x45, 0x31, 0xC0, 0xC3}},
		{"zero-mov at end of code", LevelBasic,
			[]byte{0x48, 0xC7, 0xC0, 0, 0, 0, 0},
			[]byte{0x48, 0xC7, 0xC0, 0, 0, 0, 0}},
		{"leave", LevelBasic, []byte{0x48, 0x89, 0xEC, 0x5D, 0xC3}, []byte{0xC9, 0xC3}},
		{"leave blocked by branch into pop", LevelBasic,
			[]byte{0xEB, 0x03, 0x48, 0x89, 0xEC, 0x5D, 0xC3},
			[]byte{0xEB, 0x03, 0x48, 0x89, 0xEC, 0x5D, 0xC3}},
		{"imm32", LevelAggressive,
			cat([]byte{0x48, 0xB8, 0x2A, 0, 0, 0, 0, 0, 0, 0}, []byte{0xC3}),
			[]byte{0xB8, 0x2A, 0, 0, 0, 0xC3}},
		{"imm32 extended register", LevelAggressive,
			cat([]byte{0x49, 0xBA, 0xF0, 0xDE, 0xBC, 0x9A, 0, 0, 0, 0}, []byte{0xC3}),
			[]byte{0x41, 0xBA, 0xF0, 0xDE, 0xBC, 0x9A, 0xC3}},
		{"imm32 keeps negative values", LevelAggressive,
			cat([]byte{0x48, 0xB8, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, []byte{0xC3}),
			cat([]byte{0x48, 0xB8, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, []byte{0xC3})},
		{"imm32 not at basic", LevelBasic,
			cat([]byte{0x48, 0xB8, 0x2A, 0, 0, 0, 0, 0, 0, 0}, []byte{0xC3}),
			cat([]byte{0x48, 0xB8, 0x2A, 0, 0, 0, 0, 0, 0, 0}, []byte{0xC3})},
		{"sub rsp imm8", LevelAggressive, []byte{0x48, 0x81, 0xEC, 0x20, 0, 0, 0, 0xC3}, []byte{0x48, 0x83, 0xEC, 0x20, 0xC3}},
		{"sub rsp too large", LevelAggressive, []byte{0x48, 0x81, 0xEC, 0x00, 0x01, 0, 0, 0xC3}, []byte{0x48, 0x81, 0xEC, 0x00, 0x01, 0, 0, 0xC3}},
		{"push pop", LevelUltra, []byte{0x50, 0x58, 0x41, 0x50, 0x41, 0x58, 0xC3}, []byte{0xC3}},
		{"push pop different registers", LevelUltra, []byte{0x50, 0x5B, 0xC3}, []byte{0x50, 0x5B, 0xC3}},
		{"push pop not at aggressive", LevelAggressive, []byte{0x50, 0x58, 0xC3}, []byte{0x50, 0x58, 0xC3}},
		{"short jmp", LevelAggressive, []byte{0xE9, 0, 0, 0, 0, 0xC3}, []byte{0xEB, 0x00, 0xC3}},
		{"short jcc after nop removal", LevelAggressive,
			[]byte{0x0F, 0x84, 0x02, 0, 0, 0, 0x90, 0x90, 0xC3},
			[]byte{0x74, 0x00, 0xC3}},
		{"short backward jmp", LevelAggressive,
			cat(inc, []byte{0xE9, 0xF8, 0xFF, 0xFF, 0xFF}),
			cat(inc, []byte{0xEB, 0xFB})},
		{"far jmp stays near", LevelAggressive,
			cat([]byte{0xE9, 0x96, 0, 0, 0}, repeat(inc, 50), []byte{0xC3}),
			cat([]byte{0xE9, 0x96, 0, 0, 0}, repeat(inc, 50), []byte{0xC3})},
		{"call is never shortened", LevelUltra, []byte{0xE8, 0, 0, 0, 0, 0xC3}, []byte{0xE8, 0, 0, 0, 0, 0xC3}},
		{"none", LevelNone, []byte{0x90, 0xC3}, []byte{0x90, 0xC3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Optimize(tt.in, Options{Level: tt.level})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Code, "got % X", res.Code)
			assert.Equal(t, len(tt.in)-len(tt.want), res.Stats.BytesSaved)
			assert.Empty(t, res.Stats.Skipped)
		})
	}
}

func TestRelaxationCascade(t *testing.T) {
	// the outer jump only fits in rel8 after the inner one has shrunk
	body := repeat([]byte{0x48, 0xFF, 0xC0}, 41) // 123 bytes
	in := cat(
		[]byte{0xE9}, le32(int32(5+len(body))), // jmp over inner jump and body
		[]byte{0xE9}, le32(int32(len(body))),
		body,
		[]byte{0xC3},
	)
	res, err := Optimize(in, Options{Level: LevelAggressive})
	require.NoError(t, err)
	want := cat([]byte{0xEB, byte(2 + len(body))}, []byte{0xEB, byte(len(body))}, body, []byte{0xC3})
	assert.Equal(t, want, res.Code)
	assert.Equal(t, 2, res.Stats.Patterns[PatternShortBranch])
}

func le32(v int32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func TestPinnedInstructionKeepsEncoding(t *testing.T) {
	in := cat([]byte{0x48, 0xB8, 0x2A, 0, 0, 0, 0, 0, 0, 0}, []byte{0xC3})
	res, err := Optimize(in, Options{Level: LevelUltra, Pinned: []int{0}})
	require.NoError(t, err)
	assert.Equal(t, in, res.Code)
}

func TestMap(t *testing.T) {
	in := cat(
		[]byte{0x90},                                       // 0: removed
		[]byte{0x48, 0xB8, 0x11, 0x22, 0x33, 0x44, 0, 0, 0, 0}, // 1: pinned
		[]byte{0x90},                                       // 11: removed
		[]byte{0xC3},                                       // 12
	)
	res, err := Optimize(in, Options{Level: LevelUltra, Pinned: []int{1}})
	require.NoError(t, err)
	require.Equal(t, in[1:11], res.Code[:10])

	m := res.Map
	for old, want := range map[int]int{0: 0, 1: 0, 3: 2, 11: 10, 12: 10, 13: 11} {
		got, ok := m.Translate(old)
		assert.True(t, ok, "offset %d", old)
		assert.Equal(t, want, got, "offset %d", old)
	}
	_, ok := m.Translate(14)
	assert.False(t, ok)
	assert.Equal(t, 13, m.OldSize())
	assert.Equal(t, 11, m.NewSize())
	assert.Equal(t, 2, res.Stats.InstructionsRemoved)
}

func TestMapRejectsInteriorOfRewrittenInstruction(t *testing.T) {
	in := []byte{0x48, 0x81, 0xEC, 0x20, 0, 0, 0, 0xC3}
	res, err := Optimize(in, Options{Level: LevelAggressive})
	require.NoError(t, err)
	_, ok := res.Map.Translate(3)
	assert.False(t, ok)
	n, ok := res.Map.Translate(7)
	assert.True(t, ok)
	assert.Equal(t, 4, n)
}

func TestRIPRelativeTargetKept(t *testing.T) {
	in := cat([]byte{0x90}, []byte{0xFF, 0x15}, le32(0x100), []byte{0xC3})
	res, err := Optimize(in, Options{Level: LevelBasic})
	require.NoError(t, err)
	// target was 7+0x100 code-relative; the call now ends at 6
	assert.Equal(t, cat([]byte{0xFF, 0x15}, le32(0x101), []byte{0xC3}), res.Code)
}

func TestRIPRelativeTargetInsideCodeRangeKept(t *testing.T) {
	// the operand addresses 2, which is also a valid code offset, but a
	// RIP-relative operand never points into the code this encoder emits
	in := cat(repeat([]byte{0x90}, 4), []byte{0xFF, 0x15}, le32(-8), []byte{0xC3})
	res, err := Optimize(in, Options{Level: LevelBasic})
	require.NoError(t, err)
	assert.Equal(t, cat([]byte{0xFF, 0x15}, le32(-4), []byte{0xC3}), res.Code)
}

func TestUndecodableInputIsUnchanged(t *testing.T) {
	tests := map[string][]byte{
		"unknown opcode":        {0x06, 0xC3},
		"truncated":             {0x48, 0xB8, 0x01},
		"branch into insn":      {0xEB, 0x01, 0x48, 0xB8, 0, 0, 0, 0, 0, 0, 0, 0, 0xC3},
		"unknown two-byte op":   {0x0F, 0xFF, 0xC3},
		"truncated jump target": {0xE9, 0x00},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := Optimize(in, Options{Level: LevelUltra})
			require.NoError(t, err)
			assert.Equal(t, in, res.Code)
			assert.NotEmpty(t, res.Stats.Skipped)
			n, ok := res.Map.Translate(1)
			assert.True(t, ok)
			assert.Equal(t, 1, n)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"none": LevelNone, "0": LevelNone, "": LevelNone,
		"basic": LevelBasic, "1": LevelBasic,
		"Aggressive": LevelAggressive, "2": LevelAggressive,
		"ultra": LevelUltra, "3": LevelUltra, "max": LevelUltra,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("extreme")
	assert.Error(t, err)
}

func TestStatsString(t *testing.T) {
	res, err := Optimize([]byte{0x90, 0x48, 0xC7, 0xC0, 0, 0, 0, 0, 0xC3}, Options{Level: LevelBasic})
	require.NoError(t, err)
	s := res.Stats.String()
	assert.Contains(t, s, "9 -> 3 bytes")
	assert.Contains(t, s, "zero-mov")
	assert.Contains(t, s, "nop")
}

func compiledProgram(t *testing.T) *codegen.Image {
	t.Helper()
	n := &ast.Var{Name: "n"}
	prog := &ast.Program{Functions: []*ast.Function{
		{Name: "fib", Params: []string{"n"}, Body: []ast.Stmt{
			&ast.If{
				Cond: &ast.Compare{Op: ast.Lt, Left: n, Right: &ast.IntLit{Value: 2}},
				Then: []ast.Stmt{&ast.Return{Value: n}},
			},
			&ast.Return{Value: &ast.Binary{
				Op:    ast.Add,
				Left:  &ast.Call{Name: "fib", Args: []ast.Expr{&ast.Binary{Op: ast.Sub, Left: n, Right: &ast.IntLit{Value: 1}}}},
				Right: &ast.Call{Name: "fib", Args: []ast.Expr{&ast.Binary{Op: ast.Sub, Left: n, Right: &ast.IntLit{Value: 2}}}},
			}},
		}},
		{Name: "main", Body: []ast.Stmt{
			&ast.Assign{Name: "total", Value: &ast.IntLit{Value: 0}},
			&ast.For{Var: "i", Start: &ast.IntLit{Value: 0}, End: &ast.IntLit{Value: 10}, Body: []ast.Stmt{
				&ast.Assign{Name: "total", Value: &ast.Binary{Op: ast.Add, Left: &ast.Var{Name: "total"}, Right: &ast.Call{Name: "fib", Args: []ast.Expr{&ast.Var{Name: "i"}}}}},
			}},
			&ast.While{Cond: &ast.Compare{Op: ast.Gt, Left: &ast.Var{Name: "total"}, Right: &ast.IntLit{Value: 100}}, Body: []ast.Stmt{
				&ast.Assign{Name: "total", Value: &ast.Binary{Op: ast.Sub, Left: &ast.Var{Name: "total"}, Right: &ast.IntLit{Value: 1}}},
			}},
			&ast.Return{Value: &ast.Var{Name: "total"}},
		}},
	}}
	img, err := codegen.Compile(prog, codegen.Options{Target: engine.TargetRaw})
	require.NoError(t, err)
	return img
}

func TestCompiledCodeKeepsCallTargets(t *testing.T) {
	img := compiledProgram(t)
	for _, level := range []Level{LevelBasic, LevelAggressive, LevelUltra} {
		t.Run(level.String(), func(t *testing.T) {
			res, err := Optimize(img.Code, Options{Level: level})
			require.NoError(t, err)
			require.Empty(t, res.Stats.Skipped)
			assert.Less(t, len(res.Code), len(img.Code))

			starts := make(map[int]bool)
			for _, f := range img.Functions {
				n, ok := res.Map.Translate(f.Offset)
				require.True(t, ok)
				starts[n] = true
			}
			insns, err := decode(res.Code)
			require.NoError(t, err)
			calls := 0
			for _, in := range insns {
				if in.branch == callNear {
					calls++
					assert.True(t, starts[in.target], "call at 0x%x lands on 0x%x", in.off, in.target)
				}
			}
			assert.Equal(t, 3, calls)
		})
	}
}

func TestOptimizeIsIdempotentAtFixedPoint(t *testing.T) {
	img := compiledProgram(t)
	first, err := Optimize(img.Code, Options{Level: LevelUltra})
	require.NoError(t, err)
	second, err := Optimize(first.Code, Options{Level: LevelUltra})
	require.NoError(t, err)
	assert.Equal(t, first.Code, second.Code)
	assert.Zero(t, second.Stats.BytesSaved)
}
