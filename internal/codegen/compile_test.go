package codegen

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/hexlink/internal/ast"
	"github.com/xyproto/hexlink/internal/diag"
	"github.com/xyproto/hexlink/internal/engine"
)

func sampleProgram() *ast.Program {
	return &ast.Program{
		Functions: []*ast.Function{
			{Name: "add", Params: []string{"a", "b"}, Body: []ast.Stmt{
				&ast.Return{Value: &ast.Binary{Op: ast.Add, Left: variable("a"), Right: variable("b")}},
			}},
			{Name: "main", Body: []ast.Stmt{
				&ast.Assign{Name: "total", Value: lit(0)},
				&ast.For{Var: "i", Start: lit(0), End: lit(10), Body: []ast.Stmt{
					&ast.Assign{Name: "total", Value: &ast.Call{Name: "add", Args: []ast.Expr{variable("total"), variable("i")}}},
				}},
				&ast.Return{Value: variable("total")},
			}},
		},
	}
}

func compile(t *testing.T, prog *ast.Program, target engine.Target) *Image {
	t.Helper()
	img, err := Compile(prog, Options{Target: target, Logger: nopLogger()})
	require.NoError(t, err)
	return img
}

func TestCompileDeterministic(t *testing.T) {
	for _, target := range []engine.Target{engine.TargetRaw, engine.TargetPE, engine.TargetELF} {
		t.Run(target.String(), func(t *testing.T) {
			a := compile(t, sampleProgram(), target)
			b := compile(t, sampleProgram(), target)
			assert.True(t, bytes.Equal(a.Code, b.Code), "code differs between runs")
			assert.Equal(t, a.Functions, b.Functions)
			assert.Equal(t, a.Relocations, b.Relocations)
		})
	}
}

func TestCompileLayout(t *testing.T) {
	img := compile(t, sampleProgram(), engine.TargetRaw)
	require.Len(t, img.Functions, 2)
	add, main := img.Functions[0], img.Functions[1]
	assert.Equal(t, "add", add.Name)
	assert.Equal(t, "main", main.Name)
	assert.Equal(t, "main", img.EntryName)

	// jmp main at offset 0, then add, then main
	assert.Equal(t, byte(0xE9), img.Code[0])
	assert.Equal(t, 5, add.Offset)
	assert.Equal(t, add.Offset+add.Size, main.Offset)
	assert.Equal(t, main.Offset+main.Size, len(img.Code))
	assert.Equal(t, int32(main.Offset-5), int32At(t, img.Code, 1))
	assert.Empty(t, img.Relocations)
	assert.Empty(t, img.Data)
}

func TestCompileSingleMainHasNoStub(t *testing.T) {
	prog := &ast.Program{Functions: []*ast.Function{{Name: "main", Body: []ast.Stmt{&ast.Return{Value: lit(0)}}}}}
	img := compile(t, prog, engine.TargetPE)
	assert.Equal(t, byte(0x55), img.Code[0])
	assert.Equal(t, 0, img.Entry)
}

func TestCompileLinuxEntryStub(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{&ast.Return{Value: lit(7)}}}
	img := compile(t, prog, engine.TargetELF)

	want := []byte{
		0xE8, 0x09, 0x00, 0x00, 0x00, // call __entry
		0x89, 0xC7, // mov edi, eax
		0xB8, 0x3C, 0x00, 0x00, 0x00, // mov eax, 60
		0x0F, 0x05, // syscall
	}
	require.GreaterOrEqual(t, len(img.Code), len(want))
	assert.Equal(t, want, img.Code[:len(want)])

	entry, ok := img.Function(entryName)
	require.True(t, ok)
	assert.Equal(t, len(want), entry.Offset)
}

func TestCompileTopLevelCallsMain(t *testing.T) {
	prog := &ast.Program{
		Functions: []*ast.Function{
			{Name: "main", Body: []ast.Stmt{&ast.Return{Value: lit(3)}}},
			{Name: "helper", Body: []ast.Stmt{&ast.Return{Value: lit(4)}}},
		},
		Statements: []ast.Stmt{&ast.Assign{Name: "x", Value: lit(1)}},
	}
	img := compile(t, prog, engine.TargetRaw)
	assert.Equal(t, entryName, img.EntryName)

	names := make([]string, len(img.Functions))
	for i, f := range img.Functions {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"helper", entryName, "main"}, names)

	entry, _ := img.Function(entryName)
	main, _ := img.Function("main")
	body := img.Code[entry.Offset : entry.Offset+entry.Size]
	i := bytes.IndexByte(body, 0xE8)
	require.NotEqual(t, -1, i, "entry does not call main")
	at := entry.Offset + i + 1
	assert.Equal(t, main.Offset, at+4+int(int32At(t, img.Code, at)))
}

func TestCompileEmptyProgram(t *testing.T) {
	img := compile(t, &ast.Program{}, engine.TargetRaw)
	assert.Equal(t, entryName, img.EntryName)
	assert.Equal(t, append(cat([]byte{0x55, 0x48, 0x89, 0xE5, 0x48, 0x81, 0xEC}, le32(0)), implicitEpilogue...), img.Code)
}

func TestCompileStringData(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.Print{X: &ast.StringLit{Value: `hi\n`}},
		&ast.Print{X: &ast.StringLit{Value: `hi\n`}},
	}}
	img := compile(t, prog, engine.TargetELF)
	assert.Equal(t, []byte("hi\n\x00"), img.Data)
	assert.Equal(t, []string{"hi\n"}, img.Strings)
	require.Len(t, img.Relocations, 2)
	for _, r := range img.Relocations {
		assert.Equal(t, RelData, r.Kind)
		assert.Equal(t, int64(0), r.Addend)
		assert.Equal(t, []byte{0x48, 0xBE}, img.Code[r.Site:r.Site+2], "mov rsi, imm64")
		assert.Equal(t, r.Site+2, r.Offset)
	}
}

func TestCompileWindowsImports(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{&ast.PrintNum{X: lit(42)}}}
	img := compile(t, prog, engine.TargetPE)
	assert.True(t, img.HasImports())

	var found bool
	for _, r := range img.Relocations {
		if r.Kind != RelImport {
			continue
		}
		found = true
		assert.Equal(t, "printf", r.Symbol)
		assert.Equal(t, []byte{0xFF, 0x15}, img.Code[r.Site:r.Site+2])
		// the displacement targets the assumed printf slot
		next := int64(engine.PETextRVA + r.Site + 6)
		slot, _ := engine.AssumedImportRVA("printf")
		assert.Equal(t, int64(slot), next+int64(int32At(t, img.Code, r.Offset)))
	}
	assert.True(t, found)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		prog   *ast.Program
		target engine.Target
		kind   error
	}{
		{
			name:   "opaque lambda",
			prog:   &ast.Program{Statements: []ast.Stmt{&ast.ExprStmt{X: &ast.Opaque{Kind: "lambda"}}}},
			target: engine.TargetRaw,
			kind:   diag.ErrEncoding,
		},
		{
			name:   "print on raw",
			prog:   &ast.Program{Statements: []ast.Stmt{&ast.Print{X: &ast.StringLit{Value: "x"}}}},
			target: engine.TargetRaw,
			kind:   diag.ErrEncoding,
		},
		{
			name:   "undefined function",
			prog:   &ast.Program{Statements: []ast.Stmt{&ast.ExprStmt{X: &ast.Call{Name: "missing"}}}},
			target: engine.TargetRaw,
			kind:   diag.ErrUnresolvedSymbol,
		},
		{
			name: "duplicate function",
			prog: &ast.Program{Functions: []*ast.Function{
				{Name: "f"}, {Name: "g"}, {Name: "f"},
			}},
			target: engine.TargetRaw,
			kind:   diag.ErrEncoding,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.prog, Options{Target: tt.target})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestTopLevelErrorsNameTopLevel(t *testing.T) {
	_, err := Compile(&ast.Program{Statements: []ast.Stmt{&ast.OpaqueStmt{Kind: "match"}}}, Options{})
	var enc *diag.EncodingError
	require.ErrorAs(t, err, &enc)
	assert.Equal(t, "top level", enc.Function)
	assert.Equal(t, "match", enc.Node)
}
