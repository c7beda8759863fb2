package codegen

import (
	"github.com/xyproto/hexlink/internal/ast"
	"github.com/xyproto/hexlink/internal/engine"
)

// entryName is the function top-level statements compile into
const entryName = "__entry"

// Image is the finished output of code generation: resolved code, the string
// data, and the relocations only the container can resolve
type Image struct {
	Target      engine.Target
	Code        []byte
	Data        []byte
	Relocations []Relocation // RelData and RelImport only
	Functions   []FunctionSymbol
	Strings     []string
	Entry       int    // code offset execution starts at, always the stub or first function
	EntryName   string // function the entry stub transfers to
}

// HasImports is true when the code calls through the import table
func (img *Image) HasImports() bool {
	for _, r := range img.Relocations {
		if r.Kind == RelImport {
			return true
		}
	}
	return false
}

// Function returns the symbol of name
func (img *Image) Function(name string) (FunctionSymbol, bool) {
	for _, f := range img.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return FunctionSymbol{}, false
}

// Compile encodes a whole program.
//
// Layout: an entry stub at offset 0, the other functions in source order,
// then the entry function, then main. Top-level statements become the entry
// function, which ends by returning main() when main exists.
func Compile(prog *ast.Program, opts Options) (*Image, error) {
	c := NewContext(opts)
	return c.compileProgram(prog)
}

func (c *Context) compileProgram(prog *ast.Program) (*Image, error) {
	if prog == nil {
		prog = &ast.Program{}
	}
	seen := make(map[string]bool, len(prog.Functions))
	for _, f := range prog.Functions {
		if seen[f.Name] {
			return nil, c.errorf(f, "function %q defined twice", f.Name)
		}
		seen[f.Name] = true
	}
	mainFn, hasMain := prog.Lookup("main")

	entry := entryName
	var entryFn *ast.Function
	switch {
	case len(prog.Statements) > 0 || len(prog.Functions) == 0:
		body := append([]ast.Stmt(nil), prog.Statements...)
		if hasMain {
			body = append(body, &ast.Return{Value: &ast.Call{Name: "main"}})
		}
		entryFn = &ast.Function{Name: entryName, Body: body}
	case hasMain:
		entry, entryFn = "main", mainFn
	default:
		entry, entryFn = prog.Functions[0].Name, prog.Functions[0]
	}

	var others []*ast.Function
	for _, f := range prog.Functions {
		if f.Name != entry && f.Name != "main" {
			others = append(others, f)
		}
	}

	if err := c.emitEntryStub(entry, len(others) > 0); err != nil {
		return nil, err
	}
	for _, f := range others {
		if err := c.CompileFunction(f); err != nil {
			return nil, err
		}
	}
	if err := c.CompileFunction(entryFn); err != nil {
		return nil, err
	}
	if hasMain && entry != "main" {
		if err := c.CompileFunction(mainFn); err != nil {
			return nil, err
		}
	}

	rest, err := Resolve(c.s, c.funcs, c.relocs)
	if err != nil {
		return nil, err
	}

	img := &Image{
		Target:      c.opts.Target,
		Code:        c.s.Bytes(),
		Data:        c.strs.Bytes(),
		Relocations: rest,
		Functions:   c.funcs.Symbols(),
		Strings:     c.strs.Strings(),
		EntryName:   entry,
	}
	c.log.Debug().Int("code", len(img.Code)).Int("data", len(img.Data)).Int("relocations", len(rest)).Str("target", img.Target.String()).Msg("code generation done")
	return img, nil
}

// emitEntryStub writes the code at offset 0. On Linux the entry function's
// return value becomes the exit status; elsewhere a jump is only needed when
// other functions come first.
func (c *Context) emitEntryStub(entry string, needJump bool) error {
	c.fn = ""
	if c.opts.Target == engine.TargetELF {
		site := c.out.Pos()
		at := c.out.CallRelative()
		c.addReloc(Relocation{Offset: at, Site: site, Kind: RelCall, Symbol: entry})
		c.out.MovReg32ToReg32("edi", "eax")
		c.out.MovImm32ToReg32("eax", sysExit)
		c.out.Syscall()
		return nil
	}
	if needJump {
		site := c.out.Pos()
		at := c.out.JumpUnconditional()
		c.addReloc(Relocation{Offset: at, Site: site, Kind: RelJump, Symbol: entry})
	}
	return nil
}
