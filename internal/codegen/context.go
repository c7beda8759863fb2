package codegen

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/xyproto/hexlink/internal/ast"
	"github.com/xyproto/hexlink/internal/diag"
	"github.com/xyproto/hexlink/internal/engine"
)

// DefaultMaxFrameSize is the largest frame the imm32 prologue field can hold, rounded down to 16
const DefaultMaxFrameSize = 0x7FFFFFF0

// Options configures one code generation session
type Options struct {
	Target       engine.Target
	Strict       bool // reading an unbound variable is an error instead of zero
	MaxFrameSize int
	Logger       zerolog.Logger
}

// Context is the state of one compilation session. It owns the instruction
// stream, the symbol tables and the pending relocations; nothing else
// touches them.
type Context struct {
	opts   Options
	s      *Stream
	out    *Out
	vars   *VarTable
	funcs  *FunctionTable
	strs   *StringTable
	relocs []Relocation
	fn     string // function being compiled
	log    zerolog.Logger
}

// NewContext creates a session for opts
func NewContext(opts Options) *Context {
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = DefaultMaxFrameSize
	}
	if opts.Target == engine.TargetUnknown {
		opts.Target = engine.TargetRaw
	}
	s := NewStream()
	return &Context{
		opts:  opts,
		s:     s,
		out:   NewOut(s, opts.Logger),
		vars:  NewVarTable(),
		funcs: NewFunctionTable(),
		strs:  NewStringTable(),
		log:   opts.Logger,
	}
}

// Stream exposes the instruction stream, read-only by convention
func (c *Context) Stream() *Stream {
	return c.s
}

// Functions exposes the function table
func (c *Context) Functions() *FunctionTable {
	return c.funcs
}

// Relocations returns the pending relocations recorded so far
func (c *Context) Relocations() []Relocation {
	return append([]Relocation(nil), c.relocs...)
}

func (c *Context) addReloc(r Relocation) {
	c.relocs = append(c.relocs, r)
	c.log.Trace().Str("kind", r.Kind.String()).Str("symbol", r.Symbol).Int("offset", r.Offset).Msg("relocation")
}

// errorf builds an EncodingError for node at the current stream position
func (c *Context) errorf(node any, format string, args ...any) *diag.EncodingError {
	return &diag.EncodingError{
		Node:     ast.KindOf(node),
		Function: c.displayName(),
		Offset:   c.s.Len(),
		Reason:   fmt.Sprintf(format, args...),
	}
}

// wrap turns an internal failure (stack imbalance, bad patch) into an EncodingError
func (c *Context) wrap(node any, err error) error {
	if err == nil {
		return nil
	}
	return c.errorf(node, "%v", err)
}

func (c *Context) displayName() string {
	if c.fn == entryName {
		return "top level"
	}
	return c.fn
}

// internString processes escapes and interns s, returning its data offset
func (c *Context) internString(s string) int {
	return c.strs.Intern(unescape(s))
}

// loadDataAddr emits mov dst, imm64 carrying the absolute address of a
// string table entry, resolved later by the container
func (c *Context) loadDataAddr(node any, dst string, off int) error {
	if !c.opts.Target.HasData() {
		return c.errorf(node, "target %s has no data section for string constants", c.opts.Target)
	}
	site := c.s.Len()
	at := c.out.MovImmToReg(dst, 0)
	c.addReloc(Relocation{Offset: at, Site: site, Kind: RelData, Addend: int64(off)})
	return nil
}

// suggestVar proposes bound names close to name
func (c *Context) suggestVar(name string) string {
	similar := engine.SimilarNames(name, c.vars.Names(), 3)
	if len(similar) == 0 {
		return ""
	}
	q := make([]string, len(similar))
	for i, s := range similar {
		q[i] = "'" + s + "'"
	}
	return "did you mean " + strings.Join(q, " or ") + "?"
}
