package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xyproto/hexlink/internal/engine"
)

// VarTable maps the variables of one function to frame slots.
// Slots are 8 bytes, handed out downward from the frame pointer.
type VarTable struct {
	slots  map[string]int32
	cursor int32 // most negative offset handed out
}

func NewVarTable() *VarTable {
	return &VarTable{slots: make(map[string]int32)}
}

// Reset clears all bindings at the start of a function
func (v *VarTable) Reset() {
	clear(v.slots)
	v.cursor = 0
}

// Lookup returns the frame offset of name
func (v *VarTable) Lookup(name string) (int32, bool) {
	off, ok := v.slots[name]
	return off, ok
}

// Bind returns the slot of name, allocating a new one on first use
func (v *VarTable) Bind(name string) int32 {
	if off, ok := v.slots[name]; ok {
		return off
	}
	off := v.Alloc()
	v.slots[name] = off
	return off
}

// BindAt binds name to a fixed offset, used for stack-passed parameters
func (v *VarTable) BindAt(name string, off int32) {
	v.slots[name] = off
}

// Alloc hands out an anonymous slot
func (v *VarTable) Alloc() int32 {
	v.cursor -= 8
	return v.cursor
}

// AllocN hands out n contiguous slots and returns the lowest offset
func (v *VarTable) AllocN(n int) int32 {
	v.cursor -= int32(8 * n)
	return v.cursor
}

// FrameSize is the size of the local area rounded up to 16 bytes
func (v *VarTable) FrameSize() int {
	return engine.AlignUp(int(-v.cursor), 16)
}

// Names returns the bound variable names, sorted
func (v *VarTable) Names() []string {
	names := make([]string, 0, len(v.slots))
	for n := range v.slots {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FunctionSymbol is a function's placement in the final code
type FunctionSymbol struct {
	Name      string
	Offset    int
	Size      int
	Params    []string
	FrameSize int
}

// FunctionTable records function start offsets in definition order
type FunctionTable struct {
	byName map[string]int
	syms   []FunctionSymbol
}

func NewFunctionTable() *FunctionTable {
	return &FunctionTable{byName: make(map[string]int)}
}

// Define records the start of name
func (t *FunctionTable) Define(name string, offset int, params []string) error {
	if _, ok := t.byName[name]; ok {
		return fmt.Errorf("function %q defined twice", name)
	}
	t.byName[name] = len(t.syms)
	t.syms = append(t.syms, FunctionSymbol{Name: name, Offset: offset, Params: append([]string(nil), params...)})
	return nil
}

// Close records the end and frame size of name
func (t *FunctionTable) Close(name string, end, frameSize int) {
	if i, ok := t.byName[name]; ok {
		t.syms[i].Size = end - t.syms[i].Offset
		t.syms[i].FrameSize = frameSize
	}
}

// Lookup returns the start offset of name
func (t *FunctionTable) Lookup(name string) (int, bool) {
	i, ok := t.byName[name]
	if !ok {
		return 0, false
	}
	return t.syms[i].Offset, true
}

// Names returns all function names in definition order
func (t *FunctionTable) Names() []string {
	names := make([]string, len(t.syms))
	for i, s := range t.syms {
		names[i] = s.Name
	}
	return names
}

// Symbols returns a copy of the table, ordered by offset
func (t *FunctionTable) Symbols() []FunctionSymbol {
	out := append([]FunctionSymbol(nil), t.syms...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// StringTable interns NUL-terminated strings for the data section
type StringTable struct {
	offsets map[string]int
	order   []string
	size    int
}

func NewStringTable() *StringTable {
	return &StringTable{offsets: make(map[string]int)}
}

// Intern returns the offset of s, adding it on first use.
// s must already have its escapes processed.
func (t *StringTable) Intern(s string) int {
	if off, ok := t.offsets[s]; ok {
		return off
	}
	off := t.size
	t.offsets[s] = off
	t.order = append(t.order, s)
	t.size += len(s) + 1
	return off
}

// Len is the total size in bytes including terminators
func (t *StringTable) Len() int {
	return t.size
}

// Strings returns the interned strings in offset order
func (t *StringTable) Strings() []string {
	return append([]string(nil), t.order...)
}

// Bytes returns the table contents
func (t *StringTable) Bytes() []byte {
	out := make([]byte, 0, t.size)
	for _, s := range t.order {
		out = append(out, s...)
		out = append(out, 0)
	}
	return out
}

// unescape processes \n, \t, \r, \\, \" and \0
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			sb.WriteByte(0)
		case '\\':
			sb.WriteByte('\\')
		case '"':
			sb.WriteByte('"')
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
