package optimizer

import (
	"bytes"
	"encoding/binary"
)

// node is an instruction as the passes see it: the decoded original plus its
// current encoding
type node struct {
	in      *insn
	code    []byte
	removed bool
	short   bool // near branch relaxed to its rel8 form
}

func (n *node) changed() bool {
	return n.removed || n.short || !bytes.Equal(n.code, n.in.raw)
}

type program struct {
	size    int
	nodes   []*node
	pinned  map[int]bool
	targets map[int]bool // old offsets some branch lands on
}

func newProgram(code []byte, insns []*insn, pinned []int) *program {
	p := &program{
		size:    len(code),
		nodes:   make([]*node, len(insns)),
		pinned:  make(map[int]bool, len(pinned)),
		targets: make(map[int]bool),
	}
	for i, in := range insns {
		p.nodes[i] = &node{in: in, code: in.raw}
		if in.branch != notBranch && internal(in.target, len(code)) {
			p.targets[in.target] = true
		}
	}
	for _, off := range pinned {
		p.pinned[off] = true
	}
	return p
}

func (p *program) removed() int {
	n := 0
	for _, nd := range p.nodes {
		if nd.removed {
			n++
		}
	}
	return n
}

// free reports whether the node may be rewritten
func (p *program) free(i int) bool {
	nd := p.nodes[i]
	return !nd.removed && !p.pinned[nd.in.off]
}

// next returns the next live node after i. It fails if a removed node in
// between is a branch target, since code entering there would otherwise
// skip part of the pair being fused.
func (p *program) next(i int) (int, bool) {
	for j := i + 1; j < len(p.nodes); j++ {
		nd := p.nodes[j]
		if !nd.removed {
			return j, true
		}
		if p.targets[nd.in.off] {
			return 0, false
		}
	}
	return 0, false
}

var nopForms = [][]byte{{0x90}, {0x66, 0x90}, {0x0F, 0x1F, 0x00}}

// rewrite applies one pattern over the whole program and returns how often
// it matched
func (p *program) rewrite(pat Pattern) int {
	count := 0
	for i := range p.nodes {
		if !p.free(i) {
			continue
		}
		if p.apply(pat, i) {
			count++
		}
	}
	return count
}

func (p *program) apply(pat Pattern, i int) bool {
	nd := p.nodes[i]
	c := nd.code
	switch pat {
	case PatternNop:
		for _, f := range nopForms {
			if bytes.Equal(c, f) {
				nd.removed = true
				return true
			}
		}

	case PatternZeroMov:
		// mov r64, 0 (C7 /0) -> xor r32, r32
		if len(c) == 7 && (c[0] == 0x48 || c[0] == 0x49) && c[1] == 0xC7 && c[2]&0xF8 == 0xC0 &&
			binary.LittleEndian.Uint32(c[3:]) == 0 && p.flagsDead(i) {
			r := c[2] & 7
			xor := []byte{0x31, 0xC0 | r<<3 | r}
			if c[0] == 0x49 {
				xor = append([]byte{0x45}, xor...)
			}
			nd.code = xor
			return true
		}

	case PatternLeave:
		if !bytes.Equal(c, []byte{0x48, 0x89, 0xEC}) {
			return false
		}
		j, ok := p.next(i)
		if !ok || !p.free(j) || p.targets[p.nodes[j].in.off] || !bytes.Equal(p.nodes[j].code, []byte{0x5D}) {
			return false
		}
		nd.code = []byte{0xC9}
		p.nodes[j].removed = true
		return true

	case PatternImm32:
		// mov r64, imm64 with a zero upper half -> mov r32, imm32
		if len(c) == 10 && (c[0] == 0x48 || c[0] == 0x49) && c[1]&0xF8 == 0xB8 &&
			binary.LittleEndian.Uint32(c[6:]) == 0 {
			short := make([]byte, 0, 6)
			if c[0] == 0x49 {
				short = append(short, 0x41)
			}
			short = append(short, c[1])
			short = append(short, c[2:6]...)
			nd.code = short
			return true
		}

	case PatternSubRSPImm8:
		if len(c) == 7 && c[0] == 0x48 && c[1] == 0x81 && c[2] == 0xEC {
			v := int32(binary.LittleEndian.Uint32(c[3:]))
			if v >= -128 && v <= 127 {
				nd.code = []byte{0x48, 0x83, 0xEC, byte(int8(v))}
				return true
			}
		}

	case PatternPushPop:
		r, ok := pushReg(c)
		if !ok {
			return false
		}
		j, ok := p.next(i)
		if !ok || !p.free(j) || p.targets[p.nodes[j].in.off] {
			return false
		}
		if pr, ok := popReg(p.nodes[j].code); ok && pr == r {
			nd.removed = true
			p.nodes[j].removed = true
			return true
		}
	}
	return false
}

func pushReg(c []byte) (byte, bool) {
	switch {
	case len(c) == 1 && c[0] >= 0x50 && c[0] <= 0x57:
		return c[0] - 0x50, true
	case len(c) == 2 && c[0] == 0x41 && c[1] >= 0x50 && c[1] <= 0x57:
		return c[1] - 0x50 + 8, true
	}
	return 0, false
}

func popReg(c []byte) (byte, bool) {
	switch {
	case len(c) == 1 && c[0] >= 0x58 && c[0] <= 0x5F:
		return c[0] - 0x58, true
	case len(c) == 2 && c[0] == 0x41 && c[1] >= 0x58 && c[1] <= 0x5F:
		return c[1] - 0x58 + 8, true
	}
	return 0, false
}

// lookAhead bounds how many flag-neutral instructions flagsDead walks over
const lookAhead = 4

type flagEffect int

const (
	flagsUnknown flagEffect = iota // reads flags, branches, or unclassified
	flagsKilled                    // overwrites every flag without reading any
	flagsKept                      // neither reads nor writes flags
)

// flagsDead proves that the flags after node i are overwritten before
// anything can read them
func (p *program) flagsDead(i int) bool {
	for step := 0; step < lookAhead; step++ {
		j, ok := p.next(i)
		if !ok {
			return false
		}
		switch effect(p.nodes[j].code) {
		case flagsKilled:
			return true
		case flagsKept:
			i = j
		default:
			return false
		}
	}
	return false
}

func effect(code []byte) flagEffect {
	in, err := decodeOne(code, 0)
	if err != nil || len(in.raw) != len(code) {
		return flagsUnknown
	}
	op := in.op
	if in.twoOp {
		switch {
		case op == 0xAF: // imul: CF/OF defined, the rest undefined
			return flagsKilled
		case op == 0xB6, op == 0xB7, op == 0xBE, op == 0xBF, op == 0x6E, op == 0x7E, op == 0x1F:
			return flagsKept
		}
		return flagsUnknown
	}
	switch op {
	case 0x01, 0x03, 0x09, 0x0B, 0x21, 0x23, 0x29, 0x2B, 0x31, 0x33, 0x39, 0x3B, 0x84, 0x85:
		return flagsKilled
	case 0x81, 0x83:
		// adc and sbb read CF
		if ext := (in.raw[in.modrm] >> 3) & 7; ext != 2 && ext != 3 {
			return flagsKilled
		}
	case 0xF7:
		switch (in.raw[in.modrm] >> 3) & 7 {
		case 2: // not
			return flagsKept
		case 0, 3, 4, 5, 6, 7: // test, neg, mul, imul, div, idiv
			return flagsKilled
		}
	case 0xC3, 0xE8:
		// flags are not preserved across calls and returns
		return flagsKilled
	case 0x88, 0x89, 0x8A, 0x8B, 0x8D, 0xC7, 0x90, 0x99, 0xC9:
		return flagsKept
	}
	switch {
	case op >= 0x50 && op <= 0x5F, op >= 0xB8 && op <= 0xBF:
		return flagsKept
	}
	return flagsUnknown
}
