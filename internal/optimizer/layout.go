package optimizer

import (
	"encoding/binary"
	"fmt"
	"math"
)

// size is the length the node occupies in the new layout
func (n *node) size() int {
	if n.removed {
		return 0
	}
	if n.short {
		return 2
	}
	return len(n.code)
}

// layout computes the new start of every node and the new code size
func (p *program) layout() ([]int, int) {
	pos := make([]int, len(p.nodes))
	at := 0
	for i, nd := range p.nodes {
		pos[i] = at
		at += nd.size()
	}
	return pos, at
}

// relax shortens near jumps whose displacement fits in a byte, repeating
// until nothing changes. Shortening only ever brings instructions closer,
// so a branch once short stays in range and the loop terminates.
func (p *program) relax() (count, rounds int) {
	for {
		rounds++
		pos, end := p.layout()
		m := p.mapFor(pos, end)
		changed := false
		for i, nd := range p.nodes {
			in := nd.in
			if nd.removed || nd.short || p.pinned[in.off] {
				continue
			}
			if in.branch != jmpNear && in.branch != jccNear {
				continue
			}
			if !internal(in.target, p.size) {
				continue
			}
			target, ok := m.Translate(in.target)
			if !ok {
				continue
			}
			var disp int
			if in.target > in.off {
				// the distance from the end of the jump does not change when it shrinks
				disp = target - (pos[i] + nd.size())
			} else {
				disp = target - (pos[i] + 2)
			}
			if disp >= math.MinInt8 && disp <= math.MaxInt8 {
				nd.short = true
				count++
				changed = true
			}
		}
		if !changed {
			return count, rounds
		}
	}
}

// emit writes the final code with every branch and RIP-relative
// displacement recomputed for the new layout
func (p *program) emit() ([]byte, *Map, error) {
	pos, end := p.layout()
	m := p.mapFor(pos, end)
	out := make([]byte, 0, end)

	for i, nd := range p.nodes {
		if nd.removed {
			continue
		}
		in := nd.in
		start := pos[i]
		next := start + nd.size()

		// RIP-relative operands address the import table, which sits at a
		// fixed distance from the start of the code, so only branches move
		target := in.target
		if in.branch != notBranch && internal(target, p.size) {
			t, ok := m.Translate(target)
			if !ok {
				return nil, nil, fmt.Errorf("branch at 0x%x targets 0x%x, which did not survive", in.off, in.target)
			}
			target = t
		}

		switch {
		case in.branch == notBranch && in.rip < 0:
			out = append(out, nd.code...)

		case in.branch == notBranch:
			buf := append([]byte(nil), nd.code...)
			binary.LittleEndian.PutUint32(buf[in.rip:], uint32(int32(target-next)))
			out = append(out, buf...)

		case nd.short || in.branch.short():
			disp := target - next
			if disp < math.MinInt8 || disp > math.MaxInt8 {
				return nil, nil, fmt.Errorf("branch at 0x%x no longer reaches 0x%x with rel8", in.off, in.target)
			}
			op := byte(0xEB)
			if in.branch == jccNear || in.branch == jccShort {
				op = 0x70 | in.cond
			}
			out = append(out, op, byte(int8(disp)))

		default:
			disp := target - next
			if disp < math.MinInt32 || disp > math.MaxInt32 {
				return nil, nil, fmt.Errorf("branch at 0x%x out of rel32 range", in.off)
			}
			switch in.branch {
			case jccNear:
				out = append(out, 0x0F, 0x80|in.cond)
			case callNear:
				out = append(out, 0xE8)
			default:
				out = append(out, 0xE9)
			}
			out = binary.LittleEndian.AppendUint32(out, uint32(int32(disp)))
		}

		if len(out) != next {
			return nil, nil, fmt.Errorf("layout mismatch at 0x%x: wrote %d bytes, expected %d", in.off, len(out), next)
		}
	}
	return out, m, nil
}

func (p *program) mapFor(pos []int, end int) *Map {
	m := &Map{
		olds:    make([]int, len(p.nodes)),
		news:    make([]int, len(p.nodes)),
		same:    make([]bool, len(p.nodes)),
		oldSize: p.size,
		newSize: end,
	}
	for i, nd := range p.nodes {
		m.olds[i] = nd.in.off
		m.news[i] = pos[i]
		m.same[i] = !nd.changed()
	}
	return m
}
