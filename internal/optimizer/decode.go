package optimizer

import (
	"encoding/binary"
	"fmt"
)

type branchKind uint8

const (
	notBranch branchKind = iota
	jmpShort             // EB rel8
	jmpNear              // E9 rel32
	jccShort             // 7x rel8
	jccNear              // 0F 8x rel32
	callNear             // E8 rel32
)

func (k branchKind) short() bool { return k == jmpShort || k == jccShort }

// insn is one decoded instruction of the input stream
type insn struct {
	off    int
	raw    []byte
	rex    byte
	op     byte // primary opcode, second byte when twoByte
	twoOp  bool
	modrm  int // index of the ModRM byte in raw, -1 without one
	rip    int // index of a RIP-relative disp32 in raw, -1 without one
	branch branchKind
	cond   byte // low nibble of a conditional jump
	target int  // code-relative branch or RIP target
}

func (in *insn) end() int { return in.off + len(in.raw) }

// reg returns the ModRM reg field, extended by REX.R
func (in *insn) reg() byte {
	return (in.raw[in.modrm]>>3)&7 | (in.rex&4)<<1
}

// rm returns the ModRM rm field, extended by REX.B
func (in *insn) rm() byte {
	return in.raw[in.modrm]&7 | (in.rex&1)<<3
}

func (in *insn) mod() byte {
	return in.raw[in.modrm] >> 6
}

// immediate operand sizes of one-byte opcodes that take no ModRM
var oneByteImm = map[byte]int{
	0x04: 1, 0x05: 4, 0x0C: 1, 0x0D: 4, 0x14: 1, 0x15: 4, 0x1C: 1, 0x1D: 4,
	0x24: 1, 0x25: 4, 0x2C: 1, 0x2D: 4, 0x34: 1, 0x35: 4, 0x3C: 1, 0x3D: 4,
	0x68: 4, 0x6A: 1, 0xA8: 1, 0xA9: 4, 0xC2: 2, 0xCD: 1,
}

// immediate operand sizes of one-byte opcodes that take a ModRM
var modrmImm = map[byte]int{
	0x69: 4, 0x6B: 1, 0x80: 1, 0x81: 4, 0x83: 1, 0xC0: 1, 0xC1: 1, 0xC6: 1, 0xC7: 4,
}

func hasModRM(op byte) bool {
	switch {
	case op < 0x40 && op&7 < 4:
		return true
	case op == 0x63, op == 0x69, op == 0x6B:
		return true
	case op >= 0x80 && op <= 0x8F:
		return true
	case op == 0xC0, op == 0xC1, op == 0xC6, op == 0xC7:
		return true
	case op >= 0xD0 && op <= 0xD3:
		return true
	case op == 0xF6, op == 0xF7, op == 0xFE, op == 0xFF:
		return true
	}
	return false
}

func noOperands(op byte) bool {
	switch {
	case op >= 0x50 && op <= 0x5F:
		return true
	case op >= 0x90 && op <= 0x99:
		return true
	}
	switch op {
	case 0x9C, 0x9D, 0xC3, 0xC9, 0xCC, 0xF4, 0xF5, 0xF8, 0xF9, 0xFA, 0xFB, 0xFC, 0xFD:
		return true
	}
	return false
}

func twoByteModRM(op byte) bool {
	switch {
	case op == 0x1F, op == 0x10, op == 0x11:
		return true
	case op >= 0x28 && op <= 0x2F:
		return true
	case op >= 0x40 && op <= 0x4F:
		return true
	case op >= 0x51 && op <= 0x5F:
		return true
	case op == 0x6E, op == 0x6F, op == 0x7E, op == 0x7F, op == 0xD6:
		return true
	case op >= 0x90 && op <= 0x9F:
		return true
	case op == 0xA3, op == 0xAB, op == 0xAF:
		return true
	case op == 0xB6, op == 0xB7, op == 0xBE, op == 0xBF:
		return true
	}
	return false
}

func twoByteNoOperands(op byte) bool {
	switch {
	case op == 0x05, op == 0x0B, op == 0xA2:
		return true
	case op >= 0xC8 && op <= 0xCF:
		return true
	}
	return false
}

// decodeOne decodes the instruction at off
func decodeOne(code []byte, off int) (*insn, error) {
	i := off
	need := func(n int) error {
		if i+n > len(code) {
			return fmt.Errorf("truncated instruction at 0x%x", off)
		}
		return nil
	}
	in := &insn{off: off, modrm: -1, rip: -1}

	opsize16 := false
	for i < len(code) && (code[i] == 0x66 || code[i] == 0xF2 || code[i] == 0xF3) {
		opsize16 = opsize16 || code[i] == 0x66
		i++
	}
	if err := need(1); err != nil {
		return nil, err
	}
	if code[i]&0xF0 == 0x40 {
		in.rex = code[i]
		i++
		if err := need(1); err != nil {
			return nil, err
		}
	}

	op := code[i]
	i++
	imm := 0
	withModRM := false

	switch {
	case op == 0x0F:
		if err := need(1); err != nil {
			return nil, err
		}
		op = code[i]
		i++
		in.twoOp = true
		switch {
		case op >= 0x80 && op <= 0x8F:
			in.branch, in.cond, imm = jccNear, op&0x0F, 4
		case twoByteModRM(op):
			withModRM = true
		case twoByteNoOperands(op):
		default:
			return nil, fmt.Errorf("unknown opcode 0F %02X at 0x%x", op, off)
		}
	case op >= 0x70 && op <= 0x7F:
		in.branch, in.cond, imm = jccShort, op&0x0F, 1
	case op == 0xEB:
		in.branch, imm = jmpShort, 1
	case op == 0xE9:
		in.branch, imm = jmpNear, 4
	case op == 0xE8:
		in.branch, imm = callNear, 4
	case op >= 0xB0 && op <= 0xB7:
		imm = 1
	case op >= 0xB8 && op <= 0xBF:
		switch {
		case in.rex&8 != 0:
			imm = 8
		case opsize16:
			imm = 2
		default:
			imm = 4
		}
	case hasModRM(op):
		withModRM = true
		imm = modrmImm[op]
		if op == 0xC7 && opsize16 {
			imm = 2
		}
	case noOperands(op):
	default:
		n, ok := oneByteImm[op]
		if !ok {
			return nil, fmt.Errorf("unknown opcode %02X at 0x%x", op, off)
		}
		imm = n
	}
	in.op = op

	if withModRM {
		if err := need(1); err != nil {
			return nil, err
		}
		in.modrm = i - off
		m := code[i]
		i++
		mod, rm := m>>6, m&7
		if !in.twoOp && (op == 0xF6 || op == 0xF7) && (m>>3)&7 < 2 {
			// test r/m, imm
			if op == 0xF6 {
				imm = 1
			} else {
				imm = 4
			}
		}
		if mod != 3 {
			if rm == 4 {
				if err := need(1); err != nil {
					return nil, err
				}
				sib := code[i]
				i++
				if mod == 0 && sib&7 == 5 {
					i += 4
				}
			}
			switch {
			case mod == 0 && rm == 5:
				in.rip = i - off
				i += 4
			case mod == 1:
				i++
			case mod == 2:
				i += 4
			}
		}
	}
	i += imm
	if i > len(code) {
		return nil, fmt.Errorf("truncated instruction at 0x%x", off)
	}
	in.raw = code[off:i]

	switch in.branch {
	case jmpShort, jccShort:
		in.target = i + int(int8(code[i-1]))
	case jmpNear, jccNear, callNear:
		in.target = i + int(int32(binary.LittleEndian.Uint32(code[i-4:])))
	}
	if in.rip >= 0 {
		in.target = i + int(int32(binary.LittleEndian.Uint32(in.raw[in.rip:])))
	}
	return in, nil
}

// decode splits code into instructions and checks that every branch into
// the code lands on an instruction boundary
func decode(code []byte) ([]*insn, error) {
	var out []*insn
	starts := make(map[int]bool)
	for off := 0; off < len(code); {
		in, err := decodeOne(code, off)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
		starts[off] = true
		off = in.end()
	}
	starts[len(code)] = true
	for _, in := range out {
		if in.branch == notBranch {
			continue
		}
		if internal(in.target, len(code)) && !starts[in.target] {
			return nil, fmt.Errorf("branch at 0x%x targets 0x%x inside an instruction", in.off, in.target)
		}
	}
	return out, nil
}

func internal(target, size int) bool {
	return target >= 0 && target <= size
}
