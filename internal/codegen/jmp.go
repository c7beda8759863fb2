// Completion: 100% - Instruction implementation complete
package codegen

import "fmt"

// Jump instructions for control flow:
//   - if/else: je over the then-branch, jmp over the else-branch
//   - while/for: conditional exit, unconditional back-edge
//
// Forward jumps are emitted with a zero rel32 and patched once the target
// is known. Backward jumps know their target and are encoded directly.

// Condition codes for jumps
type JumpCondition int

const (
	JumpEqual          JumpCondition = iota // JE/JZ - equal/zero
	JumpNotEqual                            // JNE/JNZ - not equal/not zero
	JumpGreater                             // JG/JNLE - greater (signed)
	JumpGreaterOrEqual                      // JGE/JNL - greater or equal (signed)
	JumpLess                                // JL/JNGE - less (signed)
	JumpLessOrEqual                         // JLE/JNG - less or equal (signed)
)

// code is the low nibble shared by Jcc (0F 80+cc) and SETcc (0F 90+cc)
func (c JumpCondition) code() uint8 {
	switch c {
	case JumpEqual:
		return 0x4
	case JumpNotEqual:
		return 0x5
	case JumpLess:
		return 0xC
	case JumpGreaterOrEqual:
		return 0xD
	case JumpLessOrEqual:
		return 0xE
	case JumpGreater:
		return 0xF
	}
	panic(fmt.Sprintf("codegen: unknown jump condition %d", c))
}

func (c JumpCondition) suffix() string {
	switch c {
	case JumpEqual:
		return "e"
	case JumpNotEqual:
		return "ne"
	case JumpLess:
		return "l"
	case JumpGreaterOrEqual:
		return "ge"
	case JumpLessOrEqual:
		return "le"
	case JumpGreater:
		return "g"
	}
	return "?"
}

// JumpConditional emits jcc rel32 with a zero placeholder and returns the
// offset of the rel32 field
func (o *Out) JumpConditional(cond JumpCondition) int {
	start := o.Pos()
	o.Write(0x0F)
	o.Write(0x80 | cond.code())
	at := o.Pos()
	o.disp32(0)
	o.trace(start, "j%s <forward>", cond.suffix())
	return at
}

// JumpUnconditional emits jmp rel32 with a zero placeholder and returns the
// offset of the rel32 field
func (o *Out) JumpUnconditional() int {
	start := o.Pos()
	o.Write(0xE9)
	at := o.Pos()
	o.disp32(0)
	o.trace(start, "jmp <forward>")
	return at
}

// JumpBack emits jmp rel32 to an earlier offset
func (o *Out) JumpBack(target int) {
	start := o.Pos()
	o.Write(0xE9)
	o.disp32(int32(target - (start + 5)))
	o.trace(start, "jmp 0x%x", target)
}

// PatchJump points the rel32 field at fieldOffset to target
func (o *Out) PatchJump(fieldOffset, target int) error {
	return o.s.PatchInt32(fieldOffset, int32(target-(fieldOffset+4)))
}

// PatchJumpHere points the rel32 field at fieldOffset to the current position
func (o *Out) PatchJumpHere(fieldOffset int) error {
	return o.PatchJump(fieldOffset, o.Pos())
}
