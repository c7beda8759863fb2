// stack_validator.go - Track stack operations to detect corruption
package codegen

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// StackValidator tracks the static push/pop depth of the function being
// encoded so an unbalanced sequence is caught at encode time.
type StackValidator struct {
	depth      int      // Current stack depth in bytes
	operations []string // History of operations for debugging
	log        zerolog.Logger
}

func NewStackValidator(log zerolog.Logger) *StackValidator {
	return &StackValidator{
		operations: make([]string, 0, 64),
		log:        log,
	}
}

func (sv *StackValidator) record(op string) {
	sv.operations = append(sv.operations, fmt.Sprintf("%s (depth=%d)", op, sv.depth))
	sv.log.Trace().Int("depth", sv.depth).Msg("stack: " + op)
}

func (sv *StackValidator) Push(reg string) {
	sv.depth += 8
	sv.record("push " + reg)
}

func (sv *StackValidator) Pop(reg string) error {
	if sv.depth < 8 {
		return fmt.Errorf("stack underflow: pop %s at depth %d\nrecent operations:\n%s", reg, sv.depth, sv.recent(10))
	}
	sv.depth -= 8
	sv.record("pop " + reg)
	return nil
}

// Sub records sub rsp, amount
func (sv *StackValidator) Sub(amount int) {
	sv.depth += amount
	sv.record(fmt.Sprintf("sub rsp, %d", amount))
}

// Add records add rsp, amount
func (sv *StackValidator) Add(amount int) error {
	if amount > sv.depth {
		return fmt.Errorf("stack underflow: add rsp, %d at depth %d\nrecent operations:\n%s", amount, sv.depth, sv.recent(10))
	}
	sv.depth -= amount
	sv.record(fmt.Sprintf("add rsp, %d", amount))
	return nil
}

// Depth returns the current depth in bytes
func (sv *StackValidator) Depth() int {
	return sv.depth
}

// Reset starts a new function
func (sv *StackValidator) Reset() {
	sv.depth = 0
	sv.operations = sv.operations[:0]
}

// Validate checks that the function ended balanced
func (sv *StackValidator) Validate(function string) error {
	if sv.depth != 0 {
		return fmt.Errorf("unbalanced stack in %s: %d bytes left\nrecent operations:\n%s", function, sv.depth, sv.recent(10))
	}
	return nil
}

func (sv *StackValidator) recent(n int) string {
	start := len(sv.operations) - n
	if start < 0 {
		start = 0
	}
	return "  " + strings.Join(sv.operations[start:], "\n  ")
}
