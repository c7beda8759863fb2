// Completion: 100% - Error kinds complete, clear and helpful messages
package diag

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Sentinels for errors.Is. Every error the code generator or the linker
// reports about the program being built matches exactly one of these.
// Invalid options, such as an unknown target or a negative fixed size, are
// plain errors and fall in CategoryInternal.
var (
	ErrEncoding              = errors.New("encoding error")
	ErrUnresolvedSymbol      = errors.New("unresolved symbol")
	ErrFrameOverflow         = errors.New("frame overflow")
	ErrContainerSizeExceeded = errors.New("container size exceeded")
	ErrIO                    = errors.New("i/o error")
)

// Category classifies an error for display
type Category int

const (
	CategoryEncoding Category = iota
	CategoryResolve
	CategoryFrame
	CategoryContainer
	CategoryIO
	CategoryInternal
)

func (c Category) String() string {
	switch c {
	case CategoryEncoding:
		return "encoding"
	case CategoryResolve:
		return "resolve"
	case CategoryFrame:
		return "frame"
	case CategoryContainer:
		return "container"
	case CategoryIO:
		return "io"
	default:
		return "internal"
	}
}

// EncodingError reports a syntax-tree node the backend cannot encode
type EncodingError struct {
	Node       string // node kind, e.g. "lambda"
	Function   string // enclosing function, empty at top level
	Offset     int    // stream offset when the failure happened
	Reason     string
	Suggestion string
}

func (e *EncodingError) Error() string {
	var sb strings.Builder
	sb.WriteString("cannot encode ")
	if e.Node != "" {
		sb.WriteString(e.Node)
	} else {
		sb.WriteString("node")
	}
	if e.Function != "" {
		fmt.Fprintf(&sb, " in %s", e.Function)
	}
	fmt.Fprintf(&sb, " at offset 0x%x", e.Offset)
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	return sb.String()
}

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// UnresolvedRef is one call or jump site naming a function that does not exist
type UnresolvedRef struct {
	Symbol      string
	Offset      int
	Suggestions []string
}

func (r UnresolvedRef) Error() string {
	msg := fmt.Sprintf("undefined function %q referenced at offset 0x%x", r.Symbol, r.Offset)
	if len(r.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", quoteList(r.Suggestions))
	}
	return msg
}

// UnresolvedSymbolError aggregates every unresolved reference of a build
type UnresolvedSymbolError struct {
	Refs []UnresolvedRef
	errs *multierror.Error
}

// NewUnresolvedSymbolError builds the aggregate, ordered by offset
func NewUnresolvedSymbolError(refs []UnresolvedRef) *UnresolvedSymbolError {
	sorted := append([]UnresolvedRef(nil), refs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	var merr *multierror.Error
	for _, r := range sorted {
		merr = multierror.Append(merr, r)
	}
	if merr != nil {
		merr.ErrorFormat = func(es []error) string {
			if len(es) == 1 {
				return es[0].Error()
			}
			lines := make([]string, len(es))
			for i, e := range es {
				lines[i] = "  * " + e.Error()
			}
			return fmt.Sprintf("%d unresolved symbols:\n%s", len(es), strings.Join(lines, "\n"))
		}
	}
	return &UnresolvedSymbolError{Refs: sorted, errs: merr}
}

func (e *UnresolvedSymbolError) Error() string {
	if e.errs == nil {
		return "unresolved symbol"
	}
	return e.errs.Error()
}

func (e *UnresolvedSymbolError) Is(target error) bool { return target == ErrUnresolvedSymbol }

// Symbols returns the distinct unresolved names in order of first reference
func (e *UnresolvedSymbolError) Symbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range e.Refs {
		if !seen[r.Symbol] {
			seen[r.Symbol] = true
			out = append(out, r.Symbol)
		}
	}
	return out
}

// FrameOverflowError reports a stack frame above the configured limit
type FrameOverflowError struct {
	Function string
	Size     int
	Limit    int
}

func (e *FrameOverflowError) Error() string {
	return fmt.Sprintf("stack frame of %s is %d bytes, limit is %d", e.Function, e.Size, e.Limit)
}

func (e *FrameOverflowError) Is(target error) bool { return target == ErrFrameOverflow }

// ContainerSizeExceededError reports output that does not fit a size-capped target
type ContainerSizeExceededError struct {
	Target string
	Size   int
	Limit  int
}

func (e *ContainerSizeExceededError) Error() string {
	return fmt.Sprintf("%s: %d bytes exceed the %d byte limit", e.Target, e.Size, e.Limit)
}

func (e *ContainerSizeExceededError) Is(target error) bool { return target == ErrContainerSizeExceeded }

// IOError wraps a failure writing the output file
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// CategoryOf classifies err for display
func CategoryOf(err error) Category {
	switch {
	case errors.Is(err, ErrEncoding):
		return CategoryEncoding
	case errors.Is(err, ErrUnresolvedSymbol):
		return CategoryResolve
	case errors.Is(err, ErrFrameOverflow):
		return CategoryFrame
	case errors.Is(err, ErrContainerSizeExceeded):
		return CategoryContainer
	case errors.Is(err, ErrIO):
		return CategoryIO
	default:
		return CategoryInternal
	}
}

func quoteList(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = "'" + n + "'"
	}
	return strings.Join(q, " or ")
}
