package codegen

import (
	"github.com/xyproto/hexlink/internal/diag"
	"github.com/xyproto/hexlink/internal/engine"
)

// Resolve patches every call and jump placeholder with
// target - (placeholder + 4). All missing targets are reported together.
// Data and import relocations are returned untouched for the container.
func Resolve(s *Stream, funcs *FunctionTable, relocs []Relocation) ([]Relocation, error) {
	var (
		rest    []Relocation
		missing []diag.UnresolvedRef
	)
	for _, r := range relocs {
		switch r.Kind {
		case RelCall, RelJump:
			target, ok := funcs.Lookup(r.Symbol)
			if !ok {
				missing = append(missing, diag.UnresolvedRef{
					Symbol:      r.Symbol,
					Offset:      r.Offset,
					Suggestions: engine.SimilarNames(r.Symbol, funcs.Names(), 3),
				})
				continue
			}
			if err := s.PatchInt32(r.Offset, int32(target-(r.Offset+4))); err != nil {
				return nil, &diag.EncodingError{Node: r.Kind.String(), Offset: r.Site, Reason: err.Error()}
			}
		default:
			rest = append(rest, r)
		}
	}
	if len(missing) > 0 {
		return nil, diag.NewUnresolvedSymbolError(missing)
	}
	return rest, nil
}
