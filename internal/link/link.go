// Package link wraps finished code in an executable container and resolves
// the relocations that depend on where the container places the data.
package link

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/xyproto/hexlink/internal/codegen"
	"github.com/xyproto/hexlink/internal/diag"
	"github.com/xyproto/hexlink/internal/engine"
)

// Options configures one container build
type Options struct {
	Target engine.Target
	// Origin is the load address of flat binaries and boot sectors;
	// 0 means the target's default
	Origin uint64
	// FixedSize pads a flat binary to this length and caps it
	FixedSize int
	Logger    zerolog.Logger
}

// Emit builds the container for img. Options.Target overrides img.Target
// when set.
func Emit(img *codegen.Image, opts Options) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("link: no image")
	}
	target := opts.Target
	if target == engine.TargetUnknown {
		target = img.Target
	}

	var (
		out []byte
		err error
	)
	switch target {
	case engine.TargetPE:
		out, err = emitPE(img, opts)
	case engine.TargetELF:
		out, err = emitELF(img, opts)
	case engine.TargetRaw:
		out, err = emitRaw(img)
	case engine.TargetTinyPE:
		out, err = emitTinyPE(img)
	case engine.TargetNanoPE:
		out, err = emitNanoPE(img)
	case engine.TargetBootSector:
		out, err = emitBootSector(img, opts)
	case engine.TargetFlat:
		out, err = emitFlat(img, opts)
	default:
		return nil, fmt.Errorf("link: unsupported target %s", target)
	}
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug().Str("target", target.String()).Int("code", len(img.Code)).Int("data", len(img.Data)).Int("size", len(out)).Msg("container written")
	return out, nil
}

// checkCap rejects code that does not fit the target
func checkCap(target engine.Target, size int) error {
	if limit := target.CodeLimit(); limit > 0 && size > limit {
		return &diag.ContainerSizeExceededError{Target: target.String(), Size: size, Limit: limit}
	}
	return nil
}

// codeOnly rejects images that need a data section or an import table
func codeOnly(target engine.Target, img *codegen.Image) error {
	if len(img.Relocations) > 0 {
		r := img.Relocations[0]
		return &diag.EncodingError{
			Node:   relocNode(r.Kind),
			Offset: r.Site,
			Reason: fmt.Sprintf("target %s holds code only, but the image has %d relocations", target, len(img.Relocations)),
		}
	}
	if len(img.Data) > 0 {
		return &diag.EncodingError{
			Node:   "string",
			Reason: fmt.Sprintf("target %s holds code only, but the image has %d bytes of data", target, len(img.Data)),
		}
	}
	return nil
}

// relocNode names the syntax-tree node a container relocation came from
func relocNode(k codegen.RelocKind) string {
	if k == codegen.RelData {
		return "string"
	}
	return "call"
}

func relocError(r codegen.Relocation, format string, args ...any) error {
	return &diag.EncodingError{Node: relocNode(r.Kind), Offset: r.Site, Reason: fmt.Sprintf(format, args...)}
}

// patchData stores the absolute address of each string at its RelData site
func patchData(code *codegen.Stream, relocs []codegen.Relocation, dataAddr uint64) error {
	for _, r := range relocs {
		if r.Kind != codegen.RelData {
			continue
		}
		if err := code.PatchUint64(r.Offset, dataAddr+uint64(r.Addend)); err != nil {
			return relocError(r, "data relocation: %v", err)
		}
	}
	return nil
}

// patchImports moves each import call displacement from the slot the encoder
// assumed to the slot the import table actually has
func patchImports(code *codegen.Stream, relocs []codegen.Relocation, slots map[string]uint32) error {
	for _, r := range relocs {
		if r.Kind != codegen.RelImport {
			continue
		}
		actual, ok := slots[r.Symbol]
		if !ok {
			return relocError(r, "%s is not in the import table", r.Symbol)
		}
		assumed, ok := engine.AssumedImportRVA(r.Symbol)
		if !ok {
			return relocError(r, "no assumed import slot for %s", r.Symbol)
		}
		disp, err := code.Int32At(r.Offset)
		if err != nil {
			return relocError(r, "import relocation: %v", err)
		}
		if err := code.PatchInt32(r.Offset, disp+int32(int64(actual)-int64(assumed))); err != nil {
			return relocError(r, "import relocation: %v", err)
		}
	}
	return nil
}

func emitRaw(img *codegen.Image) ([]byte, error) {
	if err := codeOnly(engine.TargetRaw, img); err != nil {
		return nil, err
	}
	return append([]byte(nil), img.Code...), nil
}
