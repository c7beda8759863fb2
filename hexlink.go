// Completion: 100% - Build pipeline complete: encode, optimize, link, write

// Package hexlink turns a syntax tree into a native x86-64 executable. A build
// runs three phases: the code generator encodes every function into one
// instruction stream, the optional optimizer shrinks it, and the linker wraps
// it in the selected container.
package hexlink

import (
	"context"
	"fmt"

	"github.com/xyproto/hexlink/internal/ast"
	"github.com/xyproto/hexlink/internal/codegen"
	"github.com/xyproto/hexlink/internal/link"
	"github.com/xyproto/hexlink/internal/optimizer"
)

// Result is a finished build
type Result struct {
	Bytes []byte           // the container
	Image *codegen.Image   // the code it holds, after optimization
	Stats *optimizer.Stats // nil when the optimizer did not run
}

// Build compiles prog. Defaults come from the HEXLINK_* environment
// variables and opts override them.
func Build(ctx context.Context, prog *ast.Program, opts ...Option) (*Result, error) {
	cfg, err := defaultConfig()
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(cfg)
	}
	log := cfg.logger

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := codegen.Compile(prog, codegen.Options{
		Target:       cfg.target,
		Strict:       cfg.strict,
		MaxFrameSize: cfg.maxFrameSize,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Int("code", len(img.Code)).Int("data", len(img.Data)).Int("functions", len(img.Functions)).Msg("encoded")

	var stats *optimizer.Stats
	if cfg.level > optimizer.LevelNone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, stats, err = optimize(img, cfg)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("stats", stats.String()).Msg("optimized")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := link.Emit(img, link.Options{
		Target:    cfg.target,
		Origin:    cfg.origin,
		FixedSize: cfg.fixedSize,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Bytes: out, Image: img, Stats: stats}, nil
}

// BuildFile builds prog and writes the container to path. Nothing is written
// when the build fails.
func BuildFile(ctx context.Context, prog *ast.Program, path string, opts ...Option) (*Result, error) {
	res, err := Build(ctx, prog, opts...)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := res.WriteFile(path); err != nil {
		return nil, err
	}
	return res, nil
}

// WriteFile atomically replaces path with the container, marking it
// executable when the target is
func (r *Result) WriteFile(path string) error {
	return link.WriteFile(path, r.Bytes, r.Image.Target.Executable())
}

// optimize shrinks the code of img and carries every offset in it over to
// the new layout. Relocation sites are pinned so the linker can still patch
// them.
func optimize(img *codegen.Image, cfg *config) (*codegen.Image, *optimizer.Stats, error) {
	pinned := make([]int, 0, len(img.Relocations))
	for _, r := range img.Relocations {
		pinned = append(pinned, r.Site)
	}
	res, err := optimizer.Optimize(img.Code, optimizer.Options{Level: cfg.level, Pinned: pinned, Logger: cfg.logger})
	if err != nil {
		return nil, nil, err
	}
	m := res.Map

	translate := func(what string, off int) (int, error) {
		n, ok := m.Translate(off)
		if !ok {
			return 0, fmt.Errorf("optimizer: %s at 0x%x did not survive", what, off)
		}
		return n, nil
	}

	out := *img
	out.Code = res.Code
	if out.Entry, err = translate("entry point", img.Entry); err != nil {
		return nil, nil, err
	}

	out.Relocations = make([]codegen.Relocation, len(img.Relocations))
	for i, r := range img.Relocations {
		if r.Site, err = translate(r.Kind.String()+" relocation", r.Site); err != nil {
			return nil, nil, err
		}
		if r.Offset, err = translate(r.Kind.String()+" relocation", r.Offset); err != nil {
			return nil, nil, err
		}
		out.Relocations[i] = r
	}

	out.Functions = make([]codegen.FunctionSymbol, len(img.Functions))
	for i, f := range img.Functions {
		start, err := translate("function "+f.Name, f.Offset)
		if err != nil {
			return nil, nil, err
		}
		end, err := translate("end of "+f.Name, f.Offset+f.Size)
		if err != nil {
			return nil, nil, err
		}
		f.Offset, f.Size = start, end-start
		out.Functions[i] = f
	}
	return &out, &res.Stats, nil
}
