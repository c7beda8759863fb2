package link

import (
	"fmt"

	"github.com/xyproto/hexlink/internal/codegen"
	"github.com/xyproto/hexlink/internal/diag"
	"github.com/xyproto/hexlink/internal/engine"
)

const (
	bootOrigin     = 0x7C00
	bootSectorSize = 512
)

// emitBootSector lays out [code][data], zero-pads to 510 bytes and appends
// the 55 AA signature
func emitBootSector(img *codegen.Image, opts Options) ([]byte, error) {
	origin := opts.Origin
	if origin == 0 {
		origin = bootOrigin
	}
	body, err := flatBody(engine.TargetBootSector, img, origin)
	if err != nil {
		return nil, err
	}
	if err := checkCap(engine.TargetBootSector, len(body)); err != nil {
		return nil, err
	}
	out := make([]byte, bootSectorSize)
	copy(out, body)
	out[510], out[511] = 0x55, 0xAA
	return out, nil
}

// emitFlat lays out [code][data] at opts.Origin, padded to opts.FixedSize
func emitFlat(img *codegen.Image, opts Options) ([]byte, error) {
	if opts.FixedSize < 0 {
		return nil, fmt.Errorf("link: negative fixed size %d", opts.FixedSize)
	}
	body, err := flatBody(engine.TargetFlat, img, opts.Origin)
	if err != nil {
		return nil, err
	}
	if opts.FixedSize == 0 {
		return body, nil
	}
	if len(body) > opts.FixedSize {
		return nil, &diag.ContainerSizeExceededError{Target: engine.TargetFlat.String(), Size: len(body), Limit: opts.FixedSize}
	}
	out := make([]byte, opts.FixedSize)
	copy(out, body)
	return out, nil
}

func flatBody(target engine.Target, img *codegen.Image, origin uint64) ([]byte, error) {
	for _, r := range img.Relocations {
		if r.Kind == codegen.RelImport {
			return nil, relocError(r, "target %s has no import table for %s", target, r.Symbol)
		}
	}
	code := codegen.StreamFrom(img.Code)
	if err := patchData(code, img.Relocations, origin+uint64(code.Len())); err != nil {
		return nil, err
	}
	return append(code.Bytes(), img.Data...), nil
}
