package link

import (
	"github.com/xyproto/hexlink/internal/codegen"
	"github.com/xyproto/hexlink/internal/engine"
)

const (
	tinyImageBase = 0x400000
	tinyAlign     = 0x200 // section and file alignment, and the header size
)

// emitTinyPE packs code into one .text section right after a 0x200 header
func emitTinyPE(img *codegen.Image) ([]byte, error) {
	return emitSmallPE(engine.TargetTinyPE, img, peDataDirectories)
}

// emitNanoPE is Tiny without data directories
func emitNanoPE(img *codegen.Image) ([]byte, error) {
	return emitSmallPE(engine.TargetNanoPE, img, 0)
}

func emitSmallPE(target engine.Target, img *codegen.Image, dirs int) ([]byte, error) {
	if err := codeOnly(target, img); err != nil {
		return nil, err
	}
	if err := checkCap(target, len(img.Code)); err != nil {
		return nil, err
	}

	codeLen := uint32(len(img.Code))
	text := peSection{
		name:            ".text",
		virtualSize:     codeLen,
		virtualAddr:     tinyAlign,
		rawSize:         alignTo(max(codeLen, 1), tinyAlign),
		rawAddr:         tinyAlign,
		characteristics: scnCntCode | scnMemExecute | scnMemRead,
		data:            append([]byte(nil), img.Code...),
	}
	// code only, so the image may load anywhere
	return writePE(peLayout{
		imageBase:      tinyImageBase,
		sectionAlign:   tinyAlign,
		fileAlign:      tinyAlign,
		entryRVA:       tinyAlign + uint32(img.Entry),
		headersSize:    tinyAlign,
		imageSize:      alignTo(text.virtualAddr+max(codeLen, 1), tinyAlign),
		dataDirs:       dirs,
		sections:       []peSection{text},
		codeSize:       text.rawSize,
		fileCharacters: fileExecutableImage | fileLargeAddressAware,
		dllCharacters:  dllHighEntropyVA | dllDynamicBase | dllNXCompat | dllTerminalServerAware,
	}), nil
}
