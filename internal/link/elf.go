// Completion: 100% - Static ELF64 with one RWX PT_LOAD segment
package link

import (
	"github.com/xyproto/hexlink/internal/codegen"
)

const (
	elfBaseAddr     = 0x400000
	elfHeaderSize   = 64
	elfPhdrSize     = 56
	elfCodeOffset   = elfHeaderSize + elfPhdrSize // 120
	elfSegmentAlign = 0x1000
)

func emitELF(img *codegen.Image, opts Options) ([]byte, error) {
	code := codegen.StreamFrom(img.Code)
	if err := patchData(code, img.Relocations, elfBaseAddr+elfCodeOffset+uint64(code.Len())); err != nil {
		return nil, err
	}
	total := uint64(elfCodeOffset + code.Len() + len(img.Data))
	entry := uint64(elfBaseAddr + elfCodeOffset + img.Entry)

	w := &writer{}

	// ELF header
	w.Write(0x7f)
	w.Write('E')
	w.Write('L')
	w.Write('F')
	w.Write(2)     // 64-bit
	w.Write(1)     // little endian
	w.Write(1)     // ELF version
	w.Write(0)     // System V ABI
	w.WriteN(0, 8) // padding

	w.Write2(2)  // ET_EXEC
	w.Write2(62) // EM_X86_64
	w.Write4(1)  // version
	w.Write8u(entry)
	w.Write8u(elfHeaderSize) // program header offset
	w.Write8u(0)             // no section headers
	w.Write4(0)              // flags
	w.Write2(elfHeaderSize)
	w.Write2(elfPhdrSize)
	w.Write2(1) // one program header
	w.Write2(0) // section header entry size
	w.Write2(0) // section header count
	w.Write2(0) // section name string table index

	// Program header (PT_LOAD)
	w.Write4(1) // PT_LOAD
	w.Write4(7) // flags: R+W+X
	w.Write8u(0)
	w.Write8u(elfBaseAddr) // vaddr
	w.Write8u(elfBaseAddr) // paddr
	w.Write8u(total)       // filesz
	w.Write8u(total)       // memsz
	w.Write8u(elfSegmentAlign)

	w.WriteBytes(code.Bytes())
	w.WriteBytes(img.Data)

	opts.Logger.Debug().Uint64("entry", entry).Uint64("size", total).Msg("elf layout")
	return w.Bytes(), nil
}
