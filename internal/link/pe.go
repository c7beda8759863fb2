// Completion: 100% - PE32+ console images with an msvcrt import table
package link

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/xyproto/hexlink/internal/codegen"
	"github.com/xyproto/hexlink/internal/engine"
)

// PE (Portable Executable) format constants for Windows x86_64
const (
	// DOS header (stub)
	dosHeaderSize = 64
	dosStubSize   = 128

	// PE headers
	peSignatureSize     = 4
	coffHeaderSize      = 20
	optionalHeaderSize  = 240 // PE32+ (64-bit)
	peSectionHeaderSize = 40
	peDataDirectories   = 16

	// Memory layout for PE
	peImageBase    = 0x140000000 // Standard Windows x64 image base
	peSectionAlign = 0x1000      // 4KB section alignment in memory
	peFileAlign    = 0x200       // 512 byte file alignment

	// Section characteristics
	scnMemExecute  = 0x20000000
	scnMemRead     = 0x40000000
	scnMemWrite    = 0x80000000
	scnCntCode     = 0x00000020
	scnCntInitData = 0x00000040

	// COFF characteristics
	fileRelocsStripped    = 0x0001
	fileExecutableImage   = 0x0002
	fileLargeAddressAware = 0x0020

	// DLL characteristics
	dllHighEntropyVA       = 0x0020
	dllDynamicBase         = 0x0040
	dllNXCompat            = 0x0100
	dllTerminalServerAware = 0x8000

	// Data directory indices
	dirImport = 1
	dirIAT    = 12
)

// peSection is one section table entry
type peSection struct {
	name            string
	virtualSize     uint32
	virtualAddr     uint32
	rawSize         uint32
	rawAddr         uint32
	characteristics uint32
	data            []byte
}

// peLayout is everything the header writer needs to know
type peLayout struct {
	imageBase      uint64
	sectionAlign   uint32
	fileAlign      uint32
	entryRVA       uint32
	headersSize    uint32
	imageSize      uint32
	dataDirs       int // NumberOfRvaAndSizes
	importRVA      uint32
	importSize     uint32
	iatRVA         uint32
	iatSize        uint32
	sections       []peSection
	codeSize       uint32
	initDataSize   uint32
	fileCharacters uint16
	dllCharacters  uint16
}

func peHeadersRaw(sections, dataDirs int) uint32 {
	optional := optionalHeaderSize - 8*(peDataDirectories-dataDirs)
	return uint32(dosHeaderSize + dosStubSize + peSignatureSize + coffHeaderSize + optional + sections*peSectionHeaderSize)
}

func emitPE(img *codegen.Image, opts Options) ([]byte, error) {
	code := codegen.StreamFrom(img.Code)
	hasIdata := len(img.Data) > 0 || img.HasImports()

	nsec := 1
	if hasIdata {
		nsec = 2
	}
	headersSize := alignTo(peHeadersRaw(nsec, peDataDirectories), peFileAlign)

	codeLen := uint32(code.Len())
	text := peSection{
		name:            ".text",
		virtualSize:     codeLen,
		virtualAddr:     engine.PETextRVA,
		rawSize:         alignTo(max(codeLen, 1), peFileAlign),
		rawAddr:         headersSize,
		characteristics: scnCntCode | scnMemExecute | scnMemRead,
	}
	// string loads are absolute addresses and there is no .reloc section,
	// so the image has to load at its preferred base
	l := peLayout{
		imageBase:      peImageBase,
		sectionAlign:   peSectionAlign,
		fileAlign:      peFileAlign,
		entryRVA:       engine.PETextRVA + uint32(img.Entry),
		headersSize:    headersSize,
		dataDirs:       peDataDirectories,
		codeSize:       text.rawSize,
		fileCharacters: fileExecutableImage | fileLargeAddressAware | fileRelocsStripped,
		dllCharacters:  dllNXCompat | dllTerminalServerAware,
	}

	l.sections = []peSection{text}
	if hasIdata {
		idataRVA := engine.PETextRVA + alignTo(max(codeLen, 1), peSectionAlign)
		imports, slots, err := BuildImportData(map[string][]string{engine.RuntimeLibrary: engine.RuntimeImports}, idataRVA)
		if err != nil {
			return nil, err
		}
		stringsOff := alignTo(uint32(len(imports)), 8)
		idata := make([]byte, stringsOff, int(stringsOff)+len(img.Data))
		copy(idata, imports)
		idata = append(idata, img.Data...)

		if err := patchImports(code, img.Relocations, slots); err != nil {
			return nil, err
		}
		if err := patchData(code, img.Relocations, peImageBase+uint64(idataRVA+stringsOff)); err != nil {
			return nil, err
		}

		idataLen := uint32(len(idata))
		sec := peSection{
			name:            ".idata",
			virtualSize:     idataLen,
			virtualAddr:     idataRVA,
			rawSize:         alignTo(idataLen, peFileAlign),
			rawAddr:         text.rawAddr + text.rawSize,
			characteristics: scnCntInitData | scnMemRead | scnMemWrite,
			data:            idata,
		}
		l.sections = append(l.sections, sec)
		l.initDataSize = sec.rawSize
		l.importRVA = idataRVA
		l.importSize = importDirectorySize(1)
		l.iatRVA = slots[engine.RuntimeImports[0]]
		l.iatSize = uint32(8 * (len(engine.RuntimeImports) + 1))
	}

	l.sections[0].data = code.Bytes()
	last := l.sections[len(l.sections)-1]
	l.imageSize = alignTo(last.virtualAddr+max(last.virtualSize, 1), peSectionAlign)

	out := writePE(l)
	opts.Logger.Debug().Int("sections", len(l.sections)).Uint32("entry", l.entryRVA).Uint32("image", l.imageSize).Msg("pe layout")
	return out, nil
}

// writePE serializes headers and section contents
func writePE(l peLayout) []byte {
	w := &writer{}

	// === DOS Header (64 bytes) ===
	w.Write2(0x5A4D) // "MZ" signature
	w.WriteN(0, 58)
	w.Write4(dosHeaderSize + dosStubSize) // e_lfanew

	// === DOS Stub ===
	stubMsg := []byte("This program requires Windows.\r\n$")
	w.WriteBytes(stubMsg)
	w.WriteN(0, dosStubSize-len(stubMsg))

	// === PE Signature ===
	w.Write4(0x00004550) // "PE\0\0"

	// === COFF File Header (20 bytes) ===
	w.Write2(0x8664) // Machine: AMD64
	w.Write2(uint16(len(l.sections)))
	w.Write4(0) // TimeDateStamp (0 for reproducibility)
	w.Write4(0) // Pointer to symbol table (deprecated)
	w.Write4(0) // Number of symbols (deprecated)
	w.Write2(uint16(optionalHeaderSize - 8*(peDataDirectories-l.dataDirs)))
	w.Write2(l.fileCharacters)

	// === Optional Header (PE32+) ===
	w.Write2(0x020B) // Magic: PE32+
	w.Write(1)       // Major linker version
	w.Write(0)       // Minor linker version
	w.Write4(l.codeSize)
	w.Write4(l.initDataSize)
	w.Write4(0) // Size of uninitialized data
	w.Write4(l.entryRVA)
	w.Write4(l.sections[0].virtualAddr) // Base of code

	w.Write8u(l.imageBase)
	w.Write4(l.sectionAlign)
	w.Write4(l.fileAlign)
	w.Write2(6) // Major OS version
	w.Write2(0)
	w.Write2(0) // Image version
	w.Write2(0)
	w.Write2(6) // Major subsystem version
	w.Write2(0)
	w.Write4(0) // Win32 version value (reserved)
	w.Write4(l.imageSize)
	w.Write4(l.headersSize)
	w.Write4(0) // Checksum
	w.Write2(3) // Subsystem: CUI (Console)
	w.Write2(l.dllCharacters)
	w.Write8u(0x100000) // Size of stack reserve
	w.Write8u(0x1000)   // Size of stack commit
	w.Write8u(0x100000) // Size of heap reserve
	w.Write8u(0x1000)   // Size of heap commit
	w.Write4(0)         // Loader flags
	w.Write4(uint32(l.dataDirs))

	for i := 0; i < l.dataDirs; i++ {
		switch {
		case i == dirImport && l.importSize > 0:
			w.Write4(l.importRVA)
			w.Write4(l.importSize)
		case i == dirIAT && l.iatSize > 0:
			w.Write4(l.iatRVA)
			w.Write4(l.iatSize)
		default:
			w.Write8u(0)
		}
	}

	for _, s := range l.sections {
		writePESectionHeader(w, s)
	}

	for _, s := range l.sections {
		w.PadTo(int(s.rawAddr))
		w.WriteBytes(s.data)
		w.PadTo(int(s.rawAddr + s.rawSize))
	}
	return w.Bytes()
}

func writePESectionHeader(w *writer, s peSection) {
	// Section name (8 bytes, null-padded)
	nameBytes := []byte(s.name)
	if len(nameBytes) > 8 {
		nameBytes = nameBytes[:8]
	}
	w.WriteBytes(nameBytes)
	w.WriteN(0, 8-len(nameBytes))

	w.Write4(s.virtualSize)
	w.Write4(s.virtualAddr)
	w.Write4(s.rawSize)
	w.Write4(s.rawAddr)
	w.Write4(0) // Pointer to relocations
	w.Write4(0) // Pointer to line numbers
	w.Write2(0) // Number of relocations
	w.Write2(0) // Number of line numbers
	w.Write4(s.characteristics)
}

// importDirectorySize is the IDT size for n libraries, null terminator included
func importDirectorySize(n int) uint32 {
	return uint32((n + 1) * 20)
}

// BuildImportData lays out an import block at idataRVA: the import directory
// table, then an ILT and an IAT per library, then hint/name entries, then the
// DLL names. It returns the block and the IAT slot RVA of every function.
func BuildImportData(libraries map[string][]string, idataRVA uint32) ([]byte, map[string]uint32, error) {
	if len(libraries) == 0 {
		return nil, nil, fmt.Errorf("link: no libraries to import")
	}

	type libData struct {
		name        string
		functions   []string
		iltOffset   uint32
		iatOffset   uint32
		nameOffset  uint32
		hintsOffset uint32
	}

	// Sort library names for deterministic output
	libNames := make([]string, 0, len(libraries))
	for name := range libraries {
		libNames = append(libNames, name)
	}
	sort.Strings(libNames)

	hintSize := func(fn string) uint32 {
		// 2 bytes hint + name + NUL, kept 2-aligned
		return alignTo(uint32(2+len(fn)+1), 2)
	}

	cur := importDirectorySize(len(libNames))
	libs := make([]libData, 0, len(libNames))
	for _, name := range libNames {
		funcs := libraries[name]
		if len(funcs) == 0 {
			return nil, nil, fmt.Errorf("link: library %s imports nothing", name)
		}
		ld := libData{name: name, functions: funcs}
		tableSize := uint32((len(funcs) + 1) * 8)
		ld.iltOffset = cur
		cur += tableSize
		ld.iatOffset = cur
		cur += tableSize
		libs = append(libs, ld)
	}
	for i := range libs {
		libs[i].hintsOffset = cur
		for _, fn := range libs[i].functions {
			cur += hintSize(fn)
		}
	}
	for i := range libs {
		libs[i].nameOffset = cur
		cur += uint32(len(libs[i].name) + 1)
	}

	buf := make([]byte, cur)
	slots := make(map[string]uint32)
	for i, ld := range libs {
		writePEImportDescriptor(buf, i*20, idataRVA+ld.iltOffset, idataRVA+ld.iatOffset, idataRVA+ld.nameOffset, 0)

		hint := ld.hintsOffset
		for j, fn := range ld.functions {
			// bit 63 clear: import by name
			binary.LittleEndian.PutUint64(buf[ld.iltOffset+uint32(8*j):], uint64(idataRVA+hint))
			binary.LittleEndian.PutUint64(buf[ld.iatOffset+uint32(8*j):], uint64(idataRVA+hint))
			slots[fn] = idataRVA + ld.iatOffset + uint32(8*j)

			// hint stays 0, the loader looks the name up
			copy(buf[hint+2:], fn)
			hint += hintSize(fn)
		}
		copy(buf[ld.nameOffset:], ld.name)
	}
	if !bytes.Equal(buf[(len(libs))*20:(len(libs)+1)*20], make([]byte, 20)) {
		return nil, nil, fmt.Errorf("link: import directory terminator overwritten")
	}
	return buf, slots, nil
}

func writePEImportDescriptor(buf []byte, offset int, ilt, iat, name uint32, timeDateStamp uint32) {
	binary.LittleEndian.PutUint32(buf[offset:], ilt)             // RVA to ILT
	binary.LittleEndian.PutUint32(buf[offset+4:], timeDateStamp) // TimeDateStamp
	binary.LittleEndian.PutUint32(buf[offset+8:], 0)             // ForwarderChain
	binary.LittleEndian.PutUint32(buf[offset+12:], name)         // RVA to DLL name
	binary.LittleEndian.PutUint32(buf[offset+16:], iat)          // RVA to IAT
}
