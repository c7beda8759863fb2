package engine

// The code generator does not know where the linker will put the import
// address table, so it encodes RIP-relative calls against a fixed assumed
// layout. The PE emitter patches every import site by the difference between
// the actual slot address and the assumed one.
const (
	PETextRVA        = 0x1000
	AssumedDataRVA   = 0x2000
	AssumedIATOffset = 0x40
	AssumedIATRVA    = AssumedDataRVA + AssumedIATOffset
)

// RuntimeLibrary is the C runtime DLL the PE container imports from
const RuntimeLibrary = "msvcrt.dll"

// RuntimeImports are the imported symbols, in IAT slot order
var RuntimeImports = []string{"printf", "scanf"}

// ImportSlot returns the IAT slot index of an imported symbol
func ImportSlot(name string) (int, bool) {
	for i, n := range RuntimeImports {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// AssumedImportRVA is the slot address the code generator encodes for name
func AssumedImportRVA(name string) (uint32, bool) {
	slot, ok := ImportSlot(name)
	if !ok {
		return 0, false
	}
	return uint32(AssumedIATRVA + 8*slot), true
}
