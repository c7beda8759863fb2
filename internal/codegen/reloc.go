package codegen

// RelocKind says how a placeholder is resolved
type RelocKind int

const (
	// RelCall is the rel32 of a call to a function in this image
	RelCall RelocKind = iota
	// RelJump is the rel32 of a jump to a function in this image
	RelJump
	// RelData is an absolute 64-bit address of string data; Addend is the
	// offset into the string table. Resolved by the container.
	RelData
	// RelImport is the disp32 of a RIP-relative call through the IAT,
	// encoded against engine.AssumedIATRVA. Resolved by the container.
	RelImport
)

func (k RelocKind) String() string {
	switch k {
	case RelCall:
		return "call"
	case RelJump:
		return "jump"
	case RelData:
		return "data"
	case RelImport:
		return "import"
	default:
		return "unknown"
	}
}

// Size is the width of the placeholder in bytes
func (k RelocKind) Size() int {
	if k == RelData {
		return 8
	}
	return 4
}

// Relocation is a placeholder in the instruction stream awaiting an address
type Relocation struct {
	Offset int // offset of the placeholder field
	Site   int // offset of the instruction containing it
	Kind   RelocKind
	Symbol string
	Addend int64
}
