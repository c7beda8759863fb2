// Completion: 100% - Target selection complete
package engine

import (
	"fmt"
	"strings"
)

// Target selects the container the linker wraps the instruction stream in
type Target int

const (
	TargetUnknown Target = iota
	TargetPE             // Windows PE32+ with an msvcrt import table
	TargetELF            // Linux ELF64, one PT_LOAD segment
	TargetRaw            // headerless code bytes
	TargetTinyPE         // single-section PE, code capped at TinyPECodeLimit
	TargetNanoPE         // fixed 1 KiB PE without data directories
	TargetBootSector     // 512-byte sector ending in 0x55AA
	TargetFlat           // code + data at a fixed origin, optionally padded
)

// Hard caps for the size-constrained containers
const (
	TinyPECodeLimit     = 200
	NanoPECodeLimit     = 100
	BootSectorCodeLimit = 510
)

func (t Target) String() string {
	switch t {
	case TargetPE:
		return "pe"
	case TargetELF:
		return "elf"
	case TargetRaw:
		return "raw"
	case TargetTinyPE:
		return "tiny-pe"
	case TargetNanoPE:
		return "nano-pe"
	case TargetBootSector:
		return "boot"
	case TargetFlat:
		return "flat"
	default:
		return "unknown"
	}
}

// ParseTarget parses a target name. OS names map to their native container.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pe", "windows", "win", "exe":
		return TargetPE, nil
	case "elf", "linux":
		return TargetELF, nil
	case "raw", "bin":
		return TargetRaw, nil
	case "tiny-pe", "tiny", "tinype":
		return TargetTinyPE, nil
	case "nano-pe", "nano", "nanope":
		return TargetNanoPE, nil
	case "boot", "bootsector", "boot-sector":
		return TargetBootSector, nil
	case "flat":
		return TargetFlat, nil
	default:
		return TargetUnknown, fmt.Errorf("unsupported target: %s (supported: %s)", s, strings.Join(TargetNames(), ", "))
	}
}

// TargetNames lists the canonical target names
func TargetNames() []string {
	return []string{"pe", "elf", "raw", "tiny-pe", "nano-pe", "boot", "flat"}
}

// HostOS reports which operating-system interface generated code may call into
func (t Target) HostOS() string {
	switch t {
	case TargetPE:
		return "windows"
	case TargetELF:
		return "linux"
	default:
		return ""
	}
}

// HasImports is true when the container carries an import address table
func (t Target) HasImports() bool {
	return t == TargetPE
}

// HasData is true when the container can place a string data section next to the code
func (t Target) HasData() bool {
	switch t {
	case TargetPE, TargetELF, TargetFlat, TargetBootSector:
		return true
	}
	return false
}

// CodeLimit returns the hard cap on code length, or 0 when there is none
func (t Target) CodeLimit() int {
	switch t {
	case TargetTinyPE:
		return TinyPECodeLimit
	case TargetNanoPE:
		return NanoPECodeLimit
	case TargetBootSector:
		return BootSectorCodeLimit
	}
	return 0
}

// Executable is true when the output file should carry the executable mode bits
func (t Target) Executable() bool {
	switch t {
	case TargetPE, TargetELF, TargetTinyPE, TargetNanoPE:
		return true
	}
	return false
}

// DefaultExtension is the file extension used when the CLI derives an output name
func (t Target) DefaultExtension() string {
	switch t {
	case TargetPE, TargetTinyPE, TargetNanoPE:
		return ".exe"
	case TargetELF:
		return ""
	case TargetBootSector:
		return ".img"
	default:
		return ".bin"
	}
}
