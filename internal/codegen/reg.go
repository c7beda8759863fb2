// Completion: 100% - Utility module complete
package codegen

import "fmt"

// Register definitions for x86-64

type Register struct {
	Name     string
	Size     int   // Size in bits
	Encoding uint8 // Encoding for instruction generation
}

var x86_64Registers = map[string]Register{
	// 64-bit general purpose registers
	"rax": {Name: "rax", Size: 64, Encoding: 0},
	"rcx": {Name: "rcx", Size: 64, Encoding: 1},
	"rdx": {Name: "rdx", Size: 64, Encoding: 2},
	"rbx": {Name: "rbx", Size: 64, Encoding: 3},
	"rsp": {Name: "rsp", Size: 64, Encoding: 4},
	"rbp": {Name: "rbp", Size: 64, Encoding: 5},
	"rsi": {Name: "rsi", Size: 64, Encoding: 6},
	"rdi": {Name: "rdi", Size: 64, Encoding: 7},
	"r8":  {Name: "r8", Size: 64, Encoding: 8},
	"r9":  {Name: "r9", Size: 64, Encoding: 9},
	"r10": {Name: "r10", Size: 64, Encoding: 10},
	"r11": {Name: "r11", Size: 64, Encoding: 11},
	"r12": {Name: "r12", Size: 64, Encoding: 12},
	"r13": {Name: "r13", Size: 64, Encoding: 13},
	"r14": {Name: "r14", Size: 64, Encoding: 14},
	"r15": {Name: "r15", Size: 64, Encoding: 15},

	// 32-bit registers
	"eax": {Name: "eax", Size: 32, Encoding: 0},
	"ecx": {Name: "ecx", Size: 32, Encoding: 1},
	"edx": {Name: "edx", Size: 32, Encoding: 2},
	"ebx": {Name: "ebx", Size: 32, Encoding: 3},
	"esi": {Name: "esi", Size: 32, Encoding: 6},
	"edi": {Name: "edi", Size: 32, Encoding: 7},

	// 8-bit registers (low byte)
	"al": {Name: "al", Size: 8, Encoding: 0},
	"cl": {Name: "cl", Size: 8, Encoding: 1},
	"dl": {Name: "dl", Size: 8, Encoding: 2},
	"bl": {Name: "bl", Size: 8, Encoding: 3},

	// SSE registers
	"xmm0": {Name: "xmm0", Size: 128, Encoding: 0},
	"xmm1": {Name: "xmm1", Size: 128, Encoding: 1},
	"xmm2": {Name: "xmm2", Size: 128, Encoding: 2},
	"xmm3": {Name: "xmm3", Size: 128, Encoding: 3},
}

// GetRegister looks up a register by name
func GetRegister(name string) (Register, bool) {
	r, ok := x86_64Registers[name]
	return r, ok
}

// reg resolves a register name used by the emitter itself
func reg(name string) uint8 {
	r, ok := GetRegister(name)
	if !ok {
		panic(fmt.Sprintf("codegen: unknown register %q", name))
	}
	return r.Encoding
}

// rexW builds a REX.W prefix carrying the high bits of the reg and rm fields
func rexW(regField, rm uint8) byte {
	return 0x48 | (regField>>3)<<2 | rm>>3
}

// rexOpt builds a REX prefix without W, or 0 when none is needed
func rexOpt(regField, rm uint8) byte {
	if regField < 8 && rm < 8 {
		return 0
	}
	return 0x40 | (regField>>3)<<2 | rm>>3
}

func modRM(mod, regField, rm uint8) byte {
	return mod<<6 | (regField&7)<<3 | rm&7
}
