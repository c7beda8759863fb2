// Completion: 100% - Instruction implementation complete
package codegen

// Linux x86-64 system call numbers
const (
	sysWrite = 1
	sysExit  = 60
)

// Syscall emits syscall (0F 05)
func (o *Out) Syscall() {
	start := o.Pos()
	o.Write(0x0F)
	o.Write(0x05)
	o.trace(start, "syscall")
}
