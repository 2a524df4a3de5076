// Package platform abstracts the CPU hardware the kernel core rides on top
// of (spec.md §2, Platform Interface): a context-switch primitive, the
// page-table root register, interrupt masking, interrupt-controller IO
// ports and the faulting-address register. Boot-time bring-up (GDT/IDT/PIC/
// PIT programming) stays out of scope; this interface only exposes what the
// three core subsystems actually call at runtime.
package platform

// ExecState is the saved-register image of one task: everything a context
// switch must save on the way out and restore on the way in. It mirrors the
// stack frame laid down by task_create (spec.md §4.1) and the teacher's
// runtimeGobuf: instruction pointer, stack pointer, flags, and the general
// purpose registers pushed by the trap/switch prologue.
type ExecState struct {
	RIP    uint64
	RSP    uint64
	RFLAGS uint64
	CR3    uint64

	// CS/SS select the privilege level the task resumes at. User tasks run
	// with CS=0x18 (user code) and SS=0x20 (user data), per spec.md §4.1.
	CS uint64
	SS uint64

	// General-purpose registers, zeroed at task_create and restored
	// verbatim by every subsequent switch.
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RBP      uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
}

// Interface is everything the scheduler, the VMM and the syscall dispatcher
// need from the CPU. Two implementations exist: platform/hw (real amd64
// primitives, assembly-backed, built only for a freestanding target) and
// platform/sim (a software model used by every test and by the CLI
// simulator).
type Interface interface {
	// Switch saves the caller's live register state into from, restores
	// the register state in to, and resumes execution there. It returns
	// once this task is switched back in. Implemented as a single
	// hand-written primitive per spec.md §9 (Context switch): it manipulates
	// the live stack pointer and cannot be expressed as ordinary Go control
	// flow.
	Switch(from, to *ExecState)

	// ReadCR3 / WriteCR3 read and load the page-table root register.
	ReadCR3() uint64
	WriteCR3(v uint64)

	// EnableInterrupts / DisableInterrupts correspond to STI/CLI. Every
	// kernel entry path runs with interrupts disabled on entry (spec.md
	// §5); these are how it restores or masks that state.
	EnableInterrupts()
	DisableInterrupts()
	InterruptsEnabled() bool

	// Outb issues a single IO-port byte write, used for the PIC End-Of-
	// Interrupt sequence (spec.md §6.2: out 0x20, 0x20) and PIT programming.
	Outb(port uint16, value uint8)

	// FaultAddress returns CR2, the last page-fault linear address.
	FaultAddress() uintptr

	// Halt parks the CPU (the "hlt" instruction) until the next interrupt.
	// Used by the scheduler's empty-ready-queue park loop and by
	// klog.Panic's terminal halt.
	Halt()
}
