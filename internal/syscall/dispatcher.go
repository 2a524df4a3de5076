// Package syscall is the cross-cutting entry point of spec.md §6.2: one
// table mapping a syscall number to the kstate.Kernel operation it
// invokes, the Go equivalent of original_source/kernel/main.c's
// idt_set_entry(0x80, syscall_handler, ...) plus the SYS_* dispatch inside
// original_source/kernel/include/kernel.h.
package syscall

import "github.com/nullforge/corekernel/internal/kstate"

// Number is a syscall number, matching original_source's SYS_* constants.
type Number int32

const (
	Send      Number = 1
	Recv      Number = 2
	Yield     Number = 3
	Exit      Number = 4
	Broadcast Number = 5 // beyond the SEND/RECV/YIELD/EXIT table
)

// Dispatch routes one syscall to the Kernel. selfPID is the calling task's
// own PID (the trap frame's implicit "current" at entry); arg carries the
// destination PID for Send or the exit code for Exit (Broadcast ignores
// it), and buf carries the message payload for Send/Recv/Broadcast. It
// returns the syscall's result the way the hardware ABI would: bytes
// transferred for Send/Recv, the delivery count for Broadcast, 0 for a
// void call, or -1 for a failed call or an unknown syscall number.
func Dispatch(k *kstate.Kernel, selfPID int32, number Number, arg int32, buf []byte) int {
	switch number {
	case Send:
		return k.Send(selfPID, arg, buf)
	case Recv:
		return k.Recv(selfPID, buf)
	case Yield:
		k.Yield()
		return 0
	case Exit:
		k.Exit(arg)
		return 0
	case Broadcast:
		return k.Broadcast(selfPID, buf)
	default:
		return -1
	}
}
