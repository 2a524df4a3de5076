// Package task owns the process control block table and the cooperative /
// preemptive scheduler built on top of it (spec.md §3.1, §3.2, §4.1): PCB
// allocation, the bounded ready queue, and the Ready/Running/Blocked/Zombie
// state machine.
package task

import "github.com/nullforge/corekernel/internal/platform"

// State is one PCB's position in the lifecycle state machine of spec.md
// §4.1. Zero value is StateZombie, matching an unused table slot.
type State int

const (
	StateZombie State = iota
	StateReady
	StateRunning
	StateBlocked
)

func (s State) String() string {
	switch s {
	case StateZombie:
		return "zombie"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	default:
		return "invalid"
	}
}

// BlockKind tags *why* a PCB is Blocked. spec.md §9 (Design Notes) asks for
// this instead of a single implicit "blocked on recv" flag so the state can
// grow (e.g. a future Sleeping reason) without widening the PCB layout
// beyond this one field.
type BlockKind int

const (
	BlockNone BlockKind = iota
	BlockReceivingMessage
	BlockSleeping
)

// BlockReason carries the tag plus any payload a given reason needs.
// Deadline is unused by BlockReceivingMessage; it exists for a future
// BlockSleeping, per spec.md §5 ("Cancellation / timeouts: none" today).
type BlockReason struct {
	Kind     BlockKind
	Deadline uint64
}

// MaxNameLen is the bounded task-name length of spec.md §3.1.
const MaxNameLen = 31

// PCB is one process control block, spec.md §3.1. Exec holds the register
// state as a platform.ExecState because that struct already carries exactly the saved
// register image the spec calls out (rip, rsp, rflags, address-space root);
// Switch operates on it directly.
type PCB struct {
	Exec platform.ExecState

	PID      int32
	Priority int32
	Name     string

	StackBase uint64
	StackSize uint64

	TaskState State
	Block     BlockReason
	ExitCode  int32

	slot int
}

// Slot returns the PCB's fixed index in the task table, the canonical
// handle spec.md §9 recommends using instead of long-lived pointers.
func (p *PCB) Slot() int { return p.slot }

func truncateName(name string) string {
	if len(name) <= MaxNameLen {
		return name
	}
	return name[:MaxNameLen]
}
