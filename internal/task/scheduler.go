package task

import (
	"github.com/nullforge/corekernel/internal/kconfig"
	"github.com/nullforge/corekernel/internal/platform"
)

// Scheduler owns the PCB table and the ready queue and drives context
// switches on quantum expiry, yield, block and exit (spec.md §4.1). It is
// the SCH component of spec.md §2; it depends only on platform.Interface.
type Scheduler struct {
	cfg   kconfig.Config
	cpu   platform.Interface
	table []PCB

	ready   *readyQueue
	current *PCB
	nextPID int32

	// idle stands in for "no task running" (the boot/kernel thread) so
	// Switch always has a valid `from` side, even for the very first
	// dispatch or after the last task exits.
	idle platform.ExecState
}

// New builds a scheduler with cfg.MaxTasks Zombie slots, matching
// scheduler_init in original_source/kernel/main.c.
func New(cfg kconfig.Config, cpu platform.Interface) *Scheduler {
	s := &Scheduler{
		cfg:     cfg,
		cpu:     cpu,
		table:   make([]PCB, cfg.MaxTasks),
		ready:   newReadyQueue(cfg.MaxTasks),
		nextPID: 1,
	}
	for i := range s.table {
		s.table[i].slot = i
		s.table[i].TaskState = StateZombie
	}
	return s
}

// Current returns the Running PCB, or nil if the CPU is parked.
func (s *Scheduler) Current() *PCB { return s.current }

// PCBs exposes the full table for condump and invariant checks. Callers
// must not mutate Exec/TaskState through the returned slice outside the
// Scheduler's own methods.
func (s *Scheduler) PCBs() []PCB { return s.table }

// ReadyLen returns the number of PCBs currently queued, for condump and
// invariant checks (spec.md §8.1 law 2) without the snapshot allocation
// ReadyPIDs incurs.
func (s *Scheduler) ReadyLen() int { return s.ready.len() }

// ReadyPIDs returns the PIDs currently queued, head first, for tests and
// diagnostics.
func (s *Scheduler) ReadyPIDs() []int32 {
	q := s.ready.snapshot()
	out := make([]int32, len(q))
	for i, p := range q {
		out[i] = p.PID
	}
	return out
}

// TaskCreate finds a Zombie slot, assigns a fresh PID, and makes the task
// Ready (spec.md §4.1). It returns the new PID, or -1 if the table is full.
func (s *Scheduler) TaskCreate(name string, entryPoint uint64, priority int32) int32 {
	slot := -1
	for i := range s.table {
		if s.table[i].TaskState == StateZombie {
			slot = i
			break
		}
	}
	if slot == -1 {
		return -1
	}

	pcb := &s.table[slot]
	pcb.PID = s.nextPID
	s.nextPID++
	pcb.Priority = priority
	pcb.Name = truncateName(name)
	pcb.TaskState = StateReady
	pcb.Block = BlockReason{}
	pcb.ExitCode = 0

	pcb.StackSize = s.cfg.UserStackSize
	pcb.StackBase = s.cfg.UserStackTop - uint64(slot+1)*s.cfg.UserStackSize

	// Resolution of spec.md §9 open question 1: each table slot owns a
	// UserStackSize region carved downward from UserStackTop; rsp starts at
	// the *top* of that region and the canonical frame is pushed
	// downward from there, rather than decrementing from entry_point
	// itself (which would alias the previous task's memory).
	pcb.Exec = platform.ExecState{
		RIP:    entryPoint,
		RSP:    pcb.StackBase + pcb.StackSize,
		RFLAGS: 0x202, // IF=1, IOPL=0
		CR3:    s.cpu.ReadCR3(),
		CS:     0x18,
		SS:     0x20,
	}

	s.ready.push(pcb)
	return pcb.PID
}

// dispatch makes next Running, switching away from prev (which may be nil
// if the CPU was parked). It is the single place every scheduling
// transition funnels through.
func (s *Scheduler) dispatch(prev, next *PCB) {
	next.TaskState = StateRunning
	s.current = next

	fromState := &s.idle
	if prev != nil {
		fromState = &prev.Exec
	}
	s.cpu.Switch(fromState, &next.Exec)
}

// parkIfEmpty halts the CPU with interrupts enabled so timer preemption can
// wake it, per spec.md §4.1 failure semantics.
func (s *Scheduler) parkIfEmpty() {
	s.current = nil
	s.cpu.EnableInterrupts()
	s.cpu.Halt()
}

// Schedule cooperatively round-robins (spec.md §4.1). If no task is
// Running, it dispatches the ready-queue head. Otherwise it pops the head;
// if the queue was empty, the current task simply continues.
func (s *Scheduler) Schedule() {
	if s.current == nil {
		next := s.ready.pop()
		if next == nil {
			return
		}
		s.dispatch(nil, next)
		return
	}

	next := s.ready.pop()
	if next == nil {
		return
	}

	prev := s.current
	prev.TaskState = StateReady
	s.ready.push(prev)
	s.dispatch(prev, next)
}

// Yield moves the current task to Ready, enqueues it at the tail, and
// dispatches the next Ready task (which, with only one task live, is
// itself). If the ready queue is empty (only possible when no task was
// running), the CPU parks.
func (s *Scheduler) Yield() {
	prev := s.current
	if prev != nil {
		prev.TaskState = StateReady
		s.ready.push(prev)
	}

	next := s.ready.pop()
	if next == nil {
		s.parkIfEmpty()
		return
	}
	s.dispatch(prev, next)
}

// PreemptOnTick is invoked from the timer ISR after EOI (spec.md §6.2); it
// is equivalent to Yield if a task is currently Running.
func (s *Scheduler) PreemptOnTick() {
	if s.current != nil {
		s.Yield()
	}
}

// TaskExit moves the current task to Zombie and dispatches the next Ready
// task, parking if none remain (spec.md §4.1).
func (s *Scheduler) TaskExit(code int32) {
	if s.current == nil {
		return
	}
	prev := s.current
	prev.TaskState = StateZombie
	prev.ExitCode = code

	next := s.ready.pop()
	if next == nil {
		s.parkIfEmpty()
		return
	}
	s.dispatch(prev, next)
}

// BlockCurrent moves the current task to Blocked without re-enqueuing it
// and dispatches the next Ready task. It returns the blocked PCB so callers
// (the IPC system) can record it in the blocked-receivers list.
func (s *Scheduler) BlockCurrent() *PCB {
	if s.current == nil {
		return nil
	}
	blocked := s.current
	blocked.TaskState = StateBlocked

	next := s.ready.pop()
	if next == nil {
		s.parkIfEmpty()
		return blocked
	}
	s.dispatch(blocked, next)
	return blocked
}

// Unblock moves pcb from Blocked to Ready and enqueues it. It is a no-op
// for any other state (spec.md §8.2, Idempotent unblock law).
func (s *Scheduler) Unblock(pcb *PCB) {
	if pcb == nil || pcb.TaskState != StateBlocked {
		return
	}
	pcb.TaskState = StateReady
	pcb.Block = BlockReason{}
	s.ready.push(pcb)
}

// LookupPID returns the non-Zombie PCB with the given PID, or nil.
func (s *Scheduler) LookupPID(pid int32) *PCB {
	for i := range s.table {
		if s.table[i].TaskState != StateZombie && s.table[i].PID == pid {
			return &s.table[i]
		}
	}
	return nil
}
