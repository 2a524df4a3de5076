package task

import (
	"testing"

	"github.com/nullforge/corekernel/internal/kconfig"
	"github.com/nullforge/corekernel/internal/platform/sim"
)

func newTestScheduler(t *testing.T) (*Scheduler, *sim.CPU) {
	t.Helper()
	cpu := sim.New()
	return New(kconfig.Default(), cpu), cpu
}

// S1 — Cooperative round-robin: create T1, T2, T3, each yields once.
// Expected dispatch order T1 -> T2 -> T3 -> T1.
func TestCooperativeRoundRobin(t *testing.T) {
	s, _ := newTestScheduler(t)

	pid1 := s.TaskCreate("t1", 0x400000, 1)
	pid2 := s.TaskCreate("t2", 0x410000, 1)
	pid3 := s.TaskCreate("t3", 0x420000, 1)

	s.Schedule() // dispatches T1 (no Running task yet)
	if s.Current().PID != pid1 {
		t.Fatalf("expected T1 running first, got pid %d", s.Current().PID)
	}

	s.Yield()
	if s.Current().PID != pid2 {
		t.Fatalf("expected T2 after first yield, got pid %d", s.Current().PID)
	}

	s.Yield()
	if s.Current().PID != pid3 {
		t.Fatalf("expected T3 after second yield, got pid %d", s.Current().PID)
	}

	s.Yield()
	if s.Current().PID != pid1 {
		t.Fatalf("expected T1 after third yield (wraparound), got pid %d", s.Current().PID)
	}
}

// S6 — Exit cascade: sole task exits, scheduler parks, and a fresh
// task_create reuses its slot with a new PID.
func TestExitCascadeReusesSlot(t *testing.T) {
	s, cpu := newTestScheduler(t)

	pid1 := s.TaskCreate("only", 0x400000, 1)
	s.Schedule()
	if s.Current().PID != pid1 {
		t.Fatalf("expected only task running, got %v", s.Current())
	}

	s.TaskExit(0)
	if s.Current() != nil {
		t.Fatalf("expected scheduler parked, current = %+v", s.Current())
	}
	if cpu.HaltCount() != 1 {
		t.Fatalf("expected exactly one halt, got %d", cpu.HaltCount())
	}
	if !cpu.InterruptsEnabled() {
		t.Fatalf("expected interrupts enabled while parked")
	}

	pcb := s.LookupPID(pid1)
	if pcb != nil {
		t.Fatalf("zombie PID should not resolve via LookupPID, got %+v", pcb)
	}

	pid2 := s.TaskCreate("reused", 0x400000, 1)
	if pid2 == pid1 {
		t.Fatalf("expected a fresh monotonically-assigned PID, got same %d", pid2)
	}
	if pid2 != pid1+1 {
		t.Fatalf("expected PID counter to advance by one, got %d -> %d", pid1, pid2)
	}
}

func TestTaskCreateTableFull(t *testing.T) {
	cfg := kconfig.Default()
	cfg.MaxTasks = 2
	s := New(cfg, sim.New())

	if pid := s.TaskCreate("a", 0x400000, 1); pid != 1 {
		t.Fatalf("expected pid 1, got %d", pid)
	}
	if pid := s.TaskCreate("b", 0x410000, 1); pid != 2 {
		t.Fatalf("expected pid 2, got %d", pid)
	}
	if pid := s.TaskCreate("c", 0x420000, 1); pid != -1 {
		t.Fatalf("expected -1 on a full table, got %d", pid)
	}

	// After one exit, task_create must succeed again.
	s.Schedule()
	s.TaskExit(0)
	if pid := s.TaskCreate("d", 0x420000, 1); pid == -1 {
		t.Fatalf("expected task_create to reuse the freed slot")
	}
}

func TestUnblockIsNoOpOnRunning(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.TaskCreate("a", 0x400000, 1)
	s.Schedule()
	pcb := s.Current()

	before := s.ReadyPIDs()
	s.Unblock(pcb) // pcb is Running, not Blocked: must be a no-op
	after := s.ReadyPIDs()

	if len(before) != len(after) {
		t.Fatalf("unblock on a non-Blocked PCB must not change the ready queue: before=%v after=%v", before, after)
	}
	if pcb.TaskState != StateRunning {
		t.Fatalf("unblock must not alter a Running PCB's state, got %v", pcb.TaskState)
	}
}

func TestBlockCurrentThenUnblock(t *testing.T) {
	s, _ := newTestScheduler(t)
	p1 := s.TaskCreate("blocker", 0x400000, 1)
	p2 := s.TaskCreate("other", 0x410000, 1)
	s.Schedule() // p1 running

	blocked := s.BlockCurrent()
	if blocked.PID != p1 {
		t.Fatalf("expected p1 to be the blocked PCB, got %d", blocked.PID)
	}
	if blocked.TaskState != StateBlocked {
		t.Fatalf("expected Blocked, got %v", blocked.TaskState)
	}
	if s.ready.contains(blocked) {
		t.Fatalf("a Blocked PCB must not appear in the ready queue")
	}
	if s.Current().PID != p2 {
		t.Fatalf("expected p2 dispatched next, got %d", s.Current().PID)
	}

	s.Unblock(blocked)
	if blocked.TaskState != StateReady {
		t.Fatalf("expected Ready after unblock, got %v", blocked.TaskState)
	}
	if !s.ready.contains(blocked) {
		t.Fatalf("expected the unblocked PCB back in the ready queue")
	}
}

func TestPIDUniqueness(t *testing.T) {
	s, _ := newTestScheduler(t)
	seen := map[int32]bool{}
	for i := 0; i < s.cfg.MaxTasks; i++ {
		pid := s.TaskCreate("t", 0x400000+uint64(i)*0x10000, 1)
		if pid == -1 {
			t.Fatalf("unexpected table-full at i=%d", i)
		}
		if seen[pid] {
			t.Fatalf("duplicate PID %d", pid)
		}
		seen[pid] = true
	}
}
