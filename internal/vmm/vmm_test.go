package vmm

import (
	"testing"

	"github.com/nullforge/corekernel/internal/kconfig"
	"github.com/nullforge/corekernel/internal/platform/sim"
)

// S4 — Page fault and allocation: a fault inside the user region is
// serviced by allocating a fresh resident frame.
func TestServicePageFaultAllocatesFrame(t *testing.T) {
	cfg := kconfig.Default()
	cpu := sim.New()
	m := New(cfg, cpu)

	addr := cfg.UserBase + 0x2000
	m.ServicePageFault(addr)

	if !m.IsResident(pageAlign(addr, cfg.PageSize)) {
		t.Fatalf("expected the faulting page to be resident after servicing")
	}
	stats := m.Stats()
	if stats.PageFaults != 1 {
		t.Fatalf("expected one recorded fault, got %d", stats.PageFaults)
	}
	if stats.UsedPages != 1 {
		t.Fatalf("expected one used page, got %d", stats.UsedPages)
	}
	if phys, ok := m.Translate(addr); !ok || phys == 0 {
		t.Fatalf("expected a valid translation after fault servicing, got phys=%d ok=%v", phys, ok)
	}
	if cpu.HaltCount() != 0 {
		t.Fatalf("a valid fault must not halt the CPU")
	}
}

// Boundary: a fault strictly below USER_BASE is an invalid address and
// must panic (halt) rather than allocate.
func TestServicePageFaultBelowUserBasePanics(t *testing.T) {
	cfg := kconfig.Default()
	cpu := sim.New()
	cpu.EnableInterrupts()
	m := New(cfg, cpu)

	m.ServicePageFault(cfg.UserBase - 1)

	if cpu.HaltCount() != 1 {
		t.Fatalf("expected exactly one halt for an invalid fault address, got %d", cpu.HaltCount())
	}
	if cpu.InterruptsEnabled() {
		t.Fatalf("expected interrupts disabled by the panic path")
	}
	if m.Stats().PageFaults != 0 {
		t.Fatalf("an invalid-address fault must not count as serviced, got %d", m.Stats().PageFaults)
	}
}

// Boundary: a fault exactly at USER_STACK_TOP is out of range (the region
// is [USER_BASE, USER_STACK_TOP)) and must also panic.
func TestServicePageFaultAtStackTopPanics(t *testing.T) {
	cfg := kconfig.Default()
	cpu := sim.New()
	m := New(cfg, cpu)

	m.ServicePageFault(cfg.UserStackTop)

	if cpu.HaltCount() != 1 {
		t.Fatalf("expected a halt for a fault at the exclusive upper bound, got %d", cpu.HaltCount())
	}
}

// S5 — LRU eviction: with MaxPhysicalPages shrunk to 3, a fourth distinct
// page fault evicts the least recently touched page.
func TestLRUEvictionUnderPressure(t *testing.T) {
	cfg := kconfig.Default()
	cfg.MaxPhysicalPages = 3
	cpu := sim.New()
	m := New(cfg, cpu)

	p1 := cfg.UserBase
	p2 := cfg.UserBase + uint64(cfg.PageSize)
	p3 := cfg.UserBase + 2*uint64(cfg.PageSize)
	p4 := cfg.UserBase + 3*uint64(cfg.PageSize)

	m.ServicePageFault(p1)
	m.ServicePageFault(p2)
	m.ServicePageFault(p3)
	if m.Stats().UsedPages != 3 {
		t.Fatalf("expected the pool full at 3, got %d", m.Stats().UsedPages)
	}

	m.ServicePageFault(p4)

	if m.IsResident(p1) {
		t.Fatalf("expected the least recently touched page (p1) evicted")
	}
	for _, p := range []uint64{p2, p3, p4} {
		if !m.IsResident(p) {
			t.Fatalf("expected %#x to remain resident", p)
		}
	}
	stats := m.Stats()
	if stats.PageEvictions != 1 {
		t.Fatalf("expected exactly one eviction, got %d", stats.PageEvictions)
	}
	if stats.UsedPages != 3 {
		t.Fatalf("expected the pool to stay at capacity after eviction, got %d", stats.UsedPages)
	}
	if _, ok := m.Translate(p1); ok {
		t.Fatalf("expected p1's translation to be gone after eviction")
	}
}

// Re-touching a resident page does not allocate a second frame and
// refreshes its recency, so it survives a subsequent eviction round.
func TestReaccessRefreshesRecency(t *testing.T) {
	cfg := kconfig.Default()
	cfg.MaxPhysicalPages = 2
	m := New(cfg, sim.New())

	p1 := cfg.UserBase
	p2 := cfg.UserBase + uint64(cfg.PageSize)
	p3 := cfg.UserBase + 2*uint64(cfg.PageSize)

	m.ServicePageFault(p1)
	m.ServicePageFault(p2)
	m.ServicePageFault(p1) // touch p1 again; p2 is now the oldest

	m.ServicePageFault(p3) // forces one eviction

	if m.IsResident(p2) {
		t.Fatalf("expected p2 (now the LRU) evicted, not p1")
	}
	if !m.IsResident(p1) {
		t.Fatalf("expected the re-touched p1 to survive")
	}
}

func TestMarkDirtyAndUnmap(t *testing.T) {
	cfg := kconfig.Default()
	m := New(cfg, sim.New())

	addr := cfg.UserBase
	m.ServicePageFault(addr)
	m.MarkDirty(addr)

	m.UnmapPage(addr)
	if _, ok := m.Translate(addr); ok {
		t.Fatalf("expected translation gone after unmap")
	}
	// Unmapping again, and unmapping an address that was never mapped,
	// must both be silent no-ops.
	m.UnmapPage(addr)
	m.UnmapPage(cfg.UserBase + 0x9000)
}
