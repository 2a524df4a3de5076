// Package vmm implements the demand-paged virtual memory manager of
// spec.md §3.4, §4.3: a bounded physical frame pool, a four-level page
// table, page-fault servicing, and LRU eviction. It is the direct
// generalization of original_source/kernel/vm.c.
package vmm

import (
	"github.com/nullforge/corekernel/internal/kconfig"
	"github.com/nullforge/corekernel/internal/klog"
	"github.com/nullforge/corekernel/internal/platform"
)

// The leaf page granularity this manager maps at resolves spec.md §9's
// PD-vs-PT leaf-level ambiguity in favor of the PT (4KiB) level, one
// descent deeper than original_source/kernel/vm.c's map_page actually
// writes to.

type frame struct {
	virtualAddr  uint64
	physicalAddr uint64
	dirty        bool
	accessed     bool
	lastAccess   uint64
}

// Stats mirrors original_source/kernel/vm.c's vm_stats_t.
type Stats struct {
	TotalPages    int
	UsedPages     int
	FreePages     int
	PageFaults    int
	PageEvictions int
}

// Manager owns the frame pool and page table for one address space. The
// core models a single shared address space (spec.md §9 open question 2:
// CR3 is not yet per-task), so one Manager instance backs the whole
// kernel.
type Manager struct {
	cfg kconfig.Config
	cpu platform.Interface

	frames       []frame
	nextPhysAddr uint64
	clock        uint64

	root *pml4Table

	faults    int
	evictions int
}

// New builds a manager with an empty frame pool, ready to allocate
// starting at cfg.FrameBumpBase (vm_init in original_source).
func New(cfg kconfig.Config, cpu platform.Interface) *Manager {
	return &Manager{
		cfg:          cfg,
		cpu:          cpu,
		nextPhysAddr: cfg.FrameBumpBase,
		root:         newPML4(),
	}
}

func (m *Manager) tick() uint64 {
	m.clock++
	return m.clock
}

// Stats returns a snapshot of the running counters (spec.md §4.3).
func (m *Manager) Stats() Stats {
	return Stats{
		TotalPages:    m.cfg.MaxPhysicalPages,
		UsedPages:     len(m.frames),
		FreePages:     m.cfg.MaxPhysicalPages - len(m.frames),
		PageFaults:    m.faults,
		PageEvictions: m.evictions,
	}
}

// ServicePageFault is the page_fault_handler_c equivalent: it validates the
// faulting address falls in the user region, then allocates a frame for
// it, evicting the least-recently-used page first if the pool is full
// (spec.md §4.3, scenario S4/S5).
func (m *Manager) ServicePageFault(faultAddr uint64) {
	if faultAddr < m.cfg.UserBase || faultAddr >= m.cfg.UserStackTop {
		klog.Panic("page fault at invalid address", m.cpu.DisableInterrupts, m.cpu.Halt)
		return
	}
	m.faults++

	page := pageAlign(faultAddr, m.cfg.PageSize)
	if m.AllocatePage(page) < 0 {
		m.EvictLRUPage()
		m.AllocatePage(page)
	}
}

func pageAlign(addr uint64, pageSize int) uint64 {
	mask := uint64(pageSize - 1)
	return addr &^ mask
}

// AllocatePage maps virtualAddr (assumed page-aligned) to a fresh physical
// frame, or touches the existing frame's access bookkeeping if it is
// already resident. It returns 0 on success, -1 if the frame pool is full.
func (m *Manager) AllocatePage(virtualAddr uint64) int {
	for i := range m.frames {
		if m.frames[i].virtualAddr == virtualAddr {
			m.frames[i].accessed = true
			m.frames[i].lastAccess = m.tick()
			return 0
		}
	}

	if len(m.frames) >= m.cfg.MaxPhysicalPages {
		return -1
	}

	physicalAddr := m.nextPhysAddr
	m.nextPhysAddr += uint64(m.cfg.PageSize)

	m.frames = append(m.frames, frame{
		virtualAddr:  virtualAddr,
		physicalAddr: physicalAddr,
		accessed:     true,
		lastAccess:   m.tick(),
	})

	m.MapPage(virtualAddr, physicalAddr, true, true)
	return 0
}

// EvictLRUPage drops the frame with the oldest lastAccess, an O(N) scan
// over the live pool per spec.md §4.3. Ties keep the lowest index, matching
// original_source's strict less-than comparison.
func (m *Manager) EvictLRUPage() {
	if len(m.frames) == 0 {
		return
	}

	victim := 0
	oldest := m.frames[0].lastAccess
	for i := 1; i < len(m.frames); i++ {
		if m.frames[i].lastAccess < oldest {
			oldest = m.frames[i].lastAccess
			victim = i
		}
	}

	m.frames[victim].dirty = false // write-back is out of scope; just clear the bit
	m.UnmapPage(m.frames[victim].virtualAddr)
	m.frames = append(m.frames[:victim], m.frames[victim+1:]...)
	m.evictions++
}

// MapPage installs a PT-level leaf entry for virtualAddr, creating any
// missing PML4/PDPT/PD tables along the way.
func (m *Manager) MapPage(virtualAddr, physicalAddr uint64, user, writable bool) {
	pt, pti, _ := m.root.walk(virtualAddr, true)
	pt.entries[pti] = ptEntry{physicalAddr: physicalAddr, present: true, writable: writable, user: user}
}

// UnmapPage clears virtualAddr's leaf entry if present; a miss at any
// level is a silent no-op, matching original_source's unmap_page.
func (m *Manager) UnmapPage(virtualAddr uint64) {
	pt, pti, ok := m.root.walk(virtualAddr, false)
	if !ok {
		return
	}
	delete(pt.entries, pti)
}

// Translate returns the physical address for virtualAddr, or ok=false if
// any level of the walk is not present (get_physical_address equivalent).
func (m *Manager) Translate(virtualAddr uint64) (physicalAddr uint64, ok bool) {
	pt, pti, found := m.root.walk(virtualAddr, false)
	if !found {
		return 0, false
	}
	entry, present := pt.entries[pti]
	if !present || !entry.present {
		return 0, false
	}
	offset := virtualAddr & (uint64(m.cfg.PageSize) - 1)
	return entry.physicalAddr | offset, true
}

// MarkDirty flags virtualAddr's resident frame as dirty (SPEC_FULL.md §4,
// supplemented from original_source's mark_page_dirty, which the
// distilled spec dropped).
func (m *Manager) MarkDirty(virtualAddr uint64) {
	for i := range m.frames {
		if m.frames[i].virtualAddr == virtualAddr {
			m.frames[i].dirty = true
			return
		}
	}
}

// IsResident reports whether virtualAddr currently backs a live frame, for
// invariant and eviction tests.
func (m *Manager) IsResident(virtualAddr uint64) bool {
	for i := range m.frames {
		if m.frames[i].virtualAddr == virtualAddr {
			return true
		}
	}
	return false
}
