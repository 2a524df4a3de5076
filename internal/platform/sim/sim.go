// Package sim is a pure-Go software model of platform.Interface. It is the
// backend every test, and the CLI simulator in cmd/corekernelctl, actually
// drive: the hardware backend in platform/hw requires ring-0 and a
// freestanding build and is never exercised by `go test`.
//
// sim does not attempt to multiplex real goroutines as if they were CPU
// contexts. The three core subsystems (scheduler, IPC, VMM) are, like the
// C original, single-threaded synchronous code operating on explicit PCB
// state; "running a different task" means the scheduler points current at
// a different PCB and asks the platform to reload CR3 and resume there. What
// happens after a real Switch is hardware-specific and outside what the core
// needs to assert about itself, so CPU records the switch instead of trying
// to fabricate a second thread of control.
package sim

import "github.com/nullforge/corekernel/internal/platform"

// SwitchEvent records one CPU.Switch call, for tests and condump.
type SwitchEvent struct {
	FromRIP, ToRIP uint64
	FromCR3, ToCR3 uint64
}

// OutbEvent records one CPU.Outb call (PIC EOI, PIT programming, ...).
type OutbEvent struct {
	Port  uint16
	Value uint8
}

// CPU is the software platform.Interface.
type CPU struct {
	cr3               uint64
	interruptsEnabled bool
	faultAddr         uintptr
	haltCount         int
	switchLog         []SwitchEvent
	outbLog           []OutbEvent
}

var _ platform.Interface = (*CPU)(nil)

// New returns a CPU with interrupts disabled, matching the bootstrap
// contract of spec.md §6.5 ("At kernel entry ... interrupts are disabled").
func New() *CPU {
	return &CPU{}
}

func (c *CPU) Switch(from, to *platform.ExecState) {
	c.switchLog = append(c.switchLog, SwitchEvent{
		FromRIP: from.RIP, ToRIP: to.RIP,
		FromCR3: from.CR3, ToCR3: to.CR3,
	})
	if to.CR3 != 0 {
		c.cr3 = to.CR3
	}
}

func (c *CPU) ReadCR3() uint64   { return c.cr3 }
func (c *CPU) WriteCR3(v uint64) { c.cr3 = v }

func (c *CPU) EnableInterrupts()  { c.interruptsEnabled = true }
func (c *CPU) DisableInterrupts() { c.interruptsEnabled = false }
func (c *CPU) InterruptsEnabled() bool { return c.interruptsEnabled }

func (c *CPU) Outb(port uint16, value uint8) {
	c.outbLog = append(c.outbLog, OutbEvent{Port: port, Value: value})
}

func (c *CPU) FaultAddress() uintptr { return c.faultAddr }

// SetFaultAddress lets a test (or the VMM's fault-injection helpers) set
// CR2 the way a real #PF would before vectoring into the handler.
func (c *CPU) SetFaultAddress(addr uintptr) { c.faultAddr = addr }

// Halt records a park; the sim never actually blocks the calling goroutine,
// since tests need to observe what happens immediately after the "halt".
func (c *CPU) Halt() { c.haltCount++ }

// HaltCount reports how many times Halt was called, e.g. to assert the
// scheduler parked when its ready queue emptied (spec.md §4.1).
func (c *CPU) HaltCount() int { return c.haltCount }

// Switches returns the recorded switch history, oldest first.
func (c *CPU) Switches() []SwitchEvent { return c.switchLog }

// OutbLog returns the recorded IO-port writes, oldest first.
func (c *CPU) OutbLog() []OutbEvent { return c.outbLog }
