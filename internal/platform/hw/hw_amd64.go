//go:build amd64 && corekernel_freestanding

// Package hw is the real platform.Interface backend: every primitive is a
// thin Go declaration over a hand-written amd64 assembly stub, the way the
// teacher wires mazboot/asm. It only builds for a freestanding target (the
// corekernel_freestanding tag) because it assumes ring-0 and the absence of
// an underlying OS; it is never exercised by `go test`, which instead runs
// against platform/sim.
package hw

import "github.com/nullforge/corekernel/internal/platform"

// CPU is the hardware platform.Interface. It carries no state of its own:
// all of it lives in hardware registers and the caller-supplied ExecState.
type CPU struct{}

var _ platform.Interface = CPU{}

// switchAsm saves the live register file into from, restores it from to,
// and resumes execution at to.RIP with to.RSP live. Implemented in
// hw_amd64.s; see switch_to_asm in original_source/kernel/sched.c for the
// C shape this generalizes.
//
//go:nosplit
func switchAsm(from, to *platform.ExecState)

//go:nosplit
func readCR3Asm() uint64

//go:nosplit
func writeCR3Asm(v uint64)

//go:nosplit
func enableInterruptsAsm()

//go:nosplit
func disableInterruptsAsm()

//go:nosplit
func interruptsEnabledAsm() uint64

//go:nosplit
func outbAsm(port uint16, value uint8)

//go:nosplit
func readCR2Asm() uint64

//go:nosplit
func haltAsm()

func (CPU) Switch(from, to *platform.ExecState) { switchAsm(from, to) }
func (CPU) ReadCR3() uint64                     { return readCR3Asm() }
func (CPU) WriteCR3(v uint64)                   { writeCR3Asm(v) }
func (CPU) EnableInterrupts()                   { enableInterruptsAsm() }
func (CPU) DisableInterrupts()                  { disableInterruptsAsm() }
func (CPU) InterruptsEnabled() bool             { return interruptsEnabledAsm() != 0 }
func (CPU) Outb(port uint16, value uint8)       { outbAsm(port, value) }
func (CPU) FaultAddress() uintptr               { return uintptr(readCR2Asm()) }
func (CPU) Halt()                               { haltAsm() }
