// Package kstate composes the task scheduler, IPC system and virtual
// memory manager into the single kernel-state value spec.md's Design
// Notes describe, and supplies the concurrency-safe entry boundary that
// the individual subsystems deliberately don't implement themselves
// (spec.md §5: "every kernel entry path executes with interrupts
// disabled"). It is grounded in original_source/kernel/main.c's
// kernel_main boot sequence.
package kstate

import (
	"fmt"
	"sync"

	"github.com/nullforge/corekernel/internal/ipc"
	"github.com/nullforge/corekernel/internal/kconfig"
	"github.com/nullforge/corekernel/internal/klog"
	"github.com/nullforge/corekernel/internal/platform"
	"github.com/nullforge/corekernel/internal/task"
	"github.com/nullforge/corekernel/internal/vmm"
)

// Kernel is the single mutable kernel-state value. Every syscall, tick and
// fault entry method takes the lock for its whole body, the Go equivalent
// of the original's "runs with interrupts disabled" discipline; Boot holds
// it only while spawning the initial tasks, and the Scheduler/IPC/VMM
// accessors take no lock. The subsystems it wraps
// (task.Scheduler, ipc.System, vmm.Manager) stay lock-free and
// single-threaded, just like original_source's C functions.
type Kernel struct {
	cfg kconfig.Config
	cpu platform.Interface

	sched *task.Scheduler
	ipc   *ipc.System
	vmm   *vmm.Manager

	mu   sync.Mutex
	cond *sync.Cond
}

// New builds an unbooted Kernel over cpu. Call Boot to run the bring-up
// sequence before dispatching syscalls or timer ticks.
func New(cfg kconfig.Config, cpu platform.Interface) *Kernel {
	k := &Kernel{
		cfg:   cfg,
		cpu:   cpu,
		sched: task.New(cfg, cpu),
	}
	k.ipc = ipc.New(cfg, k.sched)
	k.vmm = vmm.New(cfg, cpu)
	k.cond = sync.NewCond(&k.mu)
	return k
}

func (k *Kernel) Scheduler() *task.Scheduler { return k.sched }
func (k *Kernel) IPC() *ipc.System           { return k.ipc }
func (k *Kernel) VMM() *vmm.Manager          { return k.vmm }

// Boot runs the bring-up sequence of original_source/kernel/main.c's
// kernel_main, adapted to this core's scope: GDT/IDT/paging bring-up is
// hardware-specific and out of scope (spec.md Non-goals), so those stages
// are represented as a log line and, where original_source exercises the
// platform interface directly (paging's CR3 load, the PIT's outb
// programming), the matching platform.Interface call. initialTasks names
// the tasks spawned before interrupts are enabled, mirroring the
// original's eight "hello_world" spawns.
func (k *Kernel) Boot(initialTasks []string) {
	klog.Line("Microkernel OS Starting...")

	klog.Line("GDT initialized")
	klog.Line("IDT initialized")

	k.cpu.WriteCR3(k.cfg.PML4Base)
	klog.Line("Paging initialized")

	klog.Line("Virtual memory initialized")

	k.programTimer()
	klog.Line("Timer initialized")

	klog.Line("Scheduler initialized")
	klog.Line("IPC initialized")

	k.mu.Lock()
	base := k.cfg.UserBase
	for i, name := range initialTasks {
		k.sched.TaskCreate(name, base+uint64(i)*0x10000, 1)
	}
	k.mu.Unlock()
	klog.Line(fmt.Sprintf("Created %d user tasks", len(initialTasks)))

	klog.Line("Enabling interrupts...")
	k.cpu.EnableInterrupts()

	klog.Line("Kernel initialization complete!")
	klog.Line("Starting scheduler...")
}

// programTimer reproduces original_source's timer_init PIT programming:
// mode/command byte, then the divisor's low and high bytes, then the PIC
// IRQ0 unmask. TimerHz lives in kconfig now instead of being baked into
// the divisor constant.
func (k *Kernel) programTimer() {
	const pitFrequency = 1193180
	divisor := uint16(pitFrequency / k.cfg.TimerHz)

	k.cpu.Outb(0x43, 0x36)
	k.cpu.Outb(0x40, byte(divisor&0xFF))
	k.cpu.Outb(0x40, byte(divisor>>8))
	k.cpu.Outb(0x21, 0xFE)
}

// Schedule runs one scheduling step (the `schedule(); hlt;` body of
// kernel_main's main loop).
func (k *Kernel) Schedule() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sched.Schedule()
}

// TimerTick is the timer ISR's post-EOI call into the scheduler
// (spec.md §6.2).
func (k *Kernel) TimerTick() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sched.PreemptOnTick()
}

// PageFault is the #PF handler's entry point (spec.md §6.2).
func (k *Kernel) PageFault(faultAddr uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.vmm.ServicePageFault(faultAddr)
}

// CreateTask is the sys_create_task path.
func (k *Kernel) CreateTask(name string, entryPoint uint64, priority int32) int32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sched.TaskCreate(name, entryPoint, priority)
}

// Yield is the sys_yield path.
func (k *Kernel) Yield() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sched.Yield()
}

// Exit is the sys_exit path.
func (k *Kernel) Exit(code int32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sched.TaskExit(code)
	k.cond.Broadcast()
}

// Send is the sys_send path; selfPID must be the calling task's own PID.
func (k *Kernel) Send(selfPID, destPID int32, buf []byte) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := k.ipc.Send(selfPID, destPID, buf)
	k.cond.Broadcast()
	return n
}

// Recv is the sys_recv path. Unlike ipc.System.Recv, which only reports
// whether the caller would block, this is the facade that actually
// "resumes inside recv" once a sender arrives: it releases the kernel
// lock via sync.Cond.Wait while parked, exactly the window in which a
// concurrently running task's Send can reach the mailbox and wake it.
// selfPID is captured by the caller before the first block, since
// task.Scheduler's notion of "current" moves on to other tasks while this
// call is parked.
func (k *Kernel) Recv(selfPID int32, buf []byte) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	for {
		n, blocked := k.ipc.Recv(selfPID, buf)
		if !blocked {
			return n
		}
		k.cond.Wait()
	}
}

// Broadcast is the sys_broadcast path.
func (k *Kernel) Broadcast(selfPID int32, buf []byte) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := k.ipc.Broadcast(selfPID, buf)
	k.cond.Broadcast()
	return n
}
