// Package condump renders kernel-state snapshots for the CLI's scenario
// reports and boot --debug output, using github.com/davecgh/go-spew the way
// the rest of the retrieval pack reaches for it instead of a hand-rolled
// struct printer.
package condump

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/nullforge/corekernel/internal/ipc"
	"github.com/nullforge/corekernel/internal/task"
	"github.com/nullforge/corekernel/internal/vmm"
)

var config = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true}

// PCBTable dumps every non-Zombie PCB in the scheduler's table.
func PCBTable(sched *task.Scheduler) string {
	var b strings.Builder
	fmt.Fprintf(&b, "current: ")
	if cur := sched.Current(); cur != nil {
		fmt.Fprintf(&b, "pid=%d (%s)\n", cur.PID, cur.Name)
	} else {
		fmt.Fprintf(&b, "<parked>\n")
	}
	fmt.Fprintf(&b, "ready (%d): %v\n", sched.ReadyLen(), sched.ReadyPIDs())
	for _, pcb := range sched.PCBs() {
		if pcb.TaskState == task.StateZombie {
			continue
		}
		b.WriteString(config.Sdump(pcb))
	}
	return b.String()
}

// IPCState dumps the IPC system's running counters.
func IPCState(sys *ipc.System) string {
	return config.Sdump(sys.Stats())
}

// VMState dumps the VMM's running counters.
func VMState(mgr *vmm.Manager) string {
	return config.Sdump(mgr.Stats())
}
