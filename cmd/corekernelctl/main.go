// Command corekernelctl is a host-side CLI that drives the core kernel's
// sim platform backend: it boots it, replays the concrete scenarios of
// spec.md §8.4, and prints the effective configuration. It never touches
// real hardware; everything here runs against internal/platform/sim.
package main

import (
	"fmt"
	"os"

	"github.com/nullforge/corekernel/cmd/corekernelctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
