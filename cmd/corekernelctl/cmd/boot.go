package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nullforge/corekernel/internal/condump"
	"github.com/nullforge/corekernel/internal/kconfig"
	"github.com/nullforge/corekernel/internal/kstate"
	"github.com/nullforge/corekernel/internal/platform/sim"
)

var (
	bootTicks int
	bootTasks int
)

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Run the bootstrap contract (spec.md §6.5) and drive the schedule loop for a bounded number of ticks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := kconfig.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		cpu := sim.New()
		k := kstate.New(cfg, cpu)

		names := make([]string, bootTasks)
		for i := range names {
			names[i] = "hello_world"
		}
		k.Boot(names)

		for i := 0; i < bootTicks; i++ {
			k.Schedule()
			k.TimerTick()
			if debug {
				fmt.Fprintf(cmd.OutOrStdout(), "--- tick %d ---\n%s", i, condump.PCBTable(k.Scheduler()))
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ran %d ticks over %d tasks\n", bootTicks, bootTasks)
		return nil
	},
}

func init() {
	bootCmd.Flags().IntVar(&bootTicks, "ticks", 10, "number of timer ticks to drive after boot")
	bootCmd.Flags().IntVar(&bootTasks, "tasks", 3, "number of initial hello_world tasks to spawn")
}
