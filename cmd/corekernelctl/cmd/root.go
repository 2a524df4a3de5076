package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "corekernelctl",
	Short: "Drive the core kernel's simulated platform backend from the host.",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a kconfig YAML file (defaults merged in)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "in boot, dump the PCB table via condump after each tick")

	rootCmd.AddCommand(bootCmd)
	rootCmd.AddCommand(scenarioCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute builds the command tree and runs it; main's sole entry point.
func Execute() error {
	return rootCmd.Execute()
}
