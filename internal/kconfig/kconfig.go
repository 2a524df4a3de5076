// Package kconfig holds the fixed constants of the kernel core as an
// overridable configuration value instead of compile-time constants, so that
// tests can shrink pools (the frame pool, in particular) the way spec
// scenario S5 requires without a recompile.
package kconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full set of tunables the core subsystems are built against.
// Zero value is invalid; use Default() or Load().
type Config struct {
	MaxTasks         int `yaml:"max_tasks"`
	MaxIPCMessages   int `yaml:"max_ipc_messages"`
	MaxMessageSize   int `yaml:"max_message_size"`
	MaxPhysicalPages int `yaml:"max_physical_pages"`
	PageSize         int `yaml:"page_size"`

	KernelBase     uint64 `yaml:"kernel_base"`
	KernelStackTop uint64 `yaml:"kernel_stack_top"`
	UserBase       uint64 `yaml:"user_base"`
	UserStackTop   uint64 `yaml:"user_stack_top"`
	UserStackSize  uint64 `yaml:"user_stack_size"`

	PML4Base      uint64 `yaml:"pml4_base"`
	InitialPDPT   uint64 `yaml:"initial_pdpt"`
	InitialPD     uint64 `yaml:"initial_pd"`
	FrameBumpBase uint64 `yaml:"frame_bump_base"`

	FramebufferBase uint64 `yaml:"framebuffer_base"`
	FramebufferCols int    `yaml:"framebuffer_cols"`
	FramebufferRows int    `yaml:"framebuffer_rows"`

	TimerHz int `yaml:"timer_hz"`
}

// Default returns the constants fixed by spec.md §3 and §6.3.
func Default() Config {
	return Config{
		MaxTasks:         8,
		MaxIPCMessages:   32,
		MaxMessageSize:   256,
		MaxPhysicalPages: 1024,
		PageSize:         4096,

		KernelBase:     0x100000,
		KernelStackTop: 0x200000,
		UserBase:       0x400000,
		UserStackTop:   0x600000,
		UserStackSize:  16384,

		PML4Base:      0x1000,
		InitialPDPT:   0x2000,
		InitialPD:     0x3000,
		FrameBumpBase: 0x1000000,

		FramebufferBase: 0xB8000,
		FramebufferCols: 80,
		FramebufferRows: 25,

		TimerHz: 100,
	}
}

// Load reads a YAML file and merges it onto Default(); a field absent from
// the file keeps the default, while a field set explicitly (even to zero)
// replaces it, and Validate then rejects the zeros it cannot run with. An
// empty path just returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("kconfig: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("kconfig: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the core cannot run with.
func (c Config) Validate() error {
	if c.MaxTasks <= 0 {
		return fmt.Errorf("kconfig: max_tasks must be positive")
	}
	if c.MaxIPCMessages <= 0 {
		return fmt.Errorf("kconfig: max_ipc_messages must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("kconfig: max_message_size must be positive")
	}
	if c.MaxPhysicalPages <= 0 {
		return fmt.Errorf("kconfig: max_physical_pages must be positive")
	}
	if c.PageSize <= 0 || c.PageSize&(c.PageSize-1) != 0 {
		return fmt.Errorf("kconfig: page_size must be a positive power of two")
	}
	if c.UserBase >= c.UserStackTop {
		return fmt.Errorf("kconfig: user_base must precede user_stack_top")
	}
	return nil
}
