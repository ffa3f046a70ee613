package machine

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/sarchlab/rvsim/emu"
)

// Config describes the shape of a machine.
type Config struct {
	// Cores is the number of lock-stepped cores. Default: 1.
	Cores int `json:"cores"`

	// MemorySize is the physical memory size in bytes. It must cover the
	// MMIO window. Default: 16 MiB.
	MemorySize uint32 `json:"memory_size"`

	// PollerCore is the core charged with draining the MMIO input window
	// at the start of each tick. Default: 0.
	PollerCore int `json:"poller_core"`

	// Workers bounds the goroutines stepping cores within a tick.
	// 1 steps cores serially in index order; 0 uses one goroutine per core.
	// Default: 0.
	Workers int `json:"workers"`
}

// DefaultConfig returns a single-core configuration with 16 MiB of memory.
func DefaultConfig() *Config {
	return &Config{
		Cores:      1,
		MemorySize: 16 << 20,
		PollerCore: 0,
		Workers:    0,
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read machine config file")
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse machine config")
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize machine config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write machine config file")
	}

	return nil
}

// Validate checks that the configuration describes a runnable machine.
func (c *Config) Validate() error {
	if c.Cores < 1 {
		return errors.New("cores must be > 0")
	}
	if c.MemorySize < emu.MinMemorySize {
		return errors.Errorf("memory_size must be >= %#x to hold the MMIO window", emu.MinMemorySize)
	}
	if c.MemorySize%4 != 0 {
		return errors.New("memory_size must be a multiple of 4")
	}
	if c.PollerCore < 0 || c.PollerCore >= c.Cores {
		return errors.New("poller_core must name an existing core")
	}
	if c.Workers < 0 {
		return errors.New("workers must be >= 0")
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
