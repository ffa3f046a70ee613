package latency

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// TimingConfig holds latency values for the instruction classes of the
// RV32 subset. The defaults describe a simple in-order core.
type TimingConfig struct {
	// ALULatency is the execution latency for ADDI, ADD and SUB.
	// Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency"`

	// BranchLatency is the execution latency for BEQ and BNE.
	// Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency"`

	// BranchTakenPenalty is the additional cycles lost when a branch
	// redirects the PC. Default: 2 cycles.
	BranchTakenPenalty uint64 `json:"branch_taken_penalty"`

	// LoadLatency is the latency for LW and LR.W assuming a cache hit.
	// Default: 3 cycles.
	LoadLatency uint64 `json:"load_latency"`

	// StoreLatency is the latency for SW and SC.W. Default: 1 cycle.
	StoreLatency uint64 `json:"store_latency"`

	// MultiplyLatency is the latency for MUL, MULH, MULHSU and MULHU.
	// Default: 3 cycles.
	MultiplyLatency uint64 `json:"multiply_latency"`

	// DivideLatencyMin is the minimum latency for DIV, DIVU, REM and REMU.
	// Default: 10 cycles.
	DivideLatencyMin uint64 `json:"divide_latency_min"`

	// DivideLatencyMax is the maximum latency for DIV, DIVU, REM and REMU.
	// Default: 20 cycles.
	DivideLatencyMax uint64 `json:"divide_latency_max"`

	// AtomicLatency is the latency for AMO read-modify-write operations.
	// Default: 5 cycles.
	AtomicLatency uint64 `json:"atomic_latency"`

	// CSRLatency is the latency for CSRRW, CSRRS and CSRRC. Default: 2 cycles.
	CSRLatency uint64 `json:"csr_latency"`

	// SystemLatency is the latency for ECALL, EBREAK and SRET.
	// Default: 1 cycle.
	SystemLatency uint64 `json:"system_latency"`

	// TrapPenalty is the cost of redirecting to the trap vector.
	// Default: 8 cycles.
	TrapPenalty uint64 `json:"trap_penalty"`

	// CacheHitLatency is the data cache hit latency charged per access
	// beyond the instruction latency. Default: 0 cycles.
	CacheHitLatency uint64 `json:"cache_hit_latency"`

	// MemoryLatency is the main memory latency charged per cache miss.
	// Default: 40 cycles.
	MemoryLatency uint64 `json:"memory_latency"`
}

// DefaultTimingConfig returns a TimingConfig with default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:         1,
		BranchLatency:      1,
		BranchTakenPenalty: 2,
		LoadLatency:        3,
		StoreLatency:       1,
		MultiplyLatency:    3,
		DivideLatencyMin:   10,
		DivideLatencyMax:   20,
		AtomicLatency:      5,
		CSRLatency:         2,
		SystemLatency:      1,
		TrapPenalty:        8,
		CacheHitLatency:    0,
		MemoryLatency:      40,
	}
}

// LoadConfig loads a TimingConfig from a JSON file.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read timing config file")
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse timing config")
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize timing config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write timing config file")
	}

	return nil
}

// Validate checks that all instruction latencies are valid (> 0).
func (c *TimingConfig) Validate() error {
	if c.ALULatency == 0 {
		return errors.New("alu_latency must be > 0")
	}
	if c.BranchLatency == 0 {
		return errors.New("branch_latency must be > 0")
	}
	if c.LoadLatency == 0 {
		return errors.New("load_latency must be > 0")
	}
	if c.StoreLatency == 0 {
		return errors.New("store_latency must be > 0")
	}
	if c.MultiplyLatency == 0 {
		return errors.New("multiply_latency must be > 0")
	}
	if c.DivideLatencyMin == 0 {
		return errors.New("divide_latency_min must be > 0")
	}
	if c.DivideLatencyMin > c.DivideLatencyMax {
		return errors.New("divide_latency_min must be <= divide_latency_max")
	}
	if c.AtomicLatency == 0 {
		return errors.New("atomic_latency must be > 0")
	}
	if c.CSRLatency == 0 {
		return errors.New("csr_latency must be > 0")
	}
	if c.SystemLatency == 0 {
		return errors.New("system_latency must be > 0")
	}
	return nil
}

// Clone returns a copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
