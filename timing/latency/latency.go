// Package latency provides instruction latency lookups for the timing
// profile.
//
// Latencies are grouped by instruction class and can be configured via
// TimingConfig.
package latency

import (
	"github.com/sarchlab/rvsim/insts"
)

// Class groups instructions that share a latency.
type Class int

// Instruction classes.
const (
	ClassUnknown Class = iota
	ClassALU
	ClassMultiply
	ClassDivide
	ClassBranch
	ClassLoad
	ClassStore
	ClassAtomic
	ClassCSR
	ClassSystem
)

var classNames = []string{
	ClassUnknown:  "unknown",
	ClassALU:      "alu",
	ClassMultiply: "multiply",
	ClassDivide:   "divide",
	ClassBranch:   "branch",
	ClassLoad:     "load",
	ClassStore:    "store",
	ClassAtomic:   "atomic",
	ClassCSR:      "csr",
	ClassSystem:   "system",
}

// NumClasses is the number of instruction classes.
const NumClasses = int(ClassSystem) + 1

// String returns the class name.
func (c Class) String() string {
	if c < 0 || int(c) >= len(classNames) {
		return "unknown"
	}
	return classNames[c]
}

// ClassOf returns the class of an operation.
func ClassOf(op insts.Op) Class {
	switch op {
	case insts.OpADDI, insts.OpADD, insts.OpSUB:
		return ClassALU
	case insts.OpMUL, insts.OpMULH, insts.OpMULHSU, insts.OpMULHU:
		return ClassMultiply
	case insts.OpDIV, insts.OpDIVU, insts.OpREM, insts.OpREMU:
		return ClassDivide
	case insts.OpBEQ, insts.OpBNE:
		return ClassBranch
	case insts.OpLW, insts.OpLRW:
		return ClassLoad
	case insts.OpSW, insts.OpSCW:
		return ClassStore
	case insts.OpCSRRW, insts.OpCSRRS, insts.OpCSRRC:
		return ClassCSR
	case insts.OpECALL, insts.OpEBREAK, insts.OpSRET:
		return ClassSystem
	}
	if op.IsAtomic() {
		return ClassAtomic
	}
	return ClassUnknown
}

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given instruction.
// For variable-latency operations, returns the typical/expected latency.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch ClassOf(inst.Op) {
	case ClassALU:
		return t.config.ALULatency
	case ClassMultiply:
		return t.config.MultiplyLatency
	case ClassDivide:
		return (t.config.DivideLatencyMin + t.config.DivideLatencyMax) / 2
	case ClassBranch:
		return t.config.BranchLatency
	case ClassLoad:
		return t.config.LoadLatency
	case ClassStore:
		return t.config.StoreLatency
	case ClassAtomic:
		return t.config.AtomicLatency
	case ClassCSR:
		return t.config.CSRLatency
	case ClassSystem:
		return t.config.SystemLatency
	default:
		return 1
	}
}

// GetMinLatency returns the minimum execution latency for variable-latency operations.
func (t *Table) GetMinLatency(inst *insts.Instruction) uint64 {
	if inst != nil && ClassOf(inst.Op) == ClassDivide {
		return t.config.DivideLatencyMin
	}
	return t.GetLatency(inst)
}

// GetMaxLatency returns the maximum execution latency for variable-latency operations.
func (t *Table) GetMaxLatency(inst *insts.Instruction) uint64 {
	if inst != nil && ClassOf(inst.Op) == ClassDivide {
		return t.config.DivideLatencyMax
	}
	return t.GetLatency(inst)
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	switch ClassOf(inst.Op) {
	case ClassLoad, ClassStore, ClassAtomic:
		return true
	default:
		return false
	}
}

// IsLoadOp returns true if the instruction is a load operation.
func (t *Table) IsLoadOp(inst *insts.Instruction) bool {
	return inst != nil && ClassOf(inst.Op) == ClassLoad
}

// IsStoreOp returns true if the instruction is a store operation.
func (t *Table) IsStoreOp(inst *insts.Instruction) bool {
	return inst != nil && ClassOf(inst.Op) == ClassStore
}

// IsBranchOp returns true if the instruction is a branch operation.
func (t *Table) IsBranchOp(inst *insts.Instruction) bool {
	return inst != nil && ClassOf(inst.Op) == ClassBranch
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
