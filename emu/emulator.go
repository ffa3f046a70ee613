package emu

import (
	"github.com/go-logr/logr"

	"github.com/sarchlab/rvsim/insts"
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Halted is true if the core is halted after this step. A halted core
	// does not execute.
	Halted bool

	// Trapped is true if the instruction raised a trap.
	Trapped bool

	// Cause is the trap cause if Trapped is true.
	Cause Cause
}

// Observer receives execution events from a core. Cores of one machine run
// in parallel, so implementations must tolerate concurrent calls for
// different core IDs. Observers must not modify architectural state.
type Observer interface {
	// InstructionRetired is called after the instruction at pc completes
	// without trapping.
	InstructionRetired(core int, pc uint32, inst *insts.Instruction)

	// MemoryAccessed is called for each data access at a physical address.
	MemoryAccessed(core int, addr uint32, write bool)

	// TrapTaken is called when the core enters its trap handler.
	TrapTaken(core int, cause Cause, tval uint32)
}

// Emulator executes RV32 instructions for one core, one instruction per
// Step.
type Emulator struct {
	id     int
	state  *CoreState
	memory *Memory
	stream []uint32

	decoder *insts.Decoder
	inst    insts.Instruction

	// Execution units
	translator *Translator
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit
	csrUnit    *CSRUnit
	atomicUnit *AtomicUnit
	trap       *TrapController

	observer Observer
	logger   logr.Logger

	// Execution state
	instructionCount uint64
	trapCount        uint64
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithCoreID sets the core index reported to observers and logs.
func WithCoreID(id int) EmulatorOption {
	return func(e *Emulator) {
		e.id = id
	}
}

// WithLogger sets the logger. Traps are logged at V(1), every executed
// instruction at V(2).
func WithLogger(logger logr.Logger) EmulatorOption {
	return func(e *Emulator) {
		e.logger = logger
	}
}

// WithObserver attaches an execution observer.
func WithObserver(o Observer) EmulatorOption {
	return func(e *Emulator) {
		e.observer = o
	}
}

// WithEntry sets the initial PC.
func WithEntry(pc uint32) EmulatorOption {
	return func(e *Emulator) {
		e.state.PC = pc
	}
}

// NewEmulator creates a core executing stream against the shared memory.
func NewEmulator(memory *Memory, stream []uint32, opts ...EmulatorOption) *Emulator {
	state := NewCoreState()

	e := &Emulator{
		state:   state,
		memory:  memory,
		stream:  stream,
		decoder: insts.NewDecoder(),
		logger:  logr.Discard(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.translator = NewTranslator(memory)
	e.alu = NewALU(state)
	e.lsu = NewLoadStoreUnit(state, memory, e.translator)
	e.branchUnit = NewBranchUnit(state)
	e.csrUnit = NewCSRUnit(state)
	e.atomicUnit = NewAtomicUnit(state, memory)
	e.trap = NewTrapController(state)

	return e
}

// ID returns the core index.
func (e *Emulator) ID() int {
	return e.id
}

// State returns the core's architectural state.
func (e *Emulator) State() *CoreState {
	return e.state
}

// Memory returns the shared memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// Translator returns the core's address translator.
func (e *Emulator) Translator() *Translator {
	return e.translator
}

// TrapController returns the core's trap controller.
func (e *Emulator) TrapController() *TrapController {
	return e.trap
}

// InstructionCount returns the number of instructions executed, including
// ones that trapped.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// TrapCount returns the number of traps taken.
func (e *Emulator) TrapCount() uint64 {
	return e.trapCount
}

// LoadProgram replaces the instruction stream and sets the PC to entry.
func (e *Emulator) LoadProgram(entry uint32, stream []uint32) {
	e.stream = stream
	e.state.PC = entry
}

// Reset clears the core state and counters. The stream and memory are kept.
func (e *Emulator) Reset() {
	e.state.Reset()
	e.instructionCount = 0
	e.trapCount = 0
}

// Step executes a single instruction. A halted core does nothing. A PC
// outside the instruction stream halts the core.
func (e *Emulator) Step() StepResult {
	s := e.state
	if s.Halted() {
		return StepResult{Halted: true}
	}

	// 1. Fetch
	if uint64(s.PC) >= uint64(len(e.stream)) {
		s.SetHalted(true)
		e.logger.Info("core halted, pc outside instruction stream",
			"core", e.id, "pc", s.PC, "streamLen", len(e.stream))
		return StepResult{Halted: true}
	}
	word := e.stream[s.PC]

	// 2. Decode
	e.decoder.DecodeInto(word, &e.inst)

	if log := e.logger.V(2); log.Enabled() {
		log.Info("exec", "core", e.id, "pc", s.PC, "op", e.inst.Op.String(), "raw", word)
	}

	// 3. Execute
	result := e.execute(&e.inst)

	e.instructionCount++

	return result
}

// Run steps the core until it halts or max instructions have been
// attempted. It returns the number of steps taken.
func (e *Emulator) Run(max uint64) uint64 {
	var n uint64
	for n < max {
		if e.Step().Halted {
			break
		}
		n++
	}
	return n
}

// execute dispatches a decoded instruction. Every path either advances or
// redirects the PC.
func (e *Emulator) execute(inst *insts.Instruction) StepResult {
	s := e.state
	pc := s.PC

	switch inst.Op {
	case insts.OpADDI:
		e.alu.ADDI(inst.Rd, inst.Rs1, inst.Imm)
		s.PC++

	case insts.OpADD:
		e.alu.ADD(inst.Rd, inst.Rs1, inst.Rs2)
		s.PC++
	case insts.OpSUB:
		e.alu.SUB(inst.Rd, inst.Rs1, inst.Rs2)
		s.PC++
	case insts.OpMUL:
		e.alu.MUL(inst.Rd, inst.Rs1, inst.Rs2)
		s.PC++
	case insts.OpMULH:
		e.alu.MULH(inst.Rd, inst.Rs1, inst.Rs2)
		s.PC++
	case insts.OpMULHSU:
		e.alu.MULHSU(inst.Rd, inst.Rs1, inst.Rs2)
		s.PC++
	case insts.OpMULHU:
		e.alu.MULHU(inst.Rd, inst.Rs1, inst.Rs2)
		s.PC++
	case insts.OpDIV:
		e.alu.DIV(inst.Rd, inst.Rs1, inst.Rs2)
		s.PC++
	case insts.OpDIVU:
		e.alu.DIVU(inst.Rd, inst.Rs1, inst.Rs2)
		s.PC++
	case insts.OpREM:
		e.alu.REM(inst.Rd, inst.Rs1, inst.Rs2)
		s.PC++
	case insts.OpREMU:
		e.alu.REMU(inst.Rd, inst.Rs1, inst.Rs2)
		s.PC++

	case insts.OpBEQ:
		e.branchUnit.BEQ(inst.Rs1, inst.Rs2, inst.Imm)
	case insts.OpBNE:
		e.branchUnit.BNE(inst.Rs1, inst.Rs2, inst.Imm)

	case insts.OpLW:
		va, pa, ok := e.lsu.LW(inst.Rd, inst.Rs1, inst.Imm)
		if !ok {
			return e.raise(AccessLoad.FaultCause(), va)
		}
		e.accessed(pa, false)
		s.PC++
	case insts.OpSW:
		va, pa, ok := e.lsu.SW(inst.Rs2, inst.Rs1, inst.Imm)
		if !ok {
			return e.raise(AccessStore.FaultCause(), va)
		}
		e.accessed(pa, true)
		s.PC++

	case insts.OpECALL:
		if s.Mode() == ModeSupervisor {
			return e.raise(CauseSupervisorEcall, 0)
		}
		return e.raise(CauseUserEcall, 0)
	case insts.OpEBREAK:
		return e.raise(CauseBreakpoint, s.PC)
	case insts.OpSRET:
		if s.Mode() != ModeSupervisor {
			return e.raise(CauseIllegalInstruction, inst.Raw)
		}
		s.PC = e.trap.Return()

	case insts.OpCSRRW, insts.OpCSRRS, insts.OpCSRRC:
		// Unmapped CSRs fall through as a no-op.
		e.csrUnit.Execute(inst.Op, inst.Rd, inst.Rs1, inst.CSR)
		s.PC++

	case insts.OpLRW:
		va := s.ReadReg(inst.Rs1)
		pa, ok := e.lsu.Translate(va, AccessLoad)
		if !ok {
			return e.raise(AccessLoad.FaultCause(), va)
		}
		e.atomicUnit.LoadReserved(inst.Rd, pa)
		e.accessed(pa, false)
		s.PC++
	case insts.OpSCW:
		va := s.ReadReg(inst.Rs1)
		pa, ok := e.lsu.Translate(va, AccessStore)
		if !ok {
			return e.raise(AccessStore.FaultCause(), va)
		}
		if e.atomicUnit.StoreConditional(inst.Rd, inst.Rs2, pa) {
			e.accessed(pa, true)
		}
		s.PC++
	case insts.OpAMOSWAPW, insts.OpAMOADDW, insts.OpAMOXORW, insts.OpAMOANDW,
		insts.OpAMOORW, insts.OpAMOMINW, insts.OpAMOMAXW, insts.OpAMOMINUW,
		insts.OpAMOMAXUW:
		va := s.ReadReg(inst.Rs1)
		pa, ok := e.lsu.Translate(va, AccessStore)
		if !ok {
			return e.raise(AccessStore.FaultCause(), va)
		}
		e.atomicUnit.ReadModifyWrite(inst.Op, inst.Rd, inst.Rs2, pa)
		e.accessed(pa, false)
		e.accessed(pa, true)
		s.PC++

	default:
		return e.raise(CauseIllegalInstruction, inst.Raw)
	}

	if e.observer != nil {
		e.observer.InstructionRetired(e.id, pc, inst)
	}

	return StepResult{}
}

// raise enters the trap handler for the instruction at the current PC.
func (e *Emulator) raise(cause Cause, tval uint32) StepResult {
	pc := e.state.PC
	e.state.PC = e.trap.Enter(cause, tval, pc)
	e.trapCount++

	e.logger.V(1).Info("trap", "core", e.id, "cause", cause.String(),
		"scause", uint32(cause), "stval", tval, "sepc", pc, "stvec", e.state.PC)

	if e.observer != nil {
		e.observer.TrapTaken(e.id, cause, tval)
	}

	return StepResult{Trapped: true, Cause: cause}
}

func (e *Emulator) accessed(pa uint32, write bool) {
	if e.observer != nil {
		e.observer.MemoryAccessed(e.id, pa, write)
	}
}
