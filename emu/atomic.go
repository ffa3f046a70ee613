package emu

import "github.com/sarchlab/rvsim/insts"

// AtomicUnit implements LR.W/SC.W and the AMO*.W read-modify-write group
// on already translated physical addresses.
//
// The reservation is per core and only SC.W from the same core consumes
// it. Plain stores, and stores from other cores, to the reserved word are
// not observed, so a racing writer between LR.W and SC.W goes unnoticed.
type AtomicUnit struct {
	state  *CoreState
	memory *Memory
}

// NewAtomicUnit creates an AtomicUnit bound to state and memory.
func NewAtomicUnit(state *CoreState, memory *Memory) *AtomicUnit {
	return &AtomicUnit{state: state, memory: memory}
}

// LoadReserved loads the word at pa into rd and reserves pa.
func (u *AtomicUnit) LoadReserved(rd uint8, pa uint32) {
	u.state.WriteReg(rd, u.memory.Read32(pa))
	u.state.CSR[CSRReservation] = pa
}

// StoreConditional stores rs2 to pa if pa is reserved, writing 0 to rd on
// success and 1 on failure. The reservation is dropped either way.
func (u *AtomicUnit) StoreConditional(rd, rs2 uint8, pa uint32) bool {
	ok := u.state.CSR[CSRReservation] == pa
	if ok {
		u.memory.Write32(pa, u.state.ReadReg(rs2))
		u.state.WriteReg(rd, 0)
	} else {
		u.state.WriteReg(rd, 1)
	}
	u.state.CSR[CSRReservation] = NoReservation
	return ok
}

// ReadModifyWrite performs an AMO: rd receives the original word at pa and
// op(original, rs2) is written back. It reports false for a non-AMO op.
func (u *AtomicUnit) ReadModifyWrite(op insts.Op, rd, rs2 uint8, pa uint32) bool {
	old := u.memory.Read32(pa)
	src := u.state.ReadReg(rs2)

	var result uint32
	switch op {
	case insts.OpAMOSWAPW:
		result = src
	case insts.OpAMOADDW:
		result = old + src
	case insts.OpAMOXORW:
		result = old ^ src
	case insts.OpAMOANDW:
		result = old & src
	case insts.OpAMOORW:
		result = old | src
	case insts.OpAMOMINW:
		result = uint32(min(int32(old), int32(src)))
	case insts.OpAMOMAXW:
		result = uint32(max(int32(old), int32(src)))
	case insts.OpAMOMINUW:
		result = min(old, src)
	case insts.OpAMOMAXUW:
		result = max(old, src)
	default:
		return false
	}

	// rs2 is read before rd is written so rd == rs2 still stores the
	// source operand.
	u.state.WriteReg(rd, old)
	u.memory.Write32(pa, result)
	return true
}
