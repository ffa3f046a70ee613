package emu

import "github.com/sarchlab/rvsim/insts"

// Architectural CSR numbers reachable from CSR instructions.
const (
	CSRNumSstatus  uint16 = 0x100
	CSRNumSie      uint16 = 0x104
	CSRNumStvec    uint16 = 0x105
	CSRNumSscratch uint16 = 0x140
	CSRNumSepc     uint16 = 0x141
	CSRNumScause   uint16 = 0x142
	CSRNumStval    uint16 = 0x143
	CSRNumSip      uint16 = 0x144
	CSRNumSatp     uint16 = 0x180
)

// CSRSlot maps an architectural CSR number to its state slot. MODE, HALT
// and RESERVATION have no number; unknown numbers map to CSRUnmapped.
func CSRSlot(num uint16) CSR {
	switch num {
	case CSRNumSstatus:
		return CSRSstatus
	case CSRNumSie:
		return CSRSie
	case CSRNumStvec:
		return CSRStvec
	case CSRNumSscratch:
		return CSRSscratch
	case CSRNumSepc:
		return CSRSepc
	case CSRNumScause:
		return CSRScause
	case CSRNumStval:
		return CSRStval
	case CSRNumSip:
		return CSRSip
	case CSRNumSatp:
		return CSRSatp
	default:
		return CSRUnmapped
	}
}

// CSRUnit executes CSRRW, CSRRS and CSRRC.
type CSRUnit struct {
	state *CoreState
}

// NewCSRUnit creates a CSRUnit bound to state.
func NewCSRUnit(state *CoreState) *CSRUnit {
	return &CSRUnit{state: state}
}

// Execute runs a CSR instruction. The prior CSR value goes to rd before the
// new value is applied. CSRRS/CSRRC with rs1 == x0 only read. An unmapped
// CSR makes the whole instruction a no-op; Execute then reports false.
func (u *CSRUnit) Execute(op insts.Op, rd, rs1 uint8, num uint16) bool {
	slot := CSRSlot(num)
	if slot == CSRUnmapped {
		return false
	}

	old := u.state.ReadCSR(slot)
	src := u.state.ReadReg(rs1)

	switch op {
	case insts.OpCSRRW:
		u.state.WriteCSR(slot, src)
	case insts.OpCSRRS:
		if rs1 != 0 {
			u.state.WriteCSR(slot, old|src)
		}
	case insts.OpCSRRC:
		if rs1 != 0 {
			u.state.WriteCSR(slot, old&^src)
		}
	default:
		return false
	}

	u.state.WriteReg(rd, old)
	return true
}
