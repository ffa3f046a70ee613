package emu

// Cause is an exception code written to SCAUSE.
type Cause uint32

// Exception causes raised by the core.
const (
	CauseIllegalInstruction   Cause = 2
	CauseBreakpoint           Cause = 3
	CauseUserEcall            Cause = 8
	CauseSupervisorEcall      Cause = 11
	CauseInstructionPageFault Cause = 12
	CauseLoadPageFault        Cause = 13
	CauseStorePageFault       Cause = 15
)

// String returns a short description of the cause.
func (c Cause) String() string {
	switch c {
	case CauseIllegalInstruction:
		return "illegal instruction"
	case CauseBreakpoint:
		return "breakpoint"
	case CauseUserEcall:
		return "ecall from U-mode"
	case CauseSupervisorEcall:
		return "ecall from S-mode"
	case CauseInstructionPageFault:
		return "instruction page fault"
	case CauseLoadPageFault:
		return "load page fault"
	case CauseStorePageFault:
		return "store page fault"
	default:
		return "unknown cause"
	}
}

// SSTATUS bits.
const (
	SstatusSIE  uint32 = 1 << 1
	SstatusSPIE uint32 = 1 << 5
	SstatusSPP  uint32 = 1 << 8
)

// TrapController moves a core between normal execution and its trap handler.
// Only one level of trap is tracked: a trap taken inside a handler
// overwrites SEPC/SPP/SPIE.
type TrapController struct {
	state *CoreState
}

// NewTrapController creates a TrapController bound to state.
func NewTrapController(state *CoreState) *TrapController {
	return &TrapController{state: state}
}

// Enter records the trap and switches to supervisor mode. It returns the
// next PC, which is the value of STVEC.
func (t *TrapController) Enter(cause Cause, tval, returnPC uint32) uint32 {
	s := t.state

	s.CSR[CSRSepc] = returnPC
	s.CSR[CSRScause] = uint32(cause)
	s.CSR[CSRStval] = tval

	status := s.CSR[CSRSstatus] &^ (SstatusSPIE | SstatusSPP)
	if status&SstatusSIE != 0 {
		status |= SstatusSPIE
	}
	status &^= SstatusSIE
	if s.CSR[CSRMode] == ModeSupervisor {
		status |= SstatusSPP
	}
	s.CSR[CSRSstatus] = status

	s.CSR[CSRMode] = ModeSupervisor

	return s.CSR[CSRStvec]
}

// Return leaves the trap handler. SIE is restored from SPIE, MODE from SPP,
// and SEPC is returned as the next PC.
func (t *TrapController) Return() uint32 {
	s := t.state

	status := s.CSR[CSRSstatus] &^ SstatusSIE
	if status&SstatusSPIE != 0 {
		status |= SstatusSIE
	}
	status &^= SstatusSPIE

	if status&SstatusSPP != 0 {
		s.CSR[CSRMode] = ModeSupervisor
	} else {
		s.CSR[CSRMode] = ModeUser
	}
	status &^= SstatusSPP
	s.CSR[CSRSstatus] = status

	return s.CSR[CSRSepc]
}
