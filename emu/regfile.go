// Package emu provides functional RV32 emulation of a single lock-stepped core.
package emu

// CSR identifies a control/status slot in the core state record.
// The slot order is part of the host buffer layout and must not change.
type CSR int

// CSR slots, in record order after the 32 general registers and the PC.
const (
	CSRSatp CSR = iota
	CSRStvec
	CSRSscratch
	CSRMode
	CSRHalt
	CSRReservation
	CSRSepc
	CSRScause
	CSRStval
	CSRSstatus
	CSRSie
	CSRSip

	// NumCSRs is the number of CSR slots in the state record.
	NumCSRs

	// CSRUnmapped is returned for CSR numbers with no slot.
	CSRUnmapped CSR = -1
)

var csrNames = [NumCSRs]string{
	CSRSatp:        "satp",
	CSRStvec:       "stvec",
	CSRSscratch:    "sscratch",
	CSRMode:        "mode",
	CSRHalt:        "halt",
	CSRReservation: "reservation",
	CSRSepc:        "sepc",
	CSRScause:      "scause",
	CSRStval:       "stval",
	CSRSstatus:     "sstatus",
	CSRSie:         "sie",
	CSRSip:         "sip",
}

// String returns the lower-case slot name.
func (c CSR) String() string {
	if c < 0 || c >= NumCSRs {
		return "unmapped"
	}
	return csrNames[c]
}

// Privilege modes held in the MODE slot.
const (
	ModeUser       uint32 = 0
	ModeSupervisor uint32 = 1
)

// NoReservation is the RESERVATION value meaning no address is reserved.
const NoReservation uint32 = 0xFFFFFFFF

// StateWords is the size of a core state record in 32-bit words.
const StateWords = 32 + 1 + int(NumCSRs)

// CoreState is the per-core architectural state record.
type CoreState struct {
	// X holds the general-purpose registers x0-x31.
	// X[0] is hardwired to zero: it always reads as 0 and writes are dropped.
	X [32]uint32

	// PC is the program counter as an index into the instruction stream.
	PC uint32

	// CSR holds the control/status slots indexed by CSR.
	CSR [NumCSRs]uint32
}

// NewCoreState returns a zeroed state with no reservation held.
func NewCoreState() *CoreState {
	s := &CoreState{}
	s.Reset()
	return s
}

// Reset zeroes the state. The reservation slot is set to NoReservation.
func (s *CoreState) Reset() {
	*s = CoreState{}
	s.CSR[CSRReservation] = NoReservation
}

// ReadReg reads a register value. Register 0 and out-of-range indices
// return 0.
func (s *CoreState) ReadReg(reg uint8) uint32 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return s.X[reg]
}

// WriteReg writes a register value. Writes to register 0 are ignored.
func (s *CoreState) WriteReg(reg uint8, value uint32) {
	if reg == 0 || reg >= 32 {
		return
	}
	s.X[reg] = value
}

// ReadCSR reads a CSR slot. CSRUnmapped reads as 0.
func (s *CoreState) ReadCSR(c CSR) uint32 {
	if c < 0 || c >= NumCSRs {
		return 0
	}
	return s.CSR[c]
}

// WriteCSR writes a CSR slot. Writes to CSRUnmapped are ignored.
func (s *CoreState) WriteCSR(c CSR, value uint32) {
	if c < 0 || c >= NumCSRs {
		return
	}
	s.CSR[c] = value
}

// Halted reports whether the halt flag is set.
func (s *CoreState) Halted() bool {
	return s.CSR[CSRHalt] != 0
}

// SetHalted sets or clears the halt flag.
func (s *CoreState) SetHalted(halted bool) {
	if halted {
		s.CSR[CSRHalt] = 1
	} else {
		s.CSR[CSRHalt] = 0
	}
}

// Mode returns the current privilege mode.
func (s *CoreState) Mode() uint32 {
	return s.CSR[CSRMode]
}

// Words flattens the state into the host record layout: x0-x31, PC, then
// the CSR slots in declaration order.
func (s *CoreState) Words() [StateWords]uint32 {
	var w [StateWords]uint32
	copy(w[:32], s.X[:])
	w[32] = s.PC
	copy(w[33:], s.CSR[:])
	return w
}

// SetWords loads the state from a host record. It reports false if the
// record does not have exactly StateWords entries.
func (s *CoreState) SetWords(w []uint32) bool {
	if len(w) != StateWords {
		return false
	}
	copy(s.X[:], w[:32])
	s.X[0] = 0
	s.PC = w[32]
	copy(s.CSR[:], w[33:])
	s.CSR[CSRMode] &= 1
	return true
}
