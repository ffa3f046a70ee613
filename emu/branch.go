package emu

// BranchUnit implements the RV32 conditional branches.
//
// The PC counts instructions, not bytes, so the byte offset carried by a
// B-type immediate is divided by four before it is applied.
type BranchUnit struct {
	state *CoreState
}

// NewBranchUnit creates a new BranchUnit connected to the given core state.
func NewBranchUnit(state *CoreState) *BranchUnit {
	return &BranchUnit{state: state}
}

// BEQ branches by offset bytes when rs1 == rs2, otherwise advances the PC.
// It reports whether the branch was taken.
func (b *BranchUnit) BEQ(rs1, rs2 uint8, offset int32) bool {
	return b.branch(b.state.ReadReg(rs1) == b.state.ReadReg(rs2), offset)
}

// BNE branches by offset bytes when rs1 != rs2, otherwise advances the PC.
// It reports whether the branch was taken.
func (b *BranchUnit) BNE(rs1, rs2 uint8, offset int32) bool {
	return b.branch(b.state.ReadReg(rs1) != b.state.ReadReg(rs2), offset)
}

func (b *BranchUnit) branch(taken bool, offset int32) bool {
	if taken {
		b.state.PC = uint32(int32(b.state.PC) + offset>>2)
	} else {
		b.state.PC++
	}
	return taken
}
