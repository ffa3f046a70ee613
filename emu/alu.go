package emu

// ALU implements RV32 integer arithmetic and the M extension.
type ALU struct {
	state *CoreState
}

// NewALU creates a new ALU connected to the given core state.
func NewALU(state *CoreState) *ALU {
	return &ALU{state: state}
}

// ADDI performs rd = rs1 + sext(imm).
func (a *ALU) ADDI(rd, rs1 uint8, imm int32) {
	a.state.WriteReg(rd, a.state.ReadReg(rs1)+uint32(imm))
}

// ADD performs rd = rs1 + rs2.
func (a *ALU) ADD(rd, rs1, rs2 uint8) {
	a.state.WriteReg(rd, a.state.ReadReg(rs1)+a.state.ReadReg(rs2))
}

// SUB performs rd = rs1 - rs2.
func (a *ALU) SUB(rd, rs1, rs2 uint8) {
	a.state.WriteReg(rd, a.state.ReadReg(rs1)-a.state.ReadReg(rs2))
}

// MUL performs rd = low 32 bits of rs1 * rs2.
func (a *ALU) MUL(rd, rs1, rs2 uint8) {
	a.state.WriteReg(rd, a.state.ReadReg(rs1)*a.state.ReadReg(rs2))
}

// MULH performs rd = high 32 bits of the signed 64-bit product.
func (a *ALU) MULH(rd, rs1, rs2 uint8) {
	a.state.WriteReg(rd, MulHigh(a.state.ReadReg(rs1), a.state.ReadReg(rs2)))
}

// MULHSU performs rd = high 32 bits of signed rs1 times unsigned rs2.
func (a *ALU) MULHSU(rd, rs1, rs2 uint8) {
	p := int64(int32(a.state.ReadReg(rs1))) * int64(a.state.ReadReg(rs2))
	a.state.WriteReg(rd, uint32(uint64(p)>>32))
}

// MULHU performs rd = high 32 bits of the unsigned 64-bit product.
func (a *ALU) MULHU(rd, rs1, rs2 uint8) {
	p := uint64(a.state.ReadReg(rs1)) * uint64(a.state.ReadReg(rs2))
	a.state.WriteReg(rd, uint32(p>>32))
}

// DIV performs signed division. Division by zero leaves rd unchanged.
// The overflow case -2^31 / -1 yields -2^31.
func (a *ALU) DIV(rd, rs1, rs2 uint8) {
	divisor := int32(a.state.ReadReg(rs2))
	if divisor == 0 {
		return
	}
	a.state.WriteReg(rd, uint32(int32(a.state.ReadReg(rs1))/divisor))
}

// DIVU performs unsigned division. Division by zero leaves rd unchanged.
func (a *ALU) DIVU(rd, rs1, rs2 uint8) {
	divisor := a.state.ReadReg(rs2)
	if divisor == 0 {
		return
	}
	a.state.WriteReg(rd, a.state.ReadReg(rs1)/divisor)
}

// REM performs signed remainder. Division by zero leaves rd unchanged.
// The overflow case -2^31 % -1 yields 0.
func (a *ALU) REM(rd, rs1, rs2 uint8) {
	divisor := int32(a.state.ReadReg(rs2))
	if divisor == 0 {
		return
	}
	a.state.WriteReg(rd, uint32(int32(a.state.ReadReg(rs1))%divisor))
}

// REMU performs unsigned remainder. Division by zero leaves rd unchanged.
func (a *ALU) REMU(rd, rs1, rs2 uint8) {
	divisor := a.state.ReadReg(rs2)
	if divisor == 0 {
		return
	}
	a.state.WriteReg(rd, a.state.ReadReg(rs1)%divisor)
}

// MulHigh returns the high 32 bits of the signed 64-bit product of x and y.
func MulHigh(x, y uint32) uint32 {
	p := int64(int32(x)) * int64(int32(y))
	return uint32(uint64(p) >> 32)
}
