package insts

// EncodeR assembles an R-type word.
func EncodeR(opcode Opcode, rd, funct3, rs1, rs2, funct7 uint8) uint32 {
	return uint32(opcode)&0x7F |
		uint32(rd&0x1F)<<7 |
		uint32(funct3&0x7)<<12 |
		uint32(rs1&0x1F)<<15 |
		uint32(rs2&0x1F)<<20 |
		uint32(funct7&0x7F)<<25
}

// EncodeI assembles an I-type word. Only the low 12 bits of imm are used.
func EncodeI(opcode Opcode, rd, funct3, rs1 uint8, imm int32) uint32 {
	return uint32(opcode)&0x7F |
		uint32(rd&0x1F)<<7 |
		uint32(funct3&0x7)<<12 |
		uint32(rs1&0x1F)<<15 |
		(uint32(imm)&0xFFF)<<20
}

// EncodeS assembles an S-type word.
func EncodeS(opcode Opcode, funct3, rs1, rs2 uint8, imm int32) uint32 {
	u := uint32(imm)
	return uint32(opcode)&0x7F |
		(u&0x1F)<<7 |
		uint32(funct3&0x7)<<12 |
		uint32(rs1&0x1F)<<15 |
		uint32(rs2&0x1F)<<20 |
		((u>>5)&0x7F)<<25
}

// EncodeB assembles a B-type word from a byte offset. Bit 0 of the
// offset is dropped.
func EncodeB(opcode Opcode, funct3, rs1, rs2 uint8, offset int32) uint32 {
	u := uint32(offset)
	return uint32(opcode)&0x7F |
		((u>>11)&0x1)<<7 |
		((u>>1)&0xF)<<8 |
		uint32(funct3&0x7)<<12 |
		uint32(rs1&0x1F)<<15 |
		uint32(rs2&0x1F)<<20 |
		((u>>5)&0x3F)<<25 |
		((u>>12)&0x1)<<31
}

// EncodeAMO assembles an ATOMIC word with the given funct5.
func EncodeAMO(funct5, rd, rs1, rs2 uint8, aq, rl bool) uint32 {
	funct7 := (funct5 & 0x1F) << 2
	if aq {
		funct7 |= 0x2
	}
	if rl {
		funct7 |= 0x1
	}
	return EncodeR(OpcodeAtomic, rd, 2, rs1, rs2, funct7)
}

// ADDI encodes addi rd, rs1, imm.
func ADDI(rd, rs1 uint8, imm int32) uint32 {
	return EncodeI(OpcodeOpImm, rd, 0, rs1, imm)
}

// NOP encodes addi x0, x0, 0.
func NOP() uint32 {
	return ADDI(0, 0, 0)
}

// ADD encodes add rd, rs1, rs2.
func ADD(rd, rs1, rs2 uint8) uint32 {
	return EncodeR(OpcodeOp, rd, 0, rs1, rs2, Funct7Base)
}

// SUB encodes sub rd, rs1, rs2.
func SUB(rd, rs1, rs2 uint8) uint32 {
	return EncodeR(OpcodeOp, rd, 0, rs1, rs2, Funct7Sub)
}

// MulDiv encodes an M-extension operation selected by funct3
// (0 mul ... 7 remu).
func MulDiv(funct3, rd, rs1, rs2 uint8) uint32 {
	return EncodeR(OpcodeOp, rd, funct3, rs1, rs2, Funct7MulDiv)
}

// MUL encodes mul rd, rs1, rs2.
func MUL(rd, rs1, rs2 uint8) uint32 { return MulDiv(0, rd, rs1, rs2) }

// MULH encodes mulh rd, rs1, rs2.
func MULH(rd, rs1, rs2 uint8) uint32 { return MulDiv(1, rd, rs1, rs2) }

// MULHSU encodes mulhsu rd, rs1, rs2.
func MULHSU(rd, rs1, rs2 uint8) uint32 { return MulDiv(2, rd, rs1, rs2) }

// MULHU encodes mulhu rd, rs1, rs2.
func MULHU(rd, rs1, rs2 uint8) uint32 { return MulDiv(3, rd, rs1, rs2) }

// DIV encodes div rd, rs1, rs2.
func DIV(rd, rs1, rs2 uint8) uint32 { return MulDiv(4, rd, rs1, rs2) }

// DIVU encodes divu rd, rs1, rs2.
func DIVU(rd, rs1, rs2 uint8) uint32 { return MulDiv(5, rd, rs1, rs2) }

// REM encodes rem rd, rs1, rs2.
func REM(rd, rs1, rs2 uint8) uint32 { return MulDiv(6, rd, rs1, rs2) }

// REMU encodes remu rd, rs1, rs2.
func REMU(rd, rs1, rs2 uint8) uint32 { return MulDiv(7, rd, rs1, rs2) }

// BEQ encodes beq rs1, rs2, offset (offset in bytes).
func BEQ(rs1, rs2 uint8, offset int32) uint32 {
	return EncodeB(OpcodeBranch, 0, rs1, rs2, offset)
}

// BNE encodes bne rs1, rs2, offset (offset in bytes).
func BNE(rs1, rs2 uint8, offset int32) uint32 {
	return EncodeB(OpcodeBranch, 1, rs1, rs2, offset)
}

// LW encodes lw rd, imm(rs1).
func LW(rd, rs1 uint8, imm int32) uint32 {
	return EncodeI(OpcodeLoad, rd, 2, rs1, imm)
}

// SW encodes sw rs2, imm(rs1).
func SW(rs2, rs1 uint8, imm int32) uint32 {
	return EncodeS(OpcodeStore, 2, rs1, rs2, imm)
}

// ECALL encodes ecall.
func ECALL() uint32 {
	return EncodeI(OpcodeSystem, 0, 0, 0, int32(Funct12ECALL))
}

// EBREAK encodes ebreak.
func EBREAK() uint32 {
	return EncodeI(OpcodeSystem, 0, 0, 0, int32(Funct12EBREAK))
}

// SRET encodes sret.
func SRET() uint32 {
	return EncodeI(OpcodeSystem, 0, 0, 0, int32(Funct12SRET))
}

// CSRRW encodes csrrw rd, csr, rs1.
func CSRRW(rd uint8, csr uint16, rs1 uint8) uint32 {
	return EncodeI(OpcodeSystem, rd, 1, rs1, int32(csr))
}

// CSRRS encodes csrrs rd, csr, rs1.
func CSRRS(rd uint8, csr uint16, rs1 uint8) uint32 {
	return EncodeI(OpcodeSystem, rd, 2, rs1, int32(csr))
}

// CSRRC encodes csrrc rd, csr, rs1.
func CSRRC(rd uint8, csr uint16, rs1 uint8) uint32 {
	return EncodeI(OpcodeSystem, rd, 3, rs1, int32(csr))
}

// LRW encodes lr.w rd, (rs1).
func LRW(rd, rs1 uint8) uint32 {
	return EncodeAMO(Funct5LR, rd, rs1, 0, false, false)
}

// SCW encodes sc.w rd, rs2, (rs1).
func SCW(rd, rs1, rs2 uint8) uint32 {
	return EncodeAMO(Funct5SC, rd, rs1, rs2, false, false)
}

// AMOSWAPW encodes amoswap.w rd, rs2, (rs1).
func AMOSWAPW(rd, rs1, rs2 uint8) uint32 { return EncodeAMO(Funct5AMOSWAP, rd, rs1, rs2, false, false) }

// AMOADDW encodes amoadd.w rd, rs2, (rs1).
func AMOADDW(rd, rs1, rs2 uint8) uint32 { return EncodeAMO(Funct5AMOADD, rd, rs1, rs2, false, false) }

// AMOXORW encodes amoxor.w rd, rs2, (rs1).
func AMOXORW(rd, rs1, rs2 uint8) uint32 { return EncodeAMO(Funct5AMOXOR, rd, rs1, rs2, false, false) }

// AMOANDW encodes amoand.w rd, rs2, (rs1).
func AMOANDW(rd, rs1, rs2 uint8) uint32 { return EncodeAMO(Funct5AMOAND, rd, rs1, rs2, false, false) }

// AMOORW encodes amoor.w rd, rs2, (rs1).
func AMOORW(rd, rs1, rs2 uint8) uint32 { return EncodeAMO(Funct5AMOOR, rd, rs1, rs2, false, false) }

// AMOMINW encodes amomin.w rd, rs2, (rs1).
func AMOMINW(rd, rs1, rs2 uint8) uint32 { return EncodeAMO(Funct5AMOMIN, rd, rs1, rs2, false, false) }

// AMOMAXW encodes amomax.w rd, rs2, (rs1).
func AMOMAXW(rd, rs1, rs2 uint8) uint32 { return EncodeAMO(Funct5AMOMAX, rd, rs1, rs2, false, false) }

// AMOMINUW encodes amominu.w rd, rs2, (rs1).
func AMOMINUW(rd, rs1, rs2 uint8) uint32 { return EncodeAMO(Funct5AMOMINU, rd, rs1, rs2, false, false) }

// AMOMAXUW encodes amomaxu.w rd, rs2, (rs1).
func AMOMAXUW(rd, rs1, rs2 uint8) uint32 { return EncodeAMO(Funct5AMOMAXU, rd, rs1, rs2, false, false) }
