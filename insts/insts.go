// Package insts provides RV32 instruction definitions and decoding.
//
// This package implements decoding of RV32 machine code into structured
// instruction representations, and the inverse encoders used by the
// assembler and tests. It supports:
//   - OP-IMM: ADDI
//   - OP: ADD, SUB and the M extension (MUL, MULH, MULHSU, MULHU, DIV,
//     DIVU, REM, REMU)
//   - BRANCH: BEQ, BNE
//   - LOAD/STORE: LW, SW
//   - SYSTEM: ECALL, EBREAK, SRET, CSRRW, CSRRS, CSRRC
//   - ATOMIC: LR.W, SC.W and the AMO*.W read-modify-write group
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(insts.ADDI(1, 0, 5)) // addi x1, x0, 5
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
package insts
