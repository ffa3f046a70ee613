package asm

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

type encoder func(a *Assembler, st *statement) ([]uint32, error)

var mnemonics = map[string]encoder{
	"addi": encodeI(insts.ADDI),

	"add":    encodeR(insts.ADD),
	"sub":    encodeR(insts.SUB),
	"mul":    encodeR(insts.MUL),
	"mulh":   encodeR(insts.MULH),
	"mulhsu": encodeR(insts.MULHSU),
	"mulhu":  encodeR(insts.MULHU),
	"div":    encodeR(insts.DIV),
	"divu":   encodeR(insts.DIVU),
	"rem":    encodeR(insts.REM),
	"remu":   encodeR(insts.REMU),

	"beq": encodeB(insts.BEQ),
	"bne": encodeB(insts.BNE),

	"lw": encodeLoad,
	"sw": encodeStore,

	"ecall":  encodeFixed(insts.ECALL()),
	"ebreak": encodeFixed(insts.EBREAK()),
	"sret":   encodeFixed(insts.SRET()),

	"csrrw": encodeCSR(insts.CSRRW),
	"csrrs": encodeCSR(insts.CSRRS),
	"csrrc": encodeCSR(insts.CSRRC),

	"lr.w":      encodeLR,
	"sc.w":      encodeAMO(insts.SCW),
	"amoswap.w": encodeAMO(insts.AMOSWAPW),
	"amoadd.w":  encodeAMO(insts.AMOADDW),
	"amoxor.w":  encodeAMO(insts.AMOXORW),
	"amoand.w":  encodeAMO(insts.AMOANDW),
	"amoor.w":   encodeAMO(insts.AMOORW),
	"amomin.w":  encodeAMO(insts.AMOMINW),
	"amomax.w":  encodeAMO(insts.AMOMAXW),
	"amominu.w": encodeAMO(insts.AMOMINUW),
	"amomaxu.w": encodeAMO(insts.AMOMAXUW),

	// Pseudo instructions
	"nop":  encodeFixed(insts.NOP()),
	"mv":   encodeMV,
	"li":   encodeLI,
	"la":   encodeLA,
	"j":    encodeJ,
	"beqz": encodeBZ(insts.BEQ),
	"bnez": encodeBZ(insts.BNE),
	"csrr": encodeCSRR,
	"csrw": encodeCSRW,
}

// regNames maps ABI register names to numbers. x0-x31 are added by init.
var regNames = map[string]uint8{
	"zero": 0, "ra": 1, "sp": 2, "gp": 3, "tp": 4,
	"t0": 5, "t1": 6, "t2": 7,
	"s0": 8, "fp": 8, "s1": 9,
	"a0": 10, "a1": 11, "a2": 12, "a3": 13, "a4": 14, "a5": 15, "a6": 16, "a7": 17,
	"s2": 18, "s3": 19, "s4": 20, "s5": 21, "s6": 22, "s7": 23, "s8": 24, "s9": 25,
	"s10": 26, "s11": 27,
	"t3": 28, "t4": 29, "t5": 30, "t6": 31,
}

var csrNames = map[string]uint16{
	"sstatus":  emu.CSRNumSstatus,
	"sie":      emu.CSRNumSie,
	"stvec":    emu.CSRNumStvec,
	"sscratch": emu.CSRNumSscratch,
	"sepc":     emu.CSRNumSepc,
	"scause":   emu.CSRNumScause,
	"stval":    emu.CSRNumStval,
	"sip":      emu.CSRNumSip,
	"satp":     emu.CSRNumSatp,
}

func init() {
	for i := 0; i < 32; i++ {
		regNames["x"+strconv.Itoa(i)] = uint8(i)
	}
}

func operands(st *statement, n int) error {
	if len(st.args) != n {
		return errors.Wrapf(ErrOperandCount, "%s wants %d, got %d", st.mnemonic, n, len(st.args))
	}
	return nil
}

func (a *Assembler) reg(s string) (uint8, error) {
	r, ok := regNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, errors.Wrap(ErrRegisterInvalid, s)
	}
	return r, nil
}

func (a *Assembler) regs(args ...string) ([]uint8, error) {
	out := make([]uint8, len(args))
	for i, s := range args {
		r, err := a.reg(s)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// imm12 evaluates a signed 12-bit immediate.
func (a *Assembler) imm12(s string) (int32, error) {
	v, err := a.eval(s)
	if err != nil {
		return 0, err
	}
	if v < -2048 || v > 2047 {
		return 0, errors.Wrapf(ErrImmediateRange, "%s = %d", s, v)
	}
	return int32(v), nil
}

// branchOffset resolves a branch operand to a byte offset from pc.
func (a *Assembler) branchOffset(s string, pc uint32) (int32, error) {
	s = strings.TrimSpace(s)

	var off int64
	if target, ok := a.Label[s]; ok && identRe.MatchString(s) {
		off = (int64(target) - int64(pc)) * 4
	} else {
		v, err := a.eval(s)
		if err != nil {
			return 0, err
		}
		off = v
	}

	if off&3 != 0 {
		return 0, errors.Wrapf(ErrBranchAlignment, "%s = %d", s, off)
	}
	if off < -4096 || off > 4094 {
		return 0, errors.Wrapf(ErrImmediateRange, "%s = %d", s, off)
	}
	return int32(off), nil
}

// mem parses "imm(reg)" or "(reg)".
func (a *Assembler) mem(s string) (int32, uint8, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, ")") {
		return 0, 0, errors.Wrap(ErrMemoryOperand, s)
	}
	open := strings.LastIndexByte(s, '(')
	if open < 0 {
		return 0, 0, errors.Wrap(ErrMemoryOperand, s)
	}

	base, err := a.reg(s[open+1 : len(s)-1])
	if err != nil {
		return 0, 0, err
	}

	var imm int32
	if off := strings.TrimSpace(s[:open]); off != "" {
		if imm, err = a.imm12(off); err != nil {
			return 0, 0, err
		}
	}
	return imm, base, nil
}

// atomicBase parses "(reg)" or "0(reg)".
func (a *Assembler) atomicBase(s string) (uint8, error) {
	imm, base, err := a.mem(s)
	if err != nil {
		return 0, err
	}
	if imm != 0 {
		return 0, errors.Wrap(ErrMemoryOperand, s)
	}
	return base, nil
}

func (a *Assembler) csr(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if num, ok := csrNames[strings.ToLower(s)]; ok {
		return num, nil
	}
	v, err := a.eval(s)
	if err != nil {
		return 0, errors.Wrap(ErrCSRInvalid, s)
	}
	if v < 0 || v > 0xFFF {
		return 0, errors.Wrap(ErrCSRInvalid, s)
	}
	return uint16(v), nil
}

func encodeFixed(word uint32) encoder {
	return func(_ *Assembler, st *statement) ([]uint32, error) {
		if err := operands(st, 0); err != nil {
			return nil, err
		}
		return []uint32{word}, nil
	}
}

func encodeR(enc func(rd, rs1, rs2 uint8) uint32) encoder {
	return func(a *Assembler, st *statement) ([]uint32, error) {
		if err := operands(st, 3); err != nil {
			return nil, err
		}
		r, err := a.regs(st.args...)
		if err != nil {
			return nil, err
		}
		return []uint32{enc(r[0], r[1], r[2])}, nil
	}
}

func encodeI(enc func(rd, rs1 uint8, imm int32) uint32) encoder {
	return func(a *Assembler, st *statement) ([]uint32, error) {
		if err := operands(st, 3); err != nil {
			return nil, err
		}
		r, err := a.regs(st.args[:2]...)
		if err != nil {
			return nil, err
		}
		imm, err := a.imm12(st.args[2])
		if err != nil {
			return nil, err
		}
		return []uint32{enc(r[0], r[1], imm)}, nil
	}
}

func encodeB(enc func(rs1, rs2 uint8, offset int32) uint32) encoder {
	return func(a *Assembler, st *statement) ([]uint32, error) {
		if err := operands(st, 3); err != nil {
			return nil, err
		}
		r, err := a.regs(st.args[:2]...)
		if err != nil {
			return nil, err
		}
		off, err := a.branchOffset(st.args[2], st.addr)
		if err != nil {
			return nil, err
		}
		return []uint32{enc(r[0], r[1], off)}, nil
	}
}

func encodeBZ(enc func(rs1, rs2 uint8, offset int32) uint32) encoder {
	return func(a *Assembler, st *statement) ([]uint32, error) {
		if err := operands(st, 2); err != nil {
			return nil, err
		}
		rs, err := a.reg(st.args[0])
		if err != nil {
			return nil, err
		}
		off, err := a.branchOffset(st.args[1], st.addr)
		if err != nil {
			return nil, err
		}
		return []uint32{enc(rs, 0, off)}, nil
	}
}

func encodeJ(a *Assembler, st *statement) ([]uint32, error) {
	if err := operands(st, 1); err != nil {
		return nil, err
	}
	off, err := a.branchOffset(st.args[0], st.addr)
	if err != nil {
		return nil, err
	}
	return []uint32{insts.BEQ(0, 0, off)}, nil
}

func encodeLoad(a *Assembler, st *statement) ([]uint32, error) {
	if err := operands(st, 2); err != nil {
		return nil, err
	}
	rd, err := a.reg(st.args[0])
	if err != nil {
		return nil, err
	}
	imm, rs1, err := a.mem(st.args[1])
	if err != nil {
		return nil, err
	}
	return []uint32{insts.LW(rd, rs1, imm)}, nil
}

func encodeStore(a *Assembler, st *statement) ([]uint32, error) {
	if err := operands(st, 2); err != nil {
		return nil, err
	}
	rs2, err := a.reg(st.args[0])
	if err != nil {
		return nil, err
	}
	imm, rs1, err := a.mem(st.args[1])
	if err != nil {
		return nil, err
	}
	return []uint32{insts.SW(rs2, rs1, imm)}, nil
}

func encodeCSR(enc func(rd uint8, csr uint16, rs1 uint8) uint32) encoder {
	return func(a *Assembler, st *statement) ([]uint32, error) {
		if err := operands(st, 3); err != nil {
			return nil, err
		}
		rd, err := a.reg(st.args[0])
		if err != nil {
			return nil, err
		}
		num, err := a.csr(st.args[1])
		if err != nil {
			return nil, err
		}
		rs1, err := a.reg(st.args[2])
		if err != nil {
			return nil, err
		}
		return []uint32{enc(rd, num, rs1)}, nil
	}
}

// csrr rd, csr => csrrs rd, csr, zero
func encodeCSRR(a *Assembler, st *statement) ([]uint32, error) {
	if err := operands(st, 2); err != nil {
		return nil, err
	}
	rd, err := a.reg(st.args[0])
	if err != nil {
		return nil, err
	}
	num, err := a.csr(st.args[1])
	if err != nil {
		return nil, err
	}
	return []uint32{insts.CSRRS(rd, num, 0)}, nil
}

// csrw csr, rs => csrrw zero, csr, rs
func encodeCSRW(a *Assembler, st *statement) ([]uint32, error) {
	if err := operands(st, 2); err != nil {
		return nil, err
	}
	num, err := a.csr(st.args[0])
	if err != nil {
		return nil, err
	}
	rs, err := a.reg(st.args[1])
	if err != nil {
		return nil, err
	}
	return []uint32{insts.CSRRW(0, num, rs)}, nil
}

// lr.w rd, (rs1)
func encodeLR(a *Assembler, st *statement) ([]uint32, error) {
	if err := operands(st, 2); err != nil {
		return nil, err
	}
	rd, err := a.reg(st.args[0])
	if err != nil {
		return nil, err
	}
	rs1, err := a.atomicBase(st.args[1])
	if err != nil {
		return nil, err
	}
	return []uint32{insts.LRW(rd, rs1)}, nil
}

// op rd, rs2, (rs1)
func encodeAMO(enc func(rd, rs1, rs2 uint8) uint32) encoder {
	return func(a *Assembler, st *statement) ([]uint32, error) {
		if err := operands(st, 3); err != nil {
			return nil, err
		}
		r, err := a.regs(st.args[:2]...)
		if err != nil {
			return nil, err
		}
		rs1, err := a.atomicBase(st.args[2])
		if err != nil {
			return nil, err
		}
		return []uint32{enc(r[0], rs1, r[1])}, nil
	}
}

// mv rd, rs => addi rd, rs, 0
func encodeMV(a *Assembler, st *statement) ([]uint32, error) {
	if err := operands(st, 2); err != nil {
		return nil, err
	}
	r, err := a.regs(st.args...)
	if err != nil {
		return nil, err
	}
	return []uint32{insts.ADDI(r[0], r[1], 0)}, nil
}

// li rd, imm loads any 32-bit value. The value was fixed by the first pass.
func encodeLI(a *Assembler, st *statement) ([]uint32, error) {
	rd, err := a.reg(st.args[0])
	if err != nil {
		return nil, err
	}
	if st.value < -0x80000000 || st.value > 0xFFFFFFFF {
		return nil, errors.Wrapf(ErrImmediateRange, "%s = %d", st.args[1], st.value)
	}
	return expandLI(rd, st.value), nil
}

// la rd, symbol => addi rd, zero, symbol. The symbol may be defined later
// but must fit in 12 bits.
func encodeLA(a *Assembler, st *statement) ([]uint32, error) {
	if err := operands(st, 2); err != nil {
		return nil, err
	}
	rd, err := a.reg(st.args[0])
	if err != nil {
		return nil, err
	}
	imm, err := a.imm12(st.args[1])
	if err != nil {
		return nil, err
	}
	return []uint32{insts.ADDI(rd, 0, imm)}, nil
}

// expandLI builds v in rd with ADDI and doubling ADDs, ten bits at a time,
// since the supported subset has neither LUI nor shifts.
func expandLI(rd uint8, v int64) []uint32 {
	if v >= -2048 && v <= 2047 {
		return []uint32{insts.ADDI(rd, 0, int32(v))}
	}

	u := uint32(v)
	chunks := [...]uint32{u >> 30, u >> 20 & 0x3FF, u >> 10 & 0x3FF, u & 0x3FF}

	var words []uint32
	started := false
	for _, c := range chunks {
		if !started {
			if c != 0 {
				words = append(words, insts.ADDI(rd, 0, int32(c)))
				started = true
			}
			continue
		}
		for range 10 {
			words = append(words, insts.ADD(rd, rd, rd))
		}
		if c != 0 {
			words = append(words, insts.ADDI(rd, rd, int32(c)))
		}
	}
	return words
}
