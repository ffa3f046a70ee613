package insts

import "fmt"

var regNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegName returns the ABI name of register r.
func RegName(r uint8) string {
	if r >= 32 {
		return fmt.Sprintf("x%d", r)
	}
	return regNames[r]
}

// String renders the instruction in assembler syntax. Branch targets are
// printed as byte offsets and CSRs by number, so the text assembles back
// to the same word.
func (inst *Instruction) String() string {
	rd, rs1, rs2 := RegName(inst.Rd), RegName(inst.Rs1), RegName(inst.Rs2)

	switch {
	case inst.Op == OpADDI:
		return fmt.Sprintf("addi %s, %s, %d", rd, rs1, inst.Imm)
	case inst.Op == OpBEQ || inst.Op == OpBNE:
		return fmt.Sprintf("%s %s, %s, %d", inst.Op, rs1, rs2, inst.Imm)
	case inst.Op == OpLW:
		return fmt.Sprintf("lw %s, %d(%s)", rd, inst.Imm, rs1)
	case inst.Op == OpSW:
		return fmt.Sprintf("sw %s, %d(%s)", rs2, inst.Imm, rs1)
	case inst.Op == OpECALL || inst.Op == OpEBREAK || inst.Op == OpSRET:
		return inst.Op.String()
	case inst.Op == OpCSRRW || inst.Op == OpCSRRS || inst.Op == OpCSRRC:
		return fmt.Sprintf("%s %s, %#x, %s", inst.Op, rd, inst.CSR, rs1)
	case inst.Op == OpLRW:
		return fmt.Sprintf("lr.w %s, (%s)", rd, rs1)
	case inst.Op == OpSCW || inst.Op.IsAtomic():
		return fmt.Sprintf("%s %s, %s, (%s)", inst.Op, rd, rs2, rs1)
	case inst.Op != OpUnknown:
		return fmt.Sprintf("%s %s, %s, %s", inst.Op, rd, rs1, rs2)
	default:
		return fmt.Sprintf(".word 0x%08x", inst.Raw)
	}
}
