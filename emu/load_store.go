package emu

// LoadStoreUnit implements RV32 word loads and stores through the address
// translator.
type LoadStoreUnit struct {
	state      *CoreState
	memory     *Memory
	translator *Translator
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// core state, memory and translator.
func NewLoadStoreUnit(state *CoreState, memory *Memory, translator *Translator) *LoadStoreUnit {
	return &LoadStoreUnit{
		state:      state,
		memory:     memory,
		translator: translator,
	}
}

// EffectiveAddress returns rs1 + sext(imm).
func (lsu *LoadStoreUnit) EffectiveAddress(rs1 uint8, imm int32) uint32 {
	return lsu.state.ReadReg(rs1) + uint32(imm)
}

// Translate translates va under the core's current SATP.
func (lsu *LoadStoreUnit) Translate(va uint32, access Access) (uint32, bool) {
	return lsu.translator.Translate(lsu.state.CSR[CSRSatp], va, access)
}

// LW performs rd = mem[rs1 + imm]. On a fault rd is untouched and the
// faulting virtual address is returned with ok == false.
func (lsu *LoadStoreUnit) LW(rd, rs1 uint8, imm int32) (va, pa uint32, ok bool) {
	va = lsu.EffectiveAddress(rs1, imm)
	pa, ok = lsu.Translate(va, AccessLoad)
	if !ok {
		return va, 0, false
	}
	lsu.state.WriteReg(rd, lsu.memory.Read32(pa))
	return va, pa, true
}

// SW performs mem[rs1 + imm] = rs2. On a fault memory is untouched and the
// faulting virtual address is returned with ok == false.
func (lsu *LoadStoreUnit) SW(rs2, rs1 uint8, imm int32) (va, pa uint32, ok bool) {
	va = lsu.EffectiveAddress(rs1, imm)
	pa, ok = lsu.Translate(va, AccessStore)
	if !ok {
		return va, 0, false
	}
	lsu.memory.Write32(pa, lsu.state.ReadReg(rs2))
	return va, pa, true
}
