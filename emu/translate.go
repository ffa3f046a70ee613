package emu

// SATP fields.
const (
	// SatpModeSv32 enables the two-level page walk when set.
	SatpModeSv32 uint32 = 1 << 31
	// SatpPPNMask selects the root page-table physical page number.
	SatpPPNMask uint32 = 0x003FFFFF
)

// Page table entry bits.
const (
	PteV   uint32 = 1 << 0 // valid
	PteR   uint32 = 1 << 1 // readable
	PteW   uint32 = 1 << 2 // writable
	PteX   uint32 = 1 << 3 // executable
	PteXWR        = PteR | PteW | PteX
)

// Sv32 geometry.
const (
	PageShift     = 12
	PageSize      = 1 << PageShift
	MegapageShift = 22
	pteSize       = 4
)

// Access describes why an address is being translated.
type Access uint8

// Access kinds.
const (
	AccessLoad Access = iota
	AccessStore
	AccessFetch
)

// FaultCause maps a failed translation of this access kind to its trap cause.
func (a Access) FaultCause() Cause {
	switch a {
	case AccessStore:
		return CauseStorePageFault
	case AccessFetch:
		return CauseInstructionPageFault
	default:
		return CauseLoadPageFault
	}
}

// MakePTE builds a page table entry pointing at ppn with the given flag bits.
// The valid bit is always set.
func MakePTE(ppn uint32, flags uint32) uint32 {
	return ppn<<10 | flags&0x3FF | PteV
}

// Translator walks Sv32 page tables stored in physical memory.
//
// Page tables live in the same shared memory as data, so a walk may observe
// a table another core is rewriting in the same tick. No ordering is
// enforced between them.
type Translator struct {
	memory *Memory
}

// NewTranslator creates a Translator reading page tables from memory.
func NewTranslator(memory *Memory) *Translator {
	return &Translator{memory: memory}
}

// Translate converts virtual address va to a physical address under satp.
// It returns ok == false on a page fault: an invalid entry, a store to a
// page without write permission, or any walk step or final address that
// falls outside physical memory. The caller decides the trap cause.
func (t *Translator) Translate(satp, va uint32, access Access) (pa uint32, ok bool) {
	if satp&SatpModeSv32 == 0 {
		return va, t.memory.InBounds(uint64(va))
	}

	vpn1 := uint64(va>>22) & 0x3FF
	vpn0 := uint64(va>>12) & 0x3FF
	offset := uint64(va) & (PageSize - 1)

	root := uint64(satp&SatpPPNMask) << PageShift
	pte1, ok := t.readPTE(root + vpn1*pteSize)
	if !ok || pte1&PteV == 0 {
		return 0, false
	}

	if pte1&PteXWR != 0 {
		// Megapage leaf: PPN[1] selects a 4 MiB frame.
		if access == AccessStore && pte1&PteW == 0 {
			return 0, false
		}
		ppn1 := uint64(pte1 >> 20)
		return t.resolve(ppn1<<MegapageShift | uint64(va)&(1<<MegapageShift-1))
	}

	table0 := uint64(pte1>>10) << PageShift
	pte0, ok := t.readPTE(table0 + vpn0*pteSize)
	if !ok || pte0&PteV == 0 {
		return 0, false
	}
	if access == AccessStore && pte0&PteW == 0 {
		return 0, false
	}

	return t.resolve(uint64(pte0>>10)<<PageShift | offset)
}

func (t *Translator) readPTE(addr uint64) (uint32, bool) {
	if !t.memory.InBounds(addr) {
		return 0, false
	}
	return t.memory.words[addr>>2], true
}

func (t *Translator) resolve(pa uint64) (uint32, bool) {
	if !t.memory.InBounds(pa) {
		return 0, false
	}
	return uint32(pa), true
}
