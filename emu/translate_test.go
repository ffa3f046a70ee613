package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
)

const (
	testMemSize   = 0x01000000
	rootTablePPN  = 0x100
	leafTablePPN  = 0x101
	dataPagePPN   = 0x200
	mappedVA      = 0x00400000
	megapageVA    = 0x00C00000
	unmappedVA    = 0x00800000
	outOfRangeVA  = 0x01400000
	readOnlyVA    = 0x00401000
	readOnlyPPN   = 0x201
	testSatpSv32  = emu.SatpModeSv32 | rootTablePPN
	rootTableAddr = rootTablePPN << emu.PageShift
	leafTableAddr = leafTablePPN << emu.PageShift
)

// buildPageTables maps:
//
//	0x00400000 -> 0x00200000 (4 KiB, RW)
//	0x00401000 -> 0x00201000 (4 KiB, R)
//	0x00C00000 -> 0x00800000 (4 MiB, R)
//	0x01400000 -> a 4 KiB page past the end of memory
func buildPageTables(m *emu.Memory) {
	m.Write32(rootTableAddr+1*4, emu.MakePTE(leafTablePPN, 0))
	m.Write32(leafTableAddr+0*4, emu.MakePTE(dataPagePPN, emu.PteR|emu.PteW))
	m.Write32(leafTableAddr+1*4, emu.MakePTE(readOnlyPPN, emu.PteR))

	m.Write32(rootTableAddr+3*4, emu.MakePTE(2<<10, emu.PteR))

	m.Write32(rootTableAddr+5*4, emu.MakePTE(leafTablePPN+1, 0))
	m.Write32(leafTableAddr+emu.PageSize, emu.MakePTE(0x10000, emu.PteR|emu.PteW))
}

var _ = Describe("Translator", func() {
	var (
		m  *emu.Memory
		tr *emu.Translator
	)

	BeforeEach(func() {
		m = emu.NewMemory(testMemSize)
		tr = emu.NewTranslator(m)
		buildPageTables(m)
	})

	It("should set the valid bit in MakePTE", func() {
		Expect(emu.MakePTE(0x200, emu.PteR)).To(Equal(uint32(0x200<<10 | 0x3)))
	})

	Context("bare mode", func() {
		It("should pass addresses through unchanged", func() {
			pa, ok := tr.Translate(0, 0x1234, emu.AccessLoad)
			Expect(ok).To(BeTrue())
			Expect(pa).To(Equal(uint32(0x1234)))
		})

		It("should fault outside physical memory", func() {
			_, ok := tr.Translate(0, testMemSize, emu.AccessStore)
			Expect(ok).To(BeFalse())
		})

		It("should ignore the PPN field", func() {
			pa, ok := tr.Translate(rootTablePPN, 0x40, emu.AccessLoad)
			Expect(ok).To(BeTrue())
			Expect(pa).To(Equal(uint32(0x40)))
		})
	})

	Context("Sv32", func() {
		It("should walk two levels to a 4 KiB page", func() {
			pa, ok := tr.Translate(testSatpSv32, mappedVA+0x10, emu.AccessLoad)
			Expect(ok).To(BeTrue())
			Expect(pa).To(Equal(uint32(dataPagePPN<<emu.PageShift + 0x10)))
		})

		It("should allow stores to writable pages", func() {
			pa, ok := tr.Translate(testSatpSv32, mappedVA+0xFFC, emu.AccessStore)
			Expect(ok).To(BeTrue())
			Expect(pa).To(Equal(uint32(dataPagePPN<<emu.PageShift + 0xFFC)))
		})

		It("should fault on an invalid first-level entry", func() {
			_, ok := tr.Translate(testSatpSv32, unmappedVA, emu.AccessLoad)
			Expect(ok).To(BeFalse())
		})

		It("should fault on an invalid second-level entry", func() {
			_, ok := tr.Translate(testSatpSv32, mappedVA+2*emu.PageSize, emu.AccessLoad)
			Expect(ok).To(BeFalse())
		})

		It("should fault on stores to read-only pages but allow loads", func() {
			_, ok := tr.Translate(testSatpSv32, readOnlyVA, emu.AccessStore)
			Expect(ok).To(BeFalse())

			pa, ok := tr.Translate(testSatpSv32, readOnlyVA+4, emu.AccessLoad)
			Expect(ok).To(BeTrue())
			Expect(pa).To(Equal(uint32(readOnlyPPN<<emu.PageShift + 4)))
		})

		It("should resolve megapages", func() {
			pa, ok := tr.Translate(testSatpSv32, megapageVA+0x12345, emu.AccessLoad)
			Expect(ok).To(BeTrue())
			Expect(pa).To(Equal(uint32(0x00800000 + 0x12345)))
		})

		It("should fault on stores to read-only megapages", func() {
			_, ok := tr.Translate(testSatpSv32, megapageVA, emu.AccessStore)
			Expect(ok).To(BeFalse())
		})

		It("should fault when the final address is outside memory", func() {
			_, ok := tr.Translate(testSatpSv32, outOfRangeVA, emu.AccessLoad)
			Expect(ok).To(BeFalse())
		})

		It("should fault when the root table is outside memory", func() {
			_, ok := tr.Translate(emu.SatpModeSv32|0x3FFFFF, mappedVA, emu.AccessLoad)
			Expect(ok).To(BeFalse())
		})
	})

	It("should map access kinds to page fault causes", func() {
		Expect(emu.AccessLoad.FaultCause()).To(Equal(emu.CauseLoadPageFault))
		Expect(emu.AccessStore.FaultCause()).To(Equal(emu.CauseStorePageFault))
		Expect(emu.AccessFetch.FaultCause()).To(Equal(emu.CauseInstructionPageFault))
	})
})
