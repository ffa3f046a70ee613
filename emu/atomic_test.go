package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

var _ = Describe("AtomicUnit", func() {
	const addr = 0x100

	var (
		s  *emu.CoreState
		m  *emu.Memory
		au *emu.AtomicUnit
	)

	BeforeEach(func() {
		s = emu.NewCoreState()
		m = emu.NewMemory(0x1000)
		au = emu.NewAtomicUnit(s, m)
	})

	Describe("LR/SC", func() {
		It("should succeed exactly once after a reservation", func() {
			m.Write32(addr, 5)
			s.WriteReg(2, 9)

			au.LoadReserved(1, addr)
			Expect(s.ReadReg(1)).To(Equal(uint32(5)))
			Expect(s.ReadCSR(emu.CSRReservation)).To(Equal(uint32(addr)))

			Expect(au.StoreConditional(3, 2, addr)).To(BeTrue())
			Expect(s.ReadReg(3)).To(Equal(uint32(0)))
			Expect(m.Read32(addr)).To(Equal(uint32(9)))

			s.WriteReg(2, 10)
			Expect(au.StoreConditional(3, 2, addr)).To(BeFalse())
			Expect(s.ReadReg(3)).To(Equal(uint32(1)))
			Expect(m.Read32(addr)).To(Equal(uint32(9)))
		})

		It("should fail without a reservation", func() {
			s.WriteReg(2, 9)
			Expect(au.StoreConditional(3, 2, addr)).To(BeFalse())
			Expect(s.ReadReg(3)).To(Equal(uint32(1)))
			Expect(m.Read32(addr)).To(Equal(uint32(0)))
		})

		It("should fail and drop the reservation on a different address", func() {
			au.LoadReserved(1, addr)
			Expect(au.StoreConditional(3, 2, addr+4)).To(BeFalse())
			Expect(s.ReadCSR(emu.CSRReservation)).To(Equal(emu.NoReservation))
			Expect(au.StoreConditional(3, 2, addr)).To(BeFalse())
		})
	})

	DescribeTable("read-modify-write",
		func(op insts.Op, old, src, want uint32) {
			m.Write32(addr, old)
			s.WriteReg(2, src)

			Expect(au.ReadModifyWrite(op, 1, 2, addr)).To(BeTrue())
			Expect(s.ReadReg(1)).To(Equal(old))
			Expect(m.Read32(addr)).To(Equal(want))
		},
		Entry("AMOSWAP", insts.OpAMOSWAPW, uint32(3), uint32(4), uint32(4)),
		Entry("AMOADD", insts.OpAMOADDW, uint32(3), uint32(4), uint32(7)),
		Entry("AMOXOR", insts.OpAMOXORW, uint32(0b1100), uint32(0b1010), uint32(0b0110)),
		Entry("AMOAND", insts.OpAMOANDW, uint32(0b1100), uint32(0b1010), uint32(0b1000)),
		Entry("AMOOR", insts.OpAMOORW, uint32(0b1100), uint32(0b1010), uint32(0b1110)),
		Entry("AMOMIN signed", insts.OpAMOMINW, uint32(0xFFFFFFFF), uint32(1), uint32(0xFFFFFFFF)),
		Entry("AMOMAX signed", insts.OpAMOMAXW, uint32(0xFFFFFFFF), uint32(1), uint32(1)),
		Entry("AMOMINU unsigned", insts.OpAMOMINUW, uint32(0xFFFFFFFF), uint32(1), uint32(1)),
		Entry("AMOMAXU unsigned", insts.OpAMOMAXUW, uint32(0xFFFFFFFF), uint32(1), uint32(0xFFFFFFFF)),
	)

	It("should store the source operand when rd equals rs2", func() {
		m.Write32(addr, 3)
		s.WriteReg(2, 4)

		au.ReadModifyWrite(insts.OpAMOADDW, 2, 2, addr)

		Expect(s.ReadReg(2)).To(Equal(uint32(3)))
		Expect(m.Read32(addr)).To(Equal(uint32(7)))
	})

	It("should reject non-AMO ops", func() {
		m.Write32(addr, 3)
		Expect(au.ReadModifyWrite(insts.OpADD, 1, 2, addr)).To(BeFalse())
		Expect(m.Read32(addr)).To(Equal(uint32(3)))
	})
})
