package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
)

var _ = Describe("TrapController", func() {
	var (
		s    *emu.CoreState
		trap *emu.TrapController
	)

	BeforeEach(func() {
		s = emu.NewCoreState()
		s.WriteCSR(emu.CSRStvec, 40)
		trap = emu.NewTrapController(s)
	})

	It("should record the trap and jump to STVEC", func() {
		next := trap.Enter(emu.CauseUserEcall, 0, 7)

		Expect(next).To(Equal(uint32(40)))
		Expect(s.ReadCSR(emu.CSRSepc)).To(Equal(uint32(7)))
		Expect(s.ReadCSR(emu.CSRScause)).To(Equal(uint32(8)))
		Expect(s.ReadCSR(emu.CSRStval)).To(Equal(uint32(0)))
		Expect(s.Mode()).To(Equal(emu.ModeSupervisor))
	})

	It("should stash SIE in SPIE and clear SIE", func() {
		s.WriteCSR(emu.CSRSstatus, emu.SstatusSIE)

		trap.Enter(emu.CauseBreakpoint, 3, 3)

		status := s.ReadCSR(emu.CSRSstatus)
		Expect(status & emu.SstatusSIE).To(BeZero())
		Expect(status & emu.SstatusSPIE).NotTo(BeZero())
		Expect(status & emu.SstatusSPP).To(BeZero())
	})

	It("should record supervisor mode in SPP", func() {
		s.WriteCSR(emu.CSRMode, emu.ModeSupervisor)

		trap.Enter(emu.CauseSupervisorEcall, 0, 1)

		Expect(s.ReadCSR(emu.CSRSstatus) & emu.SstatusSPP).NotTo(BeZero())
	})

	DescribeTable("round trip restores SIE and mode",
		func(mode uint32, sie bool) {
			s.WriteCSR(emu.CSRMode, mode)
			if sie {
				s.WriteCSR(emu.CSRSstatus, emu.SstatusSIE)
			}
			before := s.ReadCSR(emu.CSRSstatus)

			trap.Enter(emu.CauseIllegalInstruction, 0xFFFFFFFF, 21)
			next := trap.Return()

			Expect(next).To(Equal(uint32(21)))
			Expect(s.Mode()).To(Equal(mode))
			Expect(s.ReadCSR(emu.CSRSstatus)).To(Equal(before))
		},
		Entry("user, interrupts off", emu.ModeUser, false),
		Entry("user, interrupts on", emu.ModeUser, true),
		Entry("supervisor, interrupts off", emu.ModeSupervisor, false),
		Entry("supervisor, interrupts on", emu.ModeSupervisor, true),
	)

	It("should name causes", func() {
		Expect(emu.CauseLoadPageFault.String()).To(Equal("load page fault"))
		Expect(emu.Cause(99).String()).To(Equal("unknown cause"))
	})
})
