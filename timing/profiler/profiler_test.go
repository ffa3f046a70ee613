package profiler_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/machine"
	"github.com/sarchlab/rvsim/timing/latency"
	"github.com/sarchlab/rvsim/timing/profiler"
)

func profile(cores int, src string, opts ...profiler.Option) (*machine.Machine, *profiler.Profiler) {
	prog, err := loader.LoadAssembly(strings.NewReader(src))
	Expect(err).NotTo(HaveOccurred())

	cfg := machine.DefaultConfig()
	cfg.Cores = cores
	p := profiler.New(cores, opts...)

	m, err := machine.New(cfg, prog, machine.WithObserver(p))
	Expect(err).NotTo(HaveOccurred())

	_, err = m.Run(context.Background(), 1000)
	Expect(err).NotTo(HaveOccurred())
	Expect(m.AllHalted()).To(BeTrue())
	return m, p
}

var _ = Describe("Profiler", func() {
	It("should charge ALU instructions", func() {
		_, p := profile(1, "addi a1, zero, 1\nadd a2, a1, a1\nsub a3, a2, a1")

		st := p.Core(0).Stats()
		Expect(st.Instructions).To(Equal(uint64(3)))
		Expect(st.Cycles).To(Equal(uint64(3)))
		Expect(st.IPC()).To(Equal(1.0))
		Expect(st.Classes[latency.ClassALU]).To(Equal(uint64(3)))
	})

	It("should charge cache misses as stalls", func() {
		_, p := profile(1, strings.Join([]string{
			".data 0x400",
			".word 5, 6",
			".text",
			"_start:",
			"lw a1, 0x400(zero)",
			"lw a2, 0x404(zero)",
		}, "\n"))

		st := p.Core(0).Stats()
		Expect(st.Cycles).To(Equal(uint64(3 + 40 + 3)))
		Expect(st.Stalls).To(Equal(uint64(40)))
		Expect(st.Cache.Misses).To(Equal(uint64(1)))
		Expect(st.Cache.Hits).To(Equal(uint64(1)))
	})

	It("should charge taken branches", func() {
		_, p := profile(1, "addi t0, zero, 2\nloop: addi t0, t0, -1\nbnez t0, loop")

		st := p.Core(0).Stats()
		Expect(st.Instructions).To(Equal(uint64(5)))
		Expect(st.Flushes).To(Equal(uint64(1)))
		Expect(st.Cycles).To(Equal(uint64(5 + 2)))
		Expect(st.Classes[latency.ClassBranch]).To(Equal(uint64(2)))
	})

	It("should charge traps", func() {
		_, p := profile(1, strings.Join([]string{
			"    la   t0, handler",
			"    csrw stvec, t0",
			"    ecall",
			"    j    end",
			"handler:",
			"    csrr t1, sepc",
			"    addi t1, t1, 1",
			"    csrw sepc, t1",
			"    sret",
			"end:",
		}, "\n"))

		st := p.Core(0).Stats()
		Expect(st.Traps).To(Equal(uint64(1)))
		Expect(st.Flushes).To(Equal(uint64(1)))
		Expect(st.Instructions).To(Equal(uint64(7)))
		Expect(st.Classes[latency.ClassCSR]).To(Equal(uint64(3)))
		Expect(st.Classes[latency.ClassSystem]).To(Equal(uint64(1)))
		Expect(st.Cycles).To(Equal(uint64(1 + 2 + 8 + 2 + 1 + 2 + 1 + 1)))
	})

	It("should use custom latencies", func() {
		tc := latency.DefaultTimingConfig()
		tc.ALULatency = 4
		tc.MemoryLatency = 100

		_, p := profile(1, "addi a1, zero, 0x100\nsw a1, 0(a1)", profiler.WithTimingConfig(tc))

		st := p.Core(0).Stats()
		Expect(st.Cycles).To(Equal(uint64(4 + 1 + 100)))
		Expect(p.Table().Config().ALULatency).To(Equal(uint64(4)))
	})

	It("should keep a private cache per core", func() {
		m, p := profile(2, "lw a1, 0x400(zero)\nlw a1, 0x400(zero)")

		Expect(p.NumCores()).To(Equal(2))
		for i := 0; i < 2; i++ {
			st := p.Core(i).Stats()
			Expect(st.Cache.Misses).To(Equal(uint64(1)))
			Expect(st.Cache.Hits).To(Equal(uint64(1)))
		}

		total := p.Total()
		Expect(total.Instructions).To(Equal(uint64(4)))
		Expect(total.Cache.Misses).To(Equal(uint64(2)))
		Expect(total.Cycles).To(Equal(p.Core(0).Stats().Cycles))
		Expect(m.Stats().Instructions).To(Equal(total.Instructions))
	})

	It("should not change architectural results", func() {
		src := "addi a1, a0, 7\nmul a2, a1, a1\nsw a2, 0x200(zero)"
		m, _ := profile(1, src)

		prog, err := loader.LoadAssembly(strings.NewReader(src))
		Expect(err).NotTo(HaveOccurred())
		plain, err := machine.New(machine.DefaultConfig(), prog)
		Expect(err).NotTo(HaveOccurred())
		_, err = plain.Run(context.Background(), 1000)
		Expect(err).NotTo(HaveOccurred())

		Expect(m.States()).To(Equal(plain.States()))
		Expect(m.Memory().Read32(0x200)).To(Equal(uint32(49)))
	})

	It("should ignore events for unknown cores and reset", func() {
		p := profiler.New(1)
		p.InstructionRetired(3, 0, insts.NewDecoder().Decode(insts.NOP()))
		p.MemoryAccessed(-1, 0, false)
		p.TrapTaken(9, emu.CauseBreakpoint, 0)
		Expect(p.Core(3)).To(BeNil())

		p.InstructionRetired(0, 0, insts.NewDecoder().Decode(insts.NOP()))
		Expect(p.Total().Instructions).To(Equal(uint64(1)))

		p.Reset()
		Expect(p.Total()).To(Equal(profiler.Stats{}))
	})
})
