package monitor_test

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/chzyer/readline"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/machine"
	"github.com/sarchlab/rvsim/monitor"
	"github.com/sarchlab/rvsim/timing/profiler"
	"github.com/sarchlab/rvsim/translate"
)

const program = `
_start:
    addi a1, a0, 5
    addi a2, a1, 1
    add  t0, a0, a0
    add  t0, t0, t0
    sw   a2, 0x100(t0)
`

// scriptReader replays lines, then reports end of input.
type scriptReader struct {
	lines   []string
	errs    map[int]error
	prompts []string
	n       int
}

func (r *scriptReader) SetPrompt(p string) {
	r.prompts = append(r.prompts, p)
}

func (r *scriptReader) Readline() (string, error) {
	defer func() { r.n++ }()
	if err, ok := r.errs[r.n]; ok {
		return "", err
	}
	if r.n >= len(r.lines) {
		return "", io.EOF
	}
	return r.lines[r.n], nil
}

var _ = Describe("Monitor", func() {
	var (
		ctx context.Context
		m   *machine.Machine
		p   *profiler.Profiler
		out *bytes.Buffer
		mon *monitor.Monitor
	)

	BeforeEach(func() {
		translate.SetLanguages("en-US")
		ctx = context.Background()

		prog, err := loader.LoadAssembly(strings.NewReader(program))
		Expect(err).NotTo(HaveOccurred())

		cfg := machine.DefaultConfig()
		cfg.Cores = 2
		p = profiler.New(2)
		m, err = machine.New(cfg, prog, machine.WithObserver(p))
		Expect(err).NotTo(HaveOccurred())

		out = &bytes.Buffer{}
		mon = monitor.New(m, out, monitor.WithProfiler(p))
	})

	It("should step the machine", func() {
		Expect(mon.Exec(ctx, "step")).To(Succeed())
		Expect(m.Ticks()).To(Equal(uint64(1)))
		Expect(out.String()).To(ContainSubstring("1 ticks"))
		Expect(out.String()).To(ContainSubstring("core 1  pc 1  running  addi a2, a1, 1"))

		Expect(mon.Exec(ctx, "step 2")).To(Succeed())
		Expect(m.Ticks()).To(Equal(uint64(3)))
		Expect(mon.Prompt()).To(Equal("[3] > "))
	})

	It("should run until every core halts", func() {
		Expect(mon.Exec(ctx, "run")).To(Succeed())
		Expect(m.AllHalted()).To(BeTrue())
		Expect(out.String()).To(ContainSubstring("all cores halted"))
		Expect(m.Memory().Read32(0x100)).To(Equal(uint32(6)))
	})

	It("should mark changed registers", func() {
		Expect(mon.Exec(ctx, "regs 1")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("  a0 0x00000001 "))
		Expect(out.String()).NotTo(ContainSubstring("*"))

		out.Reset()
		Expect(mon.Exec(ctx, "step")).To(Succeed())
		out.Reset()
		Expect(mon.Exec(ctx, "regs 1")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("  a1 0x00000006*"))
		Expect(out.String()).To(ContainSubstring("  pc 0x00000001*"))
		Expect(out.String()).To(ContainSubstring("  a0 0x00000001 "))
	})

	It("should highlight changed registers with color", func() {
		mon = monitor.New(m, out, monitor.WithColor(true))
		Expect(mon.Exec(ctx, "regs")).To(Succeed())
		Expect(mon.Exec(ctx, "step")).To(Succeed())
		out.Reset()

		Expect(mon.Exec(ctx, "regs")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("\x1b["))
		Expect(out.String()).NotTo(ContainSubstring("*"))
	})

	It("should dump CSRs", func() {
		Expect(mon.Exec(ctx, "halt 0")).To(Succeed())
		Expect(mon.Exec(ctx, "csrs 0")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("halt 0x00000001"))
		Expect(out.String()).To(ContainSubstring("reservation 0xffffffff"))
	})

	It("should dump memory", func() {
		Expect(mon.Exec(ctx, "run")).To(Succeed())
		out.Reset()

		Expect(mon.Exec(ctx, "mem 0x100 6")).To(Succeed())
		Expect(out.String()).To(Equal(
			"00000100: 00000006 00000007 00000000 00000000\n" +
				"00000110: 00000000 00000000\n"))
	})

	It("should post input", func() {
		Expect(mon.Exec(ctx, "key 65")).To(Succeed())
		Expect(mon.Exec(ctx, "mouse 1 2")).To(MatchError(ContainSubstring("input queue full")))

		Expect(mon.Exec(ctx, "step")).To(Succeed())
		Expect(m.Memory().Read32(emu.ScratchKeyboard)).To(Equal(uint32(65) | emu.InputPressed<<16))

		Expect(mon.Exec(ctx, "touch 10 20 2")).To(Succeed())
		Expect(mon.Exec(ctx, "step")).To(Succeed())
		Expect(m.Memory().Read32(emu.ScratchMouseX)).To(Equal(uint32(10)))
		Expect(m.Memory().Read32(emu.ScratchMouseY)).To(Equal(uint32(20)))
		Expect(m.Memory().Read32(emu.ScratchMouseFlags)).To(Equal(emu.InputReleased))
	})

	It("should halt, resume and reset", func() {
		Expect(mon.Exec(ctx, "halt 1")).To(Succeed())
		Expect(mon.Exec(ctx, "step")).To(Succeed())
		Expect(m.Core(1).State().PC).To(BeZero())

		Expect(mon.Exec(ctx, "resume 1")).To(Succeed())
		Expect(mon.Exec(ctx, "step")).To(Succeed())
		Expect(m.Core(1).State().PC).To(Equal(uint32(1)))

		Expect(mon.Exec(ctx, "reset")).To(Succeed())
		Expect(m.Ticks()).To(BeZero())
		Expect(p.Total().Instructions).To(BeZero())
		Expect(out.String()).To(ContainSubstring("machine reset"))
	})

	It("should print stats", func() {
		Expect(mon.Exec(ctx, "run")).To(Succeed())
		out.Reset()

		Expect(mon.Exec(ctx, "stats")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("6 ticks, 10 instructions, 0 traps"))
		Expect(out.String()).To(ContainSubstring("core 0: halted"))
		Expect(out.String()).To(ContainSubstring("cycles"))
		Expect(out.String()).To(ContainSubstring("cache hits 0, misses 1"))
	})

	It("should reject bad commands", func() {
		Expect(mon.Exec(ctx, "")).To(Succeed())
		Expect(mon.Exec(ctx, "frobnicate")).To(MatchError(`unknown command "frobnicate"`))
		Expect(mon.Exec(ctx, "step x")).To(MatchError(`bad number "x"`))
		Expect(mon.Exec(ctx, "regs 2")).To(MatchError("no such core 2"))
		Expect(mon.Exec(ctx, "halt")).To(MatchError("usage: halt core"))
		Expect(mon.Exec(ctx, "mem")).To(MatchError("usage: mem addr [count]"))
		Expect(mon.Exec(ctx, "quit")).To(MatchError(monitor.ErrQuit))
	})

	It("should list commands", func() {
		Expect(mon.Exec(ctx, "help")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("  step [n]\n"))
		Expect(out.String()).To(ContainSubstring("  touch x y [flags]\n"))
		Expect(out.String()).NotTo(ContainSubstring("exit"))
	})

	Describe("Serve", func() {
		It("should execute lines until end of input", func() {
			r := &scriptReader{lines: []string{"step", "bogus", "step"}}
			Expect(mon.Serve(ctx, r)).To(Succeed())

			Expect(m.Ticks()).To(Equal(uint64(2)))
			Expect(out.String()).To(ContainSubstring(`error: unknown command "bogus"`))
			Expect(r.prompts[0]).To(Equal("[0] > "))
			Expect(r.prompts[2]).To(Equal("[1] > "))
		})

		It("should stop at quit and survive interrupts", func() {
			r := &scriptReader{
				lines: []string{"", "step", "quit", "step"},
				errs:  map[int]error{0: readline.ErrInterrupt},
			}
			Expect(mon.Serve(ctx, r)).To(Succeed())
			Expect(m.Ticks()).To(Equal(uint64(1)))
		})

		It("should stop when the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			Expect(mon.Serve(cctx, &scriptReader{lines: []string{"step"}})).To(MatchError(context.Canceled))
			Expect(m.Ticks()).To(BeZero())
		})
	})
})
