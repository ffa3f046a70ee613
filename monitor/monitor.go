// Package monitor implements an interactive command loop over a machine.
package monitor

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/machine"
	"github.com/sarchlab/rvsim/timing/profiler"
	"github.com/sarchlab/rvsim/translate"
)

var f = translate.From

// ErrQuit is returned by Exec for the quit command.
var ErrQuit = errors.New("quit")

// DefaultRunTicks bounds "run" without an argument.
const DefaultRunTicks = 1_000_000

// LineReader supplies command lines. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
}

type prompter interface {
	SetPrompt(string)
}

type command struct {
	usage string
	run   func(ctx context.Context, args []string) error
}

// Option is a functional option for configuring the Monitor.
type Option func(*Monitor)

// WithColor enables ansi highlighting of changed registers.
func WithColor(color bool) Option {
	return func(mon *Monitor) {
		mon.color = color
	}
}

// WithProfiler adds timing estimates to the stats command.
func WithProfiler(p *profiler.Profiler) Option {
	return func(mon *Monitor) {
		mon.profiler = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger logr.Logger) Option {
	return func(mon *Monitor) {
		mon.logger = logger
	}
}

// Monitor executes monitor commands against a machine.
type Monitor struct {
	machine  *machine.Machine
	out      io.Writer
	color    bool
	profiler *profiler.Profiler
	logger   logr.Logger
	decoder  *insts.Decoder

	// Register and CSR values at the last dump, per core.
	lastRegs map[int][]uint32
	lastCSRs map[int][]uint32

	commands map[string]command
}

// New creates a monitor writing to out.
func New(m *machine.Machine, out io.Writer, opts ...Option) *Monitor {
	mon := &Monitor{
		machine:  m,
		out:      out,
		logger:   logr.Discard(),
		decoder:  insts.NewDecoder(),
		lastRegs: make(map[int][]uint32),
		lastCSRs: make(map[int][]uint32),
	}

	for _, opt := range opts {
		opt(mon)
	}

	mon.commands = map[string]command{
		"step":   {"step [n]", mon.cmdStep},
		"run":    {"run [n]", mon.cmdRun},
		"regs":   {"regs [core]", mon.cmdRegs},
		"csrs":   {"csrs [core]", mon.cmdCSRs},
		"mem":    {"mem addr [count]", mon.cmdMem},
		"key":    {"key code [flags]", mon.cmdKey},
		"mouse":  {"mouse x y [flags]", mon.pointer(emu.DeviceMouse)},
		"touch":  {"touch x y [flags]", mon.pointer(emu.DeviceTouch)},
		"halt":   {"halt core", mon.cmdHalt},
		"resume": {"resume core", mon.cmdResume},
		"reset":  {"reset", mon.cmdReset},
		"stats":  {"stats", mon.cmdStats},
		"help":   {"help", mon.cmdHelp},
		"quit":   {"quit", func(context.Context, []string) error { return ErrQuit }},
	}
	mon.commands["exit"] = mon.commands["quit"]

	return mon
}

// Prompt returns the prompt for the next command.
func (mon *Monitor) Prompt() string {
	return fmt.Sprintf("[%d] > ", mon.machine.Ticks())
}

// Exec runs one command line. Empty lines do nothing.
func (mon *Monitor) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd, ok := mon.commands[strings.ToLower(fields[0])]
	if !ok {
		return errors.New(f("unknown command %q", fields[0]))
	}

	mon.logger.V(1).Info("monitor command", "line", line)
	return cmd.run(ctx, fields[1:])
}

// Serve reads and executes commands until quit, end of input or context
// cancellation. Command errors are printed and do not stop the loop.
func (mon *Monitor) Serve(ctx context.Context, lines LineReader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p, ok := lines.(prompter); ok {
			p.SetPrompt(mon.Prompt())
		}

		line, err := lines.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read command")
		}

		err = mon.Exec(ctx, line)
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(mon.out, "error: %v\n", err)
		}
	}
}

func (mon *Monitor) usage(name string) error {
	return errors.New(f("usage: %s", mon.commands[name].usage))
}

func parseNumber(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.New(f("bad number %q", s))
	}
	return uint32(v), nil
}

// optNumber parses args[i] if present.
func optNumber(args []string, i int, def uint32) (uint32, error) {
	if i >= len(args) {
		return def, nil
	}
	return parseNumber(args[i])
}

func (mon *Monitor) core(args []string, i int) (int, error) {
	n, err := optNumber(args, i, 0)
	if err != nil {
		return 0, err
	}
	if int(n) >= mon.machine.NumCores() {
		return 0, errors.New(f("no such core %d", n))
	}
	return int(n), nil
}

func (mon *Monitor) cmdStep(ctx context.Context, args []string) error {
	n, err := optNumber(args, 0, 1)
	if err != nil {
		return err
	}
	return mon.tick(ctx, uint64(n))
}

func (mon *Monitor) cmdRun(ctx context.Context, args []string) error {
	n, err := optNumber(args, 0, DefaultRunTicks)
	if err != nil {
		return err
	}
	return mon.tick(ctx, uint64(n))
}

func (mon *Monitor) tick(ctx context.Context, n uint64) error {
	done, err := mon.machine.Run(ctx, n)
	fmt.Fprintln(mon.out, f("%d ticks", done))
	if err != nil {
		return err
	}

	for i := 0; i < mon.machine.NumCores(); i++ {
		fmt.Fprintln(mon.out, mon.coreLine(i))
	}
	if mon.machine.AllHalted() {
		fmt.Fprintln(mon.out, f("all cores halted"))
	}
	return nil
}

// coreLine describes a core and the instruction at its PC.
func (mon *Monitor) coreLine(i int) string {
	s := mon.machine.Core(i).State()
	text := mon.machine.Program().Text

	status := f("running")
	if s.Halted() {
		status = f("halted")
	}

	next := ""
	if uint64(s.PC) < uint64(len(text)) {
		next = mon.decoder.Decode(text[s.PC]).String()
	}

	return fmt.Sprintf("%s  %s  %-8s %s", f("core %d", i), f("pc %d", s.PC), status, next)
}

func (mon *Monitor) cmdRegs(_ context.Context, args []string) error {
	i, err := mon.core(args, 0)
	if err != nil {
		return err
	}

	s := mon.machine.Core(i).State()
	cur := append(append([]uint32(nil), s.X[:]...), s.PC)

	last, seen := mon.lastRegs[i]
	changes := make([]change, len(cur))
	for r, v := range cur {
		name := "pc"
		if r < 32 {
			name = insts.RegName(uint8(r))
		}
		old := v
		if seen {
			old = last[r]
		}
		changes[r] = change{name: name, old: old, new: v}
	}
	mon.lastRegs[i] = cur

	fmt.Fprint(mon.out, renderColumns(changes, 4, mon.color))
	return nil
}

func (mon *Monitor) cmdCSRs(_ context.Context, args []string) error {
	i, err := mon.core(args, 0)
	if err != nil {
		return err
	}

	s := mon.machine.Core(i).State()
	cur := append([]uint32(nil), s.CSR[:]...)

	last, seen := mon.lastCSRs[i]
	changes := make([]change, len(cur))
	for c, v := range cur {
		old := v
		if seen {
			old = last[c]
		}
		changes[c] = change{name: emu.CSR(c).String(), old: old, new: v}
	}
	mon.lastCSRs[i] = cur

	fmt.Fprint(mon.out, renderColumns(changes, 2, mon.color))
	return nil
}

func (mon *Monitor) cmdMem(_ context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return mon.usage("mem")
	}
	addr, err := parseNumber(args[0])
	if err != nil {
		return err
	}
	count, err := optNumber(args, 1, 4)
	if err != nil {
		return err
	}

	addr &^= 3
	mem := mon.machine.Memory()
	for i := uint32(0); i < count; i++ {
		a := addr + i*4
		if i%4 == 0 {
			if i > 0 {
				fmt.Fprintln(mon.out)
			}
			fmt.Fprintf(mon.out, "%08x:", a)
		}
		fmt.Fprintf(mon.out, " %08x", mem.Read32(a))
	}
	if count > 0 {
		fmt.Fprintln(mon.out)
	}
	return nil
}

func (mon *Monitor) post(ev emu.InputEvent) error {
	if !mon.machine.PostInput(ev) {
		return errors.New(f("input queue full"))
	}
	fmt.Fprintln(mon.out, f("input posted"))
	return nil
}

func (mon *Monitor) cmdKey(_ context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return mon.usage("key")
	}
	code, err := parseNumber(args[0])
	if err != nil {
		return err
	}
	flags, err := optNumber(args, 1, emu.InputPressed)
	if err != nil {
		return err
	}
	return mon.post(emu.InputEvent{Type: emu.DeviceKeyboard, Key: code, Flags: flags})
}

func (mon *Monitor) pointer(dev emu.DeviceType) func(context.Context, []string) error {
	return func(_ context.Context, args []string) error {
		if len(args) < 2 || len(args) > 3 {
			return mon.usage(dev.String())
		}
		x, err := parseNumber(args[0])
		if err != nil {
			return err
		}
		y, err := parseNumber(args[1])
		if err != nil {
			return err
		}
		flags, err := optNumber(args, 2, emu.InputPressed)
		if err != nil {
			return err
		}
		return mon.post(emu.InputEvent{Type: dev, X: x, Y: y, Flags: flags})
	}
}

func (mon *Monitor) cmdHalt(_ context.Context, args []string) error {
	if len(args) != 1 {
		return mon.usage("halt")
	}
	i, err := mon.core(args, 0)
	if err != nil {
		return err
	}
	if err := mon.machine.Halt(i); err != nil {
		return err
	}
	fmt.Fprintln(mon.out, f("core %d halted", i))
	return nil
}

func (mon *Monitor) cmdResume(_ context.Context, args []string) error {
	if len(args) != 1 {
		return mon.usage("resume")
	}
	i, err := mon.core(args, 0)
	if err != nil {
		return err
	}
	if err := mon.machine.Resume(i); err != nil {
		return err
	}
	fmt.Fprintln(mon.out, f("core %d resumed", i))
	return nil
}

func (mon *Monitor) cmdReset(context.Context, []string) error {
	mon.machine.Reset()
	if mon.profiler != nil {
		mon.profiler.Reset()
	}
	clear(mon.lastRegs)
	clear(mon.lastCSRs)
	fmt.Fprintln(mon.out, f("machine reset"))
	return nil
}

func (mon *Monitor) cmdStats(context.Context, []string) error {
	WriteStats(mon.out, mon.machine.Stats(), mon.profiler)
	return nil
}

// WriteStats prints the machine counters and, if p is not nil, the timing
// estimates.
func WriteStats(w io.Writer, st machine.Stats, p *profiler.Profiler) {
	fmt.Fprintf(w, "%s, %s, %s\n", f("%d ticks", st.Ticks), f("%d instructions", st.Instructions), f("%d traps", st.Traps))

	for i, cs := range st.Cores {
		status := f("running")
		if cs.Halted {
			status = f("halted")
		}
		fmt.Fprintf(w, "  %s: %s, %s, %s, %s\n", f("core %d", i), status, f("pc %d", cs.PC),
			f("%d instructions", cs.Instructions), f("%d traps", cs.Traps))

		if p == nil || p.Core(i) == nil {
			continue
		}
		ps := p.Core(i).Stats()
		fmt.Fprintf(w, "    %s, %s, %s, %s\n", f("%d cycles", ps.Cycles), f("IPC %.3f", ps.IPC()),
			f("cache hits %d, misses %d", ps.Cache.Hits, ps.Cache.Misses), f("stalls %d, flushes %d", ps.Stalls, ps.Flushes))
	}

	if p != nil {
		total := p.Total()
		fmt.Fprintf(w, "%s, %s\n", f("%d cycles", total.Cycles), f("IPC %.3f", total.IPC()))
	}
}

func (mon *Monitor) cmdHelp(context.Context, []string) error {
	names := make([]string, 0, len(mon.commands))
	for name := range mon.commands {
		if name != "exit" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	fmt.Fprintln(mon.out, f("commands:"))
	for _, name := range names {
		fmt.Fprintf(mon.out, "  %s\n", mon.commands[name].usage)
	}
	return nil
}
