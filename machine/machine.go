// Package machine runs several RV32 cores in lockstep over one shared
// physical memory.
//
// A tick polls the MMIO input window, then lets every core execute exactly
// one instruction. Cores within a tick may run in parallel; the tick ends
// only after every core has finished its step.
package machine

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/loader"
)

var (
	// ErrNoSuchCore is returned for a core index outside the machine.
	ErrNoSuchCore = errors.New("no such core")

	// ErrStateLength is returned when a state record has the wrong size.
	ErrStateLength = errors.New("state record length mismatch")

	// ErrMemoryLength is returned when a memory image has the wrong size.
	ErrMemoryLength = errors.New("memory image length mismatch")
)

// Stats holds machine-wide counters.
type Stats struct {
	Ticks        uint64
	Polls        uint64
	Instructions uint64
	Traps        uint64
	Halted       int
	Cores        []CoreStats
}

// CoreStats holds the counters of one core.
type CoreStats struct {
	Instructions uint64
	Traps        uint64
	PC           uint32
	Halted       bool
}

// Option is a functional option for configuring the Machine.
type Option func(*Machine)

// WithLogger sets the logger shared by the machine and its cores.
func WithLogger(logger logr.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithObserver attaches an observer to every core. Poll traffic is
// reported as memory accesses of the poller core.
func WithObserver(o emu.Observer) Option {
	return func(m *Machine) {
		m.observer = o
	}
}

// Machine is a set of cores stepping in lockstep.
type Machine struct {
	config  Config
	program *loader.Program
	memory  *emu.Memory
	poller  *emu.Poller
	cores   []*emu.Emulator

	logger   logr.Logger
	observer emu.Observer

	ticks uint64
	polls uint64
}

// New builds a machine from a validated copy of cfg and loads prog into it.
func New(cfg *Config, prog *loader.Program, opts ...Option) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid machine config")
	}
	if prog == nil {
		return nil, errors.New("no program")
	}

	m := &Machine{
		config:  *cfg.Clone(),
		program: prog,
		memory:  emu.NewMemory(cfg.MemorySize),
		logger:  logr.Discard(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.poller = emu.NewPoller(m.memory)

	m.cores = make([]*emu.Emulator, cfg.Cores)
	for i := range m.cores {
		coreOpts := []emu.EmulatorOption{
			emu.WithCoreID(i),
			emu.WithLogger(m.logger),
		}
		if m.observer != nil {
			coreOpts = append(coreOpts, emu.WithObserver(m.observer))
		}
		m.cores[i] = emu.NewEmulator(m.memory, prog.Text, coreOpts...)
	}

	m.Reset()

	return m, nil
}

// Config returns a copy of the machine configuration.
func (m *Machine) Config() Config {
	return m.config
}

// Program returns the loaded program.
func (m *Machine) Program() *loader.Program {
	return m.program
}

// NumCores returns the number of cores.
func (m *Machine) NumCores() int {
	return len(m.cores)
}

// Core returns core i, or nil if there is no such core.
func (m *Machine) Core(i int) *emu.Emulator {
	if i < 0 || i >= len(m.cores) {
		return nil
	}
	return m.cores[i]
}

// Memory returns the shared physical memory.
func (m *Machine) Memory() *emu.Memory {
	return m.memory
}

// Ticks returns the number of ticks executed since the last reset.
func (m *Machine) Ticks() uint64 {
	return m.ticks
}

// Reset reloads the program image, clears every core and restarts it at the
// program entry with a0 holding the core index.
func (m *Machine) Reset() {
	m.memory.Clear()
	m.program.LoadInto(m.memory)

	for i, c := range m.cores {
		c.Reset()
		c.State().PC = m.program.Entry
		c.State().WriteReg(10, uint32(i))
	}

	m.ticks = 0
	m.polls = 0
}

// AllHalted reports whether every core is halted.
func (m *Machine) AllHalted() bool {
	for _, c := range m.cores {
		if !c.State().Halted() {
			return false
		}
	}
	return true
}

// Tick runs one lockstep tick. The input poll happens before any core
// steps, and Tick returns only after every core has stepped once.
func (m *Machine) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.poll()

	if m.config.Workers == 1 {
		for _, c := range m.cores {
			c.Step()
		}
	} else {
		var g errgroup.Group
		if m.config.Workers > 0 {
			g.SetLimit(m.config.Workers)
		}
		for _, c := range m.cores {
			g.Go(func() error {
				c.Step()
				return nil
			})
		}
		_ = g.Wait()
	}

	m.ticks++
	return nil
}

func (m *Machine) poll() {
	ev, ok := m.poller.Poll()
	if !ok {
		return
	}
	m.polls++

	m.logger.V(1).Info("input", "core", m.config.PollerCore,
		"device", ev.Type.String(), "key", ev.Key, "x", ev.X, "y", ev.Y, "flags", ev.Flags)

	if m.observer == nil {
		return
	}
	core := m.config.PollerCore
	m.observer.MemoryAccessed(core, emu.MMIOPending, false)
	switch ev.Type {
	case emu.DeviceKeyboard:
		m.observer.MemoryAccessed(core, emu.ScratchKeyboard, true)
	case emu.DeviceMouse, emu.DeviceTouch:
		m.observer.MemoryAccessed(core, emu.ScratchMouseX, true)
		m.observer.MemoryAccessed(core, emu.ScratchMouseY, true)
		m.observer.MemoryAccessed(core, emu.ScratchMouseFlags, true)
	}
	m.observer.MemoryAccessed(core, emu.MMIOPending, true)
}

// Run issues up to n ticks. It stops early once every core is halted, and
// stops with the context error if ctx is cancelled. It returns the number
// of ticks executed.
func (m *Machine) Run(ctx context.Context, n uint64) (uint64, error) {
	var done uint64
	for done < n {
		if m.AllHalted() {
			m.logger.Info("all cores halted", "ticks", m.ticks)
			break
		}
		if err := m.Tick(ctx); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}

// PostInput places an input packet in the MMIO window. It reports false if
// the previous packet has not been polled yet.
func (m *Machine) PostInput(ev emu.InputEvent) bool {
	return emu.PostInput(m.memory, ev)
}

// Halt sets the halt flag of a core.
func (m *Machine) Halt(core int) error {
	c := m.Core(core)
	if c == nil {
		return errors.Wrapf(ErrNoSuchCore, "core %d", core)
	}
	c.State().SetHalted(true)
	return nil
}

// Resume clears the halt flag of a core.
func (m *Machine) Resume(core int) error {
	c := m.Core(core)
	if c == nil {
		return errors.Wrapf(ErrNoSuchCore, "core %d", core)
	}
	c.State().SetHalted(false)
	return nil
}

// DownloadState returns the state record of a core.
func (m *Machine) DownloadState(core int) ([]uint32, error) {
	c := m.Core(core)
	if c == nil {
		return nil, errors.Wrapf(ErrNoSuchCore, "core %d", core)
	}
	w := c.State().Words()
	return w[:], nil
}

// UploadState replaces the state record of a core.
func (m *Machine) UploadState(core int, words []uint32) error {
	c := m.Core(core)
	if c == nil {
		return errors.Wrapf(ErrNoSuchCore, "core %d", core)
	}
	if !c.State().SetWords(words) {
		return errors.Wrapf(ErrStateLength, "got %d words, want %d", len(words), emu.StateWords)
	}
	return nil
}

// States returns the state records of all cores, concatenated in core
// order.
func (m *Machine) States() []uint32 {
	out := make([]uint32, 0, len(m.cores)*emu.StateWords)
	for _, c := range m.cores {
		w := c.State().Words()
		out = append(out, w[:]...)
	}
	return out
}

// Restore replaces every core state, the whole memory and the tick count.
// Nothing is modified if a length does not match.
func (m *Machine) Restore(states []uint32, memory []uint32, ticks uint64) error {
	if len(states) != len(m.cores)*emu.StateWords {
		return errors.Wrapf(ErrStateLength, "got %d words for %d cores", len(states), len(m.cores))
	}
	if len(memory) != len(m.memory.Words()) {
		return errors.Wrapf(ErrMemoryLength, "got %d words, want %d", len(memory), len(m.memory.Words()))
	}

	for i, c := range m.cores {
		c.State().SetWords(states[i*emu.StateWords : (i+1)*emu.StateWords])
	}
	copy(m.memory.Words(), memory)
	m.ticks = ticks
	return nil
}

// Stats returns a snapshot of the machine counters.
func (m *Machine) Stats() Stats {
	st := Stats{
		Ticks: m.ticks,
		Polls: m.polls,
		Cores: make([]CoreStats, len(m.cores)),
	}
	for i, c := range m.cores {
		cs := CoreStats{
			Instructions: c.InstructionCount(),
			Traps:        c.TrapCount(),
			PC:           c.State().PC,
			Halted:       c.State().Halted(),
		}
		st.Cores[i] = cs
		st.Instructions += cs.Instructions
		st.Traps += cs.Traps
		if cs.Halted {
			st.Halted++
		}
	}
	return st
}
