package profiler

import (
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/latency"
)

// Option is a functional option for configuring the Profiler.
type Option func(*Profiler)

// WithTimingConfig sets the instruction latencies. The cache hit and miss
// latencies are taken from CacheHitLatency and MemoryLatency.
func WithTimingConfig(config *latency.TimingConfig) Option {
	return func(p *Profiler) {
		p.timing = config
	}
}

// WithCacheConfig sets the data cache geometry.
func WithCacheConfig(config cache.Config) Option {
	return func(p *Profiler) {
		p.cacheConfig = config
	}
}

// Profiler is an emu.Observer that keeps a timing model per core. Events
// of different cores may arrive concurrently; events of one core must not.
type Profiler struct {
	timing      *latency.TimingConfig
	cacheConfig cache.Config
	table       *latency.Table
	cores       []*Core
}

var _ emu.Observer = (*Profiler)(nil)

// New creates a profiler for a machine with the given number of cores.
func New(cores int, opts ...Option) *Profiler {
	p := &Profiler{
		timing:      latency.DefaultTimingConfig(),
		cacheConfig: cache.DefaultL1DConfig(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.cacheConfig.HitLatency = p.timing.CacheHitLatency
	p.cacheConfig.MissLatency = p.timing.MemoryLatency
	p.table = latency.NewTableWithConfig(p.timing)

	p.cores = make([]*Core, cores)
	for i := range p.cores {
		p.cores[i] = NewCore(i, p.table, p.cacheConfig)
	}

	return p
}

// Table returns the latency table.
func (p *Profiler) Table() *latency.Table {
	return p.table
}

// NumCores returns the number of core models.
func (p *Profiler) NumCores() int {
	return len(p.cores)
}

// Core returns the model of core i, or nil if there is no such core.
func (p *Profiler) Core(i int) *Core {
	if i < 0 || i >= len(p.cores) {
		return nil
	}
	return p.cores[i]
}

// InstructionRetired implements emu.Observer.
func (p *Profiler) InstructionRetired(core int, pc uint32, inst *insts.Instruction) {
	if c := p.Core(core); c != nil {
		c.Retire(pc, inst)
	}
}

// MemoryAccessed implements emu.Observer.
func (p *Profiler) MemoryAccessed(core int, addr uint32, write bool) {
	if c := p.Core(core); c != nil {
		c.Access(addr, write)
	}
}

// TrapTaken implements emu.Observer.
func (p *Profiler) TrapTaken(core int, cause emu.Cause, _ uint32) {
	if c := p.Core(core); c != nil {
		c.Trap(cause)
	}
}

// Stats returns the statistics of every core.
func (p *Profiler) Stats() []Stats {
	out := make([]Stats, len(p.cores))
	for i, c := range p.cores {
		out[i] = c.Stats()
	}
	return out
}

// Total returns machine-wide statistics. Cores run in lockstep, so Cycles
// is the largest per-core estimate; every other counter is summed.
func (p *Profiler) Total() Stats {
	var total Stats
	for _, c := range p.cores {
		st := c.Stats()
		total.Cycles = max(total.Cycles, st.Cycles)
		total.Instructions += st.Instructions
		total.Stalls += st.Stalls
		total.Flushes += st.Flushes
		total.Traps += st.Traps
		total.Cache = total.Cache.Add(st.Cache)
		for i := range total.Classes {
			total.Classes[i] += st.Classes[i]
		}
	}
	return total
}

// Reset clears every core model.
func (p *Profiler) Reset() {
	for _, c := range p.cores {
		c.Reset()
	}
}
