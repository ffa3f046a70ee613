// Package profiler estimates cycle counts for a running machine.
//
// A Profiler is attached to a machine as its emu.Observer. Each core gets a
// Core that charges instruction latencies from a latency table, memory
// accesses through a private tag-only data cache, and penalties for taken
// branches and traps. Observation never changes architectural state.
package profiler

import (
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/latency"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the estimated number of cycles.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of cycles spent on cache misses.
	Stalls uint64
	// Flushes is the number of taken branches and traps.
	Flushes uint64
	// Traps is the number of traps taken.
	Traps uint64
	// Cache holds the data cache statistics.
	Cache cache.Statistics
	// Classes counts retired instructions per latency class.
	Classes [latency.NumClasses]uint64
}

// IPC returns instructions per cycle, or 0 before the first cycle.
func (s Stats) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Instructions) / float64(s.Cycles)
}

// Core is the timing model of one core.
type Core struct {
	id    int
	table *latency.Table
	cache *cache.Cache
	stats Stats

	// The last retired instruction was a branch at branchPC.
	branchPending bool
	branchPC      uint32
}

// NewCore creates the timing model of core id.
func NewCore(id int, table *latency.Table, cacheConfig cache.Config) *Core {
	return &Core{
		id:    id,
		table: table,
		cache: cache.New(cacheConfig),
	}
}

// ID returns the core index.
func (c *Core) ID() int {
	return c.id
}

// Cache returns the core's data cache.
func (c *Core) Cache() *cache.Cache {
	return c.cache
}

// Retire charges a retired instruction.
func (c *Core) Retire(pc uint32, inst *insts.Instruction) {
	if c.branchPending && pc != c.branchPC+1 {
		c.stats.Flushes++
		c.stats.Cycles += c.table.Config().BranchTakenPenalty
	}
	c.branchPending = c.table.IsBranchOp(inst)
	c.branchPC = pc

	c.stats.Instructions++
	c.stats.Cycles += c.table.GetLatency(inst)
	if inst != nil {
		c.stats.Classes[latency.ClassOf(inst.Op)]++
	}
}

// Access charges a data access at a physical address.
func (c *Core) Access(addr uint32, write bool) {
	result := c.cache.Access(addr, write)
	c.stats.Cycles += result.Latency
	if !result.Hit {
		c.stats.Stalls += result.Latency
	}
}

// Trap charges a trap entry.
func (c *Core) Trap(emu.Cause) {
	c.branchPending = false
	c.stats.Traps++
	c.stats.Flushes++
	c.stats.Cycles += c.table.Config().TrapPenalty
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	st := c.stats
	st.Cache = c.cache.Stats()
	return st
}

// Reset clears the statistics and invalidates the cache.
func (c *Core) Reset() {
	c.stats = Stats{}
	c.cache.Reset()
	c.branchPending = false
	c.branchPC = 0
}
