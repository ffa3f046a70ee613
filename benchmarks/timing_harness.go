package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/machine"
	"github.com/sarchlab/rvsim/monitor"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/latency"
	"github.com/sarchlab/rvsim/timing/profiler"
)

// Version is reported in JSON output.
const Version = "0.1.0"

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Cores is the number of cores the workload ran on
	Cores int `json:"cores"`

	// Ticks is the number of lockstep machine ticks
	Ticks uint64 `json:"ticks"`

	// SimulatedCycles is the estimated cycle count of the slowest core
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions on all
	// cores
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is the average of the per-core cycles per instruction
	CPI float64 `json:"cpi"`

	// StallCycles is the number of cycles lost to cache misses
	StallCycles uint64 `json:"stall_cycles"`

	// Flushes counts taken branches and traps
	Flushes uint64 `json:"flushes"`

	// Traps is the number of traps taken
	Traps uint64 `json:"traps"`

	// DCacheHits/Misses of the per-core data caches
	DCacheHits   uint64 `json:"dcache_hits"`
	DCacheMisses uint64 `json:"dcache_misses"`

	// Verified is true if the workload halted and its memory check passed
	Verified bool `json:"verified"`

	// Error describes why the run was not verified
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Source is the assembly program. Every core runs it with a0 set to
	// its index.
	Source string

	// Cores overrides the harness core count if not zero
	Cores int

	// Check validates memory after all cores halted
	Check func(mem *emu.Memory, cores int) error
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Cores is the number of cores each workload runs on
	Cores int

	// Workers is passed to the machine. 1 steps cores serially in index
	// order, which keeps contended workloads deterministic.
	Workers int

	// MaxTicks bounds each run
	MaxTicks uint64

	// Timing holds the instruction latencies
	Timing *latency.TimingConfig

	// Cache is the per-core data cache geometry
	Cache cache.Config

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose prints the machine statistics after each run
	Verbose bool

	// Logger is handed to every machine
	Logger logr.Logger
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Cores:    1,
		Workers:  1,
		MaxTicks: 1_000_000,
		Timing:   latency.DefaultTimingConfig(),
		Cache:    cache.DefaultL1DConfig(),
		Output:   os.Stdout,
		Logger:   logr.Discard(),
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Timing == nil {
		config.Timing = latency.DefaultTimingConfig()
	}
	if config.Logger.GetSink() == nil {
		config.Logger = logr.Discard()
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// Config returns the harness configuration.
func (h *Harness) Config() HarnessConfig {
	return h.config
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results. A failing benchmark
// is reported in its result and does not stop the others. Cancelling ctx
// stops the current run and skips the rest.
func (h *Harness) RunAll(ctx context.Context) []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		if ctx.Err() != nil {
			break
		}
		results = append(results, h.runBenchmark(ctx, bench))
	}

	return results
}

// runBenchmark executes a single benchmark.
func (h *Harness) runBenchmark(ctx context.Context, bench Benchmark) BenchmarkResult {
	cores := h.config.Cores
	if bench.Cores != 0 {
		cores = bench.Cores
	}

	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
		Cores:       cores,
	}

	m, p, err := h.build(bench, cores)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	ticks, err := m.Run(ctx, h.config.MaxTicks)
	result.WallTime = time.Since(start)
	result.Ticks = ticks

	h.collect(&result, p)

	switch {
	case err != nil:
		result.Error = err.Error()
	case !m.AllHalted():
		result.Error = fmt.Sprintf("not halted after %d ticks", ticks)
	case bench.Check != nil:
		if err := bench.Check(m.Memory(), cores); err != nil {
			result.Error = err.Error()
		}
	}
	result.Verified = result.Error == ""

	h.config.Logger.V(1).Info("benchmark done", "name", bench.Name, "cores", cores,
		"ticks", ticks, "cycles", result.SimulatedCycles, "verified", result.Verified)

	if h.config.Verbose {
		_, _ = fmt.Fprintf(h.config.Output, "--- %s ---\n", bench.Name)
		monitor.WriteStats(h.config.Output, m.Stats(), p)
	}

	return result
}

func (h *Harness) build(bench Benchmark, cores int) (*machine.Machine, *profiler.Profiler, error) {
	if cores < 1 || cores > MaxCores {
		return nil, nil, errors.Errorf("core count %d outside 1..%d", cores, MaxCores)
	}

	prog, err := loader.LoadAssembly(strings.NewReader(bench.Source))
	if err != nil {
		return nil, nil, err
	}

	cfg := machine.DefaultConfig()
	cfg.Cores = cores
	cfg.Workers = h.config.Workers

	p := profiler.New(cores,
		profiler.WithTimingConfig(h.config.Timing),
		profiler.WithCacheConfig(h.config.Cache))

	m, err := machine.New(cfg, prog,
		machine.WithObserver(p),
		machine.WithLogger(h.config.Logger.WithValues("benchmark", bench.Name)))
	if err != nil {
		return nil, nil, err
	}

	return m, p, nil
}

func (h *Harness) collect(result *BenchmarkResult, p *profiler.Profiler) {
	total := p.Total()
	result.SimulatedCycles = total.Cycles
	result.InstructionsRetired = total.Instructions
	result.StallCycles = total.Stalls
	result.Flushes = total.Flushes
	result.Traps = total.Traps
	result.DCacheHits = total.Cache.Hits
	result.DCacheMisses = total.Cache.Misses

	var sum float64
	var n int
	for _, st := range p.Stats() {
		if st.Instructions == 0 {
			continue
		}
		sum += float64(st.Cycles) / float64(st.Instructions)
		n++
	}
	if n > 0 {
		result.CPI = sum / float64(n)
	}
}

// expectWord returns an error if the word at addr is not want.
func expectWord(mem *emu.Memory, addr, want uint32) error {
	if got := mem.Read32(addr); got != want {
		return errors.Errorf("word at %#x is %d, want %d", addr, int32(got), int32(want))
	}
	return nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	out := h.config.Output
	_, _ = fmt.Fprintln(out, "=== rvsim Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(out, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(out, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(out, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(out, "  Cores: %d\n", r.Cores)
		if r.Verified {
			_, _ = fmt.Fprintln(out, "  Result: ok")
		} else {
			_, _ = fmt.Fprintf(out, "  Result: FAILED (%s)\n", r.Error)
		}
		_, _ = fmt.Fprintln(out, "  --- Timing ---")
		_, _ = fmt.Fprintf(out, "  Ticks:                %d\n", r.Ticks)
		_, _ = fmt.Fprintf(out, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(out, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(out, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(out, "  Stall Cycles:         %d\n", r.StallCycles)
		_, _ = fmt.Fprintf(out, "  Flushes:              %d\n", r.Flushes)
		if r.Traps > 0 {
			_, _ = fmt.Fprintf(out, "  Traps:                %d\n", r.Traps)
		}

		if r.DCacheHits > 0 || r.DCacheMisses > 0 {
			_, _ = fmt.Fprintln(out, "  --- D-Cache ---")
			_, _ = fmt.Fprintf(out, "  Hits:   %d\n", r.DCacheHits)
			_, _ = fmt.Fprintf(out, "  Misses: %d\n", r.DCacheMisses)
		}

		_, _ = fmt.Fprintf(out, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(out, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cores,ticks,cycles,instructions,cpi,stalls,flushes,traps,dcache_hits,dcache_misses,verified")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%d,%.3f,%d,%d,%d,%d,%d,%t\n",
			r.Name,
			r.Cores,
			r.Ticks,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.StallCycles,
			r.Flushes,
			r.Traps,
			r.DCacheHits,
			r.DCacheMisses,
			r.Verified,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Config describes the benchmark configuration
	Config BenchmarkConfig `json:"config"`
}

// BenchmarkConfig describes the harness configuration used.
type BenchmarkConfig struct {
	Cores   int                   `json:"cores"`
	Workers int                   `json:"workers"`
	Timing  *latency.TimingConfig `json:"timing"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Failed is the number of benchmarks that were not verified
	Failed int `json:"failed"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Summarize aggregates results.
func Summarize(results []BenchmarkResult) ReportSummary {
	s := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		if !r.Verified {
			s.Failed++
		}
		s.TotalCycles += r.SimulatedCycles
		s.TotalInstructions += r.InstructionsRetired
		s.TotalWallTime += r.WallTime
	}
	return s
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
			Config: BenchmarkConfig{
				Cores:   h.config.Cores,
				Workers: h.config.Workers,
				Timing:  h.config.Timing,
			},
		},
		Results: results,
		Summary: Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
