// Package main provides a profiling wrapper for rvsim to identify host
// performance bottlenecks of the machine scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/machine"
	"github.com/sarchlab/rvsim/timing/profiler"
)

var (
	timing     = flag.Bool("timing", false, "Attach the timing profiler")
	cores      = flag.Int("cores", 1, "Number of cores")
	workers    = flag.Int("workers", 0, "Worker goroutines per tick, 0 for one per core")
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	duration   = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	maxTicks   = flag.Uint64("max-ticks", 1000000, "max ticks to execute")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded: %s\n", programPath)
	fmt.Printf("Entry point: %d\n", prog.Entry)

	cfg := machine.DefaultConfig()
	cfg.Cores = *cores
	cfg.Workers = *workers

	var opts []machine.Option
	if *timing {
		opts = append(opts, machine.WithObserver(profiler.New(cfg.Cores)))
	}

	m, err := machine.New(cfg, prog, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating machine: %v\n", err)
		os.Exit(1)
	}

	// The deadline stops the run at a tick boundary so the profiles are
	// still written.
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	ticks, err := m.Run(ctx, *maxTicks)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("\nStopped after %v: %v\n", elapsed, err)
	}

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	stats := m.Stats()

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Ticks: %d\n", ticks)
	fmt.Printf("Halted cores: %d/%d\n", stats.Halted, len(stats.Cores))
	fmt.Printf("Instructions executed: %d\n", stats.Instructions)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if stats.Instructions > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(stats.Instructions)/elapsed.Seconds())
	}
}
