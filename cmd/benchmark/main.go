// Command benchmark runs the rvsim workload harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv        Output results in CSV format (default: human-readable)
//	-json       Output results in JSON format
//	-cores      Number of cores per workload (default: 1)
//	-workers    Machine worker count, 0 for one goroutine per core (default: 1)
//	-timing     Timing config JSON file
//	-core-only  Run the three core workloads only
//	-v          Print machine statistics after each workload
//
// Example:
//
//	# Run all workloads on four cores
//	go run ./cmd/benchmark -cores 4
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/sarchlab/rvsim/benchmarks"
	"github.com/sarchlab/rvsim/timing/latency"
)

func main() {
	// Parse flags
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results in JSON format")
	cores := flag.Int("cores", 1, "Number of cores per workload")
	workers := flag.Int("workers", 1, "Machine worker count, 0 for one goroutine per core")
	timingPath := flag.String("timing", "", "Timing config JSON file")
	coreOnly := flag.Bool("core-only", false, "Run the three core workloads only")
	verbose := flag.Bool("v", false, "Print machine statistics after each workload")
	flag.Parse()

	// Configure harness
	config := benchmarks.DefaultConfig()
	config.Cores = *cores
	config.Workers = *workers
	config.Verbose = *verbose
	config.Output = os.Stdout

	if *timingPath != "" {
		tc, err := latency.LoadConfig(*timingPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := tc.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid timing config: %v\n", err)
			os.Exit(1)
		}
		config.Timing = tc
	}

	// Create harness and add benchmarks
	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	structured := *csvOutput || *jsonOutput
	if !structured {
		fmt.Println("rvsim Timing Benchmark Harness")
		fmt.Println("==============================")
		fmt.Printf("Cores:   %d\n", config.Cores)
		fmt.Printf("Workers: %d\n", config.Workers)
		fmt.Println("")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Run benchmarks
	results := harness.RunAll(ctx)

	// Output results
	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)

		summary := benchmarks.Summarize(results)
		fmt.Println("=== Summary ===")
		fmt.Println("")
		fmt.Printf("Workloads:    %d\n", summary.TotalBenchmarks)
		fmt.Printf("Failed:       %d\n", summary.Failed)
		fmt.Printf("Cycles:       %d\n", summary.TotalCycles)
		fmt.Printf("Instructions: %d\n", summary.TotalInstructions)
		fmt.Printf("Wall Time:    %v\n", summary.TotalWallTime)
		fmt.Println("")
		fmt.Println("Expected characteristics:")
		fmt.Println("- alu_chain: CPI close to 1, taken branch penalties only")
		fmt.Println("- muldiv_mix: Higher CPI from multiply and divide latency")
		fmt.Println("- paged_load_store: Load latency plus one miss per cache block")
		fmt.Println("- amo_counter, swap_lock: Atomic latency, spinning grows with cores")
		fmt.Println("- lrsc_increment: Private slots, no retries")
		fmt.Println("- ecall_roundtrip: Trap penalty on every iteration")
	}

	if ctx.Err() != nil || benchmarks.Summarize(results).Failed > 0 {
		os.Exit(1)
	}
}
