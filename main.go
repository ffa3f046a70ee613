// Package main provides the entry point for rvsim.
// rvsim is a lockstep multi-core RV32 emulator.
//
// For the full CLI, use: go run ./cmd/rvsim
package main

import (
	"fmt"
	"os"

	"github.com/sarchlab/rvsim/benchmarks"
)

func main() {
	fmt.Printf("rvsim %s - lockstep multi-core RV32 emulator\n", benchmarks.Version)
	fmt.Println("")
	fmt.Println("Usage: rvsim [options] <program>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  ./cmd/rvsim      Run a program, optionally with -timing or -monitor")
	fmt.Println("  ./cmd/benchmark  Run the workload harness")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rvsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rvsim' instead.")
	}
}
