// Validate the decoder - checks that DecodeInto matches Decode and measures
// allocations on the DecodeInto path used by the emulator.
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sarchlab/rvsim/insts"
)

func main() {
	decoder := insts.NewDecoder()

	words := []uint32{
		insts.ADDI(10, 11, 42),
		insts.ADD(5, 6, 7),
		insts.MULHU(1, 2, 3),
		insts.DIV(8, 9, 18),
		insts.BNE(10, 0, -8),
		insts.LW(11, 2, 8),
		insts.SW(11, 2, -4),
		insts.LRW(5, 10),
		insts.SCW(6, 10, 7),
		insts.AMOADDW(10, 12, 11),
		insts.CSRRW(0, 0x105, 5),
		insts.ECALL(),
		insts.SRET(),
		0xFFFFFFFF,
	}

	fmt.Println("Testing decoder consistency...")
	ok := true
	for _, word := range words {
		want := decoder.Decode(word)

		var got insts.Instruction
		decoder.DecodeInto(word, &got)

		if got != *want {
			fmt.Printf("  MISMATCH %08x: Decode=%v DecodeInto=%v\n", word, want, &got)
			ok = false
		}
	}
	if !ok {
		os.Exit(1)
	}
	fmt.Printf("  %d encodings match\n\n", len(words))

	var inst insts.Instruction

	// Warm up
	for i := 0; i < 1000; i++ {
		decoder.DecodeInto(words[i%len(words)], &inst)
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	iterations := 100000

	for i := 0; i < iterations; i++ {
		for _, word := range words {
			decoder.DecodeInto(word, &inst)
		}
	}

	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	totalDecodes := iterations * len(words)
	allocations := m2.Mallocs - m1.Mallocs
	allocatedBytes := m2.TotalAlloc - m1.TotalAlloc

	fmt.Printf("Decoder Validation Results:\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Total decode operations: %d\n", totalDecodes)
	fmt.Printf("Time elapsed: %v\n", elapsed)
	fmt.Printf("Decodes per second: %.0f\n", float64(totalDecodes)/elapsed.Seconds())
	fmt.Printf("Allocations: %d\n", allocations)
	fmt.Printf("Allocated bytes: %d\n", allocatedBytes)
	fmt.Printf("Allocations per decode: %.3f\n", float64(allocations)/float64(totalDecodes))

	if float64(allocations)/float64(totalDecodes) < 0.1 {
		fmt.Printf("\nOK: low allocation rate (< 0.1 per decode)\n")
	} else {
		fmt.Printf("\nWARNING: high allocation rate detected\n")
	}
}
