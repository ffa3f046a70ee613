// Package benchmarks provides workload programs and a harness that runs them
// on a machine with the timing profiler attached.
package benchmarks

import (
	"github.com/sarchlab/rvsim/emu"
)

// Result slots are one word per core starting at resultBase. Workloads
// store their final value with sw rX, RESULT(t1) where t1 = 4 * a0.
const resultBase = 0x400

// MaxCores is the largest core count every workload supports.
const MaxCores = 16

// GetMicrobenchmarks returns the standard set of workloads. Each one
// targets a single part of the core.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		aluChain(),
		mulDivMix(),
		pagedLoadStore(),
		amoCounter(),
		swapLock(),
		lrscIncrement(),
		ecallRoundTrip(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation: plain
// arithmetic, translated memory and cross-core atomics.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		aluChain(),
		pagedLoadStore(),
		swapLock(),
	}
}

// expectPerCore checks that every core's result slot holds want.
func expectPerCore(want uint32) func(*emu.Memory, int) error {
	return func(mem *emu.Memory, cores int) error {
		for i := 0; i < cores; i++ {
			if err := expectWord(mem, resultBase+uint32(i)*4, want); err != nil {
				return err
			}
		}
		return nil
	}
}

// 1. ALU chain - dependent adds and subtracts in a counted loop
func aluChain() Benchmark {
	const n = 100
	return Benchmark{
		Name:        "alu_chain",
		Description: "100 iterations of a dependent add/sub chain - measures ALU throughput",
		Source: `
.equ RESULT, 0x400
.equ N, 100
_start:
    li   t0, N
    mv   a1, zero
loop:
    add  a1, a1, t0
    addi a1, a1, 1
    addi a1, a1, -1
    add  a2, a1, a1
    sub  a2, a2, a1
    addi t0, t0, -1
    bnez t0, loop
    add  t1, a0, a0
    add  t1, t1, t1
    sw   a2, RESULT(t1)
`,
		Check: expectPerCore(n * (n + 1) / 2),
	}
}

// 2. Multiply/divide mix - M extension latencies, including signed
// remainders of negative values
func mulDivMix() Benchmark {
	const n = 50
	// 1 + sum(t + 3) + (-20 % 7) + (-20 / 7)
	want := int32(1 + n*(n+1)/2 + 3*n - 6 - 2)
	return Benchmark{
		Name:        "muldiv_mix",
		Description: "50 iterations of mul/divu/remu/mulhu - measures multiplier and divider latency",
		Source: `
.equ RESULT, 0x400
.equ N, 50
_start:
    li    t0, N
    li    a1, 1
    li    a2, 7
loop:
    mul   a3, t0, a2
    addi  a3, a3, 3
    divu  a4, a3, a2
    remu  a5, a3, a2
    add   a1, a1, a4
    add   a1, a1, a5
    mulhu a6, a3, a3
    add   a1, a1, a6
    addi  t0, t0, -1
    bnez  t0, loop
    li    a7, -20
    rem   s2, a7, a2
    div   s3, a7, a2
    add   a1, a1, s2
    add   a1, a1, s3
    add   t1, a0, a0
    add   t1, t1, t1
    sw    a1, RESULT(t1)
`,
		Check: expectPerCore(uint32(want)),
	}
}

// 3. Paged load/store - fills and sums a buffer through Sv32 translation.
// Virtual page 0 is identity mapped for the result slots and virtual page
// 0x10 maps to physical page 5. Each core owns a 256 byte slice.
func pagedLoadStore() Benchmark {
	const n = 64
	return Benchmark{
		Name:        "paged_load_store",
		Description: "64 stores and 64 loads through a two-level page table - measures translated memory access",
		Source: `
.equ RESULT, 0x400
.equ VBUF, 0x10000
.equ N, 64

.data 0x2000
root: .word pte(3, 0)

.data 0x3000
l0:   .word pte(0, PTE_R | PTE_W)
      .space 60
      .word pte(5, PTE_R | PTE_W)

.text
_start:
    li   t0, SATP_SV32 | 2
    csrw satp, t0
    li   t1, VBUF
    li   t3, N * 4
    mul  t2, a0, t3
    add  t1, t1, t2
    li   t0, N
    mv   a1, zero
fill:
    sw   t0, 0(t1)
    addi t1, t1, 4
    addi t0, t0, -1
    bnez t0, fill
    li   t0, N
sum:
    addi t1, t1, -4
    lw   a2, 0(t1)
    add  a1, a1, a2
    addi t0, t0, -1
    bnez t0, sum
    add  t2, a0, a0
    add  t2, t2, t2
    sw   a1, RESULT(t2)
`,
		Check: func(mem *emu.Memory, cores int) error {
			if err := expectPerCore(n*(n+1)/2)(mem, cores); err != nil {
				return err
			}
			for i := 0; i < cores; i++ {
				if err := expectWord(mem, 0x5000+uint32(i)*n*4, n); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// 4. AMO counter - every core adds to one shared word
func amoCounter() Benchmark {
	const iter = 100
	return Benchmark{
		Name:        "amo_counter",
		Description: "100 amoadd.w per core on one shared counter - measures atomic throughput",
		Source: `
.equ COUNTER, 0x600
.equ ITER, 100
_start:
    li   t0, ITER
    li   t1, COUNTER
    li   t2, 1
loop:
    amoadd.w zero, t2, (t1)
    addi t0, t0, -1
    bnez t0, loop
`,
		Check: func(mem *emu.Memory, cores int) error {
			return expectWord(mem, 0x600, uint32(cores*iter))
		},
	}
}

// 5. Spinlock - amoswap.w guards a plain load/add/store critical section
func swapLock() Benchmark {
	const iter = 20
	return Benchmark{
		Name:        "swap_lock",
		Description: "20 lock/increment/unlock rounds per core with an amoswap.w spinlock - measures contention",
		Source: `
.equ LOCK, 0x680
.equ SHARED, 0x684
.equ ITER, 20
_start:
    li   s0, ITER
    li   s1, LOCK
    li   t2, 1
acquire:
    amoswap.w t0, t2, (s1)
    bnez t0, acquire
    lw   t1, SHARED(zero)
    addi t1, t1, 1
    sw   t1, SHARED(zero)
    amoswap.w zero, zero, (s1)
    addi s0, s0, -1
    bnez s0, acquire
`,
		Check: func(mem *emu.Memory, cores int) error {
			if err := expectWord(mem, 0x680, 0); err != nil {
				return err
			}
			return expectWord(mem, 0x684, uint32(cores*iter))
		},
	}
}

// 6. LR/SC increment - each core retries lr.w/sc.w on its own slot
func lrscIncrement() Benchmark {
	const iter = 50
	return Benchmark{
		Name:        "lrsc_increment",
		Description: "50 lr.w/sc.w increments per core on a private slot - measures reservation overhead",
		Source: `
.equ SLOTS, 0x700
.equ ITER, 50
_start:
    add  s1, a0, a0
    add  s1, s1, s1
    addi s1, s1, SLOTS
    li   s0, ITER
retry:
    lr.w t0, (s1)
    addi t0, t0, 1
    sc.w t1, t0, (s1)
    bnez t1, retry
    addi s0, s0, -1
    bnez s0, retry
`,
		Check: func(mem *emu.Memory, cores int) error {
			for i := 0; i < cores; i++ {
				if err := expectWord(mem, 0x700+uint32(i)*4, iter); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// 7. Ecall round trip - trap entry, handler and sret
func ecallRoundTrip() Benchmark {
	const n = 30
	return Benchmark{
		Name:        "ecall_roundtrip",
		Description: "30 ecall/sret round trips - measures trap overhead",
		Source: `
.equ RESULT, 0x400
.equ N, 30
_start:
    la   t0, handler
    csrw stvec, t0
    li   s0, N
    mv   a1, zero
loop:
    ecall
    addi s0, s0, -1
    bnez s0, loop
    add  t1, a0, a0
    add  t1, t1, t1
    sw   a1, RESULT(t1)
    j    end
handler:
    addi a1, a1, 1
    csrr t2, sepc
    addi t2, t2, 1
    csrw sepc, t2
    sret
end:
`,
		Check: expectPerCore(n),
	}
}
