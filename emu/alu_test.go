package emu_test

import (
	"math"
	"math/big"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
)

// refMulHigh computes the high word of a signed product with math/big.
func refMulHigh(x, y uint32) uint32 {
	p := new(big.Int).Mul(big.NewInt(int64(int32(x))), big.NewInt(int64(int32(y))))
	p.Rsh(p, 32)
	return uint32(p.Int64())
}

var _ = Describe("ALU", func() {
	var (
		s   *emu.CoreState
		alu *emu.ALU
	)

	BeforeEach(func() {
		s = emu.NewCoreState()
		alu = emu.NewALU(s)
	})

	Describe("ADDI", func() {
		It("should add a positive immediate", func() {
			s.WriteReg(1, 10)
			alu.ADDI(2, 1, 5)
			Expect(s.ReadReg(2)).To(Equal(uint32(15)))
		})

		It("should sign extend a negative immediate", func() {
			s.WriteReg(1, 10)
			alu.ADDI(2, 1, -11)
			Expect(s.ReadReg(2)).To(Equal(uint32(0xFFFFFFFF)))
		})

		It("should drop writes to x0", func() {
			alu.ADDI(0, 0, 5)
			Expect(s.ReadReg(0)).To(Equal(uint32(0)))
		})
	})

	Describe("ADD and SUB", func() {
		It("should wrap around", func() {
			s.WriteReg(1, 0xFFFFFFFF)
			s.WriteReg(2, 2)
			alu.ADD(3, 1, 2)
			Expect(s.ReadReg(3)).To(Equal(uint32(1)))
		})

		It("should subtract with borrow wrap", func() {
			s.WriteReg(1, 1)
			s.WriteReg(2, 2)
			alu.SUB(3, 1, 2)
			Expect(s.ReadReg(3)).To(Equal(uint32(0xFFFFFFFF)))
		})
	})

	Describe("multiply", func() {
		It("should keep the low word for MUL", func() {
			s.WriteReg(1, 0x10000)
			s.WriteReg(2, 0x10001)
			alu.MUL(3, 1, 2)
			Expect(s.ReadReg(3)).To(Equal(uint32(0x10000)))
		})

		It("should match a big-integer reference for MULH", func() {
			r := rand.New(rand.NewSource(7))
			edges := []uint32{0, 1, 0xFFFFFFFF, 0x80000000, 0x7FFFFFFF}

			check := func(x, y uint32) {
				s.WriteReg(1, x)
				s.WriteReg(2, y)
				alu.MULH(3, 1, 2)
				Expect(s.ReadReg(3)).To(Equal(refMulHigh(x, y)), "x=%#x y=%#x", x, y)
			}

			for _, x := range edges {
				for _, y := range edges {
					check(x, y)
				}
			}
			for i := 0; i < 1000; i++ {
				check(r.Uint32(), r.Uint32())
			}
		})

		It("should handle the MULH sign edges", func() {
			Expect(emu.MulHigh(0x80000000, 0x80000000)).To(Equal(uint32(0x40000000)))
			Expect(emu.MulHigh(0xFFFFFFFF, 0xFFFFFFFF)).To(Equal(uint32(0)))
		})

		It("should treat rs2 as unsigned for MULHSU", func() {
			s.WriteReg(1, 0xFFFFFFFF) // -1
			s.WriteReg(2, 0xFFFFFFFF) // 2^32-1
			alu.MULHSU(3, 1, 2)
			Expect(s.ReadReg(3)).To(Equal(uint32(0xFFFFFFFF)))
		})

		It("should compute the unsigned high word for MULHU", func() {
			s.WriteReg(1, 0xFFFFFFFF)
			s.WriteReg(2, 0xFFFFFFFF)
			alu.MULHU(3, 1, 2)
			Expect(s.ReadReg(3)).To(Equal(uint32(0xFFFFFFFE)))
		})
	})

	Describe("divide", func() {
		It("should truncate toward zero", func() {
			s.WriteReg(1, uint32(0xFFFFFFF9)) // -7
			s.WriteReg(2, 2)
			alu.DIV(3, 1, 2)
			alu.REM(4, 1, 2)
			Expect(int32(s.ReadReg(3))).To(Equal(int32(-3)))
			Expect(int32(s.ReadReg(4))).To(Equal(int32(-1)))
		})

		It("should divide unsigned", func() {
			s.WriteReg(1, 0xFFFFFFF9)
			s.WriteReg(2, 2)
			alu.DIVU(3, 1, 2)
			alu.REMU(4, 1, 2)
			Expect(s.ReadReg(3)).To(Equal(uint32(0x7FFFFFFC)))
			Expect(s.ReadReg(4)).To(Equal(uint32(1)))
		})

		It("should leave rd unchanged on division by zero", func() {
			s.WriteReg(1, 100)
			s.WriteReg(3, 0xAAAA)
			s.WriteReg(4, 0xBBBB)
			s.WriteReg(5, 0xCCCC)
			s.WriteReg(6, 0xDDDD)

			alu.DIV(3, 1, 0)
			alu.DIVU(4, 1, 0)
			alu.REM(5, 1, 0)
			alu.REMU(6, 1, 0)

			Expect(s.ReadReg(3)).To(Equal(uint32(0xAAAA)))
			Expect(s.ReadReg(4)).To(Equal(uint32(0xBBBB)))
			Expect(s.ReadReg(5)).To(Equal(uint32(0xCCCC)))
			Expect(s.ReadReg(6)).To(Equal(uint32(0xDDDD)))
		})

		It("should not panic on signed overflow", func() {
			s.WriteReg(1, uint32(1)<<31)
			s.WriteReg(2, 0xFFFFFFFF)

			alu.DIV(3, 1, 2)
			alu.REM(4, 1, 2)

			Expect(int32(s.ReadReg(3))).To(Equal(int32(math.MinInt32)))
			Expect(s.ReadReg(4)).To(Equal(uint32(0)))
		})
	})
})
