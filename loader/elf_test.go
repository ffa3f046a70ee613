package loader_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/loader"
)

type elfSegment struct {
	addr  uint32
	flags uint32
	data  []byte
	memsz uint32
}

const (
	pfX = 0x1
	pfW = 0x2
	pfR = 0x4
)

func wordsToBytes(words ...uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// writeRV32ELF writes an ELF32 executable with one PT_LOAD per segment.
func writeRV32ELF(path string, machine uint16, entry uint32, segs ...elfSegment) {
	const (
		ehsize    = 52
		phentsize = 32
	)

	header := make([]byte, ehsize)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 1                                           // ELFCLASS32
	header[5] = 1                                           // little endian
	header[6] = 1                                           // version
	binary.LittleEndian.PutUint16(header[16:18], 2)         // executable
	binary.LittleEndian.PutUint16(header[18:20], machine)   // machine
	binary.LittleEndian.PutUint32(header[20:24], 1)         // version
	binary.LittleEndian.PutUint32(header[24:28], entry)     // entry
	binary.LittleEndian.PutUint32(header[28:32], ehsize)    // phoff
	binary.LittleEndian.PutUint16(header[40:42], ehsize)    // ehsize
	binary.LittleEndian.PutUint16(header[42:44], phentsize) // phentsize
	binary.LittleEndian.PutUint16(header[44:46], uint16(len(segs)))

	offset := uint32(ehsize + phentsize*len(segs))
	var phdrs, body []byte
	for _, seg := range segs {
		memsz := seg.memsz
		if memsz == 0 {
			memsz = uint32(len(seg.data))
		}

		ph := make([]byte, phentsize)
		binary.LittleEndian.PutUint32(ph[0:4], 1) // PT_LOAD
		binary.LittleEndian.PutUint32(ph[4:8], offset)
		binary.LittleEndian.PutUint32(ph[8:12], seg.addr)
		binary.LittleEndian.PutUint32(ph[12:16], seg.addr)
		binary.LittleEndian.PutUint32(ph[16:20], uint32(len(seg.data)))
		binary.LittleEndian.PutUint32(ph[20:24], memsz)
		binary.LittleEndian.PutUint32(ph[24:28], seg.flags)
		binary.LittleEndian.PutUint32(ph[28:32], 0x1000)

		phdrs = append(phdrs, ph...)
		body = append(body, seg.data...)
		offset += uint32(len(seg.data))
	}

	file, _ := os.Create(path)
	defer func() { _ = file.Close() }()

	_, _ = file.Write(header)
	_, _ = file.Write(phdrs)
	_, _ = file.Write(body)
}

var _ = Describe("Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "rv-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	Describe("ELF", func() {
		code := wordsToBytes(insts.NOP(), insts.ADDI(10, 0, 42), insts.ECALL())

		It("should turn the executable segment into the instruction stream", func() {
			path := filepath.Join(tempDir, "prog.elf")
			writeRV32ELF(path, 243, 0x10004, elfSegment{addr: 0x10000, flags: pfR | pfX, data: code})

			prog, err := loader.Load(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Text).To(Equal([]uint32{insts.NOP(), insts.ADDI(10, 0, 42), insts.ECALL()}))
			Expect(prog.Entry).To(Equal(uint32(1)))
			Expect(prog.Segments).To(BeEmpty())
		})

		It("should place data segments at their physical address", func() {
			path := filepath.Join(tempDir, "data.elf")
			writeRV32ELF(path, 243, 0x10000,
				elfSegment{addr: 0x10000, flags: pfR | pfX, data: code},
				elfSegment{addr: 0x2000, flags: pfR | pfW, data: wordsToBytes(7, 8), memsz: 16},
			)

			prog, err := loader.LoadELF(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(1))
			seg := prog.Segments[0]
			Expect(seg.Addr).To(Equal(uint32(0x2000)))
			Expect(seg.MemSize).To(Equal(uint32(16)))
			Expect(seg.Flags & loader.SegmentFlagWrite).NotTo(BeZero())
			Expect(seg.Flags & loader.SegmentFlagExecute).To(BeZero())

			m := emu.NewMemory(0x4000)
			m.Write32(0x2008, 0xFFFF)
			prog.LoadInto(m)

			Expect(m.Read32(0x2000)).To(Equal(uint32(7)))
			Expect(m.Read32(0x2004)).To(Equal(uint32(8)))
			Expect(m.Read32(0x2008)).To(Equal(uint32(0)))
		})

		It("should reject non-RISC-V machines", func() {
			path := filepath.Join(tempDir, "arm.elf")
			writeRV32ELF(path, 183, 0x10000, elfSegment{addr: 0x10000, flags: pfR | pfX, data: code})

			_, err := loader.Load(path)

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("not a RISC-V"))
		})

		It("should reject an entry outside the executable segment", func() {
			path := filepath.Join(tempDir, "entry.elf")
			writeRV32ELF(path, 243, 0x20000, elfSegment{addr: 0x10000, flags: pfR | pfX, data: code})

			_, err := loader.Load(path)

			Expect(err).To(HaveOccurred())
		})

		It("should require an executable segment", func() {
			path := filepath.Join(tempDir, "noexec.elf")
			writeRV32ELF(path, 243, 0x10000, elfSegment{addr: 0x10000, flags: pfR, data: code})

			_, err := loader.Load(path)

			Expect(err).To(MatchError(ContainSubstring("no executable segment")))
		})
	})

	Describe("assembly", func() {
		It("should assemble .s files", func() {
			path := filepath.Join(tempDir, "prog.s")
			src := strings.Join([]string{
				".data 0x1000",
				"value: .word 5",
				".text",
				"nop",
				"_start: lw a0, 0(zero)",
			}, "\n")
			Expect(os.WriteFile(path, []byte(src), 0644)).To(Succeed())

			prog, err := loader.Load(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Entry).To(Equal(uint32(1)))
			Expect(prog.Text).To(HaveLen(2))
			Expect(prog.Segments).To(HaveLen(1))
			Expect(prog.Segments[0].Data).To(Equal(wordsToBytes(5)))
		})

		It("should report assembler errors", func() {
			_, err := loader.LoadAssembly(strings.NewReader("bogus"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("raw", func() {
		It("should read little-endian words", func() {
			path := filepath.Join(tempDir, "prog.bin")
			Expect(os.WriteFile(path, wordsToBytes(insts.NOP(), insts.EBREAK()), 0644)).To(Succeed())

			prog, err := loader.Load(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Text).To(Equal([]uint32{insts.NOP(), insts.EBREAK()}))
			Expect(prog.Entry).To(Equal(uint32(0)))
		})

		It("should reject partial words", func() {
			_, err := loader.LoadRaw([]byte{1, 2, 3})
			Expect(err).To(HaveOccurred())
		})

		It("should return error for non-existent file", func() {
			_, err := loader.Load(filepath.Join(tempDir, "missing"))
			Expect(err).To(HaveOccurred())
		})
	})
})
