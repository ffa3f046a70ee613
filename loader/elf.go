// Package loader turns program files into an instruction stream and initial
// memory contents for the emulator.
package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/rvsim/asm"
	"github.com/sarchlab/rvsim/emu"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment is a block of initial memory contents.
type Segment struct {
	// Addr is the physical byte address where this segment is loaded.
	Addr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program is a loaded program ready for a machine.
type Program struct {
	// Entry is the word index where execution begins.
	Entry uint32
	// Text is the instruction stream.
	Text []uint32
	// Segments are copied into physical memory before execution.
	Segments []Segment
}

// LoadInto zeroes the span of every segment in memory and copies its data.
// Parts of a segment that fall outside memory are dropped.
func (p *Program) LoadInto(m *emu.Memory) {
	for _, seg := range p.Segments {
		size := max(seg.MemSize, uint32(len(seg.Data)))
		for off := uint32(0); off < size; off += 4 {
			m.Write32(seg.Addr+off, 0)
		}
		m.LoadBytes(seg.Addr, seg.Data)
	}
}

// Load reads a program file. ELF files are recognized by their magic,
// ".s" and ".asm" files are assembled, and anything else is taken as raw
// little-endian instruction words.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read program")
	}

	switch {
	case bytes.HasPrefix(data, []byte(elf.ELFMAG)):
		f, err := elf.NewFile(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse ELF file")
		}
		return loadELF(f)
	case isAssembly(path):
		return LoadAssembly(bytes.NewReader(data))
	default:
		return LoadRaw(data)
	}
}

func isAssembly(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".s", ".asm":
		return true
	}
	return false
}

// LoadAssembly assembles source into a Program.
func LoadAssembly(r io.Reader) (*Program, error) {
	a := &asm.Assembler{}
	src, err := a.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to assemble program")
	}
	return FromAssembly(src), nil
}

// FromAssembly converts assembler output into a Program.
func FromAssembly(src *asm.Program) *Program {
	prog := &Program{
		Entry: src.Entry(),
		Text:  src.Text,
	}
	for _, d := range src.Data {
		data := make([]byte, len(d.Words)*4)
		for i, w := range d.Words {
			binary.LittleEndian.PutUint32(data[i*4:], w)
		}
		prog.Segments = append(prog.Segments, Segment{
			Addr:    d.Addr,
			Data:    data,
			MemSize: uint32(len(data)),
			Flags:   SegmentFlagRead | SegmentFlagWrite,
		})
	}
	return prog
}

// LoadRaw treats data as little-endian instruction words starting at PC 0.
func LoadRaw(data []byte) (*Program, error) {
	if len(data)%4 != 0 {
		return nil, errors.Errorf("raw program size %d is not a multiple of 4", len(data))
	}

	text := make([]uint32, len(data)/4)
	for i := range text {
		text[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return &Program{Text: text}, nil
}

// LoadELF parses an RV32 ELF executable. The executable PT_LOAD segment
// becomes the instruction stream and the entry address is converted to a
// word index into it. Every other PT_LOAD segment is placed in physical
// memory at its physical address.
func LoadELF(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ELF file")
	}
	defer func() { _ = f.Close() }()

	return loadELF(f)
}

func loadELF(f *elf.File) (*Program, error) {
	if f.Class != elf.ELFCLASS32 {
		return nil, errors.New("not a 32-bit ELF file")
	}

	if f.Machine != elf.EM_RISCV {
		return nil, errors.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{}
	var (
		haveText bool
		textBase uint64
	)

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, errors.Wrapf(err, "failed to read segment at 0x%x", phdr.Vaddr)
			}
			if uint64(n) != phdr.Filesz {
				return nil, errors.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		if phdr.Flags&elf.PF_X != 0 {
			if haveText {
				return nil, errors.Errorf("more than one executable segment (second at 0x%x)", phdr.Vaddr)
			}
			if len(data)%4 != 0 {
				data = append(data, make([]byte, 4-len(data)%4)...)
			}
			text, _ := LoadRaw(data)
			prog.Text = text.Text
			textBase = phdr.Vaddr
			haveText = true
			continue
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			Addr:    uint32(phdr.Paddr),
			Data:    data,
			MemSize: uint32(phdr.Memsz),
			Flags:   flags,
		})
	}

	if !haveText {
		return nil, errors.New("no executable segment")
	}

	if f.Entry < textBase || f.Entry >= textBase+uint64(len(prog.Text))*4 || (f.Entry-textBase)%4 != 0 {
		return nil, errors.Errorf("entry 0x%x is not an instruction of the executable segment", f.Entry)
	}
	prog.Entry = uint32((f.Entry - textBase) / 4)

	return prog, nil
}
