// Package asm is a small two-pass assembler for the RV32 subset executed by
// the emulator.
//
// Source is line oriented. A line holds optional labels ("name:"), then a
// directive or an instruction; "#" and ";" start comments. Operands are
// comma separated and immediates are Starlark expressions over the equates
// and labels defined so far:
//
//	.equ COUNT, 10
//	_start:
//	    li    a0, COUNT * 2
//	loop:
//	    addi  a0, a0, -1
//	    bnez  a0, loop
//
// The instruction stream is indexed by word, so a label in .text evaluates
// to its word index (the PC value, suitable for STVEC). A label in a .data
// segment evaluates to its physical byte address. Branch operands that name
// a label are turned into the byte offset from the branch; any other branch
// operand is taken as a byte offset.
package asm

import (
	"bufio"
	"io"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/sarchlab/rvsim/emu"
)

// EntryLabel marks the first instruction to execute.
const EntryLabel = "_start"

// Segment is a block of initialized words at a physical byte address.
type Segment struct {
	Addr  uint32
	Words []uint32
}

// Program is the output of the assembler.
type Program struct {
	// Text is the instruction stream, indexed by PC.
	Text []uint32
	// Data holds the .data segments in source order.
	Data []Segment
	// Labels maps text labels to word indexes and data labels to byte
	// addresses.
	Labels map[string]uint32
	// Lines holds the source line of each Text word.
	Lines []int
}

// Entry returns the word index of EntryLabel, or 0 if it is not defined.
func (p *Program) Entry() uint32 {
	if pc, ok := p.Labels[EntryLabel]; ok {
		return pc
	}
	return 0
}

// Predefined system equates.
var sysEquate = map[string]int64{
	"PTE_V":               int64(emu.PteV),
	"PTE_R":               int64(emu.PteR),
	"PTE_W":               int64(emu.PteW),
	"PTE_X":               int64(emu.PteX),
	"SATP_SV32":           int64(emu.SatpModeSv32),
	"PAGE_SIZE":           emu.PageSize,
	"SSTATUS_SIE":         int64(emu.SstatusSIE),
	"SSTATUS_SPIE":        int64(emu.SstatusSPIE),
	"SSTATUS_SPP":         int64(emu.SstatusSPP),
	"MMIO_BASE":           int64(emu.MMIOBase),
	"SCRATCH_KEYBOARD":    int64(emu.ScratchKeyboard),
	"SCRATCH_MOUSE_X":     int64(emu.ScratchMouseX),
	"SCRATCH_MOUSE_Y":     int64(emu.ScratchMouseY),
	"SCRATCH_MOUSE_FLAGS": int64(emu.ScratchMouseFlags),
}

// pte(ppn, flags) builds a valid page table entry.
var pteBuiltin = starlark.NewBuiltin("pte", func(
	_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var ppn, flags int
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &ppn, &flags); err != nil {
		return nil, err
	}
	return starlark.MakeUint(uint(emu.MakePTE(uint32(ppn), uint32(flags)))), nil
})

var (
	labelRe = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// statement is one directive or instruction collected by the first pass.
type statement struct {
	lineNo   int
	line     string
	mnemonic string
	args     []string

	// text statements: first word index; data statements: byte address.
	addr uint32
	data bool
	seg  int
	size int

	// li values resolved in the first pass.
	value int64
}

// Assembler turns RV32 assembly source into a Program.
type Assembler struct {
	// Logger receives one V(2) entry per source line.
	Logger logr.Logger

	// Equate holds the values of .equ names, including predefines.
	Equate map[string]int64
	// Label holds text labels as word indexes and data labels as byte
	// addresses.
	Label map[string]uint32

	predefine map[string]int64
}

// Predefine defines an equate that is visible to every Parse.
func (a *Assembler) Predefine(name string, value int64) {
	if a.predefine == nil {
		a.predefine = map[string]int64{name: value}
	} else {
		a.predefine[name] = value
	}
}

// Assemble is a convenience wrapper around Parse.
func Assemble(src string) (*Program, error) {
	a := &Assembler{}
	return a.Parse(strings.NewReader(src))
}

// Parse assembles the whole input.
func (a *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	a.Equate = maps.Clone(sysEquate)
	maps.Copy(a.Equate, a.predefine)
	a.Label = make(map[string]uint32)

	var (
		stmts   []*statement
		segs    []Segment
		pending []*statement
		text    uint32
		inData  bool
		lineno  int
		line    string
	)

	defer func() {
		if err != nil {
			var se *ErrSyntax
			if !errors.As(err, &se) {
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
			}
		}
	}()

	here := func() uint32 {
		if inData {
			seg := &segs[len(segs)-1]
			return seg.Addr + uint32(len(seg.Words))*4
		}
		return text
	}

	// Pass 1: labels, equates and sizes.
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		lineno++
		line = strings.TrimSpace(stripComment(scanner.Text()))

		a.Logger.V(2).Info("asm", "line", lineno, "text", line)

		for {
			m := labelRe.FindStringSubmatch(line)
			if m == nil {
				break
			}
			name := m[1]
			if err = a.defineLabel(name, here()); err != nil {
				return nil, err
			}
			line = strings.TrimSpace(line[len(m[0]):])
		}

		if line == "" {
			continue
		}

		mnemonic, rest := line, ""
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			mnemonic, rest = line[:i], strings.TrimSpace(line[i+1:])
		}
		mnemonic = strings.ToLower(mnemonic)

		st := &statement{lineNo: lineno, line: line, mnemonic: mnemonic}

		switch mnemonic {
		case ".equ", ".set":
			name, expr, ok := cutEquate(rest)
			if !ok {
				return nil, ErrEquateSyntax
			}
			if _, dup := a.Equate[name]; dup {
				return nil, errors.Wrap(ErrEquateDuplicate, name)
			}
			var v int64
			if v, err = a.eval(expr); err != nil {
				return nil, err
			}
			a.Equate[name] = v
			continue

		case ".text":
			inData = false
			continue

		case ".data":
			if rest == "" {
				return nil, ErrDataSyntax
			}
			var addr int64
			if addr, err = a.eval(rest); err != nil {
				return nil, err
			}
			if addr&3 != 0 || addr < 0 || addr > 0xFFFFFFFF {
				return nil, ErrDataAlignment
			}
			segs = append(segs, Segment{Addr: uint32(addr)})
			inData = true
			continue

		case ".word":
			st.args = splitArgs(rest)
			if len(st.args) == 0 {
				return nil, ErrOperandCount
			}
			st.size = len(st.args)

		case ".space", ".zero":
			var n int64
			if n, err = a.eval(rest); err != nil {
				return nil, err
			}
			if n < 0 || n&3 != 0 {
				return nil, ErrDataAlignment
			}
			st.size = int(n / 4)

		default:
			if _, ok := mnemonics[mnemonic]; !ok {
				return nil, errors.Wrap(ErrOpcodeInvalid, mnemonic)
			}
			if inData {
				return nil, ErrTextOnly
			}
			st.args = splitArgs(rest)
			st.size = 1

			if mnemonic == "li" {
				if len(st.args) != 2 {
					return nil, ErrOperandCount
				}
				v, evalErr := a.eval(st.args[1])
				if evalErr != nil {
					// Retry once all labels are known to tell a forward
					// reference from a bad expression.
					pending = append(pending, st)
				}
				st.value = v
				st.size = len(expandLI(0, v))
			}
		}

		st.data = inData
		st.addr = here()
		if inData {
			st.seg = len(segs) - 1
			seg := &segs[st.seg]
			seg.Words = append(seg.Words, make([]uint32, st.size)...)
		} else {
			text += uint32(st.size)
		}
		stmts = append(stmts, st)
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading assembly source")
	}

	if len(pending) > 0 {
		st := pending[0]
		lineno, line = st.lineNo, st.line
		if _, err = a.eval(st.args[1]); err == nil {
			err = errors.Wrap(ErrForwardReference, st.args[1])
		}
		return nil, err
	}

	// Pass 2: encode.
	prog = &Program{
		Text:   make([]uint32, 0, text),
		Data:   segs,
		Labels: maps.Clone(a.Label),
		Lines:  make([]int, 0, text),
	}

	for _, st := range stmts {
		lineno, line = st.lineNo, st.line

		var words []uint32
		switch st.mnemonic {
		case ".word":
			for _, arg := range st.args {
				var v int64
				if v, err = a.eval(arg); err != nil {
					return nil, err
				}
				if v < -0x80000000 || v > 0xFFFFFFFF {
					return nil, errors.Wrap(ErrImmediateRange, arg)
				}
				words = append(words, uint32(v))
			}
		case ".space", ".zero":
			words = make([]uint32, st.size)
		default:
			if words, err = mnemonics[st.mnemonic](a, st); err != nil {
				return nil, err
			}
		}

		if st.data {
			seg := &prog.Data[st.seg]
			copy(seg.Words[(st.addr-seg.Addr)/4:], words)
			continue
		}

		prog.Text = append(prog.Text, words...)
		for range words {
			prog.Lines = append(prog.Lines, st.lineNo)
		}
	}

	return prog, nil
}

func (a *Assembler) defineLabel(name string, value uint32) error {
	if _, ok := a.Label[name]; ok {
		return errors.Wrap(ErrLabelDuplicate, name)
	}
	if _, ok := a.Equate[name]; ok {
		return errors.Wrap(ErrLabelDuplicate, name)
	}
	a.Label[name] = value
	return nil
}

// eval evaluates an integer expression over the equates and labels.
func (a *Assembler) eval(expr string) (int64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, ErrExpression
	}

	if v, err := strconv.ParseInt(expr, 0, 64); err == nil {
		return v, nil
	}

	if identRe.MatchString(expr) {
		if v, ok := a.Equate[expr]; ok {
			return v, nil
		}
		if v, ok := a.Label[expr]; ok {
			return int64(v), nil
		}
		return 0, ErrLabelMissing(expr)
	}

	pred := starlark.StringDict{"pte": pteBuiltin}
	for name, v := range a.Equate {
		pred[name] = starlark.MakeInt64(v)
	}
	for name, v := range a.Label {
		pred[name] = starlark.MakeUint64(uint64(v))
	}

	thread := starlark.Thread{Name: "asm"}
	opts := syntax.FileOptions{}
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", "rc="+expr+"\n", pred)
	if err != nil {
		return 0, errors.Wrapf(ErrExpression, "%s: %v", expr, err)
	}

	rc, ok := dict["rc"].(starlark.Int)
	if !ok {
		return 0, errors.Wrap(ErrExpression, expr)
	}
	v, ok := rc.Int64()
	if !ok {
		return 0, errors.Wrap(ErrImmediateRange, expr)
	}
	return v, nil
}

// stripComment drops everything from the first '#' or ';'.
func stripComment(s string) string {
	if i := strings.IndexAny(s, "#;"); i >= 0 {
		return s[:i]
	}
	return s
}

// cutEquate splits ".equ" operands, which may be written "NAME, expr" or
// "NAME expr".
func cutEquate(rest string) (name, expr string, ok bool) {
	name, expr, found := strings.Cut(rest, ",")
	if !found {
		name, expr, found = strings.Cut(rest, " ")
	}
	name = strings.TrimSpace(name)
	expr = strings.TrimSpace(expr)
	if !found || expr == "" || !identRe.MatchString(name) {
		return "", "", false
	}
	return name, expr, true
}

// splitArgs splits operands on commas that are not nested in parentheses.
func splitArgs(rest string) []string {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil
	}

	var (
		args  []string
		depth int
		start int
	)
	for i, r := range rest {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(rest[start:i]))
				start = i + 1
			}
		}
	}
	return append(args, strings.TrimSpace(rest[start:]))
}
