// Package snapshot saves and restores whole machines.
//
// A snapshot file is a fixed little-endian header followed by a snappy
// stream holding the instruction stream, the core state records and the
// physical memory, each as little-endian 32-bit words.
package snapshot

import (
	"encoding/binary"
	"io"
	"os"
	"slices"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/machine"
)

// Magic identifies snapshot files.
const Magic = "RVSN"

// Version is the snapshot format version.
const Version = 1

// Limits applied to headers read from disk.
const (
	maxCores       = 1 << 16
	maxMemoryWords = 1 << 30
	maxStreamWords = 1 << 28
)

var (
	// ErrMagic is returned for files that are not snapshots.
	ErrMagic = errors.New("invalid snapshot magic")

	// ErrVersion is returned for snapshots of an unknown format version.
	ErrVersion = errors.New("unsupported snapshot version")

	// ErrMismatch is returned when a snapshot does not fit a machine.
	ErrMismatch = errors.New("snapshot does not match machine")
)

var packOptions = &struc.Options{Order: binary.LittleEndian}

// Header is the uncompressed file header.
type Header struct {
	Magic       string `struc:"[4]byte"`
	Version     uint32
	Cores       uint32
	MemoryWords uint32
	StreamWords uint32
	Entry       uint32
	Ticks       uint64
}

// Image is a decoded snapshot.
type Image struct {
	Header Header
	Stream []uint32
	States []uint32
	Memory []uint32
}

// Capture copies the current state of m.
func Capture(m *machine.Machine) *Image {
	prog := m.Program()
	memory := m.Memory().Words()

	return &Image{
		Header: Header{
			Magic:       Magic,
			Version:     Version,
			Cores:       uint32(m.NumCores()),
			MemoryWords: uint32(len(memory)),
			StreamWords: uint32(len(prog.Text)),
			Entry:       prog.Entry,
			Ticks:       m.Ticks(),
		},
		Stream: slices.Clone(prog.Text),
		States: m.States(),
		Memory: slices.Clone(memory),
	}
}

// Write captures m and writes it to w.
func Write(w io.Writer, m *machine.Machine) error {
	return Capture(m).Write(w)
}

// Write encodes the image to w.
func (img *Image) Write(w io.Writer) error {
	if err := struc.PackWithOptions(w, &img.Header, packOptions); err != nil {
		return errors.Wrap(err, "failed to pack snapshot header")
	}

	zw := snappy.NewBufferedWriter(w)
	for _, section := range [][]uint32{img.Stream, img.States, img.Memory} {
		if err := binary.Write(zw, binary.LittleEndian, section); err != nil {
			return errors.Wrap(err, "failed to write snapshot body")
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "failed to flush snapshot body")
	}
	return nil
}

// Read decodes a snapshot from r.
func Read(r io.Reader) (*Image, error) {
	img := &Image{}
	if err := struc.UnpackWithOptions(r, &img.Header, packOptions); err != nil {
		return nil, errors.Wrap(err, "failed to unpack snapshot header")
	}

	h := &img.Header
	if h.Magic != Magic {
		return nil, ErrMagic
	}
	if h.Version != Version {
		return nil, errors.Wrapf(ErrVersion, "version %d", h.Version)
	}
	if h.Cores == 0 || h.Cores > maxCores ||
		h.MemoryWords > maxMemoryWords || h.StreamWords > maxStreamWords {
		return nil, errors.Errorf("corrupt snapshot header: %d cores, %d memory words, %d stream words",
			h.Cores, h.MemoryWords, h.StreamWords)
	}

	img.Stream = make([]uint32, h.StreamWords)
	img.States = make([]uint32, int(h.Cores)*emu.StateWords)
	img.Memory = make([]uint32, h.MemoryWords)

	zr := snappy.NewReader(r)
	for _, section := range [][]uint32{img.Stream, img.States, img.Memory} {
		if err := binary.Read(zr, binary.LittleEndian, section); err != nil {
			return nil, errors.Wrap(err, "failed to read snapshot body")
		}
	}

	return img, nil
}

// Program returns the instruction stream of the image as a loadable
// program. It has no data segments: memory comes from the image.
func (img *Image) Program() *loader.Program {
	return &loader.Program{
		Entry: img.Header.Entry,
		Text:  img.Stream,
	}
}

// Config returns a copy of base resized to the image's core count and
// memory size.
func (img *Image) Config(base *machine.Config) *machine.Config {
	cfg := base.Clone()
	cfg.Cores = int(img.Header.Cores)
	cfg.MemorySize = img.Header.MemoryWords * 4
	if cfg.PollerCore >= cfg.Cores {
		cfg.PollerCore = 0
	}
	return cfg
}

// Apply restores the image into m. The machine must have the same number of
// cores, the same memory size and the same instruction stream.
func (img *Image) Apply(m *machine.Machine) error {
	h := &img.Header
	if int(h.Cores) != m.NumCores() {
		return errors.Wrapf(ErrMismatch, "snapshot has %d cores, machine has %d", h.Cores, m.NumCores())
	}
	if int(h.MemoryWords) != len(m.Memory().Words()) {
		return errors.Wrapf(ErrMismatch, "snapshot has %d memory words, machine has %d",
			h.MemoryWords, len(m.Memory().Words()))
	}
	if !slices.Equal(img.Stream, m.Program().Text) {
		return errors.Wrap(ErrMismatch, "instruction stream differs")
	}

	return m.Restore(img.States, img.Memory, h.Ticks)
}

// Save writes a snapshot of m to path.
func Save(path string, m *machine.Machine) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create snapshot file")
	}

	if err := Write(f, m); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "failed to close snapshot file")
}

// Load reads a snapshot from path.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open snapshot file")
	}
	defer f.Close()

	return Read(f)
}
