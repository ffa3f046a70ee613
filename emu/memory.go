package emu

import "encoding/binary"

// Memory is the flat, word-addressable physical RAM shared by all cores.
// It also backs the page tables and the MMIO input window.
//
// Addresses are byte addresses; the low two bits are ignored. Memory is
// shared without locking: two cores touching the same word in the same
// tick race, and the result is whichever write lands last.
type Memory struct {
	words []uint32
}

// NewMemory creates a zeroed memory of size bytes, rounded down to a
// whole word.
func NewMemory(size uint32) *Memory {
	return &Memory{words: make([]uint32, size/4)}
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint64 {
	return uint64(len(m.words)) * 4
}

// InBounds reports whether the word containing addr exists.
func (m *Memory) InBounds(addr uint64) bool {
	return addr>>2 < uint64(len(m.words))
}

// Read32 reads the word containing addr. Out-of-range reads return 0.
func (m *Memory) Read32(addr uint32) uint32 {
	idx := addr >> 2
	if uint64(idx) >= uint64(len(m.words)) {
		return 0
	}
	return m.words[idx]
}

// Write32 writes the word containing addr. Out-of-range writes are dropped.
func (m *Memory) Write32(addr uint32, value uint32) {
	idx := addr >> 2
	if uint64(idx) >= uint64(len(m.words)) {
		return
	}
	m.words[idx] = value
}

// LoadWords copies words into memory starting at addr. Words past the end
// of memory are dropped.
func (m *Memory) LoadWords(addr uint32, words []uint32) {
	start := uint64(addr >> 2)
	if start >= uint64(len(m.words)) {
		return
	}
	copy(m.words[start:], words)
}

// LoadBytes copies little-endian bytes into memory starting at addr, which
// must be word aligned. A trailing partial word is zero padded.
func (m *Memory) LoadBytes(addr uint32, data []byte) {
	for i := 0; i < len(data); i += 4 {
		var buf [4]byte
		copy(buf[:], data[i:])
		m.Write32(addr+uint32(i), binary.LittleEndian.Uint32(buf[:]))
	}
}

// Words exposes the backing word array. Index i holds byte address 4*i.
func (m *Memory) Words() []uint32 {
	return m.words
}

// Clear zeroes the whole memory.
func (m *Memory) Clear() {
	clear(m.words)
}
