package emu

// MMIO input window. Host input producers fill in a packet and set the
// pending bit; the poller consumes it once per tick.
const (
	MMIOBase uint32 = 0x00FFF000

	MMIOPending = MMIOBase + 0  // bit 0: packet pending
	MMIOType    = MMIOBase + 4  // DeviceType
	MMIOKey     = MMIOBase + 8  // key code
	MMIOX       = MMIOBase + 12 // pointer x
	MMIOY       = MMIOBase + 16 // pointer y
	MMIOFlags   = MMIOBase + 20 // InputPressed / InputReleased
)

// Scratch words the guest polls for decoded input. These addresses are
// part of the guest contract.
const (
	ScratchKeyboard   uint32 = 0x00FFF100 // key | flags<<16
	ScratchMouseX     uint32 = 0x00FFF104
	ScratchMouseY     uint32 = 0x00FFF108
	ScratchMouseFlags uint32 = 0x00FFF10C
)

// MinMemorySize is the smallest memory that contains the MMIO window and
// the scratch words.
const MinMemorySize = ScratchMouseFlags + 4

// MMIO pending and flag bits.
const (
	InputPending  uint32 = 1 << 0
	InputPressed  uint32 = 1 << 0
	InputReleased uint32 = 1 << 1
)

// DeviceType discriminates MMIO input packets.
type DeviceType uint32

// Input device types.
const (
	DeviceNone DeviceType = iota
	DeviceKeyboard
	DeviceMouse
	DeviceTouch
)

// String returns the device name.
func (d DeviceType) String() string {
	switch d {
	case DeviceNone:
		return "none"
	case DeviceKeyboard:
		return "keyboard"
	case DeviceMouse:
		return "mouse"
	case DeviceTouch:
		return "touch"
	default:
		return "unknown"
	}
}

// InputEvent is one packet in the MMIO input window.
type InputEvent struct {
	Type  DeviceType
	Key   uint32
	X     uint32
	Y     uint32
	Flags uint32
}

// PostInput is the producer side of the MMIO window: it writes ev and sets
// the pending bit. It reports false, leaving memory untouched, when a
// previous packet has not been consumed yet.
func PostInput(memory *Memory, ev InputEvent) bool {
	if memory.Read32(MMIOPending)&InputPending != 0 {
		return false
	}
	memory.Write32(MMIOType, uint32(ev.Type))
	memory.Write32(MMIOKey, ev.Key)
	memory.Write32(MMIOX, ev.X)
	memory.Write32(MMIOY, ev.Y)
	memory.Write32(MMIOFlags, ev.Flags)
	memory.Write32(MMIOPending, memory.Read32(MMIOPending)|InputPending)
	return true
}

// Poller drains the MMIO input window into the scratch words.
type Poller struct {
	memory *Memory
}

// NewPoller creates a Poller over memory.
func NewPoller(memory *Memory) *Poller {
	return &Poller{memory: memory}
}

// Poll consumes a pending input packet, if any. Keyboard packets are copied
// to ScratchKeyboard, mouse and touch packets to the ScratchMouse words;
// other types are dropped. The pending bit is cleared and no other MMIO
// field is written. Poll returns the consumed packet and whether one was
// pending.
func (p *Poller) Poll() (InputEvent, bool) {
	m := p.memory

	pending := m.Read32(MMIOPending)
	if pending&InputPending == 0 {
		return InputEvent{}, false
	}

	ev := InputEvent{
		Type:  DeviceType(m.Read32(MMIOType)),
		Key:   m.Read32(MMIOKey),
		X:     m.Read32(MMIOX),
		Y:     m.Read32(MMIOY),
		Flags: m.Read32(MMIOFlags),
	}

	switch ev.Type {
	case DeviceKeyboard:
		m.Write32(ScratchKeyboard, ev.Key|ev.Flags<<16)
	case DeviceMouse, DeviceTouch:
		m.Write32(ScratchMouseX, ev.X)
		m.Write32(ScratchMouseY, ev.Y)
		m.Write32(ScratchMouseFlags, ev.Flags)
	}

	m.Write32(MMIOPending, pending&^InputPending)
	return ev, true
}
