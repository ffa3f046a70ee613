package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
)

var _ = Describe("Poller", func() {
	var (
		m *emu.Memory
		p *emu.Poller
	)

	BeforeEach(func() {
		m = emu.NewMemory(emu.MinMemorySize)
		p = emu.NewPoller(m)
	})

	It("should do nothing without a pending packet", func() {
		m.Write32(emu.MMIOType, uint32(emu.DeviceKeyboard))
		m.Write32(emu.MMIOKey, 0x1E)

		_, ok := p.Poll()

		Expect(ok).To(BeFalse())
		Expect(m.Read32(emu.ScratchKeyboard)).To(Equal(uint32(0)))
	})

	It("should publish a keyboard press", func() {
		Expect(emu.PostInput(m, emu.InputEvent{
			Type:  emu.DeviceKeyboard,
			Key:   0x1E,
			Flags: emu.InputPressed,
		})).To(BeTrue())

		ev, ok := p.Poll()

		Expect(ok).To(BeTrue())
		Expect(ev.Type).To(Equal(emu.DeviceKeyboard))
		Expect(m.Read32(emu.ScratchKeyboard)).To(Equal(uint32(0x1E | 1<<16)))
		Expect(m.Read32(emu.MMIOPending) & emu.InputPending).To(BeZero())
	})

	It("should publish mouse and touch coordinates", func() {
		for _, dev := range []emu.DeviceType{emu.DeviceMouse, emu.DeviceTouch} {
			emu.PostInput(m, emu.InputEvent{Type: dev, X: 320, Y: 200, Flags: emu.InputReleased})

			_, ok := p.Poll()

			Expect(ok).To(BeTrue())
			Expect(m.Read32(emu.ScratchMouseX)).To(Equal(uint32(320)))
			Expect(m.Read32(emu.ScratchMouseY)).To(Equal(uint32(200)))
			Expect(m.Read32(emu.ScratchMouseFlags)).To(Equal(emu.InputReleased))
		}
	})

	It("should drop unknown device types but still consume them", func() {
		emu.PostInput(m, emu.InputEvent{Type: emu.DeviceType(9), Key: 5})

		_, ok := p.Poll()

		Expect(ok).To(BeTrue())
		Expect(m.Read32(emu.ScratchKeyboard)).To(Equal(uint32(0)))
		Expect(m.Read32(emu.MMIOPending)).To(BeZero())
	})

	It("should only clear the pending bit", func() {
		m.Write32(emu.MMIOPending, 0xF0|emu.InputPending)
		m.Write32(emu.MMIOType, uint32(emu.DeviceKeyboard))
		m.Write32(emu.MMIOKey, 2)

		p.Poll()

		Expect(m.Read32(emu.MMIOPending)).To(Equal(uint32(0xF0)))
		Expect(m.Read32(emu.MMIOKey)).To(Equal(uint32(2)))
	})

	It("should refuse to overwrite an unconsumed packet", func() {
		Expect(emu.PostInput(m, emu.InputEvent{Type: emu.DeviceKeyboard, Key: 1})).To(BeTrue())
		Expect(emu.PostInput(m, emu.InputEvent{Type: emu.DeviceKeyboard, Key: 2})).To(BeFalse())
		Expect(m.Read32(emu.MMIOKey)).To(Equal(uint32(1)))
	})
})

var _ = Describe("Memory", func() {
	It("should ignore out-of-range accesses", func() {
		m := emu.NewMemory(16)
		m.Write32(16, 5)
		Expect(m.Read32(16)).To(Equal(uint32(0)))
		Expect(m.InBounds(12)).To(BeTrue())
		Expect(m.InBounds(16)).To(BeFalse())
	})

	It("should load little-endian bytes with zero padding", func() {
		m := emu.NewMemory(16)
		m.LoadBytes(4, []byte{0x78, 0x56, 0x34, 0x12, 0xAA})
		Expect(m.Read32(4)).To(Equal(uint32(0x12345678)))
		Expect(m.Read32(8)).To(Equal(uint32(0xAA)))
	})
})
