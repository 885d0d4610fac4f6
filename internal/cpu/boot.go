package cpu

import (
	"errors"

	"github.com/devzendo/transputer-emu/internal/memory"
)

// bootQueueSentinel is the post-boot poison value the real emulator leaves
// in the run-queue registers until the first startp actually uses them;
// adopted verbatim from the original project rather than NotProcess, so
// that an emulator built against this package reproduces the same register
// dump a booted program would see.
const bootQueueSentinel uint32 = 0xDEADF00D

// MemStart is the first address of user memory, immediately above the
// reserved link-channel words (§3).
const MemStart = memory.InternalMemStart

// ErrLink0NotWired is returned by Boot when no transport has been attached
// to link 0.
var ErrLink0NotWired = errors.New("cpu: link 0 not wired")

// ErrShortBootImage is returned when link 0 yields fewer bytes than its own
// declared length prefix.
var ErrShortBootImage = errors.New("cpu: short boot read")

// Boot implements the primary bootstrap protocol of §4.G: a single length
// byte (0 meaning 256) is read from link 0, that many bytes are loaded into
// memory starting at MemStart, and a single low-priority process is started
// executing there.
func (c *CPU) Boot() error {
	link := c.Links[0]
	if link == nil {
		return ErrLink0NotWired
	}

	var lenByte [1]byte
	if err := link.ReadBytes(lenByte[:]); err != nil {
		return err
	}
	n := int(lenByte[0])
	if n == 0 {
		n = 256
	}

	image := make([]byte, n)
	if err := link.ReadBytes(image); err != nil {
		return ErrShortBootImage
	}
	if err := c.Mem.LoadBytes(MemStart, image); err != nil {
		return ErrShortBootImage
	}

	c.startBootedProcess(uint32(n))
	return nil
}

func (c *CPU) startBootedProcess(imageLen uint32) {
	c.Reg.Reset()
	c.Flags.Reset()

	c.Reg.I = MemStart
	c.Reg.O = 0
	c.Reg.A = 0
	c.Reg.B = 0
	c.Reg.C = Link0Input

	c.Reg.HiHead, c.Reg.HiTail = bootQueueSentinel, bootQueueSentinel
	c.Reg.LoHead, c.Reg.LoTail = bootQueueSentinel, bootQueueSentinel
	c.Reg.HiTimerHead, c.Reg.LoTimerHead = NotProcess, NotProcess

	ws := (MemStart + imageLen + 3) &^ 3
	c.Reg.Wdesc = ws | uint32(PriorityLow)
}
