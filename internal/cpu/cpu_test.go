package cpu

import (
	"testing"

	"github.com/devzendo/transputer-emu/internal/memory"
	"github.com/stretchr/testify/require"
)

const testBase = 0x80000000
const testSize = 0x10000

// newRig builds a CPU over a fresh memory block and positions I at a fixed
// program start, mirroring cpu_ie32_instruction_test.go's test-rig idiom.
func newRig(t *testing.T) *CPU {
	t.Helper()
	mem := memory.New(testBase, testSize)
	c := NewCPU(mem)
	c.Reg.Wdesc = (testBase + 0x8000) | PriorityLow
	c.Reg.I = testBase + 0x100
	return c
}

// encodeDirect builds the pfix-prefixed byte sequence fetchDecode expects
// for a direct instruction carrying operand, most significant nibble first.
func encodeDirect(direct uint8, operand uint32) []byte {
	var nibbles []uint8
	if operand == 0 {
		nibbles = []uint8{0}
	} else {
		for v := operand; v != 0; v >>= 4 {
			nibbles = append([]uint8{uint8(v & 0xf)}, nibbles...)
		}
	}
	out := make([]byte, 0, len(nibbles))
	for _, n := range nibbles[:len(nibbles)-1] {
		out = append(out, DirectPfix|n)
	}
	out = append(out, direct|nibbles[len(nibbles)-1])
	return out
}

func (c *CPU) loadCode(code []byte) {
	for i, b := range code {
		c.Mem.SetByte(c.Reg.I+uint32(i), b)
	}
}

func TestFetchDecodeAccumulatesPrefixedOperand(t *testing.T) {
	c := newRig(t)
	c.loadCode(encodeDirect(DirectLdc, 0x1234))
	c.Step()
	require.Equal(t, uint32(0x1234), c.Reg.A)
}

func TestLdlpComputesWorkspaceRelativeAddress(t *testing.T) {
	c := newRig(t)
	c.loadCode(encodeDirect(DirectLdlp, 3))
	c.Step()
	require.Equal(t, c.Reg.Workspace()+12, c.Reg.A)
}

func TestStlLdlRoundTrip(t *testing.T) {
	c := newRig(t)
	code := append(encodeDirect(DirectLdc, 0xCAFE), encodeDirect(DirectStl, 2)...)
	code = append(code, encodeDirect(DirectLdl, 2)...)
	c.loadCode(code)
	c.Step()
	c.Step()
	c.Step()
	require.Equal(t, uint32(0xCAFE), c.Reg.A)
}

func TestAddOverflowSetsError(t *testing.T) {
	c := newRig(t)
	code := append(encodeDirect(DirectLdc, 0x7FFFFFFF), encodeDirect(DirectLdc, 1)...)
	code = append(code, encodeDirect(DirectOpr, OpAdd)...)
	c.loadCode(code)
	c.Step()
	c.Step()
	c.Step()
	require.True(t, c.Flags.Error)
	require.Equal(t, uint32(0x80000000), c.Reg.A)
}

func TestSubNoOverflow(t *testing.T) {
	c := newRig(t)
	code := append(encodeDirect(DirectLdc, 10), encodeDirect(DirectLdc, 3)...)
	code = append(code, encodeDirect(DirectOpr, OpSub)...)
	c.loadCode(code)
	c.Step()
	c.Step()
	c.Step()
	require.False(t, c.Flags.Error)
	require.Equal(t, uint32(7), c.Reg.A)
}

func TestJRelativeJump(t *testing.T) {
	c := newRig(t)
	start := c.Reg.I
	c.loadCode(encodeDirect(DirectJ, 5))
	c.Step()
	require.Equal(t, start+uint32(len(encodeDirect(DirectJ, 5)))+5, c.Reg.I)
}

func TestCjFallsThroughWhenNonZero(t *testing.T) {
	c := newRig(t)
	c.Reg.Push(1)
	before := c.Reg.I
	code := encodeDirect(DirectCj, 0x10)
	c.loadCode(code)
	c.Step()
	require.Equal(t, before+uint32(len(code)), c.Reg.I)
}

func TestCjTakenWhenZero(t *testing.T) {
	c := newRig(t)
	c.Reg.Push(0)
	before := c.Reg.I
	code := encodeDirect(DirectCj, 0x10)
	c.loadCode(code)
	c.Step()
	require.Equal(t, before+uint32(len(code))+0x10, c.Reg.I)
}

func TestRunQueueFIFO(t *testing.T) {
	c := newRig(t)
	c.Mem.SetWord(wsAddr(0x80001000, wIptr), 0x1111)
	c.Mem.SetWord(wsAddr(0x80002000, wIptr), 0x2222)
	c.scheduleProcess(PriorityLow, 0x80001000|PriorityLow)
	c.scheduleProcess(PriorityLow, 0x80002000|PriorityLow)

	first, ok := c.nextFromQueue(PriorityLow)
	require.True(t, ok)
	require.Equal(t, uint32(0x80001000|PriorityLow), first)

	second, ok := c.nextFromQueue(PriorityLow)
	require.True(t, ok)
	require.Equal(t, uint32(0x80002000|PriorityLow), second)

	_, ok = c.nextFromQueue(PriorityLow)
	require.False(t, ok)
}

func TestRendezvousSymmetricTransfer(t *testing.T) {
	c := newRig(t)
	chanAddr := uint32(testBase + 0x5000)
	c.Mem.SetWord(chanAddr, NotProcess)

	writerWS := uint32(testBase + 0x6000)
	writerBuf := uint32(testBase + 0x6100)
	c.Mem.SetWord(writerBuf, 0xDEADBEEF)
	c.Reg.Wdesc = writerWS | PriorityLow
	c.Reg.I = testBase + 0x9000
	c.rendezvous(chanAddr, writerBuf, 4, true)
	require.Equal(t, writerWS|PriorityLow, c.Mem.GetWord(chanAddr))

	readerWS := uint32(testBase + 0x7000)
	readerBuf := uint32(testBase + 0x7100)
	c.Reg.Wdesc = readerWS | PriorityLow
	c.rendezvous(chanAddr, readerBuf, 4, false)

	require.Equal(t, uint32(0xDEADBEEF), c.Mem.GetWord(readerBuf))
	require.Equal(t, NotProcess, c.Mem.GetWord(chanAddr))
	woken, ok := c.nextFromQueue(PriorityLow)
	require.True(t, ok)
	require.Equal(t, writerWS|PriorityLow, woken)
}

func TestAltSkipGuardSelectedWhenReady(t *testing.T) {
	c := newRig(t)
	ws := c.Reg.Workspace()
	c.Mem.SetWord(wsAddr(ws, wAltState), Enabling)
	c.Mem.SetWord(wsAddr(ws, wTemp), NoneSelected)

	c.Reg.Push(1) // enbs condition
	c.execEnbs()

	c.Reg.Push(1)  // diss flag
	c.Reg.Push(24) // diss branch offset
	c.execDiss()
	require.Equal(t, uint32(1), c.Reg.A)
	require.Equal(t, uint32(24), c.Mem.GetWord(wsAddr(ws, wTemp)))
}

// TestAltFullScenarioJumpsToSelectedGuard mirrors the wire-level ALT
// sequence of spec.md's concrete scenario: alt; enbs; altwt; diss; altend,
// ending with the skip guard selected and I advanced by its branch offset.
func TestAltFullScenarioJumpsToSelectedGuard(t *testing.T) {
	c := newRig(t)
	ws := c.Reg.Workspace()
	startI := c.Reg.I

	c.execAlt(false)
	c.Reg.Push(1) // enbs condition
	c.execEnbs()
	c.execAltwt(false)

	c.Reg.Push(1)  // diss flag
	c.Reg.Push(24) // branch offset to the guard's body
	c.execDiss()
	require.Equal(t, uint32(1), c.Reg.A)

	c.execAltend()
	require.Equal(t, startI+24, c.Reg.I)
	require.Equal(t, NoneSelected, c.Mem.GetWord(wsAddr(ws, wAltState)))
}

func TestAltEnbtImmediateExpiry(t *testing.T) {
	c := newRig(t)
	ws := c.Reg.Workspace()
	c.Mem.SetWord(wsAddr(ws, wAltState), Enabling)
	c.Reg.HiClock, c.Reg.LoClock = 0, 100

	c.Reg.Push(1)  // cond
	c.Reg.Push(50) // wake time already passed
	c.execEnbt()

	require.Equal(t, altGuardTimer, c.Mem.GetWord(wsAddr(ws, wAltState)))
}

// TestCallThenRetRoundTrips exercises call/ret together: call must push the
// {IPtr, A, B, C} activation record at the new workspace and leave A holding
// the return address, and ret must read that same IPtr back and restore W.
func TestCallThenRetRoundTrips(t *testing.T) {
	c := newRig(t)
	c.Reg.A, c.Reg.B, c.Reg.C = 0xAAAA, 0xBBBB, 0xCCCC
	callerWS := c.Reg.Workspace()

	code := encodeDirect(DirectCall, 0x10)
	callLen := uint32(len(code))
	c.loadCode(code)
	c.Step()

	returnAddr := testBase + 0x100 + callLen
	require.Equal(t, returnAddr, c.Reg.A, "call must set A to the return IPtr")
	require.Equal(t, testBase+0x100+callLen+0x10, c.Reg.I)

	newWS := c.Reg.Workspace()
	require.Equal(t, callerWS-16, newWS)
	require.Equal(t, returnAddr, c.Mem.GetWord(newWS))
	require.Equal(t, uint32(0xAAAA), c.Mem.GetWord(newWS+4))
	require.Equal(t, uint32(0xBBBB), c.Mem.GetWord(newWS+8))
	require.Equal(t, uint32(0xCCCC), c.Mem.GetWord(newWS+12))

	c.loadCode(encodeDirect(DirectOpr, OpRet))
	c.Step()

	require.Equal(t, returnAddr, c.Reg.I)
	require.Equal(t, callerWS, c.Reg.Workspace())
}

func TestSttimerResetsClockAndCycleCount(t *testing.T) {
	c := newRig(t)
	c.Reg.CyclesSinceReset = 1000
	c.Reg.HiClock = 50

	c.Reg.Push(0x1234) // value to drop; sttimer resets the clock, not set it
	c.loadCode(encodeDirect(DirectOpr, OpSttimer))
	c.Step()

	require.Less(t, c.Reg.CyclesSinceReset, uint64(100))
	require.Less(t, c.Reg.HiClock, uint32(5))
}

func TestBootLoadsImageAndStartsProcess(t *testing.T) {
	mem := memory.New(InternalMemStartTestBase(), 0x10000)
	c := NewCPU(mem)
	link := newFakeLink([]byte{4, 0xDE, 0xAD, 0xBE, 0xEF})
	c.Links[0] = link

	require.NoError(t, c.Boot())
	require.Equal(t, MemStart, c.Reg.I)
	require.Equal(t, Link0Input, c.Reg.C)
	require.Equal(t, bootQueueSentinel, c.Reg.HiHead)
	require.Equal(t, byte(0xDE), mem.GetByte(MemStart))
	require.Equal(t, byte(0xEF), mem.GetByte(MemStart+3))
}

// InternalMemStartTestBase places test memory 0x1000 bytes below
// memory.InternalMemStart, so MemStart and the link-channel addresses fall
// inside it and behave exactly as in production rather than needing a
// second parallel address scheme.
func InternalMemStartTestBase() uint32 { return memory.InternalMemStart - 0x1000 }

type fakeLink struct {
	in  []byte
	out []byte
}

func newFakeLink(in []byte) *fakeLink { return &fakeLink{in: in} }

func (f *fakeLink) ReadBytes(buf []byte) error {
	n := copy(buf, f.in)
	f.in = f.in[n:]
	return nil
}

func (f *fakeLink) WriteBytes(buf []byte) error {
	f.out = append(f.out, buf...)
	return nil
}
