package cpu

import (
	"github.com/devzendo/transputer-emu/internal/memory"
)

// LinkPort is the interpreter's view of a link (§4.B/4.C): enough to
// perform the synchronous byte transfer that `in`/`out`/`outbyte`/`outword`
// need when the channel address names a link rather than ordinary memory.
// Concrete transports live in package link; the interpreter only needs this
// narrow surface, grounded on the engine's IORegion onRead/onWrite callback
// shape (memory_bus.go) generalised to byte-stream transfer.
type LinkPort interface {
	ReadBytes(buf []byte) error
	WriteBytes(buf []byte) error
}

// Logger is the narrow logging surface the interpreter needs; satisfied by
// *diag.Log (see internal/diag) without internal/cpu importing it directly,
// keeping the dependency direction the teacher uses (core emulation logs
// through a small interface, e.g. debug_interface.go's DebugLogger).
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
}

type nullLogger struct{}

func (nullLogger) Debugf(string, ...any) {}
func (nullLogger) Warnf(string, ...any)  {}
func (nullLogger) Infof(string, ...any)  {}

// CPU is the T800 instruction interpreter: registers, flags, memory and the
// four link ports it can rendezvous through.
type CPU struct {
	Reg   Registers
	Flags Flags
	Mem   *memory.Memory
	Links [4]LinkPort // index 0..3; nil if not wired to a transport

	Log Logger

	instCycles uint32 // cycles charged by the current instruction, before memory cost

	// monitorHook, if set via SetMonitorHook, is invoked after every
	// instruction that Run executes while Flags.Monitor is true.
	monitorHook func(*CPU)

	twoD twoDState
}

// twoDState holds the strides and row length set up by move2dinit, consumed
// by the move2d* family. These instructions are uninterruptible in hardware
// so this transient state never needs to survive a deschedule.
type twoDState struct {
	srcStride, dstStride, rowLength uint32
}

// NewCPU constructs a CPU over the given memory, with registers and flags
// at their power-on state.
func NewCPU(mem *memory.Memory) *CPU {
	c := &CPU{Mem: mem, Log: nullLogger{}}
	c.Reg.Reset()
	c.Flags.Reset()
	return c
}

// SetMonitorHook installs a callback invoked after each instruction Run
// executes while Flags.Monitor is set. Nothing in this repository installs
// one; internal/monitor steps the CPU by calling Step directly.
func (c *CPU) SetMonitorHook(fn func(*CPU)) { c.monitorHook = fn }

// Run executes instructions until the Terminate flag is set.
func (c *CPU) Run() {
	for !c.Flags.Terminate {
		c.Step()
		if c.Flags.Monitor && c.monitorHook != nil {
			c.monitorHook(c)
		}
	}
}

// Step executes one instruction: fetch/decode/prefix-accumulate, execute,
// then the post-execute bookkeeping pass described in §4.D. When a quantum
// expiry is pending it executes no instruction and instead requeues the
// current process and switches to the next one.
func (c *CPU) Step() {
	if c.Flags.DeschedulePending {
		c.Flags.DeschedulePending = false
		c.scheduleProcess(c.Reg.Priority(), c.Reg.Wdesc)
		c.deschedule()
		c.Reg.LoClockLastQuantumExpiry = c.Reg.LoClock
		return
	}
	direct, wasPrefix := c.fetchDecode()
	if !wasPrefix {
		c.execute(direct)
	}
	c.postExecute(wasPrefix)
}

// fetchDecode repeatedly reads one byte, folding its low nibble into O,
// until it sees a non-prefix direct instruction. It returns the winning
// direct code; prefixes (pfix/nfix) are consumed inside the loop, so the
// returned wasPrefix is always false.
func (c *CPU) fetchDecode() (direct uint8, wasPrefix bool) {
	for {
		b := c.Mem.GetInstruction(c.Reg.I)
		c.Reg.I++
		direct = b & 0xf0
		operand := uint32(b & 0x0f)
		switch direct {
		case DirectPfix:
			c.Reg.O = (c.Reg.O | operand) << 4
			c.instCycles += 1
			continue
		case DirectNfix:
			c.Reg.O = (^(c.Reg.O | operand)) << 4
			c.instCycles += 1
			continue
		default:
			c.Reg.O |= operand
			return direct, false
		}
	}
}

// postExecute implements the bookkeeping pass of §4.D, steps 1-6.
func (c *CPU) postExecute(wasPrefix bool) {
	if !wasPrefix {
		c.Reg.O = 0
	}

	// Step 2/3 (schedule-on-deschedule) are performed inline by the
	// instructions that need them (startp, endp, rendezvous blocking,
	// altwt) via c.deschedule()/c.scheduleProcess(), since the precise
	// ordering of "which process becomes current" is instruction-specific.

	cost := c.instCycles + c.Mem.TakeCycles()
	c.instCycles = 0
	c.Reg.CyclesSinceReset += uint64(cost)
	c.Reg.TotalCycles += uint64(cost)

	c.Reg.HiClock = uint32(c.Reg.CyclesSinceReset / 20)
	c.Reg.LoClock = c.Reg.HiClock / 64

	c.serviceTimers()

	if c.Reg.Priority() == PriorityLow {
		if c.Reg.LoClock-c.Reg.LoClockLastQuantumExpiry >= MaxQuantum {
			c.Flags.DeschedulePending = true
		}
	}

	if c.Flags.Error && c.Flags.HaltOnError {
		c.Flags.Terminate = true
	}
	if c.Flags.BadInstruction {
		c.Log.Warnf("bad/unimplemented instruction at I=%#x", c.Reg.I)
		c.Flags.Terminate = true
	}

	c.Flags.ResetPerInstruction()
}

// charge adds n to the cycle cost attributed to the current instruction.
func (c *CPU) charge(n uint32) { c.instCycles += n }

// linkIndexForChannel reports whether addr is one of the eight reserved
// link-channel addresses and, if so, which link and direction.
func linkIndexForChannel(addr uint32) (idx int, isOutput, ok bool) {
	switch addr {
	case Link0Output:
		return 0, true, true
	case Link1Output:
		return 1, true, true
	case Link2Output:
		return 2, true, true
	case Link3Output:
		return 3, true, true
	case Link0Input:
		return 0, false, true
	case Link1Input:
		return 1, false, true
	case Link2Input:
		return 2, false, true
	case Link3Input:
		return 3, false, true
	}
	return 0, false, false
}

func (c *CPU) badInstruction(format string, args ...any) {
	c.Flags.BadInstruction = true
	c.Log.Warnf(format, args...)
}

// overflowAdd/Sub report signed overflow when the operand signs allow it
// and the result's sign differs from the first operand's (for adc/add/sub);
// overflowMul uses the §9-recommended
// full-width sign compare, since the same-register predicate used for
// add/sub is not sufficient for multiplication overflow.
func overflowAdd(a, b uint32) (uint32, bool) {
	sum := a + b
	overflow := (int32(a) >= 0) == (int32(b) >= 0) && (int32(sum) >= 0) != (int32(a) >= 0)
	return sum, overflow
}

func overflowSub(a, b uint32) (uint32, bool) {
	diff := a - b
	overflow := (int32(a) >= 0) != (int32(b) >= 0) && (int32(diff) >= 0) != (int32(a) >= 0)
	return diff, overflow
}

func overflowMul(a, b uint32) (uint32, bool) {
	product := int64(int32(a)) * int64(int32(b))
	result := uint32(product)
	return result, product != int64(int32(result))
}
