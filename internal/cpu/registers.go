// Package cpu implements the T800 instruction interpreter, scheduler,
// channel/ALT rendezvous engine and boot loader (§4.D, §4.E, §4.F, §4.G of
// the specification). Grounded on registers.go's flat register-struct
// layout and cpu_ie32.go's dispatch-table idiom from the teacher, generalised
// from the engine's own 32-bit ISA to the T800 stack-machine ISA described
// in original_source/Emulator/opcodes.h and flags.h.
package cpu

import "github.com/devzendo/transputer-emu/internal/memory"

// Sentinel word values, adopted verbatim from
// original_source/Shared/constants.h.
const (
	NotProcess   uint32 = 0x80000000
	Enabling     uint32 = 0x80000001
	Waiting      uint32 = 0x80000002
	Ready        uint32 = 0x80000003
	TimeSet      uint32 = 0x80000001
	TimeNotSet   uint32 = 0x80000002
	NoneSelected uint32 = 0xFFFFFFFF

	MaxQuantum uint32 = 2048
)

// Workspace offsets, in words, relative to the workspace pointer (§3).
const (
	wTemp     = 0  // outbyte/outword value; selected guard's branch offset during alt
	wIptr     = -1 // saved instruction pointer when descheduled
	wLink     = -2 // link to next process on a scheduling list
	wAltState = -3 // local buffer address during comm; ALT state during alt
	wTLink    = -4 // link to next timer process; time-set flag during alt
	wWakeTime = -5 // wake time
	wIOVal    = -6 // the waiting party's transfer length during a channel rendezvous
)

// wsAddr computes the byte address of a word-offset workspace slot. The
// offsets above are negative, so the addition is done in signed 32-bit
// space and converted back; doing it directly in uint32 would require a
// negative constant to be representable as uint32, which Go disallows.
func wsAddr(ws uint32, wordOffset int32) uint32 {
	return uint32(int32(ws) + wordOffset*4)
}

// Alt-state sentinels stored in wAltState once a guard becomes ready,
// distinct from any real channel address (channel addresses, including the
// link channel addresses below memory.InternalMemStart, all have the top
// bit set in this implementation).
const (
	altGuardSkip  uint32 = 1
	altGuardTimer uint32 = 2
)

// Priority bit carried in the low bit of a workspace descriptor.
const (
	PriorityHigh = 0
	PriorityLow  = 1
)

// Link channel addresses: eight reserved words (four outputs, four inputs)
// immediately below memory.InternalMemStart, per §3.
const (
	Link0Output = memory.InternalMemStart - 4
	Link1Output = memory.InternalMemStart - 8
	Link2Output = memory.InternalMemStart - 12
	Link3Output = memory.InternalMemStart - 16
	Link0Input  = memory.InternalMemStart - 20
	Link1Input  = memory.InternalMemStart - 24
	Link2Input  = memory.InternalMemStart - 28
	Link3Input  = memory.InternalMemStart - 32
)

// Registers holds the T800's architectural state: the three-deep integer
// stack, workspace descriptor, instruction pointer, operand register,
// queue/timer bookkeeping and clocks.
type Registers struct {
	A, B, C uint32 // integer evaluation stack: A is top

	FA, FB, FC uint32 // floating stack; present, unused by implemented ops

	Wdesc uint32 // workspace pointer | priority bit
	I     uint32 // instruction pointer
	O     uint32 // operand register

	HiHead, HiTail uint32 // high-priority run queue
	LoHead, LoTail uint32 // low-priority run queue

	HiTimerHead uint32 // high-priority timer queue head
	LoTimerHead uint32 // low-priority timer queue head

	HiClock uint32 // ticks of ~1us
	LoClock uint32 // ticks of ~64us

	CyclesSinceReset  uint64
	TotalCycles       uint64
	LoClockLastQuantumExpiry uint32
}

// Reset restores Registers to their power-on values.
func (r *Registers) Reset() {
	*r = Registers{
		HiHead: NotProcess, HiTail: NotProcess,
		LoHead: NotProcess, LoTail: NotProcess,
		HiTimerHead: NotProcess, LoTimerHead: NotProcess,
	}
}

// Priority returns the priority bit (0 = high, 1 = low) of the workspace
// descriptor.
func (r *Registers) Priority() int {
	return int(r.Wdesc & 1)
}

// Workspace returns the word-aligned workspace pointer (the descriptor with
// its priority bit masked off).
func (r *Registers) Workspace() uint32 {
	return r.Wdesc &^ 1
}

// Push shifts a new value onto the A/B/C stack: B->C, A->B, v->A.
func (r *Registers) Push(v uint32) {
	r.C = r.B
	r.B = r.A
	r.A = v
}

// Drop shifts the stack down: B->A, C->B. C is left unchanged per the
// original's semantics (it is undefined/stale after a drop, matching a real
// T800 where the bottom slot is not cleared).
func (r *Registers) Drop() {
	r.A = r.B
	r.B = r.C
}

// Clock returns the clock register (HiClock or LoClock) for the given
// priority.
func (r *Registers) Clock(priority int) uint32 {
	if priority == PriorityHigh {
		return r.HiClock
	}
	return r.LoClock
}
