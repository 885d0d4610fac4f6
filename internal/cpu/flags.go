package cpu

// Flags is the T800's process-wide state word, re-expressed per §9 as a
// named record with bit-level accessor methods rather than the original's
// single WORD32 manipulated via macros (flags.h's IS_FLAG_SET/SET_FLAGS/
// CLEAR_FLAGS). The bit layout below mirrors flags.h exactly so that the
// numeric values stay traceable to the original, even though callers never
// see the raw word.
type Flags struct {
	// Debug configuration (bits 0-11 in the original).
	DebugLevel       int  // DebugFlags_DebugLevel: 0=none, 1=disasm, 2=disasm+regs, 3=+oprcodes
	MemAccessDebug   int  // DebugFlags_MemAccessDebugLevel
	LinkCommsDebug   bool // DebugFlags_LinkComms
	IServerDiag      bool // DebugFlags_IDiag
	ClockDiag        bool // DebugFlags_Clocks
	QueueDiag        bool // DebugFlags_Queues
	TerminateOnMemViol bool // DebugFlags_TerminateOnMemViol
	Monitor          bool // DebugFlags_Monitor

	// Emulator/CPU state (bits 16-31 in the original).
	Error                 bool // EmulatorState_ErrorFlag
	HaltOnError           bool // EmulatorState_HaltOnError
	FError                bool // EmulatorState_FErrorFlag (floating point; unused, kept for fidelity)
	DeschedulePending     bool // EmulatorState_DeschedulePending
	DescheduleRequired    bool // EmulatorState_DescheduleRequired
	Interrupt             bool // EmulatorState_Interrupt
	BadInstruction        bool // EmulatorState_BadInstruction
	QueueInstruction      bool // EmulatorState_QueueInstruction
	TimerInstruction      bool // EmulatorState_TimerInstruction
	BreakpointInstruction bool // EmulatorState_BreakpointInstruction
	J0Break               bool // EmulatorState_J0Break
	Terminate             bool // EmulatorState_Terminate
}

// ResetPerInstruction clears the flags that flags.h's FlagMask resets before
// each instruction: DescheduleRequired, BadInstruction, TimerInstruction,
// QueueInstruction, Interrupt. Error, HaltOnError, DeschedulePending,
// Terminate and the debug bits persist across instructions.
func (f *Flags) ResetPerInstruction() {
	f.DescheduleRequired = false
	f.BadInstruction = false
	f.TimerInstruction = false
	f.QueueInstruction = false
	f.Interrupt = false
}

// Reset restores a Flags to its power-on state.
func (f *Flags) Reset() {
	*f = Flags{}
}
