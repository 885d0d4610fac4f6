package cpu

// execLend implements the replicator loop-end instruction: Areg points at a
// two-word loop control block (index, count), Breg is the backward branch
// distance. While count remains above one the index is advanced, the count
// decremented, and control jumps back; otherwise the loop falls through.
func (c *CPU) execLend() {
	c.charge(5)
	addr, back := c.Reg.A, c.Reg.B
	count := c.Mem.GetWord(addr + 4)
	if count > 1 {
		c.Mem.SetWord(addr+4, count-1)
		c.Mem.SetWord(addr, c.Mem.GetWord(addr)+1)
		c.Reg.I -= back
	}
	c.Reg.Drop()
}

// execEmuQuery answers the emulator-extension query opcode; EmuQueryMemTop
// is the only sub-operation a booted program can rely on (the rest of the
// real emulator's query surface is diagnostic tooling out of scope here).
func (c *CPU) execEmuQuery() {
	c.charge(1)
	switch c.Reg.A {
	case EmuQueryMemTop:
		c.Reg.A = c.Mem.End() - 1
	default:
		c.Reg.A = 0
	}
}
