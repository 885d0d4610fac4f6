package cpu

// rendezvous implements the generic two-party channel handshake of §4.F: the
// first party to arrive at a channel parks its buffer address and length in
// its own workspace and deschedules; the second party performs the copy
// against whichever direction it is and wakes the first.
//
// An ALT parked in altwt is treated specially: an arriving partner does not
// consume the communication immediately (the ALT's own branch code will
// reissue the real in/out once scheduled); it only marks the guard ready and
// wakes the ALT, then registers itself as the new channel occupant exactly
// as if it had arrived first.
func (c *CPU) rendezvous(chanAddr, bufAddr, length uint32, isOutput bool) {
	other := c.Mem.GetWord(chanAddr)
	if other != NotProcess && c.isAltWaiting(other) {
		c.wakeAlt(other, chanAddr)
		other = NotProcess
	}

	if other == NotProcess {
		ws := c.Reg.Workspace()
		c.Mem.SetWord(wsAddr(ws, wAltState), bufAddr)
		c.Mem.SetWord(wsAddr(ws, wIOVal), length)
		c.Mem.SetWord(chanAddr, c.Reg.Wdesc)
		c.deschedule()
		return
	}

	otherWS := workspaceOf(other)
	otherBuf := c.Mem.GetWord(wsAddr(otherWS, wAltState))
	otherLen := c.Mem.GetWord(wsAddr(otherWS, wIOVal))
	n := length
	if otherLen < n {
		n = otherLen
	}
	if isOutput {
		c.Mem.BlockCopy(n, bufAddr, otherBuf)
	} else {
		c.Mem.BlockCopy(n, otherBuf, bufAddr)
	}
	c.Mem.SetWord(chanAddr, NotProcess)
	c.scheduleProcess(int(other&1), other)
}

func (c *CPU) isAltWaiting(wdesc uint32) bool {
	return c.Mem.GetWord(wsAddr(workspaceOf(wdesc), wAltState)) == Waiting
}

func (c *CPU) wakeAlt(wdesc, chanAddr uint32) {
	ws := workspaceOf(wdesc)
	c.Mem.SetWord(wsAddr(ws, wAltState), chanAddr)
	c.scheduleProcess(int(wdesc&1), wdesc)
}

// linkTransfer performs a synchronous transfer against a hardware link
// rather than an in-memory channel: the reserved link-channel addresses
// (Link0Output..Link3Input) bypass the two-party handshake above and talk
// directly to the wired transport.
func (c *CPU) linkTransfer(idx int, bufAddr, length uint32, isWrite bool) {
	link := c.Links[idx]
	if link == nil {
		c.Flags.Error = true
		return
	}
	buf := make([]byte, length)
	if isWrite {
		for i := uint32(0); i < length; i++ {
			buf[i] = c.Mem.GetByte(bufAddr + i)
		}
		if err := link.WriteBytes(buf); err != nil {
			c.Log.Warnf("link %d write error: %v", idx, err)
			c.Flags.Error = true
		}
		return
	}
	if err := link.ReadBytes(buf); err != nil {
		c.Log.Warnf("link %d read error: %v", idx, err)
		c.Flags.Error = true
		return
	}
	for i := uint32(0); i < length; i++ {
		c.Mem.SetByte(bufAddr+i, buf[i])
	}
}

func (c *CPU) execIn() {
	c.charge(2)
	chanAddr, dst, length := c.Reg.A, c.Reg.B, c.Reg.C
	if idx, isOutput, ok := linkIndexForChannel(chanAddr); ok && !isOutput {
		c.linkTransfer(idx, dst, length, false)
	} else {
		c.rendezvous(chanAddr, dst, length, false)
	}
}

func (c *CPU) execOut() {
	c.charge(2)
	chanAddr, src, length := c.Reg.A, c.Reg.B, c.Reg.C
	if idx, isOutput, ok := linkIndexForChannel(chanAddr); ok && isOutput {
		c.linkTransfer(idx, src, length, true)
	} else {
		c.rendezvous(chanAddr, src, length, true)
	}
}

func (c *CPU) execOutbyte() {
	c.charge(2)
	chanAddr, val := c.Reg.A, byte(c.Reg.B)
	ws := c.Reg.Workspace()
	scratch := wsAddr(ws, wTemp)
	c.Mem.SetByte(scratch, val)
	if idx, isOutput, ok := linkIndexForChannel(chanAddr); ok && isOutput {
		c.linkTransfer(idx, scratch, 1, true)
	} else {
		c.rendezvous(chanAddr, scratch, 1, true)
	}
}

func (c *CPU) execOutword() {
	c.charge(2)
	chanAddr, val := c.Reg.A, c.Reg.B
	ws := c.Reg.Workspace()
	scratch := wsAddr(ws, wTemp)
	c.Mem.SetWord(scratch, val)
	if idx, isOutput, ok := linkIndexForChannel(chanAddr); ok && isOutput {
		c.linkTransfer(idx, scratch, 4, true)
	} else {
		c.rendezvous(chanAddr, scratch, 4, true)
	}
}

// execMove implements the plain memory-to-memory block move (not a channel
// rendezvous): length, source and destination all come off the stack.
// Overlapping ranges are not copied; a warning is logged instead.
func (c *CPU) execMove() {
	c.charge(4)
	length, src, dst := c.Reg.A, c.Reg.B, c.Reg.C
	if length != 0 && src < dst+length && dst < src+length {
		c.Log.Warnf("move: overlapping ranges %#x and %#x (%d bytes), not copied", src, dst, length)
		return
	}
	c.Mem.BlockCopy(length, src, dst)
}
