package cpu

// Scheduler implements the cooperative two-priority run queue described in
// §4.E: a singly-linked list per priority, threaded through each
// descheduled process's own workspace (the wLink word), exactly as real
// Transputer firmware avoids any separate scheduler data structure.

func workspaceOf(wdesc uint32) uint32 { return wdesc &^ 1 }

func (c *CPU) queueEnds(priority int) (head, tail *uint32) {
	if priority == PriorityHigh {
		return &c.Reg.HiHead, &c.Reg.HiTail
	}
	return &c.Reg.LoHead, &c.Reg.LoTail
}

// scheduleProcess appends wdesc to the back of its priority's run queue.
func (c *CPU) scheduleProcess(priority int, wdesc uint32) {
	head, tail := c.queueEnds(priority)
	if *head == NotProcess {
		*head = wdesc
	} else {
		c.Mem.SetWord(wsAddr(workspaceOf(*tail), wLink), wdesc)
	}
	*tail = wdesc
}

// nextFromQueue removes and returns the process at the front of the given
// priority's run queue.
func (c *CPU) nextFromQueue(priority int) (uint32, bool) {
	head, tail := c.queueEnds(priority)
	if *head == NotProcess {
		return 0, false
	}
	wdesc := *head
	if *head == *tail {
		*head, *tail = NotProcess, NotProcess
	} else {
		*head = c.Mem.GetWord(wsAddr(workspaceOf(wdesc), wLink))
	}
	return wdesc, true
}

// deschedule saves the current process's continuation and switches to the
// next runnable process. It is the common exit path for stopp and for any
// instruction that blocks (rendezvous, altwt).
func (c *CPU) deschedule() {
	c.Mem.SetWord(wsAddr(c.Reg.Workspace(), wIptr), c.Reg.I)
	c.switchToNextProcess()
}

// switchToNextProcess loads the next process to run, high priority first,
// matching the rule that a low-priority process never pre-empts a high one
// but both queues are drained fairly within their own priority.
func (c *CPU) switchToNextProcess() {
	if wdesc, ok := c.nextFromQueue(PriorityHigh); ok {
		c.loadProcess(wdesc)
		return
	}
	if wdesc, ok := c.nextFromQueue(PriorityLow); ok {
		c.loadProcess(wdesc)
		return
	}
	c.Flags.Terminate = true
	c.Log.Warnf("run queues empty: no process left to schedule")
}

func (c *CPU) loadProcess(wdesc uint32) {
	c.Reg.Wdesc = wdesc
	c.Reg.I = c.Mem.GetWord(wsAddr(workspaceOf(wdesc), wIptr))
	if c.Reg.Priority() == PriorityLow {
		c.Reg.LoClockLastQuantumExpiry = c.Reg.LoClock
	}
}

func (c *CPU) execStartp() {
	c.charge(9)
	newWS, offset, saved := c.Reg.A, c.Reg.B, c.Reg.C
	c.Mem.SetWord(wsAddr(newWS, wIptr), c.Reg.I+offset)
	c.scheduleProcess(c.Reg.Priority(), newWS|uint32(c.Reg.Priority()))
	c.Reg.A, c.Reg.B, c.Reg.C = saved, 0, 0
}

func (c *CPU) execEndp() {
	c.charge(10)
	parentWS := c.Reg.A
	remaining := c.Mem.GetWord(wsAddr(parentWS, wTemp)) - 1
	c.Mem.SetWord(wsAddr(parentWS, wTemp), remaining)
	if remaining == 0 {
		c.scheduleProcess(c.Reg.Priority(), parentWS|uint32(c.Reg.Priority()))
	}
	c.switchToNextProcess()
}

func (c *CPU) execRunp() {
	c.charge(7)
	wdesc := c.Reg.A
	c.scheduleProcess(int(wdesc&1), wdesc)
	c.Reg.Drop()
}

func (c *CPU) execStopp() {
	c.charge(11)
	c.deschedule()
}

// serviceTimers moves timer-queue entries whose wake time has arrived onto
// their priority's run queue. Called once per instruction so that both tin
// and an ALT's timer guard see expiry promptly, and so a taltwt blocked on
// an already-pending timer is woken without any channel activity ever
// occurring (the §9 fix: the original only serviced timers from tin).
func (c *CPU) serviceTimers() {
	for _, pri := range [2]int{PriorityHigh, PriorityLow} {
		now := c.Reg.Clock(pri)
		head := c.timerHead(pri)
		for head != NotProcess {
			ws := workspaceOf(head)
			wake := c.Mem.GetWord(wsAddr(ws, wWakeTime))
			if int32(wake-now) > 0 {
				break
			}
			next := c.Mem.GetWord(wsAddr(ws, wTLink))
			c.setTimerHead(pri, next)
			if c.Mem.GetWord(wsAddr(ws, wAltState)) == Waiting {
				c.Mem.SetWord(wsAddr(ws, wAltState), altGuardTimer)
				c.scheduleProcess(pri, head)
			} else {
				c.scheduleProcess(pri, head)
			}
			head = next
		}
	}
}

func (c *CPU) timerHead(priority int) uint32 {
	if priority == PriorityHigh {
		return c.Reg.HiTimerHead
	}
	return c.Reg.LoTimerHead
}

func (c *CPU) setTimerHead(priority int, v uint32) {
	if priority == PriorityHigh {
		c.Reg.HiTimerHead = v
	} else {
		c.Reg.LoTimerHead = v
	}
}

// insertTimerQueue inserts wdesc into its priority's timer queue, ordered
// ascending by the wake time already stored at wWakeTime.
func (c *CPU) insertTimerQueue(priority int, wdesc uint32) {
	wake := c.Mem.GetWord(wsAddr(workspaceOf(wdesc), wWakeTime))
	head := c.timerHead(priority)
	if head == NotProcess {
		c.Mem.SetWord(wsAddr(workspaceOf(wdesc), wTLink), NotProcess)
		c.setTimerHead(priority, wdesc)
		return
	}
	if curWake := c.Mem.GetWord(wsAddr(workspaceOf(head), wWakeTime)); int32(wake-curWake) < 0 {
		c.Mem.SetWord(wsAddr(workspaceOf(wdesc), wTLink), head)
		c.setTimerHead(priority, wdesc)
		return
	}
	prevWS := workspaceOf(head)
	cur := c.Mem.GetWord(wsAddr(prevWS, wTLink))
	for cur != NotProcess {
		curWake := c.Mem.GetWord(wsAddr(workspaceOf(cur), wWakeTime))
		if int32(wake-curWake) < 0 {
			break
		}
		prevWS = workspaceOf(cur)
		cur = c.Mem.GetWord(wsAddr(prevWS, wTLink))
	}
	c.Mem.SetWord(wsAddr(workspaceOf(wdesc), wTLink), cur)
	c.Mem.SetWord(wsAddr(prevWS, wTLink), wdesc)
}

func (c *CPU) execTin() {
	c.charge(1)
	wake := c.Reg.A
	pri := c.Reg.Priority()
	now := c.Reg.Clock(pri)
	c.Reg.Drop()
	if int32(wake-now) <= 0 {
		return
	}
	ws := c.Reg.Workspace()
	c.Mem.SetWord(wsAddr(ws, wWakeTime), wake)
	c.insertTimerQueue(pri, c.Reg.Wdesc)
	c.deschedule()
}

func (c *CPU) execSthf() {
	c.charge(1)
	c.Reg.HiHead = c.Reg.A
	c.Reg.Drop()
}

func (c *CPU) execStlf() {
	c.charge(1)
	c.Reg.LoHead = c.Reg.A
	c.Reg.Drop()
}

func (c *CPU) execSthb() {
	c.charge(1)
	c.Reg.HiTail = c.Reg.A
	c.Reg.Drop()
}

func (c *CPU) execStlb() {
	c.charge(1)
	c.Reg.LoTail = c.Reg.A
	c.Reg.Drop()
}

func (c *CPU) execSaveh() {
	c.charge(3)
	c.Mem.SetWord(c.Reg.A, c.Reg.HiHead)
	c.Mem.SetWord(c.Reg.A+4, c.Reg.HiTail)
	c.Reg.Drop()
}

func (c *CPU) execSavel() {
	c.charge(3)
	c.Mem.SetWord(c.Reg.A, c.Reg.LoHead)
	c.Mem.SetWord(c.Reg.A+4, c.Reg.LoTail)
	c.Reg.Drop()
}
