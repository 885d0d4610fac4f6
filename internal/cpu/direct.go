package cpu

// execute dispatches a fetched direct instruction. `opr` (DirectOpr) is the
// only direct instruction that itself dispatches further, into the indirect
// table in indirect.go, keyed on the full operand register O.
func (c *CPU) execute(direct uint8) {
	o := c.Reg.O
	switch direct {
	case DirectJ:
		c.charge(3)
		if o == 0xFFFFFFFF {
			c.Log.Warnf("j -1 at I=%#x: infinite loop, terminating", c.Reg.I)
			c.Flags.Terminate = true
		} else {
			c.Reg.I += o
		}
	case DirectLdlp:
		c.charge(1)
		c.Reg.Push(c.Reg.Workspace() + 4*o)
	case DirectLdnl:
		c.charge(2)
		c.Reg.A = c.Mem.GetWord(c.Reg.A + 4*o)
	case DirectLdc:
		c.charge(1)
		c.Reg.Push(o)
	case DirectLdnlp:
		c.charge(1)
		c.Reg.A = c.Reg.A + 4*o
	case DirectLdl:
		c.charge(2)
		c.Reg.Push(c.Mem.GetWord(c.Reg.Workspace() + 4*o))
	case DirectAdc:
		c.charge(1)
		sum, overflow := overflowAdd(c.Reg.A, o)
		if overflow {
			c.Flags.Error = true
		}
		c.Reg.A = sum
	case DirectCall:
		c.charge(7)
		ws := c.Reg.Workspace()
		newWS := ws - 16
		c.Mem.SetWord(newWS, c.Reg.I)
		c.Mem.SetWord(newWS+4, c.Reg.A)
		c.Mem.SetWord(newWS+8, c.Reg.B)
		c.Mem.SetWord(newWS+12, c.Reg.C)
		retI := c.Reg.I
		c.Reg.Wdesc = newWS | uint32(c.Reg.Priority())
		c.Reg.A = retI
		c.Reg.I += o
	case DirectCj:
		c.charge(2)
		if c.Reg.A == 0 {
			c.Reg.I += o
		} else {
			c.Reg.Drop()
		}
	case DirectAjw:
		c.charge(1)
		c.Reg.Wdesc = (c.Reg.Workspace() + 4*o) | uint32(c.Reg.Priority())
	case DirectEqc:
		c.charge(1)
		if c.Reg.A == o {
			c.Reg.A = 1
		} else {
			c.Reg.A = 0
		}
	case DirectStl:
		c.charge(1)
		c.Mem.SetWord(c.Reg.Workspace()+4*o, c.Reg.A)
		c.Reg.Drop()
	case DirectStnl:
		c.charge(2)
		c.Mem.SetWord(c.Reg.A+4*o, c.Reg.B)
		c.Reg.A = c.Reg.C
	case DirectOpr:
		c.executeIndirect(o)
	default:
		c.badInstruction("impossible direct opcode %#x", direct)
	}
}
