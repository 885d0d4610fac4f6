package cpu

import "math/bits"

// executeIndirect dispatches an `opr`-indirect operation, keyed on the full
// operand register (accumulated via pfix/nfix). Grounded on cpu_ie32.go's
// flat switch-based opcode dispatch, generalised to the T800's O_* table.
func (c *CPU) executeIndirect(o uint32) {
	switch o {
	case OpRev:
		c.charge(1)
		c.Reg.A, c.Reg.B = c.Reg.B, c.Reg.A
	case OpLb:
		c.charge(5)
		c.Reg.A = uint32(c.Mem.GetByte(c.Reg.A))
	case OpSb:
		c.charge(4)
		c.Mem.SetByte(c.Reg.A, byte(c.Reg.B))
		c.Reg.A = c.Reg.C
		c.Reg.B, c.Reg.C = 0, 0
		c.Reg.Drop()
	case OpBsub:
		c.charge(1)
		c.Reg.A = c.Reg.B + c.Reg.A
		c.Reg.B = c.Reg.C
	case OpWsub:
		c.charge(1)
		c.Reg.A = c.Reg.B + 4*c.Reg.A
		c.Reg.B = c.Reg.C
	case OpWsubdb:
		c.charge(1)
		c.Reg.A = c.Reg.B + 8*c.Reg.A
		c.Reg.B = c.Reg.C
	case OpDiff:
		c.charge(1)
		c.Reg.A = c.Reg.B - c.Reg.A
		c.Reg.B = c.Reg.C
	case OpAdd:
		c.charge(1)
		sum, overflow := overflowAdd(c.Reg.A, c.Reg.B)
		if overflow {
			c.Flags.Error = true
		}
		c.Reg.A = sum
		c.Reg.B = c.Reg.C
	case OpSub:
		c.charge(1)
		diff, overflow := overflowSub(c.Reg.B, c.Reg.A)
		if overflow {
			c.Flags.Error = true
		}
		c.Reg.A = diff
		c.Reg.B = c.Reg.C
	case OpProd:
		c.charge(8)
		c.Reg.A = c.Reg.A * c.Reg.B
		c.Reg.B = c.Reg.C
	case OpMul:
		c.charge(23)
		result, overflow := overflowMul(c.Reg.A, c.Reg.B)
		if overflow {
			c.Flags.Error = true
		}
		c.Reg.A = result
		c.Reg.B = c.Reg.C
	case OpDiv:
		c.charge(23)
		if c.Reg.A == 0 {
			c.Flags.Error = true
		} else {
			c.Reg.A = uint32(int32(c.Reg.B) / int32(c.Reg.A))
		}
		c.Reg.B = c.Reg.C
	case OpRem:
		c.charge(23)
		if c.Reg.A == 0 {
			c.Flags.Error = true
		} else {
			c.Reg.A = uint32(int32(c.Reg.B) % int32(c.Reg.A))
		}
		c.Reg.B = c.Reg.C
	case OpSum:
		c.charge(1)
		c.Reg.A = c.Reg.A + c.Reg.B
		c.Reg.B = c.Reg.C
	case OpGt:
		c.charge(1)
		if int32(c.Reg.B) > int32(c.Reg.A) {
			c.Reg.A = 1
		} else {
			c.Reg.A = 0
		}
		c.Reg.B = c.Reg.C
	case OpNot:
		c.charge(1)
		c.Reg.A = ^c.Reg.A
	case OpAnd:
		c.charge(1)
		c.Reg.A = c.Reg.A & c.Reg.B
		c.Reg.B = c.Reg.C
	case OpOr:
		c.charge(1)
		c.Reg.A = c.Reg.A | c.Reg.B
		c.Reg.B = c.Reg.C
	case OpXor:
		c.charge(1)
		c.Reg.A = c.Reg.A ^ c.Reg.B
		c.Reg.B = c.Reg.C
	case OpShl:
		c.charge(1)
		c.Reg.A = shiftLeft(c.Reg.B, c.Reg.A)
		c.Reg.B = c.Reg.C
	case OpShr:
		c.charge(1)
		c.Reg.A = shiftRight(c.Reg.B, c.Reg.A)
		c.Reg.B = c.Reg.C
	case OpMint:
		c.charge(1)
		c.Reg.Push(0x80000000)
	case OpDup:
		c.charge(1)
		c.Reg.Push(c.Reg.A)
	case OpCsngl:
		c.charge(1)
		if (int32(c.Reg.A) < 0) != (int32(c.Reg.B) < 0) && c.Reg.A != 0 {
			c.Flags.Error = true
		}
	case OpXdble:
		c.charge(1)
		c.Reg.C = signExtendHigh(c.Reg.A)
		c.Reg.B = c.Reg.A
	case OpLsum:
		c.charge(4)
		lo, carry := bits.Add32(c.Reg.A, c.Reg.B, 0)
		hi := c.Reg.C + carry
		c.Reg.A, c.Reg.B = lo, hi
		c.Reg.Drop()
	case OpLsub:
		c.charge(4)
		lo, borrow := bits.Sub32(c.Reg.B, c.Reg.A, 0)
		hi := c.Reg.C - borrow
		c.Reg.A, c.Reg.B = lo, hi
		c.Reg.Drop()
	case OpLdiff:
		c.charge(4)
		hi, lo := longDiff(c.Reg.C, c.Reg.B, c.Reg.A)
		c.Reg.A, c.Reg.B = lo, hi
		c.Reg.Drop()
	case OpLmul:
		c.charge(33)
		hi, lo := bits.Mul32(c.Reg.A, c.Reg.B)
		lo2, carry := bits.Add32(lo, c.Reg.C, 0)
		c.Reg.A, c.Reg.B = lo2, hi+carry
		c.Reg.Drop()
	case OpLdiv:
		c.charge(33)
		if c.Reg.A == 0 {
			c.Flags.Error = true
		} else {
			q, r := bits.Div32(c.Reg.C, c.Reg.B, c.Reg.A)
			c.Reg.A, c.Reg.B = q, r
		}
		c.Reg.Drop()
	case OpLshl:
		c.charge(5)
		hi, lo := longShiftLeft(c.Reg.C, c.Reg.B, c.Reg.A)
		c.Reg.A, c.Reg.B = lo, hi
		c.Reg.Drop()
	case OpLshr:
		c.charge(5)
		hi, lo := longShiftRight(c.Reg.C, c.Reg.B, c.Reg.A)
		c.Reg.A, c.Reg.B = lo, hi
		c.Reg.Drop()
	case OpNorm:
		c.charge(5)
		hi, lo, places := normalize(c.Reg.C, c.Reg.B)
		c.Reg.A, c.Reg.B, c.Reg.C = places, hi, lo
	case OpBcnt:
		c.charge(1)
		c.Reg.A = c.Reg.A * 4
	case OpWcnt:
		c.charge(3)
		rem := c.Reg.A % 4
		c.Reg.A = c.Reg.A / 4
		c.Reg.B = rem
	case OpBitcnt:
		c.charge(1)
		c.Reg.A = uint32(bits.OnesCount32(c.Reg.B)) + c.Reg.A
		c.Reg.B = c.Reg.C
	case OpBitrevword:
		c.charge(1)
		c.Reg.A = bits.Reverse32(c.Reg.A)
	case OpBitrevnbits:
		c.charge(1)
		n := c.Reg.A & 0x1f
		v := c.Reg.B
		c.Reg.A = bits.Reverse32(v) >> (32 - n)
		c.Reg.B = c.Reg.C
	case OpCrcword:
		c.charge(2)
		c.Reg.A = crcStep(c.Reg.A, c.Reg.B, c.Reg.C, 32)
		c.Reg.B = c.Reg.C
	case OpCrcbyte:
		c.charge(2)
		c.Reg.A = crcStep(c.Reg.A, c.Reg.B, c.Reg.C, 8)
		c.Reg.B = c.Reg.C

	// Stack/memory helpers.
	case OpXword:
		c.charge(4)
		sign := int32(c.Reg.C)
		if sign >= 0 {
			if c.Reg.A >= c.Reg.B {
				c.Reg.A = c.Reg.B
			}
		} else {
			lo := -int32(c.Reg.B)
			if int32(c.Reg.A) < lo {
				c.Reg.A = uint32(lo)
			}
		}
	case OpCword:
		c.charge(4)
		lo, hi := -int32(c.Reg.B), int32(c.Reg.B)-1
		v := int32(c.Reg.A)
		if v < lo || v > hi {
			c.Flags.Error = true
		}
		c.Reg.A = c.Reg.C
	case OpCcnt1:
		c.charge(4)
		if c.Reg.A == 0 || c.Reg.A > c.Reg.B {
			c.Flags.Error = true
		}
		c.Reg.A = c.Reg.B
		c.Reg.B = c.Reg.C
	case OpCsub0:
		c.charge(2)
		if c.Reg.A >= c.Reg.B {
			c.Flags.Error = true
		}
		c.Reg.A = c.Reg.B
		c.Reg.B = c.Reg.C
	case OpLadd:
		c.charge(2)
		sum, _ := bits.Add32(c.Reg.B, c.Reg.C, c.Reg.A&1)
		c.Reg.A = sum
	case OpSeterr:
		c.charge(1)
		c.Flags.Error = true
	case OpStoperr:
		c.charge(1)
		if c.Flags.Error {
			c.Flags.Terminate = true
		}
	case OpTesterr:
		c.charge(1)
		if c.Flags.Error {
			c.Reg.Push(0)
		} else {
			c.Reg.Push(1)
		}
		c.Flags.Error = false
	case OpClrhalterr:
		c.charge(1)
		c.Flags.HaltOnError = false
	case OpSethalterr:
		c.charge(1)
		c.Flags.HaltOnError = true
	case OpTesthalterr:
		c.charge(1)
		if c.Flags.HaltOnError {
			c.Reg.Push(1)
		} else {
			c.Reg.Push(0)
		}
	case OpTestpranal:
		c.charge(1)
		c.Reg.Push(0)

	// Control flow.
	case OpRet:
		c.charge(5)
		ws := c.Reg.Workspace()
		c.Reg.I = c.Mem.GetWord(ws)
		c.Reg.Wdesc = (ws + 16) | uint32(c.Reg.Priority())
	case OpGcall:
		c.charge(4)
		target := c.Reg.A
		c.Reg.A = c.Reg.I
		c.Reg.I = target
	case OpGajw:
		c.charge(2)
		newWS := c.Reg.A
		c.Reg.A = c.Reg.Wdesc
		c.Reg.Wdesc = newWS
	case OpLend:
		c.execLend()

	// Process/priority/timer/queue/channel/ALT: delegate to scheduler.go,
	// rendezvous.go and alt.go, which hold the cross-cutting state.
	case OpStartp:
		c.execStartp()
	case OpEndp:
		c.execEndp()
	case OpRunp:
		c.execRunp()
	case OpStopp:
		c.execStopp()
	case OpLdpri:
		c.charge(1)
		c.Reg.Push(uint32(c.Reg.Priority()))
	case OpLdpi:
		c.charge(1)
		c.Reg.A = c.Reg.A + c.Reg.I
	case OpLdtimer:
		c.charge(1)
		c.Reg.Push(c.Reg.Clock(c.Reg.Priority()))
	case OpSttimer:
		c.charge(1)
		c.Reg.CyclesSinceReset = 0
		c.Reg.Drop()
	case OpTin:
		c.execTin()
	case OpSthf:
		c.execSthf()
	case OpStlf:
		c.execStlf()
	case OpSthb:
		c.execSthb()
	case OpStlb:
		c.execStlb()
	case OpSaveh:
		c.execSaveh()
	case OpSavel:
		c.execSavel()

	case OpIn:
		c.execIn()
	case OpOut:
		c.execOut()
	case OpOutbyte:
		c.execOutbyte()
	case OpOutword:
		c.execOutword()
	case OpMove:
		c.execMove()
	case OpResetch:
		c.charge(1)
		c.Reg.A = NotProcess
		c.Mem.SetWord(c.Reg.A, NotProcess)

	case OpAlt:
		c.execAlt(false)
	case OpTalt:
		c.execAlt(true)
	case OpAltwt:
		c.execAltwt(false)
	case OpTaltwt:
		c.execAltwt(true)
	case OpAltend:
		c.execAltend()
	case OpEnbc:
		c.execEnbc()
	case OpEnbs:
		c.execEnbs()
	case OpEnbt:
		c.execEnbt()
	case OpDisc:
		c.execDisc()
	case OpDiss:
		c.execDiss()
	case OpDist:
		c.execDist()

	case OpMove2dinit:
		c.exec2DInit()
	case OpMove2dall:
		c.exec2DAll()
	case OpMove2dnonzero:
		c.exec2DNonZero()
	case OpMove2dzero:
		c.exec2DZero()

	case OpTogglemonitor:
		c.charge(1)
		c.Flags.Monitor = !c.Flags.Monitor
	case OpToggledisasm:
		c.charge(1)
		// disassembly text output is out of scope; the toggle is accepted
		// as a no-op so boot images that issue it don't hit BadInstruction.
	case OpTerminate:
		c.charge(1)
		c.Flags.Terminate = true
	case OpMarker:
		c.charge(1)
	case OpEmuquery:
		c.execEmuQuery()

	default:
		c.badInstruction("unimplemented opr code %#x", o)
	}
}

func shiftLeft(v, n uint32) uint32 {
	if n >= 32 {
		return 0
	}
	return v << n
}

func shiftRight(v, n uint32) uint32 {
	if n >= 32 {
		return 0
	}
	return v >> n
}

func signExtendHigh(v uint32) uint32 {
	if int32(v) < 0 {
		return 0xFFFFFFFF
	}
	return 0
}

func longDiff(borrowIn, a, b uint32) (hi, lo uint32) {
	lo, borrow := bits.Sub32(a, b, 0)
	hi = borrowIn - borrow
	return hi, lo
}

func longShiftLeft(hi, lo, n uint32) (outHi, outLo uint32) {
	n &= 0x3f
	v := uint64(hi)<<32 | uint64(lo)
	v <<= n
	return uint32(v >> 32), uint32(v)
}

func longShiftRight(hi, lo, n uint32) (outHi, outLo uint32) {
	n &= 0x3f
	v := uint64(hi)<<32 | uint64(lo)
	v >>= n
	return uint32(v >> 32), uint32(v)
}

func normalize(hi, lo uint32) (outHi, outLo, places uint32) {
	v := uint64(hi)<<32 | uint64(lo)
	if v == 0 {
		return 0, 0, 64
	}
	n := uint32(0)
	for v&(1<<63) == 0 {
		v <<= 1
		n++
	}
	return uint32(v >> 32), uint32(v), n
}

func crcStep(acc, val, poly uint32, nbits int) uint32 {
	for i := 0; i < nbits; i++ {
		topBit := (acc>>31)&1 ^ (val>>uint(nbits-1-i))&1
		acc <<= 1
		if topBit != 0 {
			acc ^= poly
		}
	}
	return acc
}
