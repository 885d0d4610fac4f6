package monitor

import (
	"bytes"
	"strings"
	"testing"

	"github.com/devzendo/transputer-emu/internal/cpu"
	"github.com/devzendo/transputer-emu/internal/memory"
	"github.com/stretchr/testify/require"
)

func newTestCPU(t *testing.T) *cpu.CPU {
	t.Helper()
	mem := memory.New(0x80000000, 0x10000)
	c := cpu.NewCPU(mem)
	c.Reg.Wdesc = (0x80000000 + 0x8000) | cpu.PriorityLow
	c.Reg.I = 0x80000100
	return c
}

func TestParseCommandSplitsNameAndArgs(t *testing.T) {
	cmd := ParseCommand("  MEM $1000 32  ")
	require.Equal(t, "mem", cmd.Name)
	require.Equal(t, []string{"$1000", "32"}, cmd.Args)
}

func TestParseCommandEmptyLine(t *testing.T) {
	require.Equal(t, Command{}, ParseCommand("   "))
}

func TestRegsCommandPrintsRegisters(t *testing.T) {
	c := newTestCPU(t)
	var out bytes.Buffer
	m := New(c, strings.NewReader("regs\nquit\n"), &out)
	m.Run()
	require.Contains(t, out.String(), "Iptr=80000100")
}

func TestMemCommandPrintsHexDump(t *testing.T) {
	c := newTestCPU(t)
	c.Mem.SetByte(0x80000100, 0xAB)
	var out bytes.Buffer
	m := New(c, strings.NewReader("mem 0x80000100 1\nquit\n"), &out)
	m.Run()
	require.Contains(t, out.String(), "AB")
}

func TestQuitEndsLoop(t *testing.T) {
	c := newTestCPU(t)
	var out bytes.Buffer
	m := New(c, strings.NewReader("quit\n"), &out)
	m.Run() // must return, not hang
}

func TestUnknownCommandReportsError(t *testing.T) {
	c := newTestCPU(t)
	var out bytes.Buffer
	m := New(c, strings.NewReader("bogus\nquit\n"), &out)
	m.Run()
	require.Contains(t, out.String(), "unknown command")
}
