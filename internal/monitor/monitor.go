// Package monitor implements the interactive debug REPL of §4.K: regs,
// mem, step, continue, quit, read from stdin and written to an io.Writer.
//
// Grounded on the engine's debug_commands.go ParseCommand/MonitorCommand
// split (a bare name plus whitespace-separated args) and
// debug_monitor.go's ExecuteCommand switch-table shape, stripped of every
// concern that depends on the teacher's Ebiten-rendered machine view
// (breakpoints, watchpoints, disassembly, freeze/thaw, trace files) since
// this spec has no GUI and no disassembler (§1 Non-goals).
package monitor

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/devzendo/transputer-emu/internal/cpu"
)

// Command is a parsed REPL line: a name plus its whitespace-separated
// arguments, matching debug_commands.go's MonitorCommand.
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits a raw input line, lower-casing the command name.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}
	}
	fields := strings.Fields(line)
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}
}

// Monitor is a text REPL over a *cpu.CPU, reading commands from in and
// writing output to out.
type Monitor struct {
	c   *cpu.CPU
	in  *bufio.Scanner
	out io.Writer
}

// New creates a Monitor driving c, reading from in and writing to out.
func New(c *cpu.CPU, in io.Reader, out io.Writer) *Monitor {
	return &Monitor{c: c, in: bufio.NewScanner(in), out: out}
}

// Run reads commands until "quit" or EOF, dispatching each to its handler.
func (m *Monitor) Run() {
	for {
		fmt.Fprint(m.out, "> ")
		if !m.in.Scan() {
			return
		}
		cmd := ParseCommand(m.in.Text())
		if cmd.Name == "" {
			continue
		}
		if !m.execute(cmd) {
			return
		}
	}
}

// execute runs one command, returning false to end the REPL ("quit").
func (m *Monitor) execute(cmd Command) bool {
	switch cmd.Name {
	case "regs", "r":
		m.cmdRegs()
	case "mem", "m":
		m.cmdMem(cmd)
	case "step", "s":
		m.c.Step()
	case "continue", "c", "g":
		m.c.Run()
	case "quit", "q":
		return false
	case "help", "?":
		m.cmdHelp()
	default:
		fmt.Fprintf(m.out, "unknown command %q (try: regs, mem, step, continue, quit)\n", cmd.Name)
	}
	return true
}

func (m *Monitor) cmdRegs() {
	r := &m.c.Reg
	fmt.Fprintf(m.out, "Iptr=%08X Wdesc=%08X A=%08X B=%08X C=%08X Priority=%d\n",
		r.I, r.Wdesc, r.A, r.B, r.C, r.Priority())
}

// cmdMem handles "mem <addr> [len]", addr and len in hex or decimal,
// matching debug_monitor.go's cmdMemoryDump argument shape.
func (m *Monitor) cmdMem(cmd Command) {
	if len(cmd.Args) < 1 {
		fmt.Fprintln(m.out, "usage: mem <addr> [len]")
		return
	}
	addr, ok := parseAddress(cmd.Args[0])
	if !ok {
		fmt.Fprintf(m.out, "bad address %q\n", cmd.Args[0])
		return
	}
	n := 16
	if len(cmd.Args) >= 2 {
		if v, err := strconv.Atoi(cmd.Args[1]); err == nil {
			n = v
		}
	}
	fmt.Fprint(m.out, m.c.Mem.HexDump(uint32(addr), uint32(n)))
}

func (m *Monitor) cmdHelp() {
	fmt.Fprintln(m.out, "regs | mem <addr> [len] | step | continue | quit")
}

// parseAddress accepts $hex, 0xhex, bare hex, or #decimal, matching
// debug_commands.go's ParseAddress formats.
func parseAddress(s string) (uint64, bool) {
	switch {
	case strings.HasPrefix(s, "$"):
		v, err := strconv.ParseUint(s[1:], 16, 64)
		return v, err == nil
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err := strconv.ParseUint(s[2:], 16, 64)
		return v, err == nil
	case strings.HasPrefix(s, "#"):
		v, err := strconv.ParseUint(s[1:], 10, 64)
		return v, err == nil
	default:
		v, err := strconv.ParseUint(s, 16, 64)
		return v, err == nil
	}
}
