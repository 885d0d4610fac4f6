// Command emu is the Transputer emulator entry point: it parses the
// packed-short-flag command line, builds memory and a CPU, wires link 0
// to a host transport, runs the boot protocol, and either free-runs or
// drops into the interactive monitor.
//
// Grounded on original_source/Emulator/main.cpp's usage/showConfiguration/
// processCommandLine/main sequencing, re-expressed as idiomatic Go (no
// global mutable flags word, an error return instead of exit-in-place).
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/devzendo/transputer-emu/internal/cpu"
	"github.com/devzendo/transputer-emu/internal/diag"
	"github.com/devzendo/transputer-emu/internal/link"
	"github.com/devzendo/transputer-emu/internal/memory"
	"github.com/devzendo/transputer-emu/internal/monitor"
)

const (
	memBase        = 0x80000000
	defaultMemMB   = 4
	minMemMB       = 1
	maxMemMB       = 64
	megabyte       = 1 << 20
	defaultLinkDir = "/tmp/transputer-emu"
)

// config is the parsed command line, mirroring main.cpp's local variables
// (memSize, flags, showConf) without a package-global flags word.
type config struct {
	memMB        int
	showConf     bool
	logLevel     diag.Level
	subsystems   diag.Subsystem
	memAccess    int
	disasmLevel  int
	interactive  bool
	terminateOnMemViol bool
	linkDir      string
	linkTypes    [4]byte // 'F' (fifo, default), 'S', 'M' — only 'F' implemented
}

func defaultConfig() config {
	return config{
		memMB:     defaultMemMB,
		logLevel:  diag.LevelInfo,
		linkDir:   defaultLinkDir,
		linkTypes: [4]byte{'F', 'F', 'F', 'F'},
	}
}

func usage(prog string) {
	fmt.Println("Transputer T800 Emulator")
	fmt.Println("Usage:")
	fmt.Printf("  %s: [options]\n", prog)
	fmt.Println("Options:")
	fmt.Println("  -c    Displays configuration summary")
	fmt.Println("  -da   Enables disassembly-level debug (1)")
	fmt.Println("  -dr   Enables disassembly+registers debug (2)")
	fmt.Println("  -do   Enables disassembly+regs+opr/fpentry debug (3)")
	fmt.Println("  -df   Full debug (all subsystems)")
	fmt.Println("  -di   Enables IServer diagnostics")
	fmt.Println("  -dl   Enables link communications debug")
	fmt.Println("  -dq   Enables queues debug")
	fmt.Println("  -dc   Enables clocks/timers debug")
	fmt.Println("  -dm   Enables memory read/write debug for data")
	fmt.Println("  -dM   Enables memory read/write debug for data & instructions")
	fmt.Println("  -h    Displays this usage summary")
	fmt.Println("  -l<X> Sets log level. X is one of [diwef]. Default is i")
	fmt.Println("  -L<N><T> Sets link type. N is 0..3, T is F (FIFO, only one implemented)")
	fmt.Println("  -m<N> Sets initial memory size to N MB (1..64)")
	fmt.Println("  -r<dir> Sets the link FIFO directory (default /tmp/transputer-emu)")
	fmt.Println("  -i    Enters interactive monitor immediately")
	fmt.Println("  -t    Terminate emulation upon memory violation")
}

func showConfiguration(cfg config) {
	size := uint32(cfg.memMB) * megabyte
	fmt.Printf("Memory size:     #%08X bytes (%dMB)\n", size, cfg.memMB)
	fmt.Printf("Internal memory: #%08X to #%08X\n", memBase, memory.InternalMemStart)
	fmt.Printf("External memory: #%08X to #%08X\n", memory.InternalMemStart, memBase+size)
}

// processCommandLine mirrors main.cpp's processCommandLine switch ladder
// over argv[i][1] / argv[i][2].
func processCommandLine(args []string) (config, bool, error) {
	cfg := defaultConfig()
	for _, arg := range args {
		if len(arg) < 2 || arg[0] != '-' {
			continue
		}
		switch arg[1] {
		case 'h':
			return cfg, false, nil
		case 'c':
			cfg.showConf = true
		case 'm':
			if len(arg) < 3 {
				return cfg, false, fmt.Errorf("no argument given to -m<number>")
			}
			n, err := strconv.Atoi(arg[2:])
			if err != nil {
				return cfg, false, fmt.Errorf("%q is not of the form -m<number>", arg)
			}
			if n < minMemMB || n > maxMemMB {
				return cfg, false, fmt.Errorf("initial memory size must be in range [%d..%d] MB", minMemMB, maxMemMB)
			}
			cfg.memMB = n
		case 'r':
			if len(arg) < 3 {
				return cfg, false, fmt.Errorf("no argument given to -r<dir>")
			}
			cfg.linkDir = arg[2:]
		case 'l':
			if len(arg) < 3 {
				return cfg, false, fmt.Errorf("incorrect level given to -l<loglevel>")
			}
			lvl, ok := diag.ParseLevel(arg[2])
			if !ok {
				return cfg, false, fmt.Errorf("incorrect level given to -l<loglevel>")
			}
			cfg.logLevel = lvl
		case 'L':
			if len(arg) < 4 {
				return cfg, false, fmt.Errorf("-L<N><T> requires a link number and type")
			}
			n := int(arg[2] - '0')
			if n < 0 || n > 3 {
				return cfg, false, fmt.Errorf("link number must be 0..3")
			}
			cfg.linkTypes[n] = arg[3]
		case 'd':
			if len(arg) < 3 {
				usage(args[0])
				return cfg, false, nil
			}
			switch arg[2] {
			case 'a':
				cfg.disasmLevel = 1
			case 'r':
				cfg.disasmLevel = 2
			case 'o':
				cfg.disasmLevel = 3
			case 'f':
				cfg.disasmLevel = 3
				cfg.memAccess = 1
				cfg.subsystems = diag.SubLink | diag.SubClocks | diag.SubQueues | diag.SubIServer
			case 'i':
				cfg.subsystems |= diag.SubIServer
			case 'l':
				cfg.subsystems |= diag.SubLink
			case 'q':
				cfg.subsystems |= diag.SubQueues
			case 'c':
				cfg.subsystems |= diag.SubClocks
			case 'm':
				cfg.memAccess = 1
			case 'M':
				cfg.memAccess = 2
			default:
				usage(args[0])
				return cfg, false, nil
			}
		case 'i':
			cfg.interactive = true
		case 't':
			cfg.terminateOnMemViol = true
		}
	}
	return cfg, true, nil
}

// buildLink wires link n per cfg.linkTypes[n]: 'F' opens a host FIFO pair
// under cfg.linkDir, anything else (unimplemented in the original too,
// per main.cpp's "only FIFO implemented yet") falls back to Null.
func buildLink(cfg config, n int) link.Port {
	switch cfg.linkTypes[n] {
	case 'F':
		p, err := link.NewHostPipeCPUSide(cfg.linkDir, n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "emu: link %d: %v, using Null\n", n, err)
			return link.NewNull()
		}
		return p
	default:
		fmt.Fprintf(os.Stderr, "emu: link type %q not implemented for link %d, using Null\n", cfg.linkTypes[n], n)
		return link.NewNull()
	}
}

func run(args []string) int {
	prog := "emu"
	if len(args) > 0 {
		prog = args[0]
	}
	cfg, ok, err := processCommandLine(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "emu:", err)
		return 1
	}
	if !ok {
		usage(prog)
		return 0
	}
	if cfg.showConf {
		showConfiguration(cfg)
	}

	logger := diag.New(cfg.logLevel, cfg.subsystems)
	mem := memory.New(memBase, uint32(cfg.memMB)*megabyte)
	mem.TerminateOnViolation = cfg.terminateOnMemViol

	c := cpu.NewCPU(mem)
	c.Log = logger
	c.Flags.DebugLevel = cfg.disasmLevel
	c.Flags.MemAccessDebug = cfg.memAccess
	c.Flags.LinkCommsDebug = logger.Enabled(diag.SubLink)
	c.Flags.IServerDiag = logger.Enabled(diag.SubIServer)
	c.Flags.ClockDiag = logger.Enabled(diag.SubClocks)
	c.Flags.QueueDiag = logger.Enabled(diag.SubQueues)
	c.Flags.TerminateOnMemViol = cfg.terminateOnMemViol
	mem.Violation = func(addr uint32, write bool) {
		if cfg.terminateOnMemViol {
			c.Flags.Terminate = true
		}
	}

	for n := 0; n < 4; n++ {
		c.Links[n] = buildLink(cfg, n)
	}

	if err := c.Boot(); err != nil {
		fmt.Fprintln(os.Stderr, "emu: boot failed:", err)
		return 1
	}

	if cfg.interactive {
		c.Flags.Monitor = true
		mon := monitor.New(c, os.Stdin, os.Stdout)
		mon.Run()
		return 0
	}

	c.Run()
	return 0
}

func main() {
	os.Exit(run(os.Args))
}
