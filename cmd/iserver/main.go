// Command iserver is the host-side file/console server that a Transputer
// program's link 0 talks to: it opens a host transport, then loops
// reading and answering request frames until REQ_EXIT, exiting with the
// status code the program requested.
//
// Grounded on original_source/Emulator/main.cpp's command-line style
// (short packed flags) adapted to the iserver's own flag set, and on
// original_source/IServer/server/protocolhandler.cpp's processFrame loop
// for the overall program shape.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/devzendo/transputer-emu/internal/diag"
	"github.com/devzendo/transputer-emu/internal/iserver"
	"github.com/devzendo/transputer-emu/internal/link"
	"github.com/devzendo/transputer-emu/internal/platform"
)

type config struct {
	linkDir    string
	rootDir    string
	logLevel   diag.Level
	subsystems diag.Subsystem
	linkNum    int
	programArgs []string
}

func defaultConfig() config {
	return config{
		linkDir:  "/tmp/transputer-emu",
		rootDir:  ".",
		logLevel: diag.LevelInfo,
		linkNum:  0,
	}
}

func usage(prog string) {
	fmt.Println("Transputer IServer")
	fmt.Println("Usage:")
	fmt.Printf("  %s: [options] [program args...]\n", prog)
	fmt.Println("Options:")
	fmt.Println("  -h       Displays this usage summary")
	fmt.Println("  -m<dir>  Link FIFO directory (default /tmp/transputer-emu)")
	fmt.Println("  -r<dir>  File-server root directory (default .)")
	fmt.Println("  -n<N>    Link number to serve on (default 0)")
	fmt.Println("  -dp      Enables protocol/dispatch debug")
	fmt.Println("  -dl      Enables link communications debug")
	fmt.Println("  -l<X>    Sets log level. X is one of [diwef]. Default is i")
	fmt.Println("  Unrecognised arguments are forwarded as the served program's argv.")
}

// processCommandLine mirrors main.cpp's processCommandLine style: packed
// single-dash short flags, with anything else forwarded as program args
// (the iserver, unlike the emulator, has a client program to pass argv to).
func processCommandLine(args []string) (config, bool, error) {
	cfg := defaultConfig()
	for _, arg := range args {
		if len(arg) < 2 || arg[0] != '-' {
			cfg.programArgs = append(cfg.programArgs, arg)
			continue
		}
		switch arg[1] {
		case 'h':
			return cfg, false, nil
		case 'm':
			if len(arg) < 3 {
				return cfg, false, fmt.Errorf("no argument given to -m<dir>")
			}
			cfg.linkDir = arg[2:]
		case 'r':
			if len(arg) < 3 {
				return cfg, false, fmt.Errorf("no argument given to -r<dir>")
			}
			cfg.rootDir = arg[2:]
		case 'n':
			if len(arg) < 3 {
				return cfg, false, fmt.Errorf("no argument given to -n<N>")
			}
			n, err := strconv.Atoi(arg[2:])
			if err != nil || n < 0 || n > 3 {
				return cfg, false, fmt.Errorf("link number must be 0..3")
			}
			cfg.linkNum = n
		case 'l':
			if len(arg) < 3 {
				return cfg, false, fmt.Errorf("incorrect level given to -l<loglevel>")
			}
			lvl, ok := diag.ParseLevel(arg[2])
			if !ok {
				return cfg, false, fmt.Errorf("incorrect level given to -l<loglevel>")
			}
			cfg.logLevel = lvl
		case 'd':
			if len(arg) < 3 {
				return cfg, false, fmt.Errorf("-d<subsystem> requires a letter")
			}
			switch arg[2] {
			case 'p':
				cfg.subsystems |= diag.SubIServer
			case 'l':
				cfg.subsystems |= diag.SubLink
			default:
				return cfg, false, fmt.Errorf("unknown -d%c subsystem", arg[2])
			}
		default:
			cfg.programArgs = append(cfg.programArgs, arg)
		}
	}
	return cfg, true, nil
}

func run(args []string) int {
	prog := "iserver"
	if len(args) > 0 {
		prog = args[0]
	}
	cfg, ok, err := processCommandLine(args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "iserver:", err)
		return 1
	}
	if !ok {
		usage(prog)
		return 0
	}

	logger := diag.New(cfg.logLevel, cfg.subsystems)

	port, err := link.NewHostPipeServerSide(cfg.linkDir, cfg.linkNum)
	if err != nil {
		fmt.Fprintln(os.Stderr, "iserver: opening link:", err)
		return 1
	}

	full := strings.Join(append([]string{prog}, cfg.programArgs...), " ")
	programOnly := strings.Join(cfg.programArgs, " ")
	plat := platform.New(cfg.rootDir, full, programOnly)
	if err := plat.Console().EnterRawMode(); err != nil {
		logger.Warnf("console raw mode unavailable: %v", err)
	} else {
		defer plat.Console().ExitRawMode()
	}

	disp := iserver.New(port, plat, logger)
	if err := disp.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "iserver:", err)
		return 1
	}
	if disp.BadFrameCount() > 0 {
		logger.Warnf("served %d bad frames", disp.BadFrameCount())
	}
	return disp.ExitCode()
}

func main() {
	os.Exit(run(os.Args))
}
