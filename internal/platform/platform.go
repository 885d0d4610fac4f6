// Package platform implements the host-side services the IServer
// dispatcher calls into (§4.J): a console (raw-mode keyboard plus
// unbuffered output), a wall clock, a stream table spanning the
// pre-assigned console streams and host files, and the program's
// command-line pair.
//
// Grounded on the engine's terminal_io.go (a pure state-machine device
// with its own input/output buffers, read/written by a separate host
// adapter) generalised from a single MMIO stream to the IServer's full
// stream table, and on terminal_host.go for the raw-mode console adapter.
package platform

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// ErrBadStream and ErrNoPosition are the two stream-rule violations
// reproduced from protocolhandler.cpp's range_error/invalid_argument catch
// pairs (§9, supplemented feature 9): a bad stream id, or a read-after-
// write/write-after-read without an intervening reposition.
var (
	ErrBadStream   = errors.New("platform: bad stream id")
	ErrNoPosition  = errors.New("platform: no position (read after write or write after read)")
)

// OpenType and OpenMode mirror the REQ_OPEN body fields of §4.H.
type OpenType byte

const (
	OpenBinary OpenType = iota
	OpenText
)

type OpenMode byte

const (
	ModeInput OpenMode = iota
	ModeOutput
	ModeAppend
	ModeExistingUpdate
	ModeNewUpdate
	ModeAppendUpdate
)

type lastOp int

const (
	opNone lastOp = iota
	opRead
	opWrite
)

// stream is the common representation protocolhandler.cpp's class
// hierarchy over "file stream" vs "console stream" is re-expressed as
// (§9's IServer stream polymorphism note): a variant over readable/
// writable/binary attributes plus the last-op tracking that drives NOPOSN.
type stream struct {
	file     *os.File
	readable bool
	writable bool
	binary   bool
	console  bool // stream 0/1/2: survives CLOSE as a no-op
	lastOp   lastOp
}

// Platform owns the stream table, the console, and the command-line pair.
type Platform struct {
	rootDir string
	console *Console

	streams    map[uint32]*stream
	nextStream uint32

	fullCmdline    string
	programCmdline string
}

// New creates a Platform rooted at rootDir for file-server paths (§4.H),
// with streams 0/1/2 pre-assigned to stdin/stdout/stderr exactly as
// §4.H's "Stream 0/1/2 are pre-assigned" rule requires.
func New(rootDir, fullCmdline, programCmdline string) *Platform {
	p := &Platform{
		rootDir:        rootDir,
		console:        NewConsole(),
		streams:        make(map[uint32]*stream),
		nextStream:     3,
		fullCmdline:    fullCmdline,
		programCmdline: programCmdline,
	}
	p.streams[0] = &stream{file: os.Stdin, readable: true, console: true}
	p.streams[1] = &stream{file: os.Stdout, writable: true, console: true}
	p.streams[2] = &stream{file: os.Stderr, writable: true, console: true}
	return p
}

// Console returns the platform's keyboard/terminal adapter.
func (p *Platform) Console() *Console { return p.console }

// CommandLine returns the full server invocation, or the program-only
// arguments, matching the COMMAND request's which=1/which=0 split.
func (p *Platform) CommandLine(full bool) string {
	if full {
		return p.fullCmdline
	}
	return p.programCmdline
}

// sanitizePath rejects absolute paths and traversal outside rootDir,
// grounded on the engine's file_io.go FileIODevice.sanitizePath.
func (p *Platform) sanitizePath(path string) (string, error) {
	if filepath.IsAbs(path) || strings.Contains(path, "..") {
		return "", fmt.Errorf("platform: path %q escapes root", path)
	}
	full := filepath.Join(p.rootDir, path)
	rel, err := filepath.Rel(p.rootDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("platform: path %q escapes root", path)
	}
	return full, nil
}

// OpenFile opens path under the root directory per openType/openMode and
// returns a new stream id.
func (p *Platform) OpenFile(path string, openType OpenType, mode OpenMode) (uint32, error) {
	full, err := p.sanitizePath(path)
	if err != nil {
		return 0, err
	}
	flag, readable, writable := osFlagsFor(mode)
	f, err := os.OpenFile(full, flag, 0644)
	if err != nil {
		return 0, err
	}
	id := p.nextStream
	p.nextStream++
	p.streams[id] = &stream{file: f, readable: readable, writable: writable, binary: openType == OpenBinary}
	return id, nil
}

func osFlagsFor(mode OpenMode) (flag int, readable, writable bool) {
	switch mode {
	case ModeInput:
		return os.O_RDONLY, true, false
	case ModeOutput:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, false, true
	case ModeAppend:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, false, true
	case ModeExistingUpdate:
		return os.O_RDWR, true, true
	case ModeNewUpdate:
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, true, true
	case ModeAppendUpdate:
		return os.O_RDWR | os.O_CREATE | os.O_APPEND, true, true
	}
	return os.O_RDONLY, true, false
}

func (p *Platform) lookup(id uint32) (*stream, error) {
	s, ok := p.streams[id]
	if !ok {
		return nil, ErrBadStream
	}
	return s, nil
}

// CloseStream closes a stream. Console streams (0/1/2) are a no-op that
// still reports success, per §4.H's "cannot be freed" rule.
func (p *Platform) CloseStream(id uint32) error {
	s, err := p.lookup(id)
	if err != nil {
		return err
	}
	if s.console {
		return nil
	}
	delete(p.streams, id)
	return s.file.Close()
}

// ReadStream reads up to length bytes, clamped to what the underlying
// stream actually has (§4.H's clamping rule), and enforces the read-
// after-write NOPOSN rule.
func (p *Platform) ReadStream(id uint32, length int) ([]byte, error) {
	s, err := p.lookup(id)
	if err != nil {
		return nil, err
	}
	if !s.readable {
		return nil, fmt.Errorf("platform: stream %d not readable", id)
	}
	if s.lastOp == opWrite {
		return nil, ErrNoPosition
	}
	buf := make([]byte, length)
	n, err := s.file.Read(buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	s.lastOp = opRead
	return buf[:n], nil
}

// WriteStream writes data and enforces the write-after-read NOPOSN rule.
// Writes to stdout/stderr flush immediately (§4.H); file streams do not.
func (p *Platform) WriteStream(id uint32, data []byte) (int, error) {
	s, err := p.lookup(id)
	if err != nil {
		return 0, err
	}
	if !s.writable {
		return 0, fmt.Errorf("platform: stream %d not writable", id)
	}
	if s.lastOp == opRead {
		return 0, ErrNoPosition
	}
	data = translateNewlines(s, data)
	n, err := s.file.Write(data)
	if err != nil {
		return n, err
	}
	s.lastOp = opWrite
	if id == 1 || id == 2 {
		_ = s.file.Sync()
	}
	return n, nil
}

// translateNewlines promotes bare LF to the platform newline for text
// streams, matching §4.J's "map POSIX/Windows newline conventions
// according to stream text/binary at open time."
func translateNewlines(s *stream, data []byte) []byte {
	if s.binary || runtime.GOOS != "windows" {
		return data
	}
	return []byte(strings.ReplaceAll(string(data), "\n", "\r\n"))
}

// Puts writes data followed by a platform newline, per the PUTS tag.
func (p *Platform) Puts(id uint32, data []byte) error {
	if _, err := p.WriteStream(id, data); err != nil {
		return err
	}
	nl := []byte("\n")
	_, err := p.WriteStream(id, nl)
	return err
}

// FlushStream forces any buffered writes to the host out.
func (p *Platform) FlushStream(id uint32) error {
	s, err := p.lookup(id)
	if err != nil {
		return err
	}
	return s.file.Sync()
}

// TimeMillis returns milliseconds since the Unix epoch, truncated to 32
// bits. The iserver dispatcher does not call it: REQ_TIME is answered
// with RES_UNIMPLEMENTED.
func (p *Platform) TimeMillis() uint32 {
	return uint32(time.Now().UnixMilli())
}

// IsATTY reports whether the given stream is the console.
func (p *Platform) IsATTY(id uint32) (bool, error) {
	s, err := p.lookup(id)
	if err != nil {
		return false, err
	}
	return s.console, nil
}
