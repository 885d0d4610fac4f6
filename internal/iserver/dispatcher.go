package iserver

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/devzendo/transputer-emu/internal/diag"
	"github.com/devzendo/transputer-emu/internal/link"
	"github.com/devzendo/transputer-emu/internal/platform"
)

// ExitStatusSuccess and ExitStatusFailure are the two named REQ_EXIT status
// values protocolhandler.cpp's reqExit switches on; any other status value
// passes through verbatim as the process exit code.
const (
	ExitStatusSuccess = 0
	ExitStatusFailure = 1
)

// Dispatcher reads frames from a link.Port, dispatches them by tag to a
// handler, and writes the response frame, exactly matching
// protocolhandler.cpp's processFrame/readFrame/requestResponse/writeFrame
// loop (§4.H/4.I).
type Dispatcher struct {
	port     link.Port
	plat     *platform.Platform
	log      *diag.Log
	host, os byte // REQ_ID's platform-conditional byte pair

	badFrameCount uint64
	exitCode      int
	exited        bool
}

// New builds a Dispatcher serving requests arriving on port.
func New(port link.Port, plat *platform.Platform, log *diag.Log) *Dispatcher {
	host, osByte := hostOSBytes()
	return &Dispatcher{port: port, plat: plat, log: log, host: host, os: osByte}
}

// hostOSBytes mirrors reqId's #ifdef PLATFORM_WINDOWS/OSX/LINUX ladder via
// runtime.GOOS, since Go has no build-time platform macro to switch on here.
func hostOSBytes() (host, os byte) {
	switch runtime.GOOS {
	case "windows":
		return 0x01, 0x06
	case "darwin":
		return 0x09, 0x07
	case "linux":
		return 0x01, 0x08
	default:
		return 0x00, 0x00
	}
}

// BadFrameCount returns the count of malformed frames rejected so far
// (§7's error-handling policy).
func (d *Dispatcher) BadFrameCount() uint64 { return d.badFrameCount }

// ExitCode returns the status captured by the most recent REQ_EXIT, valid
// once Run has returned due to an exit request.
func (d *Dispatcher) ExitCode() int { return d.exitCode }

// Run reads and dispatches frames until a REQ_EXIT request is handled or
// the port returns an unrecoverable error.
func (d *Dispatcher) Run() error {
	for {
		tag, body, err := ReadFrame(d.port)
		if err != nil {
			// ReadFrame wraps transport errors; a bad length is not wrapped.
			if errors.Unwrap(err) != nil {
				return err
			}
			d.badFrameCount++
			d.log.SubDebugf(diag.SubIServer, "bad frame: %v", err)
			continue
		}
		dec := NewDecoder(body)
		var enc Encoder
		d.dispatch(tag, dec, &enc)
		if err := WriteRawFrame(d.port, enc.Bytes()); err != nil {
			return fmt.Errorf("iserver: writing response frame: %w", err)
		}
		if d.exited {
			return nil
		}
	}
}

func (d *Dispatcher) dispatch(tag byte, dec *Decoder, enc *Encoder) {
	h, ok := handlers[tag]
	if !ok {
		enc.PutU8(ResUnimplemented)
		return
	}
	h(d, dec, enc)
}

type handlerFunc func(d *Dispatcher, dec *Decoder, enc *Encoder)

// handlers covers the in-scope tag subset named by §4.H's supplemented
// feature 8; every other tag falls through to RES_UNIMPLEMENTED.
var handlers = map[byte]handlerFunc{
	ReqOpen:    (*Dispatcher).handleOpen,
	ReqClose:   (*Dispatcher).handleClose,
	ReqRead:    (*Dispatcher).handleRead,
	ReqWrite:   (*Dispatcher).handleWrite,
	ReqPuts:    (*Dispatcher).handlePuts,
	ReqGetKey:  (*Dispatcher).handleGetKey,
	ReqPollKey: (*Dispatcher).handlePollKey,
	ReqExit:    (*Dispatcher).handleExit,
	ReqID:      (*Dispatcher).handleID,
	ReqCommand: (*Dispatcher).handleCommand,
	ReqPutChar: (*Dispatcher).handlePutChar,
	ReqFlush:   (*Dispatcher).handleFlush,
	ReqIsATTY:  (*Dispatcher).handleIsATTY,
}

func streamError(enc *Encoder, err error) {
	switch {
	case errors.Is(err, platform.ErrBadStream):
		enc.PutU8(ResBadID)
	case errors.Is(err, platform.ErrNoPosition):
		enc.PutU8(ResNoPosn)
	default:
		enc.PutU8(ResError)
	}
}

// handleOpen implements REQ_OPEN: path string, then open-type and open-mode
// bytes, responding with a new stream id or an error tag.
func (d *Dispatcher) handleOpen(dec *Decoder, enc *Encoder) {
	path, err := dec.GetString()
	if err != nil {
		enc.PutU8(ResBadParams)
		return
	}
	openType, err1 := dec.GetU8()
	openMode, err2 := dec.GetU8()
	if err1 != nil || err2 != nil {
		enc.PutU8(ResBadParams)
		return
	}
	id, err := d.plat.OpenFile(path, platform.OpenType(openType), platform.OpenMode(openMode))
	if err != nil {
		enc.PutU8(ResNoFile)
		return
	}
	enc.PutU8(ResSuccess)
	enc.PutU32(id)
}

// handleClose implements REQ_CLOSE: stream id, no other fields.
func (d *Dispatcher) handleClose(dec *Decoder, enc *Encoder) {
	id, err := dec.GetU32()
	if err != nil {
		enc.PutU8(ResBadParams)
		return
	}
	if err := d.plat.CloseStream(id); err != nil {
		streamError(enc, err)
		return
	}
	enc.PutU8(ResSuccess)
}

// handleRead implements REQ_READ: stream id and requested length, replying
// with the actual byte count (possibly less, per §4.H's clamping rule)
// followed by the bytes themselves.
func (d *Dispatcher) handleRead(dec *Decoder, enc *Encoder) {
	id, err1 := dec.GetU32()
	length, err2 := dec.GetU32()
	if err1 != nil || err2 != nil {
		enc.PutU8(ResBadParams)
		return
	}
	data, err := d.plat.ReadStream(id, int(length))
	if err != nil {
		streamError(enc, err)
		return
	}
	enc.PutU8(ResSuccess)
	enc.PutU32(uint32(len(data)))
	enc.PutBytes(data)
}

// handleWrite implements REQ_WRITE: stream id, length, raw bytes.
func (d *Dispatcher) handleWrite(dec *Decoder, enc *Encoder) {
	id, err1 := dec.GetU32()
	length, err2 := dec.GetU32()
	if err1 != nil || err2 != nil {
		enc.PutU8(ResBadParams)
		return
	}
	data, err := dec.GetBytes(int(length))
	if err != nil {
		enc.PutU8(ResBadParams)
		return
	}
	n, err := d.plat.WriteStream(id, data)
	if err != nil {
		streamError(enc, err)
		return
	}
	enc.PutU8(ResSuccess)
	enc.PutU32(uint32(n))
}

// handlePuts implements REQ_PUTS: stream id, string, written with a
// trailing newline.
func (d *Dispatcher) handlePuts(dec *Decoder, enc *Encoder) {
	id, err1 := dec.GetU32()
	s, err2 := dec.GetString()
	if err1 != nil || err2 != nil {
		enc.PutU8(ResBadParams)
		return
	}
	if err := d.plat.Puts(id, []byte(s)); err != nil {
		streamError(enc, err)
		return
	}
	enc.PutU8(ResSuccess)
}

// handlePutChar is the PUTCHAR extension tag (§4.I): a single byte to
// stdout, without the frame round-trip a full REQ_WRITE would cost.
func (d *Dispatcher) handlePutChar(dec *Decoder, enc *Encoder) {
	b, err := dec.GetU8()
	if err != nil {
		enc.PutU8(ResBadParams)
		return
	}
	if _, err := d.plat.WriteStream(1, []byte{b}); err != nil {
		streamError(enc, err)
		return
	}
	enc.PutU8(ResSuccess)
}

func (d *Dispatcher) handleGetKey(dec *Decoder, enc *Encoder) {
	b := d.plat.Console().GetKey()
	enc.PutU8(ResAKeyReply)
	enc.PutU8(b)
}

func (d *Dispatcher) handlePollKey(dec *Decoder, enc *Encoder) {
	if d.plat.Console().PollKey() {
		enc.PutU8(ResSuccess)
	} else {
		enc.PutU8(ResNotAvailable)
	}
}

func (d *Dispatcher) handleFlush(dec *Decoder, enc *Encoder) {
	id, err := dec.GetU32()
	if err != nil {
		enc.PutU8(ResBadParams)
		return
	}
	if err := d.plat.FlushStream(id); err != nil {
		streamError(enc, err)
		return
	}
	enc.PutU8(ResSuccess)
}

func (d *Dispatcher) handleIsATTY(dec *Decoder, enc *Encoder) {
	id, err := dec.GetU32()
	if err != nil {
		enc.PutU8(ResBadParams)
		return
	}
	tty, err := d.plat.IsATTY(id)
	if err != nil {
		streamError(enc, err)
		return
	}
	enc.PutU8(ResSuccess)
	if tty {
		enc.PutU8(1)
	} else {
		enc.PutU8(0)
	}
}

// handleExit implements REQ_EXIT, mapping the client's status word to a
// process exit code exactly as protocolhandler.cpp's reqExit does, and
// marking the dispatcher loop for termination after this response is sent.
func (d *Dispatcher) handleExit(dec *Decoder, enc *Encoder) {
	status, err := dec.GetU32()
	if err != nil {
		enc.PutU8(ResBadParams)
		return
	}
	switch status {
	case ExitStatusSuccess:
		d.exitCode = 0
	case ExitStatusFailure:
		d.exitCode = 1
	default:
		d.exitCode = int(status)
	}
	d.exited = true
	enc.PutU8(ResSuccess)
}

// handleID implements REQ_ID: version byte, host/os bytes (platform-
// conditional, per reqId's #ifdef ladder), and a board byte. Board is
// fixed at 0 since this server has no link-type concept to report.
func (d *Dispatcher) handleID(dec *Decoder, enc *Encoder) {
	enc.PutU8(ResSuccess)
	enc.PutU8(0x00) // version
	enc.PutU8(d.host)
	enc.PutU8(d.os)
	enc.PutU8(0x00) // board
}

// handleCommand implements REQ_COMMAND: a "which" byte selects the full
// invocation (1) or the program-only argument string (0).
func (d *Dispatcher) handleCommand(dec *Decoder, enc *Encoder) {
	which, err := dec.GetU8()
	if err != nil {
		enc.PutU8(ResBadParams)
		return
	}
	enc.PutU8(ResSuccess)
	enc.PutString(d.plat.CommandLine(which != 0))
}
