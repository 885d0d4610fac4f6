// Package iserver implements the host-side file/console server the CPU's
// link 0 talks to (§4.H/4.I): a length-prefixed binary frame codec, the
// request/response tag catalogue, and the dispatcher loop that turns
// decoded requests into internal/platform calls and encodes the replies.
//
// Grounded on original_source/IServer/server/framecodec.h's FrameCodec
// (myTransactionBuffer/myReadFrameIndex/myWriteFrameIndex, put/get8/get16/
// get32/getString, resetWriteFrame/fillInFrameSize) and protocolhandler.cpp
// (the tag-dispatch handler table and its range_error/invalid_argument to
// response-tag mapping).
package iserver

import (
	"encoding/binary"
	"fmt"

	"github.com/devzendo/transputer-emu/internal/link"
)

// FrameMin, FrameMax and StringMax are §4.H's frame-size limits: a
// transaction buffer of 512 bytes holds the 2-byte length prefix, so the
// payload (tag + fields) ranges from a bare tag (zero-padded to 6) up to
// 510 bytes; strings are length-prefixed within that with a 2-byte own
// length field, and StringMax caps them at FrameMax-2-2=506 bytes.
const (
	FrameMin  = 6
	FrameMax  = 510
	StringMax = FrameMax - 2 - 2
)

// ReadFrame reads one length-prefixed frame from p and splits it into its
// tag byte and remaining body. It returns an error for any length outside
// [FrameMin, FrameMax] or an odd length, matching §7's bad-frame rule; the
// caller is responsible for counting these and continuing to read (a bad
// frame does not desynchronise the stream because the length prefix was
// still read correctly).
func ReadFrame(p link.Port) (tag byte, body []byte, err error) {
	var lenBuf [2]byte
	if err := p.ReadBytes(lenBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("iserver: reading frame length: %w", err)
	}
	n := int(binary.LittleEndian.Uint16(lenBuf[:]))
	if n < FrameMin || n > FrameMax || n%2 != 0 {
		// Still drain the declared payload so the stream stays in sync.
		if n > 0 {
			discard := make([]byte, n)
			_ = p.ReadBytes(discard)
		}
		return 0, nil, fmt.Errorf("iserver: bad frame length %d", n)
	}
	payload := make([]byte, n)
	if err := p.ReadBytes(payload); err != nil {
		return 0, nil, fmt.Errorf("iserver: reading frame payload: %w", err)
	}
	return payload[0], payload[1:], nil
}

// WriteFrame encodes tag and body as a length-prefixed frame, zero-padding
// to an even length, and writes it to p (§4.H's "payload size 6-510 bytes
// and even" rule, framecodec.h's fillInFrameSize).
func WriteFrame(p link.Port, tag byte, body []byte) error {
	payload := make([]byte, 0, 1+len(body)+1)
	payload = append(payload, tag)
	payload = append(payload, body...)
	return writePayload(p, payload)
}

// WriteRawFrame writes payload (already starting with its own leading tag
// byte, as Encoder.PutU8(responseTag) builds it) as a length-prefixed
// frame, used for responses where the tag is the first encoded field
// rather than a separate parameter.
func WriteRawFrame(p link.Port, payload []byte) error {
	return writePayload(p, append([]byte(nil), payload...))
}

func writePayload(p link.Port, payload []byte) error {
	if len(payload) < FrameMin {
		payload = append(payload, make([]byte, FrameMin-len(payload))...)
	}
	if len(payload)%2 != 0 {
		payload = append(payload, 0)
	}
	if len(payload) > FrameMax {
		return fmt.Errorf("iserver: frame payload too large (%d bytes)", len(payload))
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	if err := p.WriteBytes(lenBuf[:]); err != nil {
		return err
	}
	return p.WriteBytes(payload)
}

// Encoder builds a frame body field by field, mirroring FrameCodec's
// put(byte8/word16/word32) plus a length-prefixed string writer.
type Encoder struct{ buf []byte }

func (e *Encoder) PutU8(v uint8)   { e.buf = append(e.buf, v) }
func (e *Encoder) PutU16(v uint16) { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }
func (e *Encoder) PutU32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }

// PutString writes a 2-byte length prefix followed by s's bytes, truncated
// to StringMax per framecodec.h's StringBufferSize.
func (e *Encoder) PutString(s string) {
	b := []byte(s)
	if len(b) > StringMax {
		b = b[:StringMax]
	}
	e.PutU16(uint16(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *Encoder) PutBytes(b []byte) { e.buf = append(e.buf, b...) }

func (e *Encoder) Bytes() []byte { return e.buf }

// Decoder reads fields sequentially out of a request body, mirroring
// FrameCodec's get8/get16/get32/getString.
type Decoder struct {
	buf []byte
	pos int
}

func NewDecoder(body []byte) *Decoder { return &Decoder{buf: body} }

func (d *Decoder) GetU8() (uint8, error) {
	if d.pos+1 > len(d.buf) {
		return 0, fmt.Errorf("iserver: frame truncated reading u8")
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *Decoder) GetU16() (uint16, error) {
	if d.pos+2 > len(d.buf) {
		return 0, fmt.Errorf("iserver: frame truncated reading u16")
	}
	v := binary.LittleEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *Decoder) GetU32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, fmt.Errorf("iserver: frame truncated reading u32")
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *Decoder) GetString() (string, error) {
	n, err := d.GetU16()
	if err != nil {
		return "", err
	}
	if d.pos+int(n) > len(d.buf) {
		return "", fmt.Errorf("iserver: frame truncated reading string")
	}
	s := string(d.buf[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

// GetBytes returns the next n raw bytes.
func (d *Decoder) GetBytes(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, fmt.Errorf("iserver: frame truncated reading %d bytes", n)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// Remaining returns the count of bytes not yet consumed.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }
