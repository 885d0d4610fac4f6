package iserver

import (
	"testing"

	"github.com/devzendo/transputer-emu/internal/diag"
	"github.com/devzendo/transputer-emu/internal/link"
	"github.com/devzendo/transputer-emu/internal/platform"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *link.Stub) {
	t.Helper()
	stub := link.NewStub(nil)
	plat := platform.New(t.TempDir(), "iserver -m8 test", "test")
	log := diag.New(diag.LevelDebug, 0)
	return New(stub, plat, log), stub
}

// request builds a request frame's payload (tag + fields), length-prefixes
// it via a throwaway stub, and injects the resulting bytes into stub's
// input queue exactly as ReadFrame expects to consume them.
func request(t *testing.T, stub *link.Stub, tag byte, fields []byte) {
	t.Helper()
	var enc Encoder
	enc.PutU8(tag)
	enc.PutBytes(fields)
	scratch := link.NewStub(nil)
	require.NoError(t, WriteRawFrame(scratch, enc.Bytes()))
	stub.Inject(scratch.Observed())
}

func TestIDRequestMatchesSpecScenario(t *testing.T) {
	d, stub := newTestDispatcher(t)
	request(t, stub, ReqID, nil)

	tag, body, err := ReadFrame(stub)
	require.NoError(t, err)
	require.Equal(t, byte(ReqID), tag)

	var enc Encoder
	d.dispatch(tag, NewDecoder(body), &enc)
	resp := enc.Bytes()
	require.Equal(t, byte(ResSuccess), resp[0])
}

func TestExitCapturesStatus(t *testing.T) {
	d, stub := newTestDispatcher(t)
	var fields Encoder
	fields.PutU32(ExitStatusFailure)
	request(t, stub, ReqExit, fields.Bytes())

	tag, body, err := ReadFrame(stub)
	require.NoError(t, err)
	var enc Encoder
	d.dispatch(tag, NewDecoder(body), &enc)
	require.True(t, d.exited)
	require.Equal(t, 1, d.exitCode)
}

func TestUnknownTagIsUnimplemented(t *testing.T) {
	d, stub := newTestDispatcher(t)
	request(t, stub, 0xFF, nil)
	tag, body, err := ReadFrame(stub)
	require.NoError(t, err)
	var enc Encoder
	d.dispatch(tag, NewDecoder(body), &enc)
	require.Equal(t, byte(ResUnimplemented), enc.Bytes()[0])
}

func TestOpenWriteCloseRoundTrip(t *testing.T) {
	d, stub := newTestDispatcher(t)

	var openFields Encoder
	openFields.PutString("hello.txt")
	openFields.PutU8(uint8(platform.OpenText))
	openFields.PutU8(uint8(platform.ModeOutput))
	request(t, stub, ReqOpen, openFields.Bytes())
	tag, body, err := ReadFrame(stub)
	require.NoError(t, err)
	var openResp Encoder
	d.dispatch(tag, NewDecoder(body), &openResp)
	require.Equal(t, byte(ResSuccess), openResp.Bytes()[0])
	streamID := NewDecoder(openResp.Bytes()[1:])
	id, err := streamID.GetU32()
	require.NoError(t, err)

	var writeFields Encoder
	writeFields.PutU32(id)
	writeFields.PutU32(5)
	writeFields.PutBytes([]byte("world"))
	request(t, stub, ReqWrite, writeFields.Bytes())
	tag, body, err = ReadFrame(stub)
	require.NoError(t, err)
	var writeResp Encoder
	d.dispatch(tag, NewDecoder(body), &writeResp)
	require.Equal(t, byte(ResSuccess), writeResp.Bytes()[0])

	var closeFields Encoder
	closeFields.PutU32(id)
	request(t, stub, ReqClose, closeFields.Bytes())
	tag, body, err = ReadFrame(stub)
	require.NoError(t, err)
	var closeResp Encoder
	d.dispatch(tag, NewDecoder(body), &closeResp)
	require.Equal(t, byte(ResSuccess), closeResp.Bytes()[0])
}

func TestBadFrameLengthIsCountedNotFatal(t *testing.T) {
	stub := link.NewStub(nil)
	// length=1 (odd, and below FrameMin) is rejected per §7.
	stub.Inject([]byte{0x01, 0x00, 0xAA})
	_, _, err := ReadFrame(stub)
	require.Error(t, err)

	// Run counts the bad frame and reads on; it returns only when the
	// drained stub makes the next length read fail.
	d, dstub := newTestDispatcher(t)
	dstub.Inject([]byte{0x01, 0x00, 0xAA})
	require.Error(t, d.Run())
	require.Equal(t, uint64(1), d.BadFrameCount())
}
