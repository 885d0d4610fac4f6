package link

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStubRoundTrip(t *testing.T) {
	s := NewStub([]byte{0x11, 0x22, 0x33})
	var buf [3]byte
	require.NoError(t, s.ReadBytes(buf[:]))
	require.Equal(t, []byte{0x11, 0x22, 0x33}, buf[:])

	require.NoError(t, s.WriteBytes([]byte{0xAA, 0xBB}))
	require.Equal(t, []byte{0xAA, 0xBB}, s.Observed())
}

func TestStubExhaustedReadErrors(t *testing.T) {
	s := NewStub(nil)
	_, err := s.ReadByte()
	require.Error(t, err)
}

func TestNullDiscardsAndReadsZero(t *testing.T) {
	n := NewNull()
	require.NoError(t, n.WriteByte(0xFF))
	b, err := n.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0), b)
}

func TestWordHelpersRoundTrip(t *testing.T) {
	s := NewStub([]byte{0xEF, 0xBE, 0xAD, 0xDE})
	v, err := ReadWord(s)
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), v)

	require.NoError(t, WriteWord(s, 0x01020304))
	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, s.Observed())
}

func TestTVSReadsProgramThenInput(t *testing.T) {
	dir := t.TempDir()
	progPath := filepath.Join(dir, "prog")
	inputPath := filepath.Join(dir, "input")
	outPath := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(progPath, []byte{0x02, 0x11, 0x22}, 0644))
	require.NoError(t, os.WriteFile(inputPath, []byte{0x99}, 0644))

	tvs, err := NewTVS(progPath, inputPath, outPath)
	require.NoError(t, err)
	defer tvs.Close()

	var buf [4]byte
	require.NoError(t, tvs.ReadBytes(buf[:]))
	require.Equal(t, []byte{0x02, 0x11, 0x22, 0x99}, buf[:])

	require.NoError(t, tvs.WriteBytes([]byte{0xAB, 0xCD}))
	require.NoError(t, tvs.Close())
	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAB, 0xCD}, written)
}

// TestAsyncTransfer ticks both ends of a connected pair manually (rather
// than through Start's goroutine) so the test stays deterministic: a data
// frame plus its ack take dataFrameTicks+ackFrameTicks ticks to settle.
func TestAsyncTransfer(t *testing.T) {
	a, b := NewAsync(), NewAsync()
	Connect(a, b)

	require.NoError(t, a.WriteByte(0x42))
	for i := 0; i < dataFrameTicks+ackFrameTicks+1; i++ {
		a.tick()
		b.tick()
	}

	got, err := b.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0x42), got)
	require.Zero(t, a.Status()&StatusDataSentNotAcked)
}

func TestAsyncTimeoutWithoutPartner(t *testing.T) {
	a := NewAsync()
	require.NoError(t, a.WriteByte(0x01))
	for i := 0; i < dataFrameTicks*2+1; i++ {
		a.tick()
	}
	require.NotZero(t, a.Status()&StatusDataSentNotAcked)
}
