package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConsoleStreamsPreassigned(t *testing.T) {
	p := New(t.TempDir(), "iserver -m8", "")
	tty, err := p.IsATTY(0)
	require.NoError(t, err)
	require.True(t, tty)
	require.NoError(t, p.CloseStream(1)) // console streams survive close
}

func TestBadStreamID(t *testing.T) {
	p := New(t.TempDir(), "", "")
	_, err := p.ReadStream(99, 1)
	require.ErrorIs(t, err, ErrBadStream)
}

func TestOpenWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "", "")

	id, err := p.OpenFile("out.txt", OpenText, ModeOutput)
	require.NoError(t, err)
	n, err := p.WriteStream(id, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.NoError(t, p.CloseStream(id))

	got, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestReadAfterWriteIsNoPosition(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "", "")
	id, err := p.OpenFile("rw.txt", OpenBinary, ModeNewUpdate)
	require.NoError(t, err)

	_, err = p.WriteStream(id, []byte("ab"))
	require.NoError(t, err)
	_, err = p.ReadStream(id, 2)
	require.ErrorIs(t, err, ErrNoPosition)
}

func TestOpenRejectsPathEscape(t *testing.T) {
	p := New(t.TempDir(), "", "")
	_, err := p.OpenFile("../escape.txt", OpenBinary, ModeOutput)
	require.Error(t, err)
	_, err = p.OpenFile("/etc/passwd", OpenBinary, ModeInput)
	require.Error(t, err)
}

func TestPutsAppendsNewline(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, "", "")
	id, err := p.OpenFile("puts.txt", OpenText, ModeOutput)
	require.NoError(t, err)
	require.NoError(t, p.Puts(id, []byte("line")))
	require.NoError(t, p.CloseStream(id))

	got, err := os.ReadFile(filepath.Join(dir, "puts.txt"))
	require.NoError(t, err)
	require.Equal(t, "line\n", string(got))
}
