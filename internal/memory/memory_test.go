package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWordRoundTrip(t *testing.T) {
	m := New(0x80000000, 0x10000)
	for _, v := range []uint32{0, 1, 0xDEADBEEF, 0x7FFFFFFF, 0xFFFFFFFF} {
		addr := m.Base() + 0x100
		m.SetWord(addr, v)
		require.Equal(t, v, m.GetWord(addr))
		require.Equal(t, byte(v), m.GetByte(addr))
		require.Equal(t, byte(v>>8), m.GetByte(addr+1))
		require.Equal(t, byte(v>>16), m.GetByte(addr+2))
		require.Equal(t, byte(v>>24), m.GetByte(addr+3))
	}
}

func TestIsLegal(t *testing.T) {
	m := New(0x80000000, 0x1000)
	require.True(t, m.IsLegal(0x80000000))
	require.True(t, m.IsLegal(0x80000FFF))
	require.False(t, m.IsLegal(0x80001000))
	require.False(t, m.IsLegal(0x7FFFFFFF))
}

func TestViolationSentinel(t *testing.T) {
	m := New(0x80000000, 0x10)
	var violated bool
	m.Violation = func(addr uint32, write bool) { violated = true }
	require.Equal(t, SentinelByte, m.GetByte(0x90000000))
	require.True(t, violated)
	violated = false
	require.Equal(t, SentinelWord, m.GetWord(0x90000000))
	require.True(t, violated)
}

func TestBlockCopyAndCycles(t *testing.T) {
	m := New(0x80000000, 0x1000)
	src := m.Base() + 0x10
	dst := m.Base() + 0x40
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	require.NoError(t, m.LoadBytes(src, data))
	m.TakeCycles()
	m.BlockCopy(4, src, dst)
	require.Equal(t, uint32(2), m.TakeCycles())
	require.Equal(t, data, []byte{m.GetByte(dst), m.GetByte(dst + 1), m.GetByte(dst + 2), m.GetByte(dst + 3)})
}

func TestWordsInBlock(t *testing.T) {
	require.Equal(t, uint32(0), wordsInBlock(0, 0))
	require.Equal(t, uint32(1), wordsInBlock(0, 1))
	require.Equal(t, uint32(1), wordsInBlock(0, 4))
	require.Equal(t, uint32(2), wordsInBlock(0, 5))
	require.Equal(t, uint32(2), wordsInBlock(3, 2))
}

func TestReset(t *testing.T) {
	m := New(0x80000000, 0x100)
	m.SetByte(m.Base(), 0xFF)
	m.Reset()
	require.Equal(t, byte(0), m.GetByte(m.Base()))
}
