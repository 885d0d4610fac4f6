// Package link implements the Transputer link transports of §4.B/4.C: a
// bidirectional byte stream with synchronous read/write, little-endian
// word helpers, and reset. Grounded on the engine's memory_bus.go IORegion
// callback-table idiom for "a peripheral intercepts reads/writes" — here
// re-expressed as a small interface with tagged concrete implementations,
// per §9's "implementer chooses a tagged variant or a small dispatch
// table" note.
package link

import "encoding/binary"

// Port is the host-side transport a CPU link talks through. It satisfies
// internal/cpu.LinkPort (ReadBytes/WriteBytes) plus Reset, matching the
// external contract of §4.B/4.C.
type Port interface {
	ReadByte() (byte, error)
	WriteByte(b byte) error
	ReadBytes(buf []byte) error
	WriteBytes(buf []byte) error
	Reset() error
}

// ReadWord and WriteWord are little-endian word helpers built once on top
// of any Port's byte primitives, matching §4.B's "derived read_word/
// write_word (little-endian)".
func ReadWord(p Port) (uint32, error) {
	var buf [4]byte
	if err := p.ReadBytes(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func WriteWord(p Port, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return p.WriteBytes(buf[:])
}
