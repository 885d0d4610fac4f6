package link

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Pipe is the host-pipe link variant of §4.B/4.C: two named FIFOs per
// link, one per direction, named "read"/"write" relative to the CPU side.
// The emulator and the iserver open opposite ends of the same pair.
// Grounded on the engine's terminal_host.go non-blocking-read-plus-sleep
// idiom, generalised from a single stdin stream to an arbitrary named FIFO
// pair, and on golang.org/x/sys/unix for the non-blocking read primitives
// terminal_host.go reaches syscall.SetNonblock/syscall.Read for.
type Pipe struct {
	readFd  int
	writeFd int
}

// fifoPaths returns the CPU-relative read/write FIFO paths for link n
// under dir, matching the naming convention of §4.B/4.C.
func fifoPaths(dir string, n int) (readPath, writePath string) {
	return fmt.Sprintf("%s/link%d.read", dir, n), fmt.Sprintf("%s/link%d.write", dir, n)
}

// NewHostPipeCPUSide creates (if absent) and opens the FIFO pair for link n
// under dir from the CPU's perspective: it reads from link%d.read and
// writes to link%d.write. The iserver side must open the same paths with
// direction reversed (see NewHostPipeServerSide).
func NewHostPipeCPUSide(dir string, n int) (*Pipe, error) {
	return newHostPipe(dir, n, false)
}

// NewHostPipeServerSide opens the same FIFO pair from the iserver's
// perspective: it writes to link%d.read (what the CPU reads) and reads
// from link%d.write (what the CPU wrote).
func NewHostPipeServerSide(dir string, n int) (*Pipe, error) {
	return newHostPipe(dir, n, true)
}

func newHostPipe(dir string, n int, serverSide bool) (*Pipe, error) {
	readPath, writePath := fifoPaths(dir, n)
	for _, p := range []string{readPath, writePath} {
		if err := unix.Mkfifo(p, 0600); err != nil && !os.IsExist(err) {
			return nil, fmt.Errorf("link/pipe: mkfifo %s: %w", p, err)
		}
	}
	myReadPath, myWritePath := readPath, writePath
	if serverSide {
		myReadPath, myWritePath = writePath, readPath
	}
	readFd, err := unix.Open(myReadPath, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("link/pipe: open %s: %w", myReadPath, err)
	}
	writeFd, err := unix.Open(myWritePath, unix.O_WRONLY, 0)
	if err != nil {
		unix.Close(readFd)
		return nil, fmt.Errorf("link/pipe: open %s: %w", myWritePath, err)
	}
	return &Pipe{readFd: readFd, writeFd: writeFd}, nil
}

func (p *Pipe) ReadByte() (byte, error) {
	var buf [1]byte
	if err := p.ReadBytes(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (p *Pipe) WriteByte(b byte) error {
	return p.WriteBytes([]byte{b})
}

// ReadBytes blocks, retrying on EAGAIN with a short sleep exactly as
// terminal_host.go's stdin loop does, until len(buf) bytes have arrived.
func (p *Pipe) ReadBytes(buf []byte) error {
	got := 0
	for got < len(buf) {
		n, err := unix.Read(p.readFd, buf[got:])
		if n > 0 {
			got += n
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if err != nil {
			return fmt.Errorf("link/pipe: read: %w", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

func (p *Pipe) WriteBytes(buf []byte) error {
	sent := 0
	for sent < len(buf) {
		n, err := unix.Write(p.writeFd, buf[sent:])
		if err != nil {
			return fmt.Errorf("link/pipe: write: %w", err)
		}
		sent += n
	}
	return nil
}

func (p *Pipe) Reset() error { return nil }

// Close releases both FIFO file descriptors.
func (p *Pipe) Close() error {
	err1 := unix.Close(p.readFd)
	err2 := unix.Close(p.writeFd)
	if err1 != nil {
		return err1
	}
	return err2
}
