package platform

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

// Console is the raw-mode keyboard/output adapter GETKEY and POLLKEY read
// from (§4.H). Grounded directly on the engine's terminal_host.go: raw mode
// via term.MakeRaw, non-blocking reads via syscall.SetNonblock, and the
// same CR→LF / DEL→BS translation, but feeding a plain byte queue instead
// of an MMIO device since the iserver has no memory-mapped bus to drive.
type Console struct {
	mu      sync.Mutex
	buf     []byte
	fd      int
	raw     bool
	oldTerm *term.State

	stopCh chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewConsole creates a Console that has not yet entered raw mode; call
// EnterRawMode before the first GETKEY/POLLKEY request.
func NewConsole() *Console {
	return &Console{fd: int(os.Stdin.Fd())}
}

// EnterRawMode puts stdin into raw, non-blocking mode and starts the
// background reader, exactly as TerminalHost.Start does.
func (c *Console) EnterRawMode() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.raw {
		return nil
	}
	oldState, err := term.MakeRaw(c.fd)
	if err != nil {
		return fmt.Errorf("platform: raw mode: %w", err)
	}
	c.oldTerm = oldState
	if err := syscall.SetNonblock(c.fd, true); err != nil {
		_ = term.Restore(c.fd, c.oldTerm)
		return fmt.Errorf("platform: non-blocking stdin: %w", err)
	}
	c.raw = true
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	go c.readLoop()
	return nil
}

func (c *Console) readLoop() {
	defer close(c.done)
	buf := make([]byte, 1)
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}
		n, err := syscall.Read(c.fd, buf)
		if n > 0 {
			b := buf[0]
			if b == '\r' {
				b = '\n'
			}
			if b == 0x7F {
				b = 0x08
			}
			c.mu.Lock()
			c.buf = append(c.buf, b)
			c.mu.Unlock()
		}
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK || n == 0 {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if err != nil {
			return
		}
	}
}

// ExitRawMode stops the reader and restores stdin to its original state.
func (c *Console) ExitRawMode() {
	c.once.Do(func() {
		c.mu.Lock()
		stopCh := c.stopCh
		c.mu.Unlock()
		if stopCh == nil {
			return
		}
		close(stopCh)
		<-c.done
		_ = syscall.SetNonblock(c.fd, false)
		if c.oldTerm != nil {
			_ = term.Restore(c.fd, c.oldTerm)
		}
	})
}

// PollKey reports whether a key is available without consuming it, for
// the REQ_POLLKEY tag.
func (c *Console) PollKey() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf) > 0
}

// GetKey blocks until a key is available, then consumes and returns it,
// for the REQ_GETKEY tag.
func (c *Console) GetKey() byte {
	for {
		c.mu.Lock()
		if len(c.buf) > 0 {
			b := c.buf[0]
			c.buf = c.buf[1:]
			c.mu.Unlock()
			return b
		}
		c.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
}
