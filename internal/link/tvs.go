package link

import (
	"fmt"
	"os"
	"sync"
)

// TVS is the file-pair link variant of §4.B/4.C: it reads a boot-image
// "program" file, then falls through to an optional "input" file once the
// program bytes are exhausted, and writes go to a separate output file.
// Used by the emulator in self-test mode to feed a boot image plus an
// input stream without a live IServer on the other end of link 0.
type TVS struct {
	mu sync.Mutex

	readData []byte
	readPos  int

	outFile *os.File
}

// NewTVS loads programPath (required) and inputPath (optional, empty to
// skip) as the concatenated read stream, and opens outputPath for writes.
func NewTVS(programPath, inputPath, outputPath string) (*TVS, error) {
	prog, err := os.ReadFile(programPath)
	if err != nil {
		return nil, fmt.Errorf("link/tvs: reading program file: %w", err)
	}
	data := append([]byte(nil), prog...)
	if inputPath != "" {
		input, err := os.ReadFile(inputPath)
		if err != nil {
			return nil, fmt.Errorf("link/tvs: reading input file: %w", err)
		}
		data = append(data, input...)
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("link/tvs: creating output file: %w", err)
	}
	return &TVS{readData: data, outFile: out}, nil
}

func (t *TVS) ReadByte() (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readPos >= len(t.readData) {
		return 0, fmt.Errorf("link/tvs: read stream exhausted")
	}
	b := t.readData[t.readPos]
	t.readPos++
	return b, nil
}

func (t *TVS) WriteByte(b byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.outFile.Write([]byte{b})
	return err
}

func (t *TVS) ReadBytes(buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readPos+len(buf) > len(t.readData) {
		return fmt.Errorf("link/tvs: read stream exhausted")
	}
	copy(buf, t.readData[t.readPos:t.readPos+len(buf)])
	t.readPos += len(buf)
	return nil
}

func (t *TVS) WriteBytes(buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.outFile.Write(buf)
	return err
}

func (t *TVS) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readPos = 0
	return nil
}

// Close flushes and closes the output file.
func (t *TVS) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outFile.Close()
}
