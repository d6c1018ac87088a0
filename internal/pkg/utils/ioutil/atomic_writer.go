package ioutil

import (
	"bytes"
	"io"

	"github.com/sasha-s/go-deadlock"
)

// AtomicWriter is a buffer safe for concurrent writes, for example from goroutines of all ranks of an in-process group.
// Writes are also copied to the connected writers.
type AtomicWriter struct {
	lock    deadlock.Mutex
	buffer  bytes.Buffer
	targets []io.Writer
}

func NewAtomicWriter() *AtomicWriter {
	return &AtomicWriter{}
}

// ConnectTo copies all following writes also to the writer.
func (w *AtomicWriter) ConnectTo(writer io.Writer) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.targets = append(w.targets, writer)
}

func (w *AtomicWriter) Write(p []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.buffer.Write(p)
	for _, target := range w.targets {
		if _, err := target.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *AtomicWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Sync is called by the zap logger, the buffer has nothing to flush.
func (w *AtomicWriter) Sync() error {
	return nil
}

func (w *AtomicWriter) Close() error {
	return nil
}

func (w *AtomicWriter) String() string {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.buffer.String()
}

func (w *AtomicWriter) Truncate() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.buffer.Reset()
}

func (w *AtomicWriter) StringAndTruncate() string {
	w.lock.Lock()
	defer w.lock.Unlock()
	out := w.buffer.String()
	w.buffer.Reset()
	return out
}
