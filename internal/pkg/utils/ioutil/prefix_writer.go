package ioutil

import (
	"bytes"
	"io"
	"sync"
)

// PrefixWriter adds the prefix to the beginning of each line.
// Incomplete lines are buffered until the newline or Flush.
type PrefixWriter struct {
	lock   sync.Mutex
	prefix []byte
	writer io.Writer
	line   []byte
}

func NewPrefixWriter(prefix string, writer io.Writer) *PrefixWriter {
	return &PrefixWriter{prefix: []byte(prefix), writer: writer}
}

func (w *PrefixWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	rest := p
	for len(rest) > 0 {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			w.line = append(w.line, rest...)
			break
		}
		w.line = append(w.line, rest[:i+1]...)
		rest = rest[i+1:]
		if err := w.flushLine(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Flush writes the incomplete line, if any.
func (w *PrefixWriter) Flush() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if len(w.line) == 0 {
		return nil
	}
	w.line = append(w.line, '\n')
	return w.flushLine()
}

func (w *PrefixWriter) flushLine() error {
	out := make([]byte, 0, len(w.prefix)+len(w.line))
	out = append(out, w.prefix...)
	out = append(out, w.line...)
	w.line = w.line[:0]
	_, err := w.writer.Write(out)
	return err
}
