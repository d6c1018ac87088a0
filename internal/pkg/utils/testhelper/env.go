// Package testhelper contains helpers shared by tests of all packages.
package testhelper

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/acarl005/stripansi"
	"github.com/spf13/cast"
)

// TestIsVerbose returns true if the TEST_VERBOSE ENV is set, logs of all ranks are then streamed to the test output.
func TestIsVerbose() bool {
	return cast.ToBool(os.Getenv("TEST_VERBOSE")) // nolint:forbidigo
}

func VerboseStdout() io.WriteCloser {
	return verboseWriter(os.Stdout) // nolint:forbidigo
}

func VerboseStderr() io.WriteCloser {
	return verboseWriter(os.Stderr) // nolint:forbidigo
}

func verboseWriter(w io.Writer) io.WriteCloser {
	if TestIsVerbose() {
		return &plainLineWriter{target: w}
	}
	return nopCloser{Writer: io.Discard}
}

// plainLineWriter writes complete lines without ANSI colors, a color sequence may be split between two writes.
type plainLineWriter struct {
	lock   sync.Mutex
	buf    bytes.Buffer
	target io.Writer
}

func (w *plainLineWriter) Write(p []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.buf.Write(p)
	if i := bytes.LastIndexByte(w.buf.Bytes(), '\n'); i >= 0 {
		lines := w.buf.Next(i + 1)
		if _, err := io.WriteString(w.target, stripansi.Strip(string(lines))); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *plainLineWriter) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	_, err := io.WriteString(w.target, stripansi.Strip(w.buf.String()))
	w.buf.Reset()
	return err
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}
