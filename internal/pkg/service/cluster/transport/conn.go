package transport

import (
	"net"
	"time"

	"github.com/hashicorp/yamux"
)

// Conn is a bidirectional stream between a worker and the root.
type Conn struct {
	session *yamux.Session
	stream  *yamux.Stream
}

func newConn(session *yamux.Session, stream *yamux.Stream) *Conn {
	return &Conn{session: session, stream: stream}
}

func (c *Conn) Read(b []byte) (n int, err error) {
	return c.stream.Read(b)
}

func (c *Conn) Write(b []byte) (n int, err error) {
	return c.stream.Write(b)
}

func (c *Conn) SetDeadline(t time.Time) error {
	return c.stream.SetDeadline(t)
}

func (c *Conn) LocalAddr() net.Addr {
	return c.session.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.session.RemoteAddr()
}

// CloseChan is closed when the underlying session is closed, for example if the peer is dead.
func (c *Conn) CloseChan() <-chan struct{} {
	return c.session.CloseChan()
}

func (c *Conn) IsClosed() bool {
	return c.session.IsClosed()
}

// Close the stream and the session.
func (c *Conn) Close() error {
	streamErr := c.stream.Close()
	if err := c.session.Close(); err != nil {
		return err
	}
	return streamErr
}
