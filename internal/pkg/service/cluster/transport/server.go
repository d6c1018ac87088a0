package transport

import (
	"context"
	"net"
	"sync"

	"github.com/hashicorp/yamux"
	"go.opentelemetry.io/otel/metric"

	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/network"
	"github.com/keboola/lockstep-cluster/internal/pkg/telemetry"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

// Server accepts connections from workers, it is used by the root rank.
type Server struct {
	logger    log.Logger
	config    network.Config
	transport Transport
	listener  net.Listener
	accepted  chan *Conn
	closed    chan struct{}
	wg        sync.WaitGroup

	connections metric.Int64UpDownCounter

	lock     sync.Mutex
	sessions map[string]*yamux.Session
}

type dependencies interface {
	Logger() log.Logger
	Telemetry() telemetry.Telemetry
}

func Listen(d dependencies, cfg network.Config) (*Server, error) {
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	listener, err := transport.Listen(cfg.RootAddress)
	if err != nil {
		return nil, errors.PrefixErrorf(err, `cannot listen on "%s"`, cfg.RootAddress)
	}

	s := &Server{
		logger:      d.Logger().WithComponent("cluster.transport.server"),
		config:      cfg,
		transport:   transport,
		listener:    listener,
		accepted:    make(chan *Conn),
		closed:      make(chan struct{}),
		connections: d.Telemetry().Meter().UpDownCounter("cluster.transport.connections", "Number of open worker connections.", ""),
		sessions:    make(map[string]*yamux.Session),
	}

	s.logger.Infof(context.Background(), `listening on "%s", protocol %s`, s.ListenAddr().String(), transport.Protocol())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()

	return s, nil
}

func (s *Server) ListenAddr() net.Addr {
	return s.listener.Addr()
}

// Accept waits for the next worker connection.
func (s *Server) Accept(ctx context.Context) (*Conn, error) {
	select {
	case conn := <-s.accepted:
		return conn, nil
	case <-s.closed:
		return nil, errors.New("server is closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting new connections and closes all sessions.
func (s *Server) Close(ctx context.Context) error {
	select {
	case <-s.closed:
		return nil
	default:
		close(s.closed)
	}

	s.logger.Info(ctx, "closing server")
	errs := errors.NewMultiError()
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs.Append(errors.PrefixError(err, "cannot close listener"))
	}

	s.lock.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*yamux.Session)
	s.lock.Unlock()

	s.logger.Infof(ctx, "closing %d sessions", len(sessions))
	for _, session := range sessions {
		if err := session.Close(); err != nil {
			errs.Append(errors.PrefixErrorf(err, `cannot close session "%s"`, sessionKey(session)))
		}
	}

	s.wg.Wait()
	s.logger.Info(ctx, "closed server")
	return errs.ErrorOrNil()
}

func (s *Server) acceptLoop() {
	ctx := context.Background()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.isClosed() {
				s.logger.Errorf(ctx, "cannot accept connection: %s", err)
			}
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	session, err := yamux.Server(conn, multiplexerConfig(s.logger, s.config))
	if err != nil {
		s.logger.Errorf(ctx, `cannot create session for "%s": %s`, conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}

	if !s.registerSession(session) {
		_ = session.Close()
		return
	}

	// Each worker opens exactly one stream
	stream, err := session.AcceptStream()
	if err != nil {
		if !s.isClosed() {
			s.logger.Errorf(ctx, `cannot accept stream from "%s": %s`, sessionKey(session), err)
		}
		s.unregisterSession(session)
		_ = session.Close()
		return
	}

	s.logger.Infof(ctx, `accepted connection from "%s"`, sessionKey(session))
	s.connections.Add(ctx, 1)

	select {
	case s.accepted <- newConn(session, stream):
	case <-s.closed:
		_ = stream.Close()
	}

	// Wait for the session close
	select {
	case <-session.CloseChan():
	case <-s.closed:
	}
	s.connections.Add(ctx, -1)
	s.unregisterSession(session)
}

func (s *Server) registerSession(session *yamux.Session) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.isClosed() {
		return false
	}
	s.sessions[sessionKey(session)] = session
	return true
}

func (s *Server) unregisterSession(session *yamux.Session) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.sessions, sessionKey(session))
}

func (s *Server) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func sessionKey(session *yamux.Session) string {
	return session.RemoteAddr().String()
}
