// Package transport provides connections between the root rank and worker ranks.
//
// Each worker opens one session to the root. The session is multiplexed by yamux,
// it provides keep alive, so a dead peer is detected even if the rank is waiting for a command.
// Underlying protocol is TCP or KCP, a reliable UDP protocol with lower latency.
package transport

import (
	"context"
	"net"

	"github.com/hashicorp/yamux"
	"github.com/xtaci/kcp-go/v5"

	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/network"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

const (
	acceptBacklog = 256
	kcpWindowSize = 1024
)

type Transport interface {
	Protocol() network.TransportProtocol
	Listen(addr string) (net.Listener, error)
	Dial(ctx context.Context, addr string) (net.Conn, error)
}

type tcpTransport struct{}

type kcpTransport struct{}

type kcpListener struct {
	*kcp.Listener
}

func newTransport(cfg network.Config) (Transport, error) {
	switch cfg.Transport {
	case network.TransportProtocolTCP:
		return &tcpTransport{}, nil
	case network.TransportProtocolKCP:
		return &kcpTransport{}, nil
	default:
		return nil, errors.Errorf(`unexpected transport protocol "%s"`, cfg.Transport)
	}
}

func (t *tcpTransport) Protocol() network.TransportProtocol {
	return network.TransportProtocolTCP
}

func (t *tcpTransport) Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

func (t *tcpTransport) Dial(ctx context.Context, addr string) (net.Conn, error) {
	var dialer net.Dialer
	return dialer.DialContext(ctx, "tcp", addr)
}

func (t *kcpTransport) Protocol() network.TransportProtocol {
	return network.TransportProtocolKCP
}

func (t *kcpTransport) Listen(addr string) (net.Listener, error) {
	listener, err := kcp.ListenWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	return &kcpListener{Listener: listener}, nil
}

func (t *kcpTransport) Dial(_ context.Context, addr string) (net.Conn, error) {
	session, err := kcp.DialWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	tuneKCP(session)
	return session, nil
}

func (l *kcpListener) Accept() (net.Conn, error) {
	session, err := l.AcceptKCP()
	if err != nil {
		return nil, err
	}
	tuneKCP(session)
	return session, nil
}

// tuneKCP enables the "turbo" mode, the bandwidth is traded for a lower latency.
func tuneKCP(session *kcp.UDPSession) {
	session.SetStreamMode(true)
	session.SetWriteDelay(false)
	session.SetACKNoDelay(true)
	session.SetNoDelay(1, 10, 2, 1)
	session.SetWindowSize(kcpWindowSize, kcpWindowSize)
}

func multiplexerConfig(logger log.Logger, cfg network.Config) *yamux.Config {
	return &yamux.Config{
		AcceptBacklog:          acceptBacklog,
		EnableKeepAlive:        true,
		KeepAliveInterval:      cfg.KeepAliveInterval,
		ConnectionWriteTimeout: cfg.StreamWriteTimeout,
		MaxStreamWindowSize:    uint32(cfg.StreamMaxWindow.Bytes()),
		StreamOpenTimeout:      cfg.StreamOpenTimeout,
		StreamCloseTimeout:     cfg.StreamCloseTimeout,
		Logger:                 log.NewStdErrorLogger(logger.WithComponent("mux")),
	}
}
