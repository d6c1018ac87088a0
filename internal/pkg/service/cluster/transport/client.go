package transport

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/yamux"

	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/network"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

const (
	dialInitialInterval = 50 * time.Millisecond
	dialMaxInterval     = 2 * time.Second
)

// Dial connects the worker to the root rank.
// The root may not be listening yet, so the dial is retried until the StartupTimeout or the context cancellation.
func Dial(ctx context.Context, d dependencies, cfg network.Config) (*Conn, error) {
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	logger := d.Logger().WithComponent("cluster.transport.client")

	ctx, cancel := context.WithTimeout(ctx, cfg.StartupTimeout)
	defer cancel()

	b := newDialBackoff()
	attempt := 0
	conn, err := backoff.RetryWithData(func() (*Conn, error) {
		attempt++
		conn, err := dial(ctx, logger, transport, cfg)
		if err != nil {
			logger.Debugf(ctx, `cannot connect to "%s", attempt %d: %s`, cfg.RootAddress, attempt, err)
			return nil, err
		}
		return conn, nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, errors.PrefixErrorf(err, `cannot connect to the root "%s"`, cfg.RootAddress)
	}

	logger.Infof(ctx, `connected to the root "%s", protocol %s`, cfg.RootAddress, transport.Protocol())
	return conn, nil
}

func dial(ctx context.Context, logger log.Logger, transport Transport, cfg network.Config) (*Conn, error) {
	netConn, err := transport.Dial(ctx, cfg.RootAddress)
	if err != nil {
		return nil, err
	}

	session, err := yamux.Client(netConn, multiplexerConfig(logger, cfg))
	if err != nil {
		_ = netConn.Close()
		return nil, backoff.Permanent(err)
	}

	stream, err := session.OpenStream()
	if err != nil {
		_ = session.Close()
		return nil, err
	}

	return newConn(session, stream), nil
}

func newDialBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = dialInitialInterval
	b.MaxInterval = dialMaxInterval
	b.MaxElapsedTime = 0 // the context timeout is used instead
	b.Reset()
	return b
}
