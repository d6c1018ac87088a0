// Package channel implements collective operations between ranks of the process group.
//
// The root rank is connected to each worker rank, workers are not connected to each other.
// Operations are two-phase: the root delivers a value to all workers, waits for all acknowledgments
// and then releases the workers. So each rank returns from an operation only after the value has been delivered to all ranks.
//
// Each operation has a sequence number, all ranks increment it in the same order.
// A frame with an unexpected type or sequence number means that the ranks don't agree
// on the state of the protocol, it is reported as the network.ProtocolError.
package channel

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"

	"github.com/keboola/lockstep-cluster/internal/pkg/ctxattr"
	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/group"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/network"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/transport"
	"github.com/keboola/lockstep-cluster/internal/pkg/telemetry"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

type Channel struct {
	deps      dependencies
	logger    log.Logger
	tracer    telemetry.Tracer
	config    network.Config
	group     group.Handle
	codec     frameCodec
	sessionID string
	server    *transport.Server
	// peers contains workers on the root rank, and only the root on a worker rank.
	peers    map[int]*peer
	sequence *atomic.Uint64

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error

	operations metric.Int64Counter
	duration   metric.Float64Histogram
}

type peer struct {
	rank int
	conn *transport.Conn
}

type dependencies interface {
	Logger() log.Logger
	Telemetry() telemetry.Telemetry
}

// ConnectionError means that the connection to the peer rank has been lost.
type ConnectionError struct {
	Rank int
	Err  error
}

func (e ConnectionError) Error() string {
	return fmt.Sprintf("connection to rank %d lost: %s", e.Rank, e.Err.Error())
}

func (e ConnectionError) Unwrap() error {
	return e.Err
}

func newChannel(d dependencies, cfg network.Config, grp group.Handle) *Channel {
	meter := d.Telemetry().Meter()
	return &Channel{
		deps:       d,
		logger:     d.Logger().WithComponent("cluster.channel"),
		tracer:     d.Telemetry().Tracer(),
		config:     cfg,
		group:      grp,
		codec:      newFrameCodec(cfg),
		peers:      make(map[int]*peer),
		sequence:   atomic.NewUint64(0),
		closed:     make(chan struct{}),
		operations: meter.Counter("cluster.channel.operations", "Number of collective operations.", ""),
		duration:   meter.Histogram("cluster.channel.duration", "Duration of collective operations.", "ms"),
	}
}

func (c *Channel) Group() group.Handle {
	return c.group
}

// SessionID identifies the formation of the group, it is same on all ranks.
func (c *Channel) SessionID() string {
	return c.sessionID
}

// ListenAddr returns the address of the root, or nil on a worker rank and in a single rank group.
func (c *Channel) ListenAddr() net.Addr {
	if c.server == nil {
		return nil
	}
	return c.server.ListenAddr()
}

// Closed is closed when the channel is closed, for example if the connection to the root has been lost.
func (c *Channel) Closed() <-chan struct{} {
	return c.closed
}

// Close the connections, the group cannot continue after this call.
func (c *Channel) Close(ctx context.Context) error {
	c.closeWithCause(ctx, nil)
	return c.closeErr
}

func (c *Channel) closeWithCause(ctx context.Context, cause error) {
	c.closeOnce.Do(func() {
		if cause != nil {
			c.logger.Warnf(ctx, "closing channel: %s", cause)
		} else {
			c.logger.Info(ctx, "closing channel")
		}

		close(c.closed)

		errs := errors.NewMultiError()
		for _, p := range c.peers {
			if err := p.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs.Append(errors.PrefixErrorf(err, "cannot close connection to rank %d", p.rank))
			}
		}
		if c.server != nil {
			if err := c.server.Close(ctx); err != nil {
				errs.Append(err)
			}
		}
		c.closeErr = errs.ErrorOrNil()

		c.logger.Info(ctx, "closed channel")
	})
}

func (c *Channel) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Channel) send(p *peer, f frame) error {
	if err := c.codec.write(p.conn, f); err != nil {
		if c.isClosed() {
			return errors.PrefixErrorf(err, "cannot send %s frame to rank %d: channel is closed", f.Type, p.rank)
		}
		return ConnectionError{Rank: p.rank, Err: err}
	}
	return nil
}

// receive reads the next frame from the peer, the frame must match the expected type and sequence.
func (c *Channel) receive(p *peer, expectedType frameType, expectedSeq uint64) ([]byte, error) {
	f, err := c.codec.read(p.conn)
	if err != nil {
		var corruptedErr corruptedFrameError
		if errors.As(err, &corruptedErr) {
			return nil, network.NewProtocolError(c.group.Rank(), errors.PrefixErrorf(err, "invalid frame from rank %d", p.rank))
		}
		if c.isClosed() {
			return nil, errors.PrefixErrorf(err, "cannot receive %s frame from rank %d: channel is closed", expectedType, p.rank)
		}
		return nil, ConnectionError{Rank: p.rank, Err: err}
	}

	if f.Type != expectedType {
		return nil, network.NewProtocolError(c.group.Rank(), errors.Errorf(
			"unexpected %s frame from rank %d, expected %s frame, sequence %d", f.Type, p.rank, expectedType, expectedSeq,
		))
	}
	if f.Sequence != expectedSeq {
		return nil, network.NewProtocolError(c.group.Rank(), errors.Errorf(
			"out of sequence %s frame from rank %d, expected sequence %d, found %d", f.Type, p.rank, expectedSeq, f.Sequence,
		))
	}

	return f.Payload, nil
}

// operation wraps a collective operation.
// Cancellation of the context closes the channel, because the ranks would no longer be in the same state.
func (c *Channel) operation(ctx context.Context, name string, fn func(ctx context.Context, seq uint64) error) (err error) {
	if c.isClosed() {
		return errors.Errorf("cannot %s: channel is closed", name)
	}

	seq := c.sequence.Inc()
	startTime := time.Now()

	ctx, span := c.tracer.Start(ctx, "lockstep.cluster.channel."+name)
	span.SetAttributes(ctxattr.RankKey.Int(c.group.Rank()), attribute.Int64("cluster.sequence", int64(seq)))
	defer span.End(&err)

	stop := context.AfterFunc(ctx, func() {
		c.closeWithCause(context.WithoutCancel(ctx), errors.PrefixErrorf(context.Cause(ctx), "%s %d interrupted", name, seq))
	})
	defer stop()

	c.logger.Debugf(ctx, "%s %d started", name, seq)
	err = fn(ctx, seq)

	attrs := metric.WithAttributeSet(attribute.NewSet(attribute.String("operation", name), attribute.Bool("error", err != nil)))
	c.operations.Add(ctx, 1, attrs)
	c.duration.Record(ctx, float64(time.Since(startTime).Microseconds())/1000, attrs)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.PrefixErrorf(ctxErr, "%s %d interrupted", name, seq)
		} else {
			err = errors.PrefixErrorf(err, "%s %d failed", name, seq)
		}
		// Ranks are no longer in the same state
		c.closeWithCause(context.WithoutCancel(ctx), err)
		return err
	}

	c.logger.WithDuration(time.Since(startTime)).Debugf(ctx, "%s %d done", name, seq)
	return nil
}

func (c *Channel) checkRank(rank int, role string) error {
	if rank < 0 || rank >= c.group.Size() {
		return errors.Errorf("%s rank %d is out of the group, size is %d", role, rank, c.group.Size())
	}
	return nil
}
