package channel

import (
	"context"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/group"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/network"
	"github.com/keboola/lockstep-cluster/internal/pkg/telemetry"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

// Broadcast sends the payload from the origin rank to all ranks, all ranks must call it with the same origin.
// The payload argument is used only on the origin rank, the received payload is returned on all ranks.
//
// It works as a barrier: each rank returns only after the payload has been delivered to all ranks.
// A payload from a worker origin is relayed by the root.
func (c *Channel) Broadcast(ctx context.Context, payload []byte, origin int) (out []byte, err error) {
	if err := c.checkRank(origin, "origin"); err != nil {
		return nil, err
	}

	err = c.operation(ctx, "broadcast", func(ctx context.Context, seq uint64) error {
		if c.group.IsRoot() {
			out, err = c.broadcastRoot(ctx, seq, payload, origin)
		} else {
			out, err = c.broadcastWorker(seq, payload, origin)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Gather collects one payload from each rank, the result is ordered by rank and it is returned on the target rank.
// Other ranks receive nil.
func (c *Channel) Gather(ctx context.Context, payload []byte, target int) (out [][]byte, err error) {
	if err := c.checkRank(target, "target"); err != nil {
		return nil, err
	}

	err = c.operation(ctx, "gather", func(ctx context.Context, seq uint64) error {
		if c.group.IsRoot() {
			out, err = c.gatherRoot(ctx, seq, payload, target)
		} else {
			out, err = c.gatherWorker(seq, payload, target)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Barrier blocks until all ranks reach the barrier.
func (c *Channel) Barrier(ctx context.Context) error {
	_, err := c.Broadcast(ctx, nil, group.RootRank)
	return err
}

func (c *Channel) broadcastRoot(ctx context.Context, seq uint64, payload []byte, origin int) ([]byte, error) {
	if origin != group.RootRank {
		var err error
		if payload, err = c.receive(c.peers[origin], frameData, seq); err != nil {
			return nil, err
		}
	}

	// Deliver the payload and wait for acknowledgments
	if err := c.eachWorker(ctx, func(p *peer) error {
		if err := c.send(p, frame{Type: frameData, Sequence: seq, Payload: payload}); err != nil {
			return err
		}
		_, err := c.receive(p, frameAck, seq)
		return err
	}); err != nil {
		return nil, err
	}
	telemetry.SpanFromContext(ctx).AddEvent("delivered")

	// All ranks have the payload, release them
	if err := c.eachWorker(ctx, func(p *peer) error {
		return c.send(p, frame{Type: frameRelease, Sequence: seq})
	}); err != nil {
		return nil, err
	}

	return payload, nil
}

func (c *Channel) broadcastWorker(seq uint64, payload []byte, origin int) ([]byte, error) {
	root := c.peers[group.RootRank]
	if origin == c.group.Rank() {
		if err := c.send(root, frame{Type: frameData, Sequence: seq, Payload: payload}); err != nil {
			return nil, err
		}
	}

	received, err := c.receive(root, frameData, seq)
	if err != nil {
		return nil, err
	}
	if err := c.send(root, frame{Type: frameAck, Sequence: seq}); err != nil {
		return nil, err
	}
	if _, err := c.receive(root, frameRelease, seq); err != nil {
		return nil, err
	}
	return received, nil
}

func (c *Channel) gatherRoot(ctx context.Context, seq uint64, payload []byte, target int) ([][]byte, error) {
	out := make([][]byte, c.group.Size())
	out[group.RootRank] = payload
	if err := c.eachWorker(ctx, func(p *peer) error {
		received, err := c.receive(p, frameGather, seq)
		if err != nil {
			return err
		}
		out[p.rank] = received
		return nil
	}); err != nil {
		return nil, err
	}

	if target == group.RootRank {
		return out, nil
	}

	// Relay the result to the target worker
	encoded, err := msgpack.Marshal(out)
	if err != nil {
		return nil, errors.PrefixError(err, "cannot encode gathered payloads")
	}
	if err := c.send(c.peers[target], frame{Type: frameGather, Sequence: seq, Payload: encoded}); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *Channel) gatherWorker(seq uint64, payload []byte, target int) ([][]byte, error) {
	root := c.peers[group.RootRank]
	if err := c.send(root, frame{Type: frameGather, Sequence: seq, Payload: payload}); err != nil {
		return nil, err
	}

	if target != c.group.Rank() {
		return nil, nil
	}

	encoded, err := c.receive(root, frameGather, seq)
	if err != nil {
		return nil, err
	}
	var out [][]byte
	if err := msgpack.Unmarshal(encoded, &out); err != nil {
		return nil, network.NewProtocolError(c.group.Rank(), errors.PrefixError(err, "cannot decode gathered payloads"))
	}
	if len(out) != c.group.Size() {
		return nil, network.NewProtocolError(c.group.Rank(), errors.Errorf("gathered %d payloads, expected %d", len(out), c.group.Size()))
	}
	return out, nil
}

// eachWorker runs the operation for each connected worker in parallel, on the root rank.
// The first error closes the channel, so the operations waiting for other workers are unblocked.
// The first error is returned, errors caused by the closing are ignored.
func (c *Channel) eachWorker(ctx context.Context, fn func(p *peer) error) error {
	var firstErr error
	var firstErrOnce sync.Once
	grp, _ := errgroup.WithContext(ctx)
	for _, rank := range c.connectedWorkers() {
		p := c.peers[rank]
		grp.Go(func() error {
			if err := fn(p); err != nil {
				firstErrOnce.Do(func() { firstErr = err })
				c.closeWithCause(context.WithoutCancel(ctx), err)
				return err
			}
			return nil
		})
	}
	_ = grp.Wait()
	return firstErr
}
