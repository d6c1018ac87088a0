package channel

import (
	"context"
	"slices"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"

	"github.com/keboola/lockstep-cluster/internal/pkg/encoding/json"
	"github.com/keboola/lockstep-cluster/internal/pkg/idgenerator"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/group"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/network"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/transport"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

// hello is sent by a worker after the connection to the root.
type hello struct {
	Rank int `json:"rank"`
	Size int `json:"size"`
}

// welcome is the root response to the hello.
// If the Error is not empty, the worker has been rejected.
type welcome struct {
	SessionID string `json:"sessionId,omitempty"`
	Size      int    `json:"size"`
	Error     string `json:"error,omitempty"`
}

// Open forms the process group.
// The root listens and waits until all workers are connected, a worker connects to the root.
// The operation is limited by the network.Config.StartupTimeout.
func Open(ctx context.Context, d dependencies, cfg network.Config, grp group.Handle) (*Channel, error) {
	c := newChannel(d, cfg, grp)

	ctx, cancel := context.WithTimeout(ctx, cfg.StartupTimeout)
	defer cancel()

	var err error
	if grp.IsRoot() {
		err = c.openRoot(ctx)
	} else {
		err = c.openWorker(ctx)
	}
	if err != nil {
		c.closeWithCause(context.WithoutCancel(ctx), err)
		return nil, errors.PrefixErrorf(err, "cannot form the group, %s", grp.String())
	}

	c.logger.Infof(ctx, `group formed, session "%s", %s`, c.sessionID, grp.String())
	return c, nil
}

func (c *Channel) openRoot(ctx context.Context) error {
	c.sessionID = idgenerator.SessionID()

	// Single rank group, there is no one to connect
	if c.group.Size() == 1 {
		return nil
	}

	server, err := transport.Listen(c.deps, c.config)
	if err != nil {
		return err
	}
	c.server = server

	c.logger.Infof(ctx, "waiting for %d workers", c.group.Size()-1)
	for len(c.peers) < c.group.Size()-1 {
		conn, err := server.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Errorf("timeout: missing workers %v", c.missingWorkers())
			}
			return err
		}

		p, err := c.acceptWorker(ctx, conn)
		if err != nil {
			// Reject the connection and wait for another, the correct worker can still connect
			c.logger.Warnf(ctx, `rejected connection from "%s": %s`, conn.RemoteAddr(), err)
			_ = conn.Close()
			continue
		}

		c.peers[p.rank] = p
		c.logger.Infof(ctx, `worker %d joined from "%s"`, p.rank, conn.RemoteAddr())
	}

	// All workers are connected, send the session ID
	grp, _ := errgroup.WithContext(ctx)
	for _, p := range c.peers {
		grp.Go(func() error {
			return c.sendJSON(p, frameWelcome, welcome{SessionID: c.sessionID, Size: c.group.Size()})
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	c.clearDeadlines()
	return nil
}

func (c *Channel) acceptWorker(ctx context.Context, conn *transport.Conn) (*peer, error) {
	setDeadline(ctx, conn)

	p := &peer{rank: -1, conn: conn}
	var msg hello
	if err := c.receiveJSON(p, frameHello, &msg); err != nil {
		return nil, err
	}

	var rejectErr error
	switch {
	case msg.Size != c.group.Size():
		rejectErr = errors.Errorf("group size mismatch, root %d, worker %d", c.group.Size(), msg.Size)
	case msg.Rank <= group.RootRank || msg.Rank >= c.group.Size():
		rejectErr = errors.Errorf("invalid worker rank %d", msg.Rank)
	case c.peers[msg.Rank] != nil:
		rejectErr = errors.Errorf("duplicate worker rank %d", msg.Rank)
	}

	p.rank = msg.Rank
	if rejectErr != nil {
		_ = c.sendJSON(p, frameWelcome, welcome{Size: c.group.Size(), Error: rejectErr.Error()})
		return nil, rejectErr
	}

	return p, nil
}

func (c *Channel) openWorker(ctx context.Context) error {
	conn, err := transport.Dial(ctx, c.deps, c.config)
	if err != nil {
		return err
	}

	p := &peer{rank: group.RootRank, conn: conn}
	c.peers[group.RootRank] = p
	setDeadline(ctx, conn)

	if err := c.sendJSON(p, frameHello, hello{Rank: c.group.Rank(), Size: c.group.Size()}); err != nil {
		return err
	}

	var msg welcome
	if err := c.receiveJSON(p, frameWelcome, &msg); err != nil {
		if ctx.Err() != nil {
			return errors.Errorf("timeout: the root has not confirmed the group formation")
		}
		return err
	}
	if msg.Error != "" {
		return errors.Errorf("rejected by the root: %s", msg.Error)
	}

	c.sessionID = msg.SessionID
	c.clearDeadlines()
	return nil
}

func (c *Channel) missingWorkers() []int {
	var out []int
	for _, rank := range c.group.Workers() {
		if _, found := c.peers[rank]; !found {
			out = append(out, rank)
		}
	}
	return out
}

// connectedWorkers returns sorted ranks of connected workers.
func (c *Channel) connectedWorkers() []int {
	ranks := maps.Keys(c.peers)
	slices.Sort(ranks)
	return ranks
}

func (c *Channel) sendJSON(p *peer, t frameType, v any) error {
	payload, err := json.Encode(v, false)
	if err != nil {
		return err
	}
	return c.send(p, frame{Type: t, Payload: payload})
}

func (c *Channel) receiveJSON(p *peer, t frameType, v any) error {
	payload, err := c.receive(p, t, 0)
	if err != nil {
		return err
	}
	if err := json.Decode(payload, v); err != nil {
		return network.NewProtocolError(c.group.Rank(), errors.PrefixErrorf(err, "invalid %s frame", t))
	}
	return nil
}

func (c *Channel) clearDeadlines() {
	for _, p := range c.peers {
		_ = p.conn.SetDeadline(time.Time{})
	}
}

func setDeadline(ctx context.Context, conn *transport.Conn) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
}
