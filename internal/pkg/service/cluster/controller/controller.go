// Package controller provides the entry point of a rank into the process group.
//
// On the root rank, the controller is idle and commands are sent by its Dispatcher.
// On a worker rank, the controller receives and executes commands until the StopWorker command.
// Closing the root controller stops all workers.
package controller

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/atomic"

	"github.com/keboola/lockstep-cluster/internal/pkg/ctxattr"
	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/channel"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/command"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/dispatcher"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/group"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/network"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/common/servicectx"
	"github.com/keboola/lockstep-cluster/internal/pkg/telemetry"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

const (
	ExitCodeSuccess = 0
	ExitCodeFailure = 1
)

type Controller struct {
	logger     log.Logger
	group      group.Handle
	channel    *channel.Channel
	serde      *command.Serde
	env        *command.Env
	dispatcher *dispatcher.Dispatcher
	exit       ExitFn

	state     *atomic.Int32
	closing   *atomic.Bool
	closeOnce sync.Once
	closeErr  error
	// done is closed when the worker loop ends, or when the root controller is closed.
	done chan struct{}
}

// ExitFn terminates the worker process, os.Exit by default.
type ExitFn func(code int)

type config struct {
	registry *command.Registry
	exit     ExitFn
}

type Option func(c *config)

// WithRegistry sets registry of commands and routines, it must be same on all ranks.
func WithRegistry(v *command.Registry) Option {
	return func(c *config) {
		c.registry = v
	}
}

// WithExitFn replaces os.Exit, it is used in tests.
func WithExitFn(v ExitFn) Option {
	return func(c *config) {
		c.exit = v
	}
}

type dependencies interface {
	Logger() log.Logger
	Telemetry() telemetry.Telemetry
	Process() *servicectx.Process
	Stdout() io.Writer
}

// New forms the group and returns the controller.
// The root returns an idle controller, a worker starts the loop receiving commands from the root.
// The controller is closed on the process shutdown.
func New(ctx context.Context, d dependencies, cfg network.Config, grp group.Handle, opts ...Option) (*Controller, error) {
	c := config{exit: os.Exit}
	for _, o := range opts {
		o(&c)
	}
	if c.registry == nil {
		c.registry = command.NewRegistry()
	}

	codec, err := command.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}

	ch, err := channel.Open(ctx, d, cfg, grp)
	if err != nil {
		return nil, err
	}

	ctrl := &Controller{
		logger:  d.Logger().WithComponent("cluster.controller"),
		group:   grp,
		channel: ch,
		serde:   command.NewSerde(c.registry, codec),
		exit:    c.exit,
		state:   atomic.NewInt32(int32(StateUninitialized)),
		closing: atomic.NewBool(false),
		done:    make(chan struct{}),
	}
	ctrl.env = &command.Env{
		Group:      grp,
		Logger:     d.Logger().WithComponent("cluster.command"),
		Collective: ch,
		Registry:   c.registry,
		Stdout:     d.Stdout(),
	}

	d.Process().OnShutdown(func(ctx context.Context) {
		if err := ctrl.Close(ctx); err != nil {
			ctrl.logger.Errorf(ctx, "cannot close controller: %s", err)
		}
	})

	if grp.IsRoot() {
		ctrl.dispatcher = dispatcher.New(d, ctrl.serde, ctrl.env)
		ctrl.setState(StateIdle)
		ctrl.logger.Infof(ctx, "root is ready, %s", grp.String())
		return ctrl, nil
	}

	ctrl.setState(StateWaitingForCommand)
	procCtx := d.Process().Ctx()
	d.Process().Add(func(_ servicectx.ShutdownFn) {
		ctrl.receiveLoop(procCtx)
	})
	return ctrl, nil
}

func (c *Controller) Group() group.Handle {
	return c.group
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

// Dispatcher sends commands to workers, it is nil on a worker rank.
func (c *Controller) Dispatcher() *dispatcher.Dispatcher {
	return c.dispatcher
}

// Env returns the execution environment of commands on this rank.
func (c *Controller) Env() *command.Env {
	return c.env
}

// Done is closed when the controller is terminated.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Close the controller.
// On the root, it stops all workers and waits until all workers have received the StopWorker command.
// On a worker, it only closes the connection, so the root will see an error.
func (c *Controller) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		errs := errors.NewMultiError()

		if c.group.IsRoot() {
			c.logger.Info(ctx, "stopping workers")
			if err := dispatcher.Broadcast[command.StopWorker](ctx, c.dispatcher); err != nil {
				errs.Append(errors.PrefixError(err, "cannot stop workers"))
			} else {
				c.logger.Info(ctx, "stopped workers")
			}
			c.setState(StateTerminated)
		}

		if err := c.channel.Close(ctx); err != nil {
			errs.Append(err)
		}

		if c.group.IsRoot() {
			close(c.done)
		}
		c.closeErr = errs.ErrorOrNil()
	})
	return c.closeErr
}

func (c *Controller) receiveLoop(ctx context.Context) {
	defer close(c.done)

	c.logger.Infof(ctx, "worker is waiting for commands, %s", c.group.String())
	if _, err := fmt.Fprintf(c.env.Stdout, "Worker %d waiting for commands...\n", c.group.Rank()); err != nil {
		c.logger.Warnf(ctx, "cannot write to stdout: %s", err)
	}
	for {
		c.setState(StateWaitingForCommand)
		payload, err := c.channel.Broadcast(telemetry.ContextWithDisabledTracing(ctx), nil, group.RootRank)
		if err != nil {
			c.fail(ctx, err)
			return
		}

		cmd, err := c.serde.Decode(payload)
		if err != nil {
			c.fail(ctx, network.NewProtocolError(c.group.Rank(), err))
			return
		}

		c.setState(StateExecuting)
		cmdCtx := ctxattr.ContextWithCommand(ctx, c.group.Rank(), string(cmd.Kind()))
		c.logger.Debugf(cmdCtx, `executing command "%s"`, cmd.Kind())
		if err := cmd.Execute(cmdCtx, c.env); err != nil {
			c.fail(ctx, errors.PrefixErrorf(err, `command "%s" failed`, cmd.Kind()))
			return
		}

		if cmd.Kind() == command.KindStopWorker {
			c.terminate(ctx, ExitCodeSuccess)
			return
		}
	}
}

// fail terminates the worker with the failure exit code, a worker cannot recover from an error.
func (c *Controller) fail(ctx context.Context, err error) {
	// The worker is shutting down, the error is caused by the closed channel
	if c.closing.Load() || ctx.Err() != nil {
		c.setState(StateTerminated)
		return
	}

	c.logger.Errorf(ctx, "worker %d failed: %s", c.group.Rank(), err)
	c.terminate(ctx, ExitCodeFailure)
}

func (c *Controller) terminate(ctx context.Context, code int) {
	c.closing.Store(true)
	c.setState(StateTerminated)
	if err := c.channel.Close(context.WithoutCancel(ctx)); err != nil {
		c.logger.Warnf(ctx, "cannot close channel: %s", err)
	}
	c.logger.Infof(ctx, "worker %d exited with code %d", c.group.Rank(), code)
	c.exit(code)
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}
