// Package dispatcher sends commands from the root rank to all worker ranks.
//
// Only the root can dispatch. Dispatches are serialized by the Dispatcher lock,
// so broadcasts of two commands never interleave, even if they are called from multiple goroutines.
package dispatcher

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/keboola/lockstep-cluster/internal/pkg/ctxattr"
	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/command"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/group"
	"github.com/keboola/lockstep-cluster/internal/pkg/telemetry"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

type Dispatcher struct {
	logger log.Logger
	tracer telemetry.Tracer
	serde  *command.Serde
	env    *command.Env

	// lock guards the whole dispatch, from the construction of the command to the end of the broadcast.
	lock sync.Mutex

	dispatched metric.Int64Counter
	duration   metric.Float64Histogram
}

// NotRootError is returned if a worker rank tries to dispatch a command.
type NotRootError struct {
	Rank int
}

func (e NotRootError) Error() string {
	return fmt.Sprintf("commands can be dispatched only by the root rank, the current rank is %d", e.Rank)
}

type dependencies interface {
	Logger() log.Logger
	Telemetry() telemetry.Telemetry
}

// New creates the dispatcher, the env is used for the local execution on the root, see Run.
func New(d dependencies, serde *command.Serde, env *command.Env) *Dispatcher {
	meter := d.Telemetry().Meter()
	return &Dispatcher{
		logger:     d.Logger().WithComponent("cluster.dispatcher"),
		tracer:     d.Telemetry().Tracer(),
		serde:      serde,
		env:        env,
		dispatched: meter.Counter("cluster.dispatcher.commands", "Number of dispatched commands.", ""),
		duration:   meter.Histogram("cluster.dispatcher.duration", "Duration of the command dispatch.", "ms"),
	}
}

// Broadcast constructs a new command of the type T and sends it to all workers.
// T is a value or a pointer type, the command is created from its zero value under the lock.
func Broadcast[T command.Command](ctx context.Context, d *Dispatcher) error {
	return d.dispatch(ctx, newCommand[T], false)
}

// newCommand returns the zero value of T, or a pointer to a new zero value if T is a pointer.
// An interface T has no concrete type, nil is returned.
func newCommand[T command.Command]() command.Command {
	var cmd T
	t := reflect.TypeOf(cmd)
	switch {
	case t == nil:
		return nil
	case t.Kind() == reflect.Pointer:
		return reflect.New(t.Elem()).Interface().(command.Command)
	default:
		return cmd
	}
}

// Dispatch sends the command to all workers.
// It returns after all workers have received the command, the result of the execution is not awaited.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd command.Command) error {
	return d.dispatch(ctx, func() command.Command { return cmd }, false)
}

// Run sends the command to all workers and executes it also on the root, the lock is held until the local execution ends.
// The root executes the decoded copy of the command, the same value as the workers.
func (d *Dispatcher) Run(ctx context.Context, cmd command.Command) error {
	return d.dispatch(ctx, func() command.Command { return cmd }, true)
}

func (d *Dispatcher) dispatch(ctx context.Context, factory func() command.Command, execute bool) (err error) {
	if !d.env.Group.IsRoot() {
		return NotRootError{Rank: d.env.Group.Rank()}
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	cmd := factory()
	if cmd == nil {
		return errors.New("command cannot be nil")
	}
	kind := cmd.Kind()

	ctx, span := d.tracer.Start(ctx, "lockstep.cluster.dispatcher.dispatch")
	span.SetAttributes(attribute.String("command.kind", string(kind)), attribute.Bool("command.local", execute))
	defer span.End(&err)

	startTime := time.Now()
	defer func() {
		attrs := metric.WithAttributeSet(attribute.NewSet(attribute.String("kind", string(kind)), attribute.Bool("error", err != nil)))
		d.dispatched.Add(ctx, 1, attrs)
		d.duration.Record(ctx, float64(time.Since(startTime).Microseconds())/1000, attrs)
	}()

	payload, err := d.serde.Encode(cmd)
	if err != nil {
		return err
	}

	d.logger.Debugf(ctx, `dispatching command "%s"`, kind)
	if _, err := d.env.Collective.Broadcast(ctx, payload, group.RootRank); err != nil {
		return errors.PrefixErrorf(err, `cannot dispatch command "%s"`, kind)
	}
	d.logger.WithDuration(time.Since(startTime)).Debugf(ctx, `dispatched command "%s"`, kind)

	if !execute {
		return nil
	}

	local, err := d.serde.Decode(payload)
	if err != nil {
		return err
	}
	if err := local.Execute(ctxattr.ContextWithCommand(ctx, d.env.Group.Rank(), string(kind)), d.env); err != nil {
		return err
	}

	return nil
}
