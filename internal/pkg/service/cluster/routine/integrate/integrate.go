// Package integrate provides a distributed routine which computes a definite integral by the trapezoidal rule.
//
// Intervals are split between ranks by the group.Handle.OwnedRange,
// each rank sums its own intervals and the partial sums are gathered to the root.
package integrate

import (
	"context"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/command"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/group"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

const RoutineName = "integrate"

type Routine struct {
	config Config
	// result is set on the root, see the Result method.
	result *result
}

type Result struct {
	Value float64
	// Partials contains partial sums, indexed by rank.
	Partials []float64
}

type result struct {
	lock  sync.Mutex
	value *Result
}

// partial is the message sent by each rank to the root.
type partial struct {
	Rank  int     `msgpack:"rank"`
	Start int     `msgpack:"start"`
	End   int     `msgpack:"end"`
	Sum   float64 `msgpack:"sum"`
}

func New(cfg Config) Routine {
	return Routine{config: cfg, result: &result{}}
}

func (Routine) RoutineName() string {
	return RoutineName
}

// Result returns the last result computed on the root.
func (r Routine) Result() (Result, bool) {
	r.result.lock.Lock()
	defer r.result.lock.Unlock()
	if r.result.value == nil {
		return Result{}, false
	}
	return *r.result.value, true
}

func (r Routine) DistributedApply(ctx context.Context, env *command.Env) error {
	fn, err := r.config.Function.fn()
	if err != nil {
		return err
	}

	owned, err := env.Group.OwnedRange(r.config.Intervals, 1)
	if err != nil {
		return err
	}

	// Sum of the owned intervals
	h := (r.config.Upper - r.config.Lower) / float64(r.config.Intervals)
	sum := 0.0
	for i := owned.Start; i < owned.End; i++ {
		x0 := r.config.Lower + float64(i)*h
		x1 := x0 + h
		sum += (fn(x0) + fn(x1)) * h / 2
	}
	env.Logger.Debugf(ctx, "rank %d integrated intervals [%d, %d)", env.Group.Rank(), owned.Start, owned.End)

	payload, err := msgpack.Marshal(partial{Rank: env.Group.Rank(), Start: owned.Start, End: owned.End, Sum: sum})
	if err != nil {
		return errors.PrefixError(err, "cannot encode partial sum")
	}

	gathered, err := env.Collective.Gather(ctx, payload, group.RootRank)
	if err != nil {
		return err
	}
	if !env.Group.IsRoot() {
		return nil
	}

	res := &Result{Partials: make([]float64, len(gathered))}
	for rank, item := range gathered {
		var p partial
		if err := msgpack.Unmarshal(item, &p); err != nil {
			return errors.PrefixErrorf(err, "cannot decode partial sum from rank %d", rank)
		}
		if p.Rank != rank {
			return errors.Errorf("unexpected partial sum from rank %d, expected rank %d", p.Rank, rank)
		}
		res.Partials[rank] = p.Sum
		res.Value += p.Sum
	}

	r.result.lock.Lock()
	r.result.value = res
	r.result.lock.Unlock()

	env.Logger.Infof(ctx, "integral of %s over [%g, %g] is %.12f", r.config.Function, r.config.Lower, r.config.Upper, res.Value)
	_, err = fmt.Fprintf(env.Stdout, "Integral of %s over [%g, %g], %d intervals, %d ranks: %.12f\n", r.config.Function, r.config.Lower, r.config.Upper, r.config.Intervals, env.Group.Size(), res.Value)
	return err
}
