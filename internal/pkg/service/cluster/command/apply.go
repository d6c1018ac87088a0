package command

import (
	"context"

	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

const KindDistributedApply = Kind("distributedApply")

// Routine is a distributed computation, its entry point runs on all ranks at the same time.
// Ranks usually split the work by the group.Handle.MapChunks and exchange results by the Env.Collective.
type Routine interface {
	RoutineName() string
	DistributedApply(ctx context.Context, env *Env) error
}

// DistributedApply runs the distributed entry point of the routine on all ranks.
// The payload is only the routine name, the routine must be registered on all ranks.
type DistributedApply struct {
	Routine string `json:"routine" msgpack:"routine"`
}

// Apply creates the DistributedApply command for the routine type.
// The routine name is read from the zero value of the type.
func Apply[R Routine]() DistributedApply {
	var routine R
	return DistributedApply{Routine: routine.RoutineName()}
}

func (DistributedApply) Kind() Kind {
	return KindDistributedApply
}

func (c DistributedApply) Execute(ctx context.Context, env *Env) error {
	routine, found := env.Registry.Routine(c.Routine)
	if !found {
		return errors.Errorf(`routine "%s" is not registered`, c.Routine)
	}

	env.Logger.Debugf(ctx, `applying routine "%s"`, c.Routine)
	if err := routine.DistributedApply(ctx, env); err != nil {
		return errors.PrefixErrorf(err, `routine "%s" failed on rank %d`, c.Routine, env.Group.Rank())
	}
	return nil
}

func (c DistributedApply) validate(r *Registry) error {
	if _, found := r.Routine(c.Routine); !found {
		return errors.Errorf(`routine "%s" is not registered`, c.Routine)
	}
	return nil
}
