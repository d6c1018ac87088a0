package command

import (
	"context"
	"fmt"
)

const KindStopWorker = Kind("stopWorker")

// StopWorker terminates the worker, the controller exits the process after the execution.
type StopWorker struct{}

func (StopWorker) Kind() Kind {
	return KindStopWorker
}

func (StopWorker) Execute(ctx context.Context, env *Env) error {
	env.Logger.Infof(ctx, "terminating worker %d", env.Group.Rank())
	_, err := fmt.Fprintf(env.Stdout, "Terminating worker %d\n", env.Group.Rank())
	return err
}
