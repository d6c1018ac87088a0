// Package node runs one rank of the group.
//
// The root forms the group, runs the integrate routine on all ranks and then stops the workers.
// A worker executes commands from the root until it is stopped.
package node

import (
	"context"
	"time"

	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/command"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/controller"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/dependencies"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/routine/integrate"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

// Run the node, it blocks until the work is done.
// On a worker rank, the controller terminates the process, see the controller.WithExitFn option.
func Run(ctx context.Context, d dependencies.ServiceScope, opts ...controller.Option) error {
	cfg := d.Config()
	logger := d.Logger().WithComponent("node")

	opts = append([]controller.Option{controller.WithRegistry(d.Registry())}, opts...)
	ctrl, err := controller.New(ctx, d, cfg.Network, cfg.Group(), opts...)
	if err != nil {
		return err
	}

	if !ctrl.Group().IsRoot() {
		select {
		case <-ctrl.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Root
	startTime := time.Now()
	runErr := ctrl.Dispatcher().Run(ctx, command.Apply[integrate.Routine]())
	if runErr == nil {
		logger.WithDuration(time.Since(startTime)).Infof(ctx, `routine "%s" finished`, integrate.RoutineName)
	}

	// Stop workers
	errs := errors.NewMultiError()
	if runErr != nil {
		errs.Append(runErr)
	}
	if err := ctrl.Close(ctx); err != nil {
		errs.Append(err)
	}
	return errs.ErrorOrNil()
}
