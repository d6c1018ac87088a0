// Package dependencies provides dependencies for a lockstep node.
//
// # Dependency Containers
//
// This package extends common dependencies from [pkg/github.com/keboola/lockstep-cluster/internal/pkg/service/common/dependencies].
//
// Following dependencies containers are implemented:
//   - [ServiceScope] long-lived dependencies that exist during the entire run of the node.
//
// Dependency containers creation:
//   - [ServiceScope] is created at startup in the "node" command.
//
// The package also provides mocked dependency implementations for tests:
//   - [NewMockedServiceScope]
package dependencies

import (
	"context"
	"io"

	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/command"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/config"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/routine/integrate"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/common/dependencies"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/common/servicectx"
	"github.com/keboola/lockstep-cluster/internal/pkg/telemetry"
)

// ServiceScope interface provides dependencies for a node of the group.
// The container exists during the entire run of the node.
type ServiceScope interface {
	dependencies.BaseScope
	Config() config.Config
	// Registry contains commands and routines, it is same on all ranks.
	Registry() *command.Registry
	IntegrateRoutine() integrate.Routine
}

// serviceScope implements ServiceScope interface.
type serviceScope struct {
	dependencies.BaseScope
	config    config.Config
	registry  *command.Registry
	integrate integrate.Routine
}

func NewServiceScope(
	ctx context.Context,
	cfg config.Config,
	proc *servicectx.Process,
	logger log.Logger,
	tel telemetry.Telemetry,
	stdout io.Writer,
	stderr io.Writer,
) (v ServiceScope, err error) {
	ctx, span := tel.Tracer().Start(ctx, "lockstep.cluster.dependencies.NewServiceScope")
	defer span.End(&err)

	baseScp := dependencies.NewBaseScope(logger, tel, proc, stdout, stderr)
	return newServiceScope(ctx, baseScp, cfg)
}

func newServiceScope(_ context.Context, baseScp dependencies.BaseScope, cfg config.Config) (*serviceScope, error) {
	d := &serviceScope{
		BaseScope: baseScp,
		config:    cfg,
		registry:  command.NewRegistry(),
		integrate: integrate.New(cfg.Integrate),
	}

	if err := d.registry.RegisterRoutine(d.integrate); err != nil {
		return nil, err
	}

	return d, nil
}

func (v *serviceScope) Config() config.Config {
	return v.config
}

func (v *serviceScope) Registry() *command.Registry {
	return v.registry
}

func (v *serviceScope) IntegrateRoutine() integrate.Routine {
	return v.integrate
}
