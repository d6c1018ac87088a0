package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"

	"github.com/keboola/lockstep-cluster/internal/pkg/env"
	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/config"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/dependencies"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/node"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/common/servicectx"
	"github.com/keboola/lockstep-cluster/internal/pkg/telemetry"
	"github.com/keboola/lockstep-cluster/internal/pkg/telemetry/metric/prometheus"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

func newNodeCommand(envs env.Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Start one rank of the group.",
		Long: `Start one rank of the group.
The root rank (0) listens on the root address, workers connect to it.
All ranks must have the same configuration, except the rank.

` + envUsage(),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Bind(cmd.Flags(), envs)
			if err != nil {
				return err
			}
			return runNode(cmd.Context(), cmd, cfg)
		},
	}

	if err := config.GenerateFlags(cmd.Flags()); err != nil {
		panic(err)
	}

	return cmd
}

func runNode(ctx context.Context, cmd *cobra.Command, cfg config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Create logger, the stdout is reserved for results.
	logger := log.New(cmd.ErrOrStderr(), cfg.LogFormat, cfg.DebugLog).WithComponent(fmt.Sprintf("rank%d", cfg.Rank))

	// Create process abstraction.
	proc, err := servicectx.New(ctx, cancel, servicectx.WithLogger(logger), servicectx.WithUniqueID(fmt.Sprintf("%s-rank%d", ServiceName, cfg.Rank)))
	if err != nil {
		return err
	}

	// Setup telemetry
	tel, err := telemetry.New(
		nil,
		func() (metric.MeterProvider, error) {
			return prometheus.ServeMetrics(ctx, cfg.Metrics, ServiceName, logger, proc)
		},
	)
	if err != nil {
		return err
	}

	// Create dependencies.
	scope, err := dependencies.NewServiceScope(ctx, cfg, proc, logger, tel, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	var runErr error
	proc.Add(func(shutdown servicectx.ShutdownFn) {
		runErr = node.Run(ctx, scope)
		shutdown(context.WithoutCancel(ctx), runErr)
	})

	// Wait for the service shutdown.
	proc.WaitForShutdown()

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}
