package main

import (
	"context"
	"fmt"
	"os"

	"github.com/keboola/lockstep-cluster/internal/pkg/env"
	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/cli"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, errors.PrefixError(err, "fatal error").Error()) // nolint:forbidigo
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	osEnvs, err := env.FromOs()
	if err != nil {
		return errors.PrefixError(err, "cannot load envs")
	}

	// Envs from ".env" files in the working directory, existing envs take precedence
	envs := env.LoadDotEnv(ctx, log.NewServiceLogger(os.Stderr, false), osEnvs, []string{"."}) // nolint:forbidigo

	cmd := cli.NewRootCommand(os.Stdout, os.Stderr, envs) // nolint:forbidigo
	return cmd.ExecuteContext(ctx)
}
