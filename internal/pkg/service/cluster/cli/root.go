// Package cli contains commands of the lockstep binary.
package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/keboola/lockstep-cluster/internal/pkg/env"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/config"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/common/configmap"
)

const ServiceName = "lockstep"

// NewRootCommand creates the root command with the "node" and "launch" sub-commands.
func NewRootCommand(stdout, stderr io.Writer, envs env.Provider) *cobra.Command {
	root := &cobra.Command{
		Use:           ServiceName,
		Short:         "Process group which executes commands of the root in lockstep.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newNodeCommand(envs), newLaunchCommand(envs))
	return root
}

func envUsage() string {
	return configmap.Usage(env.NewNamingConvention(config.EnvPrefix))
}
