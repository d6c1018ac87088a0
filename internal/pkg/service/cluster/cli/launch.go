package cli

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/keboola/lockstep-cluster/internal/pkg/env"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/common/configmap"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/ioutil"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/netutils"
)

// LaunchConfig configures the local launcher.
type LaunchConfig struct {
	Size        int    `configKey:"size" validate:"min=1" configUsage:"Number of ranks to start."`
	RootAddress string `configKey:"rootAddress" configUsage:"Listen address of the root, a free local port is used if empty."`
	NoColor     bool   `configKey:"noColor" configUsage:"Disable colors of the output prefixes."`
}

func NewLaunchConfig() LaunchConfig {
	return LaunchConfig{Size: 2}
}

// prefixColors distinguish outputs of ranks.
var prefixColors = []color.Attribute{color.FgCyan, color.FgMagenta, color.FgYellow, color.FgGreen, color.FgBlue, color.FgRed} // nolint: gochecknoglobals

func newLaunchCommand(envs env.Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launch [-- node flags]",
		Short: "Start the group of local nodes.",
		Long: `Start the group of local nodes, each node is a child process running the "node" command.
Flags after "--" are passed to all nodes. Output lines are prefixed by the rank.

` + envUsage(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := NewLaunchConfig()
			if err := configmap.Bind(configmap.BindSpec{Name: "launch", Flags: cmd.Flags(), EnvNaming: env.NewNamingConvention("LOCKSTEP_LAUNCH_"), Envs: envs}, &cfg); err != nil {
				return err
			}

			executable, err := os.Executable()
			if err != nil {
				return errors.PrefixError(err, "cannot locate the executable")
			}

			return Launch(cmd.Context(), cfg, executable, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cfg := NewLaunchConfig()
	configmap.MustGenerateFlags(cmd.Flags(), &cfg)
	return cmd
}

// Launch starts one process per rank and waits for all of them.
// If a process fails, the others are killed.
func Launch(ctx context.Context, cfg LaunchConfig, executable string, nodeArgs []string, stdout, stderr io.Writer) error {
	if cfg.RootAddress == "" {
		addr, err := netutils.FreeLocalAddress()
		if err != nil {
			return err
		}
		cfg.RootAddress = addr
	}

	grp, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < cfg.Size; rank++ {
		prefix := rankPrefix(rank, cfg.NoColor)
		outWriter := ioutil.NewPrefixWriter(prefix, stdout)
		errWriter := ioutil.NewPrefixWriter(prefix, stderr)

		process := exec.CommandContext(ctx, executable, NodeArgs(rank, cfg.Size, cfg.RootAddress, nodeArgs)...) // nolint: gosec
		process.Stdout = outWriter
		process.Stderr = errWriter
		process.Env = os.Environ()

		grp.Go(func() error {
			err := process.Run()
			_ = outWriter.Flush()
			_ = errWriter.Flush()
			if err != nil {
				return errors.PrefixErrorf(err, "rank %d failed", rank)
			}
			return nil
		})
	}

	return grp.Wait()
}

// NodeArgs returns arguments of the "node" command for the rank.
func NodeArgs(rank, size int, rootAddress string, extra []string) []string {
	args := []string{
		"node",
		"--rank", strconv.Itoa(rank),
		"--size", strconv.Itoa(size),
		"--network-root-address", rootAddress,
	}
	return append(args, extra...)
}

func rankPrefix(rank int, noColor bool) string {
	c := color.New(prefixColors[rank%len(prefixColors)])
	if noColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c.Sprintf("[rank %d] ", rank)
}
