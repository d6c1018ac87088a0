// Package config contains configuration of a lockstep node.
// The configuration is loaded from flags and ENVs, see the Bind function.
package config

import (
	"github.com/spf13/pflag"

	"github.com/keboola/lockstep-cluster/internal/pkg/env"
	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/group"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/network"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/routine/integrate"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/common/configmap"
	"github.com/keboola/lockstep-cluster/internal/pkg/telemetry/metric/prometheus"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

const EnvPrefix = "LOCKSTEP_"

// Config of a node, all nodes of the group must have the same configuration, except the Rank.
type Config struct {
	DebugLog  bool              `configKey:"debugLog" configUsage:"Enable debug log level."`
	LogFormat log.LogFormat     `configKey:"logFormat" validate:"required,oneof=console json" configUsage:"Log format, \"console\" or \"json\"."`
	Rank      int               `configKey:"rank" validate:"min=0" configUsage:"Rank of the node, 0 is the root."`
	Size      int               `configKey:"size" validate:"min=1" configUsage:"Number of nodes in the group."`
	Network   network.Config    `configKey:"network"`
	Metrics   prometheus.Config `configKey:"metrics"`
	Integrate integrate.Config  `configKey:"integrate"`
}

func New() Config {
	return Config{
		DebugLog:  false,
		LogFormat: log.LogFormatConsole,
		Rank:      group.RootRank,
		Size:      1,
		Network:   network.NewConfig(),
		Metrics:   prometheus.NewConfig(),
		Integrate: integrate.NewConfig(),
	}
}

func (c *Config) Validate() error {
	errs := errors.NewMultiError()
	if _, err := group.New(c.Rank, c.Size); err != nil {
		errs.Append(err)
	}
	if err := c.Integrate.Validate(); err != nil {
		errs.Append(err)
	}
	return errs.ErrorOrNil()
}

// Group returns the immutable handle of the node in the group.
func (c *Config) Group() group.Handle {
	return group.MustNew(c.Rank, c.Size)
}

// GenerateFlags adds configuration flags to the FlagSet, default values are taken from the New function.
func GenerateFlags(fs *pflag.FlagSet) error {
	cfg := New()
	return configmap.GenerateFlags(fs, &cfg)
}

// Bind the configuration from the parsed flags and ENVs.
func Bind(fs *pflag.FlagSet, envs env.Provider) (Config, error) {
	cfg := New()
	err := configmap.Bind(configmap.BindSpec{
		Name:      "lockstep",
		Flags:     fs,
		EnvNaming: env.NewNamingConvention(EnvPrefix),
		Envs:      envs,
	}, &cfg)
	return cfg, err
}
