package env

import (
	"github.com/iancoleman/strcase"

	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

type NamingConvention struct {
	prefix string
}

func NewNamingConvention(prefix string) *NamingConvention {
	return &NamingConvention{prefix: prefix}
}

// FlagToEnv converts flag name to ENV variable name
// for example "network-root-address" -> "LOCKSTEP_NETWORK_ROOT_ADDRESS".
func (n *NamingConvention) FlagToEnv(flagName string) string {
	if len(flagName) == 0 {
		panic(errors.New("flag name cannot be empty"))
	}

	return n.prefix + strcase.ToScreamingSnake(flagName)
}
