package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvNamingConvention(t *testing.T) {
	t.Parallel()
	n := NewNamingConvention("LOCKSTEP_")
	assert.Equal(t, "LOCKSTEP_FOO", n.FlagToEnv("foo"))
	assert.Equal(t, "LOCKSTEP_FOO_BAR", n.FlagToEnv("foo-bar"))
	assert.Equal(t, "LOCKSTEP_NETWORK_ROOT_ADDRESS", n.FlagToEnv("network-root-address"))
}

func TestEnvNamingConventionFlagNameEmpty(t *testing.T) {
	t.Parallel()
	n := NewNamingConvention("LOCKSTEP_")
	assert.PanicsWithError(t, "flag name cannot be empty", func() {
		n.FlagToEnv("")
	})
}
