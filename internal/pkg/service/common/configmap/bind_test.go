package configmap

import (
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/lockstep-cluster/internal/pkg/env"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

type Protocol string

type testConfig struct {
	Debug   bool          `configKey:"debug" configUsage:"Enable debug logs."`
	Name    string        `configKey:"name" configShorthand:"n" validate:"required"`
	Count   int           `configKey:"count" validate:"min=1"`
	Timeout time.Duration `configKey:"timeout"`
	Ignored string
	Nested  nestedConfig `configKey:"nested"`
}

type nestedConfig struct {
	Protocol Protocol          `configKey:"protocol" validate:"oneof=tcp kcp"`
	MaxSize  datasize.ByteSize `configKey:"maxSize"`
	Hosts    []string          `configKey:"hosts"`
}

type configWithValidation struct {
	Foo string `configKey:"foo"`
	err error
}

func (c configWithValidation) Validate() error {
	return c.err
}

func defaultConfig() testConfig {
	return testConfig{
		Name:    "default",
		Count:   3,
		Timeout: 5 * time.Second,
		Ignored: "keep",
		Nested:  nestedConfig{Protocol: "tcp", MaxSize: 64 * datasize.KB, Hosts: []string{"localhost"}},
	}
}

func TestFieldToFlagName(t *testing.T) {
	t.Parallel()

	cases := []struct{ FieldName, ExpectedFlagName string }{
		{FieldName: "", ExpectedFlagName: ""},
		{FieldName: "  ", ExpectedFlagName: ""},
		{FieldName: "foo", ExpectedFlagName: "foo"},
		{FieldName: "Foo", ExpectedFlagName: "foo"},
		{FieldName: "fooBar", ExpectedFlagName: "foo-bar"},
		{FieldName: "network.rootAddress", ExpectedFlagName: "network-root-address"},
		{FieldName: "---Foo---Bar---", ExpectedFlagName: "foo-bar"},
		{FieldName: "network.maxFrameSize", ExpectedFlagName: "network-max-frame-size"},
		{FieldName: "metrics.listenURL", ExpectedFlagName: "metrics-listen-url"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.ExpectedFlagName, fieldToFlagName(tc.FieldName))
	}
}

func TestGenerateFlags(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, GenerateFlags(fs, &cfg))

	var names []string
	fs.VisitAll(func(flag *pflag.Flag) {
		names = append(names, flag.Name)
	})
	assert.ElementsMatch(t, []string{"debug", "name", "count", "timeout", "nested-protocol", "nested-max-size", "nested-hosts"}, names)
	assert.Equal(t, "n", fs.Lookup("name").Shorthand)
	assert.Equal(t, "64KB", fs.Lookup("nested-max-size").DefValue)
	assert.Equal(t, "Enable debug logs.", fs.Lookup("debug").Usage)

	assert.Error(t, GenerateFlags(fs, cfg))
}

func TestBind_Defaults(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	require.NoError(t, Bind(BindSpec{Name: "test"}, &cfg))
	assert.Equal(t, defaultConfig(), cfg)
}

func TestBind_FlagsAndEnvs(t *testing.T) {
	t.Parallel()

	envs := env.Empty()
	envs.Set("MY_APP_COUNT", "10")
	envs.Set("MY_APP_NAME", "from-env")
	envs.Set("MY_APP_NESTED_MAX_SIZE", "1MB")
	envs.Set("MY_APP_NESTED_HOSTS", "a,b")

	cfg := defaultConfig()
	spec := BindSpec{
		Name:      "test",
		Args:      []string{"-n", "from-flag", "--timeout", "1m", "--nested-protocol", "kcp", "--debug"},
		EnvNaming: env.NewNamingConvention("MY_APP_"),
		Envs:      envs,
	}
	require.NoError(t, Bind(spec, &cfg))

	assert.Equal(t, testConfig{
		Debug:   true,
		Name:    "from-flag",
		Count:   10,
		Timeout: time.Minute,
		Ignored: "keep",
		Nested: nestedConfig{
			Protocol: "kcp",
			MaxSize:  datasize.MB,
			Hosts:    []string{"a", "b"},
		},
	}, cfg)
}

func TestBind_ValidationErrors(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	err := Bind(BindSpec{Name: "test", Args: []string{"--name", "", "--count", "0", "--nested-protocol", "udp"}}, &cfg)
	require.Error(t, err)
	assert.Equal(t, "- \"name\" is a required field\n- \"count\" must be 1 or greater\n- \"nested.protocol\" must be one of [tcp kcp]", err.Error())
}

func TestBind_CustomValidation(t *testing.T) {
	t.Parallel()

	cfg := configWithValidation{err: errors.New("some error")}
	err := Bind(BindSpec{Name: "test", Args: []string{"--foo", "Foo"}}, &cfg)
	require.Error(t, err)
	assert.Equal(t, "some error", err.Error())
	assert.Equal(t, "Foo", cfg.Foo)
}

func TestBind_Help(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	err := Bind(BindSpec{Name: "test", Args: []string{"--help"}, EnvNaming: env.NewNamingConvention("MY_APP_"), Envs: env.Empty()}, &cfg)

	var helpErr HelpError
	require.ErrorAs(t, err, &helpErr)
	assert.Contains(t, helpErr.Help, `Usage of "test":`)
	assert.Contains(t, helpErr.Help, "--nested-max-size")
	assert.Contains(t, helpErr.Help, `"MY_APP_FOO_BAR" ENV`)
}
