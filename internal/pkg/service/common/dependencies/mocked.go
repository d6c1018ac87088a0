package dependencies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/common/servicectx"
	"github.com/keboola/lockstep-cluster/internal/pkg/telemetry"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/ioutil"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/testhelper"
)

// mocked dependencies container implements Mocked interface.
type mocked struct {
	*baseScope
	config *MockedConfig
	stdout *ioutil.AtomicWriter
}

type MockedConfig struct {
	ctx         context.Context
	telemetry   telemetry.ForTest
	debugLogger log.DebugLogger
	component   string
	procOpts    []servicectx.Option
}

type MockedOption func(c *MockedConfig)

func WithCtx(v context.Context) MockedOption {
	return func(c *MockedConfig) {
		c.ctx = v
	}
}

func WithDebugLogger(v log.DebugLogger) MockedOption {
	return func(c *MockedConfig) {
		c.debugLogger = v
	}
}

// WithLoggerComponent adds the component to all log records, it is useful if there are more nodes in one test.
func WithLoggerComponent(v string) MockedOption {
	return func(c *MockedConfig) {
		c.component = v
	}
}

func WithTelemetry(v telemetry.ForTest) MockedOption {
	return func(c *MockedConfig) {
		c.telemetry = v
	}
}

func WithUniqueID(v string) MockedOption {
	return WithProcessOptions(servicectx.WithUniqueID(v))
}

func WithProcessOptions(opts ...servicectx.Option) MockedOption {
	return func(c *MockedConfig) {
		c.procOpts = append(c.procOpts, opts...)
	}
}

func newMockedConfig(t *testing.T, opts []MockedOption) *MockedConfig {
	t.Helper()

	cfg := &MockedConfig{
		ctx:       context.Background(),
		telemetry: telemetry.NewForTest(t),
	}

	for _, o := range opts {
		o(cfg)
	}

	if cfg.debugLogger == nil {
		cfg.debugLogger = log.NewDebugLogger()
		cfg.debugLogger.ConnectTo(testhelper.VerboseStdout())
	}

	return cfg
}

func NewMocked(t *testing.T, opts ...MockedOption) Mocked {
	t.Helper()
	cfg := newMockedConfig(t, opts)

	var logger log.Logger = cfg.debugLogger
	if cfg.component != "" {
		logger = logger.WithComponent(cfg.component)
	}

	ctx, cancel := context.WithCancel(cfg.ctx)
	procOpts := append([]servicectx.Option{servicectx.WithLogger(logger), servicectx.WithoutSignals(), servicectx.WithUniqueID("test-node")}, cfg.procOpts...)
	proc, err := servicectx.New(ctx, cancel, procOpts...)
	require.NoError(t, err)

	// Stop the process at the end of the test, if it is not already stopped
	t.Cleanup(func() {
		proc.Shutdown(context.Background(), context.Canceled)
		proc.WaitForShutdown()
	})

	stdout := ioutil.NewAtomicWriter()
	stdout.ConnectTo(testhelper.VerboseStdout())

	return &mocked{
		baseScope: newBaseScope(logger, cfg.telemetry, proc, stdout, testhelper.VerboseStderr()),
		config:    cfg,
		stdout:    stdout,
	}
}

func (v *mocked) DebugLogger() log.DebugLogger {
	return v.config.debugLogger
}

func (v *mocked) TestContext() context.Context {
	return v.config.ctx
}

func (v *mocked) TestTelemetry() telemetry.ForTest {
	return v.config.telemetry
}

func (v *mocked) TestStdout() *ioutil.AtomicWriter {
	return v.stdout
}
