package dependencies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/config"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/common/dependencies"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/netutils"
)

type Mocked interface {
	dependencies.Mocked
	TestConfig() config.Config
}

type mocked struct {
	dependencies.Mocked
	config config.Config
}

func (v *mocked) TestConfig() config.Config {
	return v.config
}

func NewMockedServiceScope(t *testing.T, opts ...dependencies.MockedOption) (ServiceScope, Mocked) {
	t.Helper()
	return NewMockedServiceScopeWithConfig(t, nil, opts...)
}

func NewMockedServiceScopeWithConfig(t *testing.T, modifyConfig func(*config.Config), opts ...dependencies.MockedOption) (ServiceScope, Mocked) {
	t.Helper()

	commonMock := dependencies.NewMocked(t, opts...)

	cfg := testConfig(t)
	if modifyConfig != nil {
		modifyConfig(&cfg)
	}
	require.NoError(t, cfg.Validate())

	mock := &mocked{Mocked: commonMock, config: cfg}
	serviceScp, err := newServiceScope(commonMock.TestContext(), mock, cfg)
	require.NoError(t, err)

	return serviceScp, mock
}

func testConfig(t *testing.T) config.Config {
	t.Helper()

	addr, err := netutils.FreeLocalAddress()
	require.NoError(t, err)

	cfg := config.New()
	cfg.DebugLog = true
	cfg.Network.RootAddress = addr
	cfg.Network.StartupTimeout = 10 * time.Second
	cfg.Integrate.Intervals = 1000
	return cfg
}
