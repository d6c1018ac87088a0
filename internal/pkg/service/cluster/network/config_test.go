package network_test

import (
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/network"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/common/configmap"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

func TestConfig_Validation(t *testing.T) {
	t.Parallel()

	cfg := network.NewConfig()
	require.NoError(t, configmap.Validate(cfg))

	cfg.Transport = "udp"
	cfg.Codec = "xml"
	cfg.StreamMaxWindow = 1024
	err := configmap.Validate(cfg)
	require.Error(t, err)
	assert.Equal(t, "- \"transport\" must be one of [tcp kcp]\n- \"streamMaxWindow\" must be 262144 or greater\n- \"codec\" must be one of [json msgpack]", err.Error())
}

func TestConfig_MaxFrameSize(t *testing.T) {
	t.Parallel()

	cfg := network.NewConfig()
	cfg.MaxFrameSize = 4*datasize.GB - 1
	require.NoError(t, configmap.Validate(cfg))

	// Frame length must fit the uint32 header field
	cfg.MaxFrameSize = 4 * datasize.GB
	err := configmap.Validate(cfg)
	if assert.Error(t, err) {
		assert.Equal(t, `"maxFrameSize" must be 4294967295 or less`, err.Error())
	}
}

func TestProtocolError(t *testing.T) {
	t.Parallel()

	cause := errors.New("checksum mismatch")
	err := error(network.NewProtocolError(2, cause))
	assert.Equal(t, "protocol error on rank 2: checksum mismatch", err.Error())
	assert.True(t, errors.Is(err, cause))

	var protocolErr network.ProtocolError
	require.True(t, errors.As(errors.PrefixError(err, "broadcast failed"), &protocolErr))
	assert.Equal(t, 2, protocolErr.Rank)
}
