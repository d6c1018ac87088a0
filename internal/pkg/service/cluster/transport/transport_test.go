package transport_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/network"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/transport"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/common/dependencies"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/netutils"
)

func TestTransport_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, protocol := range []network.TransportProtocol{network.TransportProtocolTCP, network.TransportProtocolKCP} {
		t.Run(string(protocol), func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()

			addr, err := netutils.FreeLocalAddress()
			require.NoError(t, err)

			cfg := network.NewConfig()
			cfg.Transport = protocol
			cfg.RootAddress = addr
			cfg.StartupTimeout = 10 * time.Second

			serverDeps := dependencies.NewMocked(t, dependencies.WithLoggerComponent("root"))
			clientDeps := dependencies.NewMocked(t, dependencies.WithLoggerComponent("worker"))

			server, err := transport.Listen(serverDeps, cfg)
			require.NoError(t, err)

			client, err := transport.Dial(ctx, clientDeps, cfg)
			require.NoError(t, err)

			conn, err := server.Accept(ctx)
			require.NoError(t, err)

			// Worker -> root
			_, err = client.Write([]byte("hello"))
			require.NoError(t, err)
			buf := make([]byte, 5)
			_, err = io.ReadFull(conn, buf)
			require.NoError(t, err)
			assert.Equal(t, "hello", string(buf))

			// Root -> worker
			_, err = conn.Write([]byte("world"))
			require.NoError(t, err)
			_, err = io.ReadFull(client, buf)
			require.NoError(t, err)
			assert.Equal(t, "world", string(buf))

			assert.Equal(t, int64(1), serverDeps.TestTelemetry().CounterValue(t, "cluster.transport.connections", attribute.NewSet()))

			require.NoError(t, client.Close())
			assert.True(t, client.IsClosed())

			// KCP has no close notification, the dead peer is detected by the keep alive
			if protocol == network.TransportProtocolTCP {
				_, err = conn.Read(buf)
				assert.Error(t, err)
				assert.Eventually(t, func() bool {
					return serverDeps.TestTelemetry().CounterValue(t, "cluster.transport.connections", attribute.NewSet()) == 0
				}, 5*time.Second, 10*time.Millisecond)
			}

			require.NoError(t, server.Close(ctx))
			_, err = server.Accept(ctx)
			if assert.Error(t, err) {
				assert.Equal(t, "server is closed", err.Error())
			}

			// Close is idempotent
			require.NoError(t, server.Close(ctx))

			serverDeps.DebugLogger().AssertJSONMessages(t, `
{"level":"info","message":"listening on \"%s\", protocol `+string(protocol)+`","component":"root.cluster.transport.server"}
{"level":"info","message":"accepted connection from \"%s\"","component":"root.cluster.transport.server"}
{"level":"info","message":"closing server","component":"root.cluster.transport.server"}
`)
		})
	}
}

func TestDial_Timeout(t *testing.T) {
	t.Parallel()

	addr, err := netutils.FreeLocalAddress()
	require.NoError(t, err)

	cfg := network.NewConfig()
	cfg.RootAddress = addr
	cfg.StartupTimeout = 300 * time.Millisecond

	d := dependencies.NewMocked(t)
	_, err = transport.Dial(context.Background(), d, cfg)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), `cannot connect to the root "`+addr+`"`)
	}
}

func TestListen_UnknownProtocol(t *testing.T) {
	t.Parallel()

	cfg := network.NewConfig()
	cfg.Transport = "quic"

	_, err := transport.Listen(dependencies.NewMocked(t), cfg)
	assert.Error(t, err)
}
