package command_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/command"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/group"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/network"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

const kindSetValue = command.Kind("setValue")

type setValue struct {
	Key   string  `json:"key" msgpack:"key"`
	Value float64 `json:"value" msgpack:"value"`
}

func (setValue) Kind() command.Kind {
	return kindSetValue
}

func (setValue) Execute(_ context.Context, _ *command.Env) error {
	return nil
}

type sumRoutine struct {
	calls *int
	err   error
}

func (sumRoutine) RoutineName() string {
	return "sum"
}

func (r sumRoutine) DistributedApply(_ context.Context, _ *command.Env) error {
	*r.calls++
	return r.err
}

func newRegistry(t *testing.T) *command.Registry {
	t.Helper()
	r := command.NewRegistry()
	require.NoError(t, r.Register(kindSetValue, func() command.Command { return &setValue{} }))
	require.NoError(t, r.RegisterRoutine(sumRoutine{calls: new(int)}))
	return r
}

func TestSerde_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, codecName := range []network.Codec{network.CodecJSON, network.CodecMsgpack} {
		codec, err := command.NewCodec(codecName)
		require.NoError(t, err)
		assert.Equal(t, codecName, codec.Name())
		serde := command.NewSerde(newRegistry(t), codec)

		data, err := serde.Encode(command.StopWorker{})
		require.NoError(t, err)
		cmd, err := serde.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, &command.StopWorker{}, cmd)

		data, err = serde.Encode(command.Apply[sumRoutine]())
		require.NoError(t, err)
		cmd, err = serde.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, &command.DistributedApply{Routine: "sum"}, cmd)

		data, err = serde.Encode(setValue{Key: "x", Value: 1.5})
		require.NoError(t, err)
		cmd, err = serde.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, &setValue{Key: "x", Value: 1.5}, cmd)
	}
}

func TestSerde_JSONFormat(t *testing.T) {
	t.Parallel()

	codec, err := command.NewCodec(network.CodecJSON)
	require.NoError(t, err)
	serde := command.NewSerde(newRegistry(t), codec)

	data, err := serde.Encode(command.DistributedApply{Routine: "sum"})
	require.NoError(t, err)
	assert.Equal(t, `{"kind":"distributedApply","payload":{"routine":"sum"}}`, string(data))
}

func TestSerde_Errors(t *testing.T) {
	t.Parallel()

	codec, err := command.NewCodec(network.CodecJSON)
	require.NoError(t, err)
	serde := command.NewSerde(newRegistry(t), codec)

	_, err = serde.Encode(nil)
	require.Error(t, err)

	// Unregistered kind cannot be sent
	otherSerde := command.NewSerde(command.NewRegistry(), codec)
	_, err = otherSerde.Encode(setValue{})
	require.Error(t, err)
	assert.Equal(t, `command kind "setValue" is not registered`, err.Error())

	// Empty data
	_, err = serde.Decode(nil)
	require.Error(t, err)
	assert.Equal(t, "cannot decode command: empty data", err.Error())

	// Truncated data
	data, err := serde.Encode(setValue{Key: "x", Value: 1})
	require.NoError(t, err)
	_, err = serde.Decode(data[:len(data)/2])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot decode command envelope")

	// Unknown kind
	_, err = serde.Decode([]byte(`{"kind":"foo","payload":{}}`))
	require.Error(t, err)
	assert.Equal(t, `cannot decode command: unknown kind "foo"`, err.Error())

	// Unknown routine
	_, err = serde.Decode([]byte(`{"kind":"distributedApply","payload":{"routine":"bar"}}`))
	require.Error(t, err)
	assert.Equal(t, "invalid command \"distributedApply\":\n- routine \"bar\" is not registered", err.Error())

	// Unexpected codec
	_, err = command.NewCodec("xml")
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	assert.Equal(t, []command.Kind{command.KindDistributedApply, kindSetValue, command.KindStopWorker}, r.Kinds())
	assert.Equal(t, []string{"sum"}, r.Routines())

	err := r.Register(command.KindStopWorker, func() command.Command { return &command.StopWorker{} })
	require.Error(t, err)
	assert.Equal(t, `command kind "stopWorker" is already registered`, err.Error())

	err = r.RegisterRoutine(sumRoutine{})
	require.Error(t, err)
	assert.Equal(t, `routine "sum" is already registered`, err.Error())

	assert.Panics(t, func() {
		r.MustRegister("", nil)
	})
}

func TestStopWorker_Execute(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	logger := log.NewDebugLogger()
	env := &command.Env{Group: group.MustNew(2, 3), Logger: logger, Registry: command.NewRegistry(), Stdout: &stdout}

	require.NoError(t, command.StopWorker{}.Execute(context.Background(), env))
	assert.Equal(t, "Terminating worker 2\n", stdout.String())
	assert.Equal(t, "INFO  terminating worker 2\n", logger.AllMessagesTxt())
}

func TestDistributedApply_Execute(t *testing.T) {
	t.Parallel()

	calls := 0
	registry := command.NewRegistry()
	require.NoError(t, registry.RegisterRoutine(sumRoutine{calls: &calls}))
	env := &command.Env{Group: group.MustNew(1, 2), Logger: log.NewNopLogger(), Registry: registry}

	require.NoError(t, command.Apply[sumRoutine]().Execute(context.Background(), env))
	assert.Equal(t, 1, calls)

	err := command.DistributedApply{Routine: "missing"}.Execute(context.Background(), env)
	require.Error(t, err)
	assert.Equal(t, `routine "missing" is not registered`, err.Error())

	failing := command.NewRegistry()
	require.NoError(t, failing.RegisterRoutine(sumRoutine{calls: &calls, err: errors.New("division by zero")}))
	env.Registry = failing
	err = command.Apply[sumRoutine]().Execute(context.Background(), env)
	require.Error(t, err)
	assert.Equal(t, `routine "sum" failed on rank 1: division by zero`, err.Error())
	assert.Equal(t, 2, calls)
}
