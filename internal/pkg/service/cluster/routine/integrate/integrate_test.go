package integrate_test

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/command"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/group"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/routine/integrate"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

// gatherCollective simulates the Gather operation, workers must apply the routine before the root.
type gatherCollective struct {
	size     int
	payloads [][]byte
}

func (c *gatherCollective) Broadcast(context.Context, []byte, int) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (c *gatherCollective) Gather(_ context.Context, payload []byte, target int) ([][]byte, error) {
	if target != group.RootRank {
		return nil, errors.Errorf("unexpected target %d", target)
	}
	c.payloads = append(c.payloads, payload)
	if len(c.payloads) < c.size {
		return nil, nil
	}
	// The root is the last, move its payload to the first position
	root := c.payloads[len(c.payloads)-1]
	return append([][]byte{root}, c.payloads[:len(c.payloads)-1]...), nil
}

func (c *gatherCollective) Barrier(context.Context) error {
	return nil
}

func applyOnGroup(t *testing.T, cfg integrate.Config, size int) (integrate.Routine, string) {
	t.Helper()

	ctx := context.Background()
	collective := &gatherCollective{size: size}
	var stdout bytes.Buffer
	routines := make([]integrate.Routine, size)

	// Workers first, the root last
	for _, rank := range append(group.MustNew(0, size).Workers(), group.RootRank) {
		routines[rank] = integrate.New(cfg)
		env := &command.Env{
			Group:      group.MustNew(rank, size),
			Logger:     log.NewNopLogger(),
			Collective: collective,
			Registry:   command.NewRegistry(),
			Stdout:     &stdout,
		}
		require.NoError(t, routines[rank].DistributedApply(ctx, env))
		if rank != group.RootRank {
			_, found := routines[rank].Result()
			assert.False(t, found, "rank %d", rank)
		}
	}

	return routines[group.RootRank], stdout.String()
}

func TestRoutine_Pi(t *testing.T) {
	t.Parallel()

	cfg := integrate.NewConfig()
	require.NoError(t, cfg.Validate())

	routine, stdout := applyOnGroup(t, cfg, 1)
	result, found := routine.Result()
	require.True(t, found)
	assert.InDelta(t, math.Pi, result.Value, 1e-6)
	assert.Len(t, result.Partials, 1)
	assert.Contains(t, stdout, "Integral of quarterCircle over [0, 1], 1000000 intervals, 1 ranks: 3.14159")
}

func TestRoutine_Distributed(t *testing.T) {
	t.Parallel()

	cfg := integrate.Config{Function: integrate.FunctionSquare, Lower: 0, Upper: 3, Intervals: 300}

	single, _ := applyOnGroup(t, cfg, 1)
	distributed, stdout := applyOnGroup(t, cfg, 4)

	singleResult, found := single.Result()
	require.True(t, found)
	result, found := distributed.Result()
	require.True(t, found)

	// Trapezoidal rule error of x^2 is (b-a)*h^2/6
	assert.InDelta(t, 9.00005, result.Value, 1e-9)
	assert.InDelta(t, singleResult.Value, result.Value, 1e-9)

	// Each rank integrated 75 intervals
	require.Len(t, result.Partials, 4)
	for rank, p := range result.Partials {
		assert.Positive(t, p, "rank %d", rank)
	}
	assert.Less(t, result.Partials[0], result.Partials[3])
	assert.Contains(t, stdout, "Integral of square over [0, 3], 300 intervals, 4 ranks: ")
}

func TestRoutine_MoreRanksThanIntervals(t *testing.T) {
	t.Parallel()

	cfg := integrate.Config{Function: integrate.FunctionSin, Lower: 0, Upper: math.Pi, Intervals: 2}
	routine, _ := applyOnGroup(t, cfg, 3)
	result, found := routine.Result()
	require.True(t, found)

	// The last rank has no intervals
	assert.Equal(t, 0.0, result.Partials[2])
	assert.InDelta(t, math.Pi/2, result.Value, 1e-9)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := integrate.NewConfig()
	cfg.Lower = 2
	cfg.Upper = 1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, "upper bound 1 must be greater than or equal to the lower bound 2", err.Error())
}
