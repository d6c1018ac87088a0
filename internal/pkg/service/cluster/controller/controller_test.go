package controller_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/command"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/controller"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/group"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/network"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/common/dependencies"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/netutils"
)

const (
	testTimeout = 30 * time.Second
	kindRecord  = command.Kind("record")
	kindFail    = command.Kind("fail")
)

type testNode struct {
	deps     dependencies.Mocked
	ctrl     *controller.Controller
	exitCode chan int
	log      *executionLog
}

type executionLog struct {
	lock    sync.Mutex
	records []string
}

func (l *executionLog) append(v string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.records = append(l.records, v)
}

func (l *executionLog) all() []string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]string(nil), l.records...)
}

// recordCommand appends its value to the execution log of the rank.
type recordCommand struct {
	Value string `json:"value"`
	log   *executionLog
}

func (recordCommand) Kind() command.Kind {
	return kindRecord
}

func (c recordCommand) Execute(context.Context, *command.Env) error {
	c.log.append(c.Value)
	return nil
}

// failCommand fails on the rank.
type failCommand struct {
	Rank int `json:"rank"`
}

func (failCommand) Kind() command.Kind {
	return kindFail
}

func (c failCommand) Execute(_ context.Context, env *command.Env) error {
	if env.Group.Rank() == c.Rank {
		return errors.New("something went wrong")
	}
	return nil
}

// sumRoutine gathers rank numbers to the root.
type sumRoutine struct {
	result *sumResult
}

type sumResult struct {
	lock  sync.Mutex
	value int
}

func (sumRoutine) RoutineName() string {
	return "sum"
}

func (r sumRoutine) DistributedApply(ctx context.Context, env *command.Env) error {
	gathered, err := env.Collective.Gather(ctx, []byte(fmt.Sprintf("%d", env.Group.Rank())), group.RootRank)
	if err != nil {
		return err
	}
	if !env.Group.IsRoot() {
		return nil
	}

	sum := 0
	for _, item := range gathered {
		var v int
		if _, err := fmt.Sscanf(string(item), "%d", &v); err != nil {
			return err
		}
		sum += v
	}

	r.result.lock.Lock()
	defer r.result.lock.Unlock()
	r.result.value = sum
	return nil
}

func startGroup(t *testing.T, ctx context.Context, size int) []*testNode {
	t.Helper()

	addr, err := netutils.FreeLocalAddress()
	require.NoError(t, err)
	cfg := network.NewConfig()
	cfg.RootAddress = addr
	cfg.StartupTimeout = 10 * time.Second

	nodes := make([]*testNode, size)
	grp, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < size; rank++ {
		node := &testNode{
			deps:     dependencies.NewMocked(t, dependencies.WithLoggerComponent(fmt.Sprintf("rank%d", rank))),
			exitCode: make(chan int, 1),
			log:      &executionLog{},
		}
		nodes[rank] = node

		registry := command.NewRegistry()
		registry.MustRegister(kindRecord, func() command.Command { return &recordCommand{log: node.log} })
		registry.MustRegister(kindFail, func() command.Command { return &failCommand{} })

		grp.Go(func() error {
			ctrl, err := controller.New(
				ctx, node.deps, cfg, group.MustNew(rank, size),
				controller.WithRegistry(registry),
				controller.WithExitFn(func(code int) { node.exitCode <- code }),
			)
			node.ctrl = ctrl
			return err
		})
	}
	require.NoError(t, grp.Wait())
	return nodes
}

func waitForExitCode(t *testing.T, node *testNode) int {
	t.Helper()
	select {
	case code := <-node.exitCode:
		return code
	case <-time.After(10 * time.Second):
		require.Fail(t, "timeout")
		return -1
	}
}

func TestController_StopWorker(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	nodes := startGroup(t, ctx, 3)
	root := nodes[0]
	assert.Equal(t, controller.StateIdle, root.ctrl.State())
	assert.NotNil(t, root.ctrl.Dispatcher())
	assert.Nil(t, nodes[1].ctrl.Dispatcher())

	// Closing of the root controller stops all workers
	require.NoError(t, root.ctrl.Close(ctx))
	assert.Equal(t, controller.StateTerminated, root.ctrl.State())

	for rank, node := range nodes[1:] {
		rank++
		assert.Equal(t, controller.ExitCodeSuccess, waitForExitCode(t, node), "rank %d", rank)
		<-node.ctrl.Done()
		assert.Equal(t, controller.StateTerminated, node.ctrl.State())
		assert.Equal(t, fmt.Sprintf("Worker %d waiting for commands...\nTerminating worker %d\n", rank, rank), node.deps.TestStdout().String())
		assert.Contains(t, node.deps.DebugLogger().AllMessagesTxt(), fmt.Sprintf("worker %d exited with code 0", rank))
	}

	// The root doesn't terminate itself
	assert.Empty(t, root.deps.TestStdout().String())
}

func TestController_ProcessShutdown(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	nodes := startGroup(t, ctx, 2)

	// Shutdown of the root process closes the controller
	proc := nodes[0].deps.Process()
	proc.Shutdown(ctx, errors.New("bye bye"))
	proc.WaitForShutdown()

	assert.Equal(t, controller.ExitCodeSuccess, waitForExitCode(t, nodes[1]))
	assert.Equal(t, "Worker 1 waiting for commands...\nTerminating worker 1\n", nodes[1].deps.TestStdout().String())
	assert.Contains(t, nodes[0].deps.DebugLogger().AllMessagesTxt(), "stopped workers")
}

func TestController_CommandOrder(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	nodes := startGroup(t, ctx, 3)
	d := nodes[0].ctrl.Dispatcher()

	var expected []string
	for i := 0; i < 10; i++ {
		value := fmt.Sprintf("cmd%02d", i)
		expected = append(expected, value)
		require.NoError(t, d.Dispatch(ctx, recordCommand{Value: value}))
	}
	require.NoError(t, nodes[0].ctrl.Close(ctx))

	// Workers executed all commands in the order of the dispatch, the root only dispatched them
	assert.Empty(t, nodes[0].log.all())
	for _, node := range nodes[1:] {
		assert.Equal(t, controller.ExitCodeSuccess, waitForExitCode(t, node))
		assert.Equal(t, expected, node.log.all())
	}
}

func TestController_ConcurrentDispatch(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	nodes := startGroup(t, ctx, 3)
	d := nodes[0].ctrl.Dispatcher()

	// Dispatches from multiple goroutines don't interleave
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, d.Run(ctx, recordCommand{Value: fmt.Sprintf("cmd%02d", i)}))
		}()
	}
	wg.Wait()
	require.NoError(t, nodes[0].ctrl.Close(ctx))

	// All ranks have the same order
	rootLog := nodes[0].log.all()
	assert.Len(t, rootLog, 20)
	for _, node := range nodes[1:] {
		assert.Equal(t, controller.ExitCodeSuccess, waitForExitCode(t, node))
		assert.Equal(t, rootLog, node.log.all())
	}
}

func TestController_DistributedApply(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	nodes := startGroup(t, ctx, 4)
	results := make([]*sumResult, len(nodes))
	for rank, node := range nodes {
		results[rank] = &sumResult{}
		node.ctrl.Env().Registry.MustRegisterRoutine(sumRoutine{result: results[rank]})
	}

	require.NoError(t, nodes[0].ctrl.Dispatcher().Run(ctx, command.Apply[sumRoutine]()))
	assert.Equal(t, 0+1+2+3, results[0].value)

	require.NoError(t, nodes[0].ctrl.Close(ctx))
	for _, node := range nodes[1:] {
		assert.Equal(t, controller.ExitCodeSuccess, waitForExitCode(t, node))
	}
}

func TestController_WorkerFailure(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	nodes := startGroup(t, ctx, 3)

	// The command fails on the worker 2, the worker exits
	require.NoError(t, nodes[0].ctrl.Dispatcher().Dispatch(ctx, failCommand{Rank: 2}))
	assert.Equal(t, controller.ExitCodeFailure, waitForExitCode(t, nodes[2]))
	assert.Contains(t, nodes[2].deps.DebugLogger().AllMessagesTxt(), `worker 2 failed: command "fail" failed: something went wrong`)

	// The root sees the lost connection, the group cannot continue
	err := nodes[0].ctrl.Close(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot stop workers")
	assert.Equal(t, controller.ExitCodeFailure, waitForExitCode(t, nodes[1]))
}

func TestController_WorkerShutdown(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	nodes := startGroup(t, ctx, 2)

	// Shutdown of the worker process doesn't call the exit function
	proc := nodes[1].deps.Process()
	proc.Shutdown(ctx, errors.New("bye bye"))
	proc.WaitForShutdown()
	<-nodes[1].ctrl.Done()
	assert.Equal(t, controller.StateTerminated, nodes[1].ctrl.State())
	assert.Empty(t, nodes[1].exitCode)

	// The root reports an error
	err := nodes[0].ctrl.Dispatcher().Dispatch(ctx, recordCommand{Value: "foo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cannot dispatch command "record"`)
}
