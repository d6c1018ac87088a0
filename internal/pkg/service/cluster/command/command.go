// Package command defines units of work which the root rank broadcasts to all worker ranks.
//
// A command is encoded on the root, sent to all ranks and decoded on each of them,
// so each rank executes an identical copy of the command.
// Any rank-dependent behavior must be implemented inside the Execute method, using the Env.
//
// New command kinds are added by the Registry.Register method,
// the channel and the controller don't need to be modified.
package command

import (
	"context"
	"io"

	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/group"
)

// Kind identifies the concrete type of the command on the wire.
type Kind string

type Command interface {
	Kind() Kind
	// Execute the command on the current rank.
	// The error is not reported back to the root, it is handled by the local controller.
	Execute(ctx context.Context, env *Env) error
}

// Collective operations, all ranks must call the same operation in the same order.
type Collective interface {
	// Broadcast sends the payload from the origin rank to all ranks.
	// It returns on each rank after all ranks have received the payload.
	Broadcast(ctx context.Context, payload []byte, origin int) ([]byte, error)
	// Gather collects one payload from each rank to the target rank, ordered by rank.
	// Non-target ranks receive nil.
	Gather(ctx context.Context, payload []byte, target int) ([][]byte, error)
	// Barrier blocks until all ranks reach the barrier.
	Barrier(ctx context.Context) error
}

// Env is the execution environment of a command on a rank.
type Env struct {
	Group      group.Handle
	Logger     log.Logger
	Collective Collective
	Registry   *Registry
	Stdout     io.Writer
}
