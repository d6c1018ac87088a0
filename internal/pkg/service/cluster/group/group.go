// Package group provides the identity of the current process within a fixed-size process group.
package group

import (
	"fmt"

	"github.com/keboola/lockstep-cluster/internal/pkg/service/cluster/partition"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

// RootRank is the rank of the process which directs the group.
const RootRank = 0

// Handle is an immutable rank and size of the process group.
type Handle struct {
	rank int
	size int
}

func New(rank, size int) (Handle, error) {
	if size < 1 {
		return Handle{}, errors.Errorf(`group size must be at least 1, found %d`, size)
	}
	if rank < 0 || rank >= size {
		return Handle{}, errors.Errorf(`rank must be in the range [0, %d), found %d`, size, rank)
	}
	return Handle{rank: rank, size: size}, nil
}

func MustNew(rank, size int) Handle {
	h, err := New(rank, size)
	if err != nil {
		panic(err)
	}
	return h
}

func (h Handle) Rank() int {
	return h.rank
}

func (h Handle) Size() int {
	return h.size
}

func (h Handle) IsRoot() bool {
	return h.rank == RootRank
}

// Workers returns ranks of all non-root processes, in ascending order.
func (h Handle) Workers() []int {
	out := make([]int, 0, h.size-1)
	for rank := RootRank + 1; rank < h.size; rank++ {
		out = append(out, rank)
	}
	return out
}

// MapChunks splits n items, each multiplied by c, between all ranks of the group.
func (h Handle) MapChunks(n, c int) ([]int, error) {
	return partition.Chunks(n, h.size, c)
}

// OwnedRange returns the interval of n items, each multiplied by c, owned by the current rank.
func (h Handle) OwnedRange(n, c int) (partition.Range, error) {
	return partition.Owned(h.rank, n, h.size, c)
}

func (h Handle) String() string {
	return fmt.Sprintf("rank %d/%d", h.rank, h.size)
}
