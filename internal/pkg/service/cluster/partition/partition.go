// Package partition splits N work items between ranks of a process group.
//
// The split is deterministic: every rank computes the same result from the same inputs,
// so no communication is needed to agree on who owns which items.
//
// Items are distributed as evenly as possible. The first (N mod size) ranks receive one extra item:
//
//	Chunks(10, 3, 1) = [4, 3, 3]
//	Chunks(10, 3, 2) = [8, 6, 6]
//
// The multiplier c scales each share, for example by the number of values per item.
package partition

import (
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

// Range is a half-open interval [Start, End) of items owned by a rank.
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int {
	return r.End - r.Start
}

func (r Range) Contains(i int) bool {
	return i >= r.Start && i < r.End
}

// Chunks returns the number of items, multiplied by c, owned by each of the size ranks.
func Chunks(n, size, c int) ([]int, error) {
	if err := validate(n, size, c); err != nil {
		return nil, err
	}

	base := n / size
	remainder := n % size
	out := make([]int, size)
	for rank := range out {
		share := base
		if rank < remainder {
			share++
		}
		out[rank] = share * c
	}
	return out, nil
}

func MustChunks(n, size, c int) []int {
	out, err := Chunks(n, size, c)
	if err != nil {
		panic(err)
	}
	return out
}

// Ranges returns the interval owned by each rank, the intervals are adjacent and cover [0, n*c).
func Ranges(n, size, c int) ([]Range, error) {
	chunks, err := Chunks(n, size, c)
	if err != nil {
		return nil, err
	}

	out := make([]Range, size)
	start := 0
	for rank, chunk := range chunks {
		out[rank] = Range{Start: start, End: start + chunk}
		start += chunk
	}
	return out, nil
}

// Owned returns the interval owned by the rank.
func Owned(rank, n, size, c int) (Range, error) {
	if rank < 0 || rank >= size {
		return Range{}, errors.Errorf(`rank %d is out of the group, size is %d`, rank, size)
	}
	ranges, err := Ranges(n, size, c)
	if err != nil {
		return Range{}, err
	}
	return ranges[rank], nil
}

func validate(n, size, c int) error {
	errs := errors.NewMultiError()
	if n < 0 {
		errs.Append(errors.Errorf(`number of items must not be negative, found %d`, n))
	}
	if size < 1 {
		errs.Append(errors.Errorf(`group size must be at least 1, found %d`, size))
	}
	if c < 0 {
		errs.Append(errors.Errorf(`multiplier must not be negative, found %d`, c))
	}
	return errs.ErrorOrNil()
}
