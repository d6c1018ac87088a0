package network

import (
	"fmt"
)

// ProtocolError means that the ranks no longer agree on the state of the protocol,
// for example a frame is corrupted, it is out of sequence or a command cannot be decoded.
// The group cannot continue after the error.
type ProtocolError struct {
	Rank int
	Err  error
}

func NewProtocolError(rank int, err error) ProtocolError {
	return ProtocolError{Rank: rank, Err: err}
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("protocol error on rank %d: %s", e.Rank, e.Err.Error())
}

func (e ProtocolError) Unwrap() error {
	return e.Err
}
