// Package idgenerator generates random identifiers shared by all ranks of a group.
package idgenerator

import gonanoid "github.com/matoous/go-nanoid/v2"

const (
	SessionIDLength = 16
	sessionAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// SessionID identifies one formation of the process group, the root generates it and workers echo it.
// Lowercase only, so the ID can be used in file and metric names.
func SessionID() string {
	return gonanoid.MustGenerate(sessionAlphabet, SessionIDLength)
}
