// Package peerid derives the fixed-width 20-byte peer id sent to trackers and peers.
package peerid

import "strings"

// Size of a peer id in bytes.
const Size = 20

// Default is the configured string used when none is given.
const Default = "animate-test"

// New returns s as a peer id. Strings longer than Size are truncated to their
// first Size bytes. Shorter strings are padded on the left with '0'.
func New(s string) [Size]byte {
	var id [Size]byte
	if len(s) > Size {
		s = s[:Size]
	} else {
		s = strings.Repeat("0", Size-len(s)) + s
	}
	copy(id[:], s)
	return id
}
