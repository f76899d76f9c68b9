// Package randid generates short random identifiers for sessions.
package randid

import (
	"math/rand/v2"
	"strings"
)

// Alphabet holds the characters an identifier is drawn from.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Generate creates a random identifier of the given length.
func Generate(length int) string {
	var b strings.Builder
	b.Grow(length)
	for range length {
		b.WriteByte(Alphabet[rand.IntN(len(Alphabet))])
	}
	return b.String()
}

// Valid reports whether id has the given length and only uses Alphabet.
func Valid(id string, length int) bool {
	if len(id) != length {
		return false
	}
	for i := range len(id) {
		if strings.IndexByte(Alphabet, id[i]) < 0 {
			return false
		}
	}
	return true
}
