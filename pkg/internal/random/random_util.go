package random

import (
	"math/rand"

	"github.com/nspcc-dev/attestree/pkg/util"
)

// Bytes returns a random byte slice of the specified length.
func Bytes(n int) []byte {
	b := make([]byte, n)
	fill(b)
	return b
}

// Fill fills buffer with random bytes.
func Fill(buf []byte) {
	fill(buf)
}

// Uint256 returns a random Uint256.
func Uint256() util.Uint256 {
	var u util.Uint256
	fill(u[:])
	return u
}

// Int returns a random integer in [minI,maxI).
func Int(minI, maxI int) int {
	return minI + rand.Intn(maxI-minI)
}

func fill(buf []byte) {
	// Error is always nil for math/rand.
	_, _ = rand.Read(buf)
}
