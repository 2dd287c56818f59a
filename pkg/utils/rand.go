package utils

import (
	"math/rand/v2"
)

// seedGamma decorrelates the two PCG stream words derived from one seed.
const seedGamma = 0x9e3779b97f4a7c15

// NewSource returns a deterministic random source for the given seed. Equal
// seeds always produce bit-identical streams; there is no time-based
// fallback and no shared global state.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^seedGamma)
}

// NewRand wraps NewSource in a *rand.Rand for callers that want the
// convenience methods.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(NewSource(seed))
}
