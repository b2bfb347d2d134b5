// Package entropy provides reproducible random draws keyed by villager and
// day, so a replay with the same seed injects the same reasoning errors.
package entropy

import (
	"math/rand/v2"
)

// Source derives an independent stream for every (villager, day) pair.
type Source struct {
	seed uint64
}

// NewSource creates a source for the given seed.
func NewSource(seed int64) *Source {
	return &Source{seed: uint64(seed)}
}

// Float returns a value in [0, 1) that depends only on the seed, villager and day.
// A nil Source behaves like seed 0.
func (s *Source) Float(villager, day int) float64 {
	var seed uint64
	if s != nil {
		seed = s.seed
	}
	stream := uint64(uint32(villager))<<32 | uint64(uint32(day))
	return rand.New(rand.NewPCG(seed, stream)).Float64()
}

// Seed returns the configured seed.
func (s *Source) Seed() int64 {
	if s == nil {
		return 0
	}
	return int64(s.seed)
}
