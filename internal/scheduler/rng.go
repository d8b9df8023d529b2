// internal/scheduler/rng.go
package scheduler

import (
	"math/rand"
	"time"
)

// RandomSource is the injectable PRNG used for jitter and content-order
// shuffling. Generation never reads ambient randomness; a seeded source
// makes runs reproducible.
type RandomSource interface {
	Intn(n int) int
}

// NewSeededSource returns a deterministic source for the given seed.
// A zero seed falls back to the current time.
func NewSeededSource(seed int64) RandomSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
