package payout

import (
	"math/rand"
	"time"

	"github.com/prizeworks/payoutd/internal/store"
)

// Selector draws contest winners uniformly at random without replacement.
// The randomness source is injectable so selection is reproducible in tests;
// production seeds from the wall clock at construction.
type Selector struct {
	rng *rand.Rand
}

func NewSelector(src rand.Source) *Selector {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Selector{rng: rand.New(src)}
}

// Pick returns min(k, len(entries)) distinct entries via a partial
// Fisher–Yates shuffle over a copy of the input. Zero entries or k <= 0
// yields an empty slice.
func (s *Selector) Pick(entries []store.Entry, k int) []store.Entry {
	if k <= 0 || len(entries) == 0 {
		return nil
	}
	if k > len(entries) {
		k = len(entries)
	}
	pool := make([]store.Entry, len(entries))
	copy(pool, entries)
	for i := 0; i < k; i++ {
		j := i + s.rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}
