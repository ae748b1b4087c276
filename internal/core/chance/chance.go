// Package chance provides the injected randomness used by the simulation.
// Nothing in the core reads global random state.
package chance

import (
	"math/rand/v2"
	"sync"
)

type Source interface {
	// IntN returns a uniform value in [0, n). n must be positive.
	IntN(n int) int
}

// Locked is a seeded PCG generator safe for concurrent use.
type Locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

func New(seed uint64) *Locked {
	return &Locked{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *Locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// Between returns a uniform value in [lo, hi].
func Between(src Source, lo, hi int) int {
	return lo + src.IntN(hi-lo+1)
}

func Pick[T any](src Source, xs []T) T {
	return xs[src.IntN(len(xs))]
}

// Sample returns k distinct elements of xs using a partial Fisher-Yates
// shuffle over a copy. k is capped at len(xs).
func Sample[T any](src Source, xs []T, k int) []T {
	buf := make([]T, len(xs))
	copy(buf, xs)
	k = min(k, len(buf))
	for i := 0; i < k; i++ {
		j := i + src.IntN(len(buf)-i)
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf[:k]
}
