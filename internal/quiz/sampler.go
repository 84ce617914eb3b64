package quiz

import (
	"math/rand/v2"
	"sync"
)

// Sampler picks a uniform random subset of a candidate pool.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler wraps rng. A nil rng is replaced by a randomly seeded source.
func NewSampler(rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{rng: rng}
}

// SelectIndices shuffles [0, poolSize) with Fisher-Yates and returns the first
// min(n, poolSize) positions.
func (s *Sampler) SelectIndices(poolSize, n int) []int {
	if poolSize <= 0 || n <= 0 {
		return []int{}
	}
	indices := make([]int, poolSize)
	for i := range indices {
		indices[i] = i
	}
	s.mu.Lock()
	for i := poolSize - 1; i > 0; i-- {
		j := s.rng.IntN(i + 1)
		indices[i], indices[j] = indices[j], indices[i]
	}
	s.mu.Unlock()
	if n > poolSize {
		n = poolSize
	}
	return indices[:n]
}
