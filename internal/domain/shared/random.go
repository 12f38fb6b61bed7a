package shared

import (
	"math/rand/v2"
	"sync"
)

// Rand is the random source behind every probabilistic roll (gacha, combine,
// spin). *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	// Float64 returns a uniform value in [0.0, 1.0).
	Float64() float64
	// IntN returns a uniform value in [0, n).
	IntN(n int) int
}

// SystemRand uses the runtime-seeded global generator. Safe for concurrent use.
type SystemRand struct{}

// Float64 implements Rand.
func (SystemRand) Float64() float64 { return rand.Float64() }

// IntN implements Rand.
func (SystemRand) IntN(n int) int { return rand.IntN(n) }

// SeededRand is a deterministic, goroutine-safe source for tests and simulations.
type SeededRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededRand creates a PCG-backed source from two seeds.
func NewSeededRand(seed1, seed2 uint64) *SeededRand {
	return &SeededRand{r: rand.New(rand.NewPCG(seed1, seed2))}
}

// Float64 implements Rand.
func (s *SeededRand) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// IntN implements Rand.
func (s *SeededRand) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}
