package rng

import (
	"math/rand"
	"sync"
	"time"
)

// Source is the randomness used for spawn points and flavour text.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// New returns a source safe for concurrent use. A zero seed seeds from the clock.
func New(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &locked{r: rand.New(rand.NewSource(seed))}
}

type locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *locked) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}
