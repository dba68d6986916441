package loadbalance

import (
	"fmt"
	"sync/atomic"
)

// RoundRobinBalancer distributes lookups evenly across all candidates in order.
// Uses an atomic counter for lock-free, goroutine-safe operation.
//
// Best for: stateless peers where all instances have similar capacity.
type RoundRobinBalancer struct {
	counter int64 // Atomic counter, incremented on each Pick()
}

// Pick selects the next candidate in round-robin order.
// The atomic counter ensures even distribution without locks.
func (b *RoundRobinBalancer) Pick(candidates []Candidate) (*Candidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates available")
	}
	index := atomic.AddInt64(&b.counter, 1) % int64(len(candidates))
	return &candidates[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
