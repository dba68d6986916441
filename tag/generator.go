// Package tag implements the monotonic tag generator. A single shared
// counter wraps at MaxTag using an atomic compare-and-swap, the same
// lock-free idiom RoundRobinBalancer uses for its own counter
// (sync/atomic.AddInt64), generalized here to a wrapping range instead of
// a modulo-by-instance-count.
package tag

import "sync/atomic"

// Generator hands out tags in [0, MaxTag], wrapping back to zero.
type Generator struct {
	counter uint32
	maxTag  uint32
}

// New creates a generator over [0, maxTag]. Callers derive maxTag from the
// transport-reported maximum right-shifted by two bits, reserving the top
// two tag-space bits for internal uses such as RMA-request signalling.
func New(maxTag uint32) *Generator {
	return &Generator{maxTag: maxTag}
}

// MaxTag returns the configured upper bound.
func (g *Generator) MaxTag() uint32 { return g.maxTag }

// Next returns the counter's post-increment value, wrapped modulo
// MaxTag+1. Uniqueness is only guaranteed between operations issued close
// in time; callers must not rely on long-horizon uniqueness.
func (g *Generator) Next() uint32 {
	for {
		old := atomic.LoadUint32(&g.counter)
		next := old + 1
		if next > g.maxTag {
			next = 0
		}
		if atomic.CompareAndSwapUint32(&g.counter, old, next) {
			return next
		}
	}
}

// DeriveMaxTag computes MAX_TAG from the transport-reported maximum,
// reserving the top two bits for internal use.
func DeriveMaxTag(transportMax uint32) uint32 {
	return transportMax >> 2
}
