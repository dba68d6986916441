// Package loadbalance provides load balancing strategies for picking one
// NAL peer candidate out of several instances a name resolved to.
//
// Three strategies are implemented:
//   - RoundRobin:      Stateless peers, equal-capacity instances
//   - WeightedRandom:  Heterogeneous instances (different CPU/memory)
//   - ConsistentHash:  Stateful peers requiring cache/RMA-registration affinity
package loadbalance

// Candidate is one resolved peer a Balancer may select: a transport
// connection identity plus the attributes addr.Book uses to choose among
// several candidates for the same peer name, including whether the
// instance advertises one-sided RMA support.
type Candidate struct {
	ConnID     string // transport-level connection string, e.g. "127.0.0.1:8080"
	Weight     int    // relative weight for load balancing (higher = more traffic)
	RMACapable bool   // whether this instance can serve as the target of Put/Get
}

// Balancer is the interface for load balancing strategies.
// addr.Book.Lookup calls Pick() on each resolution to select a target
// candidate; addr.Book.LookupAffine uses its own ConsistentHashBalancer
// instead.
type Balancer interface {
	// Pick selects one candidate from the resolved list.
	// Called on every Book.Lookup — must be goroutine-safe.
	Pick(candidates []Candidate) (*Candidate, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}
