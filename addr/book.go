package addr

import (
	"narpc/loadbalance"
	"narpc/narpcerr"
	"narpc/registry"
)

// ResolvedFunc is the callback invoked when an asynchronous lookup
// completes, carrying the fully-formed Address.
type ResolvedFunc func(a *Address, err error)

// Book is the address book & operation registry: addr_lookup is backed by
// a pluggable registry (etcd, or any registry.Registry) and, when a name
// resolves to more than one instance, a loadbalance.Balancer.
type Book struct {
	reg registry.Registry
	bal loadbalance.Balancer

	self *Address
}

// NewBook creates a Book resolving peer names through reg, picking among
// multiple resolved instances with bal.
func NewBook(reg registry.Registry, bal loadbalance.Balancer) *Book {
	return &Book{reg: reg, bal: bal}
}

// Self returns the process's own loopback address, creating it on first
// use.
func (b *Book) Self(uri string) *Address {
	if b.self == nil {
		b.self = NewSelf(uri)
	}
	return b.self
}

// candidatesOf converts discovered registry instances into the Candidate
// vocabulary loadbalance.Balancer selects over.
func candidatesOf(instances []registry.ServiceInstance) []loadbalance.Candidate {
	candidates := make([]loadbalance.Candidate, len(instances))
	for i, inst := range instances {
		candidates[i] = loadbalance.Candidate{
			ConnID:     inst.Addr,
			Weight:     inst.Weight,
			RMACapable: inst.RMACapable,
		}
	}
	return candidates
}

// Lookup resolves name to a peer Address asynchronously. It queries the
// registry for candidate instances, picks one with the configured
// Balancer, and invokes done with the resulting Address (or an error if
// no instance is available).
func (b *Book) Lookup(name string, done ResolvedFunc) {
	go func() {
		instances, err := b.reg.Discover(name)
		if err != nil {
			done(nil, err)
			return
		}
		if len(instances) == 0 {
			done(nil, narpcerr.Wrap(narpcerr.NoMatch, "addr: lookup found no instances for "+name))
			return
		}
		candidate, err := b.bal.Pick(candidatesOf(instances))
		if err != nil {
			done(nil, err)
			return
		}
		done(NewResolved(candidate.ConnID, candidate.ConnID), nil)
	}()
}

// LookupAffine resolves name the same way as Lookup, but selects among
// candidates with a fresh consistent-hash ring keyed on key rather than
// round-robin/weighted selection — repeated lookups for the same key tend
// to land on the same instance, which matters when that instance already
// holds RMA registrations a fresh candidate wouldn't have.
func (b *Book) LookupAffine(name, key string, done ResolvedFunc) {
	go func() {
		instances, err := b.reg.Discover(name)
		if err != nil {
			done(nil, err)
			return
		}
		if len(instances) == 0 {
			done(nil, narpcerr.Wrap(narpcerr.NoMatch, "addr: lookup found no instances for "+name))
			return
		}
		candidates := candidatesOf(instances)
		ring := loadbalance.NewConsistentHashBalancer()
		for i := range candidates {
			ring.Add(&candidates[i])
		}
		candidate, err := ring.Pick(key)
		if err != nil {
			done(nil, err)
			return
		}
		done(NewResolved(candidate.ConnID, candidate.ConnID), nil)
	}()
}

// Free releases a (must not occur while per-peer queues are non-empty).
func (b *Book) Free(a *Address) error {
	return a.Free()
}
