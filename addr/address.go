// Package addr implements the peer address book: the per-peer
// posted-receive matching that pairs an expected send against a
// pre-posted (or not-yet-posted) expected receive, including early-arrival
// caching.
//
// The matching rules use an intrusive ordered-sequence replacement for the
// usual linked-list approach: rxs and early are ordered sequences owned by
// the Address record, not global tables keyed by pointer.
package addr

import (
	"sync"

	"narpc/narpcerr"
	"narpc/op"
)

// earlyEntry is an expected message that arrived before its matching
// recv-expected was posted.
type earlyEntry struct {
	tag     uint32
	payload []byte
}

// Address is the peer address record.
type Address struct {
	mu sync.Mutex

	connID           string // transport-level connection identity, opaque to callers
	uri              string
	unexpectedOrigin bool
	self             bool

	rxs   []*op.Operation // posted recv-expected ops awaiting a matching send
	early []*earlyEntry   // arrived expected messages awaiting a matching post
}

// NewSelf creates the loopback/self address. Self peers have no connection
// identity.
func NewSelf(uri string) *Address {
	return &Address{uri: uri, self: true}
}

// NewResolved creates an address for a peer resolved through a lookup.
func NewResolved(connID, uri string) *Address {
	return &Address{connID: connID, uri: uri}
}

// NewUnexpectedOrigin creates an address implicitly, the first time an
// unexpected receive arrives from a previously-unknown peer.
func NewUnexpectedOrigin(connID, uri string) *Address {
	return &Address{connID: connID, uri: uri, unexpectedOrigin: true}
}

// URI returns the address's string connection URI.
func (a *Address) URI() string { return a.uri }

// ConnID returns the transport-level connection identity. Empty for self
// addresses.
func (a *Address) ConnID() string { return a.connID }

// Self reports whether this is the loopback address.
func (a *Address) Self() bool { return a.self }

// UnexpectedOrigin reports whether this address was created implicitly from
// an unexpected arrival rather than a lookup.
func (a *Address) UnexpectedOrigin() bool { return a.unexpectedOrigin }

// PostRecvExpected posts a recv-expected(peer, tag, buf, op): scan early in
// insertion order; on the first match, copy min(cap, entry.len) bytes and
// complete synchronously. Otherwise append op to rxs and return without
// completing — the caller must have already registered op's callback,
// since completion may fire from this call.
func (a *Address) PostRecvExpected(tag uint32, buf []byte, o *op.Operation) {
	a.mu.Lock()
	for i, e := range a.early {
		if e.tag != tag {
			continue
		}
		a.early = append(a.early[:i], a.early[i+1:]...)
		a.mu.Unlock()
		n := copy(buf, e.payload)
		o.Tag = tag
		o.ActualSize = n
		o.Peer = a
		o.Complete(nil)
		return
	}
	a.rxs = append(a.rxs, o)
	a.mu.Unlock()
}

// DeliverExpected handles an expected-receive event arriving with tag T and
// payload P: scan rxs in insertion order; on the first match, copy
// min(op.cap, |P|) bytes and complete. Otherwise cache a freshly-allocated
// copy of P as an early arrival.
func (a *Address) DeliverExpected(tag uint32, payload []byte) {
	a.mu.Lock()
	for i, o := range a.rxs {
		if o.Tag != tag {
			continue
		}
		a.rxs = append(a.rxs[:i], a.rxs[i+1:]...)
		a.mu.Unlock()
		n := copy(o.Buf, payload)
		o.ActualSize = n
		o.Peer = a
		o.Complete(nil)
		return
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	a.early = append(a.early, &earlyEntry{tag: tag, payload: cp})
	a.mu.Unlock()
}

// CancelRecvExpected removes a not-yet-delivered posted receive. Cancel is
// best-effort and may dequeue not-yet-delivered posted receives. Reports
// whether it found and removed the operation.
func (a *Address) CancelRecvExpected(target *op.Operation) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, o := range a.rxs {
		if o != target {
			continue
		}
		a.rxs = append(a.rxs[:i], a.rxs[i+1:]...)
		return true
	}
	return false
}

// Free releases the address. Freeing must not occur while per-peer queues
// are non-empty; implementations must drain or reject. This implementation
// rejects.
func (a *Address) Free() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.rxs) != 0 || len(a.early) != 0 {
		return narpcerr.Wrap(narpcerr.ProtocolError, "addr: free with non-empty per-peer queues")
	}
	return nil
}

// EarlyLen reports the current early-arrival queue depth, for tests.
func (a *Address) EarlyLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.early)
}

// RxsLen reports the current posted-receive queue depth, for tests.
func (a *Address) RxsLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.rxs)
}
