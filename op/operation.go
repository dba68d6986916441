// Package op defines the Operation Record: the runtime bookkeeping for a
// single outstanding asynchronous operation, carrying its callback and
// kind-specific state. It has no dependency on addr/event/engine so that
// all of them can depend on it without an import cycle, the same
// flattening a message type gets by staying independent of both the
// transport and the dispatcher that use it.
package op

import (
	"sync"

	"narpc/rma"
)

// Kind enumerates the operation kinds the NAL tracks.
type Kind int

const (
	KindLookup Kind = iota
	KindSendUnexpected
	KindRecvUnexpected
	KindSendExpected
	KindRecvExpected
	KindPut
	KindGet
)

func (k Kind) String() string {
	switch k {
	case KindLookup:
		return "lookup"
	case KindSendUnexpected:
		return "send-unexpected"
	case KindRecvUnexpected:
		return "recv-unexpected"
	case KindSendExpected:
		return "send-expected"
	case KindRecvExpected:
		return "recv-expected"
	case KindPut:
		return "put"
	case KindGet:
		return "get"
	default:
		return "unknown"
	}
}

// CompletionFunc is invoked exactly once when an Operation transitions to
// completed.
type CompletionFunc func(o *Operation)

// Operation is the Operation Record. Peer/Tag/Buf/ActualSize/ID are
// kind-specific payload fields; not every kind uses every field.
type Operation struct {
	Kind     Kind
	Callback CompletionFunc
	UserArg  any

	// kind-specific payload
	Peer       any // opaque *addr.Address; kept as `any` to avoid an import cycle
	Tag        uint32
	Buf        []byte
	ActualSize int
	ID         uint64 // transport-assigned operation id, for SEND/PUT/GET completions

	// RMA is the remote handle a KindPut/KindGet operation referenced via
	// AddRef before posting. Complete releases it exactly once, so a
	// completed put/get never leaves the handle's reference count stuck
	// above zero.
	RMA *rma.Handle

	mu        sync.Mutex
	completed bool
	Err       error
}

// Complete transitions the record false->true exactly once and, on the
// first call only, invokes the callback from the calling goroutine —
// this is what preserves the "synchronous completion" short-circuit for
// matches found at post time.
func (o *Operation) Complete(err error) {
	o.mu.Lock()
	if o.completed {
		o.mu.Unlock()
		return
	}
	o.completed = true
	o.Err = err
	cb := o.Callback
	remote := o.RMA
	o.mu.Unlock()
	if remote != nil {
		remote.Release()
	}
	if cb != nil {
		cb(o)
	}
}

// Completed reports whether Complete has already fired.
func (o *Operation) Completed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.completed
}
