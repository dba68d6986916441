// Package engine implements the RPC forwarding engine: per call, it
// encodes a typed input into a header-prefixed message, pre-posts the
// expected response receive, posts the unexpected request send, handles
// oversize arguments via an RMA-readable extra buffer, and
// decodes/verifies the response.
package engine

import (
	"sync"

	"narpc/addr"
	"narpc/completion"
	"narpc/funcreg"
	"narpc/narpcerr"
	"narpc/rma"
)

// Request is the top-level call record: call id; send buffer and size;
// receive buffer and size; optional extra-send buffer and its RMA
// handle; two pending completion handles; a pointer to the caller-owned
// output value.
type Request struct {
	CallID uint32
	Peer   *addr.Address
	Tag    uint32

	sendBuf  []byte
	recvBuf  []byte
	extraBuf []byte
	extra    *rma.Handle

	sendDone *completion.Handle
	recvDone *completion.Handle

	out   any
	entry *funcreg.Entry

	mu    sync.Mutex
	err   error
	freed bool
}

// Err returns the first error observed completing the request, or nil.
func (r *Request) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Request) setErr(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}

// complete reports whether both sub-handles have fired.
func (r *Request) complete() bool {
	return r.sendDone.Done() && r.recvDone.Done()
}

// Free releases the request. Forbidden while any sub-handle is still
// outstanding; invokes the decoder's Release in release mode to free
// dynamically allocated output members, then releases the request
// record.
func (r *Request) Free() error {
	r.mu.Lock()
	if r.freed {
		r.mu.Unlock()
		return nil
	}
	if !r.complete() {
		r.mu.Unlock()
		return narpcerr.Wrap(narpcerr.ProtocolError, "request_free: sub-handle still outstanding")
	}
	r.freed = true
	r.mu.Unlock()

	if r.entry != nil && r.entry.Release != nil {
		r.entry.Release(r.out)
	}
	r.sendDone.Destroy()
	r.recvDone.Destroy()
	return nil
}
