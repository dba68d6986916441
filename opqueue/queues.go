// Package opqueue implements the two process-wide unexpected-message FIFOs:
// arrived unexpected payloads awaiting a posted receive, and posted
// unexpected-receive operations awaiting an arrival.
//
// Both queues share the property that an arrival or a post is atomically
// matched against the opposite queue. Rather than two separately-locked
// queues, a single mutex guards both slices so the match-or-enqueue
// decision is atomic.
package opqueue

import (
	"sync"

	"narpc/op"
)

// msgEntry is an arrived unexpected message without a waiting receive yet.
type msgEntry struct {
	peer    any
	tag     uint32
	payload []byte
}

// Queues holds the two process-wide FIFOs.
type Queues struct {
	mu   sync.Mutex
	msgs []*msgEntry     // unexpected_msg_queue
	ops  []*op.Operation // unexpected_op_queue
}

// New creates an empty pair of queues.
func New() *Queues {
	return &Queues{}
}

// PostRecvUnexpected handles a recv-unexpected post: if the message queue
// has an entry, pop the oldest, copy into the user buffer, complete
// synchronously. Otherwise enqueue onto the op queue.
// Caller must have already set o.Callback before calling.
func (q *Queues) PostRecvUnexpected(buf []byte, o *op.Operation) {
	q.mu.Lock()
	if len(q.msgs) > 0 {
		m := q.msgs[0]
		q.msgs = q.msgs[1:]
		q.mu.Unlock()
		n := copy(buf, m.payload)
		o.Peer = m.peer
		o.Tag = m.tag
		o.ActualSize = n
		o.Complete(nil)
		return
	}
	q.ops = append(q.ops, o)
	q.mu.Unlock()
}

// DeliverUnexpected handles an unexpected-receive event arriving off the
// wire: if the op queue has an entry, pop the oldest, copy, complete.
// Otherwise enqueue a heap copy of payload onto the message queue.
func (q *Queues) DeliverUnexpected(peer any, tag uint32, payload []byte) {
	q.mu.Lock()
	if len(q.ops) > 0 {
		o := q.ops[0]
		q.ops = q.ops[1:]
		q.mu.Unlock()
		n := copy(o.Buf, payload)
		o.Peer = peer
		o.Tag = tag
		o.ActualSize = n
		o.Complete(nil)
		return
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	q.msgs = append(q.msgs, &msgEntry{peer: peer, tag: tag, payload: cp})
	q.mu.Unlock()
}

// PendingOps reports the current depth of the op queue. Finalize uses this
// to detect outstanding unexpected receives that were never delivered.
func (q *Queues) PendingOps() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// PendingMsgs reports the current depth of unexpected_msg_queue.
func (q *Queues) PendingMsgs() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// CancelRecvUnexpected removes a not-yet-delivered posted receive from the
// op queue. Reports whether it was found and removed.
func (q *Queues) CancelRecvUnexpected(target *op.Operation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, o := range q.ops {
		if o != target {
			continue
		}
		q.ops = append(q.ops[:i], q.ops[i+1:]...)
		return true
	}
	return false
}
