package narpc

import (
	"narpc/addr"
	"narpc/narpcerr"
	"narpc/op"
)

// errCancelled marks an operation completed via Cancel rather than a
// transport event. The stable Code enumeration has no dedicated cancelled
// code, so it carries Fail with an "operation cancelled" message.
var errCancelled = narpcerr.Wrap(narpcerr.Fail, "operation cancelled")

// CancelRecvExpected cancels a posted recv-expected: if op has not yet
// been delivered, it is dequeued from peer's rxs and completed with a
// cancelled status. Reports whether the operation was found and
// cancelled; false means it had already completed (or was never posted
// on peer).
func (rt *Runtime) CancelRecvExpected(peer *addr.Address, o *op.Operation) bool {
	if !peer.CancelRecvExpected(o) {
		return false
	}
	o.Complete(errCancelled)
	return true
}

// CancelRecvUnexpected is the unexpected-queue counterpart of
// CancelRecvExpected, dequeuing from the process-wide unexpected-op
// queue.
func (rt *Runtime) CancelRecvUnexpected(o *op.Operation) bool {
	if !rt.queues.CancelRecvUnexpected(o) {
		return false
	}
	o.Complete(errCancelled)
	return true
}
