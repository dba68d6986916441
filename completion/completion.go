// Package completion gives the RPC forwarding engine a create, complete,
// wait, destroy surface for request completions. One Handle backs each
// request sub-handle (send, recv).
package completion

import (
	"sync"
	"time"

	"narpc/narpcerr"
)

// Handle is a single-fire completion gate.
type Handle struct {
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

// Create opens a new, unfired completion handle.
func Create() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Complete fires the handle exactly once; subsequent calls are no-ops,
// the same false-to-true-once behavior as op.Operation.Complete.
func (h *Handle) Complete(err error) {
	h.once.Do(func() {
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		close(h.done)
	})
}

// Wait blocks until Complete fires or timeout elapses (timeout <= 0 means
// wait indefinitely), returning the completion error or narpcerr.ErrTimeout.
func (h *Handle) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		<-h.done
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-h.done:
		case <-timer.C:
			return narpcerr.ErrTimeout
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Done reports whether Complete has already fired, without blocking.
func (h *Handle) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Destroy releases the handle. A fired Handle holds no resources beyond the
// closed channel, which the garbage collector reclaims; Destroy exists to
// match the external facility's create/complete/wait/destroy surface.
func (h *Handle) Destroy() {}
