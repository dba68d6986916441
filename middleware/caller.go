package middleware

import (
	"context"
	"time"

	"narpc/addr"
	"narpc/engine"
	"narpc/narpcerr"
)

// Caller is the subset of *narpc.Runtime a base CallFunc needs. Declaring
// it as an interface here, rather than importing the root narpc package,
// keeps middleware usable against anything that can forward and wait on a
// call, the same decoupling registry.Registry/loadbalance.Balancer give
// callers instead of one concrete client.
type Caller interface {
	Forward(peer *addr.Address, id uint32, in, out any) (*engine.Request, error)
	Wait(req *engine.Request, timeout time.Duration) error
	RequestFree(req *engine.Request) error
}

// FromCaller adapts c.Forward+Wait+RequestFree into a base CallFunc that
// Chain(...) can wrap. timeout bounds the Wait call; ctx is accepted for
// middleware composability — TimeOutMiddleware races ctx.Done() above this
// base call in the chain, this base call does not watch ctx itself.
//
// The request is always freed once Wait returns, successful or not, so a
// caller driving calls exclusively through a middleware chain never has to
// hold onto the *engine.Request itself to release it.
func FromCaller(c Caller, timeout time.Duration) CallFunc {
	return func(ctx context.Context, peer *addr.Address, id uint32, in, out any) error {
		req, err := c.Forward(peer, id, in, out)
		if err != nil {
			return err
		}
		if req == nil {
			return narpcerr.ErrFail
		}
		waitErr := c.Wait(req, timeout)
		if freeErr := c.RequestFree(req); freeErr != nil && waitErr == nil {
			return freeErr
		}
		return waitErr
	}
}
