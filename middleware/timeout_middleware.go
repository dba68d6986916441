package middleware

import (
	"context"
	"time"

	"narpc/addr"
	"narpc/narpcerr"
)

// TimeOutMiddleware enforces a maximum duration for each call. If next
// doesn't complete within the timeout, it returns narpcerr.ErrTimeout
// immediately.
//
// Implementation:
//  1. Create a context with timeout (ctx.Done() fires when timeout expires)
//  2. Run next in a goroutine, sending its result to a channel
//  3. Select between the result channel and ctx.Done()
//
// Note: the goroutine running next is NOT cancelled — it continues in the
// background. The timeout only controls when the caller gives up waiting;
// the underlying engine.RPC.Wait call still applies its own timeout.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, peer *addr.Address, id uint32, in, out any) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan error, 1) // buffered: prevent goroutine leak if timeout fires
			go func() {
				done <- next(ctx, peer, id, in, out)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return narpcerr.ErrTimeout
			}
		}
	}
}
