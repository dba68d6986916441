// Package middleware implements an onion-model middleware chain for
// narpc, retargeted from decorating a server-side handler onto decorating
// the caller-side Forward+Wait round trip.
//
// Onion model execution order:
//
//	Chain(A, B, C)(call)  →  A(B(C(call)))
//
//	Request:   A.before → B.before → C.before → call
//	Response:  call → C.after → B.after → A.after
package middleware

import (
	"context"

	"narpc/addr"
)

// CallFunc issues a single forward-then-wait round trip for call id
// against peer, decoding the response into out. It is the unit every
// middleware wraps.
type CallFunc func(ctx context.Context, peer *addr.Address, id uint32, in, out any) error

// Middleware takes a CallFunc and returns a new one wrapping it.
type Middleware func(next CallFunc) CallFunc

// Chain composes middlewares into one, building right to left so the first
// middleware listed is the outermost layer.
//
//	chain := Chain(LoggingMiddleware(), TimeOutMiddleware(time.Second), RateLimitMiddleware(100, 10))
//	call := chain(baseCall)
//	// Execution: Logging → Timeout → RateLimit → baseCall → RateLimit → Timeout → Logging
func Chain(middlewares ...Middleware) Middleware {
	return func(next CallFunc) CallFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
