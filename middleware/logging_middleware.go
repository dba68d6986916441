package middleware

import (
	"context"
	"log"
	"time"

	"narpc/addr"
)

// LoggingMiddleware records the call id, duration, and any error for each
// forwarded call. It captures the start time before calling next, and logs
// the elapsed time after next returns.
//
// Example output:
//
//	CallID: 1374806300, Duration: 42µs
//	Error: checksum error
func LoggingMiddleware() Middleware {
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, peer *addr.Address, id uint32, in, out any) error {
			start := time.Now()

			err := next(ctx, peer, id, in, out)

			duration := time.Since(start)
			log.Printf("CallID: %d, Duration: %s", id, duration)
			if err != nil {
				log.Printf("Error: %s", err)
			}
			return err
		}
	}
}
