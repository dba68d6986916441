package middleware

import (
	"context"
	"log"
	"time"

	"narpc/addr"
	"narpc/narpcerr"
)

// RetryMiddleware retries a call up to maxRetries times with exponential
// backoff, but only for errors that are transport-level and locally
// recoverable (Timeout, ProtocolError); a ChecksumError or NoMatch, for
// example, will not be fixed by trying again.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, peer *addr.Address, id uint32, in, out any) error {
			err := next(ctx, peer, id, in, out)
			for i := 0; i < maxRetries; i++ {
				if err == nil {
					return nil
				}
				if !retryable(err) {
					return err
				}
				log.Printf("Retry attempt %d for call %d due to error: %s", i+1, id, err)
				time.Sleep(baseDelay * time.Duration(1<<i))
				err = next(ctx, peer, id, in, out)
			}
			return err
		}
	}
}

func retryable(err error) bool {
	switch narpcerr.CodeOf(err) {
	case narpcerr.Timeout, narpcerr.ProtocolError:
		return true
	default:
		return false
	}
}
