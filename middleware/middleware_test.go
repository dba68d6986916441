package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"narpc/addr"
	"narpc/narpcerr"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(next CallFunc) CallFunc {
			return func(ctx context.Context, peer *addr.Address, id uint32, in, out any) error {
				order = append(order, name+":before")
				err := next(ctx, peer, id, in, out)
				order = append(order, name+":after")
				return err
			}
		}
	}
	base := func(ctx context.Context, peer *addr.Address, id uint32, in, out any) error {
		order = append(order, "base")
		return nil
	}
	call := Chain(mk("A"), mk("B"))(base)
	if err := call(context.Background(), nil, 1, nil, nil); err != nil {
		t.Fatalf("call: %v", err)
	}
	want := []string{"A:before", "B:before", "base", "B:after", "A:after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestRateLimitMiddlewareRejectsBeyondBurst(t *testing.T) {
	calls := 0
	base := func(ctx context.Context, peer *addr.Address, id uint32, in, out any) error {
		calls++
		return nil
	}
	call := RateLimitMiddleware(1, 1)(base)
	if err := call(context.Background(), nil, 1, nil, nil); err != nil {
		t.Fatalf("first call: %v", err)
	}
	err := call(context.Background(), nil, 1, nil, nil)
	if err == nil {
		t.Fatal("expected second call within the same tick to be rate limited")
	}
	if calls != 1 {
		t.Fatalf("base called %d times, want 1", calls)
	}
}

func TestRetryMiddlewareRetriesOnlyRecoverableErrors(t *testing.T) {
	attempts := 0
	base := func(ctx context.Context, peer *addr.Address, id uint32, in, out any) error {
		attempts++
		return narpcerr.ErrChecksumError
	}
	call := RetryMiddleware(3, time.Microsecond)(base)
	err := call(context.Background(), nil, 1, nil, nil)
	if !errors.Is(err, narpcerr.ErrChecksumError) {
		t.Fatalf("err = %v, want ChecksumError", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (checksum errors are not retryable)", attempts)
	}
}

func TestRetryMiddlewareRetriesTimeout(t *testing.T) {
	attempts := 0
	base := func(ctx context.Context, peer *addr.Address, id uint32, in, out any) error {
		attempts++
		if attempts < 3 {
			return narpcerr.ErrTimeout
		}
		return nil
	}
	call := RetryMiddleware(5, time.Microsecond)(base)
	if err := call(context.Background(), nil, 1, nil, nil); err != nil {
		t.Fatalf("call: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestTimeOutMiddlewareFiresOnSlowCall(t *testing.T) {
	base := func(ctx context.Context, peer *addr.Address, id uint32, in, out any) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	call := TimeOutMiddleware(5 * time.Millisecond)(base)
	err := call(context.Background(), nil, 1, nil, nil)
	if !errors.Is(err, narpcerr.ErrTimeout) {
		t.Fatalf("err = %v, want Timeout", err)
	}
}
