package perch

import (
	"context"
	"errors"
	log "log/slog"
	"net"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry executes task with Fibonacci backoff up to 5 retries. Only idempotent
// operations (handshake, rollback delivery) belong here; commits are sent
// exactly once and are never retried. If retries are exhausted, gaveUpTask is
// invoked (when not nil) and the final error is returned.
//
// task signals a retryable failure by returning retry.RetryableError(err);
// ShouldRetry classifies transport errors for that purpose.
func Retry(ctx context.Context, task func(ctx context.Context) error, gaveUpTask func(ctx context.Context)) error {
	b := retry.NewFibonacci(1 * time.Second)
	if err := retry.Do(ctx, retry.WithMaxRetries(5, b), task); err != nil {
		log.Warn(err.Error() + ", gave up")
		if gaveUpTask != nil {
			gaveUpTask(ctx)
		}
		return err
	}
	return nil
}

// ShouldRetry reports whether the error looks like a transient transport
// failure worth another attempt.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	// Context cancellations/timeouts are permanent from the caller's POV.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Network timeouts are the classic transient case.
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	// Connection-level errno seen while the server restarts or the route flaps.
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.ETIMEDOUT):
		return true
	}

	return false
}
