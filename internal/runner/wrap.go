package runner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// HTTPError is an operation that reached the target but got a failing status.
type HTTPError struct {
	Code int
	Body string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// StatusCode lets the metrics classifier bucket the failure.
func (e *HTTPError) StatusCode() int { return e.Code }

// tries counts the attempts made by one operation, retries included.
type tries struct{ n atomic.Int64 }

type triesKey struct{}

func withTries(ctx context.Context) (context.Context, *tries) {
	t := &tries{}
	return context.WithValue(ctx, triesKey{}, t), t
}

func (t *tries) count() int {
	return max(1, int(t.n.Load()))
}

func addTry(ctx context.Context) {
	if t, ok := ctx.Value(triesKey{}).(*tries); ok {
		t.n.Add(1)
	}
}

// FailureLogger receives every failed attempt.
type FailureLogger interface {
	LogFailure(err error)
}

// RetryPolicy bounds how often an operation is re-attempted.
type RetryPolicy struct {
	MaxAttempts int              // total attempts, first one included
	Delay       time.Duration    // used when DelayFunc is nil
	ShouldRetry func(error) bool // nil retries everything
	DelayFunc   func(attempt int, err error) time.Duration
}

func (p RetryPolicy) retryable(err error) bool {
	return p.ShouldRetry == nil || p.ShouldRetry(err)
}

func (p RetryPolicy) backoff(attempt int, err error) time.Duration {
	if p.DelayFunc != nil {
		return p.DelayFunc(attempt, err)
	}
	return p.Delay
}

type requesterFunc func(ctx context.Context) error

func (f requesterFunc) Do(ctx context.Context) error { return f(ctx) }

// WithRetry re-attempts failed operations according to policy. Every attempt
// is counted towards the operation's tries.
func WithRetry(req Requester, policy RetryPolicy) Requester {
	if policy.MaxAttempts <= 1 {
		return req
	}
	return requesterFunc(func(ctx context.Context) error {
		var err error
		for attempt := 1; ; attempt++ {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			addTry(ctx)
			if err = req.Do(ctx); err == nil {
				return nil
			}
			if attempt == policy.MaxAttempts || !policy.retryable(err) {
				return err
			}
			if err := sleep(ctx, policy.backoff(attempt, err)); err != nil {
				return err
			}
		}
	})
}

// WithLogging hands each failure to logger before returning it.
func WithLogging(req Requester, logger FailureLogger) Requester {
	if logger == nil {
		return req
	}
	return requesterFunc(func(ctx context.Context) error {
		err := req.Do(ctx)
		if err != nil {
			logger.LogFailure(err)
		}
		return err
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
