package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/flywheel/internal/config"
	"github.com/torosent/flywheel/internal/httpclient"
	"github.com/torosent/flywheel/internal/metrics"
	"github.com/torosent/flywheel/internal/runner"
)

const (
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 5 * time.Second
)

func newRequester(cfg *config.Config, tracer trace.Tracer, log *logrus.Entry) (runner.Requester, error) {
	var base runner.Requester
	switch cfg.Driver {
	case config.DriverDiag:
		base = newDiagRequester(cfg.Diag, time.Now().UnixNano())
	default:
		builder, err := httpclient.NewRequestBuilder(cfg)
		if err != nil {
			return nil, err
		}
		checks, err := httpclient.ParseChecks(cfg.ExpectJSON)
		if err != nil {
			return nil, err
		}
		base = &httpclient.Requester{
			Client:  httpclient.NewClient(cfg.Timeout),
			Builder: builder,
			Checks:  checks,
			Tracer:  tracer,
		}
	}

	wrapped := base
	if cfg.LogErrors {
		wrapped = runner.WithLogging(wrapped, &failureLogger{log: log})
	}
	if cfg.Retries > 0 {
		wrapped = runner.WithRetry(wrapped, newRetryPolicy(cfg.Retries))
	}
	return wrapped, nil
}

type failureLogger struct {
	log *logrus.Entry
}

func (l *failureLogger) LogFailure(err error) {
	if err == nil {
		return
	}
	l.log.WithError(err).WithField("kind", metrics.ClassifyError(err)).Warn("operation failed")
}

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (j *jitterSource) jitter(max time.Duration) time.Duration {
	if j == nil || max <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int63n(int64(max)))
}

func newRetryPolicy(retries int) runner.RetryPolicy {
	source := &jitterSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}

	return runner.RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: shouldRetry,
		DelayFunc: func(attempt int, _ error) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			backoff := time.Duration(1<<uint(attempt-1)) * baseRetryDelay
			if backoff > maxRetryDelay || backoff <= 0 {
				backoff = maxRetryDelay
			}
			return backoff + source.jitter(backoff/2)
		},
	}
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *runner.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code == http.StatusTooManyRequests || httpErr.Code >= 500
	}
	var checkErr *httpclient.CheckError
	if errors.As(err, &checkErr) {
		return false
	}
	return !errors.Is(err, errInjected)
}
