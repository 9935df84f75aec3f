package async

import (
	"context"
	"errors"
	"time"

	"github.com/dekkonot/open-cloud-execute/internal/client"
	"github.com/dekkonot/open-cloud-execute/internal/config"
	"github.com/dekkonot/open-cloud-execute/internal/logger"
)

var errPollDeadline = errors.New("poll deadline exceeded")

// Attempt describes one finished query of a poll loop.
type Attempt struct {
	// Number counts queries, starting at 1.
	Number  int
	Elapsed time.Duration
	// NextDelay is the sleep before the next query, zero once polling stops.
	NextDelay time.Duration
}

// Poller holds the retry policy and the overall deadline of a poll loop. The two are
// independent: Backoff only decides how long to sleep between queries, Timeout bounds
// the whole loop including in-flight queries.
type Poller struct {
	Backoff BackoffConfig
	Timeout time.Duration

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Observe, if set, is called after every query.
	Observe func(Attempt)
}

// NewPoller builds a Poller from the poll settings in cfg.
func NewPoller(cfg *config.Config) Poller {
	return Poller{
		Backoff: BackoffConfig{
			Base:   cfg.RetryDelay,
			Max:    cfg.MaxRetryDelay,
			Factor: cfg.BackoffMultiplier,
		},
		Timeout: cfg.PollTimeout,
	}
}

// Await calls query until pending reports false for its result, sleeping between
// queries according to the backoff. A query error ends the loop at once; only
// pending results are retried. If the deadline passes first, Await returns an
// error of kind client.KindPollTimeout and no value.
func Await[T any](ctx context.Context, p Poller, query func(context.Context) (T, error), pending func(T) bool) (T, error) {
	var zero T

	ctx, cancel := context.WithTimeoutCause(ctx, p.Timeout, errPollDeadline)
	defer cancel()

	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	backoff := BackoffExponential(p.Backoff)
	start := time.Now()

	for attempt := 1; ; attempt++ {
		value, err := query(ctx)
		if err != nil {
			if timedOut(ctx) {
				return zero, pollTimeout(p.Timeout)
			}
			return zero, err
		}

		more := pending(value)
		var delay time.Duration
		if more {
			delay = backoff(attempt)
		}
		if p.Observe != nil {
			p.Observe(Attempt{Number: attempt, Elapsed: time.Since(start), NextDelay: delay})
		}
		if !more {
			return value, nil
		}

		logger.Debug("Task still pending after attempt %d, retrying in %v", attempt, delay)
		if err := sleep(ctx, delay); err != nil {
			if timedOut(ctx) {
				return zero, pollTimeout(p.Timeout)
			}
			return zero, err
		}
	}
}

func timedOut(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), errPollDeadline)
}

func pollTimeout(timeout time.Duration) error {
	logger.Warn("Gave up waiting for task after %v", timeout)
	return &client.Error{
		Kind:    client.KindPollTimeout,
		Op:      "await task",
		Message: "the provided script took too long to finish",
		Err:     context.DeadlineExceeded,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-timer.C:
		return nil
	}
}
