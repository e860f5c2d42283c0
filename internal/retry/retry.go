// Package retry wraps remote calls with rate-limit aware exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/ShayCichocki/crewscontrol/internal/crewerr"
)

// ExceededText is the result text reported when every attempt was rate limited.
const ExceededText = "Rate limit error: Exceeded maximum retries"

// Defaults used when Config fields are zero.
const (
	DefaultBase        = 2.0
	DefaultUnit        = time.Second
	DefaultMaxAttempts = 5
)

// StatusCoder is implemented by errors that carry a remote status code.
type StatusCoder interface {
	StatusCode() int
}

// StatusError attaches a status code to an error from a remote collaborator.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("remote returned status %d", e.Code)
	}
	return e.Err.Error()
}

// StatusCode returns the remote status code.
func (e *StatusError) StatusCode() int { return e.Code }

// Unwrap exposes the cause and the matching error kind.
func (e *StatusError) Unwrap() []error {
	kind := crewerr.ErrRemote
	if e.Code == http.StatusTooManyRequests {
		kind = crewerr.ErrTransientRemote
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{e.Err, kind}
}

// IsRateLimited reports whether err carries a 429 status anywhere in its chain.
func IsRateLimited(err error) bool {
	var sc StatusCoder
	if errors.As(err, &sc) && sc.StatusCode() == http.StatusTooManyRequests {
		return true
	}
	return errors.Is(err, crewerr.ErrTransientRemote)
}

// Status is the terminal state of a retried call.
type Status int

const (
	// Succeeded means the call returned a result.
	Succeeded Status = iota
	// Failed means the call failed with a non rate-limit error.
	Failed
	// RateLimited means every attempt was rate limited.
	RateLimited
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Outcome is what a retried call produced. Text is the result on success
// and the failure message otherwise.
type Outcome struct {
	Status   Status
	Text     string
	Attempts int
}

// Config controls the backoff policy.
type Config struct {
	// Base is raised to the attempt number to get the sleep in Units.
	Base float64
	// Unit is the duration of one backoff unit.
	Unit time.Duration
	// MaxAttempts caps the number of calls.
	MaxAttempts int
	// ExitOnError makes non rate-limit failures terminate the run.
	ExitOnError bool
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Logger receives retry activity. Defaults to slog.Default().
	Logger *slog.Logger
}

// Controller runs calls under the backoff policy.
type Controller struct {
	cfg Config
	log *slog.Logger
}

// New creates a Controller, filling zero Config fields with defaults.
func New(cfg Config) *Controller {
	if cfg.Base <= 0 {
		cfg.Base = DefaultBase
	}
	if cfg.Unit <= 0 {
		cfg.Unit = DefaultUnit
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{cfg: cfg, log: logger}
}

// Backoff returns the sleep before the retry that follows the given
// failed attempt (1-indexed).
func (c *Controller) Backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(c.cfg.Base, float64(attempt)) * float64(c.cfg.Unit))
}

// Do calls fn until it succeeds, fails with a non rate-limit error, or the
// attempt cap is reached. Rate limiting and ordinary failures are reported
// through the Outcome with a nil error. An error is returned only when ctx
// is cancelled during backoff, or when a failure occurs with ExitOnError
// set, in which case it wraps crewerr.ErrAborted.
func (c *Controller) Do(ctx context.Context, label string, fn func(ctx context.Context) (string, error)) (Outcome, error) {
	for attempt := 1; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return Outcome{Status: Succeeded, Text: result, Attempts: attempt}, nil
		}

		if !IsRateLimited(err) {
			c.log.Error("remote call failed", "unit", label, "attempt", attempt, "err", err)
			out := Outcome{Status: Failed, Text: err.Error(), Attempts: attempt}
			if c.cfg.ExitOnError {
				return out, crewerr.Wrap(crewerr.ErrAborted, fmt.Sprintf("%s failed", label), err)
			}
			return out, nil
		}

		if attempt >= c.cfg.MaxAttempts {
			c.log.Error("exceeded maximum retries", "unit", label, "attempts", attempt)
			return Outcome{Status: RateLimited, Text: ExceededText, Attempts: attempt}, nil
		}

		wait := c.Backoff(attempt)
		c.log.Warn("rate limit error encountered, retrying", "unit", label, "attempt", attempt, "wait", wait)
		if err := c.cfg.Sleep(ctx, wait); err != nil {
			return Outcome{Status: Failed, Text: err.Error(), Attempts: attempt}, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
