// Package retry classifies fetch failures and re-runs transient ones with
// capped exponential backoff.
package retry

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/url"
	"syscall"
	"time"

	"github.com/lepinkainen/librarylookup/internal/errors"
	"github.com/lepinkainen/librarylookup/internal/metrics"
)

const (
	DefaultMaxAttempts = 5
	DefaultBase        = 1 * time.Second
	DefaultMax         = 15 * time.Second
	DefaultMultiplier  = 2.0
)

// Policy decides whether a failure is worth retrying and how long to wait.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
	Multiplier  float64
	Jitter      bool

	name    string
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a Policy.
type Option func(*Policy)

// WithMaxAttempts overrides the attempt limit. Values below 1 mean one attempt.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n < 1 {
			n = 1
		}
		p.MaxAttempts = n
	}
}

// WithBackoff overrides the base and maximum delay.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(p *Policy) {
		if base > 0 {
			p.Base = base
		}
		if maxDelay > 0 {
			p.Max = maxDelay
		}
	}
}

// WithJitter adds a random extra delay of up to half the computed backoff.
func WithJitter(enabled bool) Option {
	return func(p *Policy) {
		p.Jitter = enabled
	}
}

// WithName labels the policy in logs and metrics.
func WithName(name string) Option {
	return func(p *Policy) {
		p.name = name
	}
}

// WithMetrics counts scheduled retries.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Policy) {
		p.metrics = m
	}
}

// withSleep replaces the wait between attempts (tests).
func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Policy) {
		p.sleep = fn
	}
}

// New creates a Policy with default values modified by opts.
func New(opts ...Option) *Policy {
	p := &Policy{
		MaxAttempts: DefaultMaxAttempts,
		Base:        DefaultBase,
		Max:         DefaultMax,
		Multiplier:  DefaultMultiplier,
		name:        "default",
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.Max < p.Base {
		p.Max = p.Base
	}
	return p
}

// IsRetryable reports whether err is a transient failure: anything at the
// transport layer, or an HTTP status of 500 and above. Client errors, parse
// errors and cancellation are fatal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stdErrors.Is(err, context.Canceled) {
		return false
	}
	if errors.IsParseError(err) || errors.IsRetriesExhausted(err) {
		return false
	}

	var statusErr *errors.HTTPStatusError
	if stdErrors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}

	if errors.IsTransportError(err) {
		return true
	}

	var urlErr *url.Error
	if stdErrors.As(err, &urlErr) {
		return true
	}

	var dnsErr *net.DNSError
	if stdErrors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if stdErrors.As(err, &opErr) {
		return true
	}

	var netErr net.Error
	if stdErrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if stdErrors.Is(err, syscall.ECONNREFUSED) || stdErrors.Is(err, syscall.ECONNRESET) {
		return true
	}

	return stdErrors.Is(err, context.DeadlineExceeded)
}

// DelayForAttempt returns the wait after the given (1-based) failed attempt.
func (p *Policy) DelayForAttempt(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.Base) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.Max) || math.IsInf(delay, 1) {
		delay = float64(p.Max)
	}
	d := time.Duration(delay)
	if p.Jitter && d > 1 {
		d += rand.N(d / 2)
	}
	return min(max(d, p.Base), p.Max)
}

// Do runs fn until it succeeds, fails fatally, or runs out of attempts.
// op names the operation in logs and in the exhaustion error.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.DelayForAttempt(attempt)
		slog.Debug("Retrying after transient failure", "policy", p.name, "op", op, "attempt", attempt, "delay", delay, "error", err)
		p.metrics.IncRetry(p.name)

		if err := p.sleep(ctx, delay); err != nil {
			return stdErrors.Join(err, lastErr)
		}
	}

	return &errors.RetriesExhaustedError{Op: op, Attempts: p.MaxAttempts, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
