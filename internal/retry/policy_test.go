package retry

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/lepinkainen/librarylookup/internal/errors"
	"github.com/lepinkainen/librarylookup/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// recordSleeps captures requested delays instead of sleeping.
func recordSleeps(delays *[]time.Duration) Option {
	return withSleep(func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "url timeout", err: &url.Error{Op: "Get", URL: "http://x", Err: timeoutError{}}, want: true},
		{name: "url connection reset", err: &url.Error{Op: "Get", URL: "http://x", Err: stdErrors.New("connection reset by peer")}, want: true},
		{name: "dns failure", err: &net.DNSError{Err: "no such host", Name: "x.invalid"}, want: true},
		{name: "connection refused", err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, want: true},
		{name: "bare refused errno", err: fmt.Errorf("dial: %w", syscall.ECONNREFUSED), want: true},
		{name: "transport error", err: errors.NewTransportError("http://x", stdErrors.New("eof")), want: true},
		{name: "per-request deadline", err: context.DeadlineExceeded, want: true},
		{name: "500", err: errors.NewHTTPStatusError("http://x", 500, ""), want: true},
		{name: "503 wrapped", err: fmt.Errorf("page: %w", errors.NewHTTPStatusError("http://x", 503, "")), want: true},
		{name: "404", err: errors.NewHTTPStatusError("http://x", 404, ""), want: false},
		{name: "400", err: errors.NewHTTPStatusError("http://x", 400, ""), want: false},
		{name: "parse error", err: errors.NewParseError("http://x", "missing nav"), want: false},
		{name: "cancelled", err: context.Canceled, want: false},
		{name: "cancelled inside url error", err: &url.Error{Op: "Get", URL: "http://x", Err: context.Canceled}, want: false},
		{name: "plain error", err: stdErrors.New("something else"), want: false},
		{name: "exhausted", err: &errors.RetriesExhaustedError{Op: "x", Attempts: 5, Err: errors.NewHTTPStatusError("http://x", 500, "")}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestDelayForAttemptDefaults(t *testing.T) {
	p := New()

	assert.Equal(t, 1*time.Second, p.DelayForAttempt(1))
	assert.Equal(t, 2*time.Second, p.DelayForAttempt(2))
	assert.Equal(t, 4*time.Second, p.DelayForAttempt(3))
	assert.Equal(t, 8*time.Second, p.DelayForAttempt(4))
	assert.Equal(t, 15*time.Second, p.DelayForAttempt(5))
	assert.Equal(t, 15*time.Second, p.DelayForAttempt(60))
	assert.Equal(t, 1*time.Second, p.DelayForAttempt(0))
}

func TestDelayForAttemptJitterStaysInBounds(t *testing.T) {
	p := New(WithJitter(true))

	for attempt := 1; attempt <= 6; attempt++ {
		d := p.DelayForAttempt(attempt)
		assert.GreaterOrEqual(t, d, p.Base)
		assert.LessOrEqual(t, d, p.Max)
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	var delays []time.Duration
	p := New(recordSleeps(&delays))

	calls := 0
	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.NewHTTPStatusError("http://x", 502, "")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, delays)
}

func TestDoStopsOnFatalError(t *testing.T) {
	var delays []time.Duration
	p := New(recordSleeps(&delays))

	calls := 0
	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return errors.NewHTTPStatusError("http://x", 404, "")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
	assert.True(t, errors.IsClientError(err))
	assert.False(t, errors.IsRetriesExhausted(err))
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	var delays []time.Duration
	m := metrics.New()
	p := New(recordSleeps(&delays), WithName("page"), WithMetrics(m))

	calls := 0
	err := p.Do(context.Background(), "GET http://x", func(ctx context.Context) error {
		calls++
		return errors.NewTransportError("http://x", stdErrors.New("connection refused"))
	})

	require.Error(t, err)
	assert.Equal(t, DefaultMaxAttempts, calls)
	assert.Len(t, delays, DefaultMaxAttempts-1)
	assert.True(t, errors.IsRetriesExhausted(err))
	assert.True(t, errors.IsTransportError(err), "last error stays reachable")
	assert.False(t, IsRetryable(err), "exhaustion is fatal")
	assert.Contains(t, err.Error(), "GET http://x: giving up after 5 attempts")

	series, gerr := testutil.GatherAndCount(m.Registry(), "librarylookup_retries_total")
	require.NoError(t, gerr)
	assert.Equal(t, 1, series)
}

func TestDoHonoursCancelledContextWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(WithBackoff(time.Hour, time.Hour))

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Do(ctx, "test", func(ctx context.Context) error {
			return errors.NewHTTPStatusError("http://x", 500, "")
		})
	}()

	cancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

type scriptedFetcher struct {
	errs  []error
	calls int
}

func (f *scriptedFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return "", f.errs[f.calls-1]
	}
	return "<html>" + url + "</html>", nil
}

func TestWrapFetcherRetries(t *testing.T) {
	var delays []time.Duration
	p := New(recordSleeps(&delays))
	inner := &scriptedFetcher{errs: []error{
		&url.Error{Op: "Get", URL: "http://x", Err: timeoutError{}},
		errors.NewHTTPStatusError("http://x", 500, ""),
	}}

	body, err := p.WrapFetcher(inner).FetchPage(context.Background(), "http://x")

	require.NoError(t, err)
	assert.Equal(t, "<html>http://x</html>", body)
	assert.Equal(t, 3, inner.calls)
}

func TestWrapFetcherReturnsFatalImmediately(t *testing.T) {
	p := New(recordSleeps(new([]time.Duration)))
	inner := &scriptedFetcher{errs: []error{errors.NewHTTPStatusError("http://x", 403, "")}}

	_, err := p.WrapFetcher(inner).FetchPage(context.Background(), "http://x")

	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}
