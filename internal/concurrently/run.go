// Package concurrently maps a function over a lazy input sequence with a
// bounded number of calls in flight.
//
// Results are yielded in completion order, each paired with the input that
// produced it. As soon as one call finishes another input is pulled, so the
// number of in-flight calls stays at the limit until the inputs run out:
//
//	for r := range concurrently.Run(ctx, urls, fetch, concurrently.WithMaxConcurrency(5)) {
//	    if r.Err != nil {
//	        slog.Warn("fetch failed", "url", r.Input, "error", r.Err)
//	        continue
//	    }
//	    use(r.Output)
//	}
//
// Inputs are pulled from the calling goroutine only, so a lazy sequence that
// does its own I/O (a page walker, say) is never driven concurrently.
package concurrently

import (
	"context"
	"iter"

	"github.com/lepinkainen/librarylookup/internal/errors"
)

// DefaultMaxConcurrency is used when no limit is configured.
const DefaultMaxConcurrency = 5

// Result pairs an input with its output or error.
type Result[In, Out any] struct {
	Input  In
	Output Out
	Err    error
}

type config struct {
	maxConcurrency int
	stopOn         func(error) bool
}

// Option configures Run.
type Option func(*config)

// WithMaxConcurrency sets the number of calls allowed in flight. Values below 1 mean 1.
func WithMaxConcurrency(n int) Option {
	return func(c *config) {
		c.maxConcurrency = max(n, 1)
	}
}

// WithStopOnError stops pulling new inputs once a result whose error satisfies
// pred has been yielded. In-flight calls still complete and are yielded.
func WithStopOnError(pred func(error) bool) Option {
	return func(c *config) {
		c.stopOn = pred
	}
}

// Run calls fn for each input with at most the configured number of calls in flight.
//
// Every call shares a context derived from ctx. It is cancelled when the
// consumer stops iterating early; the remaining calls are then awaited and
// their results discarded. A panic in fn is recovered and reported as an
// *errors.PanicError on that input's result.
func Run[In, Out any](ctx context.Context, inputs iter.Seq[In], fn func(context.Context, In) (Out, error), opts ...Option) iter.Seq[Result[In, Out]] {
	cfg := config{maxConcurrency: DefaultMaxConcurrency}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(yield func(Result[In, Out]) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		next, stop := iter.Pull(inputs)
		defer stop()

		// Buffered to the limit so finished calls never block on an absent reader.
		done := make(chan Result[In, Out], cfg.maxConcurrency)
		inFlight := 0
		exhausted := false

		submit := func() bool {
			if exhausted || ctx.Err() != nil {
				return false
			}
			in, ok := next()
			if !ok {
				exhausted = true
				return false
			}
			inFlight++
			go func() {
				done <- call(ctx, in, fn)
			}()
			return true
		}

		fill := func() {
			for inFlight < cfg.maxConcurrency {
				if !submit() {
					return
				}
			}
		}

		drain := func() {
			for inFlight > 0 {
				<-done
				inFlight--
			}
		}

		fill()
		for inFlight > 0 {
			r := <-done
			inFlight--

			if r.Err != nil && cfg.stopOn != nil && cfg.stopOn(r.Err) {
				exhausted = true
			}

			if !yield(r) {
				cancel()
				drain()
				return
			}

			fill()
		}
	}
}

func call[In, Out any](ctx context.Context, in In, fn func(context.Context, In) (Out, error)) (r Result[In, Out]) {
	r.Input = in
	defer func() {
		if v := recover(); v != nil {
			r.Err = &errors.PanicError{Value: v}
		}
	}()
	r.Output, r.Err = fn(ctx, in)
	return r
}
