// Package wait polls the application until a condition holds or a bounded
// timeout expires. It replaces every fixed sleep in the harness.
//
// A probe runs once immediately and then once per interval. Not-found and
// stale-element errors mean "not yet" and are retried; any other error, or one
// wrapped with Break, aborts the wait. Probes must only observe: they never
// inject input.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/logger"
)

// ErrNotYet is returned by probes whose condition does not hold yet.
var ErrNotYet = errors.New("condition not met yet")

// Options bounds a wait.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Validate rejects non-positive durations and an interval longer than the timeout.
func (o Options) Validate() error {
	switch {
	case o.Timeout <= 0:
		return core.ErrPreconditionViolation.WithMessagef("wait timeout must be positive, got %v", o.Timeout)
	case o.Interval <= 0:
		return core.ErrPreconditionViolation.WithMessagef("wait interval must be positive, got %v", o.Interval)
	case o.Interval > o.Timeout:
		return core.ErrPreconditionViolation.WithMessagef("wait interval %v exceeds timeout %v", o.Interval, o.Timeout)
	}
	return nil
}

// WithTimeout returns a copy with a different timeout. The interval is
// clamped so the result stays valid.
func (o Options) WithTimeout(d time.Duration) Options {
	o.Timeout = d
	if o.Interval > d {
		o.Interval = d
	}
	return o
}

type breakError struct {
	err error
}

func (e *breakError) Error() string { return e.err.Error() }
func (e *breakError) Unwrap() error { return e.err }

// Break marks err as fatal: the wait stops and returns err unwrapped.
func Break(err error) error {
	if err == nil {
		return nil
	}
	return &breakError{err: err}
}

// TimeoutError is returned when the condition did not hold within the timeout
// or the parent context ended first.
type TimeoutError struct {
	Name      string
	Timeout   time.Duration
	Elapsed   time.Duration
	LastErr   error       // last retryable error from the probe
	LastValue interface{} // last value the probe observed
	Err       error       // context error when the parent context ended early
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s: not satisfied within %v", e.Name, e.Timeout)
	if e.Err != nil && !errors.Is(e.Err, context.DeadlineExceeded) {
		msg = fmt.Sprintf("%s: interrupted after %v: %v", e.Name, e.Elapsed.Round(time.Millisecond), e.Err)
	}
	if e.LastErr != nil && !errors.Is(e.LastErr, ErrNotYet) {
		msg += fmt.Sprintf(" (last error: %v)", e.LastErr)
	}
	if e.LastValue != nil {
		msg += fmt.Sprintf(" (last observed: %v)", e.LastValue)
	}
	return msg
}

// Unwrap exposes both the last probe error and the context error.
func (e *TimeoutError) Unwrap() []error {
	var errs []error
	if e.LastErr != nil {
		errs = append(errs, e.LastErr)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Is matches core.ErrWaitTimeout.
func (e *TimeoutError) Is(target error) bool {
	t, ok := target.(*core.ExecutionError)
	return ok && t.Code == core.ErrWaitTimeout.Code
}

// As converts the timeout into a timeout-category execution error.
func (e *TimeoutError) As(target interface{}) bool {
	t, ok := target.(**core.ExecutionError)
	if !ok {
		return false
	}
	*t = core.ErrWaitTimeout.WithMessage(e.Error()).WithCause(e.LastErr).WithDetails(map[string]interface{}{
		"name":    e.Name,
		"timeout": e.Timeout.String(),
		"elapsed": e.Elapsed.String(),
	})
	return true
}

// Retryable reports whether a probe error means "not yet".
func Retryable(err error) bool {
	return errors.Is(err, ErrNotYet) ||
		errors.Is(err, core.ErrElementNotFound) ||
		errors.Is(err, core.ErrStaleElement)
}

// Until runs probe until it succeeds, returns a fatal error, or the timeout expires.
func Until[T any](ctx context.Context, name string, opts Options, probe func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := opts.Validate(); err != nil {
		return zero, err
	}

	start := time.Now()
	wctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var (
		last    T
		lastErr error
		seen    bool
	)
	timeout := func() (T, error) {
		te := &TimeoutError{
			Name:    name,
			Timeout: opts.Timeout,
			Elapsed: time.Since(start),
			LastErr: lastErr,
			Err:     wctx.Err(),
		}
		if _, unit := any(last).(struct{}); seen && !unit {
			te.LastValue = last
		}
		logger.Debug("wait %q gave up after %v: %v", name, te.Elapsed.Round(time.Millisecond), lastErr)
		return last, te
	}

	for {
		v, err := probe(wctx)
		if err == nil {
			return v, nil
		}

		var b *breakError
		if errors.As(err, &b) {
			return v, b.err
		}
		if wctx.Err() != nil {
			// Probe was cut short by the deadline or parent cancellation.
			if Retryable(err) {
				last, lastErr, seen = v, err, true
			}
			return timeout()
		}
		if !Retryable(err) {
			return v, err
		}
		last, lastErr, seen = v, err, true

		timer := time.NewTimer(opts.Interval)
		select {
		case <-wctx.Done():
			timer.Stop()
			return timeout()
		case <-timer.C:
		}
	}
}

// Poll waits until cond reports true.
func Poll(ctx context.Context, name string, opts Options, cond func(context.Context) (bool, error)) error {
	_, err := Until(ctx, name, opts, func(ctx context.Context) (struct{}, error) {
		ok, err := cond(ctx)
		if err != nil {
			return struct{}{}, err
		}
		if !ok {
			return struct{}{}, ErrNotYet
		}
		return struct{}{}, nil
	})
	return err
}
