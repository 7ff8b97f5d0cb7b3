// Package screen holds the action and result objects scenarios drive the
// application with.
//
// Every operation hangs off a Run and returns its receiver, so a scenario
// reads as a chain:
//
//	r.Login().SignIn(paid)
//	r.Settings().Open().Set(screen.DarkMode, true)
//	r.SettingsResult().AssertSetting(screen.DarkMode, true)
//
// A Run records every operation as a core.AssertionResult. The first failure
// is sticky: later operations are recorded as skipped and do nothing.
// Required elements are looked up fresh on each use with a short bounded wait;
// their absence fails the operation.
package screen

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/filecheck"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/logger"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/selector"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/uitree"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/wait"
)

// Session is what screens need from the session controller.
type Session interface {
	Driver() core.Driver
	LaunchOrAttach(ctx context.Context) error
	Focus(ctx context.Context, kind core.WindowKind) error
	AwaitExit(ctx context.Context, timeout time.Duration) error
}

// Timeouts bounds the waits screens perform.
type Timeouts struct {
	Find     time.Duration // required element lookup
	Login    time.Duration // sign-in round trip
	Sync     time.Duration // sync progress changes
	Popup    time.Duration // popups, delayed toggles, file side effects
	Restart  time.Duration // in-app restart: exit and relaunch
	Interval time.Duration // polling cadence
}

// DefaultTimeouts returns the timeouts used against a real application.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Find:     5 * time.Second,
		Login:    60 * time.Second,
		Sync:     120 * time.Second,
		Popup:    30 * time.Second,
		Restart:  60 * time.Second,
		Interval: 250 * time.Millisecond,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	def := DefaultTimeouts()
	pick := func(v, d time.Duration) time.Duration {
		if v <= 0 {
			return d
		}
		return v
	}
	return Timeouts{
		Find:     pick(t.Find, def.Find),
		Login:    pick(t.Login, def.Login),
		Sync:     pick(t.Sync, def.Sync),
		Popup:    pick(t.Popup, def.Popup),
		Restart:  pick(t.Restart, def.Restart),
		Interval: pick(t.Interval, def.Interval),
	}
}

// Options configures a Run.
type Options struct {
	Timeouts Timeouts
	Paths    filecheck.Paths
	Messages Messages
	// Seed seeds random port selection. Zero seeds from the clock.
	Seed int64
}

// staleRetries bounds how often an input op re-resolves a stale element.
const staleRetries = 2

// Run drives the screens of one session and records what happened.
type Run struct {
	ctx  context.Context
	sess Session
	opts Options
	rng  *rand.Rand

	results []core.AssertionResult
	err     error
	retries int // stale-element retries within the current step
}

// NewRun creates a run over sess.
func NewRun(ctx context.Context, sess Session, opts Options) *Run {
	opts.Timeouts = opts.Timeouts.withDefaults()
	opts.Messages = opts.Messages.Merge(DefaultMessages())
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Run{
		ctx:  ctx,
		sess: sess,
		opts: opts,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Err returns the first failure, or nil.
func (r *Run) Err() error { return r.err }

// Failed reports whether an operation has failed.
func (r *Run) Failed() bool { return r.err != nil }

// Results returns the recorded operations in order.
func (r *Run) Results() []core.AssertionResult {
	out := make([]core.AssertionResult, len(r.results))
	copy(out, r.results)
	return out
}

// Context returns the run's context.
func (r *Run) Context() context.Context { return r.ctx }

// Timeouts returns the effective timeouts.
func (r *Run) Timeouts() Timeouts { return r.opts.Timeouts }

// Do records fn as a step of its own. Scenarios use it for work that is not
// a screen operation, like editing the vault.
func (r *Run) Do(name string, fn func(ctx context.Context) error) *Run {
	r.step("", name, func() error { return fn(r.ctx) })
	return r
}

func (r *Run) step(screen, name string, fn func() error) {
	r.record(screen, name, func() (string, string, error) {
		return "", "", fn()
	})
}

// record runs fn unless the run already failed, and appends its result.
func (r *Run) record(screen, name string, fn func() (expected, observed string, err error)) {
	res := core.AssertionResult{
		Index:     len(r.results),
		Name:      name,
		Screen:    screen,
		StartTime: time.Now(),
	}
	if r.err != nil {
		res.Status = core.StatusSkipped
		r.results = append(r.results, res)
		return
	}

	r.retries = 0
	expected, observed, err := fn()
	res.Duration = time.Since(res.StartTime)
	res.Expected, res.Observed = expected, observed
	res.Attempt = r.retries + 1
	res.Flaky = err == nil && r.retries > 0

	if err != nil {
		var ee *core.ExecutionError
		if errors.As(err, &ee) && ee.Details != nil {
			if res.Expected == "" {
				res.Expected, _ = ee.Details["expected"].(string)
			}
			if res.Observed == "" {
				res.Observed, _ = ee.Details["observed"].(string)
			}
		}
		res.Status = core.StatusFor(err)
		res.Category = core.CategoryOf(err)
		res.Error = err.Error()
		r.err = fmt.Errorf("%s: %w", name, err)
		logger.L().Warn("screen step failed",
			zap.String("screen", screen),
			zap.String("step", name),
			zap.Stringer("status", res.Status),
			zap.String("expected", res.Expected),
			zap.String("observed", res.Observed),
			zap.Error(err))
	} else {
		res.Status = core.StatusPassed
		logger.L().Debug("screen step",
			zap.String("screen", screen),
			zap.String("step", name),
			zap.Duration("elapsed", res.Duration))
	}
	r.results = append(r.results, res)
}

func (r *Run) driver() core.Driver { return r.sess.Driver() }

func (r *Run) waitOpts(timeout time.Duration) wait.Options {
	return wait.Options{Interval: r.opts.Timeouts.Interval}.WithTimeout(timeout)
}

// tree captures a window once.
func (r *Run) tree(kind core.WindowKind) (*uitree.Node, error) {
	return r.driver().Tree(r.ctx, kind)
}

// probe looks sel up in a single snapshot.
func (r *Run) probe(kind core.WindowKind, sel selector.Selector) (*uitree.Node, error) {
	root, err := r.tree(kind)
	if err != nil {
		return nil, err
	}
	return selector.Find(root, sel)
}

// present reports whether sel is in the current snapshot. Lookup failures
// other than absence are returned.
func (r *Run) present(kind core.WindowKind, sel selector.Selector) (bool, error) {
	_, err := r.probe(kind, sel)
	switch {
	case err == nil:
		return true, nil
	case wait.Retryable(err):
		return false, nil
	default:
		return false, err
	}
}

// mustFind waits up to the find timeout for sel to appear.
func (r *Run) mustFind(kind core.WindowKind, sel selector.Selector) (*uitree.Node, error) {
	return r.awaitNode(kind, sel, r.opts.Timeouts.Find)
}

func (r *Run) awaitNode(kind core.WindowKind, sel selector.Selector, timeout time.Duration) (*uitree.Node, error) {
	n, err := wait.Until(r.ctx, "find "+sel.String(), r.waitOpts(timeout), func(ctx context.Context) (*uitree.Node, error) {
		root, err := r.driver().Tree(ctx, kind)
		if err != nil {
			return nil, err
		}
		return selector.Find(root, sel)
	})
	var te *wait.TimeoutError
	if errors.As(err, &te) {
		return nil, core.ErrElementNotFound.
			WithMessagef("%s not found in %s window within %v", sel, kind, te.Timeout).
			WithCause(te).
			WithDetails(map[string]interface{}{"expected": sel.String(), "observed": "absent"})
	}
	return n, err
}

// awaitGone waits until sel is no longer in the window.
func (r *Run) awaitGone(kind core.WindowKind, sel selector.Selector, timeout time.Duration) error {
	err := wait.Poll(r.ctx, "disappearance of "+sel.String(), r.waitOpts(timeout), func(ctx context.Context) (bool, error) {
		root, err := r.driver().Tree(ctx, kind)
		if errors.Is(err, core.ErrElementNotFound) {
			return true, nil // the whole window is gone
		}
		if err != nil {
			return false, err
		}
		return !selector.Exists(root, sel), nil
	})
	if errors.Is(err, core.ErrWaitTimeout) {
		return core.ErrConditionNotMet.
			WithMessagef("%s still present after %v", sel, timeout).
			WithCause(err).
			WithDetails(map[string]interface{}{"expected": "absent", "observed": sel.String()})
	}
	return err
}

// input resolves sel and injects input, re-resolving a bounded number of
// times when the element went stale between lookup and injection.
func (r *Run) input(kind core.WindowKind, sel selector.Selector, what string,
	do func(ctx context.Context, d core.Driver, n *uitree.Node) error) error {

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.opts.Timeouts.Interval), staleRetries),
		r.ctx)
	return backoff.RetryNotify(func() error {
		n, err := r.mustFind(kind, sel)
		if err != nil {
			return backoff.Permanent(err)
		}
		if n.Offscreen {
			return backoff.Permanent(core.ErrPreconditionViolation.
				WithMessagef("cannot %s %s: element is offscreen", what, n.Label()))
		}
		if err := do(r.ctx, r.driver(), n); err != nil {
			if errors.Is(err, core.ErrStaleElement) {
				return err
			}
			return backoff.Permanent(fmt.Errorf("%s %s: %w", what, n.Label(), err))
		}
		return nil
	}, b, func(err error, next time.Duration) {
		r.retries++
		logger.Debug("retrying %s on %s in %v: %v", what, sel, next, err)
	})
}

func (r *Run) click(kind core.WindowKind, sel selector.Selector) error {
	return r.input(kind, sel, "click", func(ctx context.Context, d core.Driver, n *uitree.Node) error {
		if !n.Enabled {
			return core.ErrPreconditionViolation.WithMessagef("%s is disabled", n.Label())
		}
		return d.Click(ctx, n)
	})
}

func (r *Run) setText(kind core.WindowKind, sel selector.Selector, text string) error {
	return r.input(kind, sel, "type into", func(ctx context.Context, d core.Driver, n *uitree.Node) error {
		return d.SetText(ctx, n, text)
	})
}

func (r *Run) toggle(kind core.WindowKind, sel selector.Selector) error {
	return r.input(kind, sel, "toggle", func(ctx context.Context, d core.Driver, n *uitree.Node) error {
		return d.Toggle(ctx, n)
	})
}

func (r *Run) scroll(kind core.WindowKind, sel selector.Selector, delta int) error {
	return r.input(kind, sel, "scroll", func(ctx context.Context, d core.Driver, n *uitree.Node) error {
		return d.Scroll(ctx, n, delta)
	})
}

func (r *Run) press(key core.Key) error {
	return r.driver().PressKey(r.ctx, key)
}

// clickInNotification waits for a popup button and clicks it.
func (r *Run) clickInNotification(button string) error {
	if _, err := r.awaitNode(core.WindowNotification, selector.Button(button), r.opts.Timeouts.Popup); err != nil {
		return err
	}
	return r.click(core.WindowNotification, selector.Button(button))
}

// expect polls observe until it reports ok. On timeout the failure carries
// the expectation and the last observation.
func (r *Run) expect(name, expected string, timeout time.Duration,
	observe func(ctx context.Context) (observed string, ok bool, err error)) (string, string, error) {

	last := "nothing observed"
	err := wait.Poll(r.ctx, name, r.waitOpts(timeout), func(ctx context.Context) (bool, error) {
		obs, ok, err := observe(ctx)
		if err != nil {
			if wait.Retryable(err) {
				last = "absent"
			}
			return false, err
		}
		last = obs
		return ok, nil
	})
	if errors.Is(err, core.ErrWaitTimeout) {
		return expected, last, core.ErrConditionNotMet.
			WithMessagef("%s: expected %s, observed %s (waited %v)", name, expected, last, timeout).
			WithCause(err)
	}
	return expected, last, err
}

// check observes once, for state that has already settled.
func (r *Run) check(name, expected string,
	observe func(ctx context.Context) (observed string, ok bool, err error)) (string, string, error) {

	obs, ok, err := observe(r.ctx)
	if err != nil {
		return expected, obs, err
	}
	if !ok {
		return expected, obs, core.ErrConditionNotMet.WithMessagef("%s: expected %s, observed %s", name, expected, obs)
	}
	return expected, obs, nil
}
