// Package session owns the lifecycle of the application under test: launching
// or attaching to its process, resolving its windows, and terminating it.
//
// A Controller drives exactly one application instance. Scenarios that run in
// parallel each get their own Controller.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/logger"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/process"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/uitree"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/wait"
)

// State is the lifecycle state of a session.
type State int

// Session states
const (
	Terminated State = iota
	Launching
	Ready
	Terminating
)

func (s State) String() string {
	switch s {
	case Launching:
		return "launching"
	case Ready:
		return "ready"
	case Terminating:
		return "terminating"
	default:
		return "terminated"
	}
}

// Options configures a Controller.
type Options struct {
	ExePath     string   // executable launched when no instance runs
	Args        []string // launch arguments
	ProcessName string   // image name used to attach to a running instance

	LaunchTimeout time.Duration // main window must appear within this
	FocusTimeout  time.Duration // auxiliary windows must appear within this
	Grace         time.Duration // orderly shutdown window before a forced kill
	Interval      time.Duration // polling cadence
}

// DefaultOptions returns the timeouts used when none are configured.
func DefaultOptions() Options {
	return Options{
		ProcessName:   "bridge-gui",
		LaunchTimeout: 60 * time.Second,
		FocusTimeout:  10 * time.Second,
		Grace:         10 * time.Second,
		Interval:      250 * time.Millisecond,
	}
}

// withDefaults fills unset durations. An empty ProcessName disables attaching.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.LaunchTimeout <= 0 {
		o.LaunchTimeout = def.LaunchTimeout
	}
	if o.FocusTimeout <= 0 {
		o.FocusTimeout = def.FocusTimeout
	}
	if o.Grace <= 0 {
		o.Grace = def.Grace
	}
	if o.Interval <= 0 {
		o.Interval = def.Interval
	}
	return o
}

func (o Options) wait(timeout time.Duration) wait.Options {
	return wait.Options{Interval: o.Interval}.WithTimeout(timeout)
}

// Controller manages one application session.
type Controller struct {
	driver core.Driver
	procs  process.Manager
	opts   Options

	mu       sync.Mutex
	state    State
	proc     process.Handle
	attached bool
	windows  map[core.WindowKind]core.WindowInfo
}

// New creates a controller in the Terminated state.
func New(driver core.Driver, procs process.Manager, opts Options) *Controller {
	return &Controller{
		driver:  driver,
		procs:   procs,
		opts:    opts.withDefaults(),
		windows: make(map[core.WindowKind]core.WindowInfo),
	}
}

// Driver returns the driver the session resolves elements with.
func (c *Controller) Driver() core.Driver {
	return c.driver
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attached reports whether the session attached to an instance it did not launch.
func (c *Controller) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// PID returns the process id, or 0 when there is no process.
func (c *Controller) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proc == nil {
		return 0
	}
	return c.proc.PID()
}

// Window returns the last resolved info for a window kind.
func (c *Controller) Window(kind core.WindowKind) (core.WindowInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[kind]
	return w, ok
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		logger.L().Debug("session state", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

// LaunchOrAttach attaches to a running instance or starts one, then waits for
// the main window. It is a no-op on a Ready session whose process is alive.
func (c *Controller) LaunchOrAttach(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Ready && c.proc != nil && c.proc.Alive() {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.setState(Launching)
	proc, attached, err := c.acquire(ctx)
	if err != nil {
		c.setState(Terminated)
		return core.ErrSessionUnavailable.WithCause(err)
	}

	c.mu.Lock()
	c.proc = proc
	c.attached = attached
	c.windows = make(map[core.WindowKind]core.WindowInfo)
	c.mu.Unlock()

	main, err := c.awaitWindow(ctx, core.WindowMain, c.opts.LaunchTimeout)
	if err != nil {
		c.setState(Terminated)
		return core.ErrSessionUnavailable.
			WithMessagef("application not reachable: main window did not appear within %v", c.opts.LaunchTimeout).
			WithCause(err)
	}
	if err := c.driver.FocusWindow(ctx, core.WindowMain); err != nil {
		c.setState(Terminated)
		return core.ErrSessionUnavailable.WithMessage("application not reachable: cannot focus main window").WithCause(err)
	}

	c.mu.Lock()
	c.windows[core.WindowMain] = main
	c.mu.Unlock()
	c.setState(Ready)
	logger.Info("Session ready (pid %d, attached=%t, window %q)", proc.PID(), attached, main.Title)
	return nil
}

func (c *Controller) acquire(ctx context.Context) (process.Handle, bool, error) {
	if c.opts.ProcessName != "" {
		proc, err := c.procs.Find(ctx, c.opts.ProcessName)
		switch {
		case err == nil:
			logger.Info("Attaching to running %s (pid %d)", c.opts.ProcessName, proc.PID())
			return proc, true, nil
		case !errors.Is(err, process.ErrNotRunning):
			logger.Warn("Process lookup for %s failed: %v", c.opts.ProcessName, err)
		}
	}
	if c.opts.ExePath == "" {
		return nil, false, core.ErrInvalidConfig.WithMessage("application is not running and no executable path is configured")
	}
	logger.Info("Launching %s", c.opts.ExePath)
	proc, err := c.procs.Launch(ctx, c.opts.ExePath, c.opts.Args...)
	if err != nil {
		return nil, false, fmt.Errorf("launch %s: %w", c.opts.ExePath, err)
	}
	return proc, false, nil
}

// awaitWindow polls the window list until a window of kind shows up.
func (c *Controller) awaitWindow(ctx context.Context, kind core.WindowKind, timeout time.Duration) (core.WindowInfo, error) {
	return wait.Until(ctx, fmt.Sprintf("%s window", kind), c.opts.wait(timeout), func(ctx context.Context) (core.WindowInfo, error) {
		wins, err := c.driver.Windows(ctx)
		if err != nil {
			return core.WindowInfo{}, err
		}
		for _, w := range wins {
			if w.Kind == kind {
				return w, nil
			}
		}
		return core.WindowInfo{}, wait.ErrNotYet
	})
}

// Focus brings a window to the foreground for subsequent lookups. It fails if
// no window of that kind appears within the focus timeout.
func (c *Controller) Focus(ctx context.Context, kind core.WindowKind) error {
	if s := c.State(); s != Ready {
		return core.ErrSessionUnavailable.WithMessagef("cannot focus %s window: session is %s", kind, s)
	}
	w, err := c.awaitWindow(ctx, kind, c.opts.FocusTimeout)
	if err != nil {
		return err
	}
	if err := c.driver.FocusWindow(ctx, kind); err != nil {
		return fmt.Errorf("focus %s window: %w", kind, err)
	}
	c.mu.Lock()
	c.windows[kind] = w
	c.mu.Unlock()
	return nil
}

// Tree returns a fresh snapshot of a window.
func (c *Controller) Tree(ctx context.Context, kind core.WindowKind) (*uitree.Node, error) {
	return c.driver.Tree(ctx, kind)
}

// Alive reports whether the session's process is still running.
func (c *Controller) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proc != nil && c.proc.Alive()
}

// Terminate asks the application to exit, waits the grace period, then kills
// it. Terminating a session whose process is already gone is a no-op.
func (c *Controller) Terminate(ctx context.Context) error {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()

	if proc == nil || !proc.Alive() {
		c.forget()
		return nil
	}

	c.setState(Terminating)
	logger.Info("Terminating application (pid %d)", proc.PID())
	if err := proc.Terminate(); err != nil {
		logger.Warn("Exit request failed for pid %d: %v", proc.PID(), err)
	}

	err := wait.Poll(ctx, "application exit", c.opts.wait(c.opts.Grace), func(context.Context) (bool, error) {
		return !proc.Alive(), nil
	})
	if err == nil {
		c.forget()
		return nil
	}

	logger.Warn("Application did not exit within %v, killing pid %d", c.opts.Grace, proc.PID())
	if kerr := proc.Kill(); kerr != nil && proc.Alive() {
		c.setState(Ready)
		return core.ErrSessionUnavailable.WithMessagef("failed to kill pid %d", proc.PID()).WithCause(kerr)
	}
	c.forget()
	return nil
}

func (c *Controller) forget() {
	c.mu.Lock()
	c.proc = nil
	c.attached = false
	c.windows = make(map[core.WindowKind]core.WindowInfo)
	c.mu.Unlock()
	c.setState(Terminated)
}

// AwaitExit waits for the application to exit on its own, as it does after an
// in-app restart request.
func (c *Controller) AwaitExit(ctx context.Context, timeout time.Duration) error {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		return nil
	}
	err := wait.Poll(ctx, "application exit", c.opts.wait(timeout), func(context.Context) (bool, error) {
		return !proc.Alive(), nil
	})
	if err != nil {
		return err
	}
	c.forget()
	return nil
}

// Restart terminates the application if it still runs and launches it again.
func (c *Controller) Restart(ctx context.Context) error {
	if err := c.Terminate(ctx); err != nil {
		return err
	}
	return c.LaunchOrAttach(ctx)
}
