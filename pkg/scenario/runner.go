package scenario

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/logger"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/screen"
)

// Session is one application session a worker owns for its whole life.
type Session interface {
	screen.Session
	Terminate(ctx context.Context) error
}

// SessionFactory creates the session for a worker. Each worker calls it once.
type SessionFactory func(worker int) (Session, error)

// Config configures a Runner.
type Config struct {
	SuiteName  string         // name recorded on the suite result
	RunID      string         // identifier recorded on the suite result
	Workers    int            // concurrent scenarios, one session each (0 = 1)
	StopOnFail bool           // skip remaining scenarios after the first failure
	Screen     screen.Options // timeouts, paths and messages for every phase

	// Live progress callbacks. Called from worker goroutines.
	OnScenarioStart func(idx, total int, s Scenario)
	OnScenarioEnd   func(idx, total int, res core.ScenarioResult)
}

// Runner executes scenarios.
type Runner struct {
	cfg      Config
	env      Env
	sessions SessionFactory
}

// NewRunner creates a runner.
func NewRunner(env Env, sessions SessionFactory, cfg Config) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Runner{cfg: cfg, env: env, sessions: sessions}
}

// Run executes scenarios with a shared work queue: every worker owns one
// session and pulls scenarios until the queue drains. Scenarios are never
// interleaved on a session.
//
// The returned error reports worker failures such as a session that could
// not be created; scenario failures are only recorded in the result.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) (*core.SuiteResult, error) {
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios selected")
	}

	suite := &core.SuiteResult{
		Name:      r.cfg.SuiteName,
		RunID:     r.cfg.RunID,
		StartTime: time.Now(),
	}
	workers := r.cfg.Workers
	if workers > len(scenarios) {
		workers = len(scenarios)
	}
	logger.L().Info("run started",
		zap.String("run", suite.RunID),
		zap.Int("scenarios", len(scenarios)),
		zap.Int("workers", workers))

	queue := make(chan int, len(scenarios))
	for i := range scenarios {
		queue <- i
	}
	close(queue)

	results := make([]core.ScenarioResult, len(scenarios))
	done := make([]bool, len(scenarios))
	var stop atomic.Bool
	total := len(scenarios)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		id := w
		g.Go(func() error {
			sess, err := r.sessions(id)
			if err != nil {
				return fmt.Errorf("worker %d: create session: %w", id, err)
			}
			for i := range queue {
				s := scenarios[i]
				if stop.Load() || gctx.Err() != nil {
					results[i] = skipped(s, "run stopped")
					done[i] = true
					continue
				}
				if r.cfg.OnScenarioStart != nil {
					r.cfg.OnScenarioStart(i, total, s)
				}
				res := r.runScenario(gctx, sess, s)
				results[i] = res
				done[i] = true
				if r.cfg.OnScenarioEnd != nil {
					r.cfg.OnScenarioEnd(i, total, res)
				}
				if r.cfg.StopOnFail && !res.Status.IsSuccess() {
					stop.Store(true)
				}
			}
			return nil
		})
	}
	err := g.Wait()

	for i, ok := range done {
		if !ok {
			results[i] = skipped(scenarios[i], "no worker available")
		}
	}
	suite.Scenarios = results
	suite.Duration = time.Since(suite.StartTime)
	suite.ComputeSummary()

	logger.L().Info("run finished",
		zap.String("run", suite.RunID),
		zap.Int("passed", suite.PassedScenarios),
		zap.Int("failed", suite.FailedScenarios),
		zap.Int("skipped", suite.SkippedScenarios),
		zap.Duration("elapsed", suite.Duration))
	return suite, err
}

func skipped(s Scenario, reason string) core.ScenarioResult {
	return core.ScenarioResult{
		Name:      s.Name,
		Suite:     string(s.Suite),
		Tags:      s.Tags,
		Variant:   string(s.User),
		Status:    core.StatusSkipped,
		Message:   reason,
		StartTime: time.Now(),
	}
}

// runScenario runs the four phases of s on sess.
func (r *Runner) runScenario(ctx context.Context, sess Session, s Scenario) core.ScenarioResult {
	res := core.ScenarioResult{
		Name:      s.Name,
		Suite:     string(s.Suite),
		Tags:      s.Tags,
		Variant:   string(s.User),
		StartTime: time.Now(),
	}
	log := logger.L().With(zap.String("scenario", s.Name))
	c := &Case{}

	setup := screen.NewRun(ctx, sess, r.cfg.Screen)
	if s.User != "" {
		setup.Do("resolve "+strings.ToLower(string(s.User)), func(context.Context) error {
			if r.env.Credentials == nil {
				return core.ErrInvalidCredential.WithMessage("no credential source configured")
			}
			u, err := r.env.Credentials.Get(s.User)
			c.User = u
			return err
		})
	}
	if s.Rollout {
		setup.Do("stop application", sess.Terminate)
		setup.Do("prepare zero-percent rollout", func(ctx context.Context) error {
			if r.env.Vault == nil {
				return core.ErrPreconditionViolation.WithMessage("no vault editor configured")
			}
			return r.env.Vault.PrepareZeroPercentRollout(ctx)
		})
	}
	setup.Do("launch or attach", sess.LaunchOrAttach)
	res.Setup = setup.Results()

	if setup.Failed() {
		note(&res, log, "warn", "setup failed: "+setup.Err().Error())
		res.Error = setup.Err().Error()
	} else {
		body := screen.NewRun(ctx, sess, r.cfg.Screen)
		c.Run = body
		s.Body(c)
		res.Steps = body.Results()
		if body.Failed() {
			note(&res, log, "warn", "body failed: "+body.Err().Error())
			res.Error = body.Err().Error()
		}

		if c.User.Username != "" {
			teardown := screen.NewRun(ctx, sess, r.cfg.Screen)
			teardown.Home().RemoveAccountIfPresent(c.User.Username)
			res.Teardown = teardown.Results()
			if teardown.Failed() {
				note(&res, log, "warn", "teardown failed: "+teardown.Err().Error())
			}
		}
	}

	// Cleanup runs even when the run was cancelled.
	cleanup := screen.NewRun(context.WithoutCancel(ctx), sess, r.cfg.Screen)
	cleanup.Do("terminate application", sess.Terminate)
	res.Cleanup = cleanup.Results()
	if cleanup.Failed() {
		note(&res, log, "error", "cleanup failed: "+cleanup.Err().Error())
	}

	res.Status = res.AggregateStatus()
	res.Category = categoryOf(res)
	res.ComputeSummary()
	res.Duration = time.Since(res.StartTime)
	log.Info("scenario finished",
		zap.Stringer("status", res.Status),
		zap.Duration("elapsed", res.Duration))
	return res
}

// categoryOf is the category of the first failing setup or body step.
func categoryOf(res core.ScenarioResult) core.ErrorCategory {
	for _, phase := range [][]core.AssertionResult{res.Setup, res.Steps} {
		for _, step := range phase {
			if step.Status == core.StatusFailed || step.Status == core.StatusErrored {
				return step.Category
			}
		}
	}
	return core.ErrCategoryNone
}

func note(res *core.ScenarioResult, log *zap.Logger, level, msg string) {
	res.Logs = append(res.Logs, core.LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Source:    "runner",
		Message:   msg,
	})
	switch level {
	case "error":
		log.Error(msg)
	case "warn":
		log.Warn(msg)
	default:
		log.Info(msg)
	}
}
