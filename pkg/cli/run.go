package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/config"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/logger"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/report"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/scenario"
)

// selectionFlags narrow the scenario registry. Shared by run, list and
// check-credentials.
var selectionFlags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:    "suite",
		Aliases: []string{"s"},
		Usage:   "Only scenarios of these suites (login, help, settings, rollout)",
	},
	&cli.StringSliceFlag{
		Name:    "tag",
		Aliases: []string{"t"},
		Usage:   "Only scenarios carrying one of these tags",
	},
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run scenarios against the application",
	ArgsUsage: "[scenario-name]...",
	Description: `Run the selected scenarios. With no arguments every scenario runs.

Reports are generated in the output directory:
  - Default: <report.dir or <home>/reports>/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

The directory holds report.json, scenarios/scn-NNN.json, junit.xml and
runner.log.

Examples:
  bridge-ui-runner run
  bridge-ui-runner run login-paid-user login-free-user
  bridge-ui-runner run --suite settings --stop-on-fail
  bridge-ui-runner --driver mock run --workers 4 --output ./out --flatten`,
	Flags: append([]cli.Flag{
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Concurrent scenarios, one application session each; overrides run.workers",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip the remaining scenarios after the first failure",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output directory for reports",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
	}, selectionFlags...),
	Action: runScenarios,
}

func selectScenarios(c *cli.Context) ([]scenario.Scenario, error) {
	return scenario.Default().Select(scenario.Filter{
		Names:  c.Args().Slice(),
		Suites: c.StringSlice("suite"),
		Tags:   c.StringSlice("tag"),
	})
}

func runScenarios(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("workers") {
		cfg.Run.Workers = c.Int("workers")
	}
	if c.IsSet("stop-on-fail") {
		cfg.Run.StopOnFail = c.Bool("stop-on-fail")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	selected, err := selectScenarios(c)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("no scenarios match the selection")
	}

	output := c.String("output")
	if output == "" {
		output = cfg.Report.Dir
	}
	outputDir, err := resolveOutputDir(output, c.Bool("flatten"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := initLogging(c, filepath.Join(outputDir, "runner.log")); err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := newBackend(ctx, cfg, scenario.Variants(selected))
	if err != nil {
		return err
	}
	defer be.close()

	planned := make([]report.Planned, len(selected))
	for i, s := range selected {
		planned[i] = report.Planned{Name: s.Name, Suite: string(s.Suite), Tags: s.Tags}
	}
	rec, err := report.NewRecorder(planned, report.BuilderConfig{
		OutputDir:     outputDir,
		App:           report.App{ExePath: cfg.App.ExePath, Process: cfg.App.ProcessName},
		CI:            report.DetectCI(),
		RunnerVersion: Version,
		DriverName:    cfg.Driver.Name,
		Workers:       cfg.Run.Workers,
	})
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	out := newProgress(c.App.Writer)
	out.banner(cfg.Driver.Name, len(selected), cfg.Run.Workers)

	runner := scenario.NewRunner(be.env, be.sessions, scenario.Config{
		SuiteName:  "bridge-ui",
		RunID:      rec.RunID(),
		Workers:    cfg.Run.Workers,
		StopOnFail: cfg.Run.StopOnFail,
		Screen:     be.screen,
		OnScenarioStart: func(idx, total int, s scenario.Scenario) {
			rec.ScenarioStarted(idx)
		},
		OnScenarioEnd: func(idx, total int, res core.ScenarioResult) {
			rec.ScenarioFinished(idx, res)
			out.scenarioEnd(idx, total, res)
		},
	})

	suite, runErr := runner.Run(ctx, selected)
	if suite == nil {
		return runErr
	}
	out.summary(suite)

	if err := rec.Finish(suite); err != nil {
		logger.Error("Failed to write report: %v", err)
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "\n  Report: %s\n", outputDir)

	if runErr != nil {
		return runErr
	}
	if !suite.Success() {
		return fmt.Errorf("%d of %d scenarios failed", suite.FailedScenarios, suite.TotalScenarios)
	}
	return nil
}

// initLogging points the runner log at path, mirrored to stderr with --verbose.
func initLogging(c *cli.Context, path string) error {
	opts := logger.Options{Level: "debug"}
	if c.Bool("verbose") {
		opts.Console = c.App.ErrWriter
		if opts.Console == nil {
			opts.Console = os.Stderr
		}
	}
	if err := logger.InitWithOptions(path, opts); err != nil {
		return fmt.Errorf("init log: %w", err)
	}
	logger.Info("bridge-ui-runner %s started at %s", Version, time.Now().Format(time.RFC3339))
	home := config.CurrentHome()
	logger.Info("Home: %s (from %s)", home.Dir, home.Source)
	return nil
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: <home>/reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = config.GetReportsDir()
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	// Create timestamp-based subfolder
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}
