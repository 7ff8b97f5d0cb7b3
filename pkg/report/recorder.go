package report

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/logger"
)

// Recorder ties the index and the per-scenario writers together for one run.
// ScenarioStarted and ScenarioFinished are safe to call from worker
// goroutines for distinct scenarios.
type Recorder struct {
	dir     string
	index   *IndexWriter
	writers []*ScenarioWriter
}

// NewRecorder writes the pending skeleton for planned and marks the run
// started.
func NewRecorder(planned []Planned, cfg BuilderConfig) (*Recorder, error) {
	index, details := BuildSkeleton(planned, cfg)
	if err := WriteSkeleton(cfg.OutputDir, index, details); err != nil {
		return nil, err
	}

	iw := NewIndexWriter(cfg.OutputDir, index)
	r := &Recorder{
		dir:     cfg.OutputDir,
		index:   iw,
		writers: make([]*ScenarioWriter, len(details)),
	}
	for i := range details {
		r.writers[i] = NewScenarioWriter(&details[i], cfg.OutputDir, iw)
	}
	iw.Start()
	logger.L().Debug("report skeleton written",
		zap.String("dir", cfg.OutputDir),
		zap.String("run", index.RunID),
		zap.Int("scenarios", len(details)))
	return r, nil
}

// RunID returns the run identifier recorded in the index.
func (r *Recorder) RunID() string {
	return r.index.Snapshot().RunID
}

// Dir returns the report directory.
func (r *Recorder) Dir() string {
	return r.dir
}

// ScenarioStarted marks scenario idx as running.
func (r *Recorder) ScenarioStarted(idx int) {
	if w := r.writer(idx); w != nil {
		w.Start()
	}
}

// ScenarioFinished records the result of scenario idx.
func (r *Recorder) ScenarioFinished(idx int, res core.ScenarioResult) {
	if w := r.writer(idx); w != nil {
		w.End(res)
	}
}

// Finish records results that never reported through ScenarioFinished
// (skipped before they started), closes the index and writes junit.xml.
func (r *Recorder) Finish(suite *core.SuiteResult) error {
	for i, res := range suite.Scenarios {
		w := r.writer(i)
		if w == nil || w.Detail().Status.IsTerminal() {
			continue
		}
		w.End(res)
	}
	r.index.End()

	var firstErr error
	for _, w := range r.writers {
		if err := w.Err(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("write %s: %w", w.Detail().ID, err)
		}
	}
	if err := r.index.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("write index: %w", err)
	}
	if err := WriteJUnit(filepath.Join(r.dir, "junit.xml"), suite); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("write junit: %w", err)
	}
	return firstErr
}

func (r *Recorder) writer(idx int) *ScenarioWriter {
	if idx < 0 || idx >= len(r.writers) {
		return nil
	}
	return r.writers[idx]
}
