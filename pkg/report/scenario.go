package report

import (
	"path/filepath"
	"time"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
)

// ScenarioWriter writes updates for a single scenario.
// A scenario runs on one worker at a time, so no locking is needed here.
type ScenarioWriter struct {
	detail *ScenarioDetail
	path   string
	index  *IndexWriter
	err    error
}

// NewScenarioWriter creates a writer for detail under outputDir.
func NewScenarioWriter(detail *ScenarioDetail, outputDir string, index *IndexWriter) *ScenarioWriter {
	return &ScenarioWriter{
		detail: detail,
		path:   filepath.Join(outputDir, "scenarios", detail.ID+".json"),
		index:  index,
	}
}

// Start marks the scenario as running.
func (w *ScenarioWriter) Start() {
	now := time.Now()
	w.detail.Status = StatusRunning
	w.detail.StartTime = &now
	w.flush()
	w.index.UpdateScenario(w.detail.ID, &ScenarioUpdate{
		Status:    StatusRunning,
		StartTime: &now,
	})
}

// End records the finished result and flushes it to the detail file and the
// index.
func (w *ScenarioWriter) End(res core.ScenarioResult) {
	status := StatusOf(res.Status)
	start := res.StartTime
	if w.detail.StartTime != nil {
		start = *w.detail.StartTime
	}
	end := start.Add(res.Duration)
	duration := res.Duration.Milliseconds()

	w.detail.Status = status
	w.detail.StartTime = &start
	w.detail.EndTime = &end
	w.detail.Result = &res
	w.flush()

	update := &ScenarioUpdate{
		Status:    status,
		Outcome:   res.Status.String(),
		StartTime: &start,
		EndTime:   &end,
		Duration:  &duration,
		Steps: StepSummary{
			Total:   res.TotalSteps,
			Passed:  res.PassedSteps,
			Failed:  res.FailedSteps,
			Skipped: res.SkippedSteps,
			Warned:  res.WarnedSteps,
			Flaky:   res.FlakySteps,
		},
	}
	if res.Category != core.ErrCategoryNone {
		update.Category = res.Category.String()
	}
	if msg := failureMessage(res); msg != "" {
		update.Error = &msg
	}
	w.index.UpdateScenario(w.detail.ID, update)
}

// Detail returns the current scenario detail.
func (w *ScenarioWriter) Detail() *ScenarioDetail {
	return w.detail
}

// Err returns the first write error.
func (w *ScenarioWriter) Err() error {
	return w.err
}

func (w *ScenarioWriter) flush() {
	if err := atomicWriteJSON(w.path, w.detail); err != nil && w.err == nil {
		w.err = err
	}
}

// failureMessage is the error of a failed scenario or the reason a skipped
// one never ran.
func failureMessage(res core.ScenarioResult) string {
	if res.Error != "" {
		return res.Error
	}
	if res.Status == core.StatusSkipped {
		return res.Message
	}
	return ""
}
