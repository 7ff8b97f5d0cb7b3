// Package report writes JSON run reports that update while scenarios run.
//
// Layout:
//   - report.json: main index (small, frequently updated, mutex-protected)
//   - scenarios/scn-XXX.json: per-scenario detail files (one writer each)
//   - junit.xml: written once at the end for CI systems
//
// The index is the single source of truth for status and change tracking.
// Consumers poll report.json and only fetch changed scenario details.
package report

import (
	"time"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status is the coarse state of a run or scenario in the index.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// StatusOf folds a scenario outcome into an index status. Warned scenarios
// pass; errored ones fail.
func StatusOf(s core.StepStatus) Status {
	switch s {
	case core.StatusPassed, core.StatusWarned:
		return StatusPassed
	case core.StatusFailed, core.StatusErrored:
		return StatusFailed
	case core.StatusSkipped:
		return StatusSkipped
	case core.StatusRunning:
		return StatusRunning
	default:
		return StatusPending
	}
}

// ============================================================================
// INDEX (report.json)
// ============================================================================

// Index is the main report file.
type Index struct {
	Version     string          `json:"version"`
	RunID       string          `json:"runId"`
	UpdateSeq   uint64          `json:"updateSeq"`
	Status      Status          `json:"status"`
	StartTime   time.Time       `json:"startTime"`
	EndTime     *time.Time      `json:"endTime,omitempty"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Host        Host            `json:"host"`
	App         App             `json:"app"`
	CI          *CI             `json:"ci,omitempty"`
	Runner      RunnerInfo      `json:"runner"`
	Summary     Summary         `json:"summary"`
	Scenarios   []ScenarioEntry `json:"scenarios"`
}

// Host is the machine the application ran on.
type Host struct {
	Name string `json:"name"`
	OS   string `json:"os"`
}

// App identifies the application under test.
type App struct {
	ExePath string `json:"exePath"`
	Process string `json:"process,omitempty"`
	Version string `json:"version,omitempty"`
}

// CI contains CI/CD build information.
type CI struct {
	Provider string `json:"provider,omitempty"`
	BuildID  string `json:"buildId,omitempty"`
	BuildURL string `json:"buildUrl,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Commit   string `json:"commit,omitempty"`
}

// RunnerInfo describes the runner that produced the report.
type RunnerInfo struct {
	Version string `json:"version"`
	Driver  string `json:"driver"` // winappdriver, mock
	Workers int    `json:"workers"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// ScenarioEntry is the index entry for a scenario.
type ScenarioEntry struct {
	Index       int         `json:"index"`
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Suite       string      `json:"suite"`
	Tags        []string    `json:"tags,omitempty"`
	DataFile    string      `json:"dataFile"`
	Status      Status      `json:"status"`
	Outcome     string      `json:"outcome,omitempty"` // passed, warned, failed, errored, skipped
	UpdateSeq   uint64      `json:"updateSeq"`
	StartTime   *time.Time  `json:"startTime,omitempty"`
	EndTime     *time.Time  `json:"endTime,omitempty"`
	Duration    *int64      `json:"duration,omitempty"` // milliseconds
	LastUpdated *time.Time  `json:"lastUpdated,omitempty"`
	Steps       StepSummary `json:"steps"`
	Category    string      `json:"errorCategory,omitempty"`
	Error       *string     `json:"error,omitempty"`
}

// StepSummary contains body step counts for a scenario.
type StepSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Warned  int `json:"warned,omitempty"`
	Flaky   int `json:"flaky,omitempty"`
}

// ============================================================================
// SCENARIO DETAIL (scenarios/scn-XXX.json)
// ============================================================================

// ScenarioDetail is the per-scenario file: its identity plus the full result
// once it finished.
type ScenarioDetail struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Suite     string               `json:"suite"`
	Tags      []string             `json:"tags,omitempty"`
	Status    Status               `json:"status"`
	StartTime *time.Time           `json:"startTime,omitempty"`
	EndTime   *time.Time           `json:"endTime,omitempty"`
	Result    *core.ScenarioResult `json:"result,omitempty"`
}

// ============================================================================
// UPDATE TYPES
// ============================================================================

// ScenarioUpdate contains the fields to update in the index for a scenario.
type ScenarioUpdate struct {
	Status    Status
	Outcome   string
	StartTime *time.Time
	EndTime   *time.Time
	Duration  *int64
	Steps     StepSummary
	Category  string
	Error     *string
}
