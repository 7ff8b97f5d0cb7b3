package core

import (
	"time"
)

// AssertionResult captures the outcome of one screen operation or check.
type AssertionResult struct {
	// Identity
	Index  int    `json:"index"`            // 0-based position in the scenario phase
	Name   string `json:"name"`             // Operation: "login", "assertToggle(Beta access)"
	Screen string `json:"screen,omitempty"` // Screen object that ran it: settings, help, ...

	// Status
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Observation (assertions only)
	Expected string `json:"expected,omitempty"`
	Observed string `json:"observed,omitempty"`

	// Error Details
	Error string `json:"error,omitempty"`

	// Retry Tracking
	Attempt int  `json:"attempt,omitempty"` // Final attempt (1-based) for retried input ops
	Flaky   bool `json:"flaky,omitempty"`   // Passed after a stale-element retry
}

// ScenarioResult captures the complete outcome of executing a scenario
type ScenarioResult struct {
	// Identity
	Name  string   `json:"name"`
	Suite string   `json:"suite"`
	Tags  []string `json:"tags,omitempty"`

	// Credential variant the scenario signed in with, if any
	Variant string `json:"variant,omitempty"`

	// Status (aggregated from phases)
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Setup    []AssertionResult `json:"setup,omitempty"`
	Steps    []AssertionResult `json:"steps"`
	Teardown []AssertionResult `json:"teardown,omitempty"`
	Cleanup  []AssertionResult `json:"cleanup,omitempty"`

	// Summary (computed)
	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`
	WarnedSteps  int `json:"warnedSteps"`
	FlakySteps   int `json:"flakySteps,omitempty"`

	// Error info (if scenario failed)
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`

	// Logs captured while the scenario ran
	Logs []LogEntry `json:"logs,omitempty"`
}

// ComputeSummary calculates step counts from the Steps slice
func (r *ScenarioResult) ComputeSummary() {
	r.TotalSteps = len(r.Steps)
	r.PassedSteps = 0
	r.FailedSteps = 0
	r.SkippedSteps = 0
	r.WarnedSteps = 0
	r.FlakySteps = 0

	for _, step := range r.Steps {
		switch step.Status {
		case StatusPassed:
			r.PassedSteps++
		case StatusFailed, StatusErrored:
			r.FailedSteps++
		case StatusSkipped:
			r.SkippedSteps++
		case StatusWarned:
			r.WarnedSteps++
		}
		if step.Flaky {
			r.FlakySteps++
		}
	}
}

// hasFailure checks if any step in the slice has failed or errored
func hasFailure(steps []AssertionResult) bool {
	for _, step := range steps {
		if step.Status == StatusFailed || step.Status == StatusErrored {
			return true
		}
	}
	return false
}

// firstErrored returns true if the first failing step errored rather than failed.
func firstErrored(phases ...[]AssertionResult) bool {
	for _, steps := range phases {
		for _, step := range steps {
			switch step.Status {
			case StatusErrored:
				return true
			case StatusFailed:
				return false
			}
		}
	}
	return false
}

// hasWarning checks if any step in the slice has warned status
func hasWarning(steps []AssertionResult) bool {
	for _, step := range steps {
		if step.Status == StatusWarned {
			return true
		}
	}
	return false
}

// AggregateStatus determines the scenario status from phase results
// Rules:
// - setup failed → errored if the failure was not an assertion, else failed
// - any failed/errored body step → failed (errored for non-assertion errors)
// - teardown and cleanup failures only warn
// - all passed → passed
func (r *ScenarioResult) AggregateStatus() StepStatus {
	if hasFailure(r.Setup) || hasFailure(r.Steps) {
		if firstErrored(r.Setup, r.Steps) {
			return StatusErrored
		}
		return StatusFailed
	}
	if hasFailure(r.Teardown) || hasFailure(r.Cleanup) || hasWarning(r.Steps) {
		return StatusWarned
	}
	return StatusPassed
}

// SuiteResult captures the complete outcome of executing multiple scenarios
type SuiteResult struct {
	// Identity
	Name  string `json:"name"`
	RunID string `json:"runId"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Scenarios []ScenarioResult `json:"scenarios"`

	// Summary
	TotalScenarios   int `json:"totalScenarios"`
	PassedScenarios  int `json:"passedScenarios"`
	FailedScenarios  int `json:"failedScenarios"`
	SkippedScenarios int `json:"skippedScenarios"`
	FlakyScenarios   int `json:"flakyScenarios,omitempty"`
}

// ComputeSummary calculates scenario counts from the Scenarios slice
func (s *SuiteResult) ComputeSummary() {
	s.TotalScenarios = len(s.Scenarios)
	s.PassedScenarios = 0
	s.FailedScenarios = 0
	s.SkippedScenarios = 0
	s.FlakyScenarios = 0

	for _, sc := range s.Scenarios {
		switch sc.Status {
		case StatusPassed, StatusWarned:
			s.PassedScenarios++
		case StatusFailed, StatusErrored:
			s.FailedScenarios++
		case StatusSkipped:
			s.SkippedScenarios++
		}
		if sc.FlakySteps > 0 {
			s.FlakyScenarios++
		}
	}
}

// Success returns true if all scenarios passed (including warned)
func (s *SuiteResult) Success() bool {
	for _, sc := range s.Scenarios {
		if !sc.Status.IsSuccess() {
			return false
		}
	}
	return len(s.Scenarios) > 0
}
