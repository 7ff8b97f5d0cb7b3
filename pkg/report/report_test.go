package report

import (
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
)

func planned() []Planned {
	return []Planned{
		{Name: "login-paid-user", Suite: "login", Tags: []string{"login", "smoke"}},
		{Name: "login-free-user", Suite: "login", Tags: []string{"login"}},
		{Name: "help-logs", Suite: "help", Tags: []string{"help"}},
	}
}

func passed(name, suite string) core.ScenarioResult {
	res := core.ScenarioResult{
		Name:      name,
		Suite:     suite,
		Status:    core.StatusPassed,
		StartTime: time.Now(),
		Duration:  1500 * time.Millisecond,
		Steps: []core.AssertionResult{
			{Index: 0, Name: "login", Status: core.StatusPassed},
			{Index: 1, Name: "assertSignedIn", Status: core.StatusPassed, Attempt: 2, Flaky: true},
		},
	}
	res.ComputeSummary()
	return res
}

func failed(name, suite string) core.ScenarioResult {
	res := core.ScenarioResult{
		Name:      name,
		Suite:     suite,
		Status:    core.StatusFailed,
		Category:  core.ErrCategoryAssertion,
		StartTime: time.Now(),
		Duration:  2 * time.Second,
		Steps: []core.AssertionResult{
			{Index: 0, Name: "login", Status: core.StatusPassed},
			{
				Index:    1,
				Name:     "assertRejected",
				Status:   core.StatusFailed,
				Category: core.ErrCategoryAssertion,
				Expected: "Your account is disabled",
				Observed: "signed in",
				Error:    "login state mismatch",
			},
			{Index: 2, Name: "signOut", Status: core.StatusSkipped},
		},
		Error: "login state mismatch",
		Logs: []core.LogEntry{
			{Timestamp: time.Now(), Level: "warn", Source: "runner", Message: "body failed"},
		},
	}
	res.ComputeSummary()
	return res
}

func skippedResult(name, suite string) core.ScenarioResult {
	return core.ScenarioResult{
		Name:      name,
		Suite:     suite,
		Status:    core.StatusSkipped,
		Message:   "run stopped",
		StartTime: time.Now(),
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		in   core.StepStatus
		want Status
	}{
		{core.StatusPending, StatusPending},
		{core.StatusRunning, StatusRunning},
		{core.StatusPassed, StatusPassed},
		{core.StatusWarned, StatusPassed},
		{core.StatusFailed, StatusFailed},
		{core.StatusErrored, StatusFailed},
		{core.StatusSkipped, StatusSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.in))
		})
	}
}

func TestBuildSkeleton(t *testing.T) {
	index, details := BuildSkeleton(planned(), BuilderConfig{
		RunID:         "run-1",
		App:           App{ExePath: `C:\Program Files\Proton AG\Proton Mail Bridge\bridge-gui.exe`},
		RunnerVersion: "1.0.0",
		DriverName:    "mock",
		Workers:       2,
	})

	assert.Equal(t, Version, index.Version)
	assert.Equal(t, "run-1", index.RunID)
	assert.Equal(t, StatusPending, index.Status)
	assert.Equal(t, Summary{Total: 3, Pending: 3}, index.Summary)
	assert.Equal(t, RunnerInfo{Version: "1.0.0", Driver: "mock", Workers: 2}, index.Runner)
	require.Len(t, index.Scenarios, 3)
	require.Len(t, details, 3)

	assert.Equal(t, "scn-000", index.Scenarios[0].ID)
	assert.Equal(t, "scenarios/scn-002.json", index.Scenarios[2].DataFile)
	assert.Equal(t, "help-logs", index.Scenarios[2].Name)
	assert.Equal(t, "help", details[2].Suite)
	for _, d := range details {
		assert.Equal(t, StatusPending, d.Status)
		assert.Nil(t, d.Result)
	}
}

func TestBuildSkeletonGeneratesRunID(t *testing.T) {
	a, _ := BuildSkeleton(planned(), BuilderConfig{})
	b, _ := BuildSkeleton(planned(), BuilderConfig{})
	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestWriteSkeleton(t *testing.T) {
	dir := t.TempDir()
	index, details := BuildSkeleton(planned(), BuilderConfig{RunID: "run-1"})
	require.NoError(t, WriteSkeleton(dir, index, details))

	got, err := ReadIndex(dir)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Len(t, got.Scenarios, 3)

	for _, d := range details {
		detail, err := ReadScenario(dir, d.ID)
		require.NoError(t, err)
		assert.Equal(t, d.Name, detail.Name)
		assert.Equal(t, StatusPending, detail.Status)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "scenarios"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file left behind: %s", e.Name())
	}
}

func TestRecorderLifecycle(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(planned(), BuilderConfig{OutputDir: dir, RunID: "run-1"})
	require.NoError(t, err)

	idx, err := ReadIndex(dir)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, idx.Status)

	rec.ScenarioStarted(0)
	rec.ScenarioFinished(0, passed("login-paid-user", "login"))
	rec.ScenarioStarted(1)
	rec.ScenarioFinished(1, failed("login-free-user", "login"))

	idx, err = ReadIndex(dir)
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, idx.Scenarios[0].Status)
	assert.Equal(t, "passed", idx.Scenarios[0].Outcome)
	assert.Equal(t, StepSummary{Total: 2, Passed: 2, Flaky: 1}, idx.Scenarios[0].Steps)
	require.NotNil(t, idx.Scenarios[0].Duration)
	assert.Equal(t, int64(1500), *idx.Scenarios[0].Duration)

	assert.Equal(t, StatusFailed, idx.Scenarios[1].Status)
	assert.Equal(t, "assertion", idx.Scenarios[1].Category)
	require.NotNil(t, idx.Scenarios[1].Error)
	assert.Equal(t, "login state mismatch", *idx.Scenarios[1].Error)

	suite := &core.SuiteResult{
		Name:  "bridge-ui",
		RunID: "run-1",
		Scenarios: []core.ScenarioResult{
			passed("login-paid-user", "login"),
			failed("login-free-user", "login"),
			skippedResult("help-logs", "help"),
		},
	}
	suite.ComputeSummary()
	require.NoError(t, rec.Finish(suite))

	idx, err = ReadIndex(dir)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, idx.Status)
	assert.NotNil(t, idx.EndTime)
	assert.Equal(t, Summary{Total: 3, Passed: 1, Failed: 1, Skipped: 1}, idx.Summary)
	require.NotNil(t, idx.Scenarios[2].Error)
	assert.Equal(t, "run stopped", *idx.Scenarios[2].Error)

	detail, err := ReadScenario(dir, "scn-001")
	require.NoError(t, err)
	require.NotNil(t, detail.Result)
	assert.Equal(t, core.StatusFailed, detail.Result.Status)
	require.Len(t, detail.Result.Steps, 3)
	assert.Equal(t, "Your account is disabled", detail.Result.Steps[1].Expected)

	_, err = os.Stat(filepath.Join(dir, "junit.xml"))
	assert.NoError(t, err)
}

func TestRecorderIgnoresUnknownIndexes(t *testing.T) {
	rec, err := NewRecorder(planned(), BuilderConfig{OutputDir: t.TempDir()})
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		rec.ScenarioStarted(-1)
		rec.ScenarioFinished(7, passed("x", "login"))
	})
	require.NoError(t, rec.index.Close())
}

func TestIndexWriterConcurrentUpdates(t *testing.T) {
	dir := t.TempDir()
	many := make([]Planned, 20)
	for i := range many {
		many[i] = Planned{Name: ScenarioID(i), Suite: "login"}
	}
	index, details := BuildSkeleton(many, BuilderConfig{})
	require.NoError(t, WriteSkeleton(dir, index, details))
	iw := NewIndexWriter(dir, index)
	iw.Start()

	var wg sync.WaitGroup
	for i := range details {
		w := NewScenarioWriter(&details[i], dir, iw)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Start()
			w.End(passed(w.Detail().Name, "login"))
		}()
	}
	wg.Wait()
	iw.End()
	require.NoError(t, iw.Close())

	snap := iw.Snapshot()
	assert.Equal(t, StatusPassed, snap.Status)
	assert.Equal(t, 20, snap.Summary.Passed)
	for _, e := range snap.Scenarios {
		assert.NotNil(t, e.StartTime, e.ID)
		assert.Greater(t, e.UpdateSeq, uint64(0), e.ID)
	}
}

func TestIndexWriterDebouncesProgress(t *testing.T) {
	dir := t.TempDir()
	index, details := BuildSkeleton(planned(), BuilderConfig{})
	require.NoError(t, WriteSkeleton(dir, index, details))
	iw := NewIndexWriter(dir, index)
	iw.Start()
	seq := iw.Snapshot().UpdateSeq

	now := time.Now()
	iw.UpdateScenario("scn-000", &ScenarioUpdate{Status: StatusRunning, StartTime: &now})
	assert.Equal(t, seq, iw.Snapshot().UpdateSeq, "progress must not flush synchronously")

	assert.Eventually(t, func() bool {
		idx, err := ReadIndex(dir)
		return err == nil && idx.Scenarios[0].Status == StatusRunning
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, iw.Close())
}

func TestIndexWriterReportsWriteErrors(t *testing.T) {
	index, _ := BuildSkeleton(planned(), BuilderConfig{})
	iw := NewIndexWriter(filepath.Join(t.TempDir(), "missing"), index)
	iw.Start()
	err := iw.Close()
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestJUnit(t *testing.T) {
	errored := failed("settings-repair", "settings")
	errored.Status = core.StatusErrored
	errored.Category = core.ErrCategorySession
	errored.Error = "application not reachable"

	suite := &core.SuiteResult{
		Name:     "bridge-ui",
		Duration: 5 * time.Second,
		Scenarios: []core.ScenarioResult{
			passed("login-paid-user", "login"),
			failed("login-free-user", "login"),
			errored,
			skippedResult("help-logs", "help"),
		},
	}
	data, err := JUnit(suite)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), xml.Header))

	var doc junitSuites
	require.NoError(t, xml.Unmarshal(data, &doc))
	assert.Equal(t, 4, doc.Tests)
	assert.Equal(t, 1, doc.Failures)
	assert.Equal(t, 1, doc.Errors)
	assert.Equal(t, 1, doc.Skipped)
	assert.Equal(t, "5.000", doc.Time)

	require.Len(t, doc.Suites, 3)
	assert.Equal(t, "login", doc.Suites[0].Name)
	assert.Equal(t, "settings", doc.Suites[1].Name)
	assert.Equal(t, "help", doc.Suites[2].Name)
	assert.Equal(t, "3.500", doc.Suites[0].Time)

	login := doc.Suites[0].Cases
	require.Len(t, login, 2)
	assert.Nil(t, login[0].Failure)
	require.NotNil(t, login[1].Failure)
	assert.Equal(t, "assertion", login[1].Failure.Type)
	assert.Contains(t, login[1].Failure.Body, "assertRejected: login state mismatch")
	assert.Contains(t, login[1].Failure.Body, "expected: Your account is disabled")
	assert.Contains(t, login[1].SystemOut, "[WARN] runner: body failed")

	require.NotNil(t, doc.Suites[1].Cases[0].Error)
	assert.Equal(t, "session", doc.Suites[1].Cases[0].Error.Type)

	require.NotNil(t, doc.Suites[2].Cases[0].Skipped)
	assert.Equal(t, "run stopped", doc.Suites[2].Cases[0].Skipped.Message)
}

func TestDetectCI(t *testing.T) {
	for _, k := range []string{"GITHUB_ACTIONS", "GITLAB_CI", "TF_BUILD", "JENKINS_URL"} {
		t.Setenv(k, "")
	}
	assert.Nil(t, DetectCI())

	t.Setenv("GITHUB_ACTIONS", "true")
	t.Setenv("GITHUB_RUN_ID", "42")
	t.Setenv("GITHUB_SERVER_URL", "https://github.com")
	t.Setenv("GITHUB_REPOSITORY", "acme/bridge")
	t.Setenv("GITHUB_SHA", "abc123")
	ci := DetectCI()
	require.NotNil(t, ci)
	assert.Equal(t, "github-actions", ci.Provider)
	assert.Equal(t, "https://github.com/acme/bridge/actions/runs/42", ci.BuildURL)
	assert.Equal(t, "abc123", ci.Commit)
}
