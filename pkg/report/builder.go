package report

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// Planned is a scenario selected for the run, before it starts.
type Planned struct {
	Name  string
	Suite string
	Tags  []string
}

// BuilderConfig contains configuration for building the report skeleton.
type BuilderConfig struct {
	OutputDir     string // Base output directory for reports
	RunID         string // Empty generates one
	App           App    // Application information
	CI            *CI    // CI/CD information (optional)
	RunnerVersion string
	DriverName    string // winappdriver, mock
	Workers       int
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// ScenarioID is the report id of the scenario at index i.
func ScenarioID(i int) string {
	return fmt.Sprintf("scn-%03d", i)
}

// BuildSkeleton creates the initial report structure from the selected
// scenarios. Everything starts pending.
func BuildSkeleton(planned []Planned, cfg BuilderConfig) (*Index, []ScenarioDetail) {
	now := time.Now()
	runID := cfg.RunID
	if runID == "" {
		runID = NewRunID()
	}
	host, _ := os.Hostname()

	index := &Index{
		Version:     Version,
		RunID:       runID,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
		Host:        Host{Name: host, OS: runtime.GOOS},
		App:         cfg.App,
		CI:          cfg.CI,
		Runner: RunnerInfo{
			Version: cfg.RunnerVersion,
			Driver:  cfg.DriverName,
			Workers: cfg.Workers,
		},
		Summary: Summary{
			Total:   len(planned),
			Pending: len(planned),
		},
		Scenarios: make([]ScenarioEntry, len(planned)),
	}
	details := make([]ScenarioDetail, len(planned))

	for i, p := range planned {
		id := ScenarioID(i)
		index.Scenarios[i] = ScenarioEntry{
			Index:    i,
			ID:       id,
			Name:     p.Name,
			Suite:    p.Suite,
			Tags:     p.Tags,
			DataFile: filepath.ToSlash(filepath.Join("scenarios", id+".json")),
			Status:   StatusPending,
		}
		details[i] = ScenarioDetail{
			ID:     id,
			Name:   p.Name,
			Suite:  p.Suite,
			Tags:   p.Tags,
			Status: StatusPending,
		}
	}
	return index, details
}

// WriteSkeleton writes the initial skeleton to disk: report.json and one
// pending detail file per scenario.
func WriteSkeleton(outputDir string, index *Index, details []ScenarioDetail) error {
	if err := ensureDir(filepath.Join(outputDir, "scenarios")); err != nil {
		return fmt.Errorf("create scenarios dir: %w", err)
	}
	for _, d := range details {
		path := filepath.Join(outputDir, "scenarios", d.ID+".json")
		if err := atomicWriteJSON(path, d); err != nil {
			return fmt.Errorf("write scenario %s: %w", d.ID, err)
		}
	}
	if err := atomicWriteJSON(filepath.Join(outputDir, "report.json"), index); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// DetectCI reads well-known CI environment variables. Returns nil outside CI.
func DetectCI() *CI {
	switch {
	case os.Getenv("GITHUB_ACTIONS") == "true":
		ci := &CI{
			Provider: "github-actions",
			BuildID:  os.Getenv("GITHUB_RUN_ID"),
			Branch:   os.Getenv("GITHUB_REF_NAME"),
			Commit:   os.Getenv("GITHUB_SHA"),
		}
		if server, repo := os.Getenv("GITHUB_SERVER_URL"), os.Getenv("GITHUB_REPOSITORY"); server != "" && repo != "" && ci.BuildID != "" {
			ci.BuildURL = server + "/" + repo + "/actions/runs/" + ci.BuildID
		}
		return ci
	case os.Getenv("GITLAB_CI") == "true":
		return &CI{
			Provider: "gitlab",
			BuildID:  os.Getenv("CI_PIPELINE_ID"),
			BuildURL: os.Getenv("CI_PIPELINE_URL"),
			Branch:   os.Getenv("CI_COMMIT_REF_NAME"),
			Commit:   os.Getenv("CI_COMMIT_SHA"),
		}
	case os.Getenv("TF_BUILD") == "True":
		return &CI{
			Provider: "azure-pipelines",
			BuildID:  os.Getenv("BUILD_BUILDID"),
			Branch:   os.Getenv("BUILD_SOURCEBRANCHNAME"),
			Commit:   os.Getenv("BUILD_SOURCEVERSION"),
		}
	case os.Getenv("JENKINS_URL") != "":
		return &CI{
			Provider: "jenkins",
			BuildID:  os.Getenv("BUILD_NUMBER"),
			BuildURL: os.Getenv("BUILD_URL"),
			Branch:   os.Getenv("GIT_BRANCH"),
			Commit:   os.Getenv("GIT_COMMIT"),
		}
	}
	return nil
}
