package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/mitchellh/go-homedir"
)

// HomeEnv overrides where the runner keeps config.yaml, reports and logs.
const HomeEnv = "BRIDGE_UI_RUNNER_HOME"

// HomeSource tells how the home directory was found.
type HomeSource string

// Home sources, in resolution order.
const (
	HomeFromEnv     HomeSource = "env"
	HomeFromInstall HomeSource = "install"
	HomeFromWorkdir HomeSource = "workdir"
)

// Home is the runner's working root. An installed runner lives in
// <home>/bin next to config.yaml, reports/ and logs/.
type Home struct {
	Dir    string
	Source HomeSource
}

// ReportsDir holds one timestamped folder per run.
func (h Home) ReportsDir() string { return filepath.Join(h.Dir, "reports") }

// LogsDir holds logs of commands that write no report, such as tree.
func (h Home) LogsDir() string { return filepath.Join(h.Dir, "logs") }

var (
	homeOnce sync.Once
	home     Home
)

// CurrentHome resolves the home once per process.
func CurrentHome() Home {
	homeOnce.Do(func() {
		home = resolveHome(os.Getenv(HomeEnv), os.Executable, os.Getwd)
	})
	return home
}

// GetHome returns the home directory.
func GetHome() string { return CurrentHome().Dir }

// GetReportsDir returns <home>/reports.
func GetReportsDir() string { return CurrentHome().ReportsDir() }

// GetLogsDir returns <home>/logs.
func GetLogsDir() string { return CurrentHome().LogsDir() }

func resolveHome(env string, executable, getwd func() (string, error)) Home {
	if env != "" {
		if expanded, err := homedir.Expand(env); err == nil {
			env = expanded
		}
		return Home{Dir: env, Source: HomeFromEnv}
	}

	if exe, err := executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		if binDir := filepath.Dir(exe); filepath.Base(binDir) == "bin" {
			return Home{Dir: filepath.Dir(binDir), Source: HomeFromInstall}
		}
	}

	if cwd, err := getwd(); err == nil {
		return Home{Dir: cwd, Source: HomeFromWorkdir}
	}
	return Home{Dir: ".", Source: HomeFromWorkdir}
}

// ResetHome drops the cached home. Tests only.
func ResetHome() {
	homeOnce = sync.Once{}
	home = Home{}
}
