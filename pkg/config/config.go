// Package config handles configuration for bridge-ui-runner.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/filecheck"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/screen"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/session"
)

// Driver names.
const (
	DriverWinAppDriver = "winappdriver"
	DriverMock         = "mock"
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	App      AppConfig       `yaml:"app"`
	Driver   DriverConfig    `yaml:"driver"`
	Timeouts TimeoutConfig   `yaml:"timeouts"`
	Paths    PathConfig      `yaml:"paths"`
	Messages screen.Messages `yaml:"messages"` // Rejection texts of the release under test
	Vault    VaultConfig     `yaml:"vault"`
	Report   ReportConfig    `yaml:"report"`
	Run      RunConfig       `yaml:"run"`
}

// AppConfig identifies the application under test.
type AppConfig struct {
	ExePath     string   `yaml:"exe_path"`
	Args        []string `yaml:"args"`
	ProcessName string   `yaml:"process_name"` // Image name used to attach to a running instance
}

// DriverConfig selects the UI automation backend.
type DriverConfig struct {
	Name string `yaml:"name"` // winappdriver, mock
	URL  string `yaml:"url"`  // WinAppDriver endpoint
}

// TimeoutConfig holds every bound the runner waits with. Values are Go
// duration strings ("5s", "250ms").
type TimeoutConfig struct {
	Launch   time.Duration `yaml:"launch"`
	Focus    time.Duration `yaml:"focus"`
	Find     time.Duration `yaml:"find"`
	Login    time.Duration `yaml:"login"`
	Sync     time.Duration `yaml:"sync"`
	Popup    time.Duration `yaml:"popup"`
	Restart  time.Duration `yaml:"restart"`
	Grace    time.Duration `yaml:"grace"`
	Interval time.Duration `yaml:"interval"`
}

// PathConfig holds the base directories file checks resolve against.
type PathConfig struct {
	Profile   string `yaml:"profile"`    // User profile root; defaults to the home directory
	CacheRoot string `yaml:"cache_root"` // Default cache location; derived from Profile when empty
	ExportDir string `yaml:"export_dir"` // TLS certificate export root; Profile when empty
}

// VaultConfig locates the vault editor.
type VaultConfig struct {
	EditorPath string `yaml:"editor_path"`
	Backup     string `yaml:"backup"` // Optional copy of the decrypted vault
}

// ReportConfig controls report output.
type ReportConfig struct {
	Dir string `yaml:"dir"` // Defaults to <home>/reports/<timestamp>
}

// RunConfig controls scheduling.
type RunConfig struct {
	Workers    int  `yaml:"workers"`
	StopOnFail bool `yaml:"stop_on_fail"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	so := session.DefaultOptions()
	st := screen.DefaultTimeouts()
	return &Config{
		App: AppConfig{
			ExePath:     `C:\Program Files\Proton AG\Proton Mail Bridge\bridge-gui.exe`,
			ProcessName: so.ProcessName,
		},
		Driver: DriverConfig{
			Name: DriverWinAppDriver,
			URL:  "http://127.0.0.1:4723",
		},
		Timeouts: TimeoutConfig{
			Launch:   so.LaunchTimeout,
			Focus:    so.FocusTimeout,
			Find:     st.Find,
			Login:    st.Login,
			Sync:     st.Sync,
			Popup:    st.Popup,
			Restart:  st.Restart,
			Grace:    so.Grace,
			Interval: st.Interval,
		},
		Paths: PathConfig{
			Profile: "~",
		},
		Messages: screen.DefaultMessages(),
		Run: RunConfig{
			Workers: 1,
		},
	}
}

// Load loads configuration from a file on top of the defaults, expands
// paths and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithMessagef("parse %s", path).WithCause(err)
	}
	cfg.Messages = cfg.Messages.Merge(screen.DefaultMessages())
	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, use defaults
	cfg := Default()
	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandPaths resolves a leading ~ in every configured path.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{
		&c.App.ExePath,
		&c.Paths.Profile,
		&c.Paths.CacheRoot,
		&c.Paths.ExportDir,
		&c.Vault.EditorPath,
		&c.Vault.Backup,
		&c.Report.Dir,
	} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return core.ErrInvalidConfig.WithMessagef("expand %q", *p).WithCause(err)
		}
		*p = expanded
	}
	return nil
}

// Validate rejects configurations no run could succeed with.
func (c *Config) Validate() error {
	switch c.Driver.Name {
	case DriverWinAppDriver:
		if c.Driver.URL == "" {
			return core.ErrInvalidConfig.WithMessage("driver.url is required for winappdriver")
		}
		if c.App.ExePath == "" {
			return core.ErrInvalidConfig.WithMessage("app.exe_path is required")
		}
	case DriverMock:
	default:
		return core.ErrInvalidConfig.WithMessagef("unknown driver %q (want %s or %s)", c.Driver.Name, DriverWinAppDriver, DriverMock)
	}

	t := c.Timeouts
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"launch", t.Launch}, {"focus", t.Focus}, {"find", t.Find},
		{"login", t.Login}, {"sync", t.Sync}, {"popup", t.Popup},
		{"restart", t.Restart}, {"grace", t.Grace}, {"interval", t.Interval},
	} {
		if d.v <= 0 {
			return core.ErrInvalidConfig.WithMessagef("timeouts.%s must be positive, got %s", d.name, d.v)
		}
	}
	if t.Interval > t.Find {
		return core.ErrInvalidConfig.WithMessagef("timeouts.interval (%s) exceeds timeouts.find (%s)", t.Interval, t.Find)
	}

	if c.Paths.Profile == "" {
		return core.ErrInvalidConfig.WithMessage("paths.profile is required")
	}
	if c.Run.Workers < 1 {
		return core.ErrInvalidConfig.WithMessagef("run.workers must be at least 1, got %d", c.Run.Workers)
	}
	return nil
}

// ScreenOptions converts the configuration for screen runs.
func (c *Config) ScreenOptions() screen.Options {
	return screen.Options{
		Timeouts: screen.Timeouts{
			Find:     c.Timeouts.Find,
			Login:    c.Timeouts.Login,
			Sync:     c.Timeouts.Sync,
			Popup:    c.Timeouts.Popup,
			Restart:  c.Timeouts.Restart,
			Interval: c.Timeouts.Interval,
		},
		Paths: filecheck.Paths{
			Profile:   c.Paths.Profile,
			CacheRoot: c.Paths.CacheRoot,
			ExportDir: c.Paths.ExportDir,
		},
		Messages: c.Messages,
	}
}

// SessionOptions converts the configuration for the session controller.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		ExePath:       c.App.ExePath,
		Args:          c.App.Args,
		ProcessName:   c.App.ProcessName,
		LaunchTimeout: c.Timeouts.Launch,
		FocusTimeout:  c.Timeouts.Focus,
		Grace:         c.Timeouts.Grace,
		Interval:      c.Timeouts.Interval,
	}
}
