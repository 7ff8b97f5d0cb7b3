// Package cli provides the command-line interface for bridge-ui-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/config"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config.yaml (default: <home>/config.yaml)",
		EnvVars: []string{"BRIDGE_UI_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Driver to use (winappdriver, mock); overrides driver.name",
		EnvVars: []string{"BRIDGE_UI_DRIVER"},
	},
	&cli.StringFlag{
		Name:    "driver-url",
		Usage:   "WinAppDriver server URL; overrides driver.url",
		EnvVars: []string{"BRIDGE_UI_DRIVER_URL"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Mirror the runner log to stderr",
		EnvVars: []string{"BRIDGE_UI_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// Execute runs the CLI.
func Execute() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "bridge-ui-runner",
		Usage:   "UI test harness for the Proton Mail Bridge desktop application",
		Version: Version,
		Description: `bridge-ui-runner drives the Bridge GUI through its accessibility tree
and runs the login, help menu, settings and rollout scenarios.

Credentials come from BRIDGE_UI_TEST_<VARIANT> environment variables,
for example BRIDGE_UI_TEST_PAID_USER=user:password.

Examples:
  bridge-ui-runner run
  bridge-ui-runner run --suite login --workers 1
  bridge-ui-runner --driver mock run --tag smoke
  bridge-ui-runner list --suite settings
  bridge-ui-runner tree --window main`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			listCommand,
			checkCredentialsCommand,
			treeCommand,
		},
	}
}

// loadConfig reads --config (or <home>/config.yaml) and applies the global
// driver overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(config.GetHome())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if c.IsSet("driver") {
		cfg.Driver.Name = c.String("driver")
	}
	if c.IsSet("driver-url") {
		cfg.Driver.URL = c.String("driver-url")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
