package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/config"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/credentials"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/logger"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/scenario"
)

var listCommand = &cli.Command{
	Name:      "list",
	Usage:     "List the registered scenarios",
	ArgsUsage: "[scenario-name]...",
	Description: `Print the scenarios a run with the same selection would execute.

Examples:
  bridge-ui-runner list
  bridge-ui-runner list --suite help
  bridge-ui-runner list --tag smoke`,
	Flags:  selectionFlags,
	Action: runList,
}

var checkCredentialsCommand = &cli.Command{
	Name:      "check-credentials",
	Usage:     "Verify the credential variables the selected scenarios need",
	ArgsUsage: "[scenario-name]...",
	Description: `Check that every BRIDGE_UI_TEST_<VARIANT> variable the selection needs is
set with the right number of fields. Values are never printed.

Examples:
  bridge-ui-runner check-credentials
  bridge-ui-runner check-credentials --suite login`,
	Flags:  selectionFlags,
	Action: runCheckCredentials,
}

var treeCommand = &cli.Command{
	Name:  "tree",
	Usage: "Print the accessibility tree of an application window",
	Description: `Launch or attach to the application and print the accessibility tree of
one window, as indented text or JSON. Useful when a locator stops matching.

Examples:
  bridge-ui-runner tree
  bridge-ui-runner tree --window notification
  bridge-ui-runner --driver mock tree --json`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "window",
			Aliases: []string{"w"},
			Usage:   "Window kind (main, notification, browser, file-explorer)",
			Value:   string(core.WindowMain),
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output JSON instead of indented text",
		},
	},
	Action: runTree,
}

func runList(c *cli.Context) error {
	selected, err := selectScenarios(c)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSUITE\tUSER\tTAGS")
	for _, s := range selected {
		user := strings.ToLower(string(s.User))
		if user == "" {
			user = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Suite, user, strings.Join(s.Tags, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\n%d scenarios\n", len(selected))
	return nil
}

func runCheckCredentials(c *cli.Context) error {
	selected, err := selectScenarios(c)
	if err != nil {
		return err
	}
	variants := scenario.Variants(selected)
	if len(variants) == 0 {
		fmt.Fprintln(c.App.Writer, "The selected scenarios need no credentials.")
		return nil
	}

	provider := credentials.FromEnv()
	for _, v := range variants {
		if _, err := provider.Get(v); err != nil {
			fmt.Fprintf(c.App.Writer, "  %s✗%s %s\n", color(colorRed), color(colorReset), v.EnvVar())
		} else {
			fmt.Fprintf(c.App.Writer, "  %s✓%s %s\n", color(colorGreen), color(colorReset), v.EnvVar())
		}
	}
	return provider.Check(variants...)
}

func runTree(c *cli.Context) error {
	kind := core.WindowKind(c.String("window"))
	switch kind {
	case core.WindowMain, core.WindowNotification, core.WindowBrowser, core.WindowFileExplorer:
	default:
		return fmt.Errorf("unknown window %q", kind)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := initLogging(c, filepath.Join(config.GetLogsDir(), "tree.log")); err != nil {
		return err
	}
	defer logger.Close()

	be, err := newBackend(c.Context, cfg, nil)
	if err != nil {
		return err
	}
	defer be.close()

	sess, err := be.sessions(0)
	if err != nil {
		return err
	}
	if err := sess.LaunchOrAttach(c.Context); err != nil {
		return err
	}
	if kind != core.WindowMain && kind != core.WindowNotification {
		if err := sess.Focus(c.Context, kind); err != nil {
			return err
		}
	}

	tree, err := sess.Driver().Tree(c.Context, kind)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(tree, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.App.Writer, string(data))
		return err
	}
	_, err = fmt.Fprint(c.App.Writer, tree.Dump())
	return err
}
