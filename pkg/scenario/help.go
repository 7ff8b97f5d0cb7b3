package scenario

import (
	"strings"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/credentials"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/screen"
)

func helpScenario(name string, tags []string, body func(c *Case)) Scenario {
	return Scenario{
		Name:  "help-" + name,
		Suite: SuiteHelp,
		Tags:  append([]string{"help"}, tags...),
		User:  credentials.PaidUser,
		Body: func(c *Case) {
			c.Login().SignIn(c.User)
			c.Help().Open()
			body(c)
		},
	}
}

func helpScenarios() []Scenario {
	all := []Scenario{
		helpScenario("open-and-back", []string{"smoke"}, func(c *Case) {
			c.Help().Back()
			c.HomeResult().AssertSignedIn(c.User.Username)
		}),
		helpScenario("topics", nil, func(c *Case) {
			h := c.Help().OpenHelpTopics()
			c.HelpResult().AssertHelpTopicsShown()
			h.CloseBrowser().Back()
		}),
		helpScenario("check-for-updates", nil, func(c *Case) {
			h := c.Help().CheckForUpdates()
			c.HelpResult().AssertUpToDate()
			h.ConfirmNotification().Back()
		}),
		helpScenario("logs", nil, func(c *Case) {
			h := c.Help().OpenLogs()
			c.HelpResult().AssertLogsShown()
			h.CloseLogs().Back()
		}),
	}
	for _, rc := range screen.ReportCases {
		rc := rc
		all = append(all, helpScenario("report-"+strings.ReplaceAll(rc.Name, " ", "-"), []string{"report"}, func(c *Case) {
			c.Help().ReportProblem(rc)
			c.HelpResult().
				AssertOverview(rc).
				AssertContactEmail(c.User.Username).
				AssertIncludeLogs(true)
			c.Help().SendReport()
			c.HelpResult().AssertReportSent()
			c.Help().ConfirmNotification()
		}))
	}
	return all
}
