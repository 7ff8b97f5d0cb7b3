package scenario

import "github.com/devicelab-dev/bridge-ui-runner/pkg/screen"

func rolloutScenarios() []Scenario {
	return []Scenario{
		{
			Name:    "rollout-zero-percent-update",
			Suite:   SuiteRollout,
			Tags:    []string{"update", "rollout"},
			Rollout: true,
			Body: func(c *Case) {
				c.Help().Open()
				u := c.Update().CaptureVersion().AwaitUpdateReady()
				u.Result().AssertState(screen.UpdateReady)
				u.Accept()
				u.Result().AssertState(screen.RestartRequired)
				u.Relaunch()
				c.Help().Open()
				u.CaptureVersion()
				u.Result().AssertState(screen.Restarted).AssertUpgraded()
			},
		},
	}
}
