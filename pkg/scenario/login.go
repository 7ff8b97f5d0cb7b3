package scenario

import (
	"github.com/devicelab-dev/bridge-ui-runner/pkg/credentials"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/screen"
)

func loginScenarios() []Scenario {
	rejected := func(name string, v credentials.Variant, reason screen.RejectReason) Scenario {
		return Scenario{
			Name:  name,
			Suite: SuiteLogin,
			Tags:  []string{"login", "rejected"},
			User:  v,
			Body: func(c *Case) {
				l := c.Login().Open().EnterCredentials(c.User).Submit().AwaitOutcome()
				l.Result().AssertRejected(reason)
				l.Cancel()
				c.HomeResult().AssertAccountRemoved(c.User.Username)
			},
		}
	}

	return []Scenario{
		{
			Name:  "login-paid-user",
			Suite: SuiteLogin,
			Tags:  []string{"login", "smoke"},
			User:  credentials.PaidUser,
			Body: func(c *Case) {
				c.Login().SignIn(c.User)
				c.HomeResult().AssertSignedIn(c.User.Username).AssertAccountListed(c.User.Username)
			},
		},
		rejected("login-free-user", credentials.FreeUser, screen.FreeAccountNotEligible),
		rejected("login-disabled-user", credentials.DisabledUser, screen.AccountDisabled),
		rejected("login-delinquent-user", credentials.DelinquentUser, screen.AccountDelinquent),
		{
			Name:  "login-incorrect-credentials",
			Suite: SuiteLogin,
			Tags:  []string{"login", "rejected"},
			User:  credentials.PaidUser,
			Body: func(c *Case) {
				c.Login().Open().EnterCredentials(c.User.WithWrongPassword()).Submit().AwaitOutcome().
					Result().AssertRejected(screen.IncorrectCredentials)
			},
		},
		{
			Name:  "login-empty-fields",
			Suite: SuiteLogin,
			Tags:  []string{"login", "rejected"},
			Body: func(c *Case) {
				c.Login().Open().EnterCredentials(credentials.Empty()).Submit().AwaitOutcome().
					Result().AssertRejected(screen.EmptyFields).AssertNeverAuthenticated()
			},
		},
		{
			Name:  "login-two-password-user",
			Suite: SuiteLogin,
			Tags:  []string{"login"},
			User:  credentials.TwoPasswordUser,
			Body: func(c *Case) {
				l := c.Login().Open().EnterCredentials(c.User).Submit().AwaitOutcome()
				l.Result().AssertMailboxPasswordRequired()
				l.UnlockMailbox(c.User.MailboxPassword).AwaitOutcome().Result().AssertState(screen.SignedIn)
				c.HomeResult().AssertSignedIn(c.User.Username)
			},
		},
		{
			Name:  "login-account-already-signed-in",
			Suite: SuiteLogin,
			Tags:  []string{"login", "conflict"},
			User:  credentials.PaidUser,
			Body: func(c *Case) {
				c.Login().SignIn(c.User)
				l := c.Login().Open().EnterCredentials(c.User).Submit().AwaitOutcome()
				l.Result().AssertConflict()
				l.AcknowledgeConflict()
				c.HomeResult().AssertSignedIn(c.User.Username)
			},
		},
	}
}
