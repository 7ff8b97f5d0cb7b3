package scenario

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/credentials"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/driver/mock"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/filecheck"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/screen"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/session"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/vault"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeCredentials serves fixed users; unknown variants are not provisioned.
type fakeCredentials map[credentials.Variant]credentials.Credential

func (f fakeCredentials) Get(v credentials.Variant) (credentials.Credential, error) {
	c, ok := f[v]
	if !ok {
		return credentials.Credential{}, core.ErrInvalidCredential.WithMessagef("%s is not set", v.EnvVar())
	}
	return c, nil
}

func users() fakeCredentials {
	return fakeCredentials{
		credentials.PaidUser:        {Variant: credentials.PaidUser, Username: "paid@proton.test", Password: "hunter2"},
		credentials.FreeUser:        {Variant: credentials.FreeUser, Username: "free@proton.test", Password: "pw-free"},
		credentials.DisabledUser:    {Variant: credentials.DisabledUser, Username: "disabled@proton.test", Password: "pw-disabled"},
		credentials.DelinquentUser:  {Variant: credentials.DelinquentUser, Username: "delinquent@proton.test", Password: "pw-delinquent"},
		credentials.TwoPasswordUser: {Variant: credentials.TwoPasswordUser, Username: "two@proton.test", Password: "pw-two", MailboxPassword: "mbx"},
	}
}

func accounts() []mock.Account {
	var out []mock.Account
	kinds := map[credentials.Variant]mock.AccountKind{
		credentials.FreeUser:       mock.Free,
		credentials.DisabledUser:   mock.Disabled,
		credentials.DelinquentUser: mock.Delinquent,
	}
	for v, c := range users() {
		out = append(out, mock.Account{Username: c.Username, Password: c.Password, MailboxPassword: c.MailboxPassword, Kind: kinds[v]})
	}
	return out
}

// fleet hands every worker its own simulated application over one profile.
type fleet struct {
	profile string
	release *mock.Release

	mu   sync.Mutex
	apps []*mock.App
}

func (f *fleet) session(int) (Session, error) {
	app := mock.New(mock.Config{Accounts: accounts(), ProfileDir: f.profile, Available: f.release})
	f.mu.Lock()
	f.apps = append(f.apps, app)
	f.mu.Unlock()
	return session.New(app, app.Processes(), session.Options{
		ExePath:       `C:\Program Files\Proton AG\Proton Mail Bridge\bridge-gui.exe`,
		ProcessName:   "bridge-gui.exe",
		LaunchTimeout: time.Second,
		FocusTimeout:  200 * time.Millisecond,
		Grace:         50 * time.Millisecond,
		Interval:      time.Millisecond,
	}), nil
}

// PrepareZeroPercentRollout edits the vault of the first app.
func (f *fleet) PrepareZeroPercentRollout(ctx context.Context) error {
	f.mu.Lock()
	app := f.apps[0]
	f.mu.Unlock()
	return vault.New(app.VaultEditor()).PrepareZeroPercentRollout(ctx)
}

func screenOptions(profile string) screen.Options {
	return screen.Options{
		Timeouts: screen.Timeouts{
			Find:     200 * time.Millisecond,
			Login:    time.Second,
			Sync:     time.Second,
			Popup:    time.Second,
			Restart:  time.Second,
			Interval: time.Millisecond,
		},
		Paths: filecheck.Paths{Profile: profile},
		Seed:  7,
	}
}

func newRunner(t *testing.T, workers int) (*Runner, *fleet) {
	t.Helper()
	f := &fleet{profile: t.TempDir(), release: &mock.Release{Version: "3.15.0", Tag: "0200"}}
	r := NewRunner(Env{Credentials: users(), Vault: f}, f.session, Config{
		SuiteName: "bridge-ui",
		RunID:     "test-run",
		Workers:   workers,
		Screen:    screenOptions(f.profile),
	})
	return r, f
}

func requireAllPassed(t *testing.T, suite *core.SuiteResult) {
	t.Helper()
	for _, sc := range suite.Scenarios {
		if sc.Status.IsSuccess() {
			continue
		}
		for _, phase := range [][]core.AssertionResult{sc.Setup, sc.Steps, sc.Teardown, sc.Cleanup} {
			for _, st := range phase {
				if st.Status != core.StatusPassed {
					t.Logf("%s: %-8s %s: %s", sc.Name, st.Status, st.Name, st.Error)
				}
			}
		}
	}
	require.True(t, suite.Success(), "failed scenarios: %d", suite.FailedScenarios)
}

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	counts := map[Suite]int{}
	for _, s := range r.All() {
		counts[s.Suite]++
		assert.NotNil(t, s.Body, s.Name)
	}
	assert.Equal(t, map[Suite]int{
		SuiteLogin:    8,
		SuiteHelp:     9,
		SuiteSettings: 25,
		SuiteRollout:  1,
	}, counts)

	s, ok := r.Get("rollout-zero-percent-update")
	require.True(t, ok)
	assert.True(t, s.Rollout)
	assert.Empty(t, s.User)
}

func TestRegisterRejectsDuplicatesAndMissingBodies(t *testing.T) {
	r := NewRegistry()
	body := func(*Case) {}
	require.NoError(t, r.Register(Scenario{Name: "a", Suite: SuiteLogin, Body: body}))
	assert.Error(t, r.Register(Scenario{Name: "a", Suite: SuiteLogin, Body: body}))
	assert.Error(t, r.Register(Scenario{Name: "b", Suite: SuiteLogin}))
	assert.Error(t, r.Register(Scenario{Suite: SuiteLogin, Body: body}))
}

func TestSelect(t *testing.T) {
	r := Default()

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"everything", Filter{}, 43},
		{"one suite", Filter{Suites: []string{"help"}}, 9},
		{"suites are case insensitive", Filter{Suites: []string{"LOGIN", "rollout"}}, 9},
		{"tag", Filter{Tags: []string{"report"}}, 5},
		{"suite and tag", Filter{Suites: []string{"settings"}, Tags: []string{"default"}}, 7},
		{"names", Filter{Names: []string{"login-paid-user", "settings-repair"}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Select(tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	_, err := r.Select(Filter{Names: []string{"nope"}})
	assert.ErrorContains(t, err, `unknown scenario "nope"`)
	_, err = r.Select(Filter{Suites: []string{"import-export"}})
	assert.ErrorContains(t, err, `unknown suite "import-export"`)
}

func TestVariants(t *testing.T) {
	login, err := Default().Select(Filter{Suites: []string{"login"}})
	require.NoError(t, err)
	assert.Equal(t, []credentials.Variant{
		credentials.DelinquentUser,
		credentials.DisabledUser,
		credentials.FreeUser,
		credentials.PaidUser,
		credentials.TwoPasswordUser,
	}, Variants(login))
}

func TestRunLoginSuiteInParallel(t *testing.T) {
	runner, f := newRunner(t, 3)
	login, err := Default().Select(Filter{Suites: []string{"login"}})
	require.NoError(t, err)

	suite, err := runner.Run(context.Background(), login)
	require.NoError(t, err)
	requireAllPassed(t, suite)

	assert.Equal(t, "test-run", suite.RunID)
	assert.Equal(t, 8, suite.PassedScenarios)
	assert.Len(t, f.apps, 3)
	for _, app := range f.apps {
		assert.False(t, app.Running(), "cleanup terminates every session")
		assert.Empty(t, app.SignedIn(), "teardown removes every account")
	}
}

func TestRejectedLoginCancelsBackToWelcome(t *testing.T) {
	runner, f := newRunner(t, 1)
	picked, err := Default().Select(Filter{Names: []string{"login-disabled-user"}})
	require.NoError(t, err)

	suite, err := runner.Run(context.Background(), picked)
	require.NoError(t, err)
	requireAllPassed(t, suite)

	var names []string
	for _, st := range suite.Scenarios[0].Steps {
		names = append(names, st.Name)
	}
	assert.Contains(t, names, "cancel sign-in")
	assert.Empty(t, f.apps[0].SignedIn())
}

func TestRunEveryScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the whole catalogue")
	}
	runner, f := newRunner(t, 1)

	suite, err := runner.Run(context.Background(), Default().All())
	require.NoError(t, err)
	requireAllPassed(t, suite)

	app := f.apps[0]
	assert.Equal(t, "3.15.0", app.Installed().Version)
	ok, err := filecheck.IsDir(filepath.Join(filecheck.DefaultCacheLocation(f.profile), filecheck.NewCacheFolder))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetupFailureFailsOnlyThatScenario(t *testing.T) {
	runner, f := newRunner(t, 1)
	creds := users()
	delete(creds, credentials.FreeUser)
	runner.env.Credentials = creds

	picked, err := Default().Select(Filter{Names: []string{"login-free-user", "login-paid-user"}})
	require.NoError(t, err)
	suite, err := runner.Run(context.Background(), picked)
	require.NoError(t, err)

	free, paid := suite.Scenarios[0], suite.Scenarios[1]
	assert.Equal(t, core.StatusErrored, free.Status)
	assert.Equal(t, core.ErrCategoryPrecondition, free.Category)
	assert.Empty(t, free.Steps)
	require.Len(t, free.Cleanup, 1)
	assert.Equal(t, core.StatusPassed, free.Cleanup[0].Status)
	assert.Contains(t, free.Error, credentials.FreeUser.EnvVar())

	assert.Equal(t, core.StatusPassed, paid.Status)
	assert.False(t, f.apps[0].Running())
}

func TestBodyFailureStillTearsDown(t *testing.T) {
	runner, f := newRunner(t, 1)
	r := NewRegistry()
	require.NoError(t, r.Register(Scenario{
		Name:  "signed-in-then-wrong",
		Suite: SuiteLogin,
		User:  credentials.PaidUser,
		Body: func(c *Case) {
			c.Login().SignIn(c.User)
			c.Settings().Open().Set(screen.DarkMode, true)
		},
	}))

	suite, err := runner.Run(context.Background(), r.All())
	require.NoError(t, err)
	res := suite.Scenarios[0]

	assert.Equal(t, core.StatusFailed, res.Status)
	assert.Equal(t, core.ErrCategoryAssertion, res.Category)
	assert.Equal(t, 1, res.FailedSteps)
	require.Len(t, res.Teardown, 1)
	assert.Equal(t, core.StatusPassed, res.Teardown[0].Status)
	assert.Empty(t, f.apps[0].SignedIn())
	require.NotEmpty(t, res.Logs)
	assert.Equal(t, "runner", res.Logs[0].Source)
}

func TestStopOnFailSkipsTheRest(t *testing.T) {
	runner, _ := newRunner(t, 1)
	runner.cfg.StopOnFail = true
	runner.env.Credentials = fakeCredentials{}

	picked, err := Default().Select(Filter{Names: []string{"login-paid-user", "login-empty-fields"}})
	require.NoError(t, err)
	suite, err := runner.Run(context.Background(), picked)
	require.NoError(t, err)

	assert.Equal(t, core.StatusErrored, suite.Scenarios[0].Status)
	assert.Equal(t, core.StatusSkipped, suite.Scenarios[1].Status)
	assert.Equal(t, "run stopped", suite.Scenarios[1].Message)
	assert.False(t, suite.Success())
}

func TestSessionFactoryFailure(t *testing.T) {
	boom := errors.New("no automation server")
	runner := NewRunner(Env{Credentials: users()}, func(int) (Session, error) { return nil, boom }, Config{})

	picked, err := Default().Select(Filter{Names: []string{"login-paid-user"}})
	require.NoError(t, err)
	suite, err := runner.Run(context.Background(), picked)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, core.StatusSkipped, suite.Scenarios[0].Status)
}

func TestRunWithoutScenarios(t *testing.T) {
	runner, _ := newRunner(t, 1)
	_, err := runner.Run(context.Background(), nil)
	assert.Error(t, err)
}
