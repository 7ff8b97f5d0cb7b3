package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/config"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/credentials"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/driver/mock"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/driver/winappdriver"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/logger"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/process"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/scenario"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/screen"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/session"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/vault"
)

// backend is what a run needs from the selected driver.
type backend struct {
	sessions scenario.SessionFactory
	env      scenario.Env
	screen   screen.Options
	close    func()
}

// newBackend builds the driver, sessions and scenario environment for cfg.
// Credentials for variants are checked up front so a missing variable fails
// the run before the application is touched.
func newBackend(ctx context.Context, cfg *config.Config, variants []credentials.Variant) (*backend, error) {
	switch cfg.Driver.Name {
	case config.DriverMock:
		return newMockBackend(cfg)
	default:
		return newWinAppDriverBackend(ctx, cfg, variants)
	}
}

func newWinAppDriverBackend(ctx context.Context, cfg *config.Config, variants []credentials.Variant) (*backend, error) {
	provider := credentials.FromEnv()
	if err := provider.Check(variants...); err != nil {
		return nil, err
	}
	if cfg.Run.Workers > 1 {
		logger.Warn("Bridge allows a single instance per host; %d workers will share it", cfg.Run.Workers)
	}

	drv, err := winappdriver.NewDriver(ctx, winappdriver.Options{URL: cfg.Driver.URL})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Driver.URL, err)
	}
	procs := process.NewSystem()
	editor := vault.New(vault.ExecRunner{Path: cfg.Vault.EditorPath})
	if cfg.Vault.Backup != "" {
		editor = editor.WithBackup(cfg.Vault.Backup)
	}

	return &backend{
		sessions: func(int) (scenario.Session, error) {
			return session.New(drv, procs, cfg.SessionOptions()), nil
		},
		env:    scenario.Env{Credentials: provider, Vault: editor},
		screen: cfg.ScreenOptions(),
		close: func() {
			if err := drv.Close(context.Background()); err != nil {
				logger.Warn("Failed to close WinAppDriver sessions: %v", err)
			}
		},
	}, nil
}

// newMockBackend runs against simulated applications, one per worker, over a
// throwaway profile directory. Every variant resolves to a demo account the
// simulation knows.
func newMockBackend(cfg *config.Config) (*backend, error) {
	profile, err := os.MkdirTemp("", "bridge-ui-mock-")
	if err != nil {
		return nil, err
	}
	opts := cfg.ScreenOptions()
	opts.Paths.Profile = profile
	opts.Paths.CacheRoot = ""
	opts.Paths.ExportDir = ""

	f := &mockFleet{
		cfg: mock.Config{
			Accounts:    demoAccounts(),
			ProcessName: cfg.App.ProcessName,
			ProfileDir:  profile,
			Available:   &mock.Release{Version: "3.15.0", Tag: "0200"},
			Messages:    mock.Messages(cfg.Messages),
		},
		opts: cfg.SessionOptions(),
	}

	return &backend{
		sessions: f.session,
		env:      scenario.Env{Credentials: demoCredentials{}, Vault: f},
		screen:   opts,
		close: func() {
			if err := os.RemoveAll(profile); err != nil {
				logger.Warn("Failed to remove mock profile %s: %v", profile, err)
			}
		},
	}, nil
}

// mockFleet hands every worker its own simulated application.
type mockFleet struct {
	cfg  mock.Config
	opts session.Options

	mu   sync.Mutex
	apps []*mock.App
}

func (f *mockFleet) session(worker int) (scenario.Session, error) {
	app := f.app(worker)
	return session.New(app, app.Processes(), f.opts), nil
}

// app returns the simulated application of worker, creating it on first use.
func (f *mockFleet) app(worker int) *mock.App {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.apps) <= worker {
		f.apps = append(f.apps, mock.New(f.cfg))
	}
	return f.apps[worker]
}

// PrepareZeroPercentRollout opts every simulated instance into the rollout.
func (f *mockFleet) PrepareZeroPercentRollout(ctx context.Context) error {
	f.mu.Lock()
	apps := append([]*mock.App(nil), f.apps...)
	f.mu.Unlock()
	for _, app := range apps {
		if err := vault.New(app.VaultEditor()).PrepareZeroPercentRollout(ctx); err != nil {
			return err
		}
	}
	return nil
}

// demoCredentials derives a fixed user for every variant.
type demoCredentials struct{}

func (demoCredentials) Get(v credentials.Variant) (credentials.Credential, error) {
	name := strings.ToLower(string(v))
	c := credentials.Credential{
		Variant:  v,
		Username: strings.ReplaceAll(name, "_", ".") + "@bridge.test",
		Password: "demo-" + name,
	}
	if v.Fields() == 3 {
		c.MailboxPassword = "demo-mailbox"
	}
	return c, nil
}

func demoAccounts() []mock.Account {
	kinds := map[credentials.Variant]mock.AccountKind{
		credentials.FreeUser:       mock.Free,
		credentials.DisabledUser:   mock.Disabled,
		credentials.DelinquentUser: mock.Delinquent,
	}
	var out []mock.Account
	for _, v := range credentials.All() {
		c, _ := demoCredentials{}.Get(v)
		out = append(out, mock.Account{
			Username:        c.Username,
			Password:        c.Password,
			MailboxPassword: c.MailboxPassword,
			Kind:            kinds[v],
		})
	}
	return out
}
