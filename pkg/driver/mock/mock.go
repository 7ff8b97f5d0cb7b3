// Package mock simulates the bridge GUI for testing without a Windows host.
//
// App implements core.Driver over an in-memory model of the application's
// screens and process.Manager over a fake process. Asynchronous behaviour
// (sign-in, sync progress, popups, delayed toggles, update offers) advances
// one tick per tree fetch, so callers that poll observe the same transitions a
// real GUI would show, and callers that sleep instead of polling observe
// nothing.
package mock

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
)

// AccountKind selects how the fake backend answers a sign-in.
type AccountKind int

// Account kinds
const (
	Paid AccountKind = iota
	Free
	Disabled
	Delinquent
)

// Account is a user known to the fake backend.
type Account struct {
	Username        string
	Password        string
	MailboxPassword string // non-empty for two-password accounts
	Kind            AccountKind
}

// Release is an installed or offered application build.
type Release struct {
	Version string // semantic version, e.g. 3.14.0
	Tag     string // build tag without the br- prefix
}

// Messages are the texts rendered for rejected sign-ins.
type Messages struct {
	IncorrectCredentials string
	EmptyUsername        string
	EmptyPassword        string
	AccountDisabled      string
	AccountDelinquent    string
	FreeAccount          string
	AlreadySignedIn      string
	IncorrectMailbox     string
}

// DefaultMessages returns the texts the application renders by default.
func DefaultMessages() Messages {
	return Messages{
		IncorrectCredentials: "Incorrect login credentials",
		EmptyUsername:        "Enter email or username",
		EmptyPassword:        "Enter password",
		AccountDisabled:      "This account has been suspended due to a potential policy violation.",
		AccountDelinquent:    "Your account has unpaid invoices. Pay them to continue using Bridge.",
		FreeAccount:          "Bridge is exclusive to our mail paid plans. Upgrade your account to use Bridge.",
		AlreadySignedIn:      "This account is already signed in",
		IncorrectMailbox:     "Incorrect mailbox password",
	}
}

// Config configures the simulated application.
type Config struct {
	// Accounts known to the fake backend.
	Accounts []Account
	// ProcessName is the image name Find answers to (default bridge-gui).
	ProcessName string
	// ProfileDir is the user profile root; the default cache location and the
	// export dialog live under it.
	ProfileDir string
	// Installed is the running build (default 3.14.0, tag 0123).
	Installed Release
	// Available is offered once the vault opts into the early channel at 0% rollout.
	Available *Release
	// Messages overrides rejection texts; empty fields keep the defaults.
	Messages Messages

	// Tick counts. Zero picks the default shown.
	BootTicks      int // Windows() polls before the main window shows (1)
	SignInTicks    int // fetches a sign-in stays pending (2)
	SyncStep       int // sync percent gained per fetch (25)
	ToggleLagTicks int // fetches before the diagnostics toggle applies (2)
	PopupTicks     int // fetches before popups materialize (1)
	UpdateTicks    int // fetches after launch before an update is offered (2)

	// IgnoreTerminate makes graceful exit requests no-ops; only Kill stops the app.
	IgnoreTerminate bool
}

func (c *Config) applyDefaults() {
	if c.ProcessName == "" {
		c.ProcessName = "bridge-gui"
	}
	if c.Installed.Version == "" {
		c.Installed = Release{Version: "3.14.0", Tag: "0123"}
	}
	def := DefaultMessages()
	m := &c.Messages
	for _, p := range []struct {
		field *string
		def   string
	}{
		{&m.IncorrectCredentials, def.IncorrectCredentials},
		{&m.EmptyUsername, def.EmptyUsername},
		{&m.EmptyPassword, def.EmptyPassword},
		{&m.AccountDisabled, def.AccountDisabled},
		{&m.AccountDelinquent, def.AccountDelinquent},
		{&m.FreeAccount, def.FreeAccount},
		{&m.AlreadySignedIn, def.AlreadySignedIn},
		{&m.IncorrectMailbox, def.IncorrectMailbox},
	} {
		if *p.field == "" {
			*p.field = p.def
		}
	}
	c.BootTicks = positive(c.BootTicks, 1)
	c.SignInTicks = positive(c.SignInTicks, 2)
	c.SyncStep = positive(c.SyncStep, 25)
	c.ToggleLagTicks = positive(c.ToggleLagTicks, 2)
	c.PopupTicks = positive(c.PopupTicks, 1)
	c.UpdateTicks = positive(c.UpdateTicks, 2)
}

func positive(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Settings is the application's persisted preferences.
type Settings struct {
	AutomaticUpdates bool
	OpenOnStartup    bool
	BetaAccess       bool
	AlternativeRoute bool
	DarkMode         bool
	ShowAllMail      bool
	Diagnostics      bool
	IMAPPort         int
	SMTPPort         int
	IMAPSSL          bool
	SMTPSSL          bool
	CacheLocation    string
}

func (a *App) defaultSettings() Settings {
	return Settings{
		AutomaticUpdates: true,
		OpenOnStartup:    true,
		ShowAllMail:      true,
		Diagnostics:      true,
		IMAPPort:         1143,
		SMTPPort:         1025,
		CacheLocation:    a.DefaultCacheLocation(),
	}
}

type userState struct {
	acct     Account
	signedIn bool
	sync     int
	holdSync bool // keep the current percentage visible for one fetch
}

// App is the simulated application. Safe for concurrent use.
type App struct {
	mu  sync.Mutex
	cfg Config

	// process
	running   bool
	pid       int
	nextPID   int
	launches  int
	bootTicks int
	ticks     int // fetches since launch

	// persisted across restarts
	users          []*userState
	settings       Settings
	installed      Release
	pendingInstall *Release
	vault          map[string]interface{}
	updateEligible bool

	// transient UI state
	page         page
	prevPage     page
	current      int // index of the account shown on the home page
	login        loginForm
	popup        *popup
	dialog       *fileDialog
	expanded     bool
	scrolled     bool
	pendingDiag  *pendingToggle
	ports        portsForm
	mode         modeForm
	cacheForm    string
	report       reportForm
	browserOpen  bool
	explorerOpen bool
	focused      core.WindowKind
	updateShown  bool
}

// New creates a stopped application. Launch it through Processes().
func New(cfg Config) *App {
	cfg.applyDefaults()
	a := &App{cfg: cfg, nextPID: 4000, installed: cfg.Installed}
	a.settings = a.defaultSettings()
	a.vault = defaultVault()
	return a
}

// DefaultCacheLocation is <profile>/AppData/Roaming/protonmail/bridge-v3/gluon.
func (a *App) DefaultCacheLocation() string {
	return filepath.Join(a.cfg.ProfileDir, "AppData", "Roaming", "protonmail", "bridge-v3", "gluon")
}

// Running reports whether the application process is alive.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Launches returns how many times the application was started.
func (a *App) Launches() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.launches
}

// CurrentSettings returns a copy of the persisted settings.
func (a *App) CurrentSettings() Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// SignedIn returns the usernames of signed-in accounts.
func (a *App) SignedIn() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var names []string
	for _, u := range a.users {
		if u.signedIn {
			names = append(names, u.acct.Username)
		}
	}
	return names
}

// Installed returns the running build.
func (a *App) Installed() Release {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.installed
}

// SignIn adds a signed-in account directly, as if restored from a previous run.
func (a *App) SignIn(username string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if acct, ok := a.lookup(username); ok {
		a.addUser(acct)
		a.userByName(username).sync = 100
	}
}

func (a *App) lookup(username string) (Account, bool) {
	for _, acct := range a.cfg.Accounts {
		if strings.EqualFold(acct.Username, username) {
			return acct, true
		}
	}
	return Account{}, false
}

func (a *App) userByName(username string) *userState {
	for _, u := range a.users {
		if strings.EqualFold(u.acct.Username, username) {
			return u
		}
	}
	return nil
}

func (a *App) addUser(acct Account) {
	u := a.userByName(acct.Username)
	if u == nil {
		u = &userState{acct: acct}
		a.users = append(a.users, u)
	}
	u.signedIn = true
	u.sync = 0
	u.holdSync = true
	for i, x := range a.users {
		if x == u {
			a.current = i
		}
	}
}

func (a *App) currentUser() *userState {
	if a.current < 0 || a.current >= len(a.users) {
		return nil
	}
	return a.users[a.current]
}

// start brings the process up. Caller holds mu.
func (a *App) start() {
	a.running = true
	a.launches++
	a.nextPID++
	a.pid = a.nextPID
	a.bootTicks = a.cfg.BootTicks
	a.ticks = 0
	a.updateShown = false
	if a.pendingInstall != nil {
		a.installed = *a.pendingInstall
		a.pendingInstall = nil
	}
	a.resetTransient()
	for _, u := range a.users {
		if u.signedIn {
			u.sync = 100
		}
	}
	a.page = a.landingPage()
	a.focused = core.WindowMain
	if a.cfg.ProfileDir != "" {
		_ = os.MkdirAll(a.settings.CacheLocation, 0o755)
	}
}

// exit stops the process. Caller holds mu.
func (a *App) exit() {
	a.running = false
	a.resetTransient()
}

func (a *App) resetTransient() {
	a.popup = nil
	a.dialog = nil
	a.expanded = false
	a.scrolled = false
	a.pendingDiag = nil
	a.login = loginForm{}
	a.report = reportForm{}
}

func (a *App) landingPage() page {
	for _, u := range a.users {
		if u.signedIn {
			return pageHome
		}
	}
	if len(a.users) > 0 {
		return pageLogin
	}
	return pageWelcome
}

// tick advances asynchronous state by one step. Caller holds mu.
func (a *App) tick() {
	a.ticks++

	for _, u := range a.users {
		if !u.signedIn {
			continue
		}
		if u.holdSync {
			u.holdSync = false
			continue
		}
		if u.sync < 100 {
			u.sync += a.cfg.SyncStep
			if u.sync > 100 {
				u.sync = 100
			}
		}
	}

	if a.popup != nil && a.popup.delay > 0 {
		a.popup.delay--
	}

	if a.pendingDiag != nil {
		a.pendingDiag.ticks--
		if a.pendingDiag.ticks <= 0 {
			a.settings.Diagnostics = a.pendingDiag.value
			a.pendingDiag = nil
		}
	}

	if a.login.pending {
		a.login.pendingTicks--
		if a.login.pendingTicks <= 0 {
			a.resolveSignIn()
		}
	}

	if a.updateEligible && a.cfg.Available != nil && !a.updateShown && a.popup == nil &&
		a.ticks >= a.cfg.UpdateTicks {
		a.updateShown = true
		a.showPopup(updatePopup(a))
	}
}
