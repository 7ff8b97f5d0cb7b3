package scenario

import (
	"strings"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/credentials"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/filecheck"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/screen"
)

// settingsScenario signs in, opens settings, and runs body on the page.
func settingsScenario(name string, tags []string, body func(c *Case, s *screen.Settings)) Scenario {
	return Scenario{
		Name:  "settings-" + name,
		Suite: SuiteSettings,
		Tags:  append([]string{"settings"}, tags...),
		User:  credentials.PaidUser,
		Body: func(c *Case) {
			c.Login().SignIn(c.User)
			body(c, c.Settings().Open())
		},
	}
}

// advanced opens the advanced section; below scrolls to its bottom too.
func advanced(s *screen.Settings, below bool) *screen.Settings {
	s.ExpandAdvanced()
	if below {
		s.ScrollDown()
	}
	return s
}

func slug(setting screen.Setting) string {
	return strings.ReplaceAll(strings.ToLower(setting.String()), " ", "-")
}

func toggleScenarios(setting screen.Setting) []Scenario {
	below := setting == screen.UsageDiagnostics
	leave := func(s *screen.Settings) {
		if below {
			s.ScrollUp()
		}
		if setting.Advanced() {
			s.CollapseAdvanced()
		}
		s.Back()
	}
	prepare := func(s *screen.Settings) {
		if setting.Advanced() {
			advanced(s, below)
		}
	}
	def := "enabled"
	if !setting.Default() {
		def = "disabled"
	}

	return []Scenario{
		settingsScenario(slug(setting)+"-"+def+"-by-default", []string{"default"}, func(_ *Case, s *screen.Settings) {
			prepare(s)
			s.Result().AssertDefaults(setting)
			leave(s)
		}),
		settingsScenario(slug(setting)+"-toggle", []string{"toggle"}, func(_ *Case, s *screen.Settings) {
			prepare(s)
			flipped := !setting.Default()
			s.Set(setting, flipped)
			s.Result().AssertSetting(setting, flipped)
			s.Set(setting, setting.Default())
			s.Result().AssertDefaults(setting)
			leave(s)
		}),
	}
}

func settingsScenarios() []Scenario {
	all := []Scenario{
		settingsScenario("open-and-back", []string{"smoke"}, func(c *Case, s *screen.Settings) {
			s.Back()
			c.HomeResult().AssertSignedIn(c.User.Username)
		}),
	}
	for _, setting := range []screen.Setting{screen.AutomaticUpdates, screen.OpenOnStartup, screen.BetaAccess} {
		all = append(all, toggleScenarios(setting)...)
	}
	all = append(all, settingsScenario("advanced-expand-and-collapse", nil, func(_ *Case, s *screen.Settings) {
		s.ExpandAdvanced()
		s.Result().AssertAdvancedExpanded(true)
		s.CollapseAdvanced()
		s.Result().AssertAdvancedExpanded(false)
		s.Back()
	}))
	for _, setting := range []screen.Setting{screen.AlternativeRouting, screen.DarkMode, screen.ShowAllMail, screen.UsageDiagnostics} {
		all = append(all, toggleScenarios(setting)...)
	}

	return append(all,
		settingsScenario("default-ports", []string{"ports"}, func(_ *Case, s *screen.Settings) {
			advanced(s, true).OpenDefaultPorts()
			s.Result().AssertDefaultPorts()
			s.CancelPorts().Back()
		}),
		settingsScenario("change-ports-and-restore", []string{"ports"}, func(_ *Case, s *screen.Settings) {
			advanced(s, true).OpenDefaultPorts().SetRandomPorts()
			s.OpenDefaultPorts()
			s.Result().AssertSavedPorts()
			s.SetPorts(screen.DefaultIMAPPorts[0], screen.DefaultSMTPPorts[0])
			s.OpenDefaultPorts()
			s.Result().AssertPorts(screen.DefaultIMAPPorts[0], screen.DefaultSMTPPorts[0])
			s.CancelPorts().Back()
		}),
		settingsScenario("default-connection-mode", []string{"connection-mode"}, func(_ *Case, s *screen.Settings) {
			advanced(s, true).OpenConnectionMode()
			s.Result().AssertConnectionMode(screen.STARTTLS, screen.STARTTLS)
			s.CancelConnectionMode().Back()
		}),
		settingsScenario("change-connection-mode-and-restore", []string{"connection-mode"}, func(_ *Case, s *screen.Settings) {
			advanced(s, true).OpenConnectionMode().SetConnectionMode(screen.SSL, screen.SSL)
			s.OpenConnectionMode()
			s.Result().AssertConnectionMode(screen.SSL, screen.SSL)
			s.CancelConnectionMode()
			s.OpenConnectionMode().SetConnectionMode(screen.STARTTLS, screen.STARTTLS)
			s.Back()
		}),
		settingsScenario("local-cache-default-location", []string{"cache"}, func(_ *Case, s *screen.Settings) {
			advanced(s, true).OpenLocalCache()
			s.Result().AssertDefaultCacheLocation()
			s.CancelLocalCache().Back()
		}),
		settingsScenario("local-cache-move-and-restore", []string{"cache"}, func(_ *Case, s *screen.Settings) {
			advanced(s, true).OpenLocalCache().ChangeCacheLocation(filecheck.NewCacheFolder)
			s.OpenLocalCache()
			s.Result().AssertCacheMoved()
			s.RestoreCacheLocation()
			s.OpenLocalCache()
			s.Result().AssertDefaultCacheLocation()
			s.CancelLocalCache().RemoveCacheFolder(filecheck.NewCacheFolder).Back()
		}),
		settingsScenario("export-tls-certificates", []string{"tls"}, func(_ *Case, s *screen.Settings) {
			advanced(s, true).ExportTLSCertificates()
			s.Result().AssertCertificatesExported()
			s.RemoveExportedCertificates().Back()
		}),
		settingsScenario("repair", []string{"sync"}, func(c *Case, s *screen.Settings) {
			c.HomeResult().AssertSynchronized(c.User.Username)
			advanced(s, true).Repair()
			c.HomeResult().AssertSyncRestarted(c.User.Username)
			s.Back()
		}),
		settingsScenario("reset-and-restart", []string{"reset"}, func(c *Case, s *screen.Settings) {
			advanced(s, true).ResetAndRestart()
			c.HomeResult().AssertWelcome()
			c.Login().SignIn(c.User)
			c.HomeResult().AssertSignedIn(c.User.Username)
		}),
	)
}
