package screen

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/filecheck"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/selector"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/uitree"
)

const settingsScreen = "settings"

// Setting is a preference with an on/off toggle.
type Setting int

// Toggle settings
const (
	AutomaticUpdates Setting = iota
	OpenOnStartup
	BetaAccess
	AlternativeRouting
	DarkMode
	ShowAllMail
	UsageDiagnostics
)

type toggleSpec struct {
	label      string
	toggle     string
	group      string
	def        bool
	belowFold  bool
	lagging    bool   // applies a few refreshes after the click
	confirmOn  string // popup button confirming the switch on
	confirmOff string // popup button confirming the switch off
}

var toggles = map[Setting]toggleSpec{
	AutomaticUpdates:   {label: "automatic updates", toggle: "Automatic updates toggle", group: grpGeneral, def: true},
	OpenOnStartup:      {label: "open on startup", toggle: "Open on startup toggle", group: grpGeneral, def: true},
	BetaAccess:         {label: "beta access", toggle: "Beta access toggle", group: grpGeneral, confirmOn: btnEnableBeta},
	AlternativeRouting: {label: "alternative routing", toggle: "Alternative routing toggle", group: grpAdvanced},
	DarkMode:           {label: "dark mode", toggle: "Dark mode toggle", group: grpAdvanced},
	ShowAllMail: {label: "show All Mail", toggle: "Show All Mail toggle", group: grpAdvanced, def: true,
		confirmOn: btnShowAllMail, confirmOff: btnHideAllMail},
	UsageDiagnostics: {label: "usage diagnostics", toggle: "Collect usage diagnostics toggle", group: grpAdvanced,
		def: true, belowFold: true, lagging: true},
}

func (s Setting) String() string {
	if t, ok := toggles[s]; ok {
		return t.label
	}
	return "setting(" + strconv.Itoa(int(s)) + ")"
}

// Default is the value of a fresh installation.
func (s Setting) Default() bool { return toggles[s].def }

// Advanced reports whether the toggle only shows with advanced settings expanded.
func (s Setting) Advanced() bool { return toggles[s].group == grpAdvanced }

func (s Setting) selector() selector.Selector {
	t := toggles[s]
	return inContent(selector.CheckBox(t.toggle).Under(selector.Group(t.group)))
}

// Protocol is a mail connection security mode.
type Protocol string

// Connection modes
const (
	SSL      Protocol = "SSL"
	STARTTLS Protocol = "STARTTLS"
)

// Ports the application picks by default. A busy port moves it to one of the
// alternatives.
var (
	DefaultIMAPPorts = []int{1143, 1144, 1045}
	DefaultSMTPPorts = []int{1025, 1026, 1027}
)

// Dynamic port range random ports are drawn from.
const (
	minDynamicPort = 49152
	maxDynamicPort = 65535
)

// scrollNotches is one wheel turn large enough to reach the bottom of the page.
const scrollNotches = 20

// Settings drives the settings page and its sub-pages.
type Settings struct {
	r *Run

	imapPort, smtpPort int
	cacheTarget        string
	exported           string
}

// Settings returns the settings actions.
func (r *Run) Settings() *Settings {
	return &Settings{r: r}
}

// Open shows the settings page.
func (s *Settings) Open() *Settings {
	s.r.step(settingsScreen, "open settings", func() error {
		if err := s.r.click(core.WindowMain, inNav(selector.Button(btnSettings))); err != nil {
			return err
		}
		_, err := s.r.mustFind(core.WindowMain, inContent(selector.Text(txtSettings)))
		return err
	})
	return s
}

// Back leaves the settings page.
func (s *Settings) Back() *Settings {
	s.r.step(settingsScreen, "leave settings", func() error {
		if err := s.r.click(core.WindowMain, inContent(selector.Button(btnBack))); err != nil {
			return err
		}
		return s.r.awaitGone(core.WindowMain, inContent(selector.Text(txtSettings)), s.r.opts.Timeouts.Find)
	})
	return s
}

// ExpandAdvanced shows the advanced settings. No-op when already shown.
func (s *Settings) ExpandAdvanced() *Settings {
	s.r.step(settingsScreen, "expand advanced settings", func() error {
		return s.setAdvanced(true)
	})
	return s
}

// CollapseAdvanced hides the advanced settings. No-op when already hidden.
func (s *Settings) CollapseAdvanced() *Settings {
	s.r.step(settingsScreen, "collapse advanced settings", func() error {
		return s.setAdvanced(false)
	})
	return s
}

func (s *Settings) setAdvanced(expanded bool) error {
	adv := inContent(selector.Group(grpAdvanced))
	shown, err := s.r.present(core.WindowMain, adv)
	if err != nil || shown == expanded {
		return err
	}
	if err := s.r.click(core.WindowMain, inContent(selector.Text(txtAdvanced))); err != nil {
		return err
	}
	if expanded {
		_, err = s.r.mustFind(core.WindowMain, adv)
		return err
	}
	return s.r.awaitGone(core.WindowMain, adv, s.r.opts.Timeouts.Find)
}

// ScrollDown scrolls to the bottom of the expanded settings page.
func (s *Settings) ScrollDown() *Settings {
	s.r.step(settingsScreen, "scroll settings down", func() error {
		if _, err := s.r.mustFind(core.WindowMain, inContent(selector.Group(grpAdvanced))); err != nil {
			return core.ErrPreconditionViolation.WithMessage("advanced settings must be expanded before scrolling").WithCause(err)
		}
		if err := s.r.scroll(core.WindowMain, selector.Selector{Role: uitree.RolePane, Name: paneContent}, -scrollNotches); err != nil {
			return err
		}
		bottom := inContent(selector.Button(btnReset).Under(selector.Group(grpAdvanced)))
		_, _, err := s.r.expect("scroll to bottom", "visible", s.r.opts.Timeouts.Find, func(ctx context.Context) (string, bool, error) {
			root, err := s.r.sess.Driver().Tree(ctx, core.WindowMain)
			if err != nil {
				return "", false, err
			}
			n, err := selector.Find(root, bottom)
			if err != nil {
				return "", false, err
			}
			if n.Offscreen {
				return "offscreen", false, nil
			}
			return "visible", true, nil
		})
		return err
	})
	return s
}

// ScrollUp scrolls back to the top of the settings page.
func (s *Settings) ScrollUp() *Settings {
	s.r.step(settingsScreen, "scroll settings up", func() error {
		return s.r.scroll(core.WindowMain, selector.Selector{Role: uitree.RolePane, Name: paneContent}, scrollNotches)
	})
	return s
}

// Set switches setting to on, confirms any prompt, and waits until the
// toggle shows the new value. No-op when it already does.
func (s *Settings) Set(setting Setting, on bool) *Settings {
	s.r.step(settingsScreen, fmt.Sprintf("turn %s %s", setting, onOff(on)), func() error {
		return s.set(setting, on)
	})
	return s
}

// Toggle flips setting.
func (s *Settings) Toggle(setting Setting) *Settings {
	s.r.step(settingsScreen, "toggle "+setting.String(), func() error {
		n, err := s.r.mustFind(core.WindowMain, setting.selector())
		if err != nil {
			return err
		}
		return s.set(setting, !n.Checked)
	})
	return s
}

func (s *Settings) set(setting Setting, on bool) error {
	t := toggles[setting]
	sel := setting.selector()
	n, err := s.r.mustFind(core.WindowMain, sel)
	if err != nil {
		return err
	}
	if n.Checked == on {
		return nil
	}
	if n.Offscreen && t.belowFold {
		return core.ErrPreconditionViolation.WithMessagef("%s is below the fold; scroll settings down first", setting)
	}
	if err := s.r.toggle(core.WindowMain, sel); err != nil {
		return err
	}
	confirm := t.confirmOff
	if on {
		confirm = t.confirmOn
	}
	if confirm != "" {
		if err := s.r.clickInNotification(confirm); err != nil {
			return err
		}
	}
	timeout := s.r.opts.Timeouts.Find
	if t.lagging || confirm != "" {
		timeout = s.r.opts.Timeouts.Popup
	}
	_, err = s.r.awaitNode(core.WindowMain, sel.WithChecked(on), timeout)
	return err
}

// OpenDefaultPorts shows the port settings.
func (s *Settings) OpenDefaultPorts() *Settings {
	s.r.step(settingsScreen, "open default ports", func() error {
		return s.openSubPage(btnDefaultPorts, txtDefaultPorts)
	})
	return s
}

// SetPorts saves the given ports and returns to the settings page.
func (s *Settings) SetPorts(imap, smtp int) *Settings {
	s.r.step(settingsScreen, fmt.Sprintf("set ports IMAP %d SMTP %d", imap, smtp), func() error {
		return s.savePorts(imap, smtp)
	})
	return s
}

// SetRandomPorts saves two distinct ports from the dynamic range.
func (s *Settings) SetRandomPorts() *Settings {
	s.r.step(settingsScreen, "set random ports", func() error {
		imap, smtp := s.randomPorts()
		return s.savePorts(imap, smtp)
	})
	return s
}

// Ports returns the ports last saved through SetPorts or SetRandomPorts.
func (s *Settings) Ports() (imap, smtp int) { return s.imapPort, s.smtpPort }

func (s *Settings) randomPorts() (int, int) {
	span := maxDynamicPort - minDynamicPort + 1
	imap := minDynamicPort + s.r.rng.Intn(span)
	smtp := imap
	for smtp == imap {
		smtp = minDynamicPort + s.r.rng.Intn(span)
	}
	return imap, smtp
}

func (s *Settings) savePorts(imap, smtp int) error {
	s.imapPort, s.smtpPort = imap, smtp
	if err := s.r.setText(core.WindowMain, inContent(selector.Edit(editIMAPPort)), strconv.Itoa(imap)); err != nil {
		return err
	}
	if err := s.r.setText(core.WindowMain, inContent(selector.Edit(editSMTPPort)), strconv.Itoa(smtp)); err != nil {
		return err
	}
	return s.saveSubPage(txtDefaultPorts)
}

// CancelPorts leaves the port settings without saving.
func (s *Settings) CancelPorts() *Settings {
	s.r.step(settingsScreen, "cancel default ports", func() error {
		return s.cancelSubPage(txtDefaultPorts)
	})
	return s
}

// OpenConnectionMode shows the connection mode settings.
func (s *Settings) OpenConnectionMode() *Settings {
	s.r.step(settingsScreen, "open connection mode", func() error {
		return s.openSubPage(btnConnectionMode, txtConnectionMode)
	})
	return s
}

// SetConnectionMode picks the IMAP and SMTP modes and saves them.
func (s *Settings) SetConnectionMode(imap, smtp Protocol) *Settings {
	s.r.step(settingsScreen, fmt.Sprintf("set connection mode IMAP %s SMTP %s", imap, smtp), func() error {
		if err := s.r.click(core.WindowMain, modeSelector(grpIMAPMode, imap)); err != nil {
			return err
		}
		if err := s.r.click(core.WindowMain, modeSelector(grpSMTPMode, smtp)); err != nil {
			return err
		}
		return s.saveSubPage(txtConnectionMode)
	})
	return s
}

// CancelConnectionMode leaves the connection mode settings without saving.
func (s *Settings) CancelConnectionMode() *Settings {
	s.r.step(settingsScreen, "cancel connection mode", func() error {
		return s.cancelSubPage(txtConnectionMode)
	})
	return s
}

func modeSelector(group string, p Protocol) selector.Selector {
	return inContent(selector.RadioButton(string(p)).Under(selector.Group(group)))
}

// OpenLocalCache shows the local cache settings.
func (s *Settings) OpenLocalCache() *Settings {
	s.r.step(settingsScreen, "open local cache", func() error {
		return s.openSubPage(btnLocalCache, txtLocalCache)
	})
	return s
}

// ChangeCacheLocation creates folder inside the current cache location,
// picks it, saves, and confirms the result.
func (s *Settings) ChangeCacheLocation(folder string) *Settings {
	s.r.step(settingsScreen, "move cache to "+folder, func() error {
		current, err := s.cacheLocation()
		if err != nil {
			return err
		}
		s.cacheTarget = filepath.Join(current, folder)
		if err := s.openDialog(btnCacheLocation, dlgCacheLocation); err != nil {
			return err
		}
		if err := s.createFolder(dlgCacheLocation, folder); err != nil {
			return err
		}
		if err := s.selectFolder(dlgCacheLocation); err != nil {
			return err
		}
		return s.saveCacheLocation()
	})
	return s
}

// RestoreCacheLocation moves the cache back to the parent of its current
// location.
func (s *Settings) RestoreCacheLocation() *Settings {
	s.r.step(settingsScreen, "restore cache location", func() error {
		current, err := s.cacheLocation()
		if err != nil {
			return err
		}
		s.cacheTarget = filepath.Dir(current)
		if err := s.openDialog(btnCacheLocation, dlgCacheLocation); err != nil {
			return err
		}
		if err := s.r.click(core.WindowMain, inDialog(dlgCacheLocation, selector.Button(btnUp))); err != nil {
			return err
		}
		if err := s.selectFolder(dlgCacheLocation); err != nil {
			return err
		}
		return s.saveCacheLocation()
	})
	return s
}

// RemoveCacheFolder deletes a cache folder left behind by a move. Only
// folders under the default cache location can be removed.
func (s *Settings) RemoveCacheFolder(folder string) *Settings {
	s.r.step(settingsScreen, "remove cache folder "+folder, func() error {
		root := s.r.opts.Paths.Cache()
		path := filepath.Join(root, folder)
		if err := filecheck.RemoveUnder(root, path); err != nil {
			return err
		}
		return filecheck.AwaitGone(s.r.ctx, s.r.waitOpts(s.r.opts.Timeouts.Popup), path)
	})
	return s
}

// CancelLocalCache leaves the local cache settings without saving.
func (s *Settings) CancelLocalCache() *Settings {
	s.r.step(settingsScreen, "cancel local cache", func() error {
		return s.cancelSubPage(txtLocalCache)
	})
	return s
}

// CacheTarget is where the last cache move pointed.
func (s *Settings) CacheTarget() string { return s.cacheTarget }

func (s *Settings) cacheLocation() (string, error) {
	n, err := s.r.mustFind(core.WindowMain, inContent(selector.Selector{Role: uitree.RoleText}.Under(selector.Group(grpCacheLocation))))
	if err != nil {
		return "", err
	}
	return n.Name, nil
}

func (s *Settings) saveCacheLocation() error {
	if err := s.r.click(core.WindowMain, inContent(selector.Button(btnSave))); err != nil {
		return err
	}
	if _, err := s.r.awaitNode(core.WindowNotification, selector.Text(txtCacheChanged), s.r.opts.Timeouts.Popup); err != nil {
		return err
	}
	if err := s.r.clickInNotification(btnOK); err != nil {
		return err
	}
	_, err := s.r.mustFind(core.WindowMain, inContent(selector.Text(txtSettings)))
	return err
}

// ExportTLSCertificates exports the certificates into a new folder under
// the export directory.
func (s *Settings) ExportTLSCertificates() *Settings {
	s.r.step(settingsScreen, "export TLS certificates", func() error {
		s.exported = filepath.Join(s.r.opts.Paths.Export(), filecheck.TLSFolder)
		if err := s.openDialog(btnExportTLS, dlgExportDirectory); err != nil {
			return err
		}
		if err := s.createFolder(dlgExportDirectory, filecheck.TLSFolder); err != nil {
			return err
		}
		return s.selectFolder(dlgExportDirectory)
	})
	return s
}

// RemoveExportedCertificates deletes the exported certificate folder.
func (s *Settings) RemoveExportedCertificates() *Settings {
	s.r.step(settingsScreen, "remove exported certificates", func() error {
		base := s.r.opts.Paths.Export()
		path := filepath.Join(base, filecheck.TLSFolder)
		if err := filecheck.RemoveUnder(base, path); err != nil {
			return err
		}
		return filecheck.AwaitGone(s.r.ctx, s.r.waitOpts(s.r.opts.Timeouts.Popup), path)
	})
	return s
}

// Repair asks the application to repair itself and confirms.
func (s *Settings) Repair() *Settings {
	s.r.step(settingsScreen, "repair", func() error {
		if err := s.r.click(core.WindowMain, inContent(selector.Button(btnRepair))); err != nil {
			return err
		}
		return s.r.clickInNotification(btnConfirmRepair)
	})
	return s
}

// ResetAndRestart resets the application, waits for it to exit, and brings
// it back up.
func (s *Settings) ResetAndRestart() *Settings {
	s.r.step(settingsScreen, "reset and restart", func() error {
		if err := s.r.click(core.WindowMain, inContent(selector.Button(btnReset))); err != nil {
			return err
		}
		if err := s.r.clickInNotification(btnConfirmReset); err != nil {
			return err
		}
		return s.r.relaunch()
	})
	return s
}

func (s *Settings) openSubPage(button, title string) error {
	if err := s.r.click(core.WindowMain, inContent(selector.Button(button))); err != nil {
		return err
	}
	_, err := s.r.mustFind(core.WindowMain, inContent(selector.Text(title)))
	return err
}

// subPageErrors are the validation texts sub-pages show instead of saving.
var subPageErrors = []string{"Port is not valid", "Ports must be different"}

// saveSubPage presses Save and waits for the sub-page to close. A
// validation error shown instead fails at once.
func (s *Settings) saveSubPage(title string) error {
	if err := s.r.click(core.WindowMain, inContent(selector.Button(btnSave))); err != nil {
		return err
	}
	_, _, err := s.r.expect("save "+strings.ToLower(title), "settings page", s.r.opts.Timeouts.Find,
		func(ctx context.Context) (string, bool, error) {
			root, err := s.r.sess.Driver().Tree(ctx, core.WindowMain)
			if err != nil {
				return "", false, err
			}
			for _, msg := range subPageErrors {
				if selector.Exists(root, inContent(selector.Text(msg))) {
					return msg, false, core.ErrConditionNotMet.WithMessagef("%s not saved: %s", title, msg).
						WithDetails(map[string]interface{}{"expected": "saved", "observed": msg})
				}
			}
			if selector.Exists(root, inContent(selector.Text(title))) {
				return title + " still open", false, nil
			}
			return "settings page", true, nil
		})
	return err
}

func (s *Settings) cancelSubPage(title string) error {
	if err := s.r.click(core.WindowMain, inContent(selector.Button(btnCancel))); err != nil {
		return err
	}
	return s.r.awaitGone(core.WindowMain, inContent(selector.Text(title)), s.r.opts.Timeouts.Find)
}

func inDialog(title string, sel selector.Selector) selector.Selector {
	return sel.Inside(selector.Window(title))
}

func (s *Settings) openDialog(button, title string) error {
	if err := s.r.click(core.WindowMain, inContent(selector.Button(button))); err != nil {
		return err
	}
	_, err := s.r.awaitNode(core.WindowMain, selector.Window(title), s.r.opts.Timeouts.Popup)
	return err
}

// createFolder makes a new folder in the dialog's current directory and
// renames it in place.
func (s *Settings) createFolder(dialog, name string) error {
	item := inDialog(dialog, selector.Selector{Role: uitree.RoleListItem, Name: name})
	exists, err := s.r.present(core.WindowMain, item)
	if err != nil {
		return err
	}
	if exists {
		return core.ErrPreconditionViolation.WithMessagef("folder %q already exists; remove it before running", name)
	}
	if err := s.r.click(core.WindowMain, inDialog(dialog, selector.Button(btnNewFolder))); err != nil {
		return err
	}
	if err := s.r.setText(core.WindowMain, inDialog(dialog, selector.Edit(editFolderName)), name); err != nil {
		return err
	}
	if err := s.r.press(core.KeyEnter); err != nil {
		return err
	}
	_, err = s.r.mustFind(core.WindowMain, item)
	return err
}

func (s *Settings) selectFolder(dialog string) error {
	if err := s.r.click(core.WindowMain, inDialog(dialog, selector.Button(btnSelectFolder))); err != nil {
		return err
	}
	return s.r.awaitGone(core.WindowMain, selector.Window(dialog), s.r.opts.Timeouts.Find)
}

// relaunch waits for the application to exit after an in-app restart and
// attaches to, or starts, the next instance.
func (r *Run) relaunch() error {
	if err := r.awaitExit(); err != nil {
		return err
	}
	return r.sess.LaunchOrAttach(r.ctx)
}

func (r *Run) awaitExit() error {
	if err := r.sess.AwaitExit(r.ctx, r.opts.Timeouts.Restart); err != nil {
		return core.ErrSessionUnavailable.WithMessagef("application did not exit within %v", r.opts.Timeouts.Restart).WithCause(err)
	}
	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// SettingsResult asserts on the settings pages.
type SettingsResult struct {
	s *Settings
}

// Result returns the assertions for these settings.
func (s *Settings) Result() *SettingsResult {
	return &SettingsResult{s: s}
}

// AssertSetting waits until setting's toggle shows on.
func (sr *SettingsResult) AssertSetting(setting Setting, on bool) *SettingsResult {
	r := sr.s.r
	timeout := r.opts.Timeouts.Find
	if toggles[setting].lagging {
		timeout = r.opts.Timeouts.Popup
	}
	r.record(settingsScreen, fmt.Sprintf("assert %s is %s", setting, onOff(on)), func() (string, string, error) {
		return r.expect(setting.String(), onOff(on), timeout, func(ctx context.Context) (string, bool, error) {
			root, err := r.sess.Driver().Tree(ctx, core.WindowMain)
			if err != nil {
				return "", false, err
			}
			n, err := selector.Find(root, setting.selector())
			if err != nil {
				return "", false, err
			}
			return onOff(n.Checked), n.Checked == on, nil
		})
	})
	return sr
}

// AssertDefaults checks every given setting holds its default.
func (sr *SettingsResult) AssertDefaults(settings ...Setting) *SettingsResult {
	for _, setting := range settings {
		sr.AssertSetting(setting, setting.Default())
	}
	return sr
}

// AssertAdvancedExpanded checks whether the advanced settings are shown.
func (sr *SettingsResult) AssertAdvancedExpanded(expanded bool) *SettingsResult {
	r := sr.s.r
	want := "collapsed"
	if expanded {
		want = "expanded"
	}
	r.record(settingsScreen, "assert advanced settings "+want, func() (string, string, error) {
		return r.expect("advanced settings", want, r.opts.Timeouts.Find, func(ctx context.Context) (string, bool, error) {
			root, err := r.sess.Driver().Tree(ctx, core.WindowMain)
			if err != nil {
				return "", false, err
			}
			obs := "collapsed"
			if selector.Exists(root, inContent(selector.Group(grpAdvanced))) {
				obs = "expanded"
			}
			return obs, obs == want, nil
		})
	})
	return sr
}

// AssertPorts checks the port edits on the open port settings.
func (sr *SettingsResult) AssertPorts(imap, smtp int) *SettingsResult {
	return sr.assertPorts(fmt.Sprintf("IMAP %d SMTP %d", imap, smtp), []int{imap}, []int{smtp})
}

// AssertSavedPorts checks the port edits show the ports saved last.
func (sr *SettingsResult) AssertSavedPorts() *SettingsResult {
	imap, smtp := sr.s.Ports()
	return sr.AssertPorts(imap, smtp)
}

// AssertDefaultPorts checks the port edits show one of the default ports.
func (sr *SettingsResult) AssertDefaultPorts() *SettingsResult {
	return sr.assertPorts("default ports", DefaultIMAPPorts, DefaultSMTPPorts)
}

func (sr *SettingsResult) assertPorts(name string, imap, smtp []int) *SettingsResult {
	r := sr.s.r
	want := fmt.Sprintf("IMAP in %v, SMTP in %v", imap, smtp)
	r.record(settingsScreen, "assert "+name, func() (string, string, error) {
		imapEdit, err := r.mustFind(core.WindowMain, inContent(selector.Edit(editIMAPPort)))
		if err != nil {
			return want, "", err
		}
		smtpEdit, err := r.mustFind(core.WindowMain, inContent(selector.Edit(editSMTPPort)))
		if err != nil {
			return want, "", err
		}
		return r.check("ports", want, func(context.Context) (string, bool, error) {
			obs := fmt.Sprintf("IMAP %s, SMTP %s", imapEdit.Value, smtpEdit.Value)
			return obs, oneOf(imapEdit.Value, imap) && oneOf(smtpEdit.Value, smtp), nil
		})
	})
	return sr
}

func oneOf(value string, ports []int) bool {
	p, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return false
	}
	for _, q := range ports {
		if p == q {
			return true
		}
	}
	return false
}

// AssertConnectionMode checks the selected modes on the open connection
// mode settings.
func (sr *SettingsResult) AssertConnectionMode(imap, smtp Protocol) *SettingsResult {
	r := sr.s.r
	want := fmt.Sprintf("IMAP %s, SMTP %s", imap, smtp)
	r.record(settingsScreen, "assert connection mode "+want, func() (string, string, error) {
		return r.expect("connection mode", want, r.opts.Timeouts.Find, func(ctx context.Context) (string, bool, error) {
			root, err := r.sess.Driver().Tree(ctx, core.WindowMain)
			if err != nil {
				return "", false, err
			}
			gotIMAP, err := selectedMode(root, grpIMAPMode)
			if err != nil {
				return "", false, err
			}
			gotSMTP, err := selectedMode(root, grpSMTPMode)
			if err != nil {
				return "", false, err
			}
			obs := fmt.Sprintf("IMAP %s, SMTP %s", gotIMAP, gotSMTP)
			return obs, gotIMAP == imap && gotSMTP == smtp, nil
		})
	})
	return sr
}

func selectedMode(root *uitree.Node, group string) (Protocol, error) {
	for _, p := range []Protocol{SSL, STARTTLS} {
		n, err := selector.Find(root, modeSelector(group, p))
		if err != nil {
			return "", err
		}
		if n.Checked {
			return p, nil
		}
	}
	return "none", nil
}

// AssertCacheLocation waits until the local cache page shows path.
func (sr *SettingsResult) AssertCacheLocation(path string) *SettingsResult {
	r := sr.s.r
	r.record(settingsScreen, "assert cache location", func() (string, string, error) {
		return r.expect("cache location", path, r.opts.Timeouts.Find, func(ctx context.Context) (string, bool, error) {
			root, err := r.sess.Driver().Tree(ctx, core.WindowMain)
			if err != nil {
				return "", false, err
			}
			n, err := selector.Find(root, inContent(selector.Selector{Role: uitree.RoleText}.Under(selector.Group(grpCacheLocation))))
			if err != nil {
				return "", false, err
			}
			return n.Name, filepath.Clean(n.Name) == filepath.Clean(path), nil
		})
	})
	return sr
}

// AssertDefaultCacheLocation checks the local cache page shows the default location.
func (sr *SettingsResult) AssertDefaultCacheLocation() *SettingsResult {
	return sr.AssertCacheLocation(sr.s.r.opts.Paths.Cache())
}

// AssertCacheMoved checks the local cache page shows the last move target
// and that the folder exists on disk.
func (sr *SettingsResult) AssertCacheMoved() *SettingsResult {
	r := sr.s.r
	sr.AssertCacheLocation(sr.s.cacheTarget)
	r.record(settingsScreen, "assert cache folder exists", func() (string, string, error) {
		err := filecheck.AwaitDir(r.ctx, r.waitOpts(r.opts.Timeouts.Popup), sr.s.cacheTarget)
		return sr.s.cacheTarget, "", err
	})
	return sr
}

// AssertCertificatesExported checks the exported folder holds the
// certificate and key.
func (sr *SettingsResult) AssertCertificatesExported() *SettingsResult {
	r := sr.s.r
	r.record(settingsScreen, "assert TLS certificates exported", func() (string, string, error) {
		dir := sr.s.exported
		if dir == "" {
			return "", "", core.ErrPreconditionViolation.WithMessage("no certificates were exported")
		}
		if err := filecheck.AwaitDir(r.ctx, r.waitOpts(r.opts.Timeouts.Popup), dir); err != nil {
			return dir, "missing", err
		}
		want := filecheck.CertFile + ", " + filecheck.KeyFile
		return want, want, filecheck.RequireFiles(dir, filecheck.CertFile, filecheck.KeyFile)
	})
	return sr
}
