package mock

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/uitree"
)

// MainTitle is the title of the main window.
const MainTitle = "Proton Mail Bridge"

type page int

const (
	pageWelcome page = iota
	pageLogin
	pageMailbox
	pageHome
	pageSettings
	pagePorts
	pageConnectionMode
	pageLocalCache
	pageHelp
	pageReportCategories
	pageReportForm
	pageReportOverview
)

type loginForm struct {
	username     string
	password     string
	mailbox      string
	err          string
	pending      bool
	pendingTicks int
	unlocking    *Account
}

type portsForm struct {
	imap string
	smtp string
	err  string
}

type modeForm struct {
	imapSSL bool
	smtpSSL bool
}

type pendingToggle struct {
	value bool
	ticks int
}

type popup struct {
	title   string
	texts   []string
	buttons []popupButton
	delay   int
}

type popupButton struct {
	name string
	do   func()
}

// showPopup queues p; it materializes after PopupTicks fetches.
func (a *App) showPopup(p *popup) {
	p.delay = a.cfg.PopupTicks
	a.popup = p
}

func (a *App) visiblePopup() *popup {
	if a.popup == nil || a.popup.delay > 0 {
		return nil
	}
	return a.popup
}

func (a *App) okPopup(title, text string, then func()) *popup {
	return &popup{
		title: title,
		texts: []string{text},
		buttons: []popupButton{{name: "OK", do: then}},
	}
}

func (a *App) confirmPopup(title, text, confirm string, do func()) *popup {
	return &popup{
		title: title,
		texts: []string{text},
		buttons: []popupButton{
			{name: confirm, do: do},
			{name: "Cancel"},
		},
	}
}

func updatePopup(a *App) *popup {
	return &popup{
		title: "Update",
		texts: []string{"Bridge update is ready", "Restart Bridge to install the update."},
		buttons: []popupButton{
			{name: "Restart Bridge", do: a.installUpdate},
			{name: "Later"},
		},
	}
}

func (a *App) installUpdate() {
	if a.cfg.Available == nil {
		return
	}
	rel := *a.cfg.Available
	a.pendingInstall = &rel
	a.cfg.Available = nil
	a.updateEligible = false
	a.exit()
}

// VersionText is what the help page shows for a release.
func VersionText(r Release) string {
	return fmt.Sprintf("v%s (br-%s)", r.Version, r.Tag)
}

func syncText(u *userState) string {
	switch {
	case !u.signedIn:
		return "Signed out"
	case u.sync < 100:
		return fmt.Sprintf("Synchronizing (%d%%)", u.sync)
	default:
		return "Connected"
	}
}

// renderMain builds the main window. Caller holds mu.
func (a *App) renderMain(b *builder) *uitree.Node {
	win := b.root("main", MainTitle)

	nav := b.pane(win, "Accounts")
	b.button(nav, "Help button", func() { a.page = pageHelp })
	b.button(nav, "Settings button", func() { a.page = pageSettings })
	if len(a.users) > 0 {
		b.button(nav, "Add account button", func() {
			a.login = loginForm{}
			a.prevPage = a.page
			a.page = pageLogin
		})
		for i, u := range a.users {
			idx := i
			g := b.group(nav, u.acct.Username)
			b.clickableText(g, u.acct.Username, func() {
				a.current = idx
				a.page = pageHome
			})
			b.text(g, syncText(u))
		}
	}

	content := b.pane(win, "Content")
	b.bindings[content.RuntimeID] = &binding{scroll: func(delta int) error {
		// Negative deltas scroll the content down.
		a.scrolled = delta < 0
		return nil
	}}

	switch a.page {
	case pageWelcome:
		a.renderWelcome(b, content)
	case pageLogin:
		a.renderLogin(b, content)
	case pageMailbox:
		a.renderMailbox(b, content)
	case pageHome:
		a.renderHome(b, content)
	case pageSettings:
		a.renderSettings(b, content)
	case pagePorts:
		a.renderPorts(b, content)
	case pageConnectionMode:
		a.renderConnectionMode(b, content)
	case pageLocalCache:
		a.renderLocalCache(b, content)
	case pageHelp:
		a.renderHelp(b, content)
	case pageReportCategories:
		a.renderReportCategories(b, content)
	case pageReportForm:
		a.renderReportForm(b, content)
	case pageReportOverview:
		a.renderReportOverview(b, content)
	}

	if p := a.visiblePopup(); p != nil {
		win.Children = append(win.Children, a.renderPopup(b))
	}
	if a.dialog != nil {
		win.Children = append(win.Children, a.renderDialog(b))
	}
	win.Link()
	return win
}

// renderPopup builds the popup subtree. Its runtime ids are rooted at
// "popup" so the main-window and notification views share them.
func (a *App) renderPopup(b *builder) *uitree.Node {
	p := a.popup
	w := b.root("popup", p.title)
	for _, t := range p.texts {
		b.text(w, t)
	}
	for _, btn := range p.buttons {
		btn := btn
		b.button(w, btn.name, func() {
			a.popup = nil
			if btn.do != nil {
				btn.do()
			}
		})
	}
	return w
}

func (a *App) renderWelcome(b *builder, c *uitree.Node) {
	b.text(c, "Welcome to Proton Mail Bridge")
	b.button(c, "Start setup", func() {
		a.login = loginForm{}
		a.prevPage = pageWelcome
		a.page = pageLogin
	})
}

func (a *App) renderLogin(b *builder, c *uitree.Node) {
	l := &a.login
	b.text(c, "Sign in")
	b.edit(c, "Email or username", l.username, func(s string) { l.username = s })
	b.edit(c, "Password", strings.Repeat("•", len(l.password)), func(s string) { l.password = s })
	if l.err != "" {
		b.text(c, l.err)
	}
	if l.pending {
		b.button(c, "Signing in", nil).Enabled = false
	} else {
		b.button(c, "Sign in", a.submitLogin)
	}
	b.button(c, "Cancel", a.cancelLogin)
}

func (a *App) renderMailbox(b *builder, c *uitree.Node) {
	l := &a.login
	b.text(c, "Unlock your mailbox")
	b.edit(c, "Mailbox password", strings.Repeat("•", len(l.mailbox)), func(s string) { l.mailbox = s })
	if l.err != "" {
		b.text(c, l.err)
	}
	b.button(c, "Unlock", a.submitMailbox)
	b.button(c, "Cancel", a.cancelLogin)
}

func (a *App) submitLogin() {
	l := &a.login
	l.err = ""
	switch {
	case strings.TrimSpace(l.username) == "":
		l.err = a.cfg.Messages.EmptyUsername
		return
	case l.password == "":
		l.err = a.cfg.Messages.EmptyPassword
		return
	}
	l.pending = true
	l.pendingTicks = a.cfg.SignInTicks
}

// resolveSignIn answers a pending sign-in. Caller holds mu.
func (a *App) resolveSignIn() {
	l := &a.login
	l.pending = false

	acct, ok := a.lookup(strings.TrimSpace(l.username))
	if !ok || acct.Password != l.password {
		l.err = a.cfg.Messages.IncorrectCredentials
		return
	}
	if u := a.userByName(acct.Username); u != nil && u.signedIn {
		back := a.prevPage
		a.showPopup(a.okPopup("Account conflict", a.cfg.Messages.AlreadySignedIn, func() {
			a.login = loginForm{}
			a.page = back
		}))
		return
	}
	switch acct.Kind {
	case Disabled:
		l.err = a.cfg.Messages.AccountDisabled
		return
	case Delinquent:
		l.err = a.cfg.Messages.AccountDelinquent
		return
	case Free:
		l.err = a.cfg.Messages.FreeAccount
		return
	}
	if acct.MailboxPassword != "" {
		l.unlocking = &acct
		l.password = ""
		a.page = pageMailbox
		return
	}
	a.completeSignIn(acct)
}

func (a *App) submitMailbox() {
	l := &a.login
	if l.unlocking == nil {
		return
	}
	if l.mailbox != l.unlocking.MailboxPassword {
		l.err = a.cfg.Messages.IncorrectMailbox
		return
	}
	a.completeSignIn(*l.unlocking)
}

func (a *App) completeSignIn(acct Account) {
	a.addUser(acct)
	a.login = loginForm{}
	a.page = pageHome
}

func (a *App) cancelLogin() {
	a.login = loginForm{}
	if a.prevPage == pageHome && len(a.users) > 0 {
		a.page = pageHome
		return
	}
	a.page = a.landingPage()
	if a.page == pageLogin {
		a.page = pageWelcome
	}
}

func (a *App) renderHome(b *builder, c *uitree.Node) {
	u := a.currentUser()
	if u == nil {
		a.page = a.landingPage()
		return
	}
	b.text(c, u.acct.Username)
	b.text(c, syncText(u))
	if u.signedIn {
		b.button(c, "Sign out button", func() { u.signedIn = false })
	} else {
		b.button(c, "Sign in button", func() {
			a.login = loginForm{username: u.acct.Username}
			a.prevPage = pageHome
			a.page = pageLogin
		})
	}
	b.button(c, "Remove account button", func() {
		a.showPopup(a.confirmPopup("Remove account",
			"Are you sure you want to remove "+u.acct.Username+"?", "Remove", func() { a.removeUser(u) }))
	})
	mail := b.group(c, "Mailbox details")
	b.text(mail, "IMAP port "+strconv.Itoa(a.settings.IMAPPort))
	b.text(mail, "SMTP port "+strconv.Itoa(a.settings.SMTPPort))
}

func (a *App) removeUser(u *userState) {
	for i, x := range a.users {
		if x == u {
			a.users = append(a.users[:i], a.users[i+1:]...)
			break
		}
	}
	a.current = 0
	if len(a.users) == 0 {
		a.page = pageWelcome
		return
	}
	a.page = pageHome
}

func (a *App) renderSettings(b *builder, c *uitree.Node) {
	s := &a.settings
	b.text(c, "Settings")
	b.button(c, "Back", func() {
		a.expanded = false
		a.scrolled = false
		a.page = a.landingPage()
		if a.page == pageLogin {
			a.page = pageWelcome
		}
	})

	general := b.group(c, "General")
	b.check(general, "Automatic updates toggle", s.AutomaticUpdates, func() { s.AutomaticUpdates = !s.AutomaticUpdates })
	b.check(general, "Open on startup toggle", s.OpenOnStartup, func() { s.OpenOnStartup = !s.OpenOnStartup })
	b.check(general, "Beta access toggle", s.BetaAccess, func() {
		if s.BetaAccess {
			s.BetaAccess = false
			return
		}
		a.showPopup(a.confirmPopup("Beta access",
			"Enable Beta access? Beta versions may contain bugs.", "Enable", func() { s.BetaAccess = true }))
	})

	b.clickableText(c, "Advanced settings", func() {
		a.expanded = !a.expanded
		a.scrolled = false
	})
	if !a.expanded {
		return
	}

	adv := b.group(c, "Advanced")
	b.check(adv, "Alternative routing toggle", s.AlternativeRoute, func() { s.AlternativeRoute = !s.AlternativeRoute })
	b.check(adv, "Dark mode toggle", s.DarkMode, func() { s.DarkMode = !s.DarkMode })
	b.check(adv, "Show All Mail toggle", s.ShowAllMail, func() {
		if s.ShowAllMail {
			a.showPopup(a.confirmPopup("All Mail",
				"Hide the All Mail folder from your email client?", "Hide All Mail folder", func() { s.ShowAllMail = false }))
			return
		}
		a.showPopup(a.confirmPopup("All Mail",
			"Show the All Mail folder in your email client?", "Show All Mail folder", func() { s.ShowAllMail = true }))
	})

	// Everything below the fold needs the content scrolled down.
	b.offscreen = !a.scrolled
	defer func() { b.offscreen = false }()

	diag := s.Diagnostics
	b.check(adv, "Collect usage diagnostics toggle", diag, func() {
		target := !s.Diagnostics
		if a.pendingDiag != nil {
			target = !a.pendingDiag.value
		}
		a.pendingDiag = &pendingToggle{value: target, ticks: a.cfg.ToggleLagTicks}
	})
	b.button(adv, "Default ports button", func() {
		a.ports = portsForm{imap: strconv.Itoa(s.IMAPPort), smtp: strconv.Itoa(s.SMTPPort)}
		a.page = pagePorts
	})
	b.button(adv, "Connection mode button", func() {
		a.mode = modeForm{imapSSL: s.IMAPSSL, smtpSSL: s.SMTPSSL}
		a.page = pageConnectionMode
	})
	b.button(adv, "Local cache button", func() {
		a.cacheForm = s.CacheLocation
		a.page = pageLocalCache
	})
	b.button(adv, "Export TLS certificates button", func() {
		a.openDialog("Select directory", pickExport, a.cfg.ProfileDir)
	})
	b.button(adv, "Repair Bridge button", func() {
		a.showPopup(a.confirmPopup("Repair Bridge",
			"This will reconnect your accounts and resynchronize your mailboxes.", "Repair", a.repair))
	})
	b.button(adv, "Reset Bridge button", func() {
		a.showPopup(a.confirmPopup("Reset Bridge",
			"This will clear your accounts, preferences, and cached data.", "Reset and restart", a.resetAndRestart))
	})
}

func (a *App) repair() {
	for _, u := range a.users {
		if u.signedIn {
			u.sync = 0
			u.holdSync = true
		}
	}
}

func (a *App) resetAndRestart() {
	a.users = nil
	a.current = 0
	a.settings = a.defaultSettings()
	a.exit()
}

func (a *App) renderPorts(b *builder, c *uitree.Node) {
	f := &a.ports
	b.text(c, "Default ports")
	b.edit(c, "IMAP port edit", f.imap, func(s string) { f.imap = s })
	b.edit(c, "SMTP port edit", f.smtp, func(s string) { f.smtp = s })
	if f.err != "" {
		b.text(c, f.err)
	}
	b.button(c, "Save", func() {
		imap, err1 := strconv.Atoi(strings.TrimSpace(f.imap))
		smtp, err2 := strconv.Atoi(strings.TrimSpace(f.smtp))
		switch {
		case err1 != nil || err2 != nil || !validPort(imap) || !validPort(smtp):
			f.err = "Port is not valid"
		case imap == smtp:
			f.err = "Ports must be different"
		default:
			a.settings.IMAPPort, a.settings.SMTPPort = imap, smtp
			a.page = pageSettings
		}
	})
	b.button(c, "Cancel", func() { a.page = pageSettings })
}

func validPort(p int) bool {
	return p >= 1024 && p <= 65535
}

func (a *App) renderConnectionMode(b *builder, c *uitree.Node) {
	f := &a.mode
	b.text(c, "Connection mode")
	imap := b.group(c, "IMAP connection mode")
	b.radio(imap, "SSL", f.imapSSL, func() { f.imapSSL = true })
	b.radio(imap, "STARTTLS", !f.imapSSL, func() { f.imapSSL = false })
	smtp := b.group(c, "SMTP connection mode")
	b.radio(smtp, "SSL", f.smtpSSL, func() { f.smtpSSL = true })
	b.radio(smtp, "STARTTLS", !f.smtpSSL, func() { f.smtpSSL = false })
	b.button(c, "Save", func() {
		a.settings.IMAPSSL, a.settings.SMTPSSL = f.imapSSL, f.smtpSSL
		a.page = pageSettings
	})
	b.button(c, "Cancel", func() { a.page = pageSettings })
}

func (a *App) renderLocalCache(b *builder, c *uitree.Node) {
	b.text(c, "Local cache")
	g := b.group(c, "Current cache location")
	b.text(g, a.cacheForm)
	b.button(c, "Current cache location button", func() {
		a.openDialog("Select cache location", pickCache, a.cacheForm)
	})
	save := b.button(c, "Save", func() {
		if a.cacheForm == a.settings.CacheLocation {
			return
		}
		if err := os.MkdirAll(a.cacheForm, 0o755); err != nil {
			a.showPopup(a.okPopup("Local cache", "Failed to change cache location", nil))
			return
		}
		a.settings.CacheLocation = a.cacheForm
		a.showPopup(a.okPopup("Local cache", "Cache location successfully changed", func() {
			a.page = pageSettings
		}))
	})
	save.Enabled = a.cacheForm != a.settings.CacheLocation
	b.button(c, "Cancel", func() { a.page = pageSettings })
}

func (a *App) renderHelp(b *builder, c *uitree.Node) {
	b.text(c, "Help")
	b.button(c, "Help topics button", func() {
		a.browserOpen = true
		a.focused = core.WindowBrowser
	})
	b.button(c, "Check now button", func() {
		if a.updateEligible && a.cfg.Available != nil {
			a.updateShown = true
			a.showPopup(updatePopup(a))
			return
		}
		a.showPopup(a.okPopup("Updates", "Bridge is up to date", nil))
	})
	b.button(c, "Logs button", func() {
		a.explorerOpen = true
		a.focused = core.WindowFileExplorer
	})
	b.button(c, "Report problem button", func() {
		a.report = reportForm{}
		a.page = pageReportCategories
	})
	b.text(c, VersionText(a.installed))
	b.button(c, "Back", func() { a.page = a.landingPage() })
}

// renderBrowser and renderExplorer build the incidental OS windows.
func (a *App) renderBrowser(b *builder) *uitree.Node {
	w := b.root("browser", BrowserTitle)
	doc := b.add(w, uitree.RoleDocument, BrowserTitle, nil)
	b.text(doc, "Proton Mail Bridge support")
	w.Link()
	return w
}

func (a *App) renderExplorer(b *builder) *uitree.Node {
	w := b.root("explorer", ExplorerTitle)
	list := b.add(w, uitree.RoleList, "Items View", nil)
	b.add(list, uitree.RoleListItem, "bridge-gui.log", nil)
	b.add(list, uitree.RoleListItem, "bridge.log", nil)
	w.Link()
	return w
}

// Titles of the incidental OS windows.
const (
	BrowserTitle  = "Proton Mail Bridge | Proton Support"
	ExplorerTitle = "logs"
)
