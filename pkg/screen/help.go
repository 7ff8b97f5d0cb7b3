package screen

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/selector"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/uitree"
)

const helpScreen = "help"

// Help drives the help page, the problem report wizard, and the windows the
// help page opens.
type Help struct {
	r *Run
}

// Help returns the help actions.
func (r *Run) Help() *Help {
	return &Help{r: r}
}

// Open shows the help page.
func (h *Help) Open() *Help {
	h.r.step(helpScreen, "open help", func() error {
		if err := h.r.click(core.WindowMain, inNav(selector.Button(btnHelp))); err != nil {
			return err
		}
		_, err := h.r.mustFind(core.WindowMain, inContent(selector.Text(txtHelp)))
		return err
	})
	return h
}

// Back leaves the help page.
func (h *Help) Back() *Help {
	h.r.step(helpScreen, "leave help", func() error {
		if err := h.r.click(core.WindowMain, inContent(selector.Button(btnBack))); err != nil {
			return err
		}
		return h.r.awaitGone(core.WindowMain, inContent(selector.Text(txtHelp)), h.r.opts.Timeouts.Find)
	})
	return h
}

// OpenHelpTopics opens the online help and focuses the browser.
func (h *Help) OpenHelpTopics() *Help {
	h.r.step(helpScreen, "open help topics", func() error {
		if err := h.r.click(core.WindowMain, inContent(selector.Button(btnHelpTopics))); err != nil {
			return err
		}
		return h.r.sess.Focus(h.r.ctx, core.WindowBrowser)
	})
	return h
}

// CloseBrowser closes the help browser window and returns to the application.
func (h *Help) CloseBrowser() *Help {
	h.r.step(helpScreen, "close help browser", func() error {
		return h.closeWindow(core.WindowBrowser)
	})
	return h
}

// OpenLogs opens the log folder and focuses the file explorer.
func (h *Help) OpenLogs() *Help {
	h.r.step(helpScreen, "open logs", func() error {
		if err := h.r.click(core.WindowMain, inContent(selector.Button(btnLogs))); err != nil {
			return err
		}
		return h.r.sess.Focus(h.r.ctx, core.WindowFileExplorer)
	})
	return h
}

// CloseLogs closes the file explorer and returns to the application.
func (h *Help) CloseLogs() *Help {
	h.r.step(helpScreen, "close logs", func() error {
		return h.closeWindow(core.WindowFileExplorer)
	})
	return h
}

func (h *Help) closeWindow(kind core.WindowKind) error {
	if err := h.r.sess.Focus(h.r.ctx, kind); err != nil {
		return err
	}
	if err := h.r.press(core.KeyAltF4); err != nil {
		return err
	}
	return h.r.sess.Focus(h.r.ctx, core.WindowMain)
}

// CheckForUpdates presses Check now.
func (h *Help) CheckForUpdates() *Help {
	h.r.step(helpScreen, "check for updates", func() error {
		return h.r.click(core.WindowMain, inContent(selector.Button(btnCheckNow)))
	})
	return h
}

// ConfirmNotification presses OK on the current notification.
func (h *Help) ConfirmNotification() *Help {
	h.r.step(helpScreen, "confirm notification", func() error {
		if err := h.r.clickInNotification(btnOK); err != nil {
			return err
		}
		return h.r.awaitGone(core.WindowNotification, selector.Button(btnOK), h.r.opts.Timeouts.Popup)
	})
	return h
}

// ReportProblem opens the report wizard for c, fills the form, and
// continues to the overview.
func (h *Help) ReportProblem(c ReportCase) *Help {
	h.r.step(helpScreen, "report problem: "+c.Name, func() error {
		if err := h.r.click(core.WindowMain, inContent(selector.Button(btnReportProblem))); err != nil {
			return err
		}
		if err := h.r.click(core.WindowMain, inContent(selector.Button(c.Category))); err != nil {
			return err
		}
		if _, err := h.r.mustFind(core.WindowMain, inForm(selector.Text(c.Category))); err != nil {
			return err
		}
		for _, a := range c.Answers {
			if err := h.answer(a); err != nil {
				return fmt.Errorf("answer %q: %w", a.Question, err)
			}
		}
		if err := h.r.click(core.WindowMain, inForm(selector.Button(btnContinue))); err != nil {
			return err
		}
		_, err := h.r.mustFind(core.WindowMain, inOverview(selector.Edit(editOverview)))
		return err
	})
	return h
}

func inForm(s selector.Selector) selector.Selector {
	return s.Inside(selector.Selector{Role: uitree.RolePane, Name: paneReportForm})
}

func inOverview(s selector.Selector) selector.Selector {
	return s.Inside(selector.Selector{Role: uitree.RolePane, Name: paneOverview})
}

func (h *Help) answer(a Answer) error {
	if len(a.Choices) == 0 {
		return h.r.setText(core.WindowMain, inForm(selector.Edit(a.Question)), a.Text)
	}
	for _, choice := range a.Choices {
		sel := inForm(selector.Named(choice).Under(selector.Group(a.Question)))
		n, err := h.r.mustFind(core.WindowMain, sel)
		if err != nil {
			return err
		}
		switch {
		case n.Role == uitree.RoleCheckBox && n.Checked:
		case n.Role == uitree.RoleCheckBox:
			err = h.r.toggle(core.WindowMain, sel)
		default:
			err = h.r.click(core.WindowMain, sel)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// SendReport sends the report from the overview.
func (h *Help) SendReport() *Help {
	h.r.step(helpScreen, "send report", func() error {
		return h.r.click(core.WindowMain, inOverview(selector.Button(btnSend)))
	})
	return h
}

// HelpResult asserts on the help page and what it opens.
type HelpResult struct {
	r *Run
}

// HelpResult returns the help assertions.
func (r *Run) HelpResult() *HelpResult {
	return &HelpResult{r: r}
}

// AssertHelpTopicsShown checks the browser shows the support site.
func (hr *HelpResult) AssertHelpTopicsShown() *HelpResult {
	hr.r.record(helpScreen, "assert help topics shown", func() (string, string, error) {
		sel := selector.Selector{Role: uitree.RoleDocument, NameContains: docSupport}
		_, err := hr.r.awaitNode(core.WindowBrowser, sel, hr.r.opts.Timeouts.Popup)
		return sel.String(), "", err
	})
	return hr
}

// AssertLogsShown checks the file explorer lists log files.
func (hr *HelpResult) AssertLogsShown() *HelpResult {
	hr.r.record(helpScreen, "assert logs shown", func() (string, string, error) {
		sel := selector.Selector{Role: uitree.RoleListItem, NameSuffix: ".log"}
		_, err := hr.r.awaitNode(core.WindowFileExplorer, sel, hr.r.opts.Timeouts.Popup)
		return sel.String(), "", err
	})
	return hr
}

// AssertUpToDate waits for the up-to-date notification.
func (hr *HelpResult) AssertUpToDate() *HelpResult {
	hr.r.record(helpScreen, "assert up to date", func() (string, string, error) {
		_, err := hr.r.awaitNode(core.WindowNotification, selector.Text(txtUpToDate), hr.r.opts.Timeouts.Popup)
		return txtUpToDate, "", err
	})
	return hr
}

// AssertOverview checks the report overview contains every answer of c.
func (hr *HelpResult) AssertOverview(c ReportCase) *HelpResult {
	want := c.Overview()
	hr.r.record(helpScreen, "assert report overview: "+c.Name, func() (string, string, error) {
		n, err := hr.r.mustFind(core.WindowMain, inOverview(selector.Edit(editOverview)))
		if err != nil {
			return want, "", err
		}
		return hr.r.check("report overview", want, func(context.Context) (string, bool, error) {
			return n.Value, containsText(n.Value, want), nil
		})
	})
	return hr
}

// AssertContactEmail checks the overview prefills the contact address.
func (hr *HelpResult) AssertContactEmail(email string) *HelpResult {
	hr.r.record(helpScreen, "assert contact email", func() (string, string, error) {
		n, err := hr.r.mustFind(core.WindowMain, inOverview(selector.Edit(editContactEmail)))
		if err != nil {
			return email, "", err
		}
		return hr.r.check("contact email", email, func(context.Context) (string, bool, error) {
			return n.Value, n.Value == email, nil
		})
	})
	return hr
}

// AssertIncludeLogs checks the include-logs box on the overview.
func (hr *HelpResult) AssertIncludeLogs(on bool) *HelpResult {
	hr.r.record(helpScreen, "assert include logs "+onOff(on), func() (string, string, error) {
		n, err := hr.r.mustFind(core.WindowMain, inOverview(selector.CheckBox(chkIncludeLogs)))
		if err != nil {
			return onOff(on), "", err
		}
		return hr.r.check("include logs", onOff(on), func(context.Context) (string, bool, error) {
			return onOff(n.Checked), n.Checked == on, nil
		})
	})
	return hr
}

// AssertReportSent waits for the report confirmation.
func (hr *HelpResult) AssertReportSent() *HelpResult {
	hr.r.record(helpScreen, "assert report sent", func() (string, string, error) {
		_, err := hr.r.awaitNode(core.WindowNotification, selector.Text(txtReportSent), hr.r.opts.Timeouts.Popup)
		return txtReportSent, "", err
	})
	return hr
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// containsText matches sub with line endings normalized; multi-line edits
// on Windows report CRLF.
func containsText(s, sub string) bool {
	return strings.Contains(lineEndings.Replace(s), sub)
}
