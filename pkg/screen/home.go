package screen

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/selector"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/uitree"
)

const homeScreen = "home"

// Home drives the account home page and the account list.
type Home struct {
	r *Run
}

// Home returns the account actions.
func (r *Run) Home() *Home {
	return &Home{r: r}
}

// SelectAccount shows username's home page.
func (h *Home) SelectAccount(username string) *Home {
	h.r.step(homeScreen, "select account "+username, func() error {
		if err := h.r.click(core.WindowMain, inNav(selector.Text(username).Under(selector.Group(username)))); err != nil {
			return err
		}
		_, err := h.r.mustFind(core.WindowMain, inContent(selector.Text(username)))
		return err
	})
	return h
}

// SignOut signs the shown account out.
func (h *Home) SignOut() *Home {
	h.r.step(homeScreen, "sign out", func() error {
		if err := h.r.click(core.WindowMain, inContent(selector.Button(btnSignOut))); err != nil {
			return err
		}
		_, err := h.r.mustFind(core.WindowMain, inContent(selector.Button(btnSignInAgain)))
		return err
	})
	return h
}

// RemoveAccount removes the shown account and confirms the prompt.
func (h *Home) RemoveAccount() *Home {
	h.r.step(homeScreen, "remove account", func() error {
		return h.removeShown()
	})
	return h
}

func (h *Home) removeShown() error {
	if err := h.r.click(core.WindowMain, inContent(selector.Button(btnRemoveAccount))); err != nil {
		return err
	}
	return h.r.clickInNotification(btnRemove)
}

// RemoveAccountIfPresent removes username when it is listed. Teardown uses it
// so a scenario that never signed in leaves nothing behind to clean.
func (h *Home) RemoveAccountIfPresent(username string) *Home {
	h.r.step(homeScreen, "remove account "+username+" if present", func() error {
		if username == "" {
			return nil
		}
		listed, err := h.r.present(core.WindowMain, inNav(selector.Group(username)))
		if err != nil || !listed {
			return err
		}
		if err := h.r.click(core.WindowMain, inNav(selector.Text(username).Under(selector.Group(username)))); err != nil {
			return err
		}
		if _, err := h.r.mustFind(core.WindowMain, inContent(selector.Button(btnRemoveAccount))); err != nil {
			return err
		}
		if err := h.removeShown(); err != nil {
			return err
		}
		return h.r.awaitGone(core.WindowMain, inNav(selector.Group(username)), h.r.opts.Timeouts.Popup)
	})
	return h
}

// HomeResult asserts on the account pages.
type HomeResult struct {
	r *Run
}

// HomeResult returns the account assertions.
func (r *Run) HomeResult() *HomeResult {
	return &HomeResult{r: r}
}

// AssertSignedIn waits until username's home page shows it signed in.
func (hr *HomeResult) AssertSignedIn(username string) *HomeResult {
	hr.r.record(homeScreen, "assert signed in as "+username, func() (string, string, error) {
		return hr.r.expect("signed in", username+" signed in", hr.r.opts.Timeouts.Login, func(ctx context.Context) (string, bool, error) {
			root, err := hr.r.sess.Driver().Tree(ctx, core.WindowMain)
			if err != nil {
				return "", false, err
			}
			shown := selector.Exists(root, inContent(selector.Text(username)))
			signedIn := selector.Exists(root, inContent(selector.Button(btnSignOut)))
			switch {
			case shown && signedIn:
				return username + " signed in", true, nil
			case shown:
				return username + " signed out", false, nil
			default:
				return "home page for " + username + " not shown", false, nil
			}
		})
	})
	return hr
}

// AssertSignedOut waits until the shown account offers to sign in again.
func (hr *HomeResult) AssertSignedOut(username string) *HomeResult {
	hr.r.record(homeScreen, "assert signed out "+username, func() (string, string, error) {
		return hr.r.expect("account status", txtSignedOut, hr.r.opts.Timeouts.Find, hr.accountStatus(username))
	})
	return hr
}

// AssertAccountListed waits until username appears in the account list.
func (hr *HomeResult) AssertAccountListed(username string) *HomeResult {
	hr.r.record(homeScreen, "assert account listed "+username, func() (string, string, error) {
		_, err := hr.r.mustFind(core.WindowMain, inNav(selector.Group(username)))
		return username, "", err
	})
	return hr
}

// AssertAccountRemoved waits until username is gone from the account list.
func (hr *HomeResult) AssertAccountRemoved(username string) *HomeResult {
	hr.r.record(homeScreen, "assert account removed "+username, func() (string, string, error) {
		return "absent", "", hr.r.awaitGone(core.WindowMain, inNav(selector.Group(username)), hr.r.opts.Timeouts.Popup)
	})
	return hr
}

// AssertSyncRestarted waits for the sync status to show 0% again.
func (hr *HomeResult) AssertSyncRestarted(username string) *HomeResult {
	want := syncPrefix + "0%)"
	hr.r.record(homeScreen, "assert sync restarted", func() (string, string, error) {
		return hr.r.expect("sync status", want, hr.r.opts.Timeouts.Sync, func(ctx context.Context) (string, bool, error) {
			obs, _, err := hr.accountStatus(username)(ctx)
			return obs, obs == want, err
		})
	})
	return hr
}

// AssertSynchronized waits until the account finished syncing.
func (hr *HomeResult) AssertSynchronized(username string) *HomeResult {
	hr.r.record(homeScreen, "assert synchronized", func() (string, string, error) {
		return hr.r.expect("sync status", txtConnected, hr.r.opts.Timeouts.Sync, func(ctx context.Context) (string, bool, error) {
			obs, _, err := hr.accountStatus(username)(ctx)
			return obs, obs == txtConnected, err
		})
	})
	return hr
}

// accountStatus reads the status line listed under username.
func (hr *HomeResult) accountStatus(username string) func(ctx context.Context) (string, bool, error) {
	return func(ctx context.Context) (string, bool, error) {
		root, err := hr.r.sess.Driver().Tree(ctx, core.WindowMain)
		if err != nil {
			return "", false, err
		}
		lines := selector.FindAll(root, inNav(selector.Selector{Role: uitree.RoleText}.Under(selector.Group(username))))
		for _, n := range lines {
			if n.Name == username {
				continue
			}
			return n.Name, n.Name == txtSignedOut, nil
		}
		return "", false, selector.ErrNotFound.WithMessagef("no status listed for %s", username)
	}
}

// AssertMailPorts checks the ports shown in the mailbox details.
func (hr *HomeResult) AssertMailPorts(imap, smtp int) *HomeResult {
	want := fmt.Sprintf("IMAP port %d, SMTP port %d", imap, smtp)
	hr.r.record(homeScreen, "assert mailbox ports", func() (string, string, error) {
		return hr.r.expect("mailbox ports", want, hr.r.opts.Timeouts.Find, func(ctx context.Context) (string, bool, error) {
			root, err := hr.r.sess.Driver().Tree(ctx, core.WindowMain)
			if err != nil {
				return "", false, err
			}
			var parts []string
			for _, n := range selector.FindAll(root, inContent(selector.Selector{Role: uitree.RoleText}.Under(selector.Group(grpMailbox)))) {
				parts = append(parts, n.Name)
			}
			if len(parts) == 0 {
				return "", false, selector.ErrNotFound.WithMessage("no mailbox details")
			}
			obs := strings.Join(parts, ", ")
			return obs, obs == want, nil
		})
	})
	return hr
}

// AssertWelcome waits for the first-run page, shown when no account is set up.
func (hr *HomeResult) AssertWelcome() *HomeResult {
	hr.r.record(homeScreen, "assert welcome page", func() (string, string, error) {
		_, err := hr.r.awaitNode(core.WindowMain, inContent(selector.Button(btnStartSetup)), hr.r.opts.Timeouts.Restart)
		return btnStartSetup, "", err
	})
	return hr
}
