package screen

import (
	"context"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/selector"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/version"
)

const updateScreen = "update"

// UpdateState tracks an offered update through installation.
type UpdateState int

// Update states
const (
	NoUpdateOffered UpdateState = iota
	UpdateReady
	Installing
	RestartRequired
	Restarted
)

func (s UpdateState) String() string {
	switch s {
	case UpdateReady:
		return "update ready"
	case Installing:
		return "installing"
	case RestartRequired:
		return "restart required"
	case Restarted:
		return "restarted"
	default:
		return "no update offered"
	}
}

// Update drives the in-app update: the offer notification and the restart
// that installs it.
type Update struct {
	r      *Run
	state  UpdateState
	before version.Build
	after  version.Build
}

// Update returns the update actions.
func (r *Run) Update() *Update {
	return &Update{r: r}
}

// State returns where the update stands.
func (u *Update) State() UpdateState { return u.state }

// Builds returns the versions captured before and after the update.
func (u *Update) Builds() (before, after version.Build) { return u.before, u.after }

// CaptureVersion reads the version from the open help page. Before a restart
// it records the installed build, afterwards the updated one.
func (u *Update) CaptureVersion() *Update {
	u.r.record(updateScreen, "capture version", func() (string, string, error) {
		n, err := u.r.mustFind(core.WindowMain, inContent(selector.TextContaining(versionMarker)))
		if err != nil {
			return "", "", err
		}
		b, err := version.Parse(n.Name)
		if err != nil {
			return "", n.Name, err
		}
		if u.state == Restarted {
			u.after = b
		} else {
			u.before = b
		}
		return "", b.String(), nil
	})
	return u
}

// AwaitUpdateReady waits for the update notification.
func (u *Update) AwaitUpdateReady() *Update {
	u.r.step(updateScreen, "await update notification", func() error {
		if _, err := u.r.awaitNode(core.WindowNotification, selector.Text(txtUpdateReady), u.r.opts.Timeouts.Restart); err != nil {
			return err
		}
		u.state = UpdateReady
		return nil
	})
	return u
}

// RestartToInstall accepts the update and brings the updated build up.
func (u *Update) RestartToInstall() *Update {
	return u.Accept().Relaunch()
}

// Accept confirms the offer and waits for the application to exit so the
// update can install. The application stays down until Relaunch.
func (u *Update) Accept() *Update {
	u.r.step(updateScreen, "accept update", func() error {
		if u.state != UpdateReady {
			return core.ErrPreconditionViolation.WithMessagef("cannot install: %s", u.state)
		}
		if err := u.r.clickInNotification(btnRestartToFix); err != nil {
			return err
		}
		u.state = Installing
		if err := u.r.awaitExit(); err != nil {
			return err
		}
		u.state = RestartRequired
		return nil
	})
	return u
}

// Relaunch starts the installed build.
func (u *Update) Relaunch() *Update {
	u.r.step(updateScreen, "relaunch updated build", func() error {
		if u.state != RestartRequired {
			return core.ErrPreconditionViolation.WithMessagef("cannot relaunch: %s", u.state)
		}
		if err := u.r.sess.LaunchOrAttach(u.r.ctx); err != nil {
			return err
		}
		u.state = Restarted
		return nil
	})
	return u
}

// UpdateResult asserts on the update.
type UpdateResult struct {
	u *Update
}

// Result returns the assertions for this update.
func (u *Update) Result() *UpdateResult {
	return &UpdateResult{u: u}
}

// AssertState checks where the update stands.
func (ur *UpdateResult) AssertState(s UpdateState) *UpdateResult {
	u := ur.u
	u.r.record(updateScreen, "assert update "+s.String(), func() (string, string, error) {
		return u.r.check("update state", s.String(), func(context.Context) (string, bool, error) {
			return u.state.String(), u.state == s, nil
		})
	})
	return ur
}

// AssertUpgraded checks the build after the restart is newer, with a
// different tag, than the build before it.
func (ur *UpdateResult) AssertUpgraded() *UpdateResult {
	u := ur.u
	u.r.record(updateScreen, "assert version upgraded", func() (string, string, error) {
		return "newer than " + u.before.String(), u.after.String(), version.CheckUpgrade(u.before, u.after)
	})
	return ur
}
