package screen

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/credentials"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/selector"
	"github.com/devicelab-dev/bridge-ui-runner/pkg/uitree"
)

// LoginState is where a sign-in attempt stands.
type LoginState int

// Sign-in states
const (
	NotStarted LoginState = iota
	CredentialsEntered
	Authenticating
	SignedIn
	MailboxPasswordRequired
	AlreadySignedInConflict
	Rejected
)

func (s LoginState) String() string {
	switch s {
	case CredentialsEntered:
		return "credentials entered"
	case Authenticating:
		return "authenticating"
	case SignedIn:
		return "signed in"
	case MailboxPasswordRequired:
		return "mailbox password required"
	case AlreadySignedInConflict:
		return "already signed in"
	case Rejected:
		return "rejected"
	default:
		return "not started"
	}
}

// settled reports whether the application has answered the attempt.
func (s LoginState) settled() bool {
	switch s {
	case SignedIn, MailboxPasswordRequired, AlreadySignedInConflict, Rejected:
		return true
	}
	return false
}

// RejectReason says why a sign-in was refused.
type RejectReason int

// Rejection reasons
const (
	NoReason RejectReason = iota
	IncorrectCredentials
	EmptyFields
	AccountDisabled
	AccountDelinquent
	FreeAccountNotEligible
	IncorrectMailboxPassword
)

func (r RejectReason) String() string {
	switch r {
	case IncorrectCredentials:
		return "incorrect credentials"
	case EmptyFields:
		return "empty fields"
	case AccountDisabled:
		return "account disabled"
	case AccountDelinquent:
		return "account delinquent"
	case FreeAccountNotEligible:
		return "free account not eligible"
	case IncorrectMailboxPassword:
		return "incorrect mailbox password"
	default:
		return "none"
	}
}

// messagesFor lists the texts that signal reason.
func (m Messages) messagesFor(reason RejectReason) []string {
	switch reason {
	case IncorrectCredentials:
		return []string{m.IncorrectCredentials}
	case EmptyFields:
		return []string{m.EmptyUsername, m.EmptyPassword}
	case AccountDisabled:
		return []string{m.AccountDisabled}
	case AccountDelinquent:
		return []string{m.AccountDelinquent}
	case FreeAccountNotEligible:
		return []string{m.FreeAccount}
	case IncorrectMailboxPassword:
		return []string{m.IncorrectMailbox}
	}
	return nil
}

var rejectReasons = []RejectReason{
	IncorrectCredentials, EmptyFields, AccountDisabled, AccountDelinquent,
	FreeAccountNotEligible, IncorrectMailboxPassword,
}

// observation is one classified look at the sign-in flow.
type observation struct {
	state   LoginState
	reason  RejectReason
	message string
}

func (o observation) String() string {
	if o.state == Rejected {
		return fmt.Sprintf("%s (%s: %q)", o.state, o.reason, o.message)
	}
	return o.state.String()
}

// Login drives the sign-in form.
type Login struct {
	r        *Run
	state    LoginState
	reason   RejectReason
	message  string
	observed []LoginState
}

const loginScreen = "login"

// Login returns the sign-in actions.
func (r *Run) Login() *Login {
	return &Login{r: r}
}

// State returns the last observed state.
func (l *Login) State() LoginState { return l.state }

// Reason returns the rejection reason when State is Rejected.
func (l *Login) Reason() RejectReason { return l.reason }

// Open reaches the sign-in form from the welcome page, the account home page,
// or a signed-out account. It is a no-op when the form is already showing.
func (l *Login) Open() *Login {
	l.r.step(loginScreen, "open sign-in form", func() error {
		root, err := l.r.mainTree()
		if err != nil {
			return err
		}
		for _, entry := range []selector.Selector{
			inContent(selector.Edit(editUsername)),
			inContent(selector.Button(btnStartSetup)),
			inContent(selector.Button(btnSignInAgain)),
			inNav(selector.Button(btnAddAccount)),
		} {
			if !selector.Exists(root, entry) {
				continue
			}
			if entry.Role != uitree.RoleEdit {
				if err := l.r.click(core.WindowMain, entry); err != nil {
					return err
				}
			}
			_, err := l.r.mustFind(core.WindowMain, inContent(selector.Edit(editUsername)))
			l.state = NotStarted
			return err
		}
		return core.ErrPreconditionViolation.WithMessage("no route to the sign-in form from the current page")
	})
	return l
}

// EnterCredentials types the username and password. Empty fields are typed
// as empty so the form can reject them.
func (l *Login) EnterCredentials(c credentials.Credential) *Login {
	l.r.step(loginScreen, "enter credentials for "+c.String(), func() error {
		if err := l.r.setText(core.WindowMain, inContent(selector.Edit(editUsername)), c.Username); err != nil {
			return err
		}
		if err := l.r.setText(core.WindowMain, inContent(selector.Edit(editPassword)), c.Password); err != nil {
			return err
		}
		l.state = CredentialsEntered
		return nil
	})
	return l
}

// Submit presses the sign-in button.
func (l *Login) Submit() *Login {
	l.r.step(loginScreen, "submit credentials", func() error {
		if l.state != CredentialsEntered {
			return core.ErrPreconditionViolation.WithMessagef("cannot submit: sign-in is %s", l.state)
		}
		if err := l.r.click(core.WindowMain, inContent(selector.Button(btnSignIn))); err != nil {
			return err
		}
		l.state = Authenticating
		l.observed = nil
		// Sample right after the click; a short server round trip may
		// settle before the first poll of AwaitOutcome.
		if o, err := l.observe(l.r.ctx); err == nil && (o.state == Authenticating || o.state.settled()) {
			l.note(o)
		}
		return nil
	})
	return l
}

// AwaitOutcome waits until the application answers the attempt: signed in,
// asking for the mailbox password, reporting a conflict, or rejecting it.
func (l *Login) AwaitOutcome() *Login {
	l.r.record(loginScreen, "await sign-in outcome", func() (string, string, error) {
		exp, obs, err := l.r.expect("sign-in outcome", "a settled sign-in", l.r.opts.Timeouts.Login,
			func(ctx context.Context) (string, bool, error) {
				o, err := l.observe(ctx)
				if err != nil {
					return "", false, err
				}
				l.note(o)
				// The form keeps showing the previous error until the
				// signing-in affordance is gone.
				return o.String(), o.state.settled(), nil
			})
		return exp, obs, err
	})
	return l
}

// UnlockMailbox types the mailbox password and submits it.
func (l *Login) UnlockMailbox(password string) *Login {
	l.r.step(loginScreen, "unlock mailbox", func() error {
		if l.state != MailboxPasswordRequired {
			return core.ErrPreconditionViolation.WithMessagef("cannot unlock mailbox: sign-in is %s", l.state)
		}
		if err := l.r.setText(core.WindowMain, inContent(selector.Edit(editMailbox)), password); err != nil {
			return err
		}
		if err := l.r.click(core.WindowMain, inContent(selector.Button(btnUnlock))); err != nil {
			return err
		}
		l.state = Authenticating
		return nil
	})
	return l
}

// AcknowledgeConflict dismisses the already-signed-in notification, which
// returns the application to the page the attempt started from.
func (l *Login) AcknowledgeConflict() *Login {
	l.r.step(loginScreen, "acknowledge sign-in conflict", func() error {
		if l.state != AlreadySignedInConflict {
			return core.ErrPreconditionViolation.WithMessagef("no conflict to acknowledge: sign-in is %s", l.state)
		}
		if err := l.r.clickInNotification(btnOK); err != nil {
			return err
		}
		if err := l.r.awaitGone(core.WindowNotification, selector.Text(l.r.opts.Messages.AlreadySignedIn), l.r.opts.Timeouts.Popup); err != nil {
			return err
		}
		l.state = SignedIn
		return nil
	})
	return l
}

// Cancel leaves the sign-in form.
func (l *Login) Cancel() *Login {
	l.r.step(loginScreen, "cancel sign-in", func() error {
		if err := l.r.click(core.WindowMain, inContent(selector.Button(btnCancel))); err != nil {
			return err
		}
		l.state = NotStarted
		return l.r.awaitGone(core.WindowMain, inContent(selector.Edit(editUsername)), l.r.opts.Timeouts.Find)
	})
	return l
}

// SignIn runs the whole flow for c and requires it to end signed in,
// unlocking the mailbox for two-password accounts.
func (l *Login) SignIn(c credentials.Credential) *Login {
	l.Open().EnterCredentials(c).Submit().AwaitOutcome()
	if l.state == MailboxPasswordRequired && c.MailboxPassword != "" {
		l.UnlockMailbox(c.MailboxPassword).AwaitOutcome()
	}
	l.r.record(loginScreen, "require signed in as "+c.String(), func() (string, string, error) {
		return l.r.check("sign-in", SignedIn.String(), func(context.Context) (string, bool, error) {
			o := observation{state: l.state, reason: l.reason, message: l.message}
			return o.String(), l.state == SignedIn, nil
		})
	})
	return l
}

func (l *Login) note(o observation) {
	l.state, l.reason, l.message = o.state, o.reason, o.message
	if n := len(l.observed); n == 0 || l.observed[n-1] != o.state {
		l.observed = append(l.observed, o.state)
	}
}

// observe classifies the current page. The conflict notice may render as a
// separate window, so the notification window is consulted when the main
// window shows nothing conclusive.
func (l *Login) observe(ctx context.Context) (observation, error) {
	root, err := l.r.sess.Driver().Tree(ctx, core.WindowMain)
	if err != nil {
		return observation{}, err
	}
	o := l.classify(root)
	if o.state.settled() || o.state == Authenticating {
		return o, nil
	}
	if notif, err := l.r.sess.Driver().Tree(ctx, core.WindowNotification); err == nil {
		if selector.Exists(notif, selector.Text(l.r.opts.Messages.AlreadySignedIn)) {
			return observation{state: AlreadySignedInConflict, message: l.r.opts.Messages.AlreadySignedIn}, nil
		}
	}
	return o, nil
}

func (l *Login) classify(root *uitree.Node) observation {
	m := l.r.opts.Messages
	switch {
	case selector.Exists(root, selector.Text(m.AlreadySignedIn)):
		return observation{state: AlreadySignedInConflict, message: m.AlreadySignedIn}
	case selector.Exists(root, inContent(selector.Button(btnSigningIn))):
		return observation{state: Authenticating}
	case selector.Exists(root, inContent(selector.Button(btnSignOut))):
		return observation{state: SignedIn}
	}
	for _, reason := range rejectReasons {
		for _, msg := range m.messagesFor(reason) {
			if msg != "" && selector.Exists(root, inContent(selector.Text(msg))) {
				return observation{state: Rejected, reason: reason, message: msg}
			}
		}
	}
	if selector.Exists(root, inContent(selector.Text(txtUnlockMailbox))) {
		return observation{state: MailboxPasswordRequired}
	}
	if user, err := selector.Find(root, inContent(selector.Edit(editUsername))); err == nil {
		if strings.TrimSpace(user.Value) != "" {
			return observation{state: CredentialsEntered}
		}
	}
	return observation{state: NotStarted}
}

// mainTree waits for a snapshot of the main window with its content pane.
func (r *Run) mainTree() (*uitree.Node, error) {
	n, err := r.mustFind(core.WindowMain, selector.Selector{Name: paneContent})
	if err != nil {
		return nil, err
	}
	for n.Parent != nil {
		n = n.Parent
	}
	return n, nil
}

// LoginResult asserts on the outcome of a sign-in attempt.
type LoginResult struct {
	l *Login
}

// Result returns the assertions for this attempt.
func (l *Login) Result() *LoginResult {
	return &LoginResult{l: l}
}

// AssertState waits until the flow shows s.
func (lr *LoginResult) AssertState(s LoginState) *LoginResult {
	l := lr.l
	l.r.record(loginScreen, "assert sign-in "+s.String(), func() (string, string, error) {
		return l.r.expect("sign-in state", s.String(), l.r.opts.Timeouts.Find, func(ctx context.Context) (string, bool, error) {
			o, err := l.observe(ctx)
			if err != nil {
				return "", false, err
			}
			l.note(o)
			return o.String(), o.state == s, nil
		})
	})
	return lr
}

// AssertRejected waits until the form shows the exact message for reason.
func (lr *LoginResult) AssertRejected(reason RejectReason) *LoginResult {
	l := lr.l
	want := strings.Join(l.r.opts.Messages.messagesFor(reason), " or ")
	l.r.record(loginScreen, "assert rejected: "+reason.String(), func() (string, string, error) {
		return l.r.expect("rejection", fmt.Sprintf("%s (%s: %q)", Rejected, reason, want), l.r.opts.Timeouts.Find,
			func(ctx context.Context) (string, bool, error) {
				o, err := l.observe(ctx)
				if err != nil {
					return "", false, err
				}
				l.note(o)
				return o.String(), o.state == Rejected && o.reason == reason, nil
			})
	})
	return lr
}

// AssertMessageContains waits for a text on the sign-in form containing sub.
func (lr *LoginResult) AssertMessageContains(sub string) *LoginResult {
	l := lr.l
	l.r.record(loginScreen, fmt.Sprintf("assert message contains %q", sub), func() (string, string, error) {
		_, err := l.r.mustFind(core.WindowMain, inContent(selector.TextContaining(sub)))
		return sub, "", err
	})
	return lr
}

// AssertConflict waits for the already-signed-in notification.
func (lr *LoginResult) AssertConflict() *LoginResult {
	return lr.AssertState(AlreadySignedInConflict)
}

// AssertMailboxPasswordRequired waits for the mailbox unlock step.
func (lr *LoginResult) AssertMailboxPasswordRequired() *LoginResult {
	return lr.AssertState(MailboxPasswordRequired)
}

// AssertNeverAuthenticated checks the form rejected the attempt without
// contacting the server. It sees the states sampled by Submit and the
// AwaitOutcome polls, so a signing-in phase shorter than one poll interval
// that also falls after the Submit sample goes unnoticed.
func (lr *LoginResult) AssertNeverAuthenticated() *LoginResult {
	l := lr.l
	l.r.record(loginScreen, "assert attempt never authenticated", func() (string, string, error) {
		return l.r.check("client-side rejection", "no "+Authenticating.String()+" state", func(context.Context) (string, bool, error) {
			seen := make([]string, len(l.observed))
			for i, s := range l.observed {
				seen[i] = s.String()
			}
			for _, s := range l.observed {
				if s == Authenticating {
					return strings.Join(seen, " -> "), false, nil
				}
			}
			return strings.Join(seen, " -> "), true, nil
		})
	})
	return lr
}
