package screen

import "github.com/devicelab-dev/bridge-ui-runner/pkg/selector"

// Accessible names of the controls the screens drive.
const (
	// navigation
	paneAccounts  = "Accounts"
	paneContent   = "Content"
	btnHelp       = "Help button"
	btnSettings   = "Settings button"
	btnAddAccount = "Add account button"
	btnBack       = "Back"
	btnOK         = "OK"
	btnCancel     = "Cancel"
	btnSave       = "Save"

	// welcome and sign-in
	btnStartSetup    = "Start setup"
	editUsername     = "Email or username"
	editPassword     = "Password"
	btnSignIn        = "Sign in"
	btnSigningIn     = "Signing in"
	txtUnlockMailbox = "Unlock your mailbox"
	editMailbox      = "Mailbox password"
	btnUnlock        = "Unlock"

	// account home
	btnSignOut       = "Sign out button"
	btnSignInAgain   = "Sign in button"
	btnRemoveAccount = "Remove account button"
	btnRemove        = "Remove"
	grpMailbox       = "Mailbox details"
	txtSignedOut     = "Signed out"
	txtConnected     = "Connected"
	syncPrefix       = "Synchronizing ("

	// settings
	txtSettings        = "Settings"
	txtAdvanced        = "Advanced settings"
	grpGeneral         = "General"
	grpAdvanced        = "Advanced"
	btnDefaultPorts    = "Default ports button"
	btnConnectionMode  = "Connection mode button"
	btnLocalCache      = "Local cache button"
	btnExportTLS       = "Export TLS certificates button"
	btnRepair          = "Repair Bridge button"
	btnReset           = "Reset Bridge button"
	btnConfirmRepair   = "Repair"
	btnConfirmReset    = "Reset and restart"
	btnEnableBeta      = "Enable"
	btnShowAllMail     = "Show All Mail folder"
	btnHideAllMail     = "Hide All Mail folder"
	txtDefaultPorts    = "Default ports"
	editIMAPPort       = "IMAP port edit"
	editSMTPPort       = "SMTP port edit"
	txtConnectionMode  = "Connection mode"
	grpIMAPMode        = "IMAP connection mode"
	grpSMTPMode        = "SMTP connection mode"
	txtLocalCache      = "Local cache"
	grpCacheLocation   = "Current cache location"
	btnCacheLocation   = "Current cache location button"
	txtCacheChanged    = "Cache location successfully changed"
	dlgCacheLocation   = "Select cache location"
	dlgExportDirectory = "Select directory"

	// folder picker
	btnUp           = "Up"
	btnNewFolder    = "New folder"
	editFolderName  = "Name"
	btnSelectFolder = "Select Folder"
	listItems       = "Items View"

	// help
	txtHelp          = "Help"
	btnHelpTopics    = "Help topics button"
	btnCheckNow      = "Check now button"
	btnLogs          = "Logs button"
	btnReportProblem = "Report problem button"
	txtUpToDate      = "Bridge is up to date"
	versionMarker    = "(br-"
	paneReportForm   = "Report form"
	paneOverview     = "Report overview"
	btnContinue      = "Continue"
	editOverview     = "Overview"
	editContactEmail = "Contact email"
	chkIncludeLogs   = "Include logs"
	btnSend          = "Send"
	txtReportSent    = "Thank you for the report"
	docSupport       = "Proton Mail Bridge"

	// update
	txtUpdateReady  = "Bridge update is ready"
	btnRestartToFix = "Restart Bridge"
)

func inContent(s selector.Selector) selector.Selector {
	return s.Inside(selector.Selector{Name: paneContent})
}

func inNav(s selector.Selector) selector.Selector {
	return s.Inside(selector.Selector{Name: paneAccounts})
}

// Messages are the texts the application renders for rejected or conflicting
// sign-ins. They are configuration so a localized or reworded build can be
// tested without code changes.
type Messages struct {
	IncorrectCredentials string `yaml:"incorrect_credentials" mapstructure:"incorrect_credentials"`
	EmptyUsername        string `yaml:"empty_username" mapstructure:"empty_username"`
	EmptyPassword        string `yaml:"empty_password" mapstructure:"empty_password"`
	AccountDisabled      string `yaml:"account_disabled" mapstructure:"account_disabled"`
	AccountDelinquent    string `yaml:"account_delinquent" mapstructure:"account_delinquent"`
	FreeAccount          string `yaml:"free_account" mapstructure:"free_account"`
	AlreadySignedIn      string `yaml:"already_signed_in" mapstructure:"already_signed_in"`
	IncorrectMailbox     string `yaml:"incorrect_mailbox" mapstructure:"incorrect_mailbox"`
}

// DefaultMessages returns the texts of the current release.
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

// Merge fills empty fields of m from def.
func (m Messages) Merge(def Messages) Messages {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return Messages{
		IncorrectCredentials: pick(m.IncorrectCredentials, def.IncorrectCredentials),
		EmptyUsername:        pick(m.EmptyUsername, def.EmptyUsername),
		EmptyPassword:        pick(m.EmptyPassword, def.EmptyPassword),
		AccountDisabled:      pick(m.AccountDisabled, def.AccountDisabled),
		AccountDelinquent:    pick(m.AccountDelinquent, def.AccountDelinquent),
		FreeAccount:          pick(m.FreeAccount, def.FreeAccount),
		AlreadySignedIn:      pick(m.AlreadySignedIn, def.AlreadySignedIn),
		IncorrectMailbox:     pick(m.IncorrectMailbox, def.IncorrectMailbox),
	}
}
