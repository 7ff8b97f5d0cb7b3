package screen

import "strings"

// Answer fills one question of the problem report form: free text, or the
// options to pick for a choice question.
type Answer struct {
	Question string
	Text     string
	Choices  []string
}

func (a Answer) value() string {
	if len(a.Choices) > 0 {
		return strings.Join(a.Choices, ", ")
	}
	return a.Text
}

// ReportCase is one problem category and how to fill its form.
type ReportCase struct {
	Name     string
	Category string
	Answers  []Answer
}

// Overview is the summary the application shows before sending: each
// answered question followed by its answer, one per line.
func (c ReportCase) Overview() string {
	var lines []string
	for _, a := range c.Answers {
		lines = append(lines, a.Question, a.value())
	}
	return strings.Join(lines, "\n")
}

// Report form questions.
const (
	qWhatHappened  = "Please describe what happened and include any error messages."
	qStepByStep    = "What were the step-by-step actions you took that led to this happening?"
	qLastOccurence = "When did the issue last occur? Is it repeating?"
	qSoftware      = "Are you running any of these software? Select all that apply."
	qMissingOrNew  = "Are you missing emails from the email client or not receiving new ones?"
	qFindInWeb     = "Can you find the emails in the web/mobile application?"
	qSlowIssues    = "Which of these issues are you experiencing?"
	qExpected      = "What did you want or expect to happen?"
)

var vpnAndFirewall = Answer{Question: qSoftware, Choices: []string{"VPN", "Firewall"}}

// ReportCases are the problem reports the help scenarios send, one per category.
var ReportCases = []ReportCase{
	{
		Name:     "missing emails",
		Category: "I can't find emails in my email client",
		Answers: []Answer{
			{Question: qWhatHappened, Text: "I am missing emails in my email client."},
			{Question: qMissingOrNew, Choices: []string{"Old emails are missing"}},
			{Question: qFindInWeb, Choices: []string{"Yes"}},
			vpnAndFirewall,
		},
	},
	{
		Name:     "not able to send emails",
		Category: "I'm not able to send emails",
		Answers: []Answer{
			{Question: qWhatHappened, Text: "I am not able to send emails."},
			{Question: qStepByStep, Text: "I compose a message, I click Send and I get an error that the message cannot be sent."},
			{Question: qLastOccurence, Text: "It happened this morning for the first time."},
			vpnAndFirewall,
		},
	},
	{
		Name:     "not starting correctly",
		Category: "Bridge is not starting correctly",
		Answers: []Answer{
			{Question: qWhatHappened, Text: "Bridge is not starting correctly."},
			{Question: qStepByStep, Text: "I turned on my device, and Bridge couldn't launch, I received an error."},
			{Question: qLastOccurence, Text: "It occured today for the first time and I cannot fix it."},
			vpnAndFirewall,
		},
	},
	{
		Name:     "running slow",
		Category: "Bridge is running slow",
		Answers: []Answer{
			{Question: qWhatHappened, Text: "Bridge is really slow."},
			{Question: qStepByStep, Text: "I started Bridge, added an account and the sync takes forever."},
			{Question: qSlowIssues, Choices: []string{"Emails arrive with a delay"}},
			vpnAndFirewall,
		},
	},
	{
		Name:     "something else",
		Category: "Something else",
		Answers: []Answer{
			{Question: qWhatHappened, Text: "I don't receive emails."},
			{Question: qExpected, Text: "I am expecting an email that is sent, but it hasn't arrived in my Inbox."},
			{Question: qStepByStep, Text: "I click Get messages, but the emails that are sent to me do not arrive."},
			{Question: qLastOccurence, Text: "Issue started happening today."},
		},
	},
}
