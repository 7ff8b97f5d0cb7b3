package mock

import (
	"strings"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/uitree"
)

type questionKind int

const (
	freeText questionKind = iota
	singleChoice
	multiChoice
)

type question struct {
	text    string
	kind    questionKind
	options []string
}

type category struct {
	title     string
	questions []question
}

var (
	qDescription = question{text: "Please describe what happened and include any error messages."}
	qSteps       = question{text: "What were the step-by-step actions you took that led to this happening?"}
	qLast        = question{text: "When did the issue last occur? Is it repeating?"}
	qSoftware    = question{
		text:    "Are you running any of these software? Select all that apply.",
		kind:    multiChoice,
		options: []string{"VPN", "Firewall", "Antivirus", "Proxy"},
	}
)

var categories = []category{
	{
		title: "I can't find emails in my email client",
		questions: []question{
			qDescription,
			{
				text:    "Are you missing emails from the email client or not receiving new ones?",
				kind:    singleChoice,
				options: []string{"Old emails are missing", "New emails aren't arriving"},
			},
			{
				text:    "Can you find the emails in the web/mobile application?",
				kind:    singleChoice,
				options: []string{"Yes", "No"},
			},
			qSoftware,
		},
	},
	{
		title:     "I'm not able to send emails",
		questions: []question{qDescription, qSteps, qLast, qSoftware},
	},
	{
		title:     "Bridge is not starting correctly",
		questions: []question{qDescription, qSteps, qLast, qSoftware},
	},
	{
		title: "Bridge is running slow",
		questions: []question{
			qDescription,
			qSteps,
			{
				text:    "Which of these issues are you experiencing?",
				kind:    multiChoice,
				options: []string{"Emails arrive with a delay", "Bridge is using a lot of memory", "Synchronization is slow"},
			},
			qSoftware,
		},
	},
	{
		title: "Something else",
		questions: []question{
			qDescription,
			{text: "What did you want or expect to happen?"},
			qSteps,
			qLast,
		},
	},
}

type reportForm struct {
	category    int
	answers     map[string]string
	picks       map[string]map[string]bool
	contact     string
	includeLogs bool
	err         string
}

func (r *reportForm) start(idx int, contact string) {
	*r = reportForm{
		category:    idx,
		answers:     make(map[string]string),
		picks:       make(map[string]map[string]bool),
		contact:     contact,
		includeLogs: true,
	}
}

func (r *reportForm) answer(q question) string {
	switch q.kind {
	case freeText, singleChoice:
		return r.answers[q.text]
	default:
		var picked []string
		for _, opt := range q.options {
			if r.picks[q.text][opt] {
				picked = append(picked, opt)
			}
		}
		return strings.Join(picked, ", ")
	}
}

// overview composes the question and answer lines shown before sending.
func (r *reportForm) overview() string {
	var lines []string
	for _, q := range categories[r.category].questions {
		if ans := r.answer(q); ans != "" {
			lines = append(lines, q.text, ans)
		}
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderReportCategories(b *builder, c *uitree.Node) {
	b.text(c, "Report a problem")
	for i, cat := range categories {
		idx := i
		b.button(c, cat.title, func() {
			contact := ""
			if u := a.currentUser(); u != nil {
				contact = u.acct.Username
			}
			a.report.start(idx, contact)
			a.page = pageReportForm
		})
	}
	b.button(c, "Back", func() { a.page = pageHelp })
}

func (a *App) renderReportForm(b *builder, c *uitree.Node) {
	r := &a.report
	cat := categories[r.category]
	form := b.pane(c, "Report form")
	b.text(form, cat.title)
	for _, q := range cat.questions {
		q := q
		b.text(form, q.text)
		switch q.kind {
		case freeText:
			b.edit(form, q.text, r.answers[q.text], func(s string) { r.answers[q.text] = s })
		case singleChoice:
			g := b.group(form, q.text)
			for _, opt := range q.options {
				opt := opt
				b.radio(g, opt, r.answers[q.text] == opt, func() { r.answers[q.text] = opt })
			}
		case multiChoice:
			g := b.group(form, q.text)
			for _, opt := range q.options {
				opt := opt
				b.check(g, opt, r.picks[q.text][opt], func() {
					if r.picks[q.text] == nil {
						r.picks[q.text] = make(map[string]bool)
					}
					r.picks[q.text][opt] = !r.picks[q.text][opt]
				})
			}
		}
	}
	if r.err != "" {
		b.text(form, r.err)
	}
	b.button(form, "Continue", func() {
		if strings.TrimSpace(r.answers[qDescription.text]) == "" {
			r.err = "This field is required"
			return
		}
		r.err = ""
		a.page = pageReportOverview
	})
	b.button(form, "Back", func() { a.page = pageReportCategories })
}

func (a *App) renderReportOverview(b *builder, c *uitree.Node) {
	r := &a.report
	p := b.pane(c, "Report overview")
	b.text(p, "Send report")
	b.edit(p, "Overview", r.overview(), nil)
	b.edit(p, "Contact email", r.contact, func(s string) { r.contact = s })
	b.check(p, "Include logs", r.includeLogs, func() { r.includeLogs = !r.includeLogs })
	send := b.button(p, "Send", func() {
		a.showPopup(a.okPopup("Report sent", "Thank you for the report", func() {
			a.report = reportForm{}
			a.page = pageHelp
		}))
	})
	send.Enabled = strings.TrimSpace(r.contact) != ""
	b.button(p, "Back", func() { a.page = pageReportForm })
}
