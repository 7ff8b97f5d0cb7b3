package report

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
)

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Errors   int          `xml:"errors,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name      string      `xml:"name,attr"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Errors    int         `xml:"errors,attr"`
	Skipped   int         `xml:"skipped,attr"`
	Time      string      `xml:"time,attr"`
	Timestamp string      `xml:"timestamp,attr,omitempty"`
	Cases     []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitProblem `xml:"failure,omitempty"`
	Error     *junitProblem `xml:"error,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitProblem struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnit renders suite as JUnit XML, one testsuite per scenario suite in
// first-seen order.
func JUnit(suite *core.SuiteResult) ([]byte, error) {
	doc := junitSuites{
		Name: suite.Name,
		Time: seconds(suite.Duration.Seconds()),
	}
	bySuite := make(map[string]int)
	var secs []float64
	for _, res := range suite.Scenarios {
		i, ok := bySuite[res.Suite]
		if !ok {
			i = len(doc.Suites)
			bySuite[res.Suite] = i
			doc.Suites = append(doc.Suites, junitSuite{
				Name:      res.Suite,
				Timestamp: res.StartTime.Format("2006-01-02T15:04:05"),
			})
			secs = append(secs, 0)
		}
		secs[i] += res.Duration.Seconds()
		s := &doc.Suites[i]
		tc := junitCase{
			Name:      res.Name,
			Classname: res.Suite,
			Time:      seconds(res.Duration.Seconds()),
			SystemOut: logText(res),
		}
		switch res.Status {
		case core.StatusFailed:
			tc.Failure = problem(res)
			s.Failures++
		case core.StatusErrored:
			tc.Error = problem(res)
			s.Errors++
		case core.StatusSkipped:
			tc.Skipped = &junitSkipped{Message: res.Message}
			s.Skipped++
		}
		s.Tests++
		s.Cases = append(s.Cases, tc)
	}

	for i := range doc.Suites {
		s := &doc.Suites[i]
		s.Time = seconds(secs[i])
		doc.Tests += s.Tests
		doc.Failures += s.Failures
		doc.Errors += s.Errors
		doc.Skipped += s.Skipped
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal junit: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// WriteJUnit writes suite as JUnit XML to path.
func WriteJUnit(path string, suite *core.SuiteResult) error {
	data, err := JUnit(suite)
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

func seconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}

func problem(res core.ScenarioResult) *junitProblem {
	p := &junitProblem{
		Message: res.Error,
		Type:    res.Category.String(),
	}
	var b strings.Builder
	for _, phase := range [][]core.AssertionResult{res.Setup, res.Steps} {
		for _, step := range phase {
			if step.Status != core.StatusFailed && step.Status != core.StatusErrored {
				continue
			}
			fmt.Fprintf(&b, "%s: %s\n", step.Name, step.Error)
			if step.Expected != "" || step.Observed != "" {
				fmt.Fprintf(&b, "expected: %s\nobserved: %s\n", step.Expected, step.Observed)
			}
		}
	}
	p.Body = b.String()
	return p
}

func logText(res core.ScenarioResult) string {
	if len(res.Logs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, l := range res.Logs {
		fmt.Fprintf(&b, "%s [%s] %s: %s\n", l.Timestamp.Format("15:04:05.000"), strings.ToUpper(l.Level), l.Source, l.Message)
	}
	return b.String()
}
