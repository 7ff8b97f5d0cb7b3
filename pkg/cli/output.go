package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/devicelab-dev/bridge-ui-runner/pkg/core"
)

const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold in milliseconds (5 seconds)
const slowThresholdMs = 5000

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// progress prints live results. Workers finish scenarios concurrently, so
// each scenario is printed as one block under the lock.
type progress struct {
	mu sync.Mutex
	w  io.Writer
}

func newProgress(w io.Writer) *progress {
	if w == nil {
		w = os.Stdout
	}
	return &progress{w: w}
}

func (p *progress) banner(driver string, scenarios, workers int) {
	fmt.Fprintln(p.w)
	fmt.Fprintf(p.w, "  %sbridge-ui-runner %s%s  driver=%s scenarios=%d workers=%d\n",
		color(colorBold), Version, color(colorReset), driver, scenarios, workers)
}

func (p *progress) scenarioEnd(idx, total int, res core.ScenarioResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "\n  %s[%d/%d]%s %s%s%s (%s)\n",
		color(colorCyan), idx+1, total, color(colorReset),
		color(colorBold), res.Name, color(colorReset), res.Suite)
	fmt.Fprintln(p.w, strings.Repeat("─", 60))

	for _, phase := range [][]core.AssertionResult{res.Setup, res.Steps, res.Teardown} {
		for _, st := range phase {
			p.step(st)
		}
	}

	durMs := res.Duration.Milliseconds()
	switch {
	case res.Status == core.StatusSkipped:
		fmt.Fprintf(p.w, "%s- %s%s %s%s%s\n",
			color(colorCyan), color(colorReset), res.Name, color(colorGray), res.Message, color(colorReset))
	case res.Status.IsSuccess():
		fmt.Fprintf(p.w, "%s✓ %s%s %s%s%s\n",
			color(colorGreen), color(colorReset), res.Name, color(colorGray), formatDuration(durMs), color(colorReset))
	default:
		fmt.Fprintf(p.w, "%s✗ %s%s %s%s%s\n",
			color(colorRed), color(colorReset), res.Name, color(colorGray), formatDuration(durMs), color(colorReset))
	}
}

func (p *progress) step(st core.AssertionResult) {
	durMs := st.Duration.Milliseconds()
	durStr := formatDuration(durMs)

	switch st.Status {
	case core.StatusPassed:
		symbol, symbolColor, durColor := "✓", color(colorGreen), ""
		if durMs >= slowThresholdMs {
			symbol, symbolColor, durColor = "⚠", color(colorYellow), color(colorYellow)
		}
		fmt.Fprintf(p.w, "    %s%s%s %s %s(%s)%s\n",
			symbolColor, symbol, color(colorReset), st.Name, durColor, durStr, color(colorReset))
	case core.StatusWarned:
		fmt.Fprintf(p.w, "    %s⚠%s %s (%s)\n", color(colorYellow), color(colorReset), st.Name, durStr)
		if st.Error != "" {
			fmt.Fprintf(p.w, "      %s╰─%s %s\n", color(colorGray), color(colorReset), st.Error)
		}
	case core.StatusSkipped:
		fmt.Fprintf(p.w, "    %s-%s %s\n", color(colorCyan), color(colorReset), st.Name)
	default:
		fmt.Fprintf(p.w, "    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), st.Name, durStr)
		if st.Error != "" {
			fmt.Fprintf(p.w, "      %s╰─%s %s\n", color(colorGray), color(colorReset), st.Error)
		}
		if st.Expected != "" || st.Observed != "" {
			fmt.Fprintf(p.w, "      %s   expected %q, observed %q%s\n", color(colorGray), st.Expected, st.Observed, color(colorReset))
		}
	}
}

func (p *progress) summary(suite *core.SuiteResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.w

	var totalSteps, passedSteps, failedSteps, skippedSteps int
	for _, sc := range suite.Scenarios {
		totalSteps += sc.TotalSteps
		passedSteps += sc.PassedSteps
		failedSteps += sc.FailedSteps
		skippedSteps += sc.SkippedSteps
	}
	durMs := suite.Duration.Milliseconds()

	fmt.Fprintln(w)
	if passedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps passing%s (%s)\n", color(colorGreen), passedSteps, color(colorReset), formatDuration(durMs))
	}
	if failedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps failing%s\n", color(colorRed), failedSteps, color(colorReset))
	}
	if skippedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps skipped%s\n", color(colorCyan), skippedSteps, color(colorReset))
	}
	fmt.Fprintln(w)

	tableWidth := 92
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(w, "  %-42s %6s %7s %6s %6s %6s %10s\n", "Scenario", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	for _, sc := range suite.Scenarios {
		var status, statusColor string
		switch {
		case sc.Status == core.StatusSkipped:
			status, statusColor = "- SKIP", color(colorCyan)
		case sc.Status == core.StatusWarned:
			status, statusColor = "⚠ WARN", color(colorYellow)
		case sc.Status.IsSuccess():
			status, statusColor = "✓ PASS", color(colorGreen)
		default:
			status, statusColor = "✗ FAIL", color(colorRed)
		}

		// Truncate name if too long
		name := sc.Name
		if len(name) > 42 {
			name = name[:39] + "..."
		}

		fmt.Fprintf(w, "  %-42s %s%6s%s %7d %6d %6d %6d %10s\n",
			name, statusColor, status, color(colorReset),
			sc.TotalSteps, sc.PassedSteps, sc.FailedSteps, sc.SkippedSteps,
			formatDuration(sc.Duration.Milliseconds()))
	}

	fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", suite.PassedScenarios, suite.TotalScenarios)
	statusColor := color(colorGreen)
	if suite.FailedScenarios > 0 {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(w, "  %s%-42s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		totalSteps, passedSteps, failedSteps, skippedSteps,
		formatDuration(durMs))
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
