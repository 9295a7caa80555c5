package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title   lipgloss.Style
	passed  lipgloss.Style
	failed  lipgloss.Style
	errored lipgloss.Style
	skipped lipgloss.Style
	dim     lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true),
		passed:  r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		failed:  r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		errored: r.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
		skipped: r.NewStyle().Foreground(lipgloss.Color("244")),
		dim:     r.NewStyle().Faint(true),
	}
}

// consoleReporter writes human-readable progress.
type consoleReporter struct {
	out       io.Writer
	verbose   bool
	reportDir string
	st        styles
}

// NewConsoleReporter reports to out. With a reportDir the suite result is
// also saved there as JSON.
func NewConsoleReporter(out io.Writer, verbose bool, reportDir string) Reporter {
	return &consoleReporter{
		out:       out,
		verbose:   verbose,
		reportDir: reportDir,
		st:        newStyles(out),
	}
}

func (r *consoleReporter) ReportStart(planPath string, scenarios int) {
	fmt.Fprintf(r.out, "%s\n", r.st.title.Render("🧪 Running test plan"))
	fmt.Fprintf(r.out, "📄 Plan: %s\n", planPath)
	fmt.Fprintf(r.out, "🎯 Scenarios: %d\n\n", scenarios)
}

func (r *consoleReporter) ReportScenarioStart(name, runID string, nodes int) {
	if r.verbose {
		fmt.Fprintf(r.out, "🎯 Starting scenario: %s %s\n", name, r.st.dim.Render("("+runID+")"))
		fmt.Fprintf(r.out, "   🖥️  Nodes: %d\n", nodes)
	} else {
		fmt.Fprintf(r.out, "🎯 %s... ", name)
	}
}

func (r *consoleReporter) ReportPhase(scenario string, phase Phase) {
	if r.verbose {
		fmt.Fprintf(r.out, "   ▶ %s\n", phase)
	}
}

func (r *consoleReporter) ReportTeardown(scenario string, terminated int) {
	if r.verbose {
		fmt.Fprintf(r.out, "   🧹 Teardown: %d node(s) terminated\n", terminated)
	}
}

func (r *consoleReporter) ReportScenarioResult(result ScenarioResult) {
	symbol := r.symbol(result.Result)
	if r.verbose {
		fmt.Fprintf(r.out, "%s Scenario completed: %s (%v)\n", symbol, result.Name, result.Duration.Round(time.Millisecond))
		if result.Error != "" {
			fmt.Fprintf(r.out, "   ❌ Error during %s: %s\n", result.Phase, result.Error)
		}
		fmt.Fprintln(r.out)
		return
	}

	fmt.Fprintf(r.out, "%s (%v)\n", symbol, result.Duration.Round(time.Millisecond))
	if result.Error != "" {
		fmt.Fprintf(r.out, "   %s\n", result.Error)
	}
}

func (r *consoleReporter) ReportSuiteResult(result SuiteResult) {
	fmt.Fprintf(r.out, "\n%s\n", r.st.title.Render("🏁 Test Plan Complete"))
	fmt.Fprintf(r.out, "⏱️  Duration: %v\n", result.Duration.Round(time.Millisecond))
	fmt.Fprintf(r.out, "📊 Results:\n")
	fmt.Fprintf(r.out, "   ✅ Passed: %d\n", result.PassedScenarios)
	if result.FailedScenarios > 0 {
		fmt.Fprintf(r.out, "   ❌ Failed: %d\n", result.FailedScenarios)
	}
	if result.ErrorScenarios > 0 {
		fmt.Fprintf(r.out, "   💥 Errors: %d\n", result.ErrorScenarios)
	}
	if result.SkippedScenarios > 0 {
		fmt.Fprintf(r.out, "   ⏭️  Skipped: %d\n", result.SkippedScenarios)
	}
	fmt.Fprintf(r.out, "   📈 Total: %d\n", result.TotalScenarios)

	if result.Passed() {
		fmt.Fprintf(r.out, "\n%s\n", r.st.passed.Render("🎉 All tests passed!"))
	} else {
		fmt.Fprintf(r.out, "\n%s\n", r.st.failed.Render("💔 Some tests failed"))
	}

	if r.reportDir != "" {
		path, err := SaveReport(r.reportDir, result)
		if err != nil {
			fmt.Fprintf(r.out, "⚠️  Failed to save detailed report: %v\n", err)
		} else {
			fmt.Fprintf(r.out, "📄 Detailed report saved to: %s\n", path)
		}
	}
}

func (r *consoleReporter) symbol(result Result) string {
	switch result {
	case ResultPassed:
		return r.st.passed.Render("✅")
	case ResultFailed:
		return r.st.failed.Render("❌")
	case ResultError:
		return r.st.errored.Render("💥")
	case ResultSkipped:
		return r.st.skipped.Render("⏭️")
	default:
		return "❓"
	}
}

// SaveReport writes result as indented JSON to a timestamped file in dir and
// returns its path.
func SaveReport(dir string, result SuiteResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	name := fmt.Sprintf("noderig-report-%s.json", time.Now().Format("20060102-150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}
