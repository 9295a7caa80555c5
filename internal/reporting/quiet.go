package reporting

import (
	"encoding/json"
	"fmt"
	"io"
)

// NewQuietReporter only prints failures and a one-line summary.
func NewQuietReporter(out io.Writer) Reporter {
	return &quietReporter{out: out}
}

type quietReporter struct {
	out io.Writer
}

func (r *quietReporter) ReportStart(string, int)                 {}
func (r *quietReporter) ReportScenarioStart(string, string, int) {}
func (r *quietReporter) ReportPhase(string, Phase)               {}
func (r *quietReporter) ReportTeardown(string, int)              {}

func (r *quietReporter) ReportScenarioResult(result ScenarioResult) {
	switch result.Result {
	case ResultFailed:
		fmt.Fprintf(r.out, "❌ %s: %s\n", result.Name, result.Error)
	case ResultError:
		fmt.Fprintf(r.out, "💥 %s: %s\n", result.Name, result.Error)
	}
}

func (r *quietReporter) ReportSuiteResult(result SuiteResult) {
	if result.Passed() {
		fmt.Fprintf(r.out, "✅ All %d scenarios passed\n", result.PassedScenarios)
		return
	}
	fmt.Fprintf(r.out, "❌ %d/%d scenarios failed\n",
		result.FailedScenarios+result.ErrorScenarios, result.TotalScenarios)
}

// NewJSONReporter prints only the suite result, as JSON.
func NewJSONReporter(out io.Writer) Reporter {
	return &jsonReporter{out: out}
}

type jsonReporter struct {
	out io.Writer
}

func (r *jsonReporter) ReportStart(string, int)                 {}
func (r *jsonReporter) ReportScenarioStart(string, string, int) {}
func (r *jsonReporter) ReportPhase(string, Phase)               {}
func (r *jsonReporter) ReportTeardown(string, int)              {}
func (r *jsonReporter) ReportScenarioResult(ScenarioResult)     {}

func (r *jsonReporter) ReportSuiteResult(result SuiteResult) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(r.out, `{"error": "Failed to marshal results: %v"}`+"\n", err)
		return
	}
	fmt.Fprintln(r.out, string(data))
}

// Format selects a reporter.
type Format string

const (
	FormatConsole Format = "console"
	FormatQuiet   Format = "quiet"
	FormatJSON    Format = "json"
)

// New returns the reporter for format.
func New(format Format, out io.Writer, verbose bool, reportDir string) (Reporter, error) {
	switch format {
	case FormatConsole, "":
		return NewConsoleReporter(out, verbose, reportDir), nil
	case FormatQuiet:
		return NewQuietReporter(out), nil
	case FormatJSON:
		return NewJSONReporter(out), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want console, quiet or json)", format)
	}
}
