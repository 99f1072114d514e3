package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rlch/qjunit/junit"
)

// Formatter renders events and the final result to the console.
type Formatter interface {
	Format(event Event, result *Result) error
	Summary(result *Result) error
}

// FormatHandler is a Handler that delegates to a Formatter.
type FormatHandler struct {
	formatter Formatter
	stderr    io.Writer
}

// NewFormatHandler creates a handler that formats events.
func NewFormatHandler(f Formatter, stderr io.Writer) *FormatHandler {
	return &FormatHandler{formatter: f, stderr: stderr}
}

// Event formats the event.
func (h *FormatHandler) Event(_ context.Context, event Event, result *Result) error {
	return h.formatter.Format(event, result)
}

// Err writes to stderr.
func (h *FormatHandler) Err(text string) error {
	_, err := h.stderr.Write([]byte(text + "\n"))

	return err
}

// Summary renders the final summary.
func (h *FormatHandler) Summary(result *Result) error {
	return h.formatter.Summary(result)
}

// testState tracks the running test for formatters.
type testState struct {
	module  string
	errored bool
}

func (s *testState) observe(event Event) {
	switch e := event.(type) {
	case Spawn:
		s.module = ""
	case ModuleStart:
		s.module = e.Name
	case ModuleDone:
		s.module = ""
	case TestStart:
		s.errored = false
	case Log:
		if !e.Passed && junit.Classify(e.Message).Kind == junit.KindError {
			s.errored = true
		}
	case Begin, TestDone, Done, Timeout:
	}
}

func (s *testState) path(test string) string {
	if s.module == "" {
		return test
	}

	return s.module + ": " + test
}

// statusStyles colours the summary status for the writer's terminal.
type statusStyles struct {
	pass lipgloss.Style
	fail lipgloss.Style
	dim  lipgloss.Style
}

func newStatusStyles(w io.Writer) statusStyles {
	r := lipgloss.NewRenderer(w)

	return statusStyles{
		pass: r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		fail: r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		dim:  r.NewStyle().Faint(true),
	}
}

func (s statusStyles) status(result *Result) string {
	if result.Ok() {
		return s.pass.Render("PASS")
	}

	return s.fail.Render("FAIL")
}

// -----------------------------------------------------------------------------
// Dots Formatter
// -----------------------------------------------------------------------------

// DotsFormatter is a minimal formatter that prints dots for progress.
type DotsFormatter struct {
	w      io.Writer
	count  int
	state  testState
	styles statusStyles
}

// NewDotsFormatter creates a dots formatter.
func NewDotsFormatter(w io.Writer) *DotsFormatter {
	return &DotsFormatter{w: w, styles: newStatusStyles(w)}
}

const lineWidth = 80

// Format prints a single character per completed test or timeout.
func (d *DotsFormatter) Format(event Event, _ *Result) error {
	d.state.observe(event)

	var char string

	switch e := event.(type) {
	case TestDone:
		switch {
		case d.state.errored:
			char = "E"
		case e.Failed > 0:
			char = "F"
		default:
			char = "."
		}
	case Timeout:
		char = "T"
	default:
		return nil
	}

	_, err := fmt.Fprint(d.w, char)
	d.count++

	if d.count%lineWidth == 0 {
		_, _ = fmt.Fprintln(d.w)
	}

	return err
}

// Summary prints the final results.
func (d *DotsFormatter) Summary(result *Result) error {
	if d.count > 0 && d.count%lineWidth != 0 {
		_, _ = fmt.Fprintln(d.w)
	}

	_, _ = fmt.Fprintln(d.w)

	for _, tr := range result.FailedTests() {
		label := "FAIL"
		if tr.Errored() {
			label = "ERROR"
		}

		_, _ = fmt.Fprintf(d.w, "%s %s (%s)\n", label, tr.PathString(), tr.Subject)

		for _, l := range tr.Logs {
			_, _ = fmt.Fprintf(d.w, "  %s\n", l.Message)

			if l.Kind == junit.KindFailure && (l.Expected != nil || l.Actual != nil) {
				_, _ = fmt.Fprintf(d.w, "    expected: %v\n", l.Expected)
				_, _ = fmt.Fprintf(d.w, "    actual:   %v\n", l.Actual)
			}
		}

		_, _ = fmt.Fprintln(d.w)
	}

	_, _ = fmt.Fprintf(d.w, "%s %d tests, %d passed, %d failed, %d errors, %d timed out in %s\n",
		d.styles.status(result),
		result.Total,
		result.Passed,
		result.Failed,
		result.Errors,
		result.TimedOut,
		result.Elapsed().Round(time.Millisecond),
	)

	for _, path := range result.Reports {
		_, _ = fmt.Fprintln(d.w, d.styles.dim.Render("wrote "+path))
	}

	return nil
}

// -----------------------------------------------------------------------------
// Verbose Formatter
// -----------------------------------------------------------------------------

// VerboseFormatter prints every event as it occurs.
type VerboseFormatter struct {
	w      io.Writer
	state  testState
	styles statusStyles
}

// NewVerboseFormatter creates a verbose formatter.
func NewVerboseFormatter(w io.Writer) *VerboseFormatter {
	return &VerboseFormatter{w: w, styles: newStatusStyles(w)}
}

// Format prints each event as it occurs.
func (v *VerboseFormatter) Format(event Event, _ *Result) error {
	v.state.observe(event)

	switch e := event.(type) {
	case Spawn:
		_, _ = fmt.Fprintf(v.w, "=== SPAWN %s\n", e.Source)
	case Begin:
	case ModuleStart:
		_, _ = fmt.Fprintf(v.w, "=== MODULE %s\n", e.Name)
	case TestStart:
		_, _ = fmt.Fprintf(v.w, "=== RUN   %s\n", v.state.path(e.Name))
	case Log:
		if e.Passed {
			return nil
		}

		c := junit.Classify(e.Message)
		_, _ = fmt.Fprintf(v.w, "    %s\n", c.Message)

		if c.Kind == junit.KindFailure && (e.Expected != nil || e.Actual != nil) {
			_, _ = fmt.Fprintf(v.w, "        expected: %v\n", e.Expected)
			_, _ = fmt.Fprintf(v.w, "        actual:   %v\n", e.Actual)
		}
	case TestDone:
		status := "PASS"

		switch {
		case v.state.errored:
			status = "ERROR"
		case e.Failed > 0:
			status = "FAIL"
		}

		_, _ = fmt.Fprintf(v.w, "--- %s: %s (%d/%d)\n", status, v.state.path(e.Name), e.Passed, e.Total)
	case ModuleDone:
	case Done:
		_, _ = fmt.Fprintf(v.w, "=== DONE %d passed, %d failed, %d total (%s)\n", e.Passed, e.Failed, e.Total, e.Runtime)
	case Timeout:
		_, _ = fmt.Fprintf(v.w, "--- TIMEOUT: %s\n", junit.TimeoutMessage)
	}

	return nil
}

// Summary prints the final results.
func (v *VerboseFormatter) Summary(result *Result) error {
	_, _ = fmt.Fprintln(v.w)
	_, _ = fmt.Fprintf(v.w, "%s\n", v.styles.status(result))
	_, _ = fmt.Fprintf(v.w, "  %d subjects, %d total, %d passed, %d failed, %d errors, %d timed out\n",
		result.Subjects,
		result.Total,
		result.Passed,
		result.Failed,
		result.Errors,
		result.TimedOut,
	)
	_, _ = fmt.Fprintf(v.w, "  elapsed: %s\n", result.Elapsed().Round(time.Millisecond))

	for _, path := range result.Reports {
		_, _ = fmt.Fprintf(v.w, "  wrote %s\n", path)
	}

	return nil
}

// -----------------------------------------------------------------------------
// JSON Formatter
// -----------------------------------------------------------------------------

// JSONFormatter outputs newline-delimited JSON events.
type JSONFormatter struct {
	enc *json.Encoder
	now func() time.Time
}

// NewJSONFormatter creates a JSON formatter.
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{enc: json.NewEncoder(w), now: time.Now}
}

type jsonEvent struct {
	Time  string `json:"time"`
	Event string `json:"event"`
	Args  []any  `json:"args"`
}

// Format outputs a JSON event.
func (j *JSONFormatter) Format(event Event, _ *Result) error {
	return j.enc.Encode(jsonEvent{
		Time:  j.now().Format(time.RFC3339Nano),
		Event: event.Wire(),
		Args:  event.Args(),
	})
}

type jsonSummary struct {
	Event    string   `json:"event"`
	Subjects int      `json:"subjects"`
	Total    int      `json:"total"`
	Passed   int      `json:"passed"`
	Failed   int      `json:"failed"`
	Errors   int      `json:"errors"`
	TimedOut int      `json:"timedOut"`
	Reports  []string `json:"reports"`
	Elapsed  float64  `json:"elapsed"`
	Ok       bool     `json:"ok"`
}

// Summary outputs the final JSON summary.
func (j *JSONFormatter) Summary(result *Result) error {
	return j.enc.Encode(jsonSummary{
		Event:    "summary",
		Subjects: result.Subjects,
		Total:    result.Total,
		Passed:   result.Passed,
		Failed:   result.Failed,
		Errors:   result.Errors,
		TimedOut: result.TimedOut,
		Reports:  result.Reports,
		Elapsed:  result.Elapsed().Seconds(),
		Ok:       result.Ok(),
	})
}

// NewFormatter creates a formatter by name: "dots", "verbose" or "json".
func NewFormatter(name string, w io.Writer) (Formatter, error) {
	switch name {
	case "", "dots":
		return NewDotsFormatter(w), nil
	case "verbose":
		return NewVerboseFormatter(w), nil
	case "json":
		return NewJSONFormatter(w), nil
	default:
		return nil, fmt.Errorf("unknown format %q", name)
	}
}
