package junit

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultDest is the directory reports are written to when none is configured.
const DefaultDest = "_build/test-reports"

// ReportWriter durably stores a rendered report.
type ReportWriter interface {
	WriteReport(path, content string) error
}

// ReportWriterFunc adapts a function to ReportWriter.
type ReportWriterFunc func(path, content string) error

// WriteReport calls f.
func (f ReportWriterFunc) WriteReport(path, content string) error {
	return f(path, content)
}

// FileWriter writes reports to the local filesystem, creating parent
// directories as needed.
type FileWriter struct{}

// WriteReport writes content to path.
func (FileWriter) WriteReport(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: report directories are shared with CI
		return err
	}

	return os.WriteFile(path, []byte(content), 0o644) //nolint:gosec // G306: reports are meant to be world-readable
}

// Namer derives a report classname from a source identifier.
type Namer func(source string) string

// DefaultNamer returns the base name of source with a trailing ".html" removed.
func DefaultNamer(source string) string {
	if source == "" {
		return ""
	}

	return strings.TrimSuffix(filepath.Base(source), ".html")
}
