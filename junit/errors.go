package junit

import "errors"

// Sentinel errors for the junit package.
var (
	// ErrNoSpawn is returned when a report is requested before any spawn
	// event named the test subject.
	ErrNoSpawn = errors.New("junit: no spawn event received")

	// ErrWriteFailed wraps failures of the configured ReportWriter.
	ErrWriteFailed = errors.New("junit: writing report failed")
)
