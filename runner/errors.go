package runner

import "errors"

// Sentinel errors for the runner package.
var (
	// ErrUnknownEvent is returned when decoding an event name outside the
	// QUnit event set.
	ErrUnknownEvent = errors.New("runner: unknown event")

	// ErrMalformedEvent is returned when an event payload cannot be decoded.
	ErrMalformedEvent = errors.New("runner: malformed event")

	// ErrNoSource is returned when Run is called without a source.
	ErrNoSource = errors.New("runner: no event source")

	// Test errors for use in unit tests.
	errTestStop = errors.New("test: stop")
)
