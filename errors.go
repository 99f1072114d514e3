package qjunit

import "errors"

// Sentinel errors.
var (
	// ErrConfigNotFound is returned when no .qjunit.yaml is found.
	ErrConfigNotFound = errors.New("qjunit: no .qjunit.yaml found")

	// ErrInvalidConfig is returned when a config file does not match the schema.
	ErrInvalidConfig = errors.New("qjunit: invalid config")

	// ErrInvalidNamer is returned when a namer expression does not compile.
	ErrInvalidNamer = errors.New("qjunit: invalid namer expression")

	// ErrUnknownFormat is returned for an unsupported console format.
	ErrUnknownFormat = errors.New("qjunit: unknown format")
)
