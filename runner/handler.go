package runner

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rlch/qjunit/junit"
)

// Handler receives events during a run.
type Handler interface {
	// Event is called for each event as it occurs.
	Event(ctx context.Context, event Event, result *Result) error

	// Err is called for problems with the stream itself, such as lines
	// that do not decode.
	Err(text string) error
}

// MultiHandler fans out events to multiple handlers.
type MultiHandler struct {
	handlers []Handler
}

// NewMultiHandler creates a handler that dispatches to multiple handlers.
func NewMultiHandler(handlers ...Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

// Event dispatches to all handlers, stopping on first error.
func (m *MultiHandler) Event(ctx context.Context, event Event, result *Result) error {
	for _, h := range m.handlers {
		err := h.Event(ctx, event, result)
		if err != nil {
			return err
		}
	}

	return nil
}

// Err dispatches to all handlers.
func (m *MultiHandler) Err(text string) error {
	for _, h := range m.handlers {
		err := h.Err(text)
		if err != nil {
			return err
		}
	}

	return nil
}

// ResultHandler updates the Result accumulator from events.
type ResultHandler struct{}

// NewResultHandler creates a handler that accumulates results.
func NewResultHandler() *ResultHandler {
	return &ResultHandler{}
}

// Event updates the result accumulator.
func (h *ResultHandler) Event(_ context.Context, event Event, result *Result) error {
	result.Add(event)

	return nil
}

// Err is a no-op for ResultHandler.
func (h *ResultHandler) Err(_ string) error {
	return nil
}

// ReportHandler drives a junit.Aggregator, writing one JUnit report per
// spawned subject. A subject that timed out leaves its aggregator stopped,
// so the next Spawn starts a fresh one.
type ReportHandler struct {
	opts   []junit.Option
	agg    *junit.Aggregator
	logger *zap.Logger
}

// NewReportHandler creates a handler whose aggregators use opts.
func NewReportHandler(logger *zap.Logger, opts ...junit.Option) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts = append([]junit.Option{junit.WithLogger(logger)}, opts...)

	return &ReportHandler{
		opts:   opts,
		agg:    junit.New(opts...),
		logger: logger,
	}
}

// Aggregator returns the aggregator handling the current subject.
func (h *ReportHandler) Aggregator() *junit.Aggregator {
	return h.agg
}

// Event forwards the event to the aggregator's matching method.
func (h *ReportHandler) Event(_ context.Context, event Event, result *Result) error {
	agg := h.agg

	switch e := event.(type) {
	case Spawn:
		if agg.State() == junit.StateTimedOut {
			h.agg = junit.New(h.opts...)
			agg = h.agg
		}

		agg.Spawn(e.Source)
	case Begin:
		agg.Begin()
	case ModuleStart:
		agg.ModuleStart(e.Name)
	case TestStart:
		agg.TestStart(e.Name)
	case Log:
		agg.Log(e.Passed, e.Actual, e.Expected, e.Message, e.Source)
	case TestDone:
		agg.TestDone(e.Name, e.Failed, e.Passed, e.Total)
	case ModuleDone:
		agg.ModuleDone(e.Name, e.Failed, e.Passed, e.Total)
	case Done:
		if agg.State() == junit.StateTimedOut {
			return nil
		}

		path := agg.ReportPath()
		if err := agg.Done(e.Failed, e.Passed, e.Total, e.Runtime); err != nil {
			return h.skipUnspawned(event, err)
		}

		result.AddReport(path)
	case Timeout:
		if agg.State() == junit.StateTimedOut {
			return nil
		}

		path := agg.ReportPath()
		if err := agg.Timeout(); err != nil {
			return h.skipUnspawned(event, err)
		}

		result.AddReport(path)
	}

	return nil
}

// skipUnspawned drops a report request that no spawn preceded so the rest
// of the stream is still reported. Other errors are returned.
func (h *ReportHandler) skipUnspawned(event Event, err error) error {
	if !errors.Is(err, junit.ErrNoSpawn) {
		return err
	}

	h.logger.Warn("ignoring event without a spawned subject", zap.String("event", event.Wire()))

	return nil
}

// Err logs stream problems.
func (h *ReportHandler) Err(text string) error {
	h.logger.Warn(text)

	return nil
}
