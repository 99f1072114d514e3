// Package junit turns QUnit lifecycle events into JUnit XML reports.
package junit

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// State is the position of an Aggregator in the event lifecycle.
type State int

// Aggregator states.
const (
	StateIdle State = iota
	StateRunActive
	StateModuleActive
	StateTestActive
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunActive:
		return "run"
	case StateModuleActive:
		return "module"
	case StateTestActive:
		return "test"
	case StateTimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Synthetic module names used when the framework does not bracket its tests.
const (
	globalModule = "global"
	mainModule   = "main"
)

// Aggregator accumulates the events of one test subject and writes its
// report when the run completes or times out.
//
// An Aggregator is driven synchronously by a single event source and is not
// safe for concurrent use.
type Aggregator struct {
	dest   string
	namer  Namer
	writer ReportWriter
	logger *zap.Logger

	state    State
	inModule bool
	run      *RunContext
	modules  []ModuleRecord
	tests    []TestRecord

	// Reset by TestStart, consumed by TestDone.
	currentLogs   []AssertionLog
	currentErrors int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithDest sets the directory reports are written to.
func WithDest(dest string) Option {
	return func(a *Aggregator) {
		if dest != "" {
			a.dest = dest
		}
	}
}

// WithNamer sets the function deriving classnames from source identifiers.
func WithNamer(n Namer) Option {
	return func(a *Aggregator) {
		if n != nil {
			a.namer = n
		}
	}
}

// WithWriter sets where rendered reports go.
func WithWriter(w ReportWriter) Option {
	return func(a *Aggregator) {
		if w != nil {
			a.writer = w
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Aggregator with the given options.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		dest:   DefaultDest,
		namer:  DefaultNamer,
		writer: FileWriter{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.logger.Info("XML reports will be written to " + a.dest)

	return a
}

// State returns the current lifecycle state.
func (a *Aggregator) State() State {
	return a.state
}

// Run returns the current run context, or nil outside a spawned run.
func (a *Aggregator) Run() *RunContext {
	return a.run
}

// ReportPath returns where the current subject's report will be written,
// or "" before a spawn.
func (a *Aggregator) ReportPath() string {
	if a.run == nil {
		return ""
	}

	return filepath.Join(a.dest, a.run.DestinationFileName)
}

// Modules returns the modules closed so far in the current run.
func (a *Aggregator) Modules() []ModuleRecord {
	return a.modules
}

// Pending returns the completed tests not yet assigned to a module.
func (a *Aggregator) Pending() []TestRecord {
	return a.tests
}

// Spawn starts reporting on the subject identified by source. Previously
// accumulated modules are kept.
func (a *Aggregator) Spawn(source string) {
	if a.state == StateTimedOut {
		return
	}

	classname := a.namer(source)
	a.run = &RunContext{
		Classname:           classname,
		DestinationFileName: "TEST-" + classname + ".xml",
	}
	a.state = StateRunActive

	a.logger.Debug("spawn", zap.String("source", source), zap.String("classname", classname))
}

// Begin marks the start of the run.
func (a *Aggregator) Begin() {}

// ModuleStart opens a module. Tests recorded outside any module are first
// closed into a synthetic "global" module; its counts are placeholders.
func (a *Aggregator) ModuleStart(name string) {
	if a.state == StateTimedOut {
		return
	}

	if len(a.tests) > 0 {
		a.logger.Debug("closing unbracketed tests", zap.String("module", globalModule), zap.Int("tests", len(a.tests)))
		a.ModuleDone(globalModule, 1, 1, 1)
	}

	a.inModule = true
	a.state = StateModuleActive

	a.logger.Debug("module start", zap.String("module", name))
}

// TestStart resets the per-test accumulation.
func (a *Aggregator) TestStart(name string) {
	if a.state == StateTimedOut {
		return
	}

	a.currentLogs = nil
	a.currentErrors = 0
	a.state = StateTestActive

	a.logger.Debug("test start", zap.String("test", name))
}

// Log records an assertion. Passing assertions are ignored; failing ones are
// classified as failures or script errors.
func (a *Aggregator) Log(passed bool, actual, expected any, message, source string) {
	if passed || a.state == StateTimedOut {
		return
	}

	c := Classify(message)
	if c.Kind == KindError {
		a.currentErrors++
	}

	a.currentLogs = append(a.currentLogs, AssertionLog{
		Actual:     actual,
		Expected:   expected,
		Message:    c.Message,
		StackTrace: c.StackTrace,
		Kind:       c.Kind,
	})

	a.logger.Debug("assertion failed",
		zap.String("kind", string(c.Kind)),
		zap.String("message", c.Message),
		zap.String("source", source))
}

// TestDone records the completed test under the pending list.
func (a *Aggregator) TestDone(name string, failed, passed, total int) {
	if a.state == StateTimedOut {
		return
	}

	a.tests = append(a.tests, TestRecord{
		Name:    name,
		Errored: a.currentErrors,
		Failed:  failed - a.currentErrors,
		Passed:  passed,
		Total:   total,
		Logs:    a.currentLogs,
	})

	a.currentLogs = nil
	a.currentErrors = 0

	if a.inModule {
		a.state = StateModuleActive
	} else {
		a.state = StateRunActive
	}
}

// ModuleDone closes the pending tests into a module. Its error count is the
// sum over its tests; failed is reduced by that amount.
func (a *Aggregator) ModuleDone(name string, failed, passed, total int) {
	if a.state == StateTimedOut {
		return
	}

	errored := sumErrored(a.tests)

	a.modules = append(a.modules, ModuleRecord{
		Name:    name,
		Errored: errored,
		Failed:  failed - errored,
		Passed:  passed,
		Total:   total,
		Tests:   a.tests,
	})

	a.tests = nil
	a.inModule = false
	a.state = StateRunActive
}

// Done ends the run: unbracketed tests are closed into a "main" module
// carrying the run totals, the report is written and the Aggregator returns
// to its initial state.
//
// A failing write is returned wrapped with ErrWriteFailed. Done without a
// prior Spawn returns ErrNoSpawn and discards the accumulated state.
func (a *Aggregator) Done(failed, passed, total int, runtime time.Duration) error {
	if a.state == StateTimedOut {
		return nil
	}

	if len(a.tests) > 0 {
		a.ModuleDone(mainModule, failed, passed, total)
	}

	run, modules := a.run, a.modules
	a.reset()

	if run == nil {
		return ErrNoSpawn
	}

	path := filepath.Join(a.dest, run.DestinationFileName)

	a.logger.Info("Writing results to "+path,
		zap.Int("modules", len(modules)),
		zap.Int("failed", failed),
		zap.Int("passed", passed),
		zap.Int("total", total),
		zap.Duration("runtime", runtime))

	return a.write(path, Render(run.Classname, modules))
}

// Timeout writes a single-error report for the current subject and stops
// the Aggregator: every later event, including another Timeout, is ignored.
func (a *Aggregator) Timeout() error {
	if a.state == StateTimedOut {
		return nil
	}

	a.state = StateTimedOut

	if a.run == nil {
		return ErrNoSpawn
	}

	path := a.ReportPath()

	a.logger.Info("Writing timeout report to " + path)

	return a.write(path, RenderTimeout(a.run.Classname))
}

func (a *Aggregator) write(path, content string) error {
	if err := a.writer.WriteReport(path, content); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}

	return nil
}

func (a *Aggregator) reset() {
	a.run = nil
	a.modules = nil
	a.tests = nil
	a.currentLogs = nil
	a.currentErrors = 0
	a.inModule = false
	a.state = StateIdle
}
