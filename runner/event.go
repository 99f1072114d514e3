// Package runner feeds QUnit lifecycle events from a source to handlers,
// one event at a time, in the order the source produced them.
package runner

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire names of the events, as emitted by the QUnit host.
const (
	EventSpawn       = "qunit.spawn"
	EventBegin       = "qunit.begin"
	EventModuleStart = "qunit.moduleStart"
	EventTestStart   = "qunit.testStart"
	EventLog         = "qunit.log"
	EventTestDone    = "qunit.testDone"
	EventModuleDone  = "qunit.moduleDone"
	EventDone        = "qunit.done"
	EventTimeout     = "qunit.fail.timeout"
)

// Event is one of Spawn, Begin, ModuleStart, TestStart, Log, TestDone,
// ModuleDone, Done or Timeout. The set is closed.
type Event interface {
	// Wire returns the wire name of the event.
	Wire() string

	// Args returns the positional wire payload.
	Args() []any

	event()
}

// Spawn starts a test subject, identified by a URL or file path.
type Spawn struct {
	Source string
}

// Begin is emitted when the framework starts running tests.
type Begin struct{}

// ModuleStart opens a module.
type ModuleStart struct {
	Name string
}

// TestStart opens a test.
type TestStart struct {
	Name string
}

// Log reports one assertion.
type Log struct {
	Passed   bool
	Actual   any
	Expected any
	Message  string
	Source   string
}

// TestDone closes a test with the framework's counts.
type TestDone struct {
	Name   string
	Failed int
	Passed int
	Total  int
}

// ModuleDone closes a module with the framework's counts.
type ModuleDone struct {
	Name   string
	Failed int
	Passed int
	Total  int
}

// Done ends the run of a subject.
type Done struct {
	Failed  int
	Passed  int
	Total   int
	Runtime time.Duration
}

// Timeout signals that the subject never reached Done.
type Timeout struct{}

func (Spawn) Wire() string       { return EventSpawn }
func (Begin) Wire() string       { return EventBegin }
func (ModuleStart) Wire() string { return EventModuleStart }
func (TestStart) Wire() string   { return EventTestStart }
func (Log) Wire() string         { return EventLog }
func (TestDone) Wire() string    { return EventTestDone }
func (ModuleDone) Wire() string  { return EventModuleDone }
func (Done) Wire() string        { return EventDone }
func (Timeout) Wire() string     { return EventTimeout }

func (e Spawn) Args() []any       { return []any{e.Source} }
func (Begin) Args() []any         { return []any{} }
func (e ModuleStart) Args() []any { return []any{e.Name} }
func (e TestStart) Args() []any   { return []any{e.Name} }
func (e Log) Args() []any {
	return []any{e.Passed, e.Actual, e.Expected, e.Message, e.Source}
}
func (e TestDone) Args() []any   { return []any{e.Name, e.Failed, e.Passed, e.Total} }
func (e ModuleDone) Args() []any { return []any{e.Name, e.Failed, e.Passed, e.Total} }
func (e Done) Args() []any {
	return []any{e.Failed, e.Passed, e.Total, e.Runtime.Milliseconds()}
}
func (Timeout) Args() []any { return []any{} }

func (Spawn) event()       {}
func (Begin) event()       {}
func (ModuleStart) event() {}
func (TestStart) event()   {}
func (Log) event()         {}
func (TestDone) event()    {}
func (ModuleDone) event()  {}
func (Done) event()        {}
func (Timeout) event()     {}

// Envelope is the line format of an event stream:
//
//	{"event": "qunit.testDone", "args": ["add", 1, 0, 1]}
type Envelope struct {
	Event string          `json:"event"`
	Args  json.RawMessage `json:"args,omitempty"`
}

// Encode marshals ev as an Envelope.
func Encode(ev Event) ([]byte, error) {
	args, err := json.Marshal(ev.Args())
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", ev.Wire(), err)
	}

	return json.Marshal(Envelope{Event: ev.Wire(), Args: args})
}

// Decode builds the event called name from its positional JSON payload.
// Missing trailing arguments and nulls decode to zero values.
func Decode(name string, args json.RawMessage) (Event, error) {
	p, err := newPositional(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedEvent, name, err)
	}

	var ev Event

	switch name {
	case EventSpawn:
		ev = Spawn{Source: p.str(0)}
	case EventBegin:
		ev = Begin{}
	case EventModuleStart:
		ev = ModuleStart{Name: p.str(0)}
	case EventTestStart:
		ev = TestStart{Name: p.str(0)}
	case EventLog:
		ev = Log{
			Passed:   p.boolean(0),
			Actual:   p.value(1),
			Expected: p.value(2),
			Message:  p.str(3),
			Source:   p.str(4),
		}
	case EventTestDone:
		ev = TestDone{Name: p.str(0), Failed: p.integer(1), Passed: p.integer(2), Total: p.integer(3)}
	case EventModuleDone:
		ev = ModuleDone{Name: p.str(0), Failed: p.integer(1), Passed: p.integer(2), Total: p.integer(3)}
	case EventDone:
		ev = Done{
			Failed:  p.integer(0),
			Passed:  p.integer(1),
			Total:   p.integer(2),
			Runtime: time.Duration(p.number(3) * float64(time.Millisecond)),
		}
	case EventTimeout:
		ev = Timeout{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}

	if p.err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedEvent, name, p.err)
	}

	return ev, nil
}

// positional decodes arguments by index, remembering the first error.
type positional struct {
	args []json.RawMessage
	err  error
}

func newPositional(raw json.RawMessage) (*positional, error) {
	p := &positional{}
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}

	if err := json.Unmarshal(raw, &p.args); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *positional) decode(i int, v any) {
	if i >= len(p.args) || p.err != nil {
		return
	}

	if err := json.Unmarshal(p.args[i], v); err != nil {
		p.err = fmt.Errorf("argument %d: %w", i, err)
	}
}

func (p *positional) str(i int) string {
	var s string
	p.decode(i, &s)

	return s
}

func (p *positional) boolean(i int) bool {
	var b bool
	p.decode(i, &b)

	return b
}

func (p *positional) number(i int) float64 {
	var f float64
	p.decode(i, &f)

	return f
}

func (p *positional) integer(i int) int {
	return int(p.number(i))
}

func (p *positional) value(i int) any {
	var v any
	p.decode(i, &v)

	return v
}
