package runner

import (
	"sync"
	"time"

	"github.com/rlch/qjunit/junit"
)

// Result accumulates run-wide totals across every subject in a stream.
type Result struct {
	mu sync.RWMutex

	StartTime time.Time
	EndTime   time.Time

	Subjects int // spawned subjects
	TimedOut int // subjects reported as timed out

	Total  int // completed tests
	Passed int // tests without failed assertions
	Failed int // tests with assertion failures but no script errors
	Errors int // tests with at least one script error

	// Reports lists the written report paths in order.
	Reports []string

	// Order preserves the failing tests for display.
	Order []*TestResult

	subject  string
	module   string
	current  *TestResult
	finished bool
}

// TestResult holds the outcome of a single test.
type TestResult struct {
	Subject string
	Module  string
	Name    string
	Failed  int
	Passed  int
	Total   int
	Logs    []junit.AssertionLog
}

// Errored reports whether any assertion was a script error.
func (tr *TestResult) Errored() bool {
	for _, l := range tr.Logs {
		if l.Kind == junit.KindError {
			return true
		}
	}

	return false
}

// PathString returns "module: test", the name used in reports.
func (tr *TestResult) PathString() string {
	if tr.Module == "" {
		return tr.Name
	}

	return tr.Module + ": " + tr.Name
}

// NewResult creates an initialized Result.
func NewResult() *Result {
	return &Result{
		StartTime: time.Now(),
	}
}

// Add records an event in the result.
func (r *Result) Add(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := event.(type) {
	case Spawn:
		r.Subjects++
		r.subject = e.Source
		r.module = ""
		r.current = nil
		r.finished = false
	case ModuleStart:
		r.module = e.Name
	case TestStart:
		if r.finished {
			return
		}

		r.current = &TestResult{Subject: r.subject, Module: r.module, Name: e.Name}
	case Log:
		if r.finished || e.Passed || r.current == nil {
			return
		}

		c := junit.Classify(e.Message)
		r.current.Logs = append(r.current.Logs, junit.AssertionLog{
			Actual:     e.Actual,
			Expected:   e.Expected,
			Message:    c.Message,
			StackTrace: c.StackTrace,
			Kind:       c.Kind,
		})
	case TestDone:
		if r.finished {
			return
		}

		tr := r.current
		if tr == nil {
			tr = &TestResult{Subject: r.subject, Module: r.module}
		}

		tr.Name = e.Name
		tr.Failed = e.Failed
		tr.Passed = e.Passed
		tr.Total = e.Total
		r.record(tr)
		r.current = nil
	case ModuleDone:
		r.module = ""
	case Done:
		r.finished = true
	case Timeout:
		if !r.finished {
			r.TimedOut++
		}

		r.finished = true
	case Begin:
		// Nothing to count.
	}
}

func (r *Result) record(tr *TestResult) {
	r.Total++

	switch {
	case tr.Errored():
		r.Errors++
		r.Order = append(r.Order, tr)
	case tr.Failed > 0:
		r.Failed++
		r.Order = append(r.Order, tr)
	default:
		r.Passed++
	}
}

// AddReport records a written report path.
func (r *Result) AddReport(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Reports = append(r.Reports, path)
}

// Merge adds the totals of other into r.
func (r *Result) Merge(other *Result) {
	if other == nil || other == r {
		return
	}

	other.mu.RLock()
	defer other.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.Subjects += other.Subjects
	r.TimedOut += other.TimedOut
	r.Total += other.Total
	r.Passed += other.Passed
	r.Failed += other.Failed
	r.Errors += other.Errors
	r.Reports = append(r.Reports, other.Reports...)
	r.Order = append(r.Order, other.Order...)

	if other.StartTime.Before(r.StartTime) {
		r.StartTime = other.StartTime
	}

	if other.EndTime.After(r.EndTime) {
		r.EndTime = other.EndTime
	}
}

// Finish marks the result as complete.
func (r *Result) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.EndTime = time.Now()
}

// Elapsed returns the total processing time.
func (r *Result) Elapsed() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}

	return r.EndTime.Sub(r.StartTime)
}

// Ok returns true if no test failed and no subject timed out.
func (r *Result) Ok() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.Failed == 0 && r.Errors == 0 && r.TimedOut == 0
}

// FailedTests returns the failing and erroring tests in order.
func (r *Result) FailedTests() []*TestResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	failed := make([]*TestResult, len(r.Order))
	copy(failed, r.Order)

	return failed
}
