package junit

// RunContext identifies the test subject being reported on. It exists only
// between a spawn event and the report being written.
type RunContext struct {
	Classname           string
	DestinationFileName string
}

// AssertionLog is one failed expectation or script error recorded while a
// test was running.
type AssertionLog struct {
	Actual     any
	Expected   any
	Message    string
	StackTrace string // empty when the framework gave none
	Kind       Kind
}

// TestRecord is a completed test.
type TestRecord struct {
	Name    string
	Errored int
	Failed  int // reported failures minus Errored
	Passed  int
	Total   int
	Logs    []AssertionLog
}

// ModuleRecord is a closed module and the tests recorded under it.
type ModuleRecord struct {
	Name    string
	Errored int
	Failed  int
	Passed  int
	Total   int
	Tests   []TestRecord
}

// sumErrored adds up Errored over tests.
func sumErrored(tests []TestRecord) int {
	total := 0
	for _, t := range tests {
		total += t.Errored
	}

	return total
}
