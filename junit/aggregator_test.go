package junit_test

import (
	"encoding/xml"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rlch/qjunit/junit"
)

// memWriter records every report written.
type memWriter struct {
	files  map[string]string
	writes int
}

func newMemWriter() *memWriter {
	return &memWriter{files: make(map[string]string)}
}

func (m *memWriter) WriteReport(path, content string) error {
	m.files[path] = content
	m.writes++

	return nil
}

func newAggregator(w junit.ReportWriter) *junit.Aggregator {
	return junit.New(junit.WithDest("out"), junit.WithWriter(w))
}

// parsed mirrors the report layout for assertions on written files.
type parsed struct {
	Suites []struct {
		Name     string `xml:"name,attr"`
		Errors   int    `xml:"errors,attr"`
		Failures int    `xml:"failures,attr"`
		Tests    int    `xml:"tests,attr"`
		Cases    []struct {
			Classname  string `xml:"classname,attr"`
			Name       string `xml:"name,attr"`
			Assertions int    `xml:"assertions,attr"`
			Failures   []struct {
				Type    string `xml:"type,attr"`
				Message string `xml:"message,attr"`
			} `xml:"failure"`
			Errors []struct {
				Type    string `xml:"type,attr"`
				Message string `xml:"message,attr"`
				Body    string `xml:",chardata"`
			} `xml:"error"`
		} `xml:"testcase"`
	} `xml:"testsuite"`
}

func parse(t *testing.T, doc string) parsed {
	t.Helper()

	var p parsed
	require.NoError(t, xml.Unmarshal([]byte(doc), &p))

	return p
}

func TestAggregator_EndToEnd(t *testing.T) {
	t.Parallel()

	w := newMemWriter()
	a := newAggregator(w)

	a.Spawn("suite.html")
	a.Begin()
	a.ModuleStart("Math")
	a.TestStart("add")
	a.Log(false, 1, 2, "expected 1 to equal 2", "")
	a.TestDone("add", 1, 0, 1)
	a.ModuleDone("Math", 1, 0, 1)
	require.NoError(t, a.Done(1, 0, 1, 5*time.Millisecond))

	want := `<?xml version="1.0" encoding="UTF-8"?>
<testsuites>
	<testsuite name="suite" errors="0" failures="1" tests="1">
		<testcase classname="suite" name="Math: add" assertions="1">
			<failure type="failed" message="expected 1 to equal 2">
			</failure>
		</testcase>
	</testsuite>
</testsuites>
`
	got, ok := w.files[filepath.Join("out", "TEST-suite.xml")]
	require.True(t, ok, "report not written: %v", w.files)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, junit.StateIdle, a.State())
	assert.Nil(t, a.Run())
	assert.Empty(t, a.Modules())
}

func TestAggregator_ScriptErrorReport(t *testing.T) {
	t.Parallel()

	w := newMemWriter()
	a := newAggregator(w)

	a.Spawn("/tmp/tests/dom.html")
	a.ModuleStart("DOM <core>")
	a.TestStart("render")
	a.Log(true, nil, nil, "okay", "")
	a.Log(false, nil, nil, "Died on test #1 \n\tat dom.js:10: TypeError: el is null", "dom.js")
	a.Log(false, "a", "b", `expected "a" & "b"`, "")
	a.TestDone("render", 2, 1, 3)
	a.ModuleDone("DOM <core>", 2, 1, 3)
	require.NoError(t, a.Done(2, 1, 3, 0))

	doc := w.files[filepath.Join("out", "TEST-dom.xml")]
	p := parse(t, doc)

	require.Len(t, p.Suites, 1)
	suite := p.Suites[0]
	assert.Equal(t, "dom", suite.Name)
	assert.Equal(t, 1, suite.Errors)
	assert.Equal(t, 1, suite.Failures)

	require.Len(t, suite.Cases, 1)
	tc := suite.Cases[0]
	assert.Equal(t, "DOM <core>: render", tc.Name)
	assert.Equal(t, 3, tc.Assertions)

	require.Len(t, tc.Errors, 1)
	assert.Equal(t, "failed", tc.Errors[0].Type)
	assert.Equal(t, "Died on test #1: TypeError: el is null", tc.Errors[0].Message)
	assert.Contains(t, tc.Errors[0].Body, "at dom.js:")

	require.Len(t, tc.Failures, 1)
	assert.Equal(t, `expected "a" & "b"`, tc.Failures[0].Message)
}

func TestAggregator_TestCountsInvariant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		errors int
		fails  int
		failed int
		passed int
		total  int
	}{
		{"no failures", 0, 0, 0, 3, 3},
		{"failures only", 0, 2, 2, 1, 3},
		{"errors only", 2, 0, 2, 0, 2},
		{"mixed", 1, 2, 3, 4, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := newAggregator(newMemWriter())
			a.Spawn("x.html")
			a.ModuleStart("m")
			a.TestStart("t")

			for range tt.errors {
				a.Log(false, nil, nil, "Died on test #1 at x.js:1: boom", "")
			}

			for range tt.fails {
				a.Log(false, 1, 2, "mismatch", "")
			}

			a.TestDone("t", tt.failed, tt.passed, tt.total)

			pending := a.Pending()
			require.Len(t, pending, 1)

			rec := pending[0]
			assert.Equal(t, tt.failed, rec.Errored+rec.Failed)
			assert.LessOrEqual(t, rec.Errored, tt.failed)
			assert.Equal(t, tt.errors, rec.Errored)
			assert.Equal(t, tt.passed, rec.Passed)
			assert.Equal(t, tt.total, rec.Total)
			assert.Len(t, rec.Logs, tt.errors+tt.fails)
		})
	}
}

func TestAggregator_ModuleErroredIsSumOfTests(t *testing.T) {
	t.Parallel()

	a := newAggregator(newMemWriter())
	a.Spawn("x.html")
	a.ModuleStart("m")

	for i, errs := range []int{2, 0, 1} {
		a.TestStart("t")
		for range errs {
			a.Log(false, nil, nil, "Died on test #1 at x.js:1: boom", "")
		}
		a.TestDone("t", errs, i, errs+i)
	}

	// Module-level numbers are deliberately unrelated to the tests.
	a.ModuleDone("m", 10, 20, 30)

	modules := a.Modules()
	require.Len(t, modules, 1)

	want := junit.ModuleRecord{Name: "m", Errored: 3, Failed: 7, Passed: 20, Total: 30}
	got := modules[0]
	got.Tests = nil

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("module mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, modules[0].Tests, 3)
	assert.Empty(t, a.Pending())
}

func TestAggregator_ImplicitMainModule(t *testing.T) {
	t.Parallel()

	w := newMemWriter()
	a := newAggregator(w)

	a.Spawn("plain.html")
	a.TestStart("one")
	a.TestDone("one", 0, 1, 1)
	a.TestStart("two")
	a.Log(false, 1, 2, "nope", "")
	a.TestDone("two", 1, 0, 1)
	assert.Equal(t, junit.StateRunActive, a.State())

	require.NoError(t, a.Done(1, 1, 2, 0))

	p := parse(t, w.files[filepath.Join("out", "TEST-plain.xml")])
	require.Len(t, p.Suites, 1)
	assert.Equal(t, 1, p.Suites[0].Failures)
	assert.Equal(t, 2, p.Suites[0].Tests)
	require.Len(t, p.Suites[0].Cases, 2)
	assert.Equal(t, "main: one", p.Suites[0].Cases[0].Name)
	assert.Equal(t, "main: two", p.Suites[0].Cases[1].Name)
}

func TestAggregator_GlobalModuleOnUnbracketedTests(t *testing.T) {
	t.Parallel()

	a := newAggregator(newMemWriter())
	a.Spawn("x.html")
	a.TestStart("stray")
	a.TestDone("stray", 0, 1, 1)
	a.ModuleStart("real")

	modules := a.Modules()
	require.Len(t, modules, 1)
	assert.Equal(t, "global", modules[0].Name)
	assert.Equal(t, 1, modules[0].Failed)
	assert.Equal(t, 1, modules[0].Passed)
	assert.Equal(t, 1, modules[0].Total)
	assert.Len(t, modules[0].Tests, 1)
	assert.Empty(t, a.Pending())
	assert.Equal(t, junit.StateModuleActive, a.State())
}

func TestAggregator_StateTransitions(t *testing.T) {
	t.Parallel()

	a := newAggregator(newMemWriter())
	assert.Equal(t, junit.StateIdle, a.State())

	a.Spawn("x.html")
	assert.Equal(t, junit.StateRunActive, a.State())

	a.ModuleStart("m")
	assert.Equal(t, junit.StateModuleActive, a.State())

	a.TestStart("t")
	assert.Equal(t, junit.StateTestActive, a.State())

	a.TestDone("t", 0, 1, 1)
	assert.Equal(t, junit.StateModuleActive, a.State())

	a.ModuleDone("m", 0, 1, 1)
	assert.Equal(t, junit.StateRunActive, a.State())

	require.NoError(t, a.Done(0, 1, 1, 0))
	assert.Equal(t, junit.StateIdle, a.State())
}

func TestAggregator_ReusedAfterDone(t *testing.T) {
	t.Parallel()

	w := newMemWriter()
	a := newAggregator(w)

	for _, name := range []string{"first.html", "second.html"} {
		a.Spawn(name)
		a.ModuleStart("m")
		a.TestStart("t")
		a.TestDone("t", 0, 1, 1)
		a.ModuleDone("m", 0, 1, 1)
		require.NoError(t, a.Done(0, 1, 1, 0))
	}

	require.Len(t, w.files, 2)

	p := parse(t, w.files[filepath.Join("out", "TEST-second.xml")])
	assert.Len(t, p.Suites, 1, "modules from the first run must not leak")
}

func TestAggregator_Timeout(t *testing.T) {
	t.Parallel()

	w := newMemWriter()
	a := newAggregator(w)

	a.Spawn("suite.html")
	a.ModuleStart("m")
	a.TestStart("hangs")
	require.NoError(t, a.Timeout())

	want := `<?xml version="1.0" encoding="UTF-8"?>
<testsuites>
	<testsuite name="suite" errors="1" failures="0" tests="1">
		<testcase classname="suite" name="main" assertions="1">
			<error type="timeout" message="Test timed out, possibly due to a missing QUnit.start() call."></error>
		</testcase>
	</testsuite>
</testsuites>
`
	got := w.files[filepath.Join("out", "TEST-suite.xml")]
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("timeout report mismatch (-want +got):\n%s", diff)
	}

	p := parse(t, got)
	require.Len(t, p.Suites, 1)
	require.Len(t, p.Suites[0].Cases, 1)
	require.Len(t, p.Suites[0].Cases[0].Errors, 1)
	assert.Equal(t, "timeout", p.Suites[0].Cases[0].Errors[0].Type)
	assert.Equal(t, junit.StateTimedOut, a.State())
}

func TestAggregator_TimeoutIgnoresLaterEvents(t *testing.T) {
	t.Parallel()

	w := newMemWriter()
	a := newAggregator(w)

	a.Spawn("suite.html")
	require.NoError(t, a.Timeout())
	require.NoError(t, a.Timeout())

	a.ModuleStart("late")
	a.TestStart("late")
	a.TestDone("late", 0, 1, 1)
	a.ModuleDone("late", 0, 1, 1)
	require.NoError(t, a.Done(0, 1, 1, 0))

	assert.Equal(t, 1, w.writes)
	assert.Empty(t, a.Modules())
	assert.Equal(t, junit.StateTimedOut, a.State())
}

func TestAggregator_NoSpawn(t *testing.T) {
	t.Parallel()

	w := newMemWriter()

	a := newAggregator(w)
	a.TestStart("t")
	a.TestDone("t", 0, 1, 1)
	require.ErrorIs(t, a.Done(0, 1, 1, 0), junit.ErrNoSpawn)
	assert.Empty(t, a.Modules())

	b := newAggregator(w)
	require.ErrorIs(t, b.Timeout(), junit.ErrNoSpawn)

	assert.Zero(t, w.writes)
}

func TestAggregator_WriteFailurePropagates(t *testing.T) {
	t.Parallel()

	errDisk := errors.New("disk full")
	a := junit.New(junit.WithWriter(junit.ReportWriterFunc(func(string, string) error {
		return errDisk
	})))

	a.Spawn("suite.html")
	err := a.Done(0, 0, 0, 0)
	require.ErrorIs(t, err, junit.ErrWriteFailed)
	require.ErrorIs(t, err, errDisk)
	assert.Contains(t, err.Error(), filepath.Join(junit.DefaultDest, "TEST-suite.xml"))
}

func TestAggregator_CustomNamer(t *testing.T) {
	t.Parallel()

	w := newMemWriter()
	a := junit.New(
		junit.WithDest("reports"),
		junit.WithWriter(w),
		junit.WithNamer(func(source string) string { return "ns." + junit.DefaultNamer(source) }),
	)

	a.Spawn("http://localhost:9000/test/unit.html")
	require.NotNil(t, a.Run())
	assert.Equal(t, "ns.unit", a.Run().Classname)
	assert.Equal(t, "TEST-ns.unit.xml", a.Run().DestinationFileName)

	require.NoError(t, a.Done(0, 0, 0, 0))
	assert.Contains(t, w.files, filepath.Join("reports", "TEST-ns.unit.xml"))
}

func TestDefaultNamer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		source string
		want   string
	}{
		{"test/index.html", "index"},
		{"http://localhost:9000/test/unit.html", "unit"},
		{"suite.htm", "suite.htm"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, junit.DefaultNamer(tt.source), "source %q", tt.source)
	}
}

func TestAggregator_EmptySource(t *testing.T) {
	t.Parallel()

	w := newMemWriter()
	a := newAggregator(w)

	a.Spawn("")
	require.NoError(t, a.Done(0, 0, 0, 0))
	assert.Contains(t, w.files, filepath.Join("out", "TEST-.xml"))
}

func TestFileWriter_CreatesDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := junit.New(junit.WithDest(filepath.Join(dir, "nested", "reports")))

	a.Spawn("suite.html")
	require.NoError(t, a.Timeout())

	assert.FileExists(t, filepath.Join(dir, "nested", "reports", "TEST-suite.xml"))
}

func TestAggregator_LogLines(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	a := junit.New(junit.WithDest("out"), junit.WithWriter(newMemWriter()), junit.WithLogger(zap.New(core)))

	a.Spawn("a.html")
	require.NoError(t, a.Done(0, 0, 0, 0))
	a.Spawn("b.html")
	require.NoError(t, a.Timeout())

	var messages []string
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
	}

	assert.Equal(t, []string{
		"XML reports will be written to out",
		"Writing results to " + filepath.Join("out", "TEST-a.xml"),
		"Writing timeout report to " + filepath.Join("out", "TEST-b.xml"),
	}, messages)
}
