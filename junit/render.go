package junit

import (
	"strconv"
	"strings"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n<testsuites>\n"

// TimeoutMessage is reported when a subject never signalled completion.
const TimeoutMessage = "Test timed out, possibly due to a missing QUnit.start() call."

// Render produces the JUnit XML document for a run. Every module becomes a
// testsuite named after classname; test names are prefixed with their
// module name.
func Render(classname string, modules []ModuleRecord) string {
	var sb strings.Builder

	name := Escape(classname)

	sb.WriteString(xmlHeader)

	for _, module := range modules {
		sb.WriteString("\t<testsuite")
		writeAttr(&sb, "name", name)
		writeAttr(&sb, "errors", strconv.Itoa(module.Errored))
		writeAttr(&sb, "failures", strconv.Itoa(module.Failed))
		writeAttr(&sb, "tests", strconv.Itoa(len(module.Tests)))
		sb.WriteString(">\n")

		for _, test := range module.Tests {
			sb.WriteString("\t\t<testcase")
			writeAttr(&sb, "classname", name)
			writeAttr(&sb, "name", Escape(module.Name+": "+test.Name))
			writeAttr(&sb, "assertions", strconv.Itoa(test.Total))
			sb.WriteString(">\n")

			for _, log := range test.Logs {
				writeLog(&sb, log)
			}

			sb.WriteString("\t\t</testcase>\n")
		}

		sb.WriteString("\t</testsuite>\n")
	}

	sb.WriteString("</testsuites>\n")

	return sb.String()
}

// RenderTimeout produces the fixed single-error document written when a
// subject timed out.
func RenderTimeout(classname string) string {
	var sb strings.Builder

	name := Escape(classname)

	sb.WriteString(xmlHeader)
	sb.WriteString("\t<testsuite")
	writeAttr(&sb, "name", name)
	sb.WriteString(` errors="1" failures="0" tests="1">` + "\n")
	sb.WriteString("\t\t<testcase")
	writeAttr(&sb, "classname", name)
	sb.WriteString(` name="main" assertions="1">` + "\n")
	sb.WriteString("\t\t\t<error type=\"timeout\"")
	writeAttr(&sb, "message", Escape(TimeoutMessage))
	sb.WriteString("></error>\n")
	sb.WriteString("\t\t</testcase>\n")
	sb.WriteString("\t</testsuite>\n")
	sb.WriteString("</testsuites>\n")

	return sb.String()
}

func writeLog(sb *strings.Builder, log AssertionLog) {
	tag := string(log.Kind)
	if tag == "" {
		tag = string(KindFailure)
	}

	sb.WriteString("\t\t\t<" + tag + ` type="failed"`)
	writeAttr(sb, "message", Escape(log.Message))
	sb.WriteString(">\n")

	if log.StackTrace != "" {
		sb.WriteString("\t" + Escape(log.StackTrace) + "\n")
	}

	sb.WriteString("\t\t\t</" + tag + ">\n")
}

// writeAttr writes ` key="value"`. value must already be escaped.
func writeAttr(sb *strings.Builder, key, value string) {
	sb.WriteString(" " + key + `="` + value + `"`)
}
