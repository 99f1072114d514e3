package junit

import "regexp"

// Kind distinguishes assertion failures from script errors. Its value is
// used verbatim as the XML element name.
type Kind string

// Kind constants.
const (
	KindFailure Kind = "failure"
	KindError   Kind = "error"
)

// diedOnTest matches the message QUnit produces when a test throws:
//
//	Died on test #3 <stack...>foo.js:42: TypeError: x is not a function
var diedOnTest = regexp.MustCompile(`(Died on test #[0-9]+)[ \t]+([\s\S]*)[0-9]+: ([^\r\n]*)`)

// Classification is the outcome of Classify.
type Classification struct {
	Kind       Kind
	Message    string
	StackTrace string
}

// Classify inspects a failed assertion message. Messages reporting that the
// test script died are reclassified as errors, with the message shortened to
// "Died on test #N: <reason>" and the text in between kept as stack trace.
// Everything else is a plain failure without a stack trace.
func Classify(message string) Classification {
	match := diedOnTest.FindStringSubmatch(message)
	if match == nil {
		return Classification{Kind: KindFailure, Message: message}
	}

	return Classification{
		Kind:       KindError,
		Message:    match[1] + ": " + match[3],
		StackTrace: match[2],
	}
}
