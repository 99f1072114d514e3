package junit

import "strings"

// escaper replaces XML-significant characters in a single pass, so the
// entities it produces are never escaped a second time.
var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// Escape returns value with &, <, > and " replaced by their XML entities.
func Escape(value string) string {
	return escaper.Replace(value)
}
