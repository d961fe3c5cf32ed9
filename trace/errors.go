package trace

import "github.com/samber/oops"

// Error codes attached to loader failures.
const (
	// CodeMalformedInput marks a source that cannot be parsed as a table.
	CodeMalformedInput = "malformed_input"
	// CodeEmptySource marks a source that parsed but yielded zero data rows.
	CodeEmptySource = "empty_source"
)

func IsMalformedInput(err error) bool {
	return hasCode(err, CodeMalformedInput)
}

func IsEmptySource(err error) bool {
	return hasCode(err, CodeEmptySource)
}

func hasCode(err error, code string) bool {
	if o, ok := oops.AsOops(err); ok {
		return o.Code() == code
	}
	return false
}
