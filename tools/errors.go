package tools

import "github.com/samber/oops"

// CodeToolUnavailable tags failures where a tracy tool can run in no
// requested backend.
const CodeToolUnavailable = "tool_unavailable"

func IsToolUnavailable(err error) bool {
	if oopsErr, ok := oops.AsOops(err); ok {
		return oopsErr.Code() == CodeToolUnavailable
	}
	return false
}
