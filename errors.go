package quiktracy

import "github.com/samber/oops"

// CodeInsufficientSources tags comparison requests carrying fewer than two
// sources.
const CodeInsufficientSources = "insufficient_sources"

func IsInsufficientSources(err error) bool {
	if oopsErr, ok := oops.AsOops(err); ok {
		return oopsErr.Code() == CodeInsufficientSources
	}
	return false
}
