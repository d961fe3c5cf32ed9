package report

import "github.com/samber/oops"

// CodePersistence marks artifact write or read failures. Callers must not
// assume a partially written artifact is recoverable.
const CodePersistence = "persistence"

func IsPersistence(err error) bool {
	if o, ok := oops.AsOops(err); ok {
		return o.Code() == CodePersistence
	}
	return false
}
