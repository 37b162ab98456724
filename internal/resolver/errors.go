package resolver

import "errors"

var (
	// ErrIterationLimit indicates that discovery exceeded its iteration budget, usually because of a cycle.
	ErrIterationLimit = errors.New("dependency discovery exceeded iteration limit")
	// ErrVersionUnresolved indicates that no management entry or metadata produced a version.
	ErrVersionUnresolved = errors.New("unable to resolve version")
)
