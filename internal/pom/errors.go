package pom

import "errors"

var (
	// ErrInvalidDescriptor indicates a descriptor that is absent, not well formed or lacks an artifactId.
	ErrInvalidDescriptor = errors.New("invalid descriptor")
	// ErrInvalidMetadata indicates an unparseable metadata document.
	ErrInvalidMetadata = errors.New("invalid metadata")
)
