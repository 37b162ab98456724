package coords

import "errors"

var (
	// ErrInvalidCoordinate indicates a malformed coordinate string or an empty required field.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)
