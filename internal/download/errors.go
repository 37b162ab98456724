package download

import "errors"

var (
	// ErrNotFound indicates that no configured repository could serve a file.
	ErrNotFound = errors.New("artifact not found in any repository")
	// ErrInvalidContent indicates a downloaded file that failed validation.
	ErrInvalidContent = errors.New("invalid content")
)
