package relocation

import "errors"

var (
	// ErrNoOutput indicates the relocation tool returned without producing its output file.
	ErrNoOutput = errors.New("relocation tool produced no output")
	// ErrInvalidRule indicates a rule with an empty pattern or target.
	ErrInvalidRule = errors.New("invalid relocation rule")
)
