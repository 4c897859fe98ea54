package plan

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownQuery is returned for a question id outside the catalog.
	ErrUnknownQuery = errors.New("unknown query")

	// ErrUnknownView is returned for a chart view name outside the catalog.
	ErrUnknownView = errors.New("unknown view")

	// ErrUnknownTable is returned for a table that is not part of the dataset.
	ErrUnknownTable = errors.New("unknown table")

	// ErrDataAccess wraps connectivity and driver failures.
	ErrDataAccess = errors.New("data access failed")

	// ErrSyntax wraps malformed or rejected ad-hoc query text.
	ErrSyntax = errors.New("syntax error")
)

// SyntaxError describes a problem with ad-hoc query text. Pos is a byte
// offset into the text, or -1 when the problem is not tied to a position.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("syntax error: %s", e.Msg)
	}
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// Syntaxf builds a SyntaxError.
func Syntaxf(pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
