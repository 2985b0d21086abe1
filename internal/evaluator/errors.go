package evaluator

import (
	"errors"
	"fmt"
)

var (
	// ErrDataGap means the feed returned no closed bar; the cycle is skipped.
	ErrDataGap = errors.New("evaluator: no bars to evaluate")

	// ErrUndecidable means the series is too short for the decision columns.
	ErrUndecidable = errors.New("evaluator: decision columns unavailable")
)

// ExternalError is a failure of a collaborator (feed, order placer).
type ExternalError struct {
	Collaborator string
	Err          error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Collaborator, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

func external(collaborator string, err error) error {
	return &ExternalError{Collaborator: collaborator, Err: err}
}

// Skipped reports whether err only means there was nothing to decide on.
func Skipped(err error) bool {
	return errors.Is(err, ErrDataGap) || errors.Is(err, ErrUndecidable)
}
