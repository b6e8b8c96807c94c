package search

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("medicine not found")
	ErrInvalidQuery = errors.New("invalid query")
)

// NotFoundError reports a reference medicine missing from the name index.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("medicine %q not found", e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InvalidQueryError reports input a search cannot run with.
type InvalidQueryError struct {
	Query  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query %q: %s", e.Query, e.Reason)
}

func (e *InvalidQueryError) Is(target error) bool {
	return target == ErrInvalidQuery
}
