package batch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExtNotAllowed = errors.New("extension not allowed")
	ErrInvalidURL    = errors.New("please enter a valid URL starting with http:// or https://")
	ErrIsDirectory   = errors.New("is a directory")
	ErrPreparePanic  = errors.New("unexpected failure while preparing upload")
)

func NewErrExtNotAllowed(ext string) error { return fmt.Errorf("%w: %s", ErrExtNotAllowed, ext) }

// ValidationError is returned before any request is sent.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "Please fill in all required fields"
}

// Detail lists the missing inputs, for logs.
func (e *ValidationError) Detail() string {
	return "missing " + strings.Join(e.Missing, ", ")
}
