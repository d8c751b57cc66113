package task

import "errors"

var (
	ErrBusy          = errors.New("another batch is still running")
	ErrBatchNotFound = errors.New("batch not found")
	ErrFilesAndURL   = errors.New("provide either files or a url, not both")
	ErrTooManyFiles  = errors.New("too many files: max 50 per batch")
)
