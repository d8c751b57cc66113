package task

import (
	"io"

	"sync2notion/internal/credentials"
)

// Upload is one file received from a browser form.
type Upload struct {
	Name    string
	Content io.Reader
}

// Input is a batch request as collected by the HTTP layer. Files and URL
// are mutually exclusive.
type Input struct {
	Files       []Upload
	URL         string
	Credentials credentials.StoredConfig
}

type Options struct {
	DataDir              string
	AllowedExtensions    []string
	MaxConcurrentBatches int
}

const (
	MaxFilesPerBatch     = 50
	defaultMaxConcurrent = 1
)
