package batch

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceURL  SourceKind = "url"
)

// Source is what a single job uploads: a local file or a remote URL.
type Source struct {
	Kind SourceKind `json:"kind"`
	Path string     `json:"-"`
	Name string     `json:"name,omitempty"`
	Size int64      `json:"size,omitempty"`
	MIME string     `json:"mime,omitempty"`
	URL  string     `json:"url,omitempty"`
}

// DisplayName is the label shown next to the item's outcome.
func (s Source) DisplayName() string {
	if s.Kind == SourceURL {
		return s.URL
	}
	return s.Name
}

// Job is one immutable unit of work inside a batch.
type Job struct {
	Source        Source `json:"source"`
	SequenceIndex int    `json:"sequence_index"`
}

// NewFileSource stats the file at path and sniffs its content type. An empty
// allowed list accepts any extension.
func NewFileSource(path string, allowed []string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if len(allowed) > 0 && !extensionAllowed(ext, allowed) {
		return Source{}, NewErrExtNotAllowed(ext)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Source{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("%s: %w", path, ErrIsDirectory)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("detect type of %s: %w", path, err)
	}
	return Source{
		Kind: SourceFile,
		Path: path,
		Name: filepath.Base(path),
		Size: info.Size(),
		MIME: mtype.String(),
	}, nil
}

// NewURLSource accepts a single absolute http(s) URL.
func NewURLSource(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Source{}, ErrInvalidURL
	}
	return Source{Kind: SourceURL, URL: raw}, nil
}

// BuildJobs numbers the sources in the given order.
func BuildJobs(sources []Source) []Job {
	jobs := make([]Job, len(sources))
	for i, src := range sources {
		jobs[i] = Job{Source: src, SequenceIndex: i}
	}
	return jobs
}

func extensionAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		a = strings.ToLower(a)
		if !strings.HasPrefix(a, ".") {
			a = "." + a
		}
		if a == ext {
			return true
		}
	}
	return false
}
