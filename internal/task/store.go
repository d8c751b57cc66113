package task

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	fileutil "sync2notion/internal/file"
)

// StagingStore holds uploaded browser files on disk while their batch runs.
type StagingStore interface {
	Stage(ctx context.Context, batchID string, index int, name string, content io.Reader) (string, error)
	Remove(batchID string) error
	List() ([]string, error)
}

// fileStaging implements StagingStore under <dataDir>/staging.
type fileStaging struct {
	dataDir string
}

func NewFileStaging(dataDir string) StagingStore { //nolint:ireturn
	if dataDir == "" {
		dataDir = "data"
	}
	return &fileStaging{dataDir: dataDir}
}

func (s *fileStaging) root() string {
	return filepath.Join(s.dataDir, "staging")
}

func (s *fileStaging) batchDir(batchID string) string {
	return filepath.Join(s.root(), batchID)
}

// Stage copies content to staging/<batch>/<index>/<name> so the original
// file name survives for the upload.
func (s *fileStaging) Stage(ctx context.Context, batchID string, index int, name string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err //nolint:wrapcheck
	}
	dir := filepath.Join(s.batchDir(batchID), strconv.Itoa(index))
	if err := fileutil.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("ensure staging dir: %w", err)
	}
	dest := filepath.Join(dir, safeName(name))
	if err := fileutil.CopyAtomic(dest, content); err != nil {
		return "", fmt.Errorf("stage %s: %w", name, err)
	}
	return dest, nil
}

func (s *fileStaging) Remove(batchID string) error {
	if err := os.RemoveAll(s.batchDir(batchID)); err != nil {
		return fmt.Errorf("remove staging: %w", err)
	}
	return nil
}

// List returns the batch ids that still have staged files.
func (s *fileStaging) List() ([]string, error) {
	entries, err := os.ReadDir(s.root())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// safeName strips any directory part a browser may send along.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "upload"
	}
	return name
}
