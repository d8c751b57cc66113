package credentials

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"

	fileutil "sync2notion/internal/file"
)

// FileStore keeps the credential record as a single JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (StoredConfig, bool) {
	var cfg StoredConfig
	if err := fileutil.ReadJSON(s.path, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("path", s.path).Err(err).Msg("ignoring unreadable credential cache")
		}
		return StoredConfig{}, false
	}
	if !cfg.usable() {
		log.Warn().Str("path", s.path).Msg("ignoring empty credential cache")
		return StoredConfig{}, false
	}
	return cfg, true
}

func (s *FileStore) Save(cfg StoredConfig) error {
	return fileutil.WriteJSONAtomic(s.path, cfg) //nolint:wrapcheck
}
