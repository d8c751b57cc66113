package credentials

import (
	"fmt"
	"path/filepath"
	"strings"

	"sync2notion/internal/config"
)

// Namespace is the fixed key the last-used credentials are stored under.
const Namespace = "sync2notion_config"

// StoredConfig is the last-used credential set, persisted before every batch.
type StoredConfig struct {
	Token        string `json:"token"`
	CollectionID string `json:"dbId"`
	Tags         string `json:"tags"`
}

// Store abstracts persistence of the credential cache.
// Load reports false when nothing usable is stored, including malformed
// payloads; it never fails. Save overwrites the record in place.
type Store interface {
	Load() (StoredConfig, bool)
	Save(cfg StoredConfig) error
}

// Open returns the store for the configured backend rooted at dataDir.
func Open(backend, dataDir string) (Store, error) { //nolint:ireturn
	if dataDir == "" {
		dataDir = "data"
	}
	switch backend {
	case "", config.StoreFile:
		return NewFileStore(filepath.Join(dataDir, Namespace+".json")), nil
	case config.StoreBolt:
		return NewBoltStore(filepath.Join(dataDir, "sync2notion.db")), nil
	default:
		return nil, fmt.Errorf("unknown credential store %q", backend)
	}
}

// usable reports whether the record carries credentials. A decoded null or
// unrelated object yields an empty record and counts as malformed.
func (c StoredConfig) usable() bool {
	return c.Token != "" || c.CollectionID != ""
}

// MaskedToken hides all but the last four characters of the token.
func (c StoredConfig) MaskedToken() string {
	const visible = 4
	if len(c.Token) <= visible {
		return strings.Repeat("*", len(c.Token))
	}
	return strings.Repeat("*", len(c.Token)-visible) + c.Token[len(c.Token)-visible:]
}
