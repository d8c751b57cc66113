package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"

	fileutil "sync2notion/internal/file"
)

const boltOpenTimeout = time.Second

var bucketName = []byte("sync2notion")

// BoltStore keeps the credential record in a bbolt database under the
// Namespace key. The database is opened per call so that the CLI and a
// running server can share the same file.
type BoltStore struct {
	path string
}

func NewBoltStore(path string) *BoltStore {
	return &BoltStore{path: path}
}

func (s *BoltStore) Load() (StoredConfig, bool) {
	if _, err := os.Stat(s.path); err != nil {
		return StoredConfig{}, false
	}
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: boltOpenTimeout, ReadOnly: true})
	if err != nil {
		log.Warn().Str("path", s.path).Err(err).Msg("open credential cache failed")
		return StoredConfig{}, false
	}
	defer func() { _ = db.Close() }()

	var raw []byte
	_ = db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return nil
		}
		if v := bucket.Get([]byte(Namespace)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if raw == nil {
		return StoredConfig{}, false
	}

	var cfg StoredConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		log.Warn().Str("path", s.path).Err(err).Msg("ignoring malformed credential record")
		return StoredConfig{}, false
	}
	if !cfg.usable() {
		log.Warn().Str("path", s.path).Msg("ignoring empty credential record")
		return StoredConfig{}, false
	}
	return cfg, true
}

func (s *BoltStore) Save(cfg StoredConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	return s.put(data)
}

func (s *BoltStore) put(data []byte) error {
	if err := fileutil.EnsureDir(filepath.Dir(s.path)); err != nil {
		return err
	}
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return fmt.Errorf("credential cache %s is locked by another process: %w", s.path, err)
		}
		return fmt.Errorf("open credential cache: %w", err)
	}
	defer func() { _ = db.Close() }()

	err = db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(Namespace), data)
	})
	if err != nil {
		return fmt.Errorf("write credential cache: %w", err)
	}
	return nil
}
