package task

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// CleanStaleStaging removes files staged by a previous run. Batches are not
// persisted, so nothing can resume them.
func (m *Manager) CleanStaleStaging() error {
	if m.staging == nil {
		return nil
	}
	ids, err := m.staging.List()
	if err != nil {
		return fmt.Errorf("list staging: %w", err)
	}
	for _, id := range ids {
		m.mu.RLock()
		_, live := m.batches[id]
		m.mu.RUnlock()
		if live {
			continue
		}
		if err := m.staging.Remove(id); err != nil {
			log.Warn().Str("batch_id", id).Err(err).Msg("remove stale staging failed")
			continue
		}
		log.Info().Str("batch_id", id).Msg("removed stale staging")
	}
	return nil
}
