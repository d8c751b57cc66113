package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"sync2notion/internal/batch"
)

// Runner executes one batch. *batch.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, sub batch.Submission) (batch.State, error)
}

// Manager keeps batch states in memory and runs batches in the background
type Manager struct {
	mu                sync.RWMutex
	batches           map[string]batch.State
	allowedExtensions []string
	semaphore         chan struct{}
	runner            Runner
	staging           StagingStore
	workersWG         sync.WaitGroup
	baseCtx           context.Context
}

// NewManager creates a manager that hands batches to runner
func NewManager(runner Runner, opts Options) *Manager {
	if opts.MaxConcurrentBatches <= 0 {
		opts.MaxConcurrentBatches = defaultMaxConcurrent
	}
	return &Manager{
		batches:           make(map[string]batch.State),
		allowedExtensions: opts.AllowedExtensions,
		semaphore:         make(chan struct{}, opts.MaxConcurrentBatches),
		runner:            runner,
		staging:           NewFileStaging(opts.DataDir),
		baseCtx:           context.Background(),
	}
}

// IsBusy reports whether the system is currently at max concurrent processing
func (m *Manager) IsBusy() bool {
	return len(m.semaphore) >= cap(m.semaphore)
}

// Get returns a snapshot of a batch by ID
func (m *Manager) Get(batchID string) (batch.State, bool) {
	m.mu.RLock()
	state, found := m.batches[batchID]
	m.mu.RUnlock()
	if !found {
		return batch.State{}, false
	}
	return state.Snapshot(), true
}

// Submit validates the input, stages uploaded files and starts the batch in
// the background. The returned state has no results yet.
func (m *Manager) Submit(in Input) (batch.State, error) {
	if len(in.Files) > 0 && in.URL != "" {
		return batch.State{}, ErrFilesAndURL
	}
	if len(in.Files) > MaxFilesPerBatch {
		return batch.State{}, ErrTooManyFiles
	}
	var urlSource batch.Source
	if in.URL != "" {
		src, err := batch.NewURLSource(in.URL)
		if err != nil {
			return batch.State{}, err //nolint:wrapcheck
		}
		urlSource = src
	}
	wanted := len(in.Files)
	if in.URL != "" {
		wanted = 1
	}
	if err := batch.Validate(make([]batch.Job, wanted), in.Credentials); err != nil {
		return batch.State{}, err //nolint:wrapcheck
	}

	select {
	case m.semaphore <- struct{}{}:
	default:
		return batch.State{}, ErrBusy
	}

	batchID := uuid.NewString()
	var sources []batch.Source
	if in.URL != "" {
		sources = []batch.Source{urlSource}
	} else {
		staged, err := m.stageFiles(batchID, in.Files)
		if err != nil {
			<-m.semaphore
			m.removeStaging(batchID)
			return batch.State{}, err
		}
		sources = staged
	}

	initial := batch.State{ID: batchID, Jobs: batch.BuildJobs(sources), StartedAt: time.Now()}
	m.update(initial)

	m.workersWG.Add(1)
	go func() {
		defer m.workersWG.Done()
		defer func() { <-m.semaphore }()
		m.process(batch.Submission{
			ID:          batchID,
			Jobs:        initial.Jobs,
			Credentials: in.Credentials,
			Subscriber:  m.update,
		})
	}()

	return initial.Snapshot(), nil
}

func (m *Manager) process(sub batch.Submission) {
	defer m.removeStaging(sub.ID)

	if _, err := m.runner.Run(m.baseContext(), sub); err != nil {
		log.Error().Str("batch_id", sub.ID).Err(err).Msg("batch rejected")
		m.mu.Lock()
		state := m.batches[sub.ID]
		state.FinishedAt = time.Now()
		state.Canceled = true
		m.batches[sub.ID] = state
		m.mu.Unlock()
	}
}

func (m *Manager) stageFiles(batchID string, files []Upload) ([]batch.Source, error) {
	sources := make([]batch.Source, 0, len(files))
	for i, upload := range files {
		path, err := m.staging.Stage(m.baseContext(), batchID, i, upload.Name, upload.Content)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		src, err := batch.NewFileSource(path, m.allowedExtensions)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func (m *Manager) removeStaging(batchID string) {
	if err := m.staging.Remove(batchID); err != nil {
		log.Warn().Str("batch_id", batchID).Err(err).Msg("remove staging failed")
	}
}

// update is the orchestrator subscriber; it receives snapshots already.
func (m *Manager) update(state batch.State) {
	m.mu.Lock()
	m.batches[state.ID] = state
	m.mu.Unlock()
}

func (m *Manager) baseContext() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.baseCtx == nil {
		return context.Background()
	}
	return m.baseCtx
}

// SetBaseContext sets the context running batches derive from.
// Cancelling it during shutdown stops batches before their next upload.
func (m *Manager) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

// WaitAll blocks until all in-flight batch workers finish or the context is done.
// Returns true if all workers finished, false if timed out.
func (m *Manager) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		m.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// IsInputError reports whether err is the caller's fault rather than the server's.
func IsInputError(err error) bool {
	var verr *batch.ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, batch.ErrInvalidURL) ||
		errors.Is(err, ErrFilesAndURL) ||
		errors.Is(err, ErrTooManyFiles) ||
		errors.Is(err, batch.ErrExtNotAllowed)
}

// AllowedExtensions lists the file extensions accepted for staged uploads.
func (m *Manager) AllowedExtensions() []string {
	return append([]string(nil), m.allowedExtensions...)
}
