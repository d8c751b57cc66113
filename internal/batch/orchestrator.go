package batch

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"sync2notion/internal/classify"
	"sync2notion/internal/credentials"
	"sync2notion/internal/remote"
)

// DefaultDelay is the pause between two consecutive uploads.
const DefaultDelay = 500 * time.Millisecond

// Uploader sends one encoded form to the conversion service.
type Uploader interface {
	Upload(ctx context.Context, form *remote.Form) (*remote.Response, error)
}

// Recorder receives per-outcome and per-batch observations.
type Recorder interface {
	ObserveOutcome(kind classify.Kind)
	ObserveBatch(verdict string, elapsed time.Duration)
}

// Subscriber is called with a snapshot after start, after each result and at finish.
type Subscriber func(State)

type Options struct {
	Delay    time.Duration
	Recorder Recorder
}

// Submission describes a batch to run. An empty ID gets a fresh uuid.
type Submission struct {
	ID          string
	Jobs        []Job
	Credentials credentials.StoredConfig
	Subscriber  Subscriber
}

// Orchestrator runs batches one job at a time.
type Orchestrator struct {
	uploader   Uploader
	classifier *classify.Classifier
	cache      credentials.Store
	delay      time.Duration
	recorder   Recorder

	// test hooks
	sleep  func(ctx context.Context, d time.Duration) error
	encode func(req remote.Request) (*remote.Form, error)
	now    func() time.Time
}

// New wires an orchestrator. cache may be nil, in which case credentials are not persisted.
func New(uploader Uploader, classifier *classify.Classifier, cache credentials.Store, opts Options) *Orchestrator {
	if classifier == nil {
		classifier = classify.New(nil, nil)
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Orchestrator{
		uploader:   uploader,
		classifier: classifier,
		cache:      cache,
		delay:      opts.Delay,
		recorder:   recorder,
		sleep:      sleepContext,
		encode:     remote.EncodeForm,
		now:        time.Now,
	}
}

// Validate checks the preconditions of a submission without side effects.
func Validate(jobs []Job, creds credentials.StoredConfig) error {
	var missing []string
	if len(jobs) == 0 {
		missing = append(missing, "files or url")
	}
	if strings.TrimSpace(creds.Token) == "" {
		missing = append(missing, "token")
	}
	if strings.TrimSpace(creds.CollectionID) == "" {
		missing = append(missing, "database id")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// SubmitBatch runs jobs with creds and returns the final state.
func (o *Orchestrator) SubmitBatch(ctx context.Context, jobs []Job, creds credentials.StoredConfig) (State, error) {
	return o.Run(ctx, Submission{Jobs: jobs, Credentials: creds})
}

// Run validates the submission, saves its credentials and uploads every job
// in SequenceIndex order. It stops early on a fatal outcome or when ctx is
// done. The only error it returns is a *ValidationError.
func (o *Orchestrator) Run(ctx context.Context, sub Submission) (State, error) {
	if err := Validate(sub.Jobs, sub.Credentials); err != nil {
		return State{}, err
	}

	id := sub.ID
	if id == "" {
		id = uuid.NewString()
	}
	jobs := slices.Clone(sub.Jobs)
	slices.SortStableFunc(jobs, func(a, b Job) int { return a.SequenceIndex - b.SequenceIndex })

	state := State{
		ID:        id,
		Jobs:      jobs,
		Results:   make([]Result, 0, len(jobs)),
		StartedAt: o.now(),
	}
	notify := func() {
		if sub.Subscriber != nil {
			sub.Subscriber(state.Snapshot())
		}
	}

	if o.cache != nil {
		if err := o.cache.Save(sub.Credentials); err != nil {
			log.Warn().Str("batch_id", id).Err(err).Msg("saving credentials failed, continuing")
		}
	}
	log.Info().Str("batch_id", id).Int("jobs", len(jobs)).Msg("batch started")
	notify()

	for state.Cursor < len(state.Jobs) {
		if state.Cursor > 0 {
			if err := o.sleep(ctx, o.delay); err != nil {
				state.Canceled = true
				break
			}
		}
		if ctx.Err() != nil {
			state.Canceled = true
			break
		}

		job := state.Jobs[state.Cursor]
		outcome := o.runJob(ctx, job, sub.Credentials)
		state.record(job, outcome)
		o.recorder.ObserveOutcome(outcome.Kind)

		evt := log.Info()
		if !outcome.IsSuccess() {
			evt = log.Warn()
		}
		evt.Str("batch_id", id).
			Int("index", job.SequenceIndex).
			Str("item", job.Source.DisplayName()).
			Str("kind", string(outcome.Kind)).
			Str("message", outcome.Message).
			Msg("upload classified")
		notify()

		if outcome.IsFatal() {
			state.Aborted = true
			break
		}
	}

	state.FinishedAt = o.now()
	verdict := state.Verdict()
	o.recorder.ObserveBatch(string(verdict), state.FinishedAt.Sub(state.StartedAt))
	log.Info().
		Str("batch_id", id).
		Str("verdict", string(verdict)).
		Int("succeeded", state.SuccessCount).
		Int("failed", state.FailureCount).
		Int("total", len(state.Jobs)).
		Msg("batch finished")
	notify()

	return state.Snapshot(), nil
}

func (o *Orchestrator) runJob(ctx context.Context, job Job, creds credentials.StoredConfig) classify.Outcome {
	name := job.Source.DisplayName()
	form, err := o.prepare(job, creds)
	if err != nil {
		return o.classifier.Classify(classify.RawResult{Name: name, PrepareErr: err})
	}
	resp, err := o.uploader.Upload(ctx, form)
	return o.classifier.Classify(classify.RawResult{Name: name, Response: resp, Err: err})
}

// prepare encodes the request body for job. Panics are turned into errors
// so one bad item cannot take the batch down.
func (o *Orchestrator) prepare(job Job, creds credentials.StoredConfig) (form *remote.Form, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Int("index", job.SequenceIndex).Interface("panic", r).Msg("recovered while preparing upload")
			form, err = nil, fmt.Errorf("%w: %v", ErrPreparePanic, r)
		}
	}()

	req := remote.Request{
		Token:        creds.Token,
		CollectionID: creds.CollectionID,
		Tags:         creds.Tags,
	}
	if job.Source.Kind == SourceURL {
		req.URL = job.Source.URL
		return o.encode(req)
	}

	f, err := os.Open(job.Source.Path)
	if err != nil {
		return nil, err //nolint:wrapcheck // *PathError already names the file
	}
	defer func() { _ = f.Close() }()
	req.FileName = job.Source.Name
	req.ContentType = job.Source.MIME
	req.Content = f
	return o.encode(req)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noopRecorder struct{}

func (noopRecorder) ObserveOutcome(classify.Kind) {}
func (noopRecorder) ObserveBatch(string, time.Duration) {}
