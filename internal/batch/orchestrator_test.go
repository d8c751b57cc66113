package batch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sync2notion/internal/classify"
	"sync2notion/internal/credentials"
	"sync2notion/internal/remote"
)

var testCreds = credentials.StoredConfig{Token: "secret_abc", CollectionID: "0f3c8e8a-6f0e-4b8e-9a3c-2f1d2b7c9e11", Tags: "docs,import"}

type reply struct {
	resp *remote.Response
	err  error
}

func jsonReply(status int, body string) reply {
	return reply{resp: &remote.Response{StatusCode: status, Body: []byte(body), Payload: remote.DecodePayload([]byte(body))}}
}

var okReply = jsonReply(http.StatusOK, `{"success":true,"data":{"page_id":"p","page_url":"https://notion.so/p"}}`)

type scriptedUploader struct {
	mu      sync.Mutex
	replies []reply
	forms   []*remote.Form
}

func (u *scriptedUploader) Upload(_ context.Context, form *remote.Form) (*remote.Response, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.forms = append(u.forms, form)
	r := u.replies[len(u.forms)-1]
	return r.resp, r.err
}

func (u *scriptedUploader) calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.forms)
}

type fakeRecorder struct {
	outcomes map[classify.Kind]int
	verdicts []string
}

func (r *fakeRecorder) ObserveOutcome(kind classify.Kind) {
	if r.outcomes == nil {
		r.outcomes = map[classify.Kind]int{}
	}
	r.outcomes[kind]++
}

func (r *fakeRecorder) ObserveBatch(verdict string, _ time.Duration) {
	r.verdicts = append(r.verdicts, verdict)
}

type harness struct {
	orch     *Orchestrator
	uploader *scriptedUploader
	cache    credentials.Store
	recorder *fakeRecorder
	sleeps   []time.Duration
}

func newHarness(t *testing.T, replies ...reply) *harness {
	t.Helper()
	h := &harness{
		uploader: &scriptedUploader{replies: replies},
		cache:    credentials.NewFileStore(filepath.Join(t.TempDir(), credentials.Namespace+".json")),
		recorder: &fakeRecorder{},
	}
	h.orch = New(h.uploader, classify.New(nil, nil), h.cache, Options{Delay: DefaultDelay, Recorder: h.recorder})
	h.orch.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err()
	}
	return h
}

func urlJobs(t *testing.T, n int) []Job {
	t.Helper()
	sources := make([]Source, n)
	for i := range sources {
		src, err := NewURLSource("https://example.org/doc-" + string(rune('a'+i)))
		require.NoError(t, err)
		sources[i] = src
	}
	return BuildJobs(sources)
}

func assertInvariants(t *testing.T, s State) {
	t.Helper()
	assert.Equal(t, len(s.Results), s.SuccessCount+s.FailureCount)
	assert.LessOrEqual(t, len(s.Results), len(s.Jobs))
	for i, r := range s.Results {
		assert.Equal(t, i, r.Job.SequenceIndex)
		if r.Outcome.IsFatal() {
			assert.Len(t, s.Results, i+1, "nothing may follow a fatal outcome")
		}
	}
}

func TestAllJobsSucceed(t *testing.T) {
	h := newHarness(t, okReply, okReply, okReply)

	state, err := h.orch.SubmitBatch(context.Background(), urlJobs(t, 3), testCreds)
	require.NoError(t, err)

	assertInvariants(t, state)
	assert.Equal(t, 3, state.SuccessCount)
	assert.Equal(t, 0, state.FailureCount)
	assert.Equal(t, VerdictSucceeded, state.Verdict())
	assert.True(t, state.Done())
	assert.Equal(t, []time.Duration{DefaultDelay, DefaultDelay}, h.sleeps)
	assert.Equal(t, 3, h.recorder.outcomes[classify.KindSuccess])
	assert.Equal(t, []string{"succeeded"}, h.recorder.verdicts)
}

func TestRecoverableFailureContinues(t *testing.T) {
	h := newHarness(t, okReply, jsonReply(http.StatusBadRequest, `{"success":false,"error":{"message":"unrelated error"}}`), okReply)

	state, err := h.orch.SubmitBatch(context.Background(), urlJobs(t, 3), testCreds)
	require.NoError(t, err)

	assertInvariants(t, state)
	require.Len(t, state.Results, 3)
	assert.Equal(t, 2, state.SuccessCount)
	assert.Equal(t, 1, state.FailureCount)
	assert.Equal(t, classify.KindRecoverable, state.Results[1].Outcome.Kind)
	assert.Equal(t, "unrelated error", state.Results[1].Outcome.Message)
	assert.False(t, state.Aborted)
	assert.Equal(t, VerdictPartial, state.Verdict())
}

func TestFatalFailureAbortsBatch(t *testing.T) {
	h := newHarness(t, jsonReply(http.StatusUnauthorized, `{"success":false,"error":{"message":"credential invalid"}}`), okReply, okReply)

	state, err := h.orch.SubmitBatch(context.Background(), urlJobs(t, 3), testCreds)
	require.NoError(t, err)

	assertInvariants(t, state)
	require.Len(t, state.Results, 1)
	assert.True(t, state.Aborted)
	assert.Equal(t, 1, h.uploader.calls(), "later jobs must never be sent")
	assert.Empty(t, h.sleeps)
	assert.Equal(t, 0, state.SuccessCount)
	assert.Equal(t, VerdictAborted, state.Verdict())

	fatal, ok := state.FatalOutcome()
	require.True(t, ok)
	assert.Equal(t, "credential invalid", fatal.Message)
	assert.True(t, fatal.HelpReference)

	// credentials are kept even though the batch failed
	saved, found := h.cache.Load()
	require.True(t, found)
	assert.Equal(t, testCreds, saved)
}

func TestFatalInTheMiddleKeepsEarlierResults(t *testing.T) {
	h := newHarness(t, okReply, jsonReply(http.StatusBadRequest, `{"error":{"message":"collection id must be a valid unique identifier"}}`), okReply, okReply)

	state, err := h.orch.SubmitBatch(context.Background(), urlJobs(t, 4), testCreds)
	require.NoError(t, err)

	assertInvariants(t, state)
	assert.Len(t, state.Results, 2)
	assert.Equal(t, 2, h.uploader.calls())
	assert.Equal(t, 1, state.SuccessCount)
	assert.Equal(t, 1, state.FailureCount)
}

func TestSingleJobWithoutResponseIsUnverifiedSuccess(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	h := newHarness(t, reply{err: refused})

	state, err := h.orch.SubmitBatch(context.Background(), urlJobs(t, 1), testCreds)
	require.NoError(t, err)

	require.Len(t, state.Results, 1)
	assert.Equal(t, 1, state.SuccessCount)
	outcome := state.Results[0].Outcome
	assert.True(t, outcome.IsSuccess())
	assert.True(t, outcome.Unverified)
	assert.Empty(t, outcome.Identifier)
	assert.Empty(t, h.sleeps, "a single job is never delayed")
}

func TestValidationFailsFast(t *testing.T) {
	cases := map[string]struct {
		jobs  []Job
		creds credentials.StoredConfig
	}{
		"no jobs":     {nil, testCreds},
		"no token":    {urlJobs(t, 1), credentials.StoredConfig{CollectionID: "db"}},
		"blank db id": {urlJobs(t, 1), credentials.StoredConfig{Token: "t", CollectionID: "  "}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.orch.SubmitBatch(context.Background(), tc.jobs, tc.creds)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "Please fill in all required fields", verr.Error())
			assert.Zero(t, h.uploader.calls())
			_, saved := h.cache.Load()
			assert.False(t, saved, "nothing is persisted before validation passes")
		})
	}
}

func TestPrepareErrorIsRecoverable(t *testing.T) {
	h := newHarness(t, okReply)
	missing := Source{Kind: SourceFile, Path: filepath.Join(t.TempDir(), "gone.pdf"), Name: "gone.pdf"}
	page, err := NewURLSource("https://example.org/page")
	require.NoError(t, err)

	state, err := h.orch.SubmitBatch(context.Background(), BuildJobs([]Source{missing, page}), testCreds)
	require.NoError(t, err)

	require.Len(t, state.Results, 2)
	first := state.Results[0].Outcome
	assert.Equal(t, classify.KindRecoverable, first.Kind)
	assert.Contains(t, first.Message, "Error processing gone.pdf")
	assert.True(t, state.Results[1].Outcome.IsSuccess())
	assert.Equal(t, 1, h.uploader.calls())
}

func TestPreparePanicIsContained(t *testing.T) {
	h := newHarness(t, okReply)
	calls := 0
	h.orch.encode = func(req remote.Request) (*remote.Form, error) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return remote.EncodeForm(req)
	}

	state, err := h.orch.SubmitBatch(context.Background(), urlJobs(t, 2), testCreds)
	require.NoError(t, err)

	require.Len(t, state.Results, 2)
	assert.Equal(t, classify.KindRecoverable, state.Results[0].Outcome.Kind)
	assert.Contains(t, state.Results[0].Outcome.Message, "boom")
	assert.True(t, state.Results[1].Outcome.IsSuccess())
}

func TestCancellationStopsBeforeNextJob(t *testing.T) {
	h := newHarness(t, okReply, okReply, okReply)
	h.orch.sleep = sleepContext
	h.orch.delay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := Submission{
		Jobs:        urlJobs(t, 3),
		Credentials: testCreds,
		Subscriber: func(s State) {
			if len(s.Results) == 1 {
				cancel()
			}
		},
	}

	state, err := h.orch.Run(ctx, sub)
	require.NoError(t, err)

	assertInvariants(t, state)
	assert.True(t, state.Canceled)
	assert.False(t, state.Aborted)
	assert.Len(t, state.Results, 1)
	assert.Equal(t, 1, h.uploader.calls())
	assert.Equal(t, VerdictCanceled, state.Verdict())
}

func TestSubscriberReceivesIndependentSnapshots(t *testing.T) {
	h := newHarness(t, okReply, okReply)
	var seen []State

	state, err := h.orch.Run(context.Background(), Submission{
		ID:          "fixed-id",
		Jobs:        urlJobs(t, 2),
		Credentials: testCreds,
		Subscriber:  func(s State) { seen = append(seen, s) },
	})
	require.NoError(t, err)

	assert.Equal(t, "fixed-id", state.ID)
	// start, one per result, finish
	require.Len(t, seen, 4)
	assert.Empty(t, seen[0].Results)
	assert.Len(t, seen[1].Results, 1)
	assert.False(t, seen[2].Done())
	assert.True(t, seen[3].Done())

	seen[3].Results[0].Outcome.Message = "mutated"
	assert.NotEqual(t, "mutated", state.Results[0].Outcome.Message)
}

func TestResultsFollowSequenceIndex(t *testing.T) {
	var (
		mu       sync.Mutex
		received []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, r.FormValue("url"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"data":{"page_id":"x"}}`)
	}))
	defer srv.Close()

	orch := New(remote.NewClient(srv.URL, 5*time.Second), nil, nil, Options{})
	jobs := urlJobs(t, 4)
	shuffled := []Job{jobs[2], jobs[0], jobs[3], jobs[1]}

	state, err := orch.SubmitBatch(context.Background(), shuffled, testCreds)
	require.NoError(t, err)

	assertInvariants(t, state)
	require.Len(t, received, 4)
	for i, job := range jobs {
		assert.Equal(t, job.Source.URL, received[i])
		assert.Equal(t, job, state.Results[i].Job)
	}
}

func TestFileUploadEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title\n\nbody\n"), 0o600))
	src, err := NewFileSource(path, []string{".md"})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"detail":"file missing"}`)
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		if header.Filename != "notes.md" || string(content) != "# Title\n\nbody\n" || r.FormValue("tags") != "docs,import" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"detail":"unexpected form"}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"success":true,"data":{"page_url":"https://notion.so/n","problem_blocks":["block-7"]}}`)
	}))
	defer srv.Close()

	orch := New(remote.NewClient(srv.URL, 5*time.Second), nil, nil, Options{})
	state, err := orch.SubmitBatch(context.Background(), BuildJobs([]Source{src}), testCreds)
	require.NoError(t, err)

	require.Len(t, state.Results, 1)
	outcome := state.Results[0].Outcome
	require.True(t, outcome.IsSuccess(), outcome.Message)
	assert.Equal(t, "https://notion.so/n", outcome.Link)
	assert.True(t, outcome.HasPartialFailure())
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(sleepContext(ctx, time.Hour), context.Canceled))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
