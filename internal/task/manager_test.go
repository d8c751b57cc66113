package task

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sync2notion/internal/batch"
	"sync2notion/internal/credentials"
	"sync2notion/internal/remote"
)

var creds = credentials.StoredConfig{Token: "secret_x", CollectionID: "db-1"}

func newTestManager(t *testing.T, handler http.HandlerFunc) (*Manager, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	dataDir := t.TempDir()
	orch := batch.New(remote.NewClient(srv.URL, 5*time.Second), nil, nil, batch.Options{})
	return NewManager(orch, Options{DataDir: dataDir, AllowedExtensions: []string{".md", ".txt"}}), dataDir
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"success":true,"data":{"page_id":"p1"}}`)
}

func waitDone(t *testing.T, m *Manager, id string) batch.State {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if got, ok := m.Get(id); ok && got.Done() {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for batch %s", id)
	return batch.State{}
}

func TestSubmitRunsBatchAndCleansStaging(t *testing.T) {
	m, dataDir := newTestManager(t, okHandler)

	initial, err := m.Submit(Input{
		Files: []Upload{
			{Name: "notes.md", Content: strings.NewReader("# a")},
			{Name: `C:\Users\me\todo.txt`, Content: strings.NewReader("b")},
		},
		Credentials: creds,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(initial.Jobs) != 2 || len(initial.Results) != 0 {
		t.Fatalf("unexpected initial state: %+v", initial)
	}
	if initial.Jobs[1].Source.Name != "todo.txt" {
		t.Fatalf("expected directory part stripped, got %q", initial.Jobs[1].Source.Name)
	}

	final := waitDone(t, m, initial.ID)
	if final.SuccessCount != 2 || final.FailureCount != 0 {
		t.Fatalf("expected 2 successes, got %+v", final)
	}
	if !m.WaitAll(context.Background()) {
		t.Fatalf("expected workers to finish")
	}
	if _, err := os.Stat(filepath.Join(dataDir, "staging", initial.ID)); !os.IsNotExist(err) {
		t.Fatalf("expected staging removed, stat err=%v", err)
	}
	if m.IsBusy() {
		t.Fatalf("slot must be released after the batch")
	}
}

func TestSubmitURL(t *testing.T) {
	m, _ := newTestManager(t, okHandler)
	initial, err := m.Submit(Input{URL: "https://example.org/post", Credentials: creds})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	final := waitDone(t, m, initial.ID)
	if len(final.Results) != 1 || !final.Results[0].Outcome.IsSuccess() {
		t.Fatalf("unexpected final state: %+v", final)
	}
}

func TestSubmitValidationErrors(t *testing.T) {
	m, dataDir := newTestManager(t, okHandler)
	file := []Upload{{Name: "a.md", Content: strings.NewReader("x")}}

	cases := []struct {
		name string
		in   Input
		is   func(error) bool
	}{
		{"files and url", Input{Files: file, URL: "https://e.org", Credentials: creds}, func(err error) bool { return errors.Is(err, ErrFilesAndURL) }},
		{"bad url", Input{URL: "example.org", Credentials: creds}, func(err error) bool { return errors.Is(err, batch.ErrInvalidURL) }},
		{"nothing", Input{Credentials: creds}, func(err error) bool { var v *batch.ValidationError; return errors.As(err, &v) }},
		{"no token", Input{Files: file, Credentials: credentials.StoredConfig{CollectionID: "db"}}, func(err error) bool { var v *batch.ValidationError; return errors.As(err, &v) }},
		{"extension", Input{Files: []Upload{{Name: "a.exe", Content: strings.NewReader("x")}}, Credentials: creds}, func(err error) bool { return errors.Is(err, batch.ErrExtNotAllowed) }},
	}
	for _, tc := range cases {
		_, err := m.Submit(tc.in)
		if err == nil || !tc.is(err) {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !IsInputError(err) {
			t.Fatalf("%s: expected input error, got %v", tc.name, err)
		}
		if m.IsBusy() {
			t.Fatalf("%s: slot leaked", tc.name)
		}
	}

	ids, err := NewFileStaging(dataDir).List()
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected no staged batches, got %v err=%v", ids, err)
	}
}

func TestIsBusyWhileProcessing(t *testing.T) {
	release := make(chan struct{})
	m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		okHandler(w, r)
	})

	first, err := m.Submit(Input{URL: "https://example.org/a", Credentials: creds})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !m.IsBusy() {
		t.Fatalf("expected manager to be busy while processing")
	}
	if _, err := m.Submit(Input{URL: "https://example.org/b", Credentials: creds}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(release)

	waitDone(t, m, first.ID)
	if !m.WaitAll(context.Background()) {
		t.Fatalf("expected workers to finish")
	}
}

func TestShutdownCancelsRunningBatch(t *testing.T) {
	m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	m.SetBaseContext(ctx)

	initial, err := m.Submit(Input{
		Files: []Upload{
			{Name: "a.md", Content: strings.NewReader("a")},
			{Name: "b.md", Content: strings.NewReader("b")},
			{Name: "c.md", Content: strings.NewReader("c")},
		},
		Credentials: creds,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer waitCancel()
	if !m.WaitAll(waitCtx) {
		t.Fatalf("workers did not stop after cancel")
	}
	final, _ := m.Get(initial.ID)
	if !final.Canceled || len(final.Results) != 1 || final.Verdict() != batch.VerdictCanceled {
		t.Fatalf("expected canceled batch with one result, got %+v", final)
	}
}

func TestCleanStaleStaging(t *testing.T) {
	m, dataDir := newTestManager(t, okHandler)
	stale := filepath.Join(dataDir, "staging", "old-batch", "0")
	if err := os.MkdirAll(stale, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := m.CleanStaleStaging(); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "staging", "old-batch")); !os.IsNotExist(err) {
		t.Fatalf("expected stale staging removed, err=%v", err)
	}
}

func TestGetUnknownBatch(t *testing.T) {
	m, _ := newTestManager(t, okHandler)
	if _, ok := m.Get("missing"); ok {
		t.Fatalf("expected unknown batch")
	}
}
