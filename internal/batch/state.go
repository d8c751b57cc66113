package batch

import (
	"time"

	"sync2notion/internal/classify"
)

// Verdict is the coarse outcome of a batch.
type Verdict string

const (
	VerdictRunning   Verdict = "running"
	VerdictSucceeded Verdict = "succeeded"
	VerdictPartial   Verdict = "partial"
	VerdictFailed    Verdict = "failed"
	VerdictAborted   Verdict = "aborted"
	VerdictCanceled  Verdict = "canceled"
)

type Result struct {
	Job     Job              `json:"job"`
	Outcome classify.Outcome `json:"outcome"`
}

// State is the running record of one submission. Results are always in
// SequenceIndex order, and SuccessCount+FailureCount == len(Results).
type State struct {
	ID           string    `json:"id"`
	Jobs         []Job     `json:"jobs"`
	Results      []Result  `json:"results"`
	Cursor       int       `json:"cursor"`
	Aborted      bool      `json:"aborted"`
	Canceled     bool      `json:"canceled"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
}

func (s State) Done() bool { return !s.FinishedAt.IsZero() }

// FatalOutcome returns the outcome that aborted the batch, if any.
func (s State) FatalOutcome() (classify.Outcome, bool) {
	if !s.Aborted || len(s.Results) == 0 {
		return classify.Outcome{}, false
	}
	last := s.Results[len(s.Results)-1].Outcome
	return last, last.IsFatal()
}

func (s State) Verdict() Verdict {
	switch {
	case !s.Done():
		return VerdictRunning
	case s.Aborted:
		return VerdictAborted
	case s.Canceled:
		return VerdictCanceled
	case s.FailureCount == 0:
		return VerdictSucceeded
	case s.SuccessCount == 0:
		return VerdictFailed
	default:
		return VerdictPartial
	}
}

// Snapshot returns a copy that shares nothing mutable with s. Outcome raw
// detail values are never modified after classification and stay shared.
func (s State) Snapshot() State {
	cp := s
	cp.Jobs = append([]Job(nil), s.Jobs...)
	cp.Results = append([]Result(nil), s.Results...)
	return cp
}

func (s *State) record(job Job, outcome classify.Outcome) {
	s.Results = append(s.Results, Result{Job: job, Outcome: outcome})
	if outcome.IsSuccess() {
		s.SuccessCount++
	} else {
		s.FailureCount++
	}
	s.Cursor++
}
