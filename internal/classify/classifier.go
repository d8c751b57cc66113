package classify

import (
	"errors"
	"fmt"
	"net/http"

	"sync2notion/internal/remote"
)

const unknownError = "Unknown error"

// RawResult is everything known about one attempt before classification.
// Response is nil when no HTTP status was received.
type RawResult struct {
	Name       string
	Response   *remote.Response
	Err        error
	PrepareErr error
}

// Classifier turns raw upload results into outcomes. It holds no mutable
// state, so Classify is safe for concurrent use and deterministic.
type Classifier struct {
	rules  []Rule
	policy AmbiguityPolicy
}

// New builds a classifier. Nil rules select DefaultRules, a nil policy selects Optimistic.
func New(rules []Rule, policy AmbiguityPolicy) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	if policy == nil {
		policy = Optimistic
	}
	return &Classifier{rules: append([]Rule(nil), rules...), policy: policy}
}

// Classify never fails: every input maps to a well-formed Outcome.
func (c *Classifier) Classify(raw RawResult) Outcome {
	if raw.PrepareErr != nil {
		return Recoverable(fmt.Sprintf("Error processing %s: %v", displayName(raw.Name), raw.PrepareErr))
	}

	resp := raw.Response
	if resp == nil {
		if raw.Err == nil {
			return Recoverable(unknownError)
		}
		if !errors.Is(raw.Err, remote.ErrBuildRequest) && isConnectivityError(raw.Err) {
			return c.policy(raw.Err)
		}
		return Recoverable(fmt.Sprintf("Error uploading %s: %v", displayName(raw.Name), raw.Err))
	}

	payload := resp.Payload
	if (payload != nil && bool(payload.Success)) || resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return successFrom(payload)
	}

	for _, msg := range errorMessages(payload) {
		if c.isFatal(msg) {
			return Fatal(msg)
		}
	}

	return Recoverable(bestMessage(resp, raw.Err))
}

func (c *Classifier) isFatal(message string) bool {
	for _, rule := range c.rules {
		if rule.matches(message) {
			return true
		}
	}
	return false
}

func successFrom(payload *remote.Payload) Outcome {
	if payload == nil || payload.Data == nil {
		return Success("", "")
	}
	data := payload.Data
	o := Success(data.PageID, data.PageURL)
	if len(data.ProblemBlocks) > 0 {
		o.PartialFailureDetail = append(o.PartialFailureDetail, data.ProblemBlocks...)
	}
	o.Stats = data.Stats
	return o
}

// errorMessages lists the application-level messages a payload carries.
func errorMessages(payload *remote.Payload) []string {
	if payload == nil {
		return nil
	}
	var out []string
	if payload.Error != nil && payload.Error.Message != "" {
		out = append(out, payload.Error.Message)
	}
	if payload.Detail != "" {
		out = append(out, payload.Detail)
	}
	if payload.Message != "" {
		out = append(out, payload.Message)
	}
	return out
}

// bestMessage prefers the structured detail, then the structured message,
// then the raw transport message.
func bestMessage(resp *remote.Response, transportErr error) string {
	if p := resp.Payload; p != nil {
		switch {
		case p.Detail != "":
			return p.Detail
		case p.Error != nil && p.Error.Message != "":
			return p.Error.Message
		case p.Message != "":
			return p.Message
		}
	}
	if transportErr != nil {
		return transportErr.Error()
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Sprintf("request failed with status code %d", resp.StatusCode)
	}
	return unknownError
}

func displayName(name string) string {
	if name == "" {
		return "item"
	}
	return name
}
