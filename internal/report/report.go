package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"sync2notion/internal/batch"
	"sync2notion/internal/classify"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Summary is the single banner describing a batch.
type Summary struct {
	Level         Level  `json:"level"`
	Text          string `json:"text"`
	HelpReference bool   `json:"help_reference"`
	FatalMessage  string `json:"fatal_message,omitempty"`
}

// Item is one row of the per-item result list.
type Item struct {
	Index      int            `json:"index"`
	Name       string         `json:"name"`
	Success    bool           `json:"success"`
	Kind       classify.Kind  `json:"kind"`
	Message    string         `json:"message"`
	Identifier string         `json:"identifier,omitempty"`
	Link       string         `json:"link,omitempty"`
	Unverified bool           `json:"unverified,omitempty"`
	Skipped    []string       `json:"skipped,omitempty"`
	Stats      map[string]any `json:"stats,omitempty"`
}

// Progress is the completed share of the batch, 0 for an empty one.
func Progress(s batch.State) float64 {
	if len(s.Jobs) == 0 {
		return 0
	}
	return float64(len(s.Results)) / float64(len(s.Jobs))
}

// Summarize derives the banner from the state. It holds no state of its own.
func Summarize(s batch.State) Summary {
	total := len(s.Jobs)
	done := len(s.Results)

	if fatal, ok := s.FatalOutcome(); ok {
		return Summary{
			Level:         LevelError,
			Text:          fmt.Sprintf("Upload stopped after %d of %d files: %s", done, total, fatal.Message),
			HelpReference: true,
			FatalMessage:  fatal.Message,
		}
	}
	if !s.Done() {
		return Summary{Level: LevelInfo, Text: fmt.Sprintf("Uploading files... (%d/%d)", done, total)}
	}
	if s.Canceled {
		return Summary{Level: LevelWarning, Text: fmt.Sprintf("Upload canceled after %d of %d files.", done, total)}
	}
	if total == 1 && done == 1 {
		return single(s.Results[0].Outcome)
	}

	switch {
	case s.FailureCount == 0:
		return Summary{Level: LevelSuccess, Text: fmt.Sprintf("Successfully uploaded all %d files!", total)}
	case s.SuccessCount == 0:
		return Summary{Level: LevelError, Text: "Failed to upload any files. Please check your settings and try again."}
	default:
		return Summary{
			Level: LevelWarning,
			Text: fmt.Sprintf("Uploaded %d of %d files successfully. %d files failed.",
				s.SuccessCount, total, s.FailureCount),
		}
	}
}

func single(o classify.Outcome) Summary {
	if !o.IsSuccess() {
		return Summary{Level: LevelError, Text: o.Message}
	}
	if o.Unverified {
		return Summary{Level: LevelSuccess, Text: o.Message}
	}
	if o.Link != "" {
		return Summary{Level: LevelSuccess, Text: "File uploaded successfully! View page: " + o.Link}
	}
	id := o.Identifier
	if id == "" {
		id = "N/A"
	}
	return Summary{Level: LevelSuccess, Text: "File uploaded successfully! Page ID: " + id}
}

// Items lists the recorded results in submission order.
func Items(s batch.State) []Item {
	items := make([]Item, 0, len(s.Results))
	for _, r := range s.Results {
		o := r.Outcome
		item := Item{
			Index:      r.Job.SequenceIndex,
			Name:       r.Job.Source.DisplayName(),
			Success:    o.IsSuccess(),
			Kind:       o.Kind,
			Message:    o.Message,
			Identifier: o.Identifier,
			Link:       o.Link,
			Unverified: o.Unverified,
			Stats:      o.Stats,
		}
		for _, block := range o.PartialFailureDetail {
			item.Skipped = append(item.Skipped, RenderBlock(block))
		}
		items = append(items, item)
	}
	return items
}

// RenderBlock shows a string block as is and anything else as indented JSON.
func RenderBlock(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}
