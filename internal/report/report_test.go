package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sync2notion/internal/batch"
	"sync2notion/internal/classify"
)

func finished(outcomes ...classify.Outcome) batch.State {
	return withJobs(len(outcomes), outcomes...)
}

func withJobs(total int, outcomes ...classify.Outcome) batch.State {
	s := batch.State{ID: "b1", StartedAt: time.Unix(100, 0), FinishedAt: time.Unix(101, 0)}
	for i := 0; i < total; i++ {
		s.Jobs = append(s.Jobs, batch.Job{
			Source:        batch.Source{Kind: batch.SourceFile, Name: string(rune('a'+i)) + ".pdf"},
			SequenceIndex: i,
		})
	}
	for i, o := range outcomes {
		s.Results = append(s.Results, batch.Result{Job: s.Jobs[i], Outcome: o})
		if o.IsSuccess() {
			s.SuccessCount++
		} else {
			s.FailureCount++
		}
		if o.IsFatal() {
			s.Aborted = true
		}
	}
	s.Cursor = len(outcomes)
	return s
}

func TestSummarizeBatch(t *testing.T) {
	ok := classify.Success("p", "https://notion.so/p")
	bad := classify.Recoverable("unrelated error")

	cases := []struct {
		name  string
		state batch.State
		want  Summary
	}{
		{"all succeeded", finished(ok, ok, ok), Summary{Level: LevelSuccess, Text: "Successfully uploaded all 3 files!"}},
		{"partial", finished(ok, bad, ok), Summary{Level: LevelWarning, Text: "Uploaded 2 of 3 files successfully. 1 files failed."}},
		{"none succeeded", finished(bad, bad), Summary{Level: LevelError, Text: "Failed to upload any files. Please check your settings and try again."}},
		{"single with link", finished(ok), Summary{Level: LevelSuccess, Text: "File uploaded successfully! View page: https://notion.so/p"}},
		{"single without link", finished(classify.Success("", "")), Summary{Level: LevelSuccess, Text: "File uploaded successfully! Page ID: N/A"}},
		{"single id only", finished(classify.Success("abc", "")), Summary{Level: LevelSuccess, Text: "File uploaded successfully! Page ID: abc"}},
		{"single failure", finished(bad), Summary{Level: LevelError, Text: "unrelated error"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Summarize(tc.state))
		})
	}
}

func TestSummarizeAbortSurfacesFatalMessage(t *testing.T) {
	s := withJobs(3, classify.Fatal("credential invalid"))

	got := Summarize(s)
	assert.Equal(t, LevelError, got.Level)
	assert.True(t, got.HelpReference)
	assert.Equal(t, "credential invalid", got.FatalMessage)
	assert.Equal(t, "Upload stopped after 1 of 3 files: credential invalid", got.Text)

	// single-job abort still names the help reference
	single := Summarize(withJobs(1, classify.Fatal("credential invalid")))
	assert.True(t, single.HelpReference)
}

func TestSummarizeRunningAndCanceled(t *testing.T) {
	running := withJobs(4, classify.Success("", ""))
	running.FinishedAt = time.Time{}
	assert.Equal(t, Summary{Level: LevelInfo, Text: "Uploading files... (1/4)"}, Summarize(running))

	canceled := withJobs(4, classify.Success("", ""), classify.Success("", ""))
	canceled.Canceled = true
	assert.Equal(t, Summary{Level: LevelWarning, Text: "Upload canceled after 2 of 4 files."}, Summarize(canceled))
}

func TestProgress(t *testing.T) {
	assert.Zero(t, Progress(batch.State{}))
	assert.InDelta(t, 0.5, Progress(withJobs(4, classify.Success("", ""), classify.Recoverable("x"))), 1e-9)
	assert.InDelta(t, 1.0, Progress(finished(classify.Success("", ""))), 1e-9)
}

func TestItemsRenderSkippedContent(t *testing.T) {
	o := classify.Success("p", "https://x")
	o.PartialFailureDetail = []json.RawMessage{
		json.RawMessage(`"block-7"`),
		json.RawMessage(`{"type":"paragraph","length":2100}`),
	}
	items := Items(finished(o, classify.Recoverable("too large")))

	require.Len(t, items, 2)
	assert.Equal(t, "a.pdf", items[0].Name)
	assert.True(t, items[0].Success)
	assert.Equal(t, []string{"block-7", "{\n  \"type\": \"paragraph\",\n  \"length\": 2100\n}"}, items[0].Skipped)
	assert.False(t, items[1].Success)
	assert.Equal(t, "too large", items[1].Message)
	assert.Empty(t, items[1].Skipped)
}

func TestRenderBlockFallsBackToRaw(t *testing.T) {
	assert.Equal(t, "not json", RenderBlock(json.RawMessage("not json")))
	assert.Equal(t, "42", RenderBlock(json.RawMessage("42")))
}
