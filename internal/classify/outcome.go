package classify

import "encoding/json"

// Kind is the tri-state classification of one upload.
type Kind string

const (
	KindSuccess     Kind = "success"
	KindRecoverable Kind = "recoverable_failure"
	KindFatal       Kind = "fatal_failure"
)

// Outcome is the classified result of one job. Fields beyond Kind and
// Message are only populated for the kinds that carry them.
type Outcome struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	// success
	Identifier           string            `json:"identifier,omitempty"`
	Link                 string            `json:"link,omitempty"`
	PartialFailureDetail []json.RawMessage `json:"partial_failure_detail,omitempty"`
	Stats                map[string]any    `json:"stats,omitempty"`
	Unverified           bool              `json:"unverified,omitempty"`

	// fatal
	HelpReference bool `json:"help_reference,omitempty"`
}

func (o Outcome) IsSuccess() bool { return o.Kind == KindSuccess }

func (o Outcome) IsFatal() bool { return o.Kind == KindFatal }

// HasPartialFailure reports whether some content was dropped by the remote
// even though the upload as a whole succeeded.
func (o Outcome) HasPartialFailure() bool {
	return o.Kind == KindSuccess && len(o.PartialFailureDetail) > 0
}

func Success(identifier, link string) Outcome {
	return Outcome{Kind: KindSuccess, Message: "File uploaded successfully", Identifier: identifier, Link: link}
}

func Recoverable(message string) Outcome {
	return Outcome{Kind: KindRecoverable, Message: message}
}

func Fatal(message string) Outcome {
	return Outcome{Kind: KindFatal, Message: message, HelpReference: true}
}
