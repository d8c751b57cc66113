package remote

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Payload is the structured body returned by the upload endpoint. Every
// field is decoded independently so a malformed field never hides the rest.
type Payload struct {
	Success   Flag
	Message   string
	Detail    string
	Data      *Data
	Error     *APIError
	RequestID string
	Timestamp string
}

// Data is the data section of a success payload.
type Data struct {
	PageID        string
	PageURL       string
	ProblemBlocks []json.RawMessage
	Stats         map[string]any
}

// APIError is the error section of a failure payload.
type APIError struct {
	Code    string
	Message string
	Details json.RawMessage
}

// Flag accepts true/false, 0/1 and their quoted forms. Anything else is false.
type Flag bool

func (f *Flag) UnmarshalJSON(in []byte) error {
	s := strings.ToLower(strings.Trim(string(in), `"`))
	switch s {
	case "true", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

// text decodes a JSON string, or renders any other scalar as its raw form.
func text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if raw[0] == '{' || raw[0] == '[' {
		return ""
	}
	return string(raw)
}

// DecodePayload parses body leniently. It returns nil when body is not a JSON object.
func DecodePayload(body []byte) *Payload {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil
	}

	p := &Payload{
		Message:   text(fields["message"]),
		Detail:    text(fields["detail"]),
		RequestID: text(fields["request_id"]),
		Timestamp: text(fields["timestamp"]),
	}
	if raw, ok := fields["success"]; ok {
		_ = p.Success.UnmarshalJSON(raw)
	}
	if raw, ok := fields["data"]; ok {
		p.Data = decodeData(raw)
	}
	// older responses carried the page fields at the top level
	if id, url := text(fields["page_id"]), text(fields["page_url"]); id != "" || url != "" {
		if p.Data == nil {
			p.Data = &Data{}
		}
		if p.Data.PageID == "" {
			p.Data.PageID = id
		}
		if p.Data.PageURL == "" {
			p.Data.PageURL = url
		}
	}
	if raw, ok := fields["error"]; ok {
		p.Error = decodeAPIError(raw)
	}
	return p
}

func decodeData(raw json.RawMessage) *Data {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	d := &Data{
		PageID:  text(fields["page_id"]),
		PageURL: text(fields["page_url"]),
	}
	if blocks, ok := fields["problem_blocks"]; ok {
		var list []json.RawMessage
		if err := json.Unmarshal(blocks, &list); err == nil {
			d.ProblemBlocks = list
		} else if len(bytes.TrimSpace(blocks)) > 0 && !bytes.Equal(bytes.TrimSpace(blocks), []byte("null")) {
			d.ProblemBlocks = []json.RawMessage{blocks}
		}
	}
	if stats, ok := fields["stats"]; ok {
		var m map[string]any
		if err := json.Unmarshal(stats, &m); err == nil {
			d.Stats = m
		}
	}
	return d
}

func decodeAPIError(raw json.RawMessage) *APIError {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// a bare string error
		if msg := text(raw); msg != "" {
			return &APIError{Message: msg}
		}
		return nil
	}
	e := &APIError{
		Code:    text(fields["code"]),
		Message: text(fields["message"]),
		Details: fields["details"],
	}
	return e
}
