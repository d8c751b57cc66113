package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	uploadPath          = "/api/upload"
	defaultHTTPTimeout  = 5 * time.Minute
	maxResponseBodySize = 8 << 20
)

var (
	ErrEmptySource  = errors.New("request has neither file content nor url")
	ErrBuildRequest = errors.New("build request")
)

// Request describes one upload. Exactly one of Content or URL is used.
type Request struct {
	FileName     string
	ContentType  string
	Content      io.Reader
	URL          string
	Token        string
	CollectionID string
	Tags         string
}

// Form is a fully encoded multipart body, ready to be sent.
type Form struct {
	Body        []byte
	ContentType string
}

// Response is what came back from the endpoint. Payload is nil when the body
// was not a JSON object.
type Response struct {
	StatusCode int
	Payload    *Payload
	Body       []byte
}

// EncodeForm builds the multipart body for req. Errors here come from
// reading the source, never from the network.
func EncodeForm(req Request) (*Form, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	switch {
	case req.Content != nil:
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(req.FileName)))
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("create file part: %w", err)
		}
		if _, err := io.Copy(part, req.Content); err != nil {
			return nil, fmt.Errorf("read %s: %w", req.FileName, err)
		}
	case req.URL != "":
		if err := mw.WriteField("url", req.URL); err != nil {
			return nil, fmt.Errorf("write url field: %w", err)
		}
	default:
		return nil, ErrEmptySource
	}

	fields := [][2]string{{"token", req.Token}, {"db_id", req.CollectionID}}
	if req.Tags != "" {
		fields = append(fields, [2]string{"tags", req.Tags})
	}
	for _, field := range fields {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return nil, fmt.Errorf("write field %s: %w", field[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}
	return &Form{Body: buf.Bytes(), ContentType: mw.FormDataContentType()}, nil
}

// Client talks to the conversion service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the service rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Upload posts form. Any HTTP status is returned as a Response with a nil
// error. A nil Response means no status was received at all. When the body
// breaks off after the status line, both the Response and the error are set.
func (c *Client) Upload(ctx context.Context, form *Form) (*Response, error) {
	endpoint := c.baseURL + uploadPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(form.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildRequest, err)
	}
	req.Header.Set("Content-Type", form.ContentType)
	req.Header.Set("Accept", "application/json")

	httpResponse, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Str("endpoint", endpoint).Err(err).Msg("upload request failed without response")
		return nil, err //nolint:wrapcheck // classification inspects the transport error
	}
	defer func() { _ = httpResponse.Body.Close() }()

	resp := &Response{StatusCode: httpResponse.StatusCode}
	body, err := io.ReadAll(io.LimitReader(httpResponse.Body, maxResponseBodySize))
	if err != nil {
		log.Warn().Str("endpoint", endpoint).Int("status", resp.StatusCode).Err(err).Msg("reading upload response failed")
		return resp, fmt.Errorf("read response: %w", err)
	}
	resp.Body = body
	resp.Payload = DecodePayload(body)

	evt := log.Debug()
	if resp.StatusCode >= http.StatusBadRequest {
		evt = log.Warn()
	}
	evt.Str("endpoint", endpoint).Int("status", resp.StatusCode).Int("bytes", len(body)).Msg("upload response received")
	return resp, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
