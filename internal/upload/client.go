package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout   = 120 * time.Second
	maxResponseBytes = 1 << 20
)

// ErrUploadFailed wraps every error returned by Upload.
var ErrUploadFailed = errors.New("upload failed")

// Request is one video submission.
type Request struct {
	Data          []byte
	Filename      string
	ContentType   string
	UserID        string
	CompetitionID string
	LiftType      string
	WeightKg      float64
}

// Result is the attempt created by the backend.
type Result struct {
	AttemptID string
	URL       string
}

// StatusError reports a non-2xx response from the backend.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned http %d", e.Code)
	}
	return fmt.Sprintf("backend returned http %d: %s", e.Code, e.Message)
}

// Client posts videos to the backend upload endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a client for backendURL. A non-positive timeout uses the default.
func NewClient(backendURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		endpoint:   strings.TrimRight(strings.TrimSpace(backendURL), "/") + "/upload",
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload sends the video in a single multipart request. It does not retry.
func (c *Client) Upload(ctx context.Context, req Request) (*Result, error) {
	body, contentType, err := encodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", ErrUploadFailed, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrUploadFailed, err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrUploadFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, &StatusError{Code: resp.StatusCode, Message: errorMessage(payload)})
	}

	var decoded struct {
		AttemptID any    `json:"attempt_id"`
		URL       string `json:"url"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrUploadFailed, err)
	}
	attemptID := stringify(decoded.AttemptID)
	if attemptID == "" {
		return nil, fmt.Errorf("%w: response missing attempt_id", ErrUploadFailed)
	}
	return &Result{AttemptID: attemptID, URL: decoded.URL}, nil
}

func encodeRequest(req Request) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video"; filename=%q`, req.Filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, "", err
	}

	fields := []struct{ name, value string }{
		{"user_id", req.UserID},
		{"competition_id", req.CompetitionID},
		{"lift_type", req.LiftType},
		{"weight", strconv.FormatFloat(req.WeightKg, 'f', -1, 64)},
	}
	for _, field := range fields {
		if err := mw.WriteField(field.name, field.value); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func errorMessage(payload []byte) string {
	var decoded struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &decoded); err == nil && decoded.Error != "" {
		return decoded.Error
	}
	text := strings.TrimSpace(string(payload))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
