// Package uploader implements the outbound submission client for the
// external upload endpoint.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

const (
	// DefaultEndpointURL is where the upload collaborator listens unless
	// configured otherwise.
	DefaultEndpointURL = "http://localhost:5000/upload"

	// DefaultTimeout bounds a single submission round trip.
	DefaultTimeout = 2 * time.Minute

	// FallbackRejectionMessage is used when a rejecting collaborator does
	// not supply an error string of its own.
	FallbackRejectionMessage = "Upload failed"
)

// Part is one file to include in the multipart payload. Content is consumed
// and closed during Upload.
type Part struct {
	Field       string
	FileName    string
	ContentType string
	Content     io.ReadCloser
}

// Receipt is the collaborator's response to an accepted submission.
// UploadedFiles is kept as raw JSON: its structure belongs to the
// collaborator and is echoed to the user verbatim.
type Receipt struct {
	Message       string          `json:"message"`
	UploadedFiles json.RawMessage `json:"uploaded_files"`
	Errors        []string        `json:"errors,omitempty"`
}

// RejectedError reports a response with a non-success status.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("upload rejected (HTTP %d): %s", e.Status, e.Message)
}

// Client submits multipart payloads to the upload endpoint.
type Client struct {
	endpointURL string
	httpClient  *http.Client
}

// Option is a function that configures the client.
type Option func(*Client)

// NewClient creates a client for the given endpoint URL.
func NewClient(endpointURL string, opts ...Option) *Client {
	if endpointURL == "" {
		endpointURL = DefaultEndpointURL
	}

	c := &Client{
		endpointURL: endpointURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets a custom timeout for the submission round trip.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// EndpointURL returns the configured collaborator endpoint.
func (c *Client) EndpointURL() string {
	return c.endpointURL
}

// Upload sends the parts as one multipart POST. All part readers are closed
// before Upload returns. A nil error means the collaborator accepted the
// submission; a *RejectedError means it answered with a failure status; any
// other error is a transport failure and no response was obtained.
func (c *Client) Upload(ctx context.Context, parts []Part) (*Receipt, error) {
	body, contentType, err := encodeMultipart(parts)
	if err != nil {
		return nil, fmt.Errorf("encoding multipart payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting to upload endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.parseRejection(resp)
	}

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		// The upload went through even if the body is malformed; surface
		// an empty receipt rather than a spurious failure.
		return &Receipt{}, nil
	}

	return &receipt, nil
}

// encodeMultipart builds the request body, closing every part reader.
func encodeMultipart(parts []Part) (*bytes.Buffer, string, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for _, part := range parts {
		w, err := createFormPart(writer, part)
		if err == nil {
			_, err = io.Copy(w, part.Content)
		}
		part.Content.Close()
		if err != nil {
			writer.Close()
			return nil, "", fmt.Errorf("writing part %q (%s): %w", part.FileName, part.Field, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

// createFormPart mirrors multipart.Writer.CreateFormFile but carries the
// staged content type instead of forcing application/octet-stream.
func createFormPart(writer *multipart.Writer, part Part) (io.Writer, error) {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     part.Field,
		"filename": part.FileName,
	}))
	contentType := part.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	return writer.CreatePart(h)
}

// parseRejection extracts the collaborator's error field, falling back to a
// fixed message when the body carries none.
func (c *Client) parseRejection(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}

	message := FallbackRejectionMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		message = body.Error
	}

	return &RejectedError{
		Status:  resp.StatusCode,
		Message: message,
	}
}
