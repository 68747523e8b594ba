package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/config"
	"github.com/Harshitjoshi133/MangoDesk/internal/metrics"
)

// maxErrorBody bounds how much of an error response is kept as detail.
const maxErrorBody = 512

// backendClient is the JSON-over-HTTP plumbing shared by every backend call.
type backendClient struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func newBackendClient(cfg config.BackendConfig, logger *zap.Logger, m *metrics.Metrics) *backendClient {
	return &backendClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
		metrics:    m,
	}
}

// formFile is a file part of a multipart request. Parts are sent as
// text/plain unless contentType says otherwise.
type formFile struct {
	field       string
	filename    string
	contentType string
	content     []byte
}

// postJSON sends body as JSON and decodes the response into out.
func (c *backendClient) postJSON(ctx context.Context, op, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal request: %w", op, err)
	}
	return c.do(ctx, op, out, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// postForm sends a multipart form with optional file parts.
func (c *backendClient) postForm(ctx context.Context, op, path string, fields map[string]string, files []formFile, out interface{}) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return fmt.Errorf("%s: failed to write form field %s: %w", op, name, err)
		}
	}
	for _, f := range files {
		contentType := f.contentType
		if contentType == "" {
			contentType = "text/plain; charset=utf-8"
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(f.field), escapeQuotes(f.filename)))
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		if err != nil {
			return fmt.Errorf("%s: failed to create form file: %w", op, err)
		}
		if _, err := part.Write(f.content); err != nil {
			return fmt.Errorf("%s: failed to write form file: %w", op, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%s: failed to close form: %w", op, err)
	}

	payload := buf.Bytes()
	contentType := w.FormDataContentType()
	return c.do(ctx, op, out, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
}

// send issues a bodiless request (GET, DELETE) and decodes the response into out.
func (c *backendClient) send(ctx context.Context, method, op, path string, out interface{}) error {
	return c.do(ctx, op, out, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	})
}

// do runs one request with linear backoff between retryable failures.
func (c *backendClient) do(ctx context.Context, op string, out interface{}, build func() (*http.Request, error)) error {
	log := c.logger.With(zap.String("op", op))
	started := time.Now()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			log.Debug("retrying backend request", zap.Int("attempt", attempt), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				c.metrics.ObserveRequest(op, started, ctx.Err())
				return fmt.Errorf("%w: %s: %v", ErrTransport, op, ctx.Err())
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		lastErr = c.attempt(op, out, build)
		if lastErr == nil || !isRetryable(lastErr) {
			break
		}
	}

	c.metrics.ObserveRequest(op, started, lastErr)
	if lastErr != nil {
		log.Warn("backend request failed", zap.Duration("elapsed", time.Since(started)), zap.Error(lastErr))
		return lastErr
	}
	log.Debug("backend request completed", zap.Duration("elapsed", time.Since(started)))
	return nil
}

func (c *backendClient) attempt(op string, out interface{}, build func() (*http.Request, error)) error {
	req, err := build()
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: failed to read response: %v", ErrTransport, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Code: resp.StatusCode, Detail: errorDetail(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, op, err)
	}
	return nil
}

// errorDetail extracts a human readable message from an error body.
// The backend reports errors as {"detail": ...} and sometimes {"message": ...};
// validation errors carry a list under detail.
func errorDetail(body []byte) string {
	var errResp struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		var detail string
		if len(errResp.Detail) > 0 && json.Unmarshal(errResp.Detail, &detail) == nil && detail != "" {
			return detail
		}
		if errResp.Message != "" {
			return errResp.Message
		}
		if len(errResp.Detail) > 0 && string(errResp.Detail) != "null" {
			return truncate(string(errResp.Detail), maxErrorBody)
		}
	}
	return truncate(strings.TrimSpace(string(body)), maxErrorBody)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
