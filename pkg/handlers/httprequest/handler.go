// Package httprequest provides the api_call node handler: one HTTP request
// per invocation, with retries and deadlines applied by the caller.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ferrant/orchid/pkg/models"
)

var (
	ErrURLRequired    = errors.New("missing or invalid 'url' in configuration")
	ErrRequestFailed  = errors.New("http request failed")
	ErrUnexpectedCode = errors.New("unexpected http status")
)

const maxResponseBytes = 1 << 20 // 1 MiB

// Handler performs an HTTP request to a configured URL with optional
// headers and body. A non-2xx response is an error so the supervisor's
// retry policy applies to it.
type Handler struct {
	logger *slog.Logger
	client *http.Client
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger.With("handler", "http_request"),
		// Per-attempt deadlines come from the invocation context.
		client: &http.Client{},
	}
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, execCtx models.ExecutionContext) (map[string]any, error) {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, ErrURLRequired
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	method = strings.ToUpper(method)

	var body io.Reader

	if rawBody, ok := config["body"].(string); ok && rawBody != "" {
		body = strings.NewReader(rawBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for key, value := range headers {
			if str, ok := value.(string); ok {
				req.Header.Set(key, str)
			}
		}
	}

	h.logger.InfoContext(ctx, "Executing HTTP request",
		"execution_id", execCtx.ExecutionID,
		"method", method,
		"url", url)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedCode, resp.StatusCode)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        parseBody(raw, resp.Header.Get("Content-Type")),
	}, nil
}

// parseBody decodes JSON responses into structured data; everything else
// stays a string.
func parseBody(raw []byte, contentType string) any {
	if strings.Contains(contentType, "application/json") {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			return decoded
		}
	}

	return string(raw)
}
