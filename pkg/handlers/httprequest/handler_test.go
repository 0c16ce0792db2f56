package httprequest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *Handler {
	return NewHandler(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func TestExecuteDecodesJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"order_id": "o-42"})
	}))
	defer server.Close()

	result, err := newTestHandler().Execute(context.Background(), map[string]any{
		"url":     server.URL,
		"method":  "POST",
		"headers": map[string]any{"X-Api-Key": "secret"},
		"body":    `{"amount": 10}`,
	}, models.ExecutionContext{ExecutionID: "exec-1"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result["status_code"])

	body, ok := result["body"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "o-42", body["order_id"])
}

func TestExecuteKeepsPlainTextBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	}))
	defer server.Close()

	result, err := newTestHandler().Execute(context.Background(),
		map[string]any{"url": server.URL}, models.ExecutionContext{})

	require.NoError(t, err)
	assert.Equal(t, "pong", result["body"])
}

func TestExecuteTreatsNon2xxAsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestHandler().Execute(context.Background(),
		map[string]any{"url": server.URL}, models.ExecutionContext{})

	require.ErrorIs(t, err, ErrUnexpectedCode)
}

func TestExecuteRequiresURL(t *testing.T) {
	_, err := newTestHandler().Execute(context.Background(), map[string]any{}, models.ExecutionContext{})
	require.ErrorIs(t, err, ErrURLRequired)
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestHandler().Execute(ctx, map[string]any{"url": server.URL}, models.ExecutionContext{})
	require.Error(t, err)
}

func TestFactorySchemaAndCreate(t *testing.T) {
	factory := NewHandlerFactory(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	assert.Equal(t, "api_call", factory.ID())
	assert.Contains(t, factory.Schema(), "required")

	handler, err := factory.Create()
	require.NoError(t, err)
	assert.NotNil(t, handler)
}
