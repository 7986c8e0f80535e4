package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompletionServer(t *testing.T, handler http.HandlerFunc) *CompletionClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewCompletionClient("test-key", server.URL+"/v1", 5*time.Second, 100, 10)
}

func TestCompletionClient_Success(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float32 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	client := newCompletionServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"[{\"a\":1}]"},"finish_reason":"stop"}]}`))
	})

	text, err := client.Complete(context.Background(), CompletionRequest{
		Model:       "llama-3.1-8b-instant",
		System:      "persona",
		Prompt:      "list things",
		MaxTokens:   256,
		Temperature: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, `[{"a":1}]`, text)

	assert.Equal(t, "llama-3.1-8b-instant", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	assert.InDelta(t, 0.5, got.Temperature, 0.001)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "list things", got.Messages[1].Content)
}

func TestCompletionClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		wantKind   Kind
		wantWait   time.Duration
	}{
		{"rate limited with retry-after", http.StatusTooManyRequests, "2", KindRateLimited, 2 * time.Second},
		{"rate limited without retry-after", http.StatusTooManyRequests, "", KindRateLimited, 0},
		{"bad request", http.StatusBadRequest, "", KindBadRequest, 0},
		{"model not found", http.StatusNotFound, "", KindBadRequest, 0},
		{"unauthorized", http.StatusUnauthorized, "", KindAuthFailure, 0},
		{"server error", http.StatusInternalServerError, "", KindTransient, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newCompletionServer(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"upstream says no","type":"error"}}`))
			})

			_, err := client.Complete(context.Background(), CompletionRequest{Model: "m", Prompt: "p"})
			require.Error(t, err)

			var upErr *Error
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, tt.wantKind, upErr.Kind)
			assert.Equal(t, tt.status, upErr.StatusCode)
			assert.Equal(t, tt.wantWait, upErr.RetryAfter)
		})
	}
}

func TestCompletionClient_NoChoices(t *testing.T) {
	client := newCompletionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	})

	_, err := client.Complete(context.Background(), CompletionRequest{Model: "m", Prompt: "p"})
	assert.Equal(t, KindTransient, KindOf(err))
}

func TestCompletionClient_MissingKey(t *testing.T) {
	client := NewCompletionClient("", "", time.Second, 1, 1)
	assert.False(t, client.Configured())

	_, err := client.Complete(context.Background(), CompletionRequest{Model: "m", Prompt: "p"})
	assert.Equal(t, KindCredentialMissing, KindOf(err))
}
