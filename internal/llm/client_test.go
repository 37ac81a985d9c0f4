package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newProvider(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func completion(content string) string {
	raw, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(raw)
}

func TestComplete_Success(t *testing.T) {
	var got openai.ChatCompletionRequest
	ts, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion("  Золото фармится в шахтах.  ")))
	})

	client := NewClient(ts.Client(), zap.NewNop())
	res := client.Complete(context.Background(), Request{
		BaseURL:      ts.URL + "/v1/",
		APIKey:       "sk-test",
		Model:        "gpt-test",
		SystemPrompt: "system",
		Question:     "где фармить золото?",
		Temperature:  0.4,
		MaxTokens:    800,
	})

	assert.Equal(t, KindOK, res.Kind)
	assert.Equal(t, "Золото фармится в шахтах.", res.Text)
	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, 800, got.MaxTokens)
	assert.InDelta(t, 0.4, got.Temperature, 0.0001)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "где фармить золото?", got.Messages[1].Content)
}

func TestComplete_MissingKey(t *testing.T) {
	ts, calls := newProvider(t, func(w http.ResponseWriter, r *http.Request) {})

	res := NewClient(ts.Client(), zap.NewNop()).Complete(context.Background(), Request{BaseURL: ts.URL, APIKey: " "})
	assert.Equal(t, KindNotConfigured, res.Kind)
	assert.Equal(t, NotConfiguredMessage, res.Text)
	assert.Equal(t, int32(0), calls.Load())
}

func TestComplete_RateLimited(t *testing.T) {
	bodies := map[string]struct{ contentType, body string }{
		"json error body":  {"application/json", `{"error":{"message":"Rate limit reached for requests","type":"requests"}}`},
		"plain error body": {"text/plain", `slow down`},
	}
	for name, tc := range bodies {
		body := tc.body
		t.Run(name, func(t *testing.T) {
			ts, calls := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tc.contentType)
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(body))
			})

			res := NewClient(ts.Client(), zap.NewNop()).Complete(context.Background(), Request{BaseURL: ts.URL, APIKey: "k"})
			assert.Equal(t, KindRateLimited, res.Kind)
			assert.Equal(t, RateLimitMessage, res.Text)
			assert.NotContains(t, res.Text, "slow down")
			assert.Equal(t, int32(1), calls.Load(), "rate limited calls are not retried")
		})
	}
}

func TestComplete_Failure(t *testing.T) {
	ts, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
	})

	res := NewClient(ts.Client(), zap.NewNop()).Complete(context.Background(), Request{BaseURL: ts.URL, APIKey: "k"})
	assert.Equal(t, KindFailed, res.Kind)
	assert.Empty(t, res.Text)
	assert.Contains(t, res.Detail, "upstream exploded")
}

func TestComplete_Empty(t *testing.T) {
	for name, body := range map[string]string{
		"no choices":    `{"id":"x","choices":[]}`,
		"blank content": completion("   "),
	} {
		t.Run(name, func(t *testing.T) {
			ts, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			})
			res := NewClient(ts.Client(), zap.NewNop()).Complete(context.Background(), Request{BaseURL: ts.URL, APIKey: "k"})
			assert.Equal(t, KindEmpty, res.Kind)
		})
	}
}
