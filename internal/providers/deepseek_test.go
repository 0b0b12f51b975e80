package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func deepSeekTestServer(t *testing.T, handler http.HandlerFunc) *DeepSeekProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewDeepSeekProvider(Config{
		ProviderID: DeepSeekName,
		APIKey:     "test-key",
		BaseURL:    server.URL,
	})
}

func TestDeepSeekComplete(t *testing.T) {
	t.Run("successful completion", func(t *testing.T) {
		p := deepSeekTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Method != "POST" {
				t.Errorf("unexpected method: %s", r.Method)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}

			var req chatCompletionRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			if len(req.Messages) != 1 || req.Messages[0].Content != "extract things" {
				t.Errorf("unexpected messages: %+v", req.Messages)
			}

			resp := map[string]any{
				"id":    "test-id",
				"model": "deepseek-chat",
				"choices": []map[string]any{
					{"message": map[string]any{"role": "assistant", "content": `[{"type":"number","value":"42"}]`}},
				},
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		})

		got, err := p.Complete(context.Background(), "extract things")
		if err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
		if got != `[{"type":"number","value":"42"}]` {
			t.Errorf("unexpected response: %q", got)
		}
	})

	t.Run("authentication error", func(t *testing.T) {
		p := deepSeekTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := p.Complete(context.Background(), "x")
		if !errors.Is(err, ErrAuthentication) {
			t.Errorf("expected ErrAuthentication, got %v", err)
		}
		if IsRetryable(err) {
			t.Error("authentication errors must not be retryable")
		}
	})

	t.Run("rate limited with retry-after", func(t *testing.T) {
		p := deepSeekTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := p.Complete(context.Background(), "x")
		if !errors.Is(err, ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
		rle, ok := IsRateLimitError(err)
		if !ok {
			t.Fatal("expected structured RateLimitError")
		}
		if rle.RetryAfter != 7*time.Second {
			t.Errorf("RetryAfter = %s, want 7s", rle.RetryAfter)
		}
		if !IsRetryable(err) {
			t.Error("rate limit errors must be retryable")
		}
	})

	t.Run("model not found", func(t *testing.T) {
		p := deepSeekTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := p.Complete(context.Background(), "x")
		if !errors.Is(err, ErrModelUnavailable) {
			t.Errorf("expected ErrModelUnavailable, got %v", err)
		}
	})

	t.Run("unparseable body", func(t *testing.T) {
		p := deepSeekTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		})

		_, err := p.Complete(context.Background(), "x")
		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("expected ErrMalformedResponse, got %v", err)
		}
	})

	t.Run("no choices", func(t *testing.T) {
		p := deepSeekTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"x","choices":[]}`))
		})

		_, err := p.Complete(context.Background(), "x")
		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("expected ErrMalformedResponse, got %v", err)
		}
	})
}
