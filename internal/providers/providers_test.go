package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name       string
		providerID string
		wantErr    bool
		wantName   string
	}{
		{"openai", OpenAIName, false, OpenAIName},
		{"deepseek", DeepSeekName, false, DeepSeekName},
		{"anthropic", AnthropicName, false, AnthropicName},
		{"ollama", OllamaName, false, OllamaName},
		{"local alias", "local", false, OllamaName},
		{"rules rejected", RulesName, true, ""},
		{"empty", "", true, ""},
		{"unknown", "palm", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(Config{ProviderID: tt.providerID, APIKey: "k"})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

func TestRetryPolicy(t *testing.T) {
	t.Run("rate limit retried until success", func(t *testing.T) {
		mock := &MockProvider{
			Responses: []string{"ok"},
			Errs: []error{
				&RateLimitError{Message: "slow down", StatusCode: 429},
				&RateLimitError{Message: "slow down", StatusCode: 429},
				nil,
			},
		}
		p := WithRetry(mock, Config{MaxRetries: 3, RetryDelay: time.Millisecond})

		got, err := p.Complete(context.Background(), "prompt")
		if err != nil {
			t.Fatalf("Complete failed after retries: %v", err)
		}
		if got != "ok" {
			t.Errorf("response = %q, want %q", got, "ok")
		}
		if mock.Calls() != 3 {
			t.Errorf("calls = %d, want 3", mock.Calls())
		}
	})

	t.Run("timeout retried", func(t *testing.T) {
		mock := &MockProvider{
			Responses: []string{"ok"},
			Errs:      []error{ErrTimeout, nil},
		}
		p := WithRetry(mock, Config{MaxRetries: 3, RetryDelay: time.Millisecond})

		if _, err := p.Complete(context.Background(), "prompt"); err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
		if mock.Calls() != 2 {
			t.Errorf("calls = %d, want 2", mock.Calls())
		}
	})

	t.Run("retries exhausted", func(t *testing.T) {
		mock := &MockProvider{
			Errs: []error{ErrTimeout, ErrTimeout, ErrTimeout, ErrTimeout},
		}
		p := WithRetry(mock, Config{MaxRetries: 3, RetryDelay: time.Millisecond})

		_, err := p.Complete(context.Background(), "prompt")
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("expected ErrTimeout after exhaustion, got %v", err)
		}
		if mock.Calls() != 3 {
			t.Errorf("calls = %d, want 3", mock.Calls())
		}
	})

	t.Run("fatal errors propagate immediately", func(t *testing.T) {
		mock := &MockProvider{
			Errs: []error{ErrAuthentication},
		}
		p := WithRetry(mock, Config{MaxRetries: 3, RetryDelay: time.Millisecond})

		_, err := p.Complete(context.Background(), "prompt")
		if !errors.Is(err, ErrAuthentication) {
			t.Fatalf("expected ErrAuthentication, got %v", err)
		}
		if mock.Calls() != 1 {
			t.Errorf("calls = %d, want 1 (no retries)", mock.Calls())
		}
	})
}

func TestRateLimiterWait(t *testing.T) {
	t.Run("tokens available immediately", func(t *testing.T) {
		limiter := NewRateLimiter(600)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		start := time.Now()
		for i := 0; i < 5; i++ {
			if err := limiter.Wait(ctx); err != nil {
				t.Fatalf("Wait failed: %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
			t.Errorf("waits took too long: %s", elapsed)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		limiter := NewRateLimiter(1)
		// Drain the bucket.
		ctx := context.Background()
		for i := 0; i < 1; i++ {
			if err := limiter.Wait(ctx); err != nil {
				t.Fatalf("Wait failed: %v", err)
			}
		}
		limiter.mu.Lock()
		limiter.tokens = 0
		limiter.mu.Unlock()

		cancelled, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := limiter.Wait(cancelled); err == nil {
			t.Error("expected context error from empty bucket")
		}
	})
}

func TestOllamaModelUnavailable(t *testing.T) {
	t.Run("missing model is 404", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"model 'nope' not found"}`))
		}))
		defer server.Close()

		p := NewOllamaProvider(Config{BaseURL: server.URL, Model: "nope"})
		_, err := p.Complete(context.Background(), "x")
		if !errors.Is(err, ErrModelUnavailable) {
			t.Errorf("expected ErrModelUnavailable, got %v", err)
		}
	})

	t.Run("server down", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // connection refused from now on

		p := NewOllamaProvider(Config{BaseURL: server.URL})
		err := p.HealthCheck(context.Background())
		if !errors.Is(err, ErrModelUnavailable) {
			t.Errorf("expected ErrModelUnavailable, got %v", err)
		}
	})

	t.Run("health check finds model", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/tags" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			w.Write([]byte(`{"models":[{"name":"qwen2.5:7b"}]}`))
		}))
		defer server.Close()

		p := NewOllamaProvider(Config{BaseURL: server.URL, Model: "qwen2.5:7b"})
		if err := p.HealthCheck(context.Background()); err != nil {
			t.Errorf("HealthCheck failed: %v", err)
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"0", 0},
		{"-3", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		sentinel error
	}{
		{http.StatusUnauthorized, ErrAuthentication},
		{http.StatusForbidden, ErrAuthentication},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusRequestTimeout, ErrTimeout},
		{http.StatusGatewayTimeout, ErrTimeout},
		{http.StatusNotFound, ErrModelUnavailable},
		{http.StatusServiceUnavailable, ErrModelUnavailable},
	}
	for _, tt := range tests {
		err := classifyHTTPStatus("test", tt.status, "body", 0)
		if !errors.Is(err, tt.sentinel) {
			t.Errorf("status %d: error %v does not match sentinel %v", tt.status, err, tt.sentinel)
		}
	}

	// Unmapped statuses stay generic.
	err := classifyHTTPStatus("test", http.StatusInternalServerError, "boom", 0)
	for _, sentinel := range []error{ErrAuthentication, ErrRateLimited, ErrTimeout, ErrModelUnavailable} {
		if errors.Is(err, sentinel) {
			t.Errorf("status 500 should not map to %v", sentinel)
		}
	}
}
