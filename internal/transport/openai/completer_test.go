package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/syllabus/internal/domain"
)

func newTestCompleter(url string) *Completer {
	return NewCompleter(&CompleterConfig{
		Config: Config{
			APIKey:  "test-key",
			BaseURL: url,
			Model:   "chat-model",
			Logger:  zap.NewNop(),
		},
		Temperature: 0.2,
	})
}

func TestCompleter_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "chat-model" || len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected request: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  "chat-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "Complete the square."},
			}},
			"usage": map[string]any{"prompt_tokens": 30, "completion_tokens": 5, "total_tokens": 35},
		})
	}))
	defer srv.Close()

	res, err := newTestCompleter(srv.URL).Complete(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "You are a tutor."},
		{Role: domain.RoleUser, Content: "How do I solve x^2+2x-3=0?"},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if res.Content != "Complete the square." {
		t.Errorf("content = %q", res.Content)
	}
	if res.PromptTokens != 30 || res.CompletionTokens != 5 {
		t.Errorf("usage = %d/%d", res.PromptTokens, res.CompletionTokens)
	}
}

func TestCompleter_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestCompleter(srv.URL).Complete(context.Background(), []domain.ChatMessage{{Role: "user", Content: "q"}})
	if !errors.Is(err, domain.ErrChatProviderError) {
		t.Fatalf("expected ErrChatProviderError, got %v", err)
	}
}

func TestCompleter_RateLimited(t *testing.T) {
	srv := errorServer(t, http.StatusTooManyRequests)

	_, err := newTestCompleter(srv.URL).Complete(context.Background(), []domain.ChatMessage{{Role: "user", Content: "q"}})
	if !errors.Is(err, domain.ErrChatProviderError) || !errors.Is(err, domain.ErrProviderTransient) {
		t.Fatalf("expected transient chat error, got %v", err)
	}
}

func TestCompleter_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/chat-model" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chat-model","object":"model","owned_by":"test"}`))
	}))
	defer srv.Close()

	if err := newTestCompleter(srv.URL).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}

	down := errorServer(t, http.StatusServiceUnavailable)
	if err := newTestCompleter(down.URL).HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error from unavailable provider")
	}
}
