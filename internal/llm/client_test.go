package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opsmind/monchat/config"
)

func TestExtractTextMessageShape(t *testing.T) {
	raw := map[string]interface{}{
		"message": map[string]interface{}{"content": "from message"},
	}
	if got := ExtractText(raw); got != "from message" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractTextMessagesShape(t *testing.T) {
	raw := map[string]interface{}{
		"messages": []interface{}{
			map[string]interface{}{"content": "first"},
			map[string]interface{}{"content": "last wins"},
		},
	}
	if got := ExtractText(raw); got != "last wins" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractTextResponseShape(t *testing.T) {
	raw := map[string]interface{}{"response": "plain response"}
	if got := ExtractText(raw); got != "plain response" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractTextPriorityOrder(t *testing.T) {
	// When several shapes are present the message shape wins.
	raw := map[string]interface{}{
		"message":  map[string]interface{}{"content": "priority"},
		"response": "ignored",
	}
	if got := ExtractText(raw); got != "priority" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractTextUnknownShape(t *testing.T) {
	raw := map[string]interface{}{
		"message": map[string]interface{}{"content": 42},
		"weird":   true,
	}
	if got := ExtractText(raw); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"message":{"content":"hello there"}}`))
	}))
	defer srv.Close()

	client := NewClient(config.LLMConfig{
		Enabled:      true,
		BaseURL:      srv.URL,
		ChatPath:     "/api/chat",
		DefaultModel: "llama3",
		Timeout:      5 * time.Second,
	})

	raw, err := client.Chat(context.Background(), "hi", "", nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if ExtractText(raw) != "hello there" {
		t.Fatalf("unexpected response: %v", raw)
	}
}

func TestChatDisabled(t *testing.T) {
	client := NewClient(config.LLMConfig{Enabled: false})
	if _, err := client.Chat(context.Background(), "hi", "", nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestChatUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(config.LLMConfig{Enabled: true, BaseURL: srv.URL, ChatPath: "/api/chat", Timeout: 5 * time.Second})
	if _, err := client.Chat(context.Background(), "hi", "", nil); err == nil {
		t.Fatal("expected error for upstream 502")
	}
}
