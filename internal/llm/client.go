// Package llm proxies single-turn chat requests to the in-house LLM gateway
// (an Ollama-style chat API).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opsmind/monchat/config"
)

// ErrDisabled is returned when the proxy is turned off by configuration.
var ErrDisabled = errors.New("llm: disabled by configuration")

// Client is a minimal synchronous chat client.
type Client struct {
	baseURL      string
	chatPath     string
	defaultModel string
	stream       bool
	enabled      bool
	httpClient   *http.Client
}

func NewClient(cfg config.LLMConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		chatPath:     cfg.ChatPath,
		defaultModel: cfg.DefaultModel,
		stream:       cfg.Stream,
		enabled:      cfg.Enabled,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// DefaultModel exposes the configured model name for response echoing.
func (c *Client) DefaultModel() string { return c.defaultModel }

// Enabled reports whether the proxy may be called.
func (c *Client) Enabled() bool { return c.enabled }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat forwards one prompt and returns the upstream's raw JSON response.
func (c *Client) Chat(ctx context.Context, prompt, model string, stream *bool) (map[string]interface{}, error) {
	if !c.enabled {
		return nil, ErrDisabled
	}
	if model == "" {
		model = c.defaultModel
	}
	useStream := c.stream
	if stream != nil {
		useStream = *stream
	}

	payload := map[string]interface{}{
		"model":    model,
		"messages": []message{{Role: "user", Content: prompt}},
		"stream":   useStream,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.chatPath, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("llm upstream returned status: %d", resp.StatusCode)
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("llm upstream: decode response: %w", err)
	}
	return raw, nil
}

// extractor is one pure attempt at pulling answer text out of a response
// shape. The boolean reports whether the shape matched.
type extractor func(map[string]interface{}) (string, bool)

// extractors are tried in priority order; upstream deployments have shipped
// several response shapes.
var extractors = []extractor{
	fromMessage,
	fromMessages,
	fromResponse,
}

// ExtractText pulls the answer text from an upstream response, trying each
// known shape in order. Unknown shapes yield an empty string.
func ExtractText(raw map[string]interface{}) string {
	for _, extract := range extractors {
		if text, ok := extract(raw); ok {
			return text
		}
	}
	return ""
}

// fromMessage matches {"message": {"content": "..."}}.
func fromMessage(raw map[string]interface{}) (string, bool) {
	msg, ok := raw["message"].(map[string]interface{})
	if !ok {
		return "", false
	}
	content, ok := msg["content"].(string)
	return content, ok
}

// fromMessages matches {"messages": [..., {"content": "..."}]}.
func fromMessages(raw map[string]interface{}) (string, bool) {
	msgs, ok := raw["messages"].([]interface{})
	if !ok || len(msgs) == 0 {
		return "", false
	}
	last, ok := msgs[len(msgs)-1].(map[string]interface{})
	if !ok {
		return "", false
	}
	content, ok := last["content"].(string)
	return content, ok
}

// fromResponse matches {"response": "..."}.
func fromResponse(raw map[string]interface{}) (string, bool) {
	text, ok := raw["response"].(string)
	return text, ok
}
