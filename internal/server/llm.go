package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/opsmind/monchat/internal/llm"
)

// ChatHandler proxies single-turn prompts to the upstream LLM gateway.
type ChatHandler struct {
	Client *llm.Client
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
}

type ChatRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	Stream *bool  `json:"stream,omitempty"`
}

type ChatResponse struct {
	Model string                 `json:"model"`
	Text  string                 `json:"text"`
	Raw   map[string]interface{} `json:"raw"`
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt required")
	}

	raw, err := h.Client.Chat(c.Request().Context(), req.Prompt, req.Model, req.Stream)
	if err != nil {
		if errors.Is(err, llm.ErrDisabled) {
			return echo.NewHTTPError(http.StatusBadRequest, "LLM is disabled by configuration")
		}
		return echo.NewHTTPError(http.StatusBadGateway, "LLM upstream error: "+err.Error())
	}

	model := req.Model
	if model == "" {
		model = h.Client.DefaultModel()
	}
	return c.JSON(http.StatusOK, ChatResponse{Model: model, Text: llm.ExtractText(raw), Raw: raw})
}
