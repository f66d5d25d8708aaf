package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opsmind/monchat/internal/retrieval"
)

// defaultTopK applies when a request omits top_k entirely.
const defaultTopK = 5

// QAHandler serves question answering over the ingested telemetry corpus.
type QAHandler struct {
	Retriever *retrieval.Service
}

func (h *QAHandler) Register(g *echo.Group) {
	g.POST("", h.query)
	g.POST("/", h.query)
}

// QARequest is the question payload. TopK is a pointer so an omitted value
// can default without conflating it with an explicit zero.
type QARequest struct {
	Question string `json:"question"`
	TopK     *int   `json:"top_k"`
}

// QAResponse echoes the question and the clamped top_k actually used.
type QAResponse struct {
	Question string             `json:"question"`
	Answers  []retrieval.Result `json:"answers"`
	TopK     int                `json:"top_k"`
}

func (h *QAHandler) query(c echo.Context) error {
	var req QARequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	topK := defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	answers, used := h.Retriever.Retrieve(c.Request().Context(), req.Question, topK)
	return c.JSON(http.StatusOK, QAResponse{Question: req.Question, Answers: answers, TopK: used})
}
