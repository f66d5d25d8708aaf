// Package retrieval answers questions with a two-tier lookup: nearest
// neighbours from the vector store when it is healthy, keyword scoring over
// recent source files otherwise. A call returns a ranked list or an empty
// list, never an error.
package retrieval

import (
	"context"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opsmind/monchat/internal/embedding"
	"github.com/opsmind/monchat/internal/vectorstore"
)

const (
	minTopK = 1
	maxTopK = 50
)

var (
	vectorServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monchat_retrieval_vector_total",
		Help: "Requests answered by the vector tier.",
	})
	fallbackServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monchat_retrieval_fallback_total",
		Help: "Requests answered by the keyword fallback tier.",
	})
)

// Result is one ranked answer. Score is cosine similarity on the vector path
// and a keyword hit count on the fallback path; one response never mixes the
// two scales.
type Result struct {
	ID      int64   `json:"id,omitempty"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Service holds the shared retrieval dependencies. Store is nil when the
// vector backend is disabled for the deployment.
type Service struct {
	Store    *vectorstore.Store
	Embedder embedding.Provider
	Fallback *KeywordRanker
	Logger   *log.Logger
}

func NewService(store *vectorstore.Store, embedder embedding.Provider, fallback *KeywordRanker, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.Writer(), "[RETRIEVAL] ", log.LstdFlags)
	}
	return &Service{Store: store, Embedder: embedder, Fallback: fallback, Logger: logger}
}

// ClampTopK bounds a requested result count to [1, 50].
func ClampTopK(topK int) int {
	if topK < minTopK {
		return minTopK
	}
	if topK > maxTopK {
		return maxTopK
	}
	return topK
}

// Retrieve answers a question with at most topK results and echoes the
// clamped topK actually used. An empty question short-circuits without
// touching any backend. When the vector tier is enabled but degraded the call
// falls through to the keyword tier instead of surfacing the failure.
func (s *Service) Retrieve(ctx context.Context, question string, topK int) ([]Result, int) {
	topK = ClampTopK(topK)
	question = strings.TrimSpace(question)
	if question == "" {
		return []Result{}, topK
	}

	if s.Store != nil && s.Embedder != nil {
		if results, ok := s.vectorSearch(ctx, question, topK); ok {
			vectorServed.Inc()
			return results, topK
		}
	}

	fallbackServed.Inc()
	results := s.Fallback.Rank(question, topK)
	if results == nil {
		results = []Result{}
	}
	return results, topK
}

// vectorSearch attempts the vector tier and reports a structured outcome:
// ok=false marks the tier as degraded for this request, whatever the cause.
func (s *Service) vectorSearch(ctx context.Context, question string, topK int) ([]Result, bool) {
	vectors, err := s.Embedder.Embed(ctx, []string{question})
	if err != nil {
		s.Logger.Printf("warn: embed question: %v", err)
		return nil, false
	}
	if len(vectors) != 1 {
		s.Logger.Printf("warn: embed question: got %d vectors", len(vectors))
		return nil, false
	}

	hits, err := s.Store.SearchSimilar(ctx, vectors[0], topK)
	if err != nil {
		s.Logger.Printf("warn: similarity search: %v", err)
		return nil, false
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{ID: h.ID, Source: h.Source, Content: h.Content, Score: h.Score})
	}
	return results, true
}
