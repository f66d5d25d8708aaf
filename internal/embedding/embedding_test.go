package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opsmind/monchat/config"
)

// hashVector derives a deterministic vector from the input text so order
// preservation is observable.
func hashVector(text string, dim int) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)
	for i := 0; i < dim; i++ {
		vec[i] = float32(sum[i%len(sum)]) / 255
	}
	return vec
}

func newEchoServer(t *testing.T, dim int, requests *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			*requests++
		}
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		for i, text := range req.Input {
			resp.Data = append(resp.Data, item{Embedding: hashVector(text, dim), Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newClientFor(url string, batch int) *Client {
	return NewClient(config.EmbeddingConfig{
		BaseURL:   url,
		Path:      "/v1/embeddings",
		Model:     "test-model",
		BatchSize: batch,
		Timeout:   5 * time.Second,
	})
}

func TestEmbedPreservesOrder(t *testing.T) {
	srv := newEchoServer(t, 8, nil)
	defer srv.Close()

	texts := []string{"alpha", "beta", "gamma"}
	vecs, err := newClientFor(srv.URL, 16).Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vecs))
	}
	for i, text := range texts {
		want := hashVector(text, 8)
		for j := range want {
			if vecs[i][j] != want[j] {
				t.Fatalf("vector %d does not match input %q", i, text)
			}
		}
	}
}

func TestEmbedBatches(t *testing.T) {
	var requests int
	srv := newEchoServer(t, 4, &requests)
	defer srv.Close()

	texts := []string{"a1", "a2", "a3", "a4", "a5"}
	vecs, err := newClientFor(srv.URL, 2).Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 5 {
		t.Fatalf("expected 5 vectors, got %d", len(vecs))
	}
	if requests != 3 {
		t.Fatalf("expected 3 batch requests, got %d", requests)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	vecs, err := newClientFor("http://unreachable.invalid", 16).Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("empty input should be a no-op, got %v, %v", vecs, err)
	}
}

func TestEmbedLengthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1],"index":0}]}`))
	}))
	defer srv.Close()

	_, err := newClientFor(srv.URL, 16).Embed(context.Background(), []string{"one", "two"})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestEmbedUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := newClientFor(srv.URL, 16).Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error for upstream 500")
	}
}
