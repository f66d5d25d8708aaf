// Package vectorstore persists embedded telemetry documents in Postgres with
// the pgvector extension and serves nearest-neighbour queries over them.
package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// ErrDimensionMismatch reports an insert whose embedding length does not match
// the schema dimension. The write batch for that date must stop; silently
// storing a truncated vector would corrupt the index.
var ErrDimensionMismatch = errors.New("vectorstore: embedding dimension mismatch")

// Document is one stored unit of retrievable text.
type Document struct {
	ID        int64
	Source    string
	Content   string
	CreatedAt time.Time
}

// SearchResult is a document annotated with 1 - cosine distance to the query.
type SearchResult struct {
	ID      int64   `json:"id"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Store wraps the documents table. Dim is the schema's declared vector
// dimension; changing it requires a fresh schema.
type Store struct {
	DB  *sql.DB
	Dim int
}

// New opens and verifies a connection to the vector database.
func New(ctx context.Context, dsn string, dim int) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("vectorstore connect: %w", err)
	}
	return &Store{DB: db, Dim: dim}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// EnsureSchema creates the vector extension, the documents table and the
// cosine similarity index. Every statement is IF NOT EXISTS, so repeated or
// concurrent calls are safe.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
    id SERIAL PRIMARY KEY,
    source TEXT,
    content TEXT,
    created_at TIMESTAMP DEFAULT NOW(),
    embedding vector(%d)
)`, s.Dim),
		`CREATE INDEX IF NOT EXISTS idx_documents_embedding ON documents USING ivfflat (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Insert appends one document. The corpus is append-only; there is no update
// or delete path.
func (s *Store) Insert(ctx context.Context, source, content string, embedding []float32) error {
	if len(embedding) != s.Dim {
		return fmt.Errorf("%w: got %d want %d", ErrDimensionMismatch, len(embedding), s.Dim)
	}
	lit, err := encodeVectorLiteral(embedding)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO documents (source, content, embedding) VALUES ($1,$2,$3::vector)`,
		source, content, lit)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// SearchSimilar returns up to topK documents nearest to the query vector.
// Ordering uses the distance operator and the reported score is
// 1 - cosine distance, computed in the same statement so rank and score stay
// consistent.
func (s *Store) SearchSimilar(ctx context.Context, query []float32, topK int) ([]SearchResult, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("vector must not be empty")
	}
	if topK <= 0 {
		topK = 5
	}
	lit, err := encodeVectorLiteral(query)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, source, content, 1 - (embedding <=> $1::vector) AS score
FROM documents
ORDER BY embedding <-> $1::vector
LIMIT $2
`, lit, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			res     SearchResult
			source  sql.NullString
			content sql.NullString
		)
		if err := rows.Scan(&res.ID, &source, &content, &res.Score); err != nil {
			return nil, err
		}
		res.Source = source.String
		res.Content = content.String
		results = append(results, res)
	}
	return results, rows.Err()
}

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}

func decodeVectorLiteral(lit string) ([]float32, error) {
	lit = strings.TrimSpace(lit)
	if lit == "" {
		return nil, fmt.Errorf("empty vector literal")
	}
	lit = strings.TrimPrefix(lit, "[")
	lit = strings.TrimSuffix(lit, "]")
	parts := strings.Split(lit, ",")
	vec := make([]float32, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		f, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector value %q: %w", value, err)
		}
		vec = append(vec, float32(f))
	}
	return vec, nil
}
