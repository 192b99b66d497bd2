// Package knowledge stores embedded document chunks in PostgreSQL with
// pgvector and retrieves the ones most similar to a query.
package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/shakti-ai/shakti/internal/log"
)

// Querier defines the database operations the store needs. Defined by
// the consumer; *Queries is the production implementation.
type Querier interface {
	UpsertChunk(ctx context.Context, source string, index int, content string, embedding pgvector.Vector) error
	SearchChunks(ctx context.Context, embedding pgvector.Vector, limit int32) ([]Result, error)
	SearchChunksBySource(ctx context.Context, embedding pgvector.Vector, source string, limit int32) ([]Result, error)
	CountChunks(ctx context.Context) (int64, error)
	DeleteChunksBySource(ctx context.Context, source string) error
}

// Store manages embedded chunks with vector similarity search.
// Safe for concurrent use.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   log.Logger
}

// New creates a Store.
func New(querier Querier, embedder ai.Embedder, logger log.Logger) *Store {
	return &Store{queries: querier, embedder: embedder, logger: logger}
}

// Add embeds content and upserts it as chunk (source, index).
func (s *Store) Add(ctx context.Context, source string, index int, content string) error {
	embedding, err := s.embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embedding chunk %s[%d]: %w", source, index, err)
	}

	if err := s.queries.UpsertChunk(ctx, source, index, content, embedding); err != nil {
		return fmt.Errorf("upserting chunk %s[%d]: %w", source, index, err)
	}

	s.logger.Debug("added chunk", "source", source, "index", index, "content_length", len(content))
	return nil
}

// Retrieve returns the chunks most similar to query, best match first.
// An empty knowledge base yields an empty slice, not an error.
func (s *Store) Retrieve(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var results []Result
	if cfg.source != "" {
		results, err = s.queries.SearchChunksBySource(queryCtx, embedding, cfg.source, int32(cfg.topK))
	} else {
		results, err = s.queries.SearchChunks(queryCtx, embedding, int32(cfg.topK))
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search timeout: %w", err)
		}
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	s.logger.Debug("retrieved chunks", "count", len(results), "top_k", cfg.topK)
	return results, nil
}

// Count returns the total number of stored chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	count, err := s.queries.CountChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// DeleteSource removes all chunks ingested from source.
func (s *Store) DeleteSource(ctx context.Context, source string) error {
	if err := s.queries.DeleteChunksBySource(ctx, source); err != nil {
		return fmt.Errorf("deleting chunks for %s: %w", source, err)
	}
	return nil
}

func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, errors.New("embedder returned empty embedding")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
