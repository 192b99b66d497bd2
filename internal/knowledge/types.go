package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is one embedded slice of a source document. Source and Index
// together identify the chunk, so re-ingesting a document replaces its
// chunks instead of duplicating them.
type Chunk struct {
	ID        uuid.UUID
	Source    string
	Index     int
	Content   string
	CreatedAt time.Time
}

// VectorDimension is the embedding size stored in the knowledge_chunks
// table (vector(768)). gemini-embedding-001 outputs 3072 dimensions by
// default and supports truncation to 768 via OutputDimensionality
// (Matryoshka Representation Learning), so every embed request must ask
// for this dimensionality explicitly.
const VectorDimension int32 = 768

// Result is a retrieved chunk with its cosine similarity to the query.
type Result struct {
	Chunk      Chunk
	Similarity float32
}

// SearchOption configures retrieval using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int
	source  string
	timeout time.Duration
}

// DefaultTopK is the number of chunks retrieved when WithTopK is not given.
const DefaultTopK = 4

// WithTopK sets the maximum number of results to return.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithSource restricts results to chunks from a single source document.
func WithSource(source string) SearchOption {
	return func(c *searchConfig) {
		c.source = source
	}
}

// WithTimeout overrides the default retrieval timeout.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		c.timeout = d
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    DefaultTopK,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
