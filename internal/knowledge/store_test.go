package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/shakti-ai/shakti/internal/log"
)

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	delay         time.Duration
	embedErr      error
	returnEmpty   bool
	embeddings    []float32
	callCount     int
	lastInputText string
	lastOptions   any
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(r api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		m.lastInputText = req.Input[0].Content[0].Text
	}
	m.lastOptions = req.Options
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.returnEmpty {
		return &ai.EmbedResponse{Embeddings: nil}, nil
	}
	emb := m.embeddings
	if emb == nil {
		emb = []float32{0.1, 0.2, 0.3}
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: emb}},
	}, nil
}

// mockChunkQuerier records upserts and serves canned search results.
type mockChunkQuerier struct {
	upserted  []Chunk
	deleted   []string
	results   []Result
	searchErr error
}

func (m *mockChunkQuerier) UpsertChunk(_ context.Context, source string, index int, content string, _ pgvector.Vector) error {
	m.upserted = append(m.upserted, Chunk{Source: source, Index: index, Content: content})
	return nil
}

func (m *mockChunkQuerier) SearchChunks(_ context.Context, _ pgvector.Vector, limit int32) ([]Result, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if int32(len(m.results)) > limit {
		return m.results[:limit], nil
	}
	return m.results, nil
}

func (m *mockChunkQuerier) SearchChunksBySource(_ context.Context, emb pgvector.Vector, source string, limit int32) ([]Result, error) {
	all, err := m.SearchChunks(context.Background(), emb, limit)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, r := range all {
		if r.Chunk.Source == source {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockChunkQuerier) CountChunks(_ context.Context) (int64, error) {
	return int64(len(m.upserted)), nil
}

func (m *mockChunkQuerier) DeleteChunksBySource(_ context.Context, source string) error {
	m.deleted = append(m.deleted, source)
	return nil
}

func TestAdd(t *testing.T) {
	t.Parallel()

	q := &mockChunkQuerier{}
	embed := &mockEmbedder{}
	store := New(q, embed, log.NewNop())

	err := store.Add(context.Background(), "laws/dv-act.md", 0, "The Protection of Women from Domestic Violence Act, 2005...")
	if err != nil {
		t.Fatalf("Add() unexpected error: %v", err)
	}
	if len(q.upserted) != 1 {
		t.Fatalf("upserted %d chunks, want 1", len(q.upserted))
	}
	if q.upserted[0].Source != "laws/dv-act.md" || q.upserted[0].Index != 0 {
		t.Errorf("upserted chunk = %+v", q.upserted[0])
	}
	if embed.callCount != 1 {
		t.Errorf("embedder called %d times, want 1", embed.callCount)
	}
}

// The knowledge_chunks column is vector(768) while gemini-embedding-001
// defaults to 3072 dimensions, so every embed request must ask for the
// schema's dimensionality or inserts and searches fail at the database.
func TestEmbedRequestsSchemaDimension(t *testing.T) {
	t.Parallel()

	q := &mockChunkQuerier{}
	embed := &mockEmbedder{}
	store := New(q, embed, log.NewNop())
	ctx := context.Background()

	if err := store.Add(ctx, "x.md", 0, "some text"); err != nil {
		t.Fatalf("Add() unexpected error: %v", err)
	}
	assertDimensionality := func() {
		t.Helper()
		cfg, ok := embed.lastOptions.(*genai.EmbedContentConfig)
		if !ok {
			t.Fatalf("embed options = %T, want *genai.EmbedContentConfig", embed.lastOptions)
		}
		if cfg.OutputDimensionality == nil {
			t.Fatal("OutputDimensionality not set")
		}
		if *cfg.OutputDimensionality != VectorDimension {
			t.Errorf("OutputDimensionality = %d, want %d", *cfg.OutputDimensionality, VectorDimension)
		}
	}
	assertDimensionality()

	if _, err := store.Retrieve(ctx, "some query"); err != nil {
		t.Fatalf("Retrieve() unexpected error: %v", err)
	}
	assertDimensionality()
}

func TestAddEmbedderError(t *testing.T) {
	t.Parallel()

	q := &mockChunkQuerier{}
	embed := &mockEmbedder{embedErr: errors.New("quota exhausted")}
	store := New(q, embed, log.NewNop())

	if err := store.Add(context.Background(), "x.md", 0, "text"); err == nil {
		t.Fatal("Add() should propagate embedder error")
	}
	if len(q.upserted) != 0 {
		t.Error("nothing should be upserted when embedding fails")
	}
}

func TestAddEmptyEmbedding(t *testing.T) {
	t.Parallel()

	store := New(&mockChunkQuerier{}, &mockEmbedder{returnEmpty: true}, log.NewNop())

	if err := store.Add(context.Background(), "x.md", 0, "text"); err == nil {
		t.Fatal("Add() should reject empty embedding")
	}
}

func TestRetrieve(t *testing.T) {
	t.Parallel()

	q := &mockChunkQuerier{results: []Result{
		{Chunk: Chunk{Source: "a.md", Content: "first"}, Similarity: 0.92},
		{Chunk: Chunk{Source: "b.md", Content: "second"}, Similarity: 0.85},
		{Chunk: Chunk{Source: "c.md", Content: "third"}, Similarity: 0.60},
		{Chunk: Chunk{Source: "d.md", Content: "fourth"}, Similarity: 0.55},
		{Chunk: Chunk{Source: "e.md", Content: "fifth"}, Similarity: 0.40},
	}}
	embed := &mockEmbedder{}
	store := New(q, embed, log.NewNop())

	results, err := store.Retrieve(context.Background(), "maintenance rights")
	if err != nil {
		t.Fatalf("Retrieve() unexpected error: %v", err)
	}
	if len(results) != DefaultTopK {
		t.Errorf("Retrieve() returned %d results, want default top-k %d", len(results), DefaultTopK)
	}
	if embed.lastInputText != "maintenance rights" {
		t.Errorf("query embedded = %q", embed.lastInputText)
	}
	if !sort.SliceIsSorted(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	}) {
		t.Error("results should be ordered best match first")
	}
}

func TestRetrieveTopK(t *testing.T) {
	t.Parallel()

	q := &mockChunkQuerier{results: []Result{
		{Chunk: Chunk{Content: "one"}, Similarity: 0.9},
		{Chunk: Chunk{Content: "two"}, Similarity: 0.8},
	}}
	store := New(q, &mockEmbedder{}, log.NewNop())

	results, err := store.Retrieve(context.Background(), "q", WithTopK(1))
	if err != nil {
		t.Fatalf("Retrieve() unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Retrieve(WithTopK(1)) returned %d results", len(results))
	}
}

func TestRetrieveEmptyStore(t *testing.T) {
	t.Parallel()

	store := New(&mockChunkQuerier{}, &mockEmbedder{}, log.NewNop())

	results, err := store.Retrieve(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Retrieve() on empty store unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Retrieve() = %d results, want 0", len(results))
	}
}

func TestRetrieveEmbedderTimeout(t *testing.T) {
	t.Parallel()

	embed := &mockEmbedder{delay: time.Second}
	store := New(&mockChunkQuerier{}, embed, log.NewNop())

	_, err := store.Retrieve(context.Background(), "q", WithTimeout(10*time.Millisecond))
	if err == nil {
		t.Fatal("Retrieve() should fail when embedding exceeds the timeout")
	}
}

func TestIngestDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "dv-act.md", strings.Repeat("domestic violence act provisions ", 100))
	writeFile(t, dir, "notes.txt", "short note")
	writeFile(t, dir, "ignored.pdf", "binary-ish")
	writeFile(t, dir, "empty.md", "   ")

	q := &mockChunkQuerier{}
	store := New(q, &mockEmbedder{}, log.NewNop())

	n, err := store.IngestDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestDir() unexpected error: %v", err)
	}
	if n != len(q.upserted) {
		t.Errorf("IngestDir() reported %d chunks, recorded %d", n, len(q.upserted))
	}

	sources := map[string]bool{}
	for _, c := range q.upserted {
		sources[c.Source] = true
	}
	if !sources["dv-act.md"] || !sources["notes.txt"] {
		t.Errorf("expected .md and .txt files ingested, got sources %v", sources)
	}
	if sources["ignored.pdf"] {
		t.Error("non-text files must be skipped")
	}
	if sources["empty.md"] {
		t.Error("whitespace-only files must be skipped")
	}
}

func TestIngestDirIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.md", strings.Repeat("maintenance under section 125 ", 80))

	q := &mockChunkQuerier{}
	store := New(q, &mockEmbedder{}, log.NewNop())
	ctx := context.Background()

	first, err := store.IngestDir(ctx, dir)
	if err != nil {
		t.Fatalf("IngestDir() unexpected error: %v", err)
	}
	second, err := store.IngestDir(ctx, dir)
	if err != nil {
		t.Fatalf("IngestDir() second run unexpected error: %v", err)
	}

	if first != second {
		t.Errorf("chunk counts differ between runs: %d vs %d", first, second)
	}
	// Existing chunks are cleared before each re-ingest.
	if len(q.deleted) != 2 {
		t.Errorf("DeleteChunksBySource called %d times, want once per ingest", len(q.deleted))
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}
