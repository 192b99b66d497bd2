package composer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/shakti-ai/shakti/internal/knowledge"
	"github.com/shakti-ai/shakti/internal/log"
	"github.com/shakti-ai/shakti/internal/session"
	"github.com/shakti-ai/shakti/internal/testutil"
)

func newMockComposer(t *testing.T, fallback string) (*Composer, *testutil.MockLLM) {
	t.Helper()

	g := genkit.Init(context.Background())
	if g == nil {
		t.Fatal("initializing genkit")
	}
	mock := testutil.NewMockLLM(fallback)
	mock.RegisterModel(g)

	c, err := New(Config{
		Genkit:      g,
		Logger:      log.NewNop(),
		ModelName:   "mock/test-model",
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, mock
}

func TestComposeWithMockModel(t *testing.T) {
	c, mock := newMockComposer(t, "general answer")
	mock.AddResponse("dowry", "Section 498A IPC covers cruelty related to dowry demands.")

	chunks := []knowledge.Result{
		{Chunk: knowledge.Chunk{Source: "ipc.md", Content: "Section 498A punishes cruelty by husband or relatives."}, Similarity: 0.9},
	}
	history := []session.Turn{
		{Role: session.RoleUser, Content: "Hello"},
		{Role: session.RoleAssistant, Content: "Hello, how can I help?"},
	}

	reply, err := c.Compose(context.Background(), "What protects me from dowry harassment?", chunks, history)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if !strings.Contains(reply, "498A") {
		t.Errorf("Compose() = %q, want dowry response", reply)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(calls))
	}
	if calls[0].UserMessage != "What protects me from dowry harassment?" {
		t.Errorf("user message = %q", calls[0].UserMessage)
	}
	if !strings.Contains(calls[0].System, "Source: ipc.md") {
		t.Errorf("system prompt missing reference material: %q", calls[0].System)
	}
}

// flakyModel fails every call with a transient-looking error and counts
// invocations.
type flakyModel struct {
	calls int
}

func (f *flakyModel) register(t *testing.T, g *genkit.Genkit) {
	t.Helper()
	genkit.DefineModel(g, "mock/flaky-model", &ai.ModelOptions{
		Supports: &ai.ModelSupports{Multiturn: true, SystemRole: true},
	}, func(context.Context, *ai.ModelRequest, ai.ModelStreamCallback) (*ai.ModelResponse, error) {
		f.calls++
		return nil, errors.New("503 service unavailable")
	})
}

// Generation is single-attempt by default: a transient failure degrades to
// the apology path instead of stacking backoff behind the user's request.
func TestComposeSingleAttemptByDefault(t *testing.T) {
	g := genkit.Init(context.Background())
	if g == nil {
		t.Fatal("initializing genkit")
	}
	flaky := &flakyModel{}
	flaky.register(t, g)

	c, err := New(Config{
		Genkit:    g,
		Logger:    log.NewNop(),
		ModelName: "mock/flaky-model",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := c.Compose(context.Background(), "question", nil, nil); err == nil {
		t.Fatal("Compose() should propagate the generation failure")
	}
	if flaky.calls != 1 {
		t.Errorf("model invocations = %d, want 1", flaky.calls)
	}
}

func TestComposeRetriesWhenConfigured(t *testing.T) {
	g := genkit.Init(context.Background())
	if g == nil {
		t.Fatal("initializing genkit")
	}
	flaky := &flakyModel{}
	flaky.register(t, g)

	c, err := New(Config{
		Genkit:    g,
		Logger:    log.NewNop(),
		ModelName: "mock/flaky-model",
		RetryConfig: RetryConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := c.Compose(context.Background(), "question", nil, nil); err == nil {
		t.Fatal("Compose() should fail once retries are exhausted")
	}
	if flaky.calls != 3 {
		t.Errorf("model invocations = %d, want 3 (1 attempt + 2 retries)", flaky.calls)
	}
}

func TestComposeEmptyModelResponse(t *testing.T) {
	c, _ := newMockComposer(t, "")

	reply, err := c.Compose(context.Background(), "anything", nil, nil)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if reply != fallbackResponseMessage {
		t.Errorf("Compose() = %q, want fallback message", reply)
	}
}
