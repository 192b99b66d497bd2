package composer

import (
	"errors"
	"strings"
	"testing"

	"github.com/shakti-ai/shakti/internal/knowledge"
	"github.com/shakti-ai/shakti/internal/log"
	"github.com/shakti-ai/shakti/internal/session"
)

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "rate limit", err: errors.New("rate limit exceeded"), want: true},
		{name: "429 status", err: errors.New("HTTP 429 Too Many Requests"), want: true},
		{name: "quota", err: errors.New("Quota Exceeded for project"), want: true},
		{name: "server 500", err: errors.New("internal error: 500"), want: true},
		{name: "unavailable", err: errors.New("service UNAVAILABLE"), want: true},
		{name: "timeout", err: errors.New("request timeout after 30s"), want: true},
		{name: "connection reset", err: errors.New("read: connection reset by peer"), want: true},
		{name: "invalid argument", err: errors.New("invalid argument: bad model name"), want: false},
		{name: "auth failure", err: errors.New("401 unauthorized"), want: false},
		{name: "safety block", err: errors.New("response blocked by safety settings"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFormatContext(t *testing.T) {
	t.Parallel()

	results := []knowledge.Result{
		{Chunk: knowledge.Chunk{Source: "laws/dv-act.md", Content: "Section 12 allows an aggrieved person to apply..."}},
		{Chunk: knowledge.Chunk{Source: "laws/498a.md", Content: "Section 498A of the IPC penalizes cruelty..."}},
	}

	got := formatContext(results)
	if !strings.Contains(got, "Source: laws/dv-act.md") {
		t.Error("formatted context missing first source label")
	}
	if !strings.Contains(got, "Content: Section 498A of the IPC penalizes cruelty...") {
		t.Error("formatted context missing second content line")
	}
	if !strings.Contains(got, contextSeparator) {
		t.Error("chunks should be joined by the separator")
	}
	if strings.Contains(got, noContextNotice) {
		t.Error("non-empty results must not include the no-context notice")
	}
}

func TestFormatContextEmpty(t *testing.T) {
	t.Parallel()

	got := formatContext(nil)
	if got != noContextNotice {
		t.Errorf("formatContext(nil) = %q, want the no-context notice", got)
	}
}

func TestBuildMessages(t *testing.T) {
	t.Parallel()

	history := []session.Turn{
		{Role: session.RoleUser, Content: "what is section 498A"},
		{Role: session.RoleAssistant, Content: "Section 498A penalizes cruelty by a husband..."},
		{Role: "system", Content: "must be dropped"},
	}

	msgs := buildMessages(history, "how do I file a complaint")
	if len(msgs) != 3 {
		t.Fatalf("buildMessages() produced %d messages, want 3 (unknown roles dropped)", len(msgs))
	}
	last := msgs[len(msgs)-1]
	if last.Content[0].Text != "how do I file a complaint" {
		t.Errorf("last message = %q, want current question", last.Content[0].Text)
	}
	if msgs[0].Content[0].Text != "what is section 498A" {
		t.Error("history order must be preserved")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Logger: log.NewNop(), ModelName: "googleai/gemini-2.5-flash"})
	if err == nil {
		t.Error("New() should require a genkit instance")
	}
}
