package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/shakti-ai/shakti/internal/knowledge"
	"github.com/shakti-ai/shakti/internal/language"
	"github.com/shakti-ai/shakti/internal/log"
	"github.com/shakti-ai/shakti/internal/session"
)

// fakeTranslator marks text so tests can observe each direction.
type fakeTranslator struct {
	toEnglishCalls   int
	fromEnglishCalls int
}

func (f *fakeTranslator) ToEnglish(_ context.Context, text string, src language.Tag) string {
	f.toEnglishCalls++
	if language.IsEnglish(src) {
		return text
	}
	return "[en]" + text
}

func (f *fakeTranslator) FromEnglish(_ context.Context, text string, dst language.Tag) string {
	f.fromEnglishCalls++
	if language.IsEnglish(dst) {
		return text
	}
	return "[" + string(dst) + "]" + text
}

type fakeRetriever struct {
	results []knowledge.Result
	err     error
	queries []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, _ ...knowledge.SearchOption) ([]knowledge.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

type fakeComposer struct {
	reply   string
	err     error
	inputs  []string
	chunks  [][]knowledge.Result
	history [][]session.Turn
}

func (f *fakeComposer) Compose(_ context.Context, message string, chunks []knowledge.Result, history []session.Turn) (string, error) {
	f.inputs = append(f.inputs, message)
	f.chunks = append(f.chunks, chunks)
	f.history = append(f.history, history)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// fakeSessions is an in-memory SessionStore recording call order.
type fakeSessions struct {
	sessions  map[uuid.UUID]*session.Session
	turns     map[uuid.UUID][]session.Turn
	events    []string
	appendErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		sessions: make(map[uuid.UUID]*session.Session),
		turns:    make(map[uuid.UUID][]session.Turn),
	}
}

func (f *fakeSessions) Create(_ context.Context, ownerID, title string) (*session.Session, error) {
	f.events = append(f.events, "create")
	s := &session.Session{ID: uuid.New(), OwnerID: ownerID, Title: title}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeSessions) Get(_ context.Context, id uuid.UUID) (*session.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessions) History(_ context.Context, sessionID uuid.UUID, _ int32) ([]session.Turn, error) {
	f.events = append(f.events, "history")
	return f.turns[sessionID], nil
}

func (f *fakeSessions) AppendTurns(_ context.Context, sessionID uuid.UUID, turns []session.Turn) error {
	for _, t := range turns {
		f.events = append(f.events, "append:"+string(t.Role))
	}
	if f.appendErr != nil {
		return f.appendErr
	}
	f.turns[sessionID] = append(f.turns[sessionID], turns...)
	return nil
}

type fixture struct {
	translator *fakeTranslator
	retriever  *fakeRetriever
	composer   *fakeComposer
	sessions   *fakeSessions
	orch       *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		translator: &fakeTranslator{},
		retriever:  &fakeRetriever{},
		composer:   &fakeComposer{reply: "an answer"},
		sessions:   newFakeSessions(),
	}
	orch, err := New(Config{
		Translator: f.translator,
		Retriever:  f.retriever,
		Sessions:   f.sessions,
		Composer:   f.composer,
		Logger:     log.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	f.orch = orch
	return f
}

func TestHandleEmptyMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := f.orch.Handle(context.Background(), Request{Message: msg, UserID: "u1"})
		if !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Handle(%q) error = %v, want ErrEmptyMessage", msg, err)
		}
	}
	if len(f.sessions.events) != 0 {
		t.Error("empty message must not touch the store")
	}
}

func TestHandleNewSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res, err := f.orch.Handle(context.Background(), Request{
		Message: "What are my rights under the Domestic Violence Act?",
		UserID:  "u1",
	})
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	if !res.NewSession {
		t.Error("Handle() without chat ID should report a new session")
	}
	sess := f.sessions.sessions[res.SessionID]
	if sess == nil {
		t.Fatal("session was not created")
	}
	if sess.OwnerID != "u1" {
		t.Errorf("session owner = %q, want u1", sess.OwnerID)
	}
	if sess.Title != "What are my rights under the Domestic Violence Act?" {
		t.Errorf("title = %q, want derived from first message", sess.Title)
	}
}

func TestHandleTitleTruncation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	long := strings.Repeat("a very long question ", 20)
	res, err := f.orch.Handle(context.Background(), Request{Message: long, UserID: "u1"})
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	title := f.sessions.sessions[res.SessionID].Title
	if n := len([]rune(title)); n > titleMaxRunes {
		t.Errorf("title has %d runes, want at most %d", n, titleMaxRunes)
	}
	if !strings.HasSuffix(title, "...") {
		t.Errorf("truncated title should end with ellipsis, got %q", title)
	}
}

func TestHandleExistingSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sess, _ := f.sessions.Create(context.Background(), "u1", "earlier chat")
	f.sessions.turns[sess.ID] = []session.Turn{
		{Role: session.RoleUser, Content: "earlier question", SequenceNumber: 1},
		{Role: session.RoleAssistant, Content: "earlier answer", SequenceNumber: 2},
	}

	res, err := f.orch.Handle(context.Background(), Request{
		Message: "a follow-up",
		ChatID:  sess.ID.String(),
		UserID:  "u1",
	})
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	if res.NewSession {
		t.Error("existing session should not be reported as new")
	}
	if res.SessionID != sess.ID {
		t.Errorf("SessionID = %s, want %s", res.SessionID, sess.ID)
	}

	// History passed to the composer holds only prior turns, not the
	// current question.
	if got := f.composer.history[0]; len(got) != 2 {
		t.Errorf("composer received %d history turns, want 2", len(got))
	}
}

func TestHandleUnknownChatIDStartsNewSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for _, chatID := range []string{uuid.NewString(), "not-a-uuid"} {
		res, err := f.orch.Handle(context.Background(), Request{
			Message: "hello",
			ChatID:  chatID,
			UserID:  "u1",
		})
		if err != nil {
			t.Fatalf("Handle(chatID=%q) unexpected error: %v", chatID, err)
		}
		if !res.NewSession {
			t.Errorf("Handle(chatID=%q) should silently start a new session", chatID)
		}
	}
}

func TestHandleForbidden(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sess, _ := f.sessions.Create(context.Background(), "owner", "private chat")
	f.sessions.events = nil

	_, err := f.orch.Handle(context.Background(), Request{
		Message: "let me in",
		ChatID:  sess.ID.String(),
		UserID:  "intruder",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("Handle() error = %v, want ErrForbidden", err)
	}
	for _, e := range f.sessions.events {
		if strings.HasPrefix(e, "append") || e == "create" {
			t.Errorf("forbidden request must not write, saw event %q", e)
		}
	}
	if len(f.composer.inputs) != 0 {
		t.Error("forbidden request must not reach the composer")
	}
}

func TestHandleUserTurnRecordedBeforeComposition(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res, err := f.orch.Handle(context.Background(), Request{Message: "question", UserID: "u1"})
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}

	turns := f.sessions.turns[res.SessionID]
	if len(turns) != 2 {
		t.Fatalf("session has %d turns, want user + assistant", len(turns))
	}
	if turns[0].Role != session.RoleUser || turns[1].Role != session.RoleAssistant {
		t.Errorf("turn order = [%s, %s], want [user, assistant]", turns[0].Role, turns[1].Role)
	}
	if turns[0].Content != "question" {
		t.Errorf("user turn stores %q, want the original message", turns[0].Content)
	}
}

func TestHandleTranslationPipeline(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.composer.reply = "you can file under section 12"

	hindi := "घरेलू हिंसा अधिनियम के तहत मेरे क्या अधिकार हैं और मैं शिकायत कैसे दर्ज करूं?"
	res, err := f.orch.Handle(context.Background(), Request{Message: hindi, UserID: "u1"})
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}

	if want := "[en]" + hindi; f.composer.inputs[0] != want {
		t.Errorf("composer received %q, want the English translation", f.composer.inputs[0])
	}
	if f.retriever.queries[0] != "[en]"+hindi {
		t.Error("retrieval must use the English text")
	}
	if res.Reply != "[hi]you can file under section 12" {
		t.Errorf("reply = %q, want back-translated answer", res.Reply)
	}
	if res.Language != "hi" {
		t.Errorf("detected language = %q, want hi", res.Language)
	}
}

func TestHandleEnglishPassthrough(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.composer.reply = "the act provides protection orders"

	msg := "What protection does the Domestic Violence Act give me?"
	res, err := f.orch.Handle(context.Background(), Request{Message: msg, UserID: "u1"})
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	if f.composer.inputs[0] != msg {
		t.Error("English input must reach the composer untranslated")
	}
	if res.Reply != "the act provides protection orders" {
		t.Errorf("reply = %q, want untranslated answer", res.Reply)
	}
}

func TestHandleCompositionFailureSendsApology(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.composer.err = errors.New("model blew up")

	res, err := f.orch.Handle(context.Background(), Request{Message: "question", UserID: "u1"})
	if err != nil {
		t.Fatalf("Handle() should degrade, not fail: %v", err)
	}
	if res.Reply != apologyMessage {
		t.Errorf("reply = %q, want the apology", res.Reply)
	}

	// The apology is persisted as the assistant's turn.
	turns := f.sessions.turns[res.SessionID]
	if len(turns) != 2 || turns[1].Content != apologyMessage {
		t.Errorf("assistant turn = %+v, want stored apology", turns)
	}
}

func TestHandleRetrievalFailureComposesWithoutContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.retriever.err = errors.New("pgvector down")
	f.composer.reply = "general guidance"

	res, err := f.orch.Handle(context.Background(), Request{Message: "question", UserID: "u1"})
	if err != nil {
		t.Fatalf("Handle() should degrade, not fail: %v", err)
	}
	if res.Reply != "general guidance" {
		t.Errorf("reply = %q", res.Reply)
	}
	if chunks := f.composer.chunks[0]; chunks != nil {
		t.Errorf("composer should receive nil chunks on retrieval failure, got %v", chunks)
	}
}

func TestHandleAssistantAppendFailureStillReplies(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	// The user-turn append succeeds; the assistant-turn append fails.
	calls := 0
	wrapped := &flakySessions{fakeSessions: f.sessions, failAfter: 1, calls: &calls}
	orch, err := New(Config{
		Translator: f.translator,
		Retriever:  f.retriever,
		Sessions:   wrapped,
		Composer:   f.composer,
		Logger:     log.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	res, err := orch.Handle(context.Background(), Request{Message: "question", UserID: "u1"})
	if err != nil {
		t.Fatalf("Handle() should tolerate assistant append failure: %v", err)
	}
	if res.Reply != "an answer" {
		t.Errorf("reply = %q", res.Reply)
	}
}

// flakySessions fails AppendTurns after the first failAfter calls.
type flakySessions struct {
	*fakeSessions
	failAfter int
	calls     *int
}

func (f *flakySessions) AppendTurns(ctx context.Context, sessionID uuid.UUID, turns []session.Turn) error {
	*f.calls++
	if *f.calls > f.failAfter {
		return errors.New("disk full")
	}
	return f.fakeSessions.AppendTurns(ctx, sessionID, turns)
}
