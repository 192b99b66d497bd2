// Package chat orchestrates the conversational pipeline: language
// detection, translation to the English pivot, retrieval, answer
// composition, translation back, and session persistence.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/shakti-ai/shakti/internal/knowledge"
	"github.com/shakti-ai/shakti/internal/language"
	"github.com/shakti-ai/shakti/internal/log"
	"github.com/shakti-ai/shakti/internal/session"
)

// Sentinel errors for request handling.
var (
	// ErrEmptyMessage indicates the request carried no message text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrForbidden indicates the session belongs to another user.
	ErrForbidden = errors.New("session belongs to another user")
)

// apologyMessage is delivered (translated) when the pipeline cannot
// produce an answer. The conversation stays intact; only this turn is
// degraded.
const apologyMessage = "I'm facing a technical issue right now. Please try again later."

// titleMaxRunes bounds session titles derived from the first message.
const titleMaxRunes = 80

// Translator bridges user languages and English.
type Translator interface {
	ToEnglish(ctx context.Context, text string, src language.Tag) string
	FromEnglish(ctx context.Context, text string, dst language.Tag) string
}

// Retriever finds reference chunks for an English query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// SessionStore persists sessions and turns.
type SessionStore interface {
	Create(ctx context.Context, ownerID, title string) (*session.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*session.Session, error)
	History(ctx context.Context, sessionID uuid.UUID, limit int32) ([]session.Turn, error)
	AppendTurns(ctx context.Context, sessionID uuid.UUID, turns []session.Turn) error
}

// Composer generates an English answer from question, chunks, and history.
type Composer interface {
	Compose(ctx context.Context, message string, chunks []knowledge.Result, history []session.Turn) (string, error)
}

// Request is one user message addressed to a session.
type Request struct {
	// Message is the user's text, in any supported language.
	Message string

	// ChatID optionally names an existing session. Empty or unknown
	// IDs start a new session.
	ChatID string

	// UserID identifies the requesting user.
	UserID string
}

// Result is the pipeline's answer.
type Result struct {
	SessionID  uuid.UUID    `json:"session_id"`
	Reply      string       `json:"reply"`
	Language   language.Tag `json:"language"`
	NewSession bool         `json:"new_session"`
}

// Config contains all required parameters for the Orchestrator.
type Config struct {
	Translator Translator
	Retriever  Retriever
	Sessions   SessionStore
	Composer   Composer
	Logger     log.Logger

	// MaxHistoryTurns bounds how many prior turns feed composition.
	MaxHistoryTurns int32

	// TopK is the number of chunks retrieved per question
	// (0 uses the retriever default).
	TopK int
}

func (cfg Config) validate() error {
	if cfg.Translator == nil {
		return errors.New("translator is required")
	}
	if cfg.Retriever == nil {
		return errors.New("retriever is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.Composer == nil {
		return errors.New("composer is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Orchestrator runs the pipeline. Stateless; safe for concurrent use.
type Orchestrator struct {
	translator      Translator
	retriever       Retriever
	sessions        SessionStore
	composer        Composer
	logger          log.Logger
	maxHistoryTurns int32
	topK            int
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxHistory := cfg.MaxHistoryTurns
	if maxHistory <= 0 {
		maxHistory = 100
	}

	return &Orchestrator{
		translator:      cfg.Translator,
		retriever:       cfg.Retriever,
		sessions:        cfg.Sessions,
		composer:        cfg.Composer,
		logger:          cfg.Logger,
		maxHistoryTurns: maxHistory,
		topK:            cfg.TopK,
	}, nil
}

// Handle processes one request end to end.
//
// The happy path: resolve the session, detect the language, translate
// to English, persist the user turn, retrieve reference chunks, compose
// an answer, translate it back, persist the assistant turn.
//
// Degradation: translation and retrieval failures shrink the answer's
// quality but never fail the request; a composition failure yields an
// apology in the user's language. Only invalid input (ErrEmptyMessage),
// foreign sessions (ErrForbidden), and persistence of the user's turn
// surface as errors.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Result, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	sess, created, err := o.resolveSession(ctx, req.ChatID, req.UserID, message)
	if err != nil {
		return nil, err
	}

	lang := language.Detect(message)
	english := o.translator.ToEnglish(ctx, message, lang)

	history, err := o.sessions.History(ctx, sess.ID, o.maxHistoryTurns)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	// The user's turn is recorded before generation, so a failed answer
	// never loses the question.
	userTurn := session.Turn{Role: session.RoleUser, Content: req.Message}
	if err := o.sessions.AppendTurns(ctx, sess.ID, []session.Turn{userTurn}); err != nil {
		return nil, fmt.Errorf("recording user turn: %w", err)
	}

	reply := o.answer(ctx, english, lang, history)

	assistantTurn := session.Turn{Role: session.RoleAssistant, Content: reply}
	if err := o.sessions.AppendTurns(ctx, sess.ID, []session.Turn{assistantTurn}); err != nil {
		// Best-effort: the user already has the answer.
		o.logger.Warn("recording assistant turn failed",
			"session_id", sess.ID, "error", err)
	}

	return &Result{
		SessionID:  sess.ID,
		Reply:      reply,
		Language:   lang,
		NewSession: created,
	}, nil
}

// answer runs retrieval and composition, degrading to an apology in the
// user's language when composition fails.
func (o *Orchestrator) answer(ctx context.Context, english string, lang language.Tag, history []session.Turn) string {
	var opts []knowledge.SearchOption
	if o.topK > 0 {
		opts = append(opts, knowledge.WithTopK(o.topK))
	}

	chunks, err := o.retriever.Retrieve(ctx, english, opts...)
	if err != nil {
		// Composition proceeds without reference material.
		o.logger.Warn("retrieval failed, composing without context", "error", err)
		chunks = nil
	}

	englishReply, err := o.composer.Compose(ctx, english, chunks, history)
	if err != nil {
		o.logger.Error("composition failed, sending apology", "error", err)
		return o.translator.FromEnglish(ctx, apologyMessage, lang)
	}

	return o.translator.FromEnglish(ctx, englishReply, lang)
}

// resolveSession finds or creates the session for a request. Unknown or
// malformed chat IDs silently start a new session; a session owned by
// someone else is rejected before anything is written.
func (o *Orchestrator) resolveSession(ctx context.Context, chatID, userID, message string) (*session.Session, bool, error) {
	if chatID != "" {
		id, parseErr := uuid.Parse(chatID)
		if parseErr == nil {
			sess, err := o.sessions.Get(ctx, id)
			switch {
			case err == nil:
				if sess.OwnerID != userID {
					return nil, false, ErrForbidden
				}
				return sess, false, nil
			case errors.Is(err, session.ErrNotFound):
				// Fall through to create a fresh session.
			default:
				return nil, false, fmt.Errorf("resolving session: %w", err)
			}
		}
		o.logger.Debug("unknown chat id, starting new session", "chat_id", chatID)
	}

	sess, err := o.sessions.Create(ctx, userID, deriveTitle(message))
	if err != nil {
		return nil, false, fmt.Errorf("creating session: %w", err)
	}
	return sess, true, nil
}

// deriveTitle builds a session title from the first message.
func deriveTitle(message string) string {
	runes := []rune(strings.TrimSpace(message))
	if len(runes) <= titleMaxRunes {
		return string(runes)
	}
	return string(runes[:titleMaxRunes-3]) + "..."
}
