package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shakti-ai/shakti/internal/cache"
	"github.com/shakti-ai/shakti/internal/log"
	"github.com/shakti-ai/shakti/internal/session"
)

// Pagination constants.
const (
	DefaultListLimit  = 50
	MaxListLimit      = 500
	MaxListOffset     = 100000 // Reasonable upper bound for pagination offset
	DefaultTurnsLimit = 200
	MaxTurnsLimit     = 1000
)

// SessionReader is the session store surface the chats endpoints need.
type SessionReader interface {
	Get(ctx context.Context, id uuid.UUID) (*session.Session, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int32) ([]session.Session, error)
	History(ctx context.Context, sessionID uuid.UUID, limit int32) ([]session.Turn, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// listCache caches each owner's default session listing. Only the default
// pagination is cached so invalidation stays a single key per owner.
type listCache struct {
	cache *cache.Cache[[]session.Session]
}

func newListCache(c *cache.Cache[[]session.Session]) *listCache {
	if c == nil {
		return nil
	}
	return &listCache{cache: c}
}

func (l *listCache) get(owner string) ([]session.Session, bool) {
	return l.cache.Get(owner)
}

func (l *listCache) set(owner string, sessions []session.Session) {
	l.cache.Set(owner, sessions)
}

func (l *listCache) invalidate(owner string) {
	l.cache.Invalidate(owner)
}

// ChatsHandler handles session listing and inspection endpoints.
type ChatsHandler struct {
	store  SessionReader
	lists  *listCache
	logger log.Logger
}

// NewChatsHandler creates a new chats handler. lists may be nil to disable
// listing caching.
func NewChatsHandler(store SessionReader, lists *listCache, logger log.Logger) *ChatsHandler {
	return &ChatsHandler{store: store, lists: lists, logger: logger}
}

// RegisterRoutes registers chats routes on the given mux.
func (h *ChatsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/chats", h.list)
	mux.HandleFunc("GET /api/chats/{chatID}", h.get)
	mux.HandleFunc("DELETE /api/chats/{chatID}", h.delete)
}

// list returns the caller's sessions, most recently active first.
// Query parameters:
//   - limit: maximum number of sessions to return (default: 50, max: 500)
//   - offset: number of sessions to skip (default: 0)
func (h *ChatsHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.logger.Error("session store is nil")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	// Parse pagination parameters (bounded to int32-safe range by parseIntParam)
	limit := parseIntParam(r, "limit", DefaultListLimit, 1, MaxListLimit)
	offset := parseIntParam(r, "offset", 0, 0, MaxListOffset)

	cacheable := h.lists != nil && limit == DefaultListLimit && offset == 0
	if cacheable {
		if sessions, hit := h.lists.get(userID); hit {
			writeListResponse(w, sessions, limit, offset)
			return
		}
	}

	// #nosec G115 -- limit and offset are bounded by MaxListLimit (500) and MaxListOffset (100000)
	sessions, err := h.store.ListByOwner(r.Context(), userID, int32(limit), int32(offset))
	if err != nil {
		h.logger.Error("failed to list chats", "error", err, "user_id", userID)
		http.Error(w, "failed to list chats", http.StatusInternalServerError)
		return
	}

	if cacheable {
		h.lists.set(userID, sessions)
	}
	writeListResponse(w, sessions, limit, offset)
}

func writeListResponse(w http.ResponseWriter, sessions []session.Session, limit, offset int) {
	writeJSON(w, http.StatusOK, map[string]any{
		"chats":  sessions,
		"total":  len(sessions),
		"limit":  limit,
		"offset": offset,
	})
}

// ChatDetail is the response body for a single chat with its turns.
type ChatDetail struct {
	Session *session.Session `json:"session"`
	Turns   []session.Turn   `json:"turns"`
}

// get returns one session with its turns in sequence order. The caller must
// own the session.
func (h *ChatsHandler) get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.logger.Error("session store is nil")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	sess, ok := h.resolveOwned(w, r, userID)
	if !ok {
		return
	}

	limit := parseIntParam(r, "limit", DefaultTurnsLimit, 1, MaxTurnsLimit)
	// #nosec G115 -- limit is bounded by MaxTurnsLimit (1000)
	turns, err := h.store.History(r.Context(), sess.ID, int32(limit))
	if err != nil {
		h.logger.Error("failed to load chat turns", "error", err, "chat_id", sess.ID)
		http.Error(w, "failed to load chat", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ChatDetail{Session: sess, Turns: turns})
}

// delete removes one of the caller's sessions and its turns.
func (h *ChatsHandler) delete(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.logger.Error("session store is nil")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	sess, ok := h.resolveOwned(w, r, userID)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), sess.ID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "chat not found")
			return
		}
		h.logger.Error("failed to delete chat", "error", err, "chat_id", sess.ID)
		http.Error(w, "failed to delete chat", http.StatusInternalServerError)
		return
	}

	if h.lists != nil {
		h.lists.invalidate(userID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveOwned parses the chatID path value, loads the session, and checks
// ownership. It writes the error response itself on failure.
func (h *ChatsHandler) resolveOwned(w http.ResponseWriter, r *http.Request, userID string) (*session.Session, bool) {
	chatID, err := uuid.Parse(r.PathValue("chatID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid chat id")
		return nil, false
	}

	sess, err := h.store.Get(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "chat not found")
			return nil, false
		}
		h.logger.Error("failed to load chat", "error", err, "chat_id", chatID)
		http.Error(w, "failed to load chat", http.StatusInternalServerError)
		return nil, false
	}
	if sess.OwnerID != userID {
		writeError(w, http.StatusForbidden, "forbidden", "chat belongs to another user")
		return nil, false
	}
	return sess, true
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, min, max int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
