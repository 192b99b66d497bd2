package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shakti-ai/shakti/internal/chat"
	"github.com/shakti-ai/shakti/internal/log"
)

// MaxMessageLength bounds the user message in bytes.
const MaxMessageLength = 10000

// userIDHeader carries the authenticated caller's identity. The header is
// set by the fronting proxy after authentication; this service trusts it.
const userIDHeader = "X-User-ID"

// ChatService runs the conversational pipeline for one user message.
type ChatService interface {
	Handle(ctx context.Context, req chat.Request) (*chat.Result, error)
}

// ChatHandler handles the chat endpoint.
type ChatHandler struct {
	service ChatService
	lists   *listCache
	logger  log.Logger
}

// NewChatHandler creates a new chat handler. lists may be nil when no
// session-list caching is wired.
func NewChatHandler(service ChatService, lists *listCache, logger log.Logger) *ChatHandler {
	return &ChatHandler{service: service, lists: lists, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.chat)
}

// ChatRequest is the request body for the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
	ChatID  string `json:"chat_id,omitempty"`
}

// chat runs one user message through the pipeline and returns the reply.
// A degraded reply (for example when generation fails and the apology text
// is returned) is still a 200: the turn was handled and persisted.
func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		h.logger.Error("chat service is nil")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if len(req.Message) > MaxMessageLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "message too long (max 10000 bytes)")
		return
	}

	result, err := h.service.Handle(r.Context(), chat.Request{
		Message: req.Message,
		ChatID:  req.ChatID,
		UserID:  userID,
	})
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "invalid_request", "message must not be empty")
		return
	case errors.Is(err, chat.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "chat belongs to another user")
		return
	case err != nil:
		h.logger.Error("chat pipeline failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to process message")
		return
	}

	// The turn changed the owner's session ordering.
	if h.lists != nil {
		h.lists.invalidate(userID)
	}

	writeJSON(w, http.StatusOK, result)
}

// requireUserID extracts the trusted identity header, writing a 401 when
// it is missing.
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing "+userIDHeader+" header")
		return "", false
	}
	return userID, true
}
