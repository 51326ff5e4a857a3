// Package api exposes the swipe, block and match operations over HTTP,
// mounted next to the WebSocket chat endpoint. Credentials are the same
// bearer tokens the chat gate resolves.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oggyb/matchpoint/internal/db"
	svcErr "github.com/oggyb/matchpoint/internal/errors"
	"github.com/oggyb/matchpoint/internal/identity"
	"github.com/oggyb/matchpoint/internal/lifecycle"
	"github.com/oggyb/matchpoint/internal/repository"
	"github.com/oggyb/matchpoint/internal/service/swipe"
)

// Handler serves the REST surface. Implements chat.Registrar.
type Handler struct {
	swipes    *swipe.Service
	lifecycle *lifecycle.Manager
	identity  *identity.Provider
	messages  *repository.MessageRepository
	logger    *slog.Logger
}

// NewHandler wires the API's collaborators together.
func NewHandler(
	swipes *swipe.Service,
	manager *lifecycle.Manager,
	provider *identity.Provider,
	messages *repository.MessageRepository,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		swipes:    swipes,
		lifecycle: manager,
		identity:  provider,
		messages:  messages,
		logger:    logger,
	}
}

// Register mounts the API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/swipes", h.requireAuth(h.handleSwipes))
	mux.HandleFunc("/api/blocks", h.requireAuth(h.handleBlocks))
	mux.HandleFunc("/api/matches", h.requireAuth(h.handleMatches))
	mux.HandleFunc("/api/matches/", h.requireAuth(h.handleMatchTree))
}

type authedHandler func(w http.ResponseWriter, r *http.Request, id identity.Identity)

// requireAuth resolves the caller's bearer token before the handler runs.
func (h *Handler) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.identity.Resolve(r.Context(), bearerToken(r))
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, "invalid or missing credential")
			return
		}
		next(w, r, id)
	}
}

// bearerToken extracts the credential from the Authorization header, with
// the token query parameter as fallback (same scheme as the chat gate).
func bearerToken(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("Authorization")); strings.HasPrefix(v, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(v, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

//
// Views
//

type errorBody struct {
	Error string `json:"error"`
}

type matchView struct {
	ID             string `json:"id"`
	OtherProfileID string `json:"other_profile_id"`
	CreatedAt      string `json:"created_at"`
}

type messageView struct {
	ID        string `json:"id"`
	SenderID  string `json:"sender_id"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	Timestamp string `json:"timestamp"`
}

func newMatchView(match *db.Match, viewerID string) matchView {
	return matchView{
		ID:             match.ID,
		OtherProfileID: match.Other(viewerID),
		CreatedAt:      match.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func newMessageView(msg *db.Message) messageView {
	return messageView{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		Message:   msg.Text,
		IsRead:    msg.IsRead,
		Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

//
// Handlers
//

// handleSwipes records a vote: POST {"target_id": "...", "value": "LIKE"}.
// Responds 201 with the swipe id and, when the vote completed a mutual
// match, the match.
func (h *Handler) handleSwipes(w http.ResponseWriter, r *http.Request, id identity.Identity) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		TargetID string `json:"target_id"`
		Value    string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, match, err := h.swipes.PutSwipe(r.Context(), id.ProfileID, req.TargetID, req.Value)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := struct {
		SwipeID string     `json:"swipe_id"`
		Matched bool       `json:"matched"`
		Match   *matchView `json:"match,omitempty"`
	}{SwipeID: created.ID, Matched: match != nil}
	if match != nil {
		view := newMatchView(match, id.ProfileID)
		resp.Match = &view
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// handleBlocks creates a block: POST {"blocked_id": "..."}. Any match with
// the blocked profile is torn down in the same transaction.
func (h *Handler) handleBlocks(w http.ResponseWriter, r *http.Request, id identity.Identity) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		BlockedID string `json:"blocked_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	block, deletedMatchID, err := h.lifecycle.OnBlockCreated(r.Context(), id.ProfileID, req.BlockedID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, struct {
		BlockID        string `json:"block_id"`
		DeletedMatchID string `json:"deleted_match_id,omitempty"`
	}{BlockID: block.ID, DeletedMatchID: deletedMatchID})
}

// handleMatches lists the caller's active matches, newest first:
// GET /api/matches?limit=20&page_token=...
func (h *Handler) handleMatches(w http.ResponseWriter, r *http.Request, id identity.Identity) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token, limit := pageParams(r)
	matches, nextToken, err := h.swipes.ListMatches(r.Context(), id.ProfileID, token, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	views := make([]matchView, 0, len(matches))
	for i := range matches {
		views = append(views, newMatchView(&matches[i], id.ProfileID))
	}
	h.writeJSON(w, http.StatusOK, struct {
		Matches       []matchView `json:"matches"`
		NextPageToken *string     `json:"next_page_token,omitempty"`
	}{Matches: views, NextPageToken: nextToken})
}

// handleMatchTree routes the /api/matches/ subtree:
//
//	GET    /api/matches/count         -> active match count
//	DELETE /api/matches/{id}          -> unmatch
//	GET    /api/matches/{id}/messages -> message history
//	POST   /api/matches/{id}/read     -> mark the room read
func (h *Handler) handleMatchTree(w http.ResponseWriter, r *http.Request, id identity.Identity) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/matches/"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] == "count":
		h.handleMatchCount(w, r, id)
	case len(parts) == 1 && parts[0] != "":
		h.handleUnmatch(w, r, id, parts[0])
	case len(parts) == 2 && parts[1] == "messages":
		h.handleMessages(w, r, id, parts[0])
	case len(parts) == 2 && parts[1] == "read":
		h.handleMarkRead(w, r, id, parts[0])
	default:
		h.writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) handleMatchCount(w http.ResponseWriter, r *http.Request, id identity.Identity) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	count, err := h.swipes.CountMatches(r.Context(), id.ProfileID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct {
		Count int64 `json:"count"`
	}{Count: count})
}

func (h *Handler) handleUnmatch(w http.ResponseWriter, r *http.Request, id identity.Identity, matchID string) {
	if r.Method != http.MethodDelete {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := h.lifecycle.Unmatch(r.Context(), matchID, id.ProfileID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request, id identity.Identity, matchID string) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token, limit := pageParams(r)
	messages, nextToken, err := h.messages.ListByMatch(r.Context(), matchID, id.ProfileID, token, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	views := make([]messageView, 0, len(messages))
	for i := range messages {
		views = append(views, newMessageView(&messages[i]))
	}
	h.writeJSON(w, http.StatusOK, struct {
		Messages      []messageView `json:"messages"`
		NextPageToken *string       `json:"next_page_token,omitempty"`
	}{Messages: views, NextPageToken: nextToken})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request, id identity.Identity, matchID string) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := h.messages.MarkRead(r.Context(), matchID, id.ProfileID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

//
// Helpers
//

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorBody{Error: msg})
}

// writeDomainError maps domain sentinels to HTTP statuses; everything else
// is logged and reported as an opaque 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("api request failed", "err", err)
		msg = "internal error"
	}
	h.writeError(w, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, svcErr.ErrSelfAction),
		errors.Is(err, svcErr.ErrInvalidSwipeValue):
		return http.StatusBadRequest
	case errors.Is(err, svcErr.ErrDuplicateSwipe),
		errors.Is(err, svcErr.ErrDuplicateBlock):
		return http.StatusConflict
	case errors.Is(err, svcErr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, svcErr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, svcErr.ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// pageParams reads limit (default 20, max 100) and page_token.
func pageParams(r *http.Request) (*string, int) {
	var token *string
	if v := r.URL.Query().Get("page_token"); v != "" {
		token = &v
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	return token, limit
}
