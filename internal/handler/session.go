package handler

import (
	"context"
	"net/http"
	"strings"

	"bazaar-api/internal/model"
	"bazaar-api/internal/service"
	"bazaar-api/pkg/apierror"
	"bazaar-api/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Mailbox lists notifications stored for an identity.
type Mailbox interface {
	Unread(ctx context.Context, recipient string) ([]model.Notification, error)
}

// SessionHandler handles host session and mailbox requests.
type SessionHandler struct {
	sessions *service.SessionService
	mailbox  Mailbox
	logger   *zap.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *service.SessionService, mailbox Mailbox, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		sessions: sessions,
		mailbox:  mailbox,
		logger:   logger.Named("sessions"),
	}
}

type startSessionRequest struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
}

// Start handles POST /api/v1/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decode(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	req.Identity = strings.TrimSpace(req.Identity)
	if req.Identity == "" {
		response.Error(w, apierror.ValidationError("missing field",
			apierror.FieldError{Field: "identity", Message: "is required"}))
		return
	}

	replayed, err := h.sessions.Start(r.Context(), req.Identity, req.DisplayName)
	if err != nil {
		h.logger.Error("failed to start session", zap.String("identity", req.Identity), zap.Error(err))
		response.Error(w, apierror.ServiceUnavailable(""))
		return
	}
	response.Created(w, map[string]interface{}{
		"identity": req.Identity,
		"replayed": replayed,
	})
}

// End handles DELETE /api/v1/sessions/{identity}
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	if err := h.sessions.End(r.Context(), identity); err != nil {
		h.logger.Error("failed to end session", zap.String("identity", identity), zap.Error(err))
		response.Error(w, apierror.ServiceUnavailable(""))
		return
	}
	response.NoContent(w)
}

// Messages handles GET /api/v1/sessions/{identity}/messages
func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	msgs, err := h.sessions.Drain(r.Context(), identity)
	if err != nil {
		h.logger.Error("failed to drain messages", zap.String("identity", identity), zap.Error(err))
		response.Error(w, apierror.ServiceUnavailable(""))
		return
	}
	response.OK(w, map[string]interface{}{
		"identity": identity,
		"messages": msgs,
	})
}

// Unread handles GET /api/v1/notifications/{identity}/unread
func (h *SessionHandler) Unread(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	notes, err := h.mailbox.Unread(r.Context(), identity)
	if err != nil {
		h.logger.Error("failed to list notifications", zap.String("identity", identity), zap.Error(err))
		response.Error(w, apierror.InternalError(""))
		return
	}
	if notes == nil {
		notes = []model.Notification{}
	}
	response.OK(w, map[string]interface{}{
		"identity":      identity,
		"notifications": notes,
		"count":         len(notes),
	})
}
