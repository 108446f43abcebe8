package chat

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/zxlitianshu/Kekari-agent/pkg/handlers"
	"github.com/zxlitianshu/Kekari-agent/pkg/routes"
)

// TurnRequest is the body of a turn endpoint. SessionID is optional on
// POST /chat; a new session is started when it is empty.
type TurnRequest struct {
	Message   string `json:"message" validate:"required"`
	SessionID string `json:"session_id,omitempty"`
}

// Handler provides HTTP endpoints for posting turns.
type Handler struct {
	sys      System
	model    string
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a Handler with the given system and logger. model is
// the name advertised by the chat-completions surface.
func NewHandler(sys System, model string, logger *slog.Logger) *Handler {
	return &Handler{
		sys:      sys,
		model:    model,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("handler", "chat"),
	}
}

// Routes returns the route group definition for turn endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/chat", Handler: h.Chat},
			{Method: "POST", Pattern: "/sessions/{id}/turns", Handler: h.Turn},
		},
	}
}

// Chat posts a turn to the session named in the body.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	h.post(w, r, req.SessionID, req.Message)
}

// Turn posts a turn to the session in the path.
func (h *Handler) Turn(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	h.post(w, r, r.PathValue("id"), req.Message)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (TurnRequest, bool) {
	var req TurnRequest
	if status, err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.RespondError(w, h.logger, status, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return req, false
	}
	return req, true
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request, sessionID, message string) {
	reply, err := h.sys.PostTurn(r.Context(), sessionID, message)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, reply)
}
