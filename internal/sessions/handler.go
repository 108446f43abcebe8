package sessions

import (
	"log/slog"
	"net/http"

	"github.com/zxlitianshu/Kekari-agent/pkg/handlers"
	"github.com/zxlitianshu/Kekari-agent/pkg/routes"
)

// Handler provides HTTP endpoints for inspecting and removing sessions.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "sessions"),
	}
}

// Routes returns the route group definition for session endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/sessions",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "DELETE", Pattern: "", Handler: h.Clear},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
		},
	}
}

// List returns a summary of every live session.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.sys.List(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, summaries)
}

// Find returns the full state of one session.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	s, err := h.sys.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, s)
}

// Delete removes one session.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sys.Delete(r.Context(), r.PathValue("id")); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear removes every session.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.sys.Clear(r.Context()); err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
