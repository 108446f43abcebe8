package prompts

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/zxlitianshu/Kekari-agent/pkg/handlers"
	"github.com/zxlitianshu/Kekari-agent/pkg/pagination"
	"github.com/zxlitianshu/Kekari-agent/pkg/routes"
)

// Handler serves the prompt override endpoints used to tune the classifier
// and composer stages without a redeploy.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// StageContent is the response type for stage-scoped content endpoints.
type StageContent struct {
	Stage   Stage  `json:"stage"`
	Content string `json:"content"`
}

func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "prompts"),
		pagination: pagination,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/prompts",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "POST", Pattern: "/search", Handler: h.Search},
			{Method: "GET", Pattern: "/stages", Handler: h.Stages},
			{Method: "GET", Pattern: "/{stage}/instructions", Handler: h.stageContent(h.sys.Instructions)},
			{Method: "GET", Pattern: "/{stage}/spec", Handler: h.stageContent(h.sys.Spec)},
			{Method: "GET", Pattern: "/{id}", Handler: h.withID(h.find)},
			{Method: "PUT", Pattern: "/{id}", Handler: h.withID(h.update)},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.withID(h.delete)},
			{Method: "POST", Pattern: "/{id}/activate", Handler: h.withID(h.activate)},
			{Method: "POST", Pattern: "/{id}/deactivate", Handler: h.withID(h.deactivate)},
		},
	}
}

// List returns a page of prompts filtered by query parameters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	h.list(w, r, page, FiltersFromQuery(r.URL.Query()))
}

// Search is List with the criteria in a JSON body.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if status, err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.RespondError(w, h.logger, status, err)
		return
	}
	req.PageRequest.Normalize(h.pagination)
	h.list(w, r, req.PageRequest, req.Filters)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, page pagination.PageRequest, filters Filters) {
	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Stages(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, Stages())
}

// Create stores a new, inactive prompt override.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if status, err := handlers.DecodeJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, status, err)
		return
	}
	h.respond(w, http.StatusCreated)(h.sys.Create(r.Context(), cmd))
}

func (h *Handler) find(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	h.respond(w, http.StatusOK)(h.sys.Find(r.Context(), id))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var cmd UpdateCommand
	if status, err := handlers.DecodeJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, status, err)
		return
	}
	h.respond(w, http.StatusOK)(h.sys.Update(r.Context(), id, cmd))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// activate makes the prompt the stage's override, deactivating any other.
func (h *Handler) activate(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	h.respond(w, http.StatusOK)(h.sys.Activate(r.Context(), id))
}

// deactivate drops the override so the stage falls back to its default.
func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	h.respond(w, http.StatusOK)(h.sys.Deactivate(r.Context(), id))
}

func (h *Handler) withID(fn func(http.ResponseWriter, *http.Request, uuid.UUID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
			return
		}
		fn(w, r, id)
	}
}

func (h *Handler) stageContent(fetch func(context.Context, Stage) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stage, err := ParseStage(r.PathValue("stage"))
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
			return
		}
		text, err := fetch(r.Context(), stage)
		if err != nil {
			handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
			return
		}
		handlers.RespondJSON(w, http.StatusOK, StageContent{Stage: stage, Content: text})
	}
}

func (h *Handler) respond(w http.ResponseWriter, status int) func(*Prompt, error) {
	return func(p *Prompt, err error) {
		if err != nil {
			handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
			return
		}
		handlers.RespondJSON(w, status, p)
	}
}
