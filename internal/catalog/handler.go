package catalog

import (
	"log/slog"
	"net/http"

	"github.com/zxlitianshu/Kekari-agent/pkg/handlers"
	"github.com/zxlitianshu/Kekari-agent/pkg/pagination"
	"github.com/zxlitianshu/Kekari-agent/pkg/routes"
)

// Handler provides HTTP endpoints for publish-ready entities.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "catalog"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for ready entity endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/ready",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{sku}", Handler: h.Find},
			{Method: "DELETE", Pattern: "/{sku}", Handler: h.Delete},
		},
	}
}

// List returns a page of ready entity records.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns one record along with its effective image list.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	rec, err := h.sys.Get(r.Context(), r.PathValue("sku"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, struct {
		*ReadyEntityRecord
		EffectiveImages []string `json:"effective_images"`
	}{rec, rec.EffectiveImages()})
}

// Delete removes a record by SKU.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sys.Delete(r.Context(), r.PathValue("sku")); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
