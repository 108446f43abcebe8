package api

import (
	"log/slog"
	"net/http"

	"github.com/zxlitianshu/Kekari-agent/pkg/routes"
)

// Routes returns the route groups served under the API base path.
func Routes(domain *Domain) []routes.Group {
	return []routes.Group{
		domain.Chat.Handler().Routes(),
		domain.Sessions.Handler().Routes(),
		domain.Catalog.Handler().Routes(),
		domain.Prompts.Handler().Routes(),
	}
}

func registerRoutes(mux *http.ServeMux, domain *Domain, logger *slog.Logger) {
	groups := Routes(domain)
	routes.Register(mux, groups...)
	logger.Debug("routes registered", "patterns", routes.Patterns(groups...))
}
