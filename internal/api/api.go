// Package api assembles the API modules with all domain systems and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/zxlitianshu/Kekari-agent/internal/config"
	"github.com/zxlitianshu/Kekari-agent/internal/telemetry"
	"github.com/zxlitianshu/Kekari-agent/pkg/formatting"
	"github.com/zxlitianshu/Kekari-agent/pkg/middleware"
	"github.com/zxlitianshu/Kekari-agent/pkg/module"
	"github.com/zxlitianshu/Kekari-agent/pkg/openapi"
	"github.com/zxlitianshu/Kekari-agent/pkg/routes"
)

// CompletionsPrefix is where the OpenAI-compatible endpoints are mounted.
const CompletionsPrefix = "/v1"

// NewModule creates the API module with all domain handlers, the OpenAPI
// document, and middleware.
func NewModule(cfg *config.Config, runtime *Runtime, domain *Domain) (*module.Module, error) {
	spec, err := openapi.MarshalJSON(buildSpec(cfg))
	if err != nil {
		return nil, fmt.Errorf("openapi spec: %w", err)
	}

	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime.Logger)
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(spec))

	m := module.New(cfg.API.BasePath, mux)
	use(m, cfg, runtime)

	runtime.Logger.Info("api module configured",
		"base_path", cfg.API.BasePath,
		"max_body", formatting.FormatBytes(cfg.API.MaxBodySizeBytes()),
	)
	return m, nil
}

// NewCompletionsModule creates the module serving the OpenAI-compatible
// chat-completions surface, so standard chat clients can talk to the service.
func NewCompletionsModule(cfg *config.Config, runtime *Runtime, domain *Domain) *module.Module {
	mux := http.NewServeMux()
	routes.Register(mux, domain.Chat.Handler().CompletionRoutes())

	m := module.New(CompletionsPrefix, mux)
	use(m, cfg, runtime)
	return m
}

func use(m *module.Module, cfg *config.Config, runtime *Runtime) {
	m.Use(
		middleware.Trace(telemetry.Tracer()),
		middleware.Logger(runtime.Logger),
		middleware.Recover(runtime.Logger),
		middleware.CORS(&cfg.API.CORS),
		middleware.MaxBytes(cfg.API.MaxBodySizeBytes()),
	)
}
