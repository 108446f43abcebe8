package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/zxlitianshu/Kekari-agent/internal/api"
	"github.com/zxlitianshu/Kekari-agent/internal/config"
	"github.com/zxlitianshu/Kekari-agent/internal/infrastructure"
	"github.com/zxlitianshu/Kekari-agent/pkg/module"
)

const readyTimeout = 3 * time.Second

type Modules struct {
	API         *module.Module
	Completions *module.Module
}

func NewModules(ctx context.Context, infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	runtime := api.NewRuntime(cfg, infra)

	domain, err := api.NewDomain(ctx, cfg, runtime)
	if err != nil {
		return nil, err
	}

	apiModule, err := api.NewModule(cfg, runtime, domain)
	if err != nil {
		return nil, err
	}

	return &Modules{
		API:         apiModule,
		Completions: api.NewCompletionsModule(cfg, runtime, domain),
	}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
	router.Mount(m.Completions)
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !infra.Lifecycle.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{"status": "not ready"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if failures := infra.Lifecycle.Check(ctx); len(failures) > 0 {
			checks := make(map[string]string, len(failures))
			for name, err := range failures {
				checks[name] = err.Error()
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{"status": "degraded", "checks": checks})
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"status": "ready"})
	})

	return router
}
