package api

import (
	"context"
	"fmt"

	"github.com/zxlitianshu/Kekari-agent/internal/assets"
	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/chat"
	"github.com/zxlitianshu/Kekari-agent/internal/classify"
	"github.com/zxlitianshu/Kekari-agent/internal/config"
	"github.com/zxlitianshu/Kekari-agent/internal/confirmation"
	"github.com/zxlitianshu/Kekari-agent/internal/prompts"
	"github.com/zxlitianshu/Kekari-agent/internal/publishing"
	"github.com/zxlitianshu/Kekari-agent/internal/resolver"
	"github.com/zxlitianshu/Kekari-agent/internal/search"
	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
	"github.com/zxlitianshu/Kekari-agent/internal/workflow"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Catalog  catalog.System
	Sessions sessions.System
	Prompts  prompts.System
	Chat     chat.System
	Workflow *workflow.Engine
}

// NewDomain creates all domain systems from the API runtime and wires the
// collaborators into the workflow graph. The graph is validated here, so a
// misconfigured graph fails startup rather than a turn.
func NewDomain(ctx context.Context, cfg *config.Config, runtime *Runtime) (*Domain, error) {
	db := runtime.Database.Connection()
	driver := runtime.Database.Driver()

	var archiver catalog.Archiver
	if cfg.Storage.Enabled {
		archiver = assets.NewArchiver(runtime.Storage, nil, runtime.Logger)
	}

	catalogSystem := catalog.New(db, driver, archiver, runtime.Events, runtime.Logger, runtime.Pagination)
	promptsSystem := prompts.New(db, driver, runtime.Logger, runtime.Pagination)

	gate, err := newGate(ctx, &cfg.Publish)
	if err != nil {
		return nil, fmt.Errorf("publish policy: %w", err)
	}

	classifier := classify.New(&cfg.Classifier, promptsSystem, runtime.Logger)

	engine, err := workflow.New(&workflow.Runtime{
		Classifier:         classifier,
		Searcher:           search.New(&cfg.Search, runtime.Logger),
		Transformer:        assets.NewTransformer(&cfg.Transform, runtime.Logger),
		Publisher:          publishing.New(&cfg.Publish, runtime.Logger),
		Gate:               gate,
		Catalog:            catalogSystem,
		Resolver:           resolver.New(classifier, runtime.Logger),
		Machine:            confirmation.NewMachine(catalogSystem, runtime.Logger),
		Config:             cfg.Workflow,
		PublishConcurrency: cfg.Publish.Concurrency,
		Logger:             runtime.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("workflow graph: %w", err)
	}

	return &Domain{
		Catalog:  catalogSystem,
		Sessions: runtime.Sessions,
		Prompts:  promptsSystem,
		Chat:     chat.New(&cfg.Chat, engine, runtime.Sessions, runtime.Logger),
		Workflow: engine,
	}, nil
}

func newGate(ctx context.Context, cfg *publishing.Config) (*publishing.Gate, error) {
	if cfg.PolicyPath != "" {
		return publishing.LoadGate(ctx, cfg.PolicyPath)
	}
	return publishing.NewGate(ctx, "")
}
