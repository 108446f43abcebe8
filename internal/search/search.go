// Package search is the catalog search collaborator.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/pkg/client"
)

// Filter keys understood by the search service.
var FilterKeys = []string{"category", "material", "scene", "color", "sku"}

// Query is one search request. Filters restrict results by exact metadata.
type Query struct {
	Text    string            `json:"query"`
	Filters map[string]string `json:"filters,omitempty"`
	TopK    int               `json:"top_k"`
}

// Searcher finds catalog entities for a query, ranked best first.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]catalog.Entity, error)
}

type response struct {
	Results []catalog.Entity `json:"results"`
}

type remote struct {
	client *client.Client
	topK   int
	logger *slog.Logger
}

// New creates a Searcher that posts queries to the configured service.
func New(cfg *Config, logger *slog.Logger) Searcher {
	return &remote{
		client: client.New(&cfg.Config),
		topK:   cfg.TopK,
		logger: logger.With("system", "search"),
	}
}

func (r *remote) Search(ctx context.Context, q Query) ([]catalog.Entity, error) {
	if q.TopK <= 0 {
		q.TopK = r.topK
	}
	q.Filters = CleanFilters(q.Filters)

	var resp response
	if err := r.client.Post(ctx, "/search", q, &resp); err != nil {
		return nil, fmt.Errorf("search %q: %w", q.Text, err)
	}

	results := catalog.Dedupe(resp.Results)
	r.logger.DebugContext(ctx, "search complete", "query", q.Text, "results", len(results))
	return results, nil
}

// CleanFilters drops unknown keys and empty values, lower-casing keys.
func CleanFilters(filters map[string]string) map[string]string {
	if len(filters) == 0 {
		return nil
	}
	out := make(map[string]string, len(filters))
	for k, v := range filters {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if v == "" || !slices.Contains(FilterKeys, k) {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Matches reports whether e satisfies every filter, case-insensitively.
func Matches(e catalog.Entity, filters map[string]string) bool {
	for _, k := range slices.Sorted(maps.Keys(filters)) {
		if !strings.EqualFold(strings.TrimSpace(e.Attribute(k)), strings.TrimSpace(filters[k])) {
			return false
		}
	}
	return true
}
