package workflow

import (
	"context"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/search"
)

// maxExtraQueries bounds the alternative queries taken from a route decision.
const maxExtraQueries = 2

// SearchStep runs the utterance and any route-provided queries in
// parallel and replaces the candidate list with the merged results. Rank
// order is kept: the utterance's results first, duplicates dropped. Every
// result gets a ready record on first sight. The step only fails when
// every query fails.
func SearchStep(rt *Runtime) StepFunc {
	logger := rt.Logger.With("step", StepSearch)

	return func(ctx context.Context, st *State) (Patch, RoutingKey) {
		var extra []string
		var filters map[string]string
		if d := st.Scratch.Route; d != nil {
			extra = d.Queries
			filters = d.Filters
		}
		queries := searchQueries(st.Utterance, extra)
		filters = search.CleanFilters(filters)

		results := make([][]catalog.Entity, len(queries))
		errs := make([]error, len(queries))

		var g errgroup.Group
		for i, q := range queries {
			g.Go(func() error {
				results[i], errs[i] = rt.Searcher.Search(ctx, search.Query{Text: q, Filters: filters})
				return nil
			})
		}
		_ = g.Wait()

		var merged []catalog.Entity
		var firstErr error
		for i, err := range errs {
			if err != nil {
				logger.WarnContext(ctx, "search query failed", "query", queries[i], "error", err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			merged = append(merged, results[i]...)
		}
		if allFailed(errs) {
			return Patch{Failure: Set(failure(StepSearch, firstErr))}, KeyDegraded
		}

		merged = catalog.Dedupe(merged)
		if len(filters) > 0 {
			merged = slices.DeleteFunc(merged, func(e catalog.Entity) bool {
				return !search.Matches(e, filters)
			})
		}

		ensureRecords(ctx, rt, merged)

		logger.InfoContext(ctx, "candidates replaced", "queries", len(queries), "results", len(merged))
		return Patch{CandidateEntities: Set(merged)}, KeyConverse
	}
}

// ensureRecords creates a ready record for every SKU seen for the first
// time, so a found entity can be published without an edit. Existing
// records are left as they are and failures only cost that entity.
func ensureRecords(ctx context.Context, rt *Runtime, entities []catalog.Entity) {
	for _, e := range entities {
		if _, err := rt.Catalog.Ensure(ctx, e); err != nil {
			rt.Logger.WarnContext(ctx, "ready record not created", "step", StepSearch, "sku", e.SKU, "error", err)
		}
	}
}

func searchQueries(utterance string, extra []string) []string {
	queries := []string{strings.TrimSpace(utterance)}
	for _, q := range extra {
		if len(queries) > maxExtraQueries {
			break
		}
		q = strings.TrimSpace(q)
		if q != "" && !slices.ContainsFunc(queries, func(v string) bool { return strings.EqualFold(v, q) }) {
			queries = append(queries, q)
		}
	}
	return queries
}

func allFailed(errs []error) bool {
	for _, err := range errs {
		if err == nil {
			return false
		}
	}
	return true
}
