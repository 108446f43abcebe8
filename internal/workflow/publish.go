package workflow

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/publishing"
)

type publishItem struct {
	sku     string
	title   string
	entity  catalog.Entity
	liveRef string
	reason  string
	err     error
	ok      bool
}

// PublishStep publishes ready entities. Targets come from a settled
// confirmation or are resolved against the ready records. Each entity
// passes the policy gate before it is sent, and successful publishes are
// recorded on the record.
func PublishStep(rt *Runtime) StepFunc {
	logger := rt.Logger.With("step", StepPublish)

	return func(ctx context.Context, st *State) (Patch, RoutingKey) {
		targets := st.Scratch.Targets
		if len(targets) == 0 {
			resolved, reply, err := publishTargets(ctx, rt, st)
			if err != nil {
				logger.ErrorContext(ctx, "ready records unavailable", "error", err)
				return Patch{Failure: Set(failure(StepPublish, err))}, KeyDegraded
			}
			if len(resolved) == 0 {
				return Patch{Reply: Set(reply)}, KeyRespond
			}
			targets = resolved
		}

		items := make([]*publishItem, len(targets))
		for i, sku := range targets {
			items[i] = prepare(ctx, rt, st.Language, sku)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(rt.PublishConcurrency, 1))
		for _, it := range items {
			if it.reason != "" {
				continue
			}
			g.Go(func() error {
				res, err := rt.Publisher.Publish(gctx, it.entity)
				if err != nil {
					it.err = err
					it.reason = publishReason(st.Language, res, err)
					return nil
				}
				it.ok = true
				it.liveRef = res.LiveRef
				return nil
			})
		}
		_ = g.Wait()

		attempted, succeeded := 0, 0
		var firstErr error
		for _, it := range items {
			if it.ok {
				succeeded++
				if _, err := rt.Catalog.MarkPublished(ctx, it.sku, it.liveRef); err != nil {
					logger.ErrorContext(ctx, "publish not recorded", "sku", it.sku, "error", err)
				}
				continue
			}
			if it.err != nil {
				attempted++
				if firstErr == nil && !errors.Is(it.err, publishing.ErrPublishFailed) {
					firstErr = it.err
				}
			}
		}

		logger.InfoContext(ctx, "publish complete", "targets", len(items), "succeeded", succeeded)

		if succeeded == 0 && attempted == len(items) && firstErr != nil {
			return Patch{Failure: Set(failure(StepPublish, firstErr))}, KeyDegraded
		}

		patch := Patch{
			Notices: []string{publishSummary(st.Language, items, succeeded)},
			Subject: Set(items[len(items)-1].sku),
		}
		if st.Scratch.FollowUp != "" {
			return patch, KeyModify
		}
		return patch, KeyRespond
	}
}

// publishTargets resolves the utterance against the ready records. When
// nothing resolves, the returned reply asks the user to choose.
func publishTargets(ctx context.Context, rt *Runtime, st *State) ([]string, string, error) {
	records, err := readyRecords(ctx, rt)
	if err != nil {
		return nil, "", err
	}
	if len(records) == 0 {
		return nil, say(st.Language, msgNothingReady), nil
	}

	entities := make([]catalog.Entity, len(records))
	skus := make([]string, len(records))
	for i, r := range records {
		entities[i] = r.EffectiveEntity()
		skus[i] = r.SKU
	}

	if d := st.Scratch.Route; d != nil && d.TargetSKU != "" {
		if e, ok := findEntity(entities, d.TargetSKU); ok {
			return []string{e.SKU}, "", nil
		}
	}

	res := rt.Resolver.Resolve(ctx, st.Utterance, entities, st.Session.History)
	if !res.Empty() {
		return res.SelectedSKUs, "", nil
	}
	if len(entities) == 1 {
		return skus, "", nil
	}
	return nil, say(st.Language, msgPublishWhich, strings.Join(skus, ", ")), nil
}

func readyRecords(ctx context.Context, rt *Runtime) ([]*catalog.ReadyEntityRecord, error) {
	keys, err := rt.Catalog.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]*catalog.ReadyEntityRecord, 0, len(keys))
	for _, k := range keys {
		r, err := rt.Catalog.Get(ctx, k)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// prepare loads the record and runs the policy gate. A non-empty reason
// means the item will not be sent.
func prepare(ctx context.Context, rt *Runtime, lang, sku string) *publishItem {
	it := &publishItem{sku: sku, title: sku}

	rec, err := rt.Catalog.Get(ctx, sku)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			it.reason = say(lang, msgReasonNotReady)
		} else {
			it.err = err
			it.reason = say(lang, msgReasonUnavailable)
		}
		return it
	}

	it.entity = rec.EffectiveEntity()
	it.title = displayTitle(it.entity)

	if rt.Gate != nil {
		v, err := rt.Gate.Evaluate(ctx, it.entity, rec)
		if err != nil {
			rt.Logger.ErrorContext(ctx, "publish policy failed", "sku", sku, "error", err)
			it.reason = say(lang, msgReasonBlocked, "policy unavailable")
			return it
		}
		if !v.Allowed() {
			it.reason = say(lang, msgReasonBlocked, strings.Join(v.Reasons, "; "))
		}
	}
	return it
}

func publishReason(lang string, res publishing.Result, err error) string {
	switch {
	case errors.Is(err, publishing.ErrPublishFailed) && res.Error != "":
		return res.Error
	case ClassifyFailure(err) == KindTimeout:
		return say(lang, msgReasonTimeout)
	default:
		return say(lang, msgReasonUnavailable)
	}
}

func publishSummary(lang string, items []*publishItem, succeeded int) string {
	var sb strings.Builder
	sb.WriteString(say(lang, msgPublishedHeader, succeeded, len(items)))
	for _, it := range items {
		if it.ok {
			sb.WriteString("\n")
			sb.WriteString(say(lang, msgPublishedLine, it.title, it.sku, it.liveRef))
		}
	}
	if succeeded < len(items) {
		sb.WriteString("\n\n")
		sb.WriteString(say(lang, msgPublishFailedHeader))
		for _, it := range items {
			if !it.ok {
				sb.WriteString("\n")
				sb.WriteString(say(lang, msgPublishFailedLine, it.sku, it.reason))
			}
		}
	}
	return sb.String()
}
