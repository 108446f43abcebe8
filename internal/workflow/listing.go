package workflow

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
)

var (
	listingNoun   = regexp.MustCompile(`\b(ready|listing[- ]ready|prepared)\b|待上架|准备上架|上架列表`)
	listingView   = regexp.MustCompile(`\b(show|view|see|list|display|what)\b|查看|显示|看看|有哪些`)
	listingRemove = regexp.MustCompile(`\b(remove|delete|drop|take)\b|移除|删除|去掉`)
	publishIntent = regexp.MustCompile(`\b(publish|shopify|go live)\b|上架到|发布`)
)

// ParseListingCommand recognizes requests to view the ready list or to
// remove entries from it. SKUs holds tokens that could be SKUs; they are
// matched against the store later. Utterances naming a publish verb or
// the store are left to the router.
func ParseListingCommand(utterance string) (ListingCommand, bool) {
	text := strings.ToLower(utterance)
	if !listingNoun.MatchString(text) || publishIntent.MatchString(text) {
		return ListingCommand{}, false
	}
	if listingRemove.MatchString(text) {
		return ListingCommand{Remove: true, SKUs: skuTokens(utterance)}, true
	}
	if listingView.MatchString(text) {
		return ListingCommand{}, true
	}
	return ListingCommand{}, false
}

func skuTokens(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.Is(unicode.Han, r) || (!unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_')
	})
	var out []string
	for _, f := range fields {
		if strings.IndexFunc(f, unicode.IsDigit) >= 0 {
			out = append(out, f)
		}
	}
	return out
}

// ListingStep shows or edits the ready list.
func ListingStep(rt *Runtime) StepFunc {
	logger := rt.Logger.With("step", StepListing)

	return func(ctx context.Context, st *State) (Patch, RoutingKey) {
		cmd := st.Scratch.Listing
		if cmd == nil {
			cmd = &ListingCommand{}
		}

		records, err := readyRecords(ctx, rt)
		if err != nil {
			logger.ErrorContext(ctx, "ready records unavailable", "error", err)
			return Patch{Failure: Set(failure(StepListing, err))}, KeyDegraded
		}

		if !cmd.Remove {
			return Patch{Reply: Set(readyList(st.Language, records))}, KeyRespond
		}

		skus := matchReady(records, cmd.SKUs)
		if len(skus) == 0 {
			entities := make([]catalog.Entity, len(records))
			for i, r := range records {
				entities[i] = r.EffectiveEntity()
			}
			skus = rt.Resolver.Resolve(ctx, st.Utterance, entities, st.Session.History).SelectedSKUs
		}
		if len(skus) == 0 {
			msg := msgListingRemoveWhich
			if len(cmd.SKUs) > 0 || len(records) == 0 {
				msg = msgListingRemoveNone
			}
			return Patch{Reply: Set(say(st.Language, msg))}, KeyRespond
		}

		ready := &sessions.Session{ReadyEntities: slices.Clone(st.Session.ReadyEntities)}
		var removed []string
		for _, sku := range skus {
			if err := rt.Catalog.Delete(ctx, sku); err != nil && !errors.Is(err, catalog.ErrNotFound) {
				logger.ErrorContext(ctx, "ready entity not removed", "sku", sku, "error", err)
				return Patch{Failure: Set(failure(StepListing, fmt.Errorf("delete %s: %w", sku, err)))}, KeyDegraded
			}
			removed = append(removed, sku)
			ready.Unready(sku)
		}

		logger.InfoContext(ctx, "removed from ready list", "skus", removed)
		return Patch{
			ReadyEntities: Set(ready.ReadyEntities),
			Reply:         Set(say(st.Language, msgListingRemoved, strings.Join(removed, ", "))),
		}, KeyRespond
	}
}

func matchReady(records []*catalog.ReadyEntityRecord, tokens []string) []string {
	var skus []string
	for _, r := range records {
		if slices.ContainsFunc(tokens, func(t string) bool { return strings.EqualFold(t, r.SKU) }) {
			skus = append(skus, r.SKU)
		}
	}
	return skus
}

func readyList(lang string, records []*catalog.ReadyEntityRecord) string {
	if len(records) == 0 {
		return say(lang, msgListingEmpty)
	}

	var sb strings.Builder
	sb.WriteString(say(lang, msgListingHeader, len(records)))
	for _, r := range records {
		sb.WriteString("\n")
		sb.WriteString(say(lang, msgListingLine, displayTitle(r.Snapshot), r.SKU, len(r.Modifications)))
		if r.Published != nil {
			sb.WriteString(say(lang, msgListingPublished))
		}
	}
	return sb.String()
}
