// Package resolver maps a free-text reference ("the second one", "the red
// chairs", "AB12") onto a subset of candidate entities. Strategies are tried
// in a fixed order and the first that selects anything wins.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/classify"
	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
)

// Tier identifies the strategy that produced a Result.
type Tier int

const (
	TierNone Tier = iota
	TierExactSKU
	TierCharacteristic
	TierOrdinal
	TierCategory
	TierAll
	TierFallback
)

var tierNames = map[Tier]string{
	TierNone:           "none",
	TierExactSKU:       "exact-sku",
	TierCharacteristic: "characteristic",
	TierOrdinal:        "ordinal",
	TierCategory:       "category",
	TierAll:            "all",
	TierFallback:       "fallback",
}

func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Confidence per tier.
const (
	confidenceExact          = 1.0
	confidenceCharacteristic = 0.9
	confidenceOrdinal        = 0.85
	confidenceCategory       = 0.8
	confidenceAll            = 0.8
	confidenceFallback       = 0.8

	// minAssistConfidence is the lowest model confidence that is trusted.
	minAssistConfidence = 0.7
)

// Result is a resolved selection. SelectedSKUs is empty when nothing matched.
type Result struct {
	SelectedSKUs []string `json:"selected_skus"`
	Reasoning    string   `json:"reasoning"`
	Confidence   float64  `json:"confidence"`
	Tier         Tier     `json:"tier"`
	Assisted     bool     `json:"assisted,omitempty"`
}

// Empty reports whether nothing was selected.
func (r Result) Empty() bool {
	return len(r.SelectedSKUs) == 0
}

// Resolver selects entities from candidates. The classifier is optional;
// without it the model-assisted pass is skipped.
type Resolver struct {
	classifier classify.Classifier
	logger     *slog.Logger
}

// New creates a Resolver.
func New(classifier classify.Classifier, logger *slog.Logger) *Resolver {
	return &Resolver{
		classifier: classifier,
		logger:     logger.With("system", "resolver"),
	}
}

// Resolve never modifies candidates. Apart from the model-assisted pass the
// result depends only on its inputs.
func (r *Resolver) Resolve(
	ctx context.Context,
	utterance string,
	candidates []catalog.Entity,
	history []sessions.Turn,
) Result {
	return r.ResolveWithin(ctx, utterance, Scope{Shown: candidates}, history)
}

// Scope is what a reference can reach. Shown is the list in the order the
// user saw it; positional, deictic, category and "all" references index
// only Shown. Known holds further entities, such as ready ones from earlier
// turns, that only SKU and attribute references reach. When Shown is empty
// Known stands in for it.
type Scope struct {
	Shown []catalog.Entity
	Known []catalog.Entity
}

// All returns Shown followed by the Known entities not already shown.
func (s Scope) All() []catalog.Entity {
	return catalog.Dedupe(append(slices.Clone(s.Shown), s.Known...))
}

func (s Scope) listed() []catalog.Entity {
	if len(s.Shown) == 0 {
		return s.Known
	}
	return s.Shown
}

// ResolveWithin resolves against a Scope. See Resolve.
func (r *Resolver) ResolveWithin(
	ctx context.Context,
	utterance string,
	scope Scope,
	history []sessions.Turn,
) Result {
	if len(scope.Shown)+len(scope.Known) == 0 || strings.TrimSpace(utterance) == "" {
		return Result{Reasoning: "nothing to resolve against"}
	}

	if res, ok := DeterministicWithin(utterance, scope, history); ok {
		r.logger.DebugContext(ctx, "resolved", "tier", res.Tier, "skus", res.SelectedSKUs)
		return res
	}

	if res, ok := r.assisted(ctx, utterance, scope.listed(), history); ok {
		r.logger.DebugContext(ctx, "resolved with model", "tier", res.Tier, "skus", res.SelectedSKUs)
		return res
	}

	if res, ok := fallback(utterance, scope.All()); ok {
		return res
	}

	return Result{Reasoning: "no candidate matched the reference"}
}

// Deterministic runs the rule-based strategies that precede the
// model-assisted pass, in order.
func Deterministic(utterance string, candidates []catalog.Entity, history []sessions.Turn) (Result, bool) {
	return DeterministicWithin(utterance, Scope{Shown: candidates}, history)
}

// DeterministicWithin is Deterministic over a Scope.
func DeterministicWithin(utterance string, scope Scope, history []sessions.Turn) (Result, bool) {
	all, listed := scope.All(), scope.listed()

	if res, ok := exactSKU(utterance, all); ok {
		return res, true
	}

	text := strings.ToLower(utterance)
	attrs := parseAttributes(text, all)

	if res, ok := characteristic(attrs, all); ok {
		return res, true
	}
	if res, ok := ordinal(text, listed, history); ok {
		return res, true
	}
	if res, ok := categoryWide(attrs, listed); ok {
		return res, true
	}
	if res, ok := everything(text, listed); ok {
		return res, true
	}
	return Result{}, false
}

func (r *Resolver) assisted(
	ctx context.Context,
	utterance string,
	candidates []catalog.Entity,
	history []sessions.Turn,
) (Result, bool) {
	if r.classifier == nil {
		return Result{}, false
	}

	d, err := r.classifier.Select(ctx, classify.SelectInput{
		Utterance:  utterance,
		Candidates: candidates,
		History:    Messages(history),
	})
	if err != nil {
		r.logger.WarnContext(ctx, "model selection unavailable", "error", err)
		return Result{}, false
	}

	res, err := ValidateSelection(d, candidates)
	if err != nil {
		r.logger.WarnContext(ctx, "model selection rejected", "error", err)
		return Result{}, false
	}
	return res, true
}

// ValidateSelection accepts a model selection only when every SKU is a
// candidate, the confidence is high enough, and the claimed tier is one the
// model may stand in for.
func ValidateSelection(d classify.SelectDecision, candidates []catalog.Entity) (Result, error) {
	if len(d.SelectedSKUs) == 0 {
		return Result{}, fmt.Errorf("empty selection")
	}
	if d.Confidence < minAssistConfidence || d.Confidence > 1 {
		return Result{}, fmt.Errorf("confidence %.2f out of range", d.Confidence)
	}
	tier := Tier(d.Tier)
	if tier < TierCharacteristic || tier > TierAll {
		return Result{}, fmt.Errorf("tier %d not allowed", d.Tier)
	}

	skus := make([]string, 0, len(d.SelectedSKUs))
	for _, sku := range d.SelectedSKUs {
		e, ok := find(candidates, sku)
		if !ok {
			return Result{}, fmt.Errorf("sku %q is not a candidate", sku)
		}
		skus = appendUnique(skus, e.SKU)
	}

	return Result{
		SelectedSKUs: skus,
		Reasoning:    d.Reasoning,
		Confidence:   d.Confidence,
		Tier:         tier,
		Assisted:     true,
	}, nil
}

// Messages converts session history into classifier context.
func Messages(history []sessions.Turn) []classify.Message {
	out := make([]classify.Message, len(history))
	for i, t := range history {
		out[i] = classify.Message{Role: string(t.Role), Content: t.Content}
	}
	return out
}

func find(candidates []catalog.Entity, sku string) (catalog.Entity, bool) {
	for _, e := range candidates {
		if strings.EqualFold(e.SKU, strings.TrimSpace(sku)) {
			return e, true
		}
	}
	return catalog.Entity{}, false
}

func appendUnique(skus []string, sku string) []string {
	for _, s := range skus {
		if strings.EqualFold(s, sku) {
			return skus
		}
	}
	return append(skus, sku)
}

func selectWhere(candidates []catalog.Entity, keep func(catalog.Entity) bool) []string {
	var skus []string
	for _, e := range candidates {
		if keep(e) {
			skus = appendUnique(skus, e.SKU)
		}
	}
	return skus
}
