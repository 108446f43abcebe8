package workflow

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/resolver"
	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
)

// ModifyStep transforms one entity's image and asks the user to keep or
// discard the result. A failed transformation never leaves a confirmation
// pending.
func ModifyStep(rt *Runtime) StepFunc {
	logger := rt.Logger.With("step", StepModify)

	return func(ctx context.Context, st *State) (Patch, RoutingKey) {
		instruction, chained := modifyInstruction(st)
		scope := entityScope(ctx, rt, st)

		target, reply, ok := modifyTarget(ctx, rt, st, scope, instruction, chained)
		if !ok {
			return Patch{Reply: Set(reply)}, KeyRespond
		}

		source := target.ImageRef()
		if source == "" {
			return Patch{Reply: Set(say(st.Language, msgNoImage, target.SKU))}, KeyRespond
		}

		res, err := rt.Transformer.Transform(ctx, source, instruction)
		if err != nil {
			logger.WarnContext(ctx, "transform failed", "sku", target.SKU, "error", err)
			f := failure(StepModify, err)
			return Patch{
				PendingArtifact: Set(&sessions.PendingArtifact{
					ID:          uuid.New(),
					SKU:         target.SKU,
					Instruction: instruction,
					SourceRef:   source,
					Status:      sessions.ArtifactError,
					Error:       string(f.Kind),
					CreatedAt:   time.Now().UTC(),
				}),
				AwaitingConfirmation: Set(false),
				Subject:              Set(target.SKU),
				Failure:              Set(f),
			}, KeyDegraded
		}

		artifact := &sessions.PendingArtifact{
			ID:          uuid.New(),
			SKU:         target.SKU,
			Instruction: instruction,
			AssetRef:    res.AssetRef,
			SourceRef:   source,
			Status:      sessions.ArtifactSuccess,
			CreatedAt:   time.Now().UTC(),
		}

		logger.InfoContext(ctx, "artifact pending confirmation", "sku", target.SKU, "artifact", artifact.ID)
		return Patch{
			PendingArtifact:      Set(artifact),
			AwaitingConfirmation: Set(true),
			Subject:              Set(target.SKU),
			Reply:                Set(say(st.Language, msgConfirmPrompt, target.SKU, instruction, res.AssetRef)),
		}, KeyRespond
	}
}

// modifyInstruction prefers a follow-up chained from an earlier step, then
// the route decision's instruction, then the raw utterance.
func modifyInstruction(st *State) (string, bool) {
	if f := strings.TrimSpace(st.Scratch.FollowUp); f != "" {
		return f, true
	}
	if d := st.Scratch.Route; d != nil {
		if i := strings.TrimSpace(d.Instruction); i != "" {
			return i, false
		}
	}
	return strings.TrimSpace(st.Utterance), false
}

// modifyTarget picks exactly one entity. A chained follow-up acts on the
// turn's subject unless it names a SKU outright. Otherwise the route's
// target SKU wins, then the resolver, then a lone candidate.
func modifyTarget(
	ctx context.Context,
	rt *Runtime,
	st *State,
	scope resolver.Scope,
	instruction string,
	chained bool,
) (catalog.Entity, string, bool) {
	pool := scope.All()
	if chained {
		if res, ok := resolver.Deterministic(instruction, pool, nil); ok &&
			res.Tier == resolver.TierExactSKU && len(res.SelectedSKUs) == 1 {
			return findOrLoad(ctx, rt, pool, res.SelectedSKUs[0])
		}
		if st.Scratch.Subject != "" {
			return findOrLoad(ctx, rt, pool, st.Scratch.Subject)
		}
	}

	if d := st.Scratch.Route; d != nil && d.TargetSKU != "" {
		if e, ok := findEntity(pool, d.TargetSKU); ok {
			return e, "", true
		}
	}

	text := withoutInstruction(st.Utterance, instruction)
	res := rt.Resolver.ResolveWithin(ctx, text, scope, st.Session.History)
	switch {
	case len(res.SelectedSKUs) == 1:
		return findOrLoad(ctx, rt, pool, res.SelectedSKUs[0])
	case len(res.SelectedSKUs) > 1:
		return catalog.Entity{}, say(st.Language, msgClarifyMany, strings.Join(res.SelectedSKUs, ", ")), false
	case len(pool) == 1:
		return pool[0], "", true
	default:
		return catalog.Entity{}, say(st.Language, msgClarifyNone), false
	}
}

// withoutInstruction removes the instruction from the utterance so its
// words are not mistaken for a reference ("make the background white"
// should not select the white chair).
func withoutInstruction(utterance, instruction string) string {
	if instruction == "" {
		return utterance
	}
	i := strings.Index(utterance, instruction)
	lu, li := strings.ToLower(utterance), strings.ToLower(instruction)
	if i < 0 && len(lu) == len(utterance) && len(li) == len(instruction) {
		i = strings.Index(lu, li)
	}
	if i < 0 {
		return utterance
	}
	rest := strings.TrimSpace(utterance[:i] + " " + utterance[i+len(instruction):])
	if rest == "" {
		return utterance
	}
	return rest
}

// entityScope is what a reference can resolve against: the candidates as
// shown, then the session's ready entities that were not among them. A
// ready entity is represented by its stored record so further edits build
// on the accepted image.
func entityScope(ctx context.Context, rt *Runtime, st *State) resolver.Scope {
	shown := slices.Clone(st.Session.CandidateEntities)
	var known []catalog.Entity
	for _, sku := range st.Session.ReadyEntities {
		rec, err := rt.Catalog.Get(ctx, sku)
		if err != nil {
			rt.Logger.DebugContext(ctx, "ready entity unavailable", "sku", sku, "error", err)
			continue
		}
		e := rec.EffectiveEntity()
		if i := slices.IndexFunc(shown, func(c catalog.Entity) bool { return strings.EqualFold(c.SKU, sku) }); i >= 0 {
			shown[i] = e
			continue
		}
		known = append(known, e)
	}
	return resolver.Scope{Shown: catalog.Dedupe(shown), Known: catalog.Dedupe(known)}
}

func findEntity(pool []catalog.Entity, sku string) (catalog.Entity, bool) {
	for _, e := range pool {
		if strings.EqualFold(e.SKU, sku) {
			return e, true
		}
	}
	return catalog.Entity{}, false
}

func findOrLoad(ctx context.Context, rt *Runtime, pool []catalog.Entity, sku string) (catalog.Entity, string, bool) {
	if e, ok := findEntity(pool, sku); ok {
		return e, "", true
	}
	if rec, err := rt.Catalog.Get(ctx, sku); err == nil {
		return rec.EffectiveEntity(), "", true
	}
	return catalog.Entity{SKU: sku}, "", true
}
