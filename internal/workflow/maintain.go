package workflow

import (
	"context"

	"github.com/zxlitianshu/Kekari-agent/internal/confirmation"
)

// MaintainStep answers a pending confirmation. The confirmation is always
// settled before any publish or follow-up modification chained after it.
func MaintainStep(rt *Runtime) StepFunc {
	logger := rt.Logger.With("step", StepMaintain)

	return func(ctx context.Context, st *State) (Patch, RoutingKey) {
		p := st.Session.PendingArtifact
		if p == nil || !st.Session.AwaitingConfirmation {
			logger.ErrorContext(ctx, "maintain reached without a pending artifact")
			return Patch{Failure: Set(&Failure{Step: StepRoute, Kind: KindValidation, Err: confirmation.ErrNothingPending})}, KeyDegraded
		}

		d, err := confirmation.Decide(ctx, rt.Classifier, confirmation.Request{
			Utterance:   st.Utterance,
			SKU:         p.SKU,
			Instruction: p.Instruction,
			History:     rt.history(st),
		})
		if err != nil {
			logger.WarnContext(ctx, "confirmation unclear, asking again", "error", err)
		}

		out, err := rt.Machine.Apply(ctx, st.Session, d)
		if err != nil {
			logger.ErrorContext(ctx, "confirmation not applied", "sku", p.SKU, "label", d.Label, "error", err)
			return Patch{Failure: Set(failure(StepMaintain, err))}, KeyDegraded
		}

		patch := Patch{
			PendingArtifact:      Set(out.PendingArtifact),
			AwaitingConfirmation: Set(out.AwaitingConfirmation),
			ReadyEntities:        Set(out.ReadyEntities),
			Subject:              Set(out.SKU),
		}

		t := out.Transition
		if t.To == confirmation.StateAwaiting {
			patch.Reply = Set(say(st.Language, msgConfirmAgain, p.SKU))
			return patch, KeyRespond
		}

		logger.InfoContext(ctx, "confirmation settled", "sku", p.SKU, "label", d.Label, "publish", t.Publish)

		switch {
		case t.Commit:
			patch.Notices = append(patch.Notices, say(st.Language, msgCommitted, p.SKU))
		case t.Publish:
			patch.Notices = append(patch.Notices, say(st.Language, msgDiscardedKept, p.SKU))
		default:
			patch.Notices = append(patch.Notices, say(st.Language, msgDiscarded, p.SKU))
		}

		if t.Publish {
			patch.Targets = Set(out.PublishSKUs)
			patch.FollowUp = Set(t.FollowUp)
			return patch, KeyPublish
		}
		if t.FollowUp != "" {
			patch.FollowUp = Set(t.FollowUp)
			return patch, KeyModify
		}
		return patch, KeyRespond
	}
}
