package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/zxlitianshu/Kekari-agent/internal/classify"
	"github.com/zxlitianshu/Kekari-agent/internal/resolver"
)

var routeKeys = map[string]RoutingKey{
	classify.ActionSearch:   KeySearch,
	classify.ActionConverse: KeyConverse,
	classify.ActionModify:   KeyModify,
	classify.ActionPublish:  KeyPublish,
	classify.ActionListing:  KeyListing,
}

// RouteStep is the entry step. A pending confirmation always goes to
// maintain and ready-list commands go to listing; everything else follows
// the classifier's route decision.
func RouteStep(rt *Runtime) StepFunc {
	logger := rt.Logger.With("step", StepRoute)

	return func(ctx context.Context, st *State) (Patch, RoutingKey) {
		if st.Session.AwaitingConfirmation {
			return Patch{}, KeyMaintain
		}

		if cmd, ok := ParseListingCommand(st.Utterance); ok {
			return Patch{Listing: Set(&cmd)}, KeyListing
		}

		d, err := rt.Classifier.Route(ctx, classify.RouteInput{
			Utterance:  st.Utterance,
			History:    rt.history(st),
			Candidates: st.Session.CandidateEntities,
		})
		if err != nil {
			if errors.Is(err, classify.ErrInvalidDecision) || errors.Is(err, classify.ErrEmptyResponse) {
				logger.WarnContext(ctx, "route decision rejected, conversing instead", "error", err)
				return Patch{}, KeyConverse
			}
			logger.WarnContext(ctx, "route decision unavailable", "error", err)
			return Patch{Failure: Set(failure(StepRoute, err))}, KeyDegraded
		}

		key, ok := routeKeys[strings.ToLower(strings.TrimSpace(d.Action))]
		if !ok {
			logger.WarnContext(ctx, "unknown route action, conversing instead", "action", d.Action)
			return Patch{}, KeyConverse
		}

		logger.InfoContext(ctx, "turn routed", "action", d.Action, "confidence", d.Confidence)
		p := Patch{Route: Set(&d)}
		if key == KeyListing {
			p.Listing = Set(&ListingCommand{})
		}
		return p, key
	}
}

// history returns the recent turns given to the classifier as context.
func (rt *Runtime) history(st *State) []classify.Message {
	h := st.Session.History
	if n := rt.Config.HistorySize; n > 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	return resolver.Messages(h)
}
