package workflow

import (
	"context"
	"strings"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/classify"
)

// ConverseStep composes the reply through the classifier. When the
// classifier fails the reply is a templated candidate summary instead.
func ConverseStep(rt *Runtime) StepFunc {
	logger := rt.Logger.With("step", StepConverse)

	return func(ctx context.Context, st *State) (Patch, RoutingKey) {
		candidates := st.Session.CandidateEntities
		limit := min(len(candidates), rt.Config.SummaryLimit)

		reply, err := rt.Classifier.Compose(ctx, classify.ComposeInput{
			Utterance:  st.Utterance,
			Language:   st.Language,
			Candidates: candidates[:limit],
			History:    rt.history(st),
		})
		if err != nil || strings.TrimSpace(reply) == "" {
			if err != nil {
				logger.WarnContext(ctx, "compose failed, using summary", "error", err)
			}
			searched := st.Scratch.Route != nil && st.Scratch.Route.Action == classify.ActionSearch
			reply = candidateSummary(st.Language, candidates, rt.Config.SummaryLimit, searched)
		}

		return Patch{Reply: Set(reply)}, End
	}
}

func candidateSummary(lang string, candidates []catalog.Entity, limit int, searched bool) string {
	if len(candidates) == 0 {
		if searched {
			return say(lang, msgNoResults)
		}
		return say(lang, msgGreeting)
	}

	var sb strings.Builder
	sb.WriteString(say(lang, msgCandidatesHeader))
	for i, e := range candidates {
		if i == limit {
			sb.WriteString("\n")
			sb.WriteString(say(lang, msgCandidatesMore, len(candidates)-limit))
			break
		}
		sb.WriteString("\n")
		sb.WriteString(say(lang, msgCandidateLine, i+1, displayTitle(e), e.SKU))
	}
	sb.WriteString("\n\n")
	sb.WriteString(say(lang, msgCandidatesFooter))
	return sb.String()
}

func displayTitle(e catalog.Entity) string {
	if t := strings.TrimSpace(e.Title); t != "" {
		return t
	}
	return e.SKU
}
