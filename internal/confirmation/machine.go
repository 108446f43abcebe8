package confirmation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
)

// Outcome is the result of applying a decision. The session fields are the
// full replacement values; the caller applies them as one patch.
type Outcome struct {
	Transition Transition

	PendingArtifact      *sessions.PendingArtifact
	AwaitingConfirmation bool
	ReadyEntities        []string

	SKU         string
	PublishSKUs []string
	Record      *catalog.ReadyEntityRecord
	Duplicate   bool
}

// Machine applies confirmation decisions against the publish-ready store.
type Machine struct {
	store  catalog.System
	logger *slog.Logger
}

func NewMachine(store catalog.System, logger *slog.Logger) *Machine {
	return &Machine{
		store:  store,
		logger: logger.With("module", "confirmation"),
	}
}

// Apply commits or discards the session's pending artifact. Commits are
// keyed by artifact id, so repeating Apply for the same artifact is safe.
// On error nothing in the returned Outcome should be applied.
func (m *Machine) Apply(ctx context.Context, s *sessions.Session, d Decision) (Outcome, error) {
	p := s.PendingArtifact
	if !s.AwaitingConfirmation || p == nil || p.Status == sessions.ArtifactError {
		return Outcome{}, ErrNothingPending
	}

	t := Next(StateAwaiting, d)
	out := Outcome{
		Transition:           t,
		PendingArtifact:      p,
		AwaitingConfirmation: true,
		SKU:                  p.SKU,
	}
	ready := &sessions.Session{ReadyEntities: slices.Clone(s.ReadyEntities)}
	out.ReadyEntities = ready.ReadyEntities
	if t.To == StateAwaiting {
		return out, nil
	}

	entity, ok := s.Candidate(p.SKU)
	if !ok {
		entity = catalog.Entity{SKU: p.SKU, PrimaryImage: p.SourceRef}
	}

	switch {
	case t.Commit:
		res, err := m.store.Commit(ctx, entity, p.Modification())
		if err != nil {
			return Outcome{}, fmt.Errorf("commit %s: %w", p.SKU, err)
		}
		out.Record = res.Record
		out.Duplicate = res.Duplicate
		ready.MarkReady(p.SKU)
		m.logger.InfoContext(ctx, "artifact committed",
			"sku", p.SKU, "artifact", p.ID, "duplicate", res.Duplicate)

	case t.Discard && t.Publish:
		rec, err := m.store.Ensure(ctx, entity)
		if err != nil {
			return Outcome{}, fmt.Errorf("ensure %s: %w", p.SKU, err)
		}
		out.Record = rec
		ready.MarkReady(p.SKU)
		m.logger.InfoContext(ctx, "artifact discarded, original kept", "sku", p.SKU)

	default:
		m.logger.InfoContext(ctx, "artifact discarded", "sku", p.SKU)
	}

	out.ReadyEntities = ready.ReadyEntities
	out.PendingArtifact = nil
	out.AwaitingConfirmation = false
	if t.Publish {
		out.PublishSKUs = []string{p.SKU}
	}
	return out, nil
}
