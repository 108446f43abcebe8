package workflow

import (
	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/classify"
	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
)

// Field is an optional patch value. The zero Field leaves its target alone.
type Field[T any] struct {
	Value T
	Set   bool
}

// Set wraps v as a field to write.
func Set[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

func (f Field[T]) apply(dst *T) {
	if f.Set {
		*dst = f.Value
	}
}

// ListingCommand is a ready-list request parsed from the utterance.
type ListingCommand struct {
	Remove bool
	SKUs   []string
}

// Scratch is turn-scoped state shared between steps. It is never persisted.
type Scratch struct {
	Route    *classify.RouteDecision
	Listing  *ListingCommand
	Targets  []string
	FollowUp string
	// Subject is the SKU the turn last acted on, used when a follow-up
	// request does not name its own target.
	Subject string
	Reply   string
	Notices []string
	Failure *Failure
}

// State is what a step sees: a working copy of the session plus scratch.
// Steps must not modify it; changes are returned as a Patch.
type State struct {
	Session   *sessions.Session
	Utterance string
	Language  string
	Scratch   Scratch
}

// Patch is a step's requested change. Fields merge shallowly in step
// order, last writer wins. Notices accumulate.
type Patch struct {
	CandidateEntities    Field[[]catalog.Entity]
	PendingArtifact      Field[*sessions.PendingArtifact]
	AwaitingConfirmation Field[bool]
	ReadyEntities        Field[[]string]

	Route    Field[*classify.RouteDecision]
	Listing  Field[*ListingCommand]
	Targets  Field[[]string]
	FollowUp Field[string]
	Subject  Field[string]
	Reply    Field[string]
	Failure  Field[*Failure]
	Notices  []string
}

func (p Patch) apply(st *State) {
	s := st.Session
	p.CandidateEntities.apply(&s.CandidateEntities)
	p.PendingArtifact.apply(&s.PendingArtifact)
	p.AwaitingConfirmation.apply(&s.AwaitingConfirmation)
	p.ReadyEntities.apply(&s.ReadyEntities)

	sc := &st.Scratch
	p.Route.apply(&sc.Route)
	p.Listing.apply(&sc.Listing)
	p.Targets.apply(&sc.Targets)
	p.FollowUp.apply(&sc.FollowUp)
	p.Subject.apply(&sc.Subject)
	p.Reply.apply(&sc.Reply)
	p.Failure.apply(&sc.Failure)
	sc.Notices = append(sc.Notices, p.Notices...)
}

// Merge returns p with every set field of q written over it.
func (p Patch) Merge(q Patch) Patch {
	mergeField(&p.CandidateEntities, q.CandidateEntities)
	mergeField(&p.PendingArtifact, q.PendingArtifact)
	mergeField(&p.AwaitingConfirmation, q.AwaitingConfirmation)
	mergeField(&p.ReadyEntities, q.ReadyEntities)
	mergeField(&p.Route, q.Route)
	mergeField(&p.Listing, q.Listing)
	mergeField(&p.Targets, q.Targets)
	mergeField(&p.FollowUp, q.FollowUp)
	mergeField(&p.Subject, q.Subject)
	mergeField(&p.Reply, q.Reply)
	mergeField(&p.Failure, q.Failure)
	p.Notices = append(append([]string(nil), p.Notices...), q.Notices...)
	return p
}

func mergeField[T any](dst *Field[T], src Field[T]) {
	if src.Set {
		*dst = src
	}
}
