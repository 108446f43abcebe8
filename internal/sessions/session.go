// Package sessions holds per-conversation state and the stores that keep it
// between turns.
package sessions

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the conversation history.
type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// ArtifactStatus is the transformation outcome of a pending artifact.
type ArtifactStatus string

// An errored artifact records a failed transformation for the turn that
// attempted it. It never awaits confirmation and is dropped on the next turn.
const (
	ArtifactSuccess ArtifactStatus = "success"
	ArtifactError   ArtifactStatus = "error"
)

// PendingArtifact is a transformed asset awaiting the user's decision.
type PendingArtifact struct {
	ID          uuid.UUID      `json:"id"`
	SKU         string         `json:"sku"`
	Instruction string         `json:"instruction"`
	AssetRef    string         `json:"asset_ref"`
	SourceRef   string         `json:"source_ref"`
	Status      ArtifactStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Modification converts the artifact into the durable form committed on accept.
func (p *PendingArtifact) Modification() catalog.Modification {
	return catalog.Modification{
		ID:          p.ID,
		AssetRef:    p.AssetRef,
		Instruction: p.Instruction,
		Valid:       p.Status == ArtifactSuccess,
		CreatedAt:   p.CreatedAt,
	}
}

// Session is the full conversational state for one session id.
type Session struct {
	ID                   string           `json:"id"`
	History              []Turn           `json:"history"`
	CandidateEntities    []catalog.Entity `json:"candidate_entities"`
	PendingArtifact      *PendingArtifact `json:"pending_artifact,omitempty"`
	AwaitingConfirmation bool             `json:"awaiting_confirmation"`
	ReadyEntities        []string         `json:"ready_entities"`
	Language             string           `json:"language,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// Summary is the listing view of a session.
type Summary struct {
	ID                   string    `json:"id"`
	Turns                int       `json:"turns"`
	Candidates           int       `json:"candidates"`
	ReadyEntities        int       `json:"ready_entities"`
	AwaitingConfirmation bool      `json:"awaiting_confirmation"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// ErrInvariant reports a session whose confirmation flag has no artifact.
var ErrInvariant = errors.New("awaiting confirmation without a pending artifact")

// New creates an empty session.
func New(id string) *Session {
	ts := time.Now().UTC()
	return &Session{
		ID:                id,
		History:           []Turn{},
		CandidateEntities: []catalog.Entity{},
		ReadyEntities:     []string{},
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	c := *s
	c.History = slices.Clone(s.History)
	c.CandidateEntities = make([]catalog.Entity, len(s.CandidateEntities))
	for i, e := range s.CandidateEntities {
		c.CandidateEntities[i] = e.Clone()
	}
	c.ReadyEntities = slices.Clone(s.ReadyEntities)
	if s.PendingArtifact != nil {
		p := *s.PendingArtifact
		c.PendingArtifact = &p
	}
	return &c
}

// Append adds a turn to the end of the history.
func (s *Session) Append(role Role, content string) {
	ts := time.Now().UTC()
	s.History = append(s.History, Turn{Role: role, Content: content, At: ts})
	s.UpdatedAt = ts
}

// CheckInvariants verifies that a pending confirmation always has an artifact.
func (s *Session) CheckInvariants() error {
	if s.AwaitingConfirmation && (s.PendingArtifact == nil || s.PendingArtifact.Status == ArtifactError) {
		return ErrInvariant
	}
	return nil
}

// MarkReady adds sku to the ready set if not already present.
func (s *Session) MarkReady(sku string) {
	if sku == "" || s.IsReady(sku) {
		return
	}
	s.ReadyEntities = append(s.ReadyEntities, sku)
}

// Unready removes sku from the ready set.
func (s *Session) Unready(sku string) {
	s.ReadyEntities = slices.DeleteFunc(s.ReadyEntities, func(v string) bool {
		return strings.EqualFold(v, sku)
	})
}

// IsReady reports whether sku is in the ready set.
func (s *Session) IsReady(sku string) bool {
	return slices.ContainsFunc(s.ReadyEntities, func(v string) bool {
		return strings.EqualFold(v, sku)
	})
}

// Candidate returns the candidate entity with the given SKU.
func (s *Session) Candidate(sku string) (catalog.Entity, bool) {
	for _, e := range s.CandidateEntities {
		if strings.EqualFold(e.SKU, sku) {
			return e, true
		}
	}
	return catalog.Entity{}, false
}

// Summarize returns the listing view of s.
func (s *Session) Summarize() Summary {
	return Summary{
		ID:                   s.ID,
		Turns:                len(s.History),
		Candidates:           len(s.CandidateEntities),
		ReadyEntities:        len(s.ReadyEntities),
		AwaitingConfirmation: s.AwaitingConfirmation,
		UpdatedAt:            s.UpdatedAt,
	}
}
