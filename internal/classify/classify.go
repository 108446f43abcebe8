// Package classify is the classification collaborator: routing, confirmation,
// entity selection, and reply composition backed by an OpenAI-compatible
// chat completions endpoint.
package classify

import (
	"context"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
)

// Route actions.
const (
	ActionSearch   = "search"
	ActionConverse = "converse"
	ActionModify   = "modify"
	ActionPublish  = "publish"
	ActionListing  = "listing"
)

// Message is one prior conversation turn given to the model as context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RouteInput is the context for a routing decision.
type RouteInput struct {
	Utterance  string           `json:"utterance"`
	History    []Message        `json:"history,omitempty"`
	Candidates []catalog.Entity `json:"candidates,omitempty"`
}

// RouteDecision selects the next step for a turn.
type RouteDecision struct {
	Action      string            `json:"action" validate:"required,oneof=search converse modify publish listing"`
	Queries     []string          `json:"queries,omitempty" validate:"max=2"`
	Filters     map[string]string `json:"filters,omitempty"`
	TargetSKU   string            `json:"target_sku,omitempty"`
	Instruction string            `json:"instruction,omitempty"`
	Confidence  float64           `json:"confidence" validate:"gte=0,lte=1"`
}

// ConfirmInput is the context for interpreting a reply to a confirmation prompt.
type ConfirmInput struct {
	Utterance   string    `json:"utterance"`
	SKU         string    `json:"sku"`
	Instruction string    `json:"instruction"`
	History     []Message `json:"history,omitempty"`
}

// ConfirmDecision is the model's reading of a confirmation reply.
type ConfirmDecision struct {
	Label    string `json:"label" validate:"required,oneof=accept-only accept-and-publish reject reject-but-publish ambiguous"`
	FollowUp string `json:"follow_up,omitempty"`
}

// SelectInput is the context for choosing entities among candidates.
type SelectInput struct {
	Utterance  string           `json:"utterance"`
	Candidates []catalog.Entity `json:"candidates"`
	History    []Message        `json:"history,omitempty"`
}

// SelectDecision is a model-proposed selection. It is only trusted after the
// caller checks every SKU against its candidates.
type SelectDecision struct {
	SelectedSKUs []string `json:"selected_skus" validate:"required,min=1,dive,required"`
	Tier         int      `json:"tier" validate:"min=2,max=5"`
	Confidence   float64  `json:"confidence" validate:"gte=0,lte=1"`
	Reasoning    string   `json:"reasoning,omitempty"`
}

// ComposeInput is the context for a conversational reply.
type ComposeInput struct {
	Utterance  string           `json:"utterance"`
	Language   string           `json:"language"`
	Candidates []catalog.Entity `json:"candidates,omitempty"`
	History    []Message        `json:"history,omitempty"`
}

// Classifier makes the model-backed decisions a turn depends on. Errors
// wrapping ErrInvalidDecision mean the model answered but the answer did
// not validate.
type Classifier interface {
	Route(ctx context.Context, in RouteInput) (RouteDecision, error)
	Confirm(ctx context.Context, in ConfirmInput) (ConfirmDecision, error)
	Select(ctx context.Context, in SelectInput) (SelectDecision, error)
	Compose(ctx context.Context, in ComposeInput) (string, error)
}
