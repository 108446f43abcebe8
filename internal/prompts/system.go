package prompts

import (
	"context"

	"github.com/google/uuid"

	"github.com/zxlitianshu/Kekari-agent/pkg/pagination"
)

// System stores per-stage instruction overrides. At most one prompt per
// stage is active; Instructions falls back to the built-in text when none is.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Prompt], error)
	Find(ctx context.Context, id uuid.UUID) (*Prompt, error)

	// Instructions returns the effective instructions for stage. Results
	// are cached briefly and invalidated by every mutation below.
	Instructions(ctx context.Context, stage Stage) (string, error)
	// Spec returns the output contract for stage, which overrides cannot change.
	Spec(ctx context.Context, stage Stage) (string, error)

	Create(ctx context.Context, cmd CreateCommand) (*Prompt, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Prompt, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Activate makes id the active prompt for its stage, deactivating any other.
	Activate(ctx context.Context, id uuid.UUID) (*Prompt, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error)
}
