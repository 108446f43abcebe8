// Package workflow runs one conversational turn as a walk over a static
// graph of named steps. Steps return a patch and a routing key; the engine
// applies patches in order and follows the edge the key selects.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/classify"
)

var (
	ErrRoutingFault        = errors.New("routing fault")
	ErrCollaboratorTimeout = errors.New("collaborator timed out")
	ErrCollaboratorFailed  = errors.New("collaborator failed")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidGraph        = errors.New("invalid workflow graph")
)

// Kind classifies a failure for user messaging.
type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindCollaborator Kind = "collaborator"
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindRouting      Kind = "routing"
)

// ClassifyFailure maps err onto a failure kind. Deadline errors are
// timeouts regardless of which collaborator produced them.
func ClassifyFailure(err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrCollaboratorTimeout):
		return KindTimeout
	case errors.Is(err, ErrRoutingFault):
		return KindRouting
	case errors.Is(err, catalog.ErrConflict):
		return KindConflict
	case errors.Is(err, ErrValidation),
		errors.Is(err, classify.ErrInvalidDecision),
		errors.Is(err, catalog.ErrInvalidSKU):
		return KindValidation
	default:
		return KindCollaborator
	}
}

// Sentinel returns the taxonomy sentinel for a kind.
func (k Kind) Sentinel() error {
	switch k {
	case KindTimeout:
		return ErrCollaboratorTimeout
	case KindRouting:
		return ErrRoutingFault
	case KindConflict:
		return catalog.ErrConflict
	case KindValidation:
		return ErrValidation
	default:
		return ErrCollaboratorFailed
	}
}

// Failure records what went wrong in a step, for the degraded reply.
type Failure struct {
	Step string
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Step, f.Kind, f.Err)
}

func (f *Failure) Unwrap() []error {
	return []error{f.Kind.Sentinel(), f.Err}
}

func failure(step string, err error) *Failure {
	return &Failure{Step: step, Kind: ClassifyFailure(err), Err: err}
}
