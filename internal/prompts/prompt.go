// Package prompts manages the instructions sent to the classification model.
// Every stage has a hardcoded default and an immutable response spec; a named
// override stored in the database replaces the default while it is active.
package prompts

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Prompt represents a named instruction override for a stage.
type Prompt struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Stage        Stage     `json:"stage"`
	Instructions string    `json:"instructions"`
	Description  *string   `json:"description"`
	Active       bool      `json:"active"`
}

// CreateCommand carries the data needed to create a new prompt override.
type CreateCommand struct {
	Name         string  `json:"name" validate:"required,max=128"`
	Stage        Stage   `json:"stage" validate:"required"`
	Instructions string  `json:"instructions" validate:"required,max=16000"`
	Description  *string `json:"description" validate:"omitempty,max=1024"`
}

// UpdateCommand replaces every field of an existing prompt override.
type UpdateCommand CreateCommand

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c CreateCommand) check() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPrompt, err)
	}
	_, err := ParseStage(string(c.Stage))
	return err
}
