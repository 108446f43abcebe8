package prompts

import (
	"encoding/json"
	"slices"
)

// Stage identifies the classification task a prompt override targets.
type Stage string

// Classification tasks.
const (
	StageRoute        Stage = "route"
	StageConfirmation Stage = "confirmation"
	StageSelection    Stage = "entity-selection"
	StageCompose      Stage = "compose"
)

var stages = []Stage{
	StageRoute,
	StageConfirmation,
	StageSelection,
	StageCompose,
}

// Stages returns the list of valid classification tasks.
func Stages() []Stage {
	return stages
}

// UnmarshalJSON validates that the decoded string is a known stage value.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := Stage(raw)
	if !slices.Contains(stages, v) {
		return ErrInvalidStage
	}
	*s = v
	return nil
}

// ParseStage validates a string as a known stage.
// Returns ErrInvalidStage if the value is not recognized.
func ParseStage(s string) (Stage, error) {
	v := Stage(s)
	if !slices.Contains(stages, v) {
		return "", ErrInvalidStage
	}
	return v, nil
}
