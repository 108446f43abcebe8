package workflow

import "context"

// RespondStep ends a turn whose reply was already prepared.
func RespondStep() StepFunc {
	return func(context.Context, *State) (Patch, RoutingKey) {
		return Patch{}, End
	}
}

// DegradedStep ends a turn after a collaborator failure with a message
// saying what failed and what to try next.
func DegradedStep() StepFunc {
	return func(_ context.Context, st *State) (Patch, RoutingKey) {
		return Patch{Reply: Set(degradedMessage(st.Language, st.Scratch.Failure))}, End
	}
}
