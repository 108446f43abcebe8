// Package confirmation decides what happens to a pending artifact once the
// user answers the keep-or-discard prompt.
package confirmation

// State is the confirmation state of a session.
type State string

const (
	StateIdle     State = "idle"
	StateAwaiting State = "awaiting-confirmation"
)

// Label is the user's answer to a confirmation prompt.
type Label string

const (
	AcceptOnly       Label = "accept-only"
	AcceptAndPublish Label = "accept-and-publish"
	Reject           Label = "reject"
	RejectButPublish Label = "reject-but-publish"
	Ambiguous        Label = "ambiguous"
)

// Normalize maps s onto a known label. Anything unrecognized is Ambiguous.
func Normalize(s string) Label {
	switch l := Label(s); l {
	case AcceptOnly, AcceptAndPublish, Reject, RejectButPublish:
		return l
	default:
		return Ambiguous
	}
}

// Decision is an interpreted confirmation reply. FollowUp carries a further
// modification request made in the same reply.
type Decision struct {
	Label    Label  `json:"label"`
	FollowUp string `json:"follow_up,omitempty"`
}

// Transition describes the effects of applying a decision in a state.
type Transition struct {
	From     State  `json:"from"`
	To       State  `json:"to"`
	Commit   bool   `json:"commit"`
	Discard  bool   `json:"discard"`
	Publish  bool   `json:"publish"`
	FollowUp string `json:"follow_up,omitempty"`
}

type effects struct {
	commit, discard, publish bool
}

var table = map[Label]effects{
	AcceptOnly:       {commit: true},
	AcceptAndPublish: {commit: true, publish: true},
	Reject:           {discard: true},
	RejectButPublish: {discard: true, publish: true},
}

// Next is the transition table. Only a pending confirmation reacts to a
// decision; an ambiguous reply keeps it pending and drops any follow-up.
func Next(state State, d Decision) Transition {
	t := Transition{From: state, To: state}
	if state != StateAwaiting {
		return t
	}

	fx, ok := table[Normalize(string(d.Label))]
	if !ok {
		return t
	}

	t.To = StateIdle
	t.Commit = fx.commit
	t.Discard = fx.discard
	t.Publish = fx.publish
	t.FollowUp = d.FollowUp
	return t
}
