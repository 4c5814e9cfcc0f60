package callback

// State is a phase of the one-shot callback flow.
type State int32

const (
	// Listening waits for the provider redirect.
	Listening State = iota
	// Handling is exchanging the code and persisting the account.
	Handling
	// Succeeded means the account was stored.
	Succeeded
	// Failed means the flow ended without a stored account.
	Failed
	// Closed means the listener has shut down.
	Closed
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Handling:
		return "handling"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends the flow.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == Closed
}
