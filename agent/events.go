// Package agent parses the textual output of a loaded flash-writer agent
// into structured events. All pattern matching against agent output lives
// here; the loader, speed negotiator, and flash client consume the same
// tagged events instead of matching strings themselves.
package agent

// EventKind tags a classified agent output line.
type EventKind int

const (
	// KindUnrecognized is agent chatter that matched no known pattern.
	KindUnrecognized EventKind = iota

	// KindPrompt is the agent's command prompt.
	KindPrompt

	// KindProgress is an intermediate marker emitted during a long
	// operation (erase dots, transfer echoes).
	KindProgress

	// KindSuccess is a command completion marker.
	KindSuccess

	// KindFailure is a known failure marker.
	KindFailure
)

func (k EventKind) String() string {
	switch k {
	case KindPrompt:
		return "prompt"
	case KindProgress:
		return "progress"
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	default:
		return "unrecognized"
	}
}

// Event is one parsed line of agent output. Events are transient: produced
// by the parser, consumed by the stage that is waiting on the agent, never
// persisted.
type Event struct {
	Kind EventKind

	// Reason carries the matched failure text for KindFailure events.
	Reason string

	// Raw is the original line as received.
	Raw string
}
