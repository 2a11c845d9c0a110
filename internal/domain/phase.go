package domain

import "fmt"

// Phase is the conversation state that selects the active agent.
type Phase string

const (
	PhaseGreeting  Phase = "greeting"
	PhaseLocation  Phase = "location"
	PhaseOrder     Phase = "order"
	PhaseCheckout  Phase = "checkout"
	PhaseConfirmed Phase = "terminal:confirmed"
	PhaseEscalated Phase = "terminal:escalated"
)

// ActivePhases lists the phases served by an agent, in conversation order.
var ActivePhases = []Phase{PhaseGreeting, PhaseLocation, PhaseOrder, PhaseCheckout}

// Terminal reports whether no further turns change the session.
func (p Phase) Terminal() bool {
	return p == PhaseConfirmed || p == PhaseEscalated
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseGreeting, PhaseLocation, PhaseOrder, PhaseCheckout, PhaseConfirmed, PhaseEscalated:
		return true
	}
	return false
}

// ParsePhase converts a stored or user-supplied name into a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", Validation("parse phase", "unknown phase %q", s)
	}
	return p, nil
}

// SignalKind is the routing vocabulary an agent may emit.
type SignalKind string

const (
	SignalContinue  SignalKind = "continue"
	SignalHandoff   SignalKind = "handoff"
	SignalComplaint SignalKind = "complaint"
	SignalConfirm   SignalKind = "confirm"
)

// Signal is the classified outcome of one agent turn.
type Signal struct {
	Kind   SignalKind `json:"kind"`
	Target Phase      `json:"target,omitempty"`
}

// Continue keeps the current phase.
func Continue() Signal { return Signal{Kind: SignalContinue} }

// Handoff requests a transition to the target phase.
func Handoff(to Phase) Signal { return Signal{Kind: SignalHandoff, Target: to} }

// Complaint escalates the conversation to a human.
func Complaint() Signal { return Signal{Kind: SignalComplaint} }

// ConfirmSignal finalizes the order from checkout.
func ConfirmSignal() Signal { return Signal{Kind: SignalConfirm} }

func (s Signal) String() string {
	if s.Kind == SignalHandoff {
		return fmt.Sprintf("handoff(%s)", s.Target)
	}
	return string(s.Kind)
}

// Backtrack is the closed set of mutually exclusive detour markers.
// A session holds at most one; setting a new one replaces the old.
type Backtrack string

const (
	BacktrackNone         Backtrack = ""
	BacktrackFromCheckout Backtrack = "came_from_checkout"
	BacktrackFromOrder    Backtrack = "came_from_order"
)

// Flags returns the named-boolean view of the marker.
func (b Backtrack) Flags() map[string]bool {
	return map[string]bool{
		string(BacktrackFromCheckout): b == BacktrackFromCheckout,
		string(BacktrackFromOrder):    b == BacktrackFromOrder,
	}
}

// Intent is the customer's purpose classified at greeting.
type Intent string

const (
	IntentNone      Intent = ""
	IntentOrder     Intent = "order"
	IntentComplaint Intent = "complaint"
	IntentInquiry   Intent = "inquiry"
)

// ParseIntent validates an intent name.
func ParseIntent(s string) (Intent, error) {
	switch i := Intent(s); i {
	case IntentOrder, IntentComplaint, IntentInquiry:
		return i, nil
	}
	return IntentNone, Validation("parse intent", "unknown intent %q", s)
}
