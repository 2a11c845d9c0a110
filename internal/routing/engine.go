// Package routing is the phase state machine. It consumes classified agent
// signals and never inspects natural language.
package routing

import (
	"time"

	"github.com/soyeahso/sawt/internal/domain"
)

// effect is what a transition does to the backtrack marker.
type effect int

const (
	keep effect = iota
	setFromOrder
	setFromCheckout
	resolveLocation // location -> order, flag precedence decides the real target
)

type key struct {
	kind   domain.SignalKind
	target domain.Phase
}

type rule struct {
	to     domain.Phase
	effect effect
	note   string
}

var transitions = map[domain.Phase]map[key]rule{
	domain.PhaseGreeting: {
		{domain.SignalHandoff, domain.PhaseLocation}: {to: domain.PhaseLocation, note: "customer wants to order"},
		{domain.SignalComplaint, ""}:                 {to: domain.PhaseEscalated, note: "complaint escalated to staff"},
	},
	domain.PhaseLocation: {
		{domain.SignalHandoff, domain.PhaseOrder}: {to: domain.PhaseOrder, effect: resolveLocation, note: "location confirmed"},
	},
	domain.PhaseOrder: {
		{domain.SignalHandoff, domain.PhaseCheckout}: {to: domain.PhaseCheckout, note: "cart ready for checkout"},
		{domain.SignalHandoff, domain.PhaseLocation}: {to: domain.PhaseLocation, effect: setFromOrder, note: "customer wants to change location while ordering"},
	},
	domain.PhaseCheckout: {
		{domain.SignalHandoff, domain.PhaseOrder}:    {to: domain.PhaseOrder, effect: setFromCheckout, note: "customer wants to change items from checkout"},
		{domain.SignalHandoff, domain.PhaseLocation}: {to: domain.PhaseLocation, effect: setFromCheckout, note: "customer wants to change location from checkout"},
		{domain.SignalConfirm, ""}:                   {to: domain.PhaseConfirmed, note: "order confirmed"},
	},
}

// Decision is the outcome of one routing step.
type Decision struct {
	From      domain.Phase     `json:"from"`
	To        domain.Phase     `json:"to"`
	Signal    domain.Signal    `json:"signal"`
	Backtrack domain.Backtrack `json:"backtrack,omitempty"`
	Consumed  domain.Backtrack `json:"consumed,omitempty"`
	Confirm   bool             `json:"confirm,omitempty"`
	Note      string           `json:"note,omitempty"`
}

// Changed reports whether the decision moves to another phase.
func (d Decision) Changed() bool { return d.From != d.To }

// Next computes the transition for (phase, signal, marker). Signals that are
// not defined for the phase are rejected with a RoutingError.
func Next(phase domain.Phase, sig domain.Signal, marker domain.Backtrack) (Decision, error) {
	const op = "route"
	d := Decision{From: phase, To: phase, Signal: sig, Backtrack: marker}

	if phase.Terminal() {
		return d, domain.Routing(op, nil, "phase %s accepts no signals, got %s", phase, sig)
	}
	if !phase.Valid() {
		return d, domain.Routing(op, nil, "unknown phase %q", phase)
	}
	if sig.Kind == domain.SignalContinue {
		return d, nil
	}

	k := key{kind: sig.Kind}
	if sig.Kind == domain.SignalHandoff {
		k.target = sig.Target
	}
	r, ok := transitions[phase][k]
	if !ok {
		return d, domain.Routing(op, nil, "signal %s is not valid in phase %s", sig, phase)
	}

	d.To = r.to
	d.Note = r.note
	switch r.effect {
	case setFromOrder:
		d.Backtrack = domain.BacktrackFromOrder
	case setFromCheckout:
		d.Backtrack = domain.BacktrackFromCheckout
	case resolveLocation:
		switch marker {
		case domain.BacktrackFromCheckout:
			d.To = domain.PhaseCheckout
			d.Note = "location updated, returning to checkout"
		case domain.BacktrackFromOrder:
			d.Note = "location updated, returning to the order"
		}
		d.Consumed = marker
		d.Backtrack = domain.BacktrackNone
	}

	if d.To == domain.PhaseCheckout {
		if d.Consumed == domain.BacktrackNone {
			d.Consumed = d.Backtrack
		}
		d.Backtrack = domain.BacktrackNone
	}
	if d.To == domain.PhaseConfirmed {
		d.Confirm = true
	}
	return d, nil
}

// Apply commits a decision to the working session. A confirm decision on an
// incomplete order becomes a RoutingError and leaves the session unchanged.
func Apply(s *domain.Session, d Decision, now time.Time) error {
	if s.Phase != d.From {
		return domain.Routing("apply", nil, "decision is for phase %s, session is in %s", d.From, s.Phase)
	}
	if d.Confirm {
		if err := s.Order.Confirm(now); err != nil {
			return domain.Routing("apply", err, "confirm rejected")
		}
	}
	s.Phase = d.To
	s.Backtrack = d.Backtrack
	if d.Changed() {
		s.HandoffNote = d.Note
	}
	return nil
}

// Allowed lists the signals valid in phase, for prompting agents.
func Allowed(phase domain.Phase) []domain.Signal {
	if phase.Terminal() || !phase.Valid() {
		return nil
	}
	out := []domain.Signal{domain.Continue()}
	// stable order matching the conversation flow
	for _, target := range []domain.Phase{domain.PhaseLocation, domain.PhaseOrder, domain.PhaseCheckout} {
		if _, ok := transitions[phase][key{domain.SignalHandoff, target}]; ok {
			out = append(out, domain.Handoff(target))
		}
	}
	if _, ok := transitions[phase][key{domain.SignalComplaint, ""}]; ok {
		out = append(out, domain.Complaint())
	}
	if _, ok := transitions[phase][key{domain.SignalConfirm, ""}]; ok {
		out = append(out, domain.ConfirmSignal())
	}
	return out
}
