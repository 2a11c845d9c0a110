// Package domain holds the ordering assistant's session and order model.
package domain

import (
	"slices"
	"strings"
	"time"
)

// DigestSize bounds the raw turns carried between phases.
const DigestSize = 4

// DigestEntry is one raw conversation turn.
type DigestEntry struct {
	Role string `json:"role"` // "user" | "assistant"
	Text string `json:"text"`
}

// Digest is a bounded ring of the most recent turns, oldest first.
type Digest []DigestEntry

// Append adds an entry and drops the oldest beyond DigestSize.
func (d Digest) Append(role, text string) Digest {
	out := append(slices.Clone(d), DigestEntry{Role: role, Text: text})
	if len(out) > DigestSize {
		out = out[len(out)-DigestSize:]
	}
	return out
}

// Session is the per-conversation record persisted between turns.
type Session struct {
	ID            string    `json:"id"`
	Phase         Phase     `json:"phase"`
	Backtrack     Backtrack `json:"backtrack,omitempty"`
	Order         Order     `json:"order"`
	CustomerName  string    `json:"customerName,omitempty"`
	CustomerPhone string    `json:"customerPhone,omitempty"`
	Intent        Intent    `json:"intent,omitempty"`
	HandoffNote   string    `json:"handoffNote,omitempty"`
	Digest        Digest    `json:"digest,omitempty"`
	Turns         int       `json:"turns"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewSession creates an empty session in the greeting phase.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Phase:     PhaseGreeting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Flags exposes the backtrack marker as named booleans.
func (s *Session) Flags() map[string]bool {
	return s.Backtrack.Flags()
}

// Clone returns a deep copy used as the working state of a turn.
func (s *Session) Clone() *Session {
	c := *s
	c.Order = s.Order.Clone()
	c.Digest = slices.Clone(s.Digest)
	return &c
}

// SetCustomer records contact details. Captured values can be replaced but
// never cleared.
func (s *Session) SetCustomer(name, phone string) error {
	const op = "set customer"
	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)
	if name == "" && phone == "" {
		return Validation(op, "name or phone is required")
	}
	if name != "" {
		s.CustomerName = name
	}
	if phone != "" {
		s.CustomerPhone = phone
	}
	return nil
}

// SetIntent records the greeting classification once.
func (s *Session) SetIntent(i Intent) error {
	const op = "set intent"
	if i == IntentNone {
		return Validation(op, "intent is required")
	}
	if s.Intent != IntentNone && s.Intent != i {
		return InvalidState(op, "intent already set to %s", s.Intent)
	}
	s.Intent = i
	return nil
}

// Record appends a turn to the digest.
func (s *Session) Record(role, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.Digest = s.Digest.Append(role, text)
}
