// Package handoff builds the bounded context one phase's agent receives about
// the turns handled before it.
package handoff

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/soyeahso/sawt/internal/domain"
)

// Line is an order line as shown to the checkout agent.
type Line struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Notes     string          `json:"notes,omitempty"`
}

// Context is the only prior-turn state passed to a phase agent.
type Context struct {
	SessionID    string        `json:"sessionId"`
	Phase        domain.Phase  `json:"phase"`
	CustomerName string        `json:"customerName,omitempty"`
	Intent       domain.Intent `json:"intent,omitempty"`

	// Set for order and checkout once fulfillment is resolved.
	Fulfillment domain.Fulfillment `json:"fulfillment,omitempty"`
	District    string             `json:"district,omitempty"`
	DeliveryFee *decimal.Decimal   `json:"deliveryFee,omitempty"`

	// Set for checkout only.
	Items    []Line           `json:"items,omitempty"`
	Subtotal *decimal.Decimal `json:"subtotal,omitempty"`

	Summary string               `json:"summary"`
	Digest  []domain.DigestEntry `json:"digest,omitempty"`
}

// Build computes the context for target from the full session.
func Build(s *domain.Session, target domain.Phase) Context {
	c := Context{
		SessionID:    s.ID,
		Phase:        target,
		CustomerName: s.CustomerName,
		Intent:       s.Intent,
		Summary:      summarize(s, target),
	}

	o := &s.Order
	if (target == domain.PhaseOrder || target == domain.PhaseCheckout) && resolved(o) {
		c.Fulfillment = o.Fulfillment
		c.District = o.District
		fee := o.ComputeTotals().DeliveryFee
		c.DeliveryFee = &fee
	}

	if target == domain.PhaseCheckout {
		c.Items = make([]Line, 0, len(o.Items))
		for _, l := range o.Items {
			c.Items = append(c.Items, Line{
				ItemID:    l.ItemID,
				Name:      l.Name,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
				Notes:     l.Notes,
			})
		}
		sub := o.ComputeTotals().Subtotal
		c.Subtotal = &sub
	}

	n := len(s.Digest)
	if n > domain.DigestSize {
		n = domain.DigestSize
	}
	if n > 0 {
		c.Digest = append([]domain.DigestEntry(nil), s.Digest[len(s.Digest)-n:]...)
	}
	return c
}

func resolved(o *domain.Order) bool {
	switch o.Fulfillment {
	case domain.Pickup:
		return true
	case domain.Delivery:
		return o.District != ""
	}
	return false
}

// summarize renders the short fact line every phase receives.
func summarize(s *domain.Session, target domain.Phase) string {
	var parts []string
	if s.HandoffNote != "" {
		parts = append(parts, s.HandoffNote)
	}
	if s.CustomerName != "" {
		parts = append(parts, "name: "+s.CustomerName)
	}
	if target == domain.PhaseOrder || target == domain.PhaseCheckout {
		switch s.Order.Fulfillment {
		case domain.Pickup:
			parts = append(parts, "pickup from branch")
		case domain.Delivery:
			if s.Order.District != "" {
				parts = append(parts, "delivery to "+s.Order.District)
			}
		}
	}
	if target == domain.PhaseCheckout {
		if sum := s.Order.Summary(); sum != "" {
			parts = append(parts, "order: "+sum)
		}
	}
	if len(parts) == 0 {
		return "new customer"
	}
	return strings.Join(parts, " | ")
}

// Render formats the context as the information block prepended to the
// agent's conversation.
func (c Context) Render() string {
	var b strings.Builder
	b.WriteString("## Context\n\n")
	fmt.Fprintf(&b, "- Session: %s\n", c.SessionID)
	if c.CustomerName != "" {
		fmt.Fprintf(&b, "- Customer: %s\n", c.CustomerName)
	}
	if c.Intent != domain.IntentNone {
		fmt.Fprintf(&b, "- Intent: %s\n", c.Intent)
	}
	switch c.Fulfillment {
	case domain.Pickup:
		b.WriteString("- Order type: pickup\n")
	case domain.Delivery:
		fmt.Fprintf(&b, "- Order type: delivery to %s", c.District)
		if c.DeliveryFee != nil {
			fmt.Fprintf(&b, " (fee %s)", c.DeliveryFee.StringFixed(2))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "- Summary: %s\n", c.Summary)

	if c.Subtotal != nil {
		b.WriteString("\n### Cart\n\n")
		if len(c.Items) == 0 {
			b.WriteString("(empty)\n")
		}
		for _, l := range c.Items {
			fmt.Fprintf(&b, "- %s x%d @ %s", l.Name, l.Quantity, l.UnitPrice.StringFixed(2))
			if l.Notes != "" {
				fmt.Fprintf(&b, " (%s)", l.Notes)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\nSubtotal: %s\n", c.Subtotal.StringFixed(2))
	}

	if len(c.Digest) > 0 {
		b.WriteString("\n### Recent messages\n\n")
		for _, e := range c.Digest {
			fmt.Fprintf(&b, "%s: %s\n", e.Role, e.Text)
		}
	}
	return b.String()
}

// EstimateTokens approximates the prompt cost of the context: Arabic script
// runs at about two characters per token, everything else about four, plus a
// fixed overhead per digest entry.
func (c Context) EstimateTokens() int {
	total := estimate(c.Summary)
	for _, e := range c.Digest {
		total += estimate(e.Text) + 4
	}
	return total
}

func estimate(text string) int {
	var arabic, other int
	for _, r := range text {
		if unicode.Is(unicode.Arabic, r) {
			arabic++
		} else {
			other++
		}
	}
	return (2*arabic + other) / 4
}
