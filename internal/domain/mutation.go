package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MutationKind names an order or session change requested by an agent.
type MutationKind string

const (
	MutAddLine        MutationKind = "add_line"
	MutUpdateLine     MutationKind = "update_line"
	MutRemoveLine     MutationKind = "remove_line"
	MutSetFulfillment MutationKind = "set_fulfillment"
	MutApplyPromo     MutationKind = "apply_promo"
	MutSetCustomer    MutationKind = "set_customer"
	MutSetIntent      MutationKind = "set_intent"
)

// Mutation is a request to change session state. Agents produce them; only
// the turn coordinator applies them.
type Mutation struct {
	Kind MutationKind `json:"kind"`

	ItemID    string          `json:"itemId,omitempty"`
	Name      string          `json:"name,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice,omitzero"`
	Quantity  *int            `json:"quantity,omitempty"`
	Notes     *string         `json:"notes,omitempty"`

	Fulfillment Fulfillment     `json:"fulfillment,omitempty"`
	District    string          `json:"district,omitempty"`
	Fee         decimal.Decimal `json:"fee,omitzero"`
	ETA         string          `json:"eta,omitempty"`

	Promo *Promo `json:"promo,omitempty"`

	CustomerName  string `json:"customerName,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`

	Intent Intent `json:"intent,omitempty"`
}

func (m Mutation) String() string {
	switch m.Kind {
	case MutAddLine, MutUpdateLine, MutRemoveLine:
		return fmt.Sprintf("%s(%s)", m.Kind, m.ItemID)
	case MutSetFulfillment:
		return fmt.Sprintf("%s(%s)", m.Kind, m.Fulfillment)
	case MutSetIntent:
		return fmt.Sprintf("%s(%s)", m.Kind, m.Intent)
	default:
		return string(m.Kind)
	}
}

// Apply performs the mutation on s.
func (m Mutation) Apply(s *Session) error {
	switch m.Kind {
	case MutAddLine:
		qty := 1
		if m.Quantity != nil {
			qty = *m.Quantity
		}
		notes := ""
		if m.Notes != nil {
			notes = *m.Notes
		}
		return s.Order.AddLine(m.ItemID, m.Name, m.UnitPrice, qty, notes)
	case MutUpdateLine:
		if m.Quantity == nil && m.Notes == nil {
			return Validation(string(m.Kind), "quantity or notes is required")
		}
		return s.Order.UpdateLine(m.ItemID, m.Quantity, m.Notes)
	case MutRemoveLine:
		return s.Order.RemoveLine(m.ItemID)
	case MutSetFulfillment:
		return s.Order.SetFulfillment(m.Fulfillment, m.District, m.Fee, m.ETA)
	case MutApplyPromo:
		if m.Promo == nil {
			return Validation(string(m.Kind), "promo is required")
		}
		return s.Order.ApplyPromo(*m.Promo)
	case MutSetCustomer:
		return s.SetCustomer(m.CustomerName, m.CustomerPhone)
	case MutSetIntent:
		return s.SetIntent(m.Intent)
	default:
		return Validation("apply mutation", "unknown mutation %q", m.Kind)
	}
}

// ApplyAll applies mutations in order, stopping at the first failure.
func ApplyAll(s *Session, muts []Mutation) error {
	for i, m := range muts {
		if err := m.Apply(s); err != nil {
			return fmt.Errorf("mutation %d %s: %w", i, m, err)
		}
	}
	return nil
}
