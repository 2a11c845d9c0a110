package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxQuantity caps a single order line.
const MaxQuantity = 99

// Fulfillment is how the order reaches the customer.
type Fulfillment string

const (
	FulfillmentUnset Fulfillment = ""
	Delivery         Fulfillment = "delivery"
	Pickup           Fulfillment = "pickup"
)

// OrderLine is one menu item in the cart with a price snapshot.
type OrderLine struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Notes     string          `json:"notes,omitempty"`
}

// LineTotal is unit price times quantity.
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals are derived from the order on demand and never stored.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// Order is the cart owned by exactly one session.
type Order struct {
	ID          string          `json:"id,omitempty"`
	Fulfillment Fulfillment     `json:"fulfillment,omitempty"`
	District    string          `json:"district,omitempty"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	ETA         string          `json:"eta,omitempty"`
	Items       []OrderLine     `json:"items"`
	Promo       *Promo          `json:"promo,omitempty"`
	Confirmed   bool            `json:"confirmed"`
	ConfirmedAt time.Time       `json:"confirmedAt,omitzero"`
}

func (o *Order) checkMutable(op string) error {
	if o.Confirmed {
		return InvalidState(op, "order %s is confirmed", o.ID)
	}
	return nil
}

// AddLine appends a line, or merges into an existing line with the same
// item and notes.
func (o *Order) AddLine(itemID, name string, unitPrice decimal.Decimal, quantity int, notes string) error {
	const op = "add line"
	if err := o.checkMutable(op); err != nil {
		return err
	}
	if strings.TrimSpace(itemID) == "" {
		return Validation(op, "item id is required")
	}
	if quantity < 1 {
		return Validation(op, "quantity must be at least 1, got %d", quantity)
	}
	if unitPrice.IsNegative() {
		return Validation(op, "unit price must not be negative")
	}
	notes = strings.TrimSpace(notes)

	for i := range o.Items {
		line := &o.Items[i]
		if line.ItemID != itemID || line.Notes != notes {
			continue
		}
		if line.Quantity+quantity > MaxQuantity {
			return Validation(op, "quantity for %s would exceed %d", itemID, MaxQuantity)
		}
		line.Quantity += quantity
		return nil
	}

	if quantity > MaxQuantity {
		return Validation(op, "quantity must be at most %d, got %d", MaxQuantity, quantity)
	}
	o.Items = append(o.Items, OrderLine{
		ItemID:    itemID,
		Name:      name,
		UnitPrice: unitPrice,
		Quantity:  quantity,
		Notes:     notes,
	})
	return nil
}

// UpdateLine changes quantity and/or notes of the first line for itemID.
// A zero quantity removes the line.
func (o *Order) UpdateLine(itemID string, quantity *int, notes *string) error {
	const op = "update line"
	if err := o.checkMutable(op); err != nil {
		return err
	}
	idx := slices.IndexFunc(o.Items, func(l OrderLine) bool { return l.ItemID == itemID })
	if idx < 0 {
		return NotFound(op, "no order line for item %q", itemID)
	}
	if quantity != nil {
		switch q := *quantity; {
		case q < 0:
			return Validation(op, "quantity must not be negative, got %d", q)
		case q > MaxQuantity:
			return Validation(op, "quantity must be at most %d, got %d", MaxQuantity, q)
		case q == 0:
			o.Items = slices.Delete(o.Items, idx, idx+1)
			return nil
		default:
			o.Items[idx].Quantity = q
		}
	}
	if notes != nil {
		o.Items[idx].Notes = strings.TrimSpace(*notes)
	}
	return nil
}

// RemoveLine drops every line for itemID.
func (o *Order) RemoveLine(itemID string) error {
	const op = "remove line"
	if err := o.checkMutable(op); err != nil {
		return err
	}
	n := len(o.Items)
	o.Items = slices.DeleteFunc(o.Items, func(l OrderLine) bool { return l.ItemID == itemID })
	if len(o.Items) == n {
		return NotFound(op, "no order line for item %q", itemID)
	}
	return nil
}

// SetFulfillment records delivery or pickup. Delivery needs a district that
// already passed coverage validation and a non-negative fee.
func (o *Order) SetFulfillment(kind Fulfillment, district string, fee decimal.Decimal, eta string) error {
	const op = "set fulfillment"
	if err := o.checkMutable(op); err != nil {
		return err
	}
	switch kind {
	case Pickup:
		o.Fulfillment = Pickup
		o.District = ""
		o.DeliveryFee = decimal.Zero
		o.ETA = eta
	case Delivery:
		district = strings.TrimSpace(district)
		if district == "" {
			return Validation(op, "district is required for delivery")
		}
		if fee.IsNegative() {
			return Validation(op, "delivery fee must not be negative")
		}
		o.Fulfillment = Delivery
		o.District = district
		o.DeliveryFee = fee
		o.ETA = eta
	default:
		return Validation(op, "unknown fulfillment type %q", kind)
	}
	return nil
}

// ApplyPromo attaches a promo rule snapshot; the discount itself is derived
// by ComputeTotals.
func (o *Order) ApplyPromo(p Promo) error {
	const op = "apply promo"
	if err := o.checkMutable(op); err != nil {
		return err
	}
	if len(o.Items) == 0 {
		return Validation(op, "cart is empty")
	}
	if sub := o.subtotal(); sub.LessThan(p.MinOrder) {
		return Validation(op, "code %s needs a subtotal of at least %s", p.Code, p.MinOrder.StringFixed(2))
	}
	o.Promo = &p
	return nil
}

func (o *Order) subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range o.Items {
		sum = sum.Add(l.LineTotal())
	}
	return sum
}

// ComputeTotals recomputes every figure from the current lines and fee.
func (o *Order) ComputeTotals() Totals {
	sub := o.subtotal()
	fee := o.DeliveryFee
	if o.Fulfillment != Delivery {
		fee = decimal.Zero
	}
	discount := decimal.Zero
	if o.Promo != nil {
		discount = o.Promo.Discount(sub)
	}
	return Totals{
		Subtotal:    sub,
		DeliveryFee: fee,
		Discount:    discount,
		Total:       sub.Add(fee).Sub(discount),
	}
}

// Ready reports why the order cannot be confirmed yet, or nil.
func (o *Order) Ready() error {
	const op = "confirm"
	switch {
	case o.Confirmed:
		return InvalidState(op, "order %s is already confirmed", o.ID)
	case len(o.Items) == 0:
		return InvalidState(op, "order has no items")
	case o.Fulfillment == FulfillmentUnset:
		return InvalidState(op, "fulfillment type is not set")
	case o.Fulfillment == Delivery && o.District == "":
		return InvalidState(op, "delivery district is not set")
	}
	return nil
}

// Confirm finalizes the order and assigns its order number. It cannot be undone.
func (o *Order) Confirm(now time.Time) error {
	if err := o.Ready(); err != nil {
		return err
	}
	o.Confirmed = true
	o.ConfirmedAt = now
	o.ID = NewOrderNumber(now)
	return nil
}

// Reprice replaces line prices with the authoritative values in changes and
// drops the lines of items that are no longer available.
func (o *Order) Reprice(changes []PriceChange) error {
	if err := o.checkMutable("reprice"); err != nil {
		return err
	}
	byItem := make(map[string]PriceChange, len(changes))
	for _, c := range changes {
		byItem[c.ItemID] = c
	}
	kept := make([]OrderLine, 0, len(o.Items))
	for _, l := range o.Items {
		c, ok := byItem[l.ItemID]
		switch {
		case !ok:
		case !c.Available:
			continue
		default:
			l.UnitPrice = c.NewPrice
		}
		kept = append(kept, l)
	}
	o.Items = kept
	return nil
}

// Clone returns a deep copy.
func (o Order) Clone() Order {
	c := o
	c.Items = slices.Clone(o.Items)
	if o.Promo != nil {
		p := *o.Promo
		c.Promo = &p
	}
	return c
}

// Summary renders a one-line description of the cart.
func (o *Order) Summary() string {
	if len(o.Items) == 0 {
		return ""
	}
	parts := make([]string, 0, len(o.Items))
	for _, l := range o.Items {
		parts = append(parts, fmt.Sprintf("%s x%d", l.Name, l.Quantity))
	}
	return strings.Join(parts, ", ")
}

// NewOrderNumber formats ORD-YYYYMMDDHHMMSS-XXXX.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102150405"), suffix)
}
