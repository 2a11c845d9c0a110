package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PromoKind selects how a promo value is interpreted.
type PromoKind string

const (
	PromoPercentage PromoKind = "percentage"
	PromoFixed      PromoKind = "fixed"
)

var hundred = decimal.NewFromInt(100)

// Promo is a discount rule snapshot attached to an order.
type Promo struct {
	Code        string          `json:"code" yaml:"code"`
	Kind        PromoKind       `json:"kind" yaml:"kind"`
	Value       decimal.Decimal `json:"value" yaml:"value"`
	MinOrder    decimal.Decimal `json:"minOrder" yaml:"minOrder"`
	MaxDiscount decimal.Decimal `json:"maxDiscount" yaml:"maxDiscount"` // zero means uncapped
	UsageLimit  int             `json:"usageLimit,omitempty" yaml:"usageLimit,omitempty"`
	UsageCount  int             `json:"usageCount,omitempty" yaml:"usageCount,omitempty"`
	ValidFrom   time.Time       `json:"validFrom,omitzero" yaml:"validFrom,omitempty"`
	ValidUntil  time.Time       `json:"validUntil,omitzero" yaml:"validUntil,omitempty"`
	Active      bool            `json:"active" yaml:"active"`
}

// NormalizePromoCode upper-cases and trims a user-typed code.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Usable reports why the promo cannot be redeemed at now, or nil.
func (p Promo) Usable(now time.Time) error {
	const op = "promo"
	switch {
	case !p.Active:
		return Validation(op, "code %s is not active", p.Code)
	case !p.ValidFrom.IsZero() && now.Before(p.ValidFrom):
		return Validation(op, "code %s is not valid yet", p.Code)
	case !p.ValidUntil.IsZero() && now.After(p.ValidUntil):
		return Validation(op, "code %s has expired", p.Code)
	case p.UsageLimit > 0 && p.UsageCount >= p.UsageLimit:
		return Validation(op, "code %s has reached its usage limit", p.Code)
	}
	return nil
}

// Discount computes the reduction for subtotal. It is zero below the
// minimum order and never exceeds the subtotal.
func (p Promo) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.LessThan(p.MinOrder) || !subtotal.IsPositive() {
		return decimal.Zero
	}
	var d decimal.Decimal
	switch p.Kind {
	case PromoPercentage:
		d = subtotal.Mul(p.Value).Div(hundred).Round(2)
	case PromoFixed:
		d = p.Value
	default:
		return decimal.Zero
	}
	if p.MaxDiscount.IsPositive() && d.GreaterThan(p.MaxDiscount) {
		d = p.MaxDiscount
	}
	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	return d
}
