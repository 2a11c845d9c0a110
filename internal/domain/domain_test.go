package domain

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intp(i int) *int { return &i }

func strp(s string) *string { return &s }

var testNow = time.Date(2026, 3, 1, 20, 15, 0, 0, time.UTC)

func deliveryOrder(t *testing.T) *Order {
	t.Helper()
	o := &Order{}
	require.NoError(t, o.SetFulfillment(Delivery, "D1", dec("15"), "30-45"))
	return o
}

// --- Order line tests ---

func TestAddLine_MergesSameItemAndNotes(t *testing.T) {
	o := &Order{}
	require.NoError(t, o.AddLine("x", "Burger", dec("28"), 2, ""))
	require.NoError(t, o.AddLine("x", "Burger", dec("28"), 1, ""))

	require.Len(t, o.Items, 1)
	assert.Equal(t, 3, o.Items[0].Quantity)
}

func TestAddLine_DifferentNotesKeepsSeparateLines(t *testing.T) {
	o := &Order{}
	require.NoError(t, o.AddLine("x", "Burger", dec("28"), 1, "no onion"))
	require.NoError(t, o.AddLine("x", "Burger", dec("28"), 1, ""))

	assert.Len(t, o.Items, 2)
}

func TestAddLine_RejectsBadQuantity(t *testing.T) {
	o := &Order{}
	for _, q := range []int{0, -1, MaxQuantity + 1} {
		err := o.AddLine("x", "Burger", dec("28"), q, "")
		assert.ErrorIs(t, err, ErrValidation, "quantity %d", q)
	}
	assert.Empty(t, o.Items)
}

func TestAddLine_MergeCannotExceedMax(t *testing.T) {
	o := &Order{}
	require.NoError(t, o.AddLine("x", "Burger", dec("28"), 98, ""))
	assert.ErrorIs(t, o.AddLine("x", "Burger", dec("28"), 2, ""), ErrValidation)
	assert.Equal(t, 98, o.Items[0].Quantity)
}

func TestUpdateLine_NotFound(t *testing.T) {
	o := &Order{}
	err := o.UpdateLine("missing", intp(2), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateLine_ZeroRemoves(t *testing.T) {
	o := &Order{}
	require.NoError(t, o.AddLine("x", "Burger", dec("28"), 2, ""))
	require.NoError(t, o.AddLine("y", "Fries", dec("9"), 1, ""))

	require.NoError(t, o.UpdateLine("x", intp(0), nil))
	require.Len(t, o.Items, 1)
	assert.Equal(t, "y", o.Items[0].ItemID)
}

func TestUpdateLine_NegativeIsValidationError(t *testing.T) {
	o := &Order{}
	require.NoError(t, o.AddLine("x", "Burger", dec("28"), 2, ""))
	assert.ErrorIs(t, o.UpdateLine("x", intp(-1), nil), ErrValidation)
	assert.Equal(t, 2, o.Items[0].Quantity)
}

func TestUpdateLine_Notes(t *testing.T) {
	o := &Order{}
	require.NoError(t, o.AddLine("x", "Burger", dec("28"), 2, ""))
	require.NoError(t, o.UpdateLine("x", nil, strp(" extra cheese ")))
	assert.Equal(t, "extra cheese", o.Items[0].Notes)
	assert.Equal(t, 2, o.Items[0].Quantity)
}

func TestRemoveLine(t *testing.T) {
	o := &Order{}
	require.NoError(t, o.AddLine("x", "Burger", dec("28"), 1, "a"))
	require.NoError(t, o.AddLine("x", "Burger", dec("28"), 1, "b"))
	require.NoError(t, o.RemoveLine("x"))
	assert.Empty(t, o.Items)
	assert.ErrorIs(t, o.RemoveLine("x"), ErrNotFound)
}

// --- Totals tests ---

func TestComputeTotals_RecomputedAfterEveryMutation(t *testing.T) {
	o := deliveryOrder(t)
	steps := []func() error{
		func() error { return o.AddLine("a", "A", dec("28"), 2, "") },
		func() error { return o.AddLine("b", "B", dec("10.50"), 1, "") },
		func() error { return o.UpdateLine("a", intp(5), nil) },
		func() error { return o.AddLine("a", "A", dec("28"), 1, "") },
		func() error { return o.RemoveLine("b") },
		func() error { return o.UpdateLine("a", intp(0), nil) },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		want := decimal.Zero
		for _, l := range o.Items {
			want = want.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		totals := o.ComputeTotals()
		assert.True(t, want.Equal(totals.Subtotal), "step %d: want %s got %s", i, want, totals.Subtotal)
		assert.True(t, want.Add(dec("15")).Equal(totals.Total), "step %d", i)
	}
}

func TestComputeTotals_PickupHasNoFee(t *testing.T) {
	o := deliveryOrder(t)
	require.NoError(t, o.AddLine("a", "A", dec("20"), 1, ""))
	require.NoError(t, o.SetFulfillment(Pickup, "ignored", dec("99"), ""))

	assert.Empty(t, o.District)
	assert.True(t, o.DeliveryFee.IsZero())
	totals := o.ComputeTotals()
	assert.True(t, dec("20").Equal(totals.Total))
}

func TestComputeTotals_WithPromo(t *testing.T) {
	o := deliveryOrder(t)
	require.NoError(t, o.AddLine("a", "A", dec("100"), 2, ""))
	require.NoError(t, o.ApplyPromo(Promo{Code: "WELCOME10", Kind: PromoPercentage, Value: dec("10"), MaxDiscount: dec("30"), Active: true}))

	totals := o.ComputeTotals()
	assert.True(t, dec("20").Equal(totals.Discount))
	assert.True(t, dec("195").Equal(totals.Total))

	// the discount follows the cart
	require.NoError(t, o.UpdateLine("a", intp(5), nil))
	totals = o.ComputeTotals()
	assert.True(t, dec("30").Equal(totals.Discount), "capped at max discount")
}

// --- Fulfillment tests ---

func TestSetFulfillment_DeliveryValidation(t *testing.T) {
	o := &Order{}
	assert.ErrorIs(t, o.SetFulfillment(Delivery, "  ", dec("10"), ""), ErrValidation)
	assert.ErrorIs(t, o.SetFulfillment(Delivery, "D1", dec("-1"), ""), ErrValidation)
	assert.ErrorIs(t, o.SetFulfillment("drone", "D1", dec("1"), ""), ErrValidation)
	assert.Equal(t, FulfillmentUnset, o.Fulfillment)
}

// --- Confirm tests ---

func TestConfirm_RequiresCompleteOrder(t *testing.T) {
	o := &Order{}
	assert.ErrorIs(t, o.Confirm(testNow), ErrInvalidState, "no items")

	require.NoError(t, o.AddLine("a", "A", dec("28"), 1, ""))
	assert.ErrorIs(t, o.Confirm(testNow), ErrInvalidState, "no fulfillment")

	o.Fulfillment = Delivery
	assert.ErrorIs(t, o.Confirm(testNow), ErrInvalidState, "no district")
	assert.False(t, o.Confirmed)
}

func TestConfirm_SecondCallFailsAndLeavesState(t *testing.T) {
	o := deliveryOrder(t)
	require.NoError(t, o.AddLine("a", "A", dec("28"), 2, ""))
	require.NoError(t, o.Confirm(testNow))

	id := o.ID
	assert.Regexp(t, regexp.MustCompile(`^ORD-20260301201500-[0-9A-F]{4}$`), id)

	err := o.Confirm(testNow.Add(time.Minute))
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, id, o.ID)
	assert.Equal(t, testNow, o.ConfirmedAt)
}

func TestConfirmedOrderIsImmutable(t *testing.T) {
	o := deliveryOrder(t)
	require.NoError(t, o.AddLine("a", "A", dec("28"), 2, ""))
	require.NoError(t, o.Confirm(testNow))

	assert.ErrorIs(t, o.AddLine("b", "B", dec("1"), 1, ""), ErrInvalidState)
	assert.ErrorIs(t, o.UpdateLine("a", intp(1), nil), ErrInvalidState)
	assert.ErrorIs(t, o.RemoveLine("a"), ErrInvalidState)
	assert.ErrorIs(t, o.SetFulfillment(Pickup, "", decimal.Zero, ""), ErrInvalidState)
	assert.Len(t, o.Items, 1)
}

func TestReprice(t *testing.T) {
	o := deliveryOrder(t)
	require.NoError(t, o.AddLine("a", "A", dec("28"), 2, ""))
	require.NoError(t, o.AddLine("a", "A", dec("28"), 1, "no onion"))
	require.NoError(t, o.AddLine("b", "B", dec("10"), 1, ""))
	require.NoError(t, o.AddLine("c", "C", dec("5"), 1, ""))

	err := o.Reprice([]PriceChange{
		{ItemID: "a", OldPrice: dec("28"), NewPrice: dec("30"), Available: true},
		{ItemID: "b", Available: false},
	})
	require.NoError(t, err)
	require.Len(t, o.Items, 3)
	assert.True(t, dec("30").Equal(o.Items[0].UnitPrice))
	assert.True(t, dec("30").Equal(o.Items[1].UnitPrice))
	assert.Equal(t, "c", o.Items[2].ItemID)
	assert.True(t, dec("95").Equal(o.ComputeTotals().Subtotal))
}

func TestReprice_ConfirmedOrder(t *testing.T) {
	o := deliveryOrder(t)
	require.NoError(t, o.AddLine("a", "A", dec("28"), 1, ""))
	require.NoError(t, o.Confirm(testNow))
	assert.ErrorIs(t, o.Reprice(nil), ErrInvalidState)
}

// --- Promo tests ---

func TestPromoDiscount(t *testing.T) {
	tests := []struct {
		name     string
		promo    Promo
		subtotal string
		want     string
	}{
		{"percentage", Promo{Kind: PromoPercentage, Value: dec("10")}, "80", "8"},
		{"percentage capped", Promo{Kind: PromoPercentage, Value: dec("20"), MaxDiscount: dec("50")}, "400", "50"},
		{"below minimum", Promo{Kind: PromoPercentage, Value: dec("20"), MinOrder: dec("100")}, "99", "0"},
		{"fixed", Promo{Kind: PromoFixed, Value: dec("15"), MinOrder: dec("75")}, "75", "15"},
		{"never above subtotal", Promo{Kind: PromoFixed, Value: dec("15")}, "10", "10"},
		{"unknown kind", Promo{Kind: "bogus", Value: dec("15")}, "100", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.promo.Discount(dec(tt.subtotal))
			assert.True(t, dec(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestPromoUsable(t *testing.T) {
	p := Promo{Code: "X", Active: true, UsageLimit: 2, UsageCount: 1}
	assert.NoError(t, p.Usable(testNow))

	p.UsageCount = 2
	assert.ErrorIs(t, p.Usable(testNow), ErrValidation)

	p = Promo{Code: "X", Active: true, ValidUntil: testNow.Add(-time.Hour)}
	assert.ErrorIs(t, p.Usable(testNow), ErrValidation)

	p = Promo{Code: "X", Active: false}
	assert.ErrorIs(t, p.Usable(testNow), ErrValidation)
}

func TestApplyPromo_BelowMinimum(t *testing.T) {
	o := &Order{}
	require.NoError(t, o.AddLine("a", "A", dec("50"), 1, ""))
	err := o.ApplyPromo(Promo{Code: "FIRST20", Kind: PromoPercentage, Value: dec("20"), MinOrder: dec("100")})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Nil(t, o.Promo)
}

// --- Session tests ---

func TestDigestIsBounded(t *testing.T) {
	s := NewSession("s1", testNow)
	for i := 0; i < 7; i++ {
		s.Record("user", string(rune('a'+i)))
	}
	require.Len(t, s.Digest, DigestSize)
	assert.Equal(t, "d", s.Digest[0].Text)
	assert.Equal(t, "g", s.Digest[3].Text)
}

func TestSessionClone_IsDeep(t *testing.T) {
	s := NewSession("s1", testNow)
	require.NoError(t, s.Order.AddLine("a", "A", dec("10"), 1, ""))
	s.Record("user", "hi")

	c := s.Clone()
	require.NoError(t, c.Order.AddLine("a", "A", dec("10"), 1, ""))
	require.NoError(t, c.Order.AddLine("b", "B", dec("10"), 1, ""))
	c.Record("assistant", "hello")

	assert.Len(t, s.Order.Items, 1)
	assert.Equal(t, 1, s.Order.Items[0].Quantity)
	assert.Len(t, s.Digest, 1)
}

func TestSetIntent_Immutable(t *testing.T) {
	s := NewSession("s1", testNow)
	require.NoError(t, s.SetIntent(IntentOrder))
	require.NoError(t, s.SetIntent(IntentOrder))
	assert.ErrorIs(t, s.SetIntent(IntentComplaint), ErrInvalidState)
	assert.Equal(t, IntentOrder, s.Intent)
}

func TestSetCustomer_NeverClears(t *testing.T) {
	s := NewSession("s1", testNow)
	require.NoError(t, s.SetCustomer("Sara", "0551234567"))
	require.NoError(t, s.SetCustomer("", "0559999999"))
	assert.Equal(t, "Sara", s.CustomerName)
	assert.Equal(t, "0559999999", s.CustomerPhone)
	assert.ErrorIs(t, s.SetCustomer(" ", ""), ErrValidation)
}

func TestBacktrackFlags(t *testing.T) {
	flags := BacktrackFromOrder.Flags()
	assert.True(t, flags["came_from_order"])
	assert.False(t, flags["came_from_checkout"])
	assert.Equal(t, map[string]bool{"came_from_order": false, "came_from_checkout": false}, BacktrackNone.Flags())
}

// --- Mutation tests ---

func TestApplyAll_StopsAtFirstFailure(t *testing.T) {
	s := NewSession("s1", testNow)
	err := ApplyAll(s, []Mutation{
		{Kind: MutAddLine, ItemID: "a", Name: "A", UnitPrice: dec("5"), Quantity: intp(1)},
		{Kind: MutUpdateLine, ItemID: "zzz", Quantity: intp(2)},
		{Kind: MutAddLine, ItemID: "b", Name: "B", UnitPrice: dec("5"), Quantity: intp(1)},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, s.Order.Items, 1)
}

func TestMutation_Unknown(t *testing.T) {
	s := NewSession("s1", testNow)
	assert.ErrorIs(t, Mutation{Kind: "teleport"}.Apply(s), ErrValidation)
}

// --- Error classification tests ---

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("op", "bad")))
	assert.Equal(t, KindExternal, KindOf(External("menu", errors.New("down"))))
	assert.Equal(t, KindPriceMismatch, KindOf(&PriceMismatchError{}))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))

	assert.True(t, Recoverable(NotFound("op", "x")))
	assert.False(t, Recoverable(Routing("op", nil, "bad signal")))
	assert.ErrorIs(t, External("llm", errors.New("x")), ErrExternal)
	assert.NotErrorIs(t, Validation("op", "x"), ErrNotFound)
}
