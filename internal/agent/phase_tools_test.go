package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/sawt/internal/domain"
)

func execTool(t *testing.T, tb *Toolbox, phase domain.Phase, name, input string) (map[string]any, error) {
	t.Helper()
	tool, ok := ToolsFor(phase, tb).Get(name)
	require.True(t, ok, "tool %s not bound to %s", name, phase)
	out, err := tool.Execute(context.Background(), input)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	return m, nil
}

func TestRestaurantStatus(t *testing.T) {
	tb := NewToolbox(sessionIn(domain.PhaseGreeting), testServices(newFakeCatalog()))
	out, err := execTool(t, tb, domain.PhaseGreeting, "restaurant_status", "")
	require.NoError(t, err)
	assert.Equal(t, "صوت", out["name"])
	assert.Equal(t, true, out["open"])
	assert.Equal(t, "09:00-03:00", out["hours"])
	assert.Equal(t, "open until 03:00", out["message"])
}

func TestSetIntent(t *testing.T) {
	tb := NewToolbox(sessionIn(domain.PhaseGreeting), testServices(newFakeCatalog()))

	_, err := execTool(t, tb, domain.PhaseGreeting, "set_intent", `{"intent": "gossip"}`)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = execTool(t, tb, domain.PhaseGreeting, "set_intent", `{"intent": "order"}`)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentOrder, tb.Session().Intent)

	_, err = execTool(t, tb, domain.PhaseGreeting, "set_intent", `{"intent": "complaint"}`)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Len(t, tb.Mutations(), 1, "rejected changes are not recorded")
}

func TestSetOrderTypeDelivery(t *testing.T) {
	tb := NewToolbox(sessionIn(domain.PhaseLocation), testServices(newFakeCatalog()))

	out, err := execTool(t, tb, domain.PhaseLocation, "set_order_type", `{"type": "delivery", "district": "حي النرجس"}`)
	require.NoError(t, err)
	assert.Equal(t, "النرجس", out["district"])
	assert.Equal(t, "30-45 دقيقة", out["eta"])

	o := tb.Session().Order
	assert.Equal(t, domain.Delivery, o.Fulfillment)
	assert.True(t, decimal.NewFromInt(15).Equal(o.DeliveryFee), "fee comes from coverage")
}

func TestSetOrderTypeUncovered(t *testing.T) {
	tb := NewToolbox(sessionIn(domain.PhaseLocation), testServices(newFakeCatalog()))

	_, err := execTool(t, tb, domain.PhaseLocation, "set_order_type", `{"type": "delivery", "district": "الملقا"}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "outside the delivery area")

	_, err = execTool(t, tb, domain.PhaseLocation, "set_order_type", `{"type": "delivery"}`)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = execTool(t, tb, domain.PhaseLocation, "set_order_type", `{"type": "drone"}`)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, tb.Mutations())
}

func TestSetOrderTypePickup(t *testing.T) {
	tb := NewToolbox(sessionIn(domain.PhaseLocation), testServices(newFakeCatalog()))
	out, err := execTool(t, tb, domain.PhaseLocation, "set_order_type", `{"type": "PICKUP"}`)
	require.NoError(t, err)
	assert.Equal(t, "الفرع الرئيسي", out["branch"])
	assert.Equal(t, domain.Pickup, tb.Session().Order.Fulfillment)
}

func TestCheckDistrictUnavailable(t *testing.T) {
	tb := NewToolbox(sessionIn(domain.PhaseLocation), Services{})
	_, err := execTool(t, tb, domain.PhaseLocation, "check_delivery_district", `{"district": "النرجس"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available")
	assert.NotErrorIs(t, err, domain.ErrExternal, "a missing collaborator is reported to the model")
}

func TestSearchMenu(t *testing.T) {
	f := newFakeCatalog()
	tb := NewToolbox(sessionIn(domain.PhaseOrder), testServices(f))
	out, err := execTool(t, tb, domain.PhaseOrder, "search_menu", `{"query": "برجر", "category": " burgers "}`)
	require.NoError(t, err)
	assert.Len(t, out["results"], 1)
	assert.Equal(t, []string{"برجر|burgers"}, f.searches)

	f.hits = nil
	out, err = execTool(t, tb, domain.PhaseOrder, "search_menu", `{"query": "سوشي"}`)
	require.NoError(t, err)
	assert.Equal(t, "no matching items", out["message"])
}

func TestOrderToolsEditCart(t *testing.T) {
	tb := NewToolbox(sessionIn(domain.PhaseOrder), testServices(newFakeCatalog()))

	_, err := execTool(t, tb, domain.PhaseOrder, "add_to_order", `{"item_id": "burger", "quantity": 2}`)
	require.NoError(t, err)
	_, err = execTool(t, tb, domain.PhaseOrder, "add_to_order", `{"item_id": "juice"}`)
	require.NoError(t, err)

	out, err := execTool(t, tb, domain.PhaseOrder, "update_order_item", `{"item_id": "burger", "quantity": 3}`)
	require.NoError(t, err)
	assert.Equal(t, "94", out["subtotal"])

	out, err = execTool(t, tb, domain.PhaseOrder, "remove_from_order", `{"item_id": "juice"}`)
	require.NoError(t, err)
	assert.Equal(t, "84", out["subtotal"])

	_, err = execTool(t, tb, domain.PhaseOrder, "update_order_item", `{"item_id": "juice", "quantity": 1}`)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = execTool(t, tb, domain.PhaseOrder, "add_to_order", `{"item_id": "burger", "quantity": 0}`)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = execTool(t, tb, domain.PhaseOrder, "add_to_order", `{"item_id": "pizza"}`)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = execTool(t, tb, domain.PhaseOrder, "add_to_order", `not json`)
	assert.ErrorIs(t, err, domain.ErrValidation)

	kinds := []domain.MutationKind{}
	for _, m := range tb.Mutations() {
		kinds = append(kinds, m.Kind)
	}
	assert.Equal(t, []domain.MutationKind{
		domain.MutAddLine, domain.MutAddLine, domain.MutUpdateLine, domain.MutRemoveLine,
	}, kinds)
}

func TestItemDetails(t *testing.T) {
	tb := NewToolbox(sessionIn(domain.PhaseOrder), testServices(newFakeCatalog()))
	out, err := execTool(t, tb, domain.PhaseOrder, "get_item_details", `{"item_id": "tea"}`)
	require.NoError(t, err)
	assert.Equal(t, "شاي", out["name"])
	assert.Equal(t, false, out["available"])
}

func checkoutToolbox(t *testing.T) *Toolbox {
	t.Helper()
	s := sessionIn(domain.PhaseCheckout)
	require.NoError(t, s.Order.SetFulfillment(domain.Delivery, "النرجس", decimal.NewFromInt(15), ""))
	require.NoError(t, s.Order.AddLine("burger", "برجر دجاج", decimal.NewFromInt(28), 2, ""))
	return NewToolbox(s, testServices(newFakeCatalog()))
}

func TestCalculateTotal(t *testing.T) {
	tb := checkoutToolbox(t)

	out, err := execTool(t, tb, domain.PhaseCheckout, "calculate_total", `{}`)
	require.NoError(t, err)
	assert.Equal(t, "56", out["subtotal"])
	assert.Equal(t, "71", out["total"])
	assert.Equal(t, "SAR", out["currency"])
	assert.Empty(t, tb.Mutations())

	out, err = execTool(t, tb, domain.PhaseCheckout, "calculate_total", `{"promo_code": " welcome10 "}`)
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", out["promoCode"])
	assert.Equal(t, "5.6", out["discount"])
	assert.Equal(t, "65.4", out["total"])

	_, err = execTool(t, tb, domain.PhaseCheckout, "calculate_total", `{"promo_code": "OLD"}`)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = execTool(t, tb, domain.PhaseCheckout, "calculate_total", `{"promo_code": "NOPE"}`)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, tb.Mutations(), 1)
}

func TestSetCustomerValidates(t *testing.T) {
	tb := checkoutToolbox(t)

	_, err := execTool(t, tb, domain.PhaseCheckout, "set_customer", `{"name": "سارة", "phone": "12345"}`)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = execTool(t, tb, domain.PhaseCheckout, "set_customer", `{"name": "x1"}`)
	assert.ErrorIs(t, err, domain.ErrValidation)

	out, err := execTool(t, tb, domain.PhaseCheckout, "set_customer", `{"phone": "٠٥٥١٢٣٤٥٦٧"}`)
	require.NoError(t, err)
	assert.Equal(t, "0551234567", out["phone"])
}

func TestConfirmOrderNeedsCustomer(t *testing.T) {
	tb := checkoutToolbox(t)

	_, err := execTool(t, tb, domain.PhaseCheckout, "confirm_order", `{}`)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.False(t, tb.ConfirmRequested())

	_, err = execTool(t, tb, domain.PhaseCheckout, "set_customer", `{"name": "Sara", "phone": "0551234567"}`)
	require.NoError(t, err)
	out, err := execTool(t, tb, domain.PhaseCheckout, "confirm_order", `{}`)
	require.NoError(t, err)
	assert.Equal(t, true, out["ready"])
	assert.True(t, tb.ConfirmRequested())
	assert.False(t, tb.Session().Order.Confirmed, "confirmation itself happens at routing")
}

func TestConfirmOrderEmptyCart(t *testing.T) {
	tb := NewToolbox(sessionIn(domain.PhaseCheckout), testServices(newFakeCatalog()))
	_, err := execTool(t, tb, domain.PhaseCheckout, "confirm_order", `{}`)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}
