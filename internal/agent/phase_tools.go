package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/soyeahso/sawt/internal/domain"
	"github.com/soyeahso/sawt/internal/validate"
)

// ToolsFor returns the tools bound to phase, operating on tb.
func ToolsFor(phase domain.Phase, tb *Toolbox) *ToolRegistry {
	reg := NewToolRegistry()
	var tools []Tool
	switch phase {
	case domain.PhaseGreeting:
		tools = []Tool{restaurantStatusTool(tb), setIntentTool(tb)}
	case domain.PhaseLocation:
		tools = []Tool{checkDistrictTool(tb), setOrderTypeTool(tb)}
	case domain.PhaseOrder:
		tools = []Tool{
			searchMenuTool(tb),
			itemDetailsTool(tb),
			addToOrderTool(tb),
			updateOrderItemTool(tb),
			removeFromOrderTool(tb),
			currentOrderTool(tb),
		}
	case domain.PhaseCheckout:
		tools = []Tool{
			currentOrderTool(tb),
			calculateTotalTool(tb),
			setCustomerTool(tb),
			confirmOrderTool(tb),
		}
	}
	for _, t := range tools {
		reg.Register(t)
	}
	return reg
}

func unavailable(service string) error {
	return fmt.Errorf("%s is not available right now", service)
}

// orderView is the cart as tools report it.
type orderView struct {
	Fulfillment   domain.Fulfillment `json:"fulfillment,omitempty"`
	District      string             `json:"district,omitempty"`
	ETA           string             `json:"eta,omitempty"`
	Items         []domain.OrderLine `json:"items"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	DeliveryFee   decimal.Decimal    `json:"deliveryFee"`
	Discount      decimal.Decimal    `json:"discount"`
	Total         decimal.Decimal    `json:"total"`
	PromoCode     string             `json:"promoCode,omitempty"`
	Currency      string             `json:"currency,omitempty"`
	CustomerName  string             `json:"customerName,omitempty"`
	CustomerPhone string             `json:"customerPhone,omitempty"`
}

func viewOrder(tb *Toolbox) orderView {
	s := tb.Session()
	totals := s.Order.ComputeTotals()
	v := orderView{
		Fulfillment:   s.Order.Fulfillment,
		District:      s.Order.District,
		ETA:           s.Order.ETA,
		Items:         append([]domain.OrderLine{}, s.Order.Items...),
		Subtotal:      totals.Subtotal,
		DeliveryFee:   totals.DeliveryFee,
		Discount:      totals.Discount,
		Total:         totals.Total,
		Currency:      tb.Services().Currency,
		CustomerName:  s.CustomerName,
		CustomerPhone: s.CustomerPhone,
	}
	if s.Order.Promo != nil {
		v.PromoCode = s.Order.Promo.Code
	}
	return v
}

// --- greeting ---

func restaurantStatusTool(tb *Toolbox) Tool {
	return &funcTool{
		name:        "restaurant_status",
		description: "Report whether the restaurant is open now and its opening hours.",
		schema:      `{"type":"object","properties":{}}`,
		fn: func(ctx context.Context, _ json.RawMessage) (any, error) {
			svc := tb.Services()
			st := svc.Hours.Status(svc.now())
			return map[string]any{
				"name":      svc.RestaurantName,
				"open":      st.Open,
				"localTime": st.LocalTime,
				"message":   st.Message,
				"hours":     fmt.Sprintf("%02d:00-%02d:00", svc.Hours.Open, svc.Hours.Close),
			}, nil
		},
	}
}

func setIntentTool(tb *Toolbox) Tool {
	return &funcTool{
		name:        "set_intent",
		description: "Record why the customer is contacting us: order, complaint or inquiry.",
		schema:      `{"type":"object","properties":{"intent":{"type":"string","enum":["order","complaint","inquiry"]}},"required":["intent"]}`,
		fn: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decodeInput[struct {
				Intent string `json:"intent"`
			}]("set_intent", raw)
			if err != nil {
				return nil, err
			}
			intent, err := domain.ParseIntent(strings.TrimSpace(in.Intent))
			if err != nil {
				return nil, err
			}
			if err := tb.Propose(domain.Mutation{Kind: domain.MutSetIntent, Intent: intent}); err != nil {
				return nil, err
			}
			return map[string]any{"intent": intent}, nil
		},
	}
}

// --- location ---

func checkDistrictTool(tb *Toolbox) Tool {
	return &funcTool{
		name:        "check_delivery_district",
		description: "Check whether a district is inside the delivery area and get its fee and delivery time.",
		schema:      `{"type":"object","properties":{"district":{"type":"string"}},"required":["district"]}`,
		fn: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decodeInput[struct {
				District string `json:"district"`
			}]("check_delivery_district", raw)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(in.District) == "" {
				return nil, domain.Validation("check_delivery_district", "district is required")
			}
			cov := tb.Services().Coverage
			if cov == nil {
				return nil, unavailable("district lookup")
			}
			return cov.Check(ctx, in.District)
		},
	}
}

func setOrderTypeTool(tb *Toolbox) Tool {
	return &funcTool{
		name:        "set_order_type",
		description: "Set the order to delivery (requires a covered district) or pickup from the branch.",
		schema:      `{"type":"object","properties":{"type":{"type":"string","enum":["delivery","pickup"]},"district":{"type":"string"}},"required":["type"]}`,
		fn: func(ctx context.Context, raw json.RawMessage) (any, error) {
			const op = "set_order_type"
			in, err := decodeInput[struct {
				Type     string `json:"type"`
				District string `json:"district"`
			}](op, raw)
			if err != nil {
				return nil, err
			}
			svc := tb.Services()

			switch domain.Fulfillment(strings.ToLower(strings.TrimSpace(in.Type))) {
			case domain.Pickup:
				if err := tb.Propose(domain.Mutation{Kind: domain.MutSetFulfillment, Fulfillment: domain.Pickup}); err != nil {
					return nil, err
				}
				return map[string]any{"type": domain.Pickup, "branch": svc.PickupBranch}, nil

			case domain.Delivery:
				if strings.TrimSpace(in.District) == "" {
					return nil, domain.Validation(op, "district is required for delivery")
				}
				if svc.Coverage == nil {
					return nil, unavailable("district lookup")
				}
				cov, err := svc.Coverage.Check(ctx, in.District)
				if err != nil {
					return nil, err
				}
				if !cov.Covered {
					msg := fmt.Sprintf("district %q is outside the delivery area", in.District)
					if len(cov.Suggestions) > 0 {
						msg += "; did you mean: " + strings.Join(cov.Suggestions, ", ")
					}
					return nil, domain.Validation(op, "%s", msg)
				}
				err = tb.Propose(domain.Mutation{
					Kind:        domain.MutSetFulfillment,
					Fulfillment: domain.Delivery,
					District:    cov.District,
					Fee:         cov.Fee,
					ETA:         cov.ETA,
				})
				if err != nil {
					return nil, err
				}
				return map[string]any{"type": domain.Delivery, "district": cov.District, "fee": cov.Fee, "eta": cov.ETA}, nil

			default:
				return nil, domain.Validation(op, "type must be delivery or pickup, got %q", in.Type)
			}
		},
	}
}

// --- order ---

func searchMenuTool(tb *Toolbox) Tool {
	return &funcTool{
		name:        "search_menu",
		description: "Search the menu by dish name or description, optionally within a category.",
		schema:      `{"type":"object","properties":{"query":{"type":"string"},"category":{"type":"string"}},"required":["query"]}`,
		fn: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decodeInput[struct {
				Query    string `json:"query"`
				Category string `json:"category"`
			}]("search_menu", raw)
			if err != nil {
				return nil, err
			}
			menu := tb.Services().Menu
			if menu == nil {
				return nil, unavailable("menu search")
			}
			hits, err := menu.Search(ctx, in.Query, strings.TrimSpace(in.Category))
			if err != nil {
				return nil, err
			}
			out := map[string]any{"results": hits}
			if len(hits) == 0 {
				out["message"] = "no matching items"
			}
			return out, nil
		},
	}
}

func itemDetailsTool(tb *Toolbox) Tool {
	return &funcTool{
		name:        "get_item_details",
		description: "Get the full record of a menu item: price, availability, description and calories.",
		schema:      `{"type":"object","properties":{"item_id":{"type":"string"}},"required":["item_id"]}`,
		fn: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decodeInput[struct {
				ItemID string `json:"item_id"`
			}]("get_item_details", raw)
			if err != nil {
				return nil, err
			}
			items := tb.Services().Items
			if items == nil {
				return nil, unavailable("menu")
			}
			return items.GetItem(ctx, in.ItemID)
		},
	}
}

func addToOrderTool(tb *Toolbox) Tool {
	return &funcTool{
		name:        "add_to_order",
		description: "Add a menu item to the cart. The price always comes from the menu.",
		schema:      `{"type":"object","properties":{"item_id":{"type":"string"},"quantity":{"type":"integer","minimum":1},"notes":{"type":"string"}},"required":["item_id"]}`,
		fn: func(ctx context.Context, raw json.RawMessage) (any, error) {
			const op = "add_to_order"
			in, err := decodeInput[struct {
				ItemID   string `json:"item_id"`
				Quantity *int   `json:"quantity"`
				Notes    string `json:"notes"`
			}](op, raw)
			if err != nil {
				return nil, err
			}
			qty := 1
			if in.Quantity != nil {
				qty = *in.Quantity
			}
			if err := validate.Quantity(qty); err != nil {
				return nil, err
			}
			items := tb.Services().Items
			if items == nil {
				return nil, unavailable("menu")
			}
			item, err := items.GetItem(ctx, in.ItemID)
			if err != nil {
				return nil, err
			}
			if !item.Available {
				return nil, domain.Validation(op, "%s is currently unavailable", item.Name)
			}
			notes := strings.TrimSpace(in.Notes)
			err = tb.Propose(domain.Mutation{
				Kind:      domain.MutAddLine,
				ItemID:    item.ID,
				Name:      item.Name,
				UnitPrice: item.Price,
				Quantity:  &qty,
				Notes:     &notes,
			})
			if err != nil {
				return nil, err
			}
			return viewOrder(tb), nil
		},
	}
}

func updateOrderItemTool(tb *Toolbox) Tool {
	return &funcTool{
		name:        "update_order_item",
		description: "Change the quantity or notes of a cart line. Quantity 0 removes the line.",
		schema:      `{"type":"object","properties":{"item_id":{"type":"string"},"quantity":{"type":"integer","minimum":0},"notes":{"type":"string"}},"required":["item_id"]}`,
		fn: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decodeInput[struct {
				ItemID   string  `json:"item_id"`
				Quantity *int    `json:"quantity"`
				Notes    *string `json:"notes"`
			}]("update_order_item", raw)
			if err != nil {
				return nil, err
			}
			err = tb.Propose(domain.Mutation{
				Kind:     domain.MutUpdateLine,
				ItemID:   in.ItemID,
				Quantity: in.Quantity,
				Notes:    in.Notes,
			})
			if err != nil {
				return nil, err
			}
			return viewOrder(tb), nil
		},
	}
}

func removeFromOrderTool(tb *Toolbox) Tool {
	return &funcTool{
		name:        "remove_from_order",
		description: "Remove every cart line for a menu item.",
		schema:      `{"type":"object","properties":{"item_id":{"type":"string"}},"required":["item_id"]}`,
		fn: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decodeInput[struct {
				ItemID string `json:"item_id"`
			}]("remove_from_order", raw)
			if err != nil {
				return nil, err
			}
			if err := tb.Propose(domain.Mutation{Kind: domain.MutRemoveLine, ItemID: in.ItemID}); err != nil {
				return nil, err
			}
			return viewOrder(tb), nil
		},
	}
}

func currentOrderTool(tb *Toolbox) Tool {
	return &funcTool{
		name:        "get_current_order",
		description: "Show the cart with fresh totals.",
		schema:      `{"type":"object","properties":{}}`,
		fn: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return viewOrder(tb), nil
		},
	}
}

// --- checkout ---

func calculateTotalTool(tb *Toolbox) Tool {
	return &funcTool{
		name:        "calculate_total",
		description: "Compute the order total, optionally applying a promo code.",
		schema:      `{"type":"object","properties":{"promo_code":{"type":"string"}}}`,
		fn: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decodeInput[struct {
				PromoCode string `json:"promo_code"`
			}]("calculate_total", raw)
			if err != nil {
				return nil, err
			}
			code := domain.NormalizePromoCode(in.PromoCode)
			if code == "" {
				return viewOrder(tb), nil
			}
			svc := tb.Services()
			if svc.Promos == nil {
				return nil, unavailable("promo codes")
			}
			promo, err := svc.Promos.GetPromo(ctx, code)
			if err != nil {
				return nil, err
			}
			if err := promo.Usable(svc.now()); err != nil {
				return nil, err
			}
			if err := tb.Propose(domain.Mutation{Kind: domain.MutApplyPromo, Promo: &promo}); err != nil {
				return nil, err
			}
			return viewOrder(tb), nil
		},
	}
}

func setCustomerTool(tb *Toolbox) Tool {
	return &funcTool{
		name:        "set_customer",
		description: "Record the customer's name and Saudi mobile number (05XXXXXXXX).",
		schema:      `{"type":"object","properties":{"name":{"type":"string"},"phone":{"type":"string"}}}`,
		fn: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decodeInput[struct {
				Name  string `json:"name"`
				Phone string `json:"phone"`
			}]("set_customer", raw)
			if err != nil {
				return nil, err
			}
			var name, phone string
			if strings.TrimSpace(in.Name) != "" {
				if name, err = validate.Name(in.Name); err != nil {
					return nil, err
				}
			}
			if strings.TrimSpace(in.Phone) != "" {
				if phone, err = validate.Phone(in.Phone); err != nil {
					return nil, err
				}
			}
			err = tb.Propose(domain.Mutation{Kind: domain.MutSetCustomer, CustomerName: name, CustomerPhone: phone})
			if err != nil {
				return nil, err
			}
			s := tb.Session()
			return map[string]any{"name": s.CustomerName, "phone": s.CustomerPhone}, nil
		},
	}
}

func confirmOrderTool(tb *Toolbox) Tool {
	return &funcTool{
		name:        "confirm_order",
		description: "Confirm the order once the customer has explicitly agreed to the total.",
		schema:      `{"type":"object","properties":{}}`,
		fn: func(ctx context.Context, _ json.RawMessage) (any, error) {
			const op = "confirm_order"
			s := tb.Session()
			if err := s.Order.Ready(); err != nil {
				return nil, err
			}
			if s.CustomerName == "" || s.CustomerPhone == "" {
				return nil, domain.Validation(op, "customer name and phone are required before confirming")
			}
			tb.RequestConfirm()
			v := viewOrder(tb)
			return map[string]any{"ready": true, "total": v.Total, "currency": v.Currency}, nil
		},
	}
}
