package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"

	"github.com/soyeahso/sawt/internal/catalog"
	"github.com/soyeahso/sawt/internal/domain"
	"github.com/soyeahso/sawt/internal/store"
)

// jsonResult renders v as indented JSON text.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}
	msg, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: message"), nil
	}

	res, err := s.deps.Turns.HandleTurn(ctx, id, msg)
	if res == nil {
		return mcp.NewToolResultError(fmt.Sprintf("turn failed: %v", err)), nil
	}
	if err != nil && !domain.Recoverable(err) {
		s.log.Warn().Err(err).Str("sessionId", id).Msg("turn failed")
		return mcp.NewToolResultError(fmt.Sprintf("turn failed: %v", err)), nil
	}
	return jsonResult(res), nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}
	sess, err := s.deps.Turns.Session(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading session: %v", err)), nil
	}
	return jsonResult(sess), nil
}

func (s *Server) handleResetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}
	if err := s.deps.Turns.Reset(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resetting session: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("session %s reset", id)), nil
}

func (s *Server) handleSearchMenu(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	hits, err := s.deps.Menu.Search(ctx, query, request.GetString("category", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("No matching menu items."), nil
	}
	return jsonResult(hits), nil
}

func (s *Server) handleCheckDistrict(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	district, err := request.RequireString("district")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: district"), nil
	}
	cov, err := s.deps.Coverage.Check(ctx, district)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("coverage lookup failed: %v", err)), nil
	}
	return jsonResult(cov), nil
}

// categorySummary is one entry of get_menu_categories.
type categorySummary struct {
	Name      string `json:"name"`
	Items     int    `json:"items"`
	Available int    `json:"available"`
}

func (s *Server) handleMenuCategories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.deps.Catalog.ListItems(ctx, "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing menu: %v", err)), nil
	}
	var out []categorySummary
	index := make(map[string]int)
	for _, it := range items {
		i, ok := index[it.Category]
		if !ok {
			i = len(out)
			index[it.Category] = i
			out = append(out, categorySummary{Name: it.Category})
		}
		out[i].Items++
		if it.Available {
			out[i].Available++
		}
	}
	if len(out) == 0 {
		return mcp.NewToolResultText("The menu is empty."), nil
	}
	return jsonResult(out), nil
}

func (s *Server) handleItemsByCategory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := request.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: category"), nil
	}
	items, err := s.deps.Catalog.ListItems(ctx, category)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing menu: %v", err)), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No items in category %q.", category)), nil
	}
	return jsonResult(items), nil
}

// coveredArea is one entry of get_covered_areas.
type coveredArea struct {
	Name   string          `json:"name"`
	NameEN string          `json:"nameEn,omitempty"`
	City   string          `json:"city,omitempty"`
	Fee    decimal.Decimal `json:"fee"`
	ETA    string          `json:"eta,omitempty"`
}

func (s *Server) handleCoveredAreas(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	districts, err := s.deps.Catalog.Districts(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing districts: %v", err)), nil
	}
	var out []coveredArea
	for _, d := range districts {
		if !d.Active {
			continue
		}
		out = append(out, coveredArea{Name: d.Name, NameEN: d.NameEN, City: d.City, Fee: d.Fee, ETA: d.ETA})
	}
	if len(out) == 0 {
		return mcp.NewToolResultText("No districts are covered for delivery."), nil
	}
	return jsonResult(out), nil
}

// promoDetails is a promo code with its current usability.
type promoDetails struct {
	domain.Promo
	Usable bool   `json:"usable"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handlePromoDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: code"), nil
	}
	p, err := s.deps.Catalog.GetPromo(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("promo code %q does not exist", domain.NormalizePromoCode(code))), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("promo lookup failed: %v", err)), nil
	}
	out := promoDetails{Promo: p, Usable: true}
	if err := p.Usable(s.deps.Now()); err != nil {
		out.Usable = false
		out.Reason = err.Error()
	}
	return jsonResult(out), nil
}

// orderStatus is a confirmed order as get_order_status reports it.
type orderStatus struct {
	Status string `json:"status"`
	*store.OrderRecord
}

func (s *Server) handleOrderStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("order_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: order_id"), nil
	}
	rec, err := s.deps.Orders.GetOrder(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("order %s not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("order lookup failed: %v", err)), nil
	}
	return jsonResult(orderStatus{Status: "confirmed", OrderRecord: rec}), nil
}

func (s *Server) handleRestaurantStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := s.deps.Now()
	return jsonResult(restaurantStatus{
		Status:    s.deps.Hours.Status(now),
		CheckedAt: now.UTC().Format(time.RFC3339),
	}), nil
}

// restaurantStatus is the answer of get_restaurant_status.
type restaurantStatus struct {
	catalog.Status
	CheckedAt string `json:"checkedAt"`
}
