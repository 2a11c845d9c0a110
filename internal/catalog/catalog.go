// Package catalog defines the restaurant data the ordering core consults:
// menu items, delivery districts, promo codes and opening hours, plus the
// collaborator interfaces that serve them.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/soyeahso/sawt/internal/domain"
)

// MenuItem is the authoritative record of a dish.
type MenuItem struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	NameEN      string          `json:"nameEn,omitempty" yaml:"nameEn"`
	Description string          `json:"description,omitempty" yaml:"description"`
	Category    string          `json:"category,omitempty" yaml:"category"`
	Price       decimal.Decimal `json:"price" yaml:"price"`
	Available   bool            `json:"available" yaml:"available"`
	Calories    int             `json:"calories,omitempty" yaml:"calories"`
	Tags        []string        `json:"tags,omitempty" yaml:"tags"`
}

// SearchText is the text indexed for semantic and keyword search.
func (m MenuItem) SearchText() string {
	s := m.Name
	if m.NameEN != "" {
		s += " " + m.NameEN
	}
	if m.Category != "" {
		s += " " + m.Category
	}
	if m.Description != "" {
		s += " " + m.Description
	}
	return s
}

// SearchHit is one ranked menu search result.
type SearchHit struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	Category  string          `json:"category,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
	Score     float64         `json:"score"`
}

// Coverage is the answer of a district lookup.
type Coverage struct {
	Covered     bool            `json:"covered"`
	District    string          `json:"district,omitempty"`
	Fee         decimal.Decimal `json:"fee"`
	ETA         string          `json:"eta,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

// Searcher performs menu semantic search. An empty result is not an error.
type Searcher interface {
	Search(ctx context.Context, query, category string) ([]SearchHit, error)
}

// CoverageChecker answers whether a district is served for delivery.
type CoverageChecker interface {
	Check(ctx context.Context, district string) (Coverage, error)
}

// ItemSource is the authoritative read path for price and availability.
type ItemSource interface {
	GetItem(ctx context.Context, id string) (MenuItem, error)
}

// OrderSink persists a confirmed order. A conversation has at most one stored
// order: calling it again for the same conversation rewrites that order and
// sets the session's order number and confirmation time to the stored ones.
type OrderSink interface {
	PersistOrder(ctx context.Context, s *domain.Session) error
}

// PromoSource looks up promo codes.
type PromoSource interface {
	GetPromo(ctx context.Context, code string) (domain.Promo, error)
}
