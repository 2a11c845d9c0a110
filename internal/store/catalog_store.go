package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/soyeahso/sawt/internal/catalog"
	"github.com/soyeahso/sawt/internal/domain"
)

// CatalogStore is the authoritative relational record for the menu, delivery
// districts, promo codes and confirmed orders.
type CatalogStore struct {
	db *DB
}

// NewCatalogStore creates a catalog store using the given database.
func NewCatalogStore(db *DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// --- Menu ---

// UpsertItem inserts or replaces a menu item.
func (c *CatalogStore) UpsertItem(ctx context.Context, m catalog.MenuItem) error {
	if strings.TrimSpace(m.ID) == "" {
		return domain.Validation("upsert item", "item id is required")
	}
	_, err := c.db.sql.ExecContext(ctx,
		`INSERT INTO menu_items (id, name, name_en, description, category, price, available, calories, tags, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   name_en = excluded.name_en,
		   description = excluded.description,
		   category = excluded.category,
		   price = excluded.price,
		   available = excluded.available,
		   calories = excluded.calories,
		   tags = excluded.tags,
		   updated_at = excluded.updated_at`,
		m.ID, m.Name, m.NameEN, m.Description, m.Category, m.Price.String(), m.Available,
		m.Calories, strings.Join(m.Tags, ","), time.Now().UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("upserting item %s: %w", m.ID, err)
	}
	return nil
}

const menuColumns = `id, name, name_en, description, category, price, available, calories, tags`

// GetItem returns the authoritative price and availability of an item.
func (c *CatalogStore) GetItem(ctx context.Context, id string) (catalog.MenuItem, error) {
	row := c.db.sql.QueryRowContext(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = ?`, id)
	m, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.MenuItem{}, domain.NotFound("get item", "menu item %q not found", id)
	}
	return m, err
}

// ListItems returns the menu, optionally filtered by category.
func (c *CatalogStore) ListItems(ctx context.Context, category string) ([]catalog.MenuItem, error) {
	q := `SELECT ` + menuColumns + ` FROM menu_items`
	var args []any
	if category != "" {
		q += ` WHERE category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY category, name`

	rows, err := c.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing menu: %w", err)
	}
	defer rows.Close()

	var out []catalog.MenuItem
	for rows.Next() {
		m, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SearchText runs a keyword search over the menu with FTS5. Any query token
// may match; results are ordered by bm25 and scored by rank position in (0, 1].
func (c *CatalogStore) SearchText(ctx context.Context, query, category string, limit int) ([]catalog.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	q := `SELECT m.id, m.name, m.category, m.price, m.available
	      FROM menu_fts
	      JOIN menu_items m ON m.rowid = menu_fts.rowid
	      WHERE menu_fts MATCH ?`
	args := []any{match}
	if category != "" {
		q += ` AND m.category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY bm25(menu_fts) LIMIT ?`
	args = append(args, limit)

	rows, err := c.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("searching menu: %w", err)
	}
	defer rows.Close()

	var hits []catalog.SearchHit
	for rows.Next() {
		var h catalog.SearchHit
		var price string
		if err := rows.Scan(&h.ItemID, &h.Name, &h.Category, &price, &h.Available); err != nil {
			return nil, err
		}
		if err := parseDecimals("item "+h.ItemID, decimalField{"price", price, &h.Price}); err != nil {
			return nil, err
		}
		h.Score = 1 / (1 + 0.1*float64(len(hits)))
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ftsQuery turns free text into an FTS5 query that ORs quoted tokens.
func ftsQuery(text string) string {
	var terms []string
	for _, f := range strings.Fields(text) {
		f = strings.Trim(f, `"'.,!?؟،*()`)
		if f == "" {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " OR ")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (catalog.MenuItem, error) {
	var m catalog.MenuItem
	var price, tags string
	if err := s.Scan(&m.ID, &m.Name, &m.NameEN, &m.Description, &m.Category, &price, &m.Available, &m.Calories, &tags); err != nil {
		return m, err
	}
	if err := parseDecimals("item "+m.ID, decimalField{"price", price, &m.Price}); err != nil {
		return m, err
	}
	if tags != "" {
		m.Tags = strings.Split(tags, ",")
	}
	return m, nil
}

// --- Districts ---

// UpsertDistrict inserts or replaces a covered area.
func (c *CatalogStore) UpsertDistrict(ctx context.Context, d catalog.District) error {
	if strings.TrimSpace(d.Name) == "" {
		return domain.Validation("upsert district", "district name is required")
	}
	if d.Fee.IsNegative() {
		return domain.Validation("upsert district", "fee must not be negative")
	}
	aliases, err := json.Marshal(d.Aliases)
	if err != nil {
		return err
	}
	_, err = c.db.sql.ExecContext(ctx,
		`INSERT INTO covered_areas (name, name_en, city, aliases, fee, eta, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   name_en = excluded.name_en,
		   city = excluded.city,
		   aliases = excluded.aliases,
		   fee = excluded.fee,
		   eta = excluded.eta,
		   active = excluded.active`,
		d.Name, d.NameEN, d.City, string(aliases), d.Fee.String(), d.ETA, d.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting district %s: %w", d.Name, err)
	}
	return nil
}

// Districts returns every covered area, active or not.
func (c *CatalogStore) Districts(ctx context.Context) ([]catalog.District, error) {
	rows, err := c.db.sql.QueryContext(ctx,
		`SELECT name, name_en, city, aliases, fee, eta, active FROM covered_areas ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing districts: %w", err)
	}
	defer rows.Close()

	var out []catalog.District
	for rows.Next() {
		var d catalog.District
		var aliases, fee string
		if err := rows.Scan(&d.Name, &d.NameEN, &d.City, &aliases, &fee, &d.ETA, &d.Active); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(aliases), &d.Aliases); err != nil {
			return nil, fmt.Errorf("district %s has invalid aliases: %w", d.Name, err)
		}
		if err := parseDecimals("district "+d.Name, decimalField{"fee", fee, &d.Fee}); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Check implements catalog.CoverageChecker.
func (c *CatalogStore) Check(ctx context.Context, district string) (catalog.Coverage, error) {
	ds, err := c.Districts(ctx)
	if err != nil {
		return catalog.Coverage{}, err
	}
	return catalog.MatchDistrict(ds, district), nil
}

// --- Promo codes ---

// UpsertPromo inserts or replaces a promo code. Usage counts are preserved.
func (c *CatalogStore) UpsertPromo(ctx context.Context, p domain.Promo) error {
	code := domain.NormalizePromoCode(p.Code)
	if code == "" {
		return domain.Validation("upsert promo", "promo code is required")
	}
	_, err := c.db.sql.ExecContext(ctx,
		`INSERT INTO promo_codes (code, kind, value, min_order, max_discount, usage_limit, usage_count, valid_from, valid_until, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET
		   kind = excluded.kind,
		   value = excluded.value,
		   min_order = excluded.min_order,
		   max_discount = excluded.max_discount,
		   usage_limit = excluded.usage_limit,
		   valid_from = excluded.valid_from,
		   valid_until = excluded.valid_until,
		   active = excluded.active`,
		code, string(p.Kind), p.Value.String(), p.MinOrder.String(), p.MaxDiscount.String(),
		p.UsageLimit, p.UsageCount, formatTime(p.ValidFrom), formatTime(p.ValidUntil), p.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting promo %s: %w", code, err)
	}
	return nil
}

// GetPromo implements catalog.PromoSource.
func (c *CatalogStore) GetPromo(ctx context.Context, code string) (domain.Promo, error) {
	code = domain.NormalizePromoCode(code)
	var p domain.Promo
	var kind, value, minOrder, maxDiscount, validFrom, validUntil string
	err := c.db.sql.QueryRowContext(ctx,
		`SELECT code, kind, value, min_order, max_discount, usage_limit, usage_count, valid_from, valid_until, active
		 FROM promo_codes WHERE code = ?`, code,
	).Scan(&p.Code, &kind, &value, &minOrder, &maxDiscount, &p.UsageLimit, &p.UsageCount, &validFrom, &validUntil, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return p, domain.NotFound("get promo", "promo code %q not found", code)
	}
	if err != nil {
		return p, fmt.Errorf("loading promo %s: %w", code, err)
	}
	p.Kind = domain.PromoKind(kind)
	if err := parseDecimals("promo "+code,
		decimalField{"value", value, &p.Value},
		decimalField{"min order", minOrder, &p.MinOrder},
		decimalField{"max discount", maxDiscount, &p.MaxDiscount},
	); err != nil {
		return p, err
	}
	p.ValidFrom = parseTime(validFrom)
	p.ValidUntil = parseTime(validUntil)
	return p, nil
}

// decimalField is a stored decimal column and where it decodes to.
type decimalField struct {
	name string
	raw  string
	dst  *decimal.Decimal
}

func parseDecimals(owner string, fields ...decimalField) error {
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("%s has invalid %s %q: %w", owner, f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateTime)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.DateTime, s)
	return t
}

// --- Orders ---

// OrderRecord is a persisted confirmed order.
type OrderRecord struct {
	ID            string             `json:"id"`
	SessionID     string             `json:"sessionId"`
	Fulfillment   domain.Fulfillment `json:"fulfillment"`
	District      string             `json:"district,omitempty"`
	CustomerName  string             `json:"customerName,omitempty"`
	CustomerPhone string             `json:"customerPhone,omitempty"`
	Totals        domain.Totals      `json:"totals"`
	PromoCode     string             `json:"promoCode,omitempty"`
	Items         []domain.OrderLine `json:"items"`
	ConfirmedAt   time.Time          `json:"confirmedAt"`
}

// PersistOrder writes a confirmed order and its lines in one transaction and
// counts a use of the applied promo code. A conversation stores at most one
// order: when its order already exists the row is rewritten with the current
// cart, and s takes over the stored number and confirmation time.
func (c *CatalogStore) PersistOrder(ctx context.Context, s *domain.Session) error {
	const op = "persist order"
	o := &s.Order
	if !o.Confirmed || o.ID == "" {
		return domain.InvalidState(op, "order is not confirmed")
	}
	totals := o.ComputeTotals()
	promo := ""
	if o.Promo != nil {
		promo = o.Promo.Code
	}
	started := s.CreatedAt.UTC().Format(time.RFC3339Nano)

	tx, err := c.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", op, err)
	}
	defer tx.Rollback()

	var existingID, existingAt, existingPromo string
	err = tx.QueryRowContext(ctx,
		`SELECT id, confirmed_at, promo_code FROM orders WHERE session_id = ? AND session_started = ?`,
		s.ID, started,
	).Scan(&existingID, &existingAt, &existingPromo)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO orders (id, session_id, session_started, fulfillment, district, customer_name, customer_phone,
			                     subtotal, delivery_fee, discount, total, promo_code, confirmed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, s.ID, started, string(o.Fulfillment), o.District, s.CustomerName, s.CustomerPhone,
			totals.Subtotal.StringFixed(2), totals.DeliveryFee.StringFixed(2),
			totals.Discount.StringFixed(2), totals.Total.StringFixed(2),
			promo, o.ConfirmedAt.UTC().Format(time.DateTime),
		)
		if err != nil {
			return fmt.Errorf("%s %s: %w", op, o.ID, err)
		}
	case err != nil:
		return fmt.Errorf("%s %s: %w", op, o.ID, err)
	default:
		c.db.log.Warn().Str("sessionId", s.ID).Str("orderId", existingID).Str("attempt", o.ID).
			Msg("order already stored for this conversation, rewriting it")
		o.ID = existingID
		o.ConfirmedAt = parseTime(existingAt)
		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET fulfillment = ?, district = ?, customer_name = ?, customer_phone = ?,
			        subtotal = ?, delivery_fee = ?, discount = ?, total = ?, promo_code = ?
			 WHERE id = ?`,
			string(o.Fulfillment), o.District, s.CustomerName, s.CustomerPhone,
			totals.Subtotal.StringFixed(2), totals.DeliveryFee.StringFixed(2),
			totals.Discount.StringFixed(2), totals.Total.StringFixed(2),
			promo, o.ID,
		)
		if err != nil {
			return fmt.Errorf("%s %s: %w", op, o.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, o.ID); err != nil {
			return fmt.Errorf("%s %s lines: %w", op, o.ID, err)
		}
		if existingPromo != "" && existingPromo != promo {
			if _, err := tx.ExecContext(ctx,
				`UPDATE promo_codes SET usage_count = MAX(usage_count - 1, 0) WHERE code = ?`, existingPromo,
			); err != nil {
				return fmt.Errorf("%s %s promo usage: %w", op, o.ID, err)
			}
		}
		if promo == existingPromo {
			promo = ""
		}
	}

	for _, l := range o.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, item_id, name, unit_price, quantity, notes)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID, l.ItemID, l.Name, l.UnitPrice.StringFixed(2), l.Quantity, l.Notes,
		); err != nil {
			return fmt.Errorf("%s %s line %s: %w", op, o.ID, l.ItemID, err)
		}
	}

	if promo != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE promo_codes SET usage_count = usage_count + 1 WHERE code = ?`, promo,
		); err != nil {
			return fmt.Errorf("%s %s promo usage: %w", op, o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s %s: %w", op, o.ID, err)
	}
	return nil
}

// GetOrder loads a persisted order with its lines.
func (c *CatalogStore) GetOrder(ctx context.Context, id string) (*OrderRecord, error) {
	r := &OrderRecord{}
	var fulfillment, subtotal, fee, discount, total, confirmedAt string
	err := c.db.sql.QueryRowContext(ctx,
		`SELECT id, session_id, fulfillment, district, customer_name, customer_phone,
		        subtotal, delivery_fee, discount, total, promo_code, confirmed_at
		 FROM orders WHERE id = ?`, id,
	).Scan(&r.ID, &r.SessionID, &fulfillment, &r.District, &r.CustomerName, &r.CustomerPhone,
		&subtotal, &fee, &discount, &total, &r.PromoCode, &confirmedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("get order", "order %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading order %s: %w", id, err)
	}
	r.Fulfillment = domain.Fulfillment(fulfillment)
	if err := parseDecimals("order "+id,
		decimalField{"subtotal", subtotal, &r.Totals.Subtotal},
		decimalField{"delivery fee", fee, &r.Totals.DeliveryFee},
		decimalField{"discount", discount, &r.Totals.Discount},
		decimalField{"total", total, &r.Totals.Total},
	); err != nil {
		return nil, err
	}
	r.ConfirmedAt = parseTime(confirmedAt)

	rows, err := c.db.sql.QueryContext(ctx,
		`SELECT item_id, name, unit_price, quantity, notes FROM order_items WHERE order_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("loading order %s lines: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var l domain.OrderLine
		var price string
		if err := rows.Scan(&l.ItemID, &l.Name, &price, &l.Quantity, &l.Notes); err != nil {
			return nil, err
		}
		if err := parseDecimals("order "+id+" line "+l.ItemID, decimalField{"unit price", price, &l.UnitPrice}); err != nil {
			return nil, err
		}
		r.Items = append(r.Items, l)
	}
	return r, rows.Err()
}

// CountOrders returns how many orders were persisted for a session.
func (c *CatalogStore) CountOrders(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := c.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
