package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions",
		SQL: `
			CREATE TABLE sessions (
				id          TEXT PRIMARY KEY,
				phase       TEXT NOT NULL,
				state       TEXT NOT NULL,
				turns       INTEGER NOT NULL DEFAULT 0,
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_sessions_phase ON sessions (phase);
			CREATE INDEX idx_sessions_updated ON sessions (updated_at);
		`,
	},
	{
		Version: 2,
		Name:    "create menu items with FTS5",
		SQL: `
			CREATE TABLE menu_items (
				id           TEXT PRIMARY KEY,
				name         TEXT NOT NULL,
				name_en      TEXT NOT NULL DEFAULT '',
				description  TEXT NOT NULL DEFAULT '',
				category     TEXT NOT NULL DEFAULT '',
				price        TEXT NOT NULL,
				available    INTEGER NOT NULL DEFAULT 1,
				calories     INTEGER NOT NULL DEFAULT 0,
				tags         TEXT NOT NULL DEFAULT '',
				updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_menu_category ON menu_items (category);

			CREATE VIRTUAL TABLE menu_fts USING fts5(
				name,
				name_en,
				description,
				category,
				content='menu_items',
				content_rowid='rowid'
			);

			CREATE TRIGGER menu_ai AFTER INSERT ON menu_items BEGIN
				INSERT INTO menu_fts(rowid, name, name_en, description, category)
				VALUES (new.rowid, new.name, new.name_en, new.description, new.category);
			END;

			CREATE TRIGGER menu_ad AFTER DELETE ON menu_items BEGIN
				INSERT INTO menu_fts(menu_fts, rowid, name, name_en, description, category)
				VALUES ('delete', old.rowid, old.name, old.name_en, old.description, old.category);
			END;

			CREATE TRIGGER menu_au AFTER UPDATE ON menu_items BEGIN
				INSERT INTO menu_fts(menu_fts, rowid, name, name_en, description, category)
				VALUES ('delete', old.rowid, old.name, old.name_en, old.description, old.category);
				INSERT INTO menu_fts(rowid, name, name_en, description, category)
				VALUES (new.rowid, new.name, new.name_en, new.description, new.category);
			END;
		`,
	},
	{
		Version: 3,
		Name:    "create covered areas and promo codes",
		SQL: `
			CREATE TABLE covered_areas (
				name        TEXT PRIMARY KEY,
				name_en     TEXT NOT NULL DEFAULT '',
				city        TEXT NOT NULL DEFAULT '',
				aliases     TEXT NOT NULL DEFAULT '[]',
				fee         TEXT NOT NULL,
				eta         TEXT NOT NULL DEFAULT '',
				active      INTEGER NOT NULL DEFAULT 1
			);

			CREATE TABLE promo_codes (
				code          TEXT PRIMARY KEY,
				kind          TEXT NOT NULL,
				value         TEXT NOT NULL,
				min_order     TEXT NOT NULL DEFAULT '0',
				max_discount  TEXT NOT NULL DEFAULT '0',
				usage_limit   INTEGER NOT NULL DEFAULT 0,
				usage_count   INTEGER NOT NULL DEFAULT 0,
				valid_from    TEXT NOT NULL DEFAULT '',
				valid_until   TEXT NOT NULL DEFAULT '',
				active        INTEGER NOT NULL DEFAULT 1
			);
		`,
	},
	{
		Version: 4,
		Name:    "create orders",
		SQL: `
			CREATE TABLE orders (
				id              TEXT PRIMARY KEY,
				session_id      TEXT NOT NULL,
				fulfillment     TEXT NOT NULL,
				district        TEXT NOT NULL DEFAULT '',
				customer_name   TEXT NOT NULL DEFAULT '',
				customer_phone  TEXT NOT NULL DEFAULT '',
				subtotal        TEXT NOT NULL,
				delivery_fee    TEXT NOT NULL,
				discount        TEXT NOT NULL,
				total           TEXT NOT NULL,
				promo_code      TEXT NOT NULL DEFAULT '',
				confirmed_at    TEXT NOT NULL
			);

			CREATE INDEX idx_orders_session ON orders (session_id);

			CREATE TABLE order_items (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				order_id    TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
				item_id     TEXT NOT NULL,
				name        TEXT NOT NULL,
				unit_price  TEXT NOT NULL,
				quantity    INTEGER NOT NULL,
				notes       TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_order_items_order ON order_items (order_id, id);
		`,
	},
	{
		Version: 5,
		Name:    "one order per conversation",
		SQL: `
			ALTER TABLE orders ADD COLUMN session_started TEXT NOT NULL DEFAULT '';

			CREATE UNIQUE INDEX idx_orders_conversation ON orders (session_id, session_started)
				WHERE session_started != '';
		`,
	},
}
