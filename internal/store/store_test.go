package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/soyeahso/sawt/internal/catalog"
	"github.com/soyeahso/sawt/internal/domain"
	"github.com/soyeahso/sawt/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seededCatalog(t *testing.T) *CatalogStore {
	t.Helper()
	cs := NewCatalogStore(testDB(t))
	sd, err := DefaultSeed()
	require.NoError(t, err)
	_, err = cs.Seed(context.Background(), sd)
	require.NoError(t, err)
	return cs
}

var now = time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NoError(t, db.sql.Ping())
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	// Running migrate again should be a no-op
	err := db.migrate()
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"sessions", "menu_items", "menu_fts", "covered_areas", "promo_codes", "orders", "order_items"}
	for _, table := range tables {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestOpen_FileCreatesDirectory(t *testing.T) {
	path := t.TempDir() + "/nested/sawt.db"
	db, err := Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	defer db.Close()
}

// --- Session store tests ---

func sessionStores(t *testing.T) map[string]SessionStore {
	return map[string]SessionStore{
		"sqlite": NewSQLiteSessionStore(testDB(t)),
		"memory": NewMemorySessionStore(),
	}
}

func populated(t *testing.T) *domain.Session {
	t.Helper()
	s := domain.NewSession("sess-1", now)
	s.Phase = domain.PhaseOrder
	s.Backtrack = domain.BacktrackFromCheckout
	s.Intent = domain.IntentOrder
	s.CustomerName = "Sara"
	s.Turns = 3
	require.NoError(t, s.Order.SetFulfillment(domain.Delivery, "النرجس", decimal.NewFromInt(15), "30-45 دقيقة"))
	require.NoError(t, s.Order.AddLine("classic-beef-burger", "برجر لحم كلاسيك", decimal.NewFromInt(28), 2, "بدون بصل"))
	s.Record("user", "ابي برجر")
	s.Record("assistant", "تم")
	return s
}

func TestSessionStore_LoadUnknownReturnsFresh(t *testing.T) {
	for name, ss := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			s, err := ss.Load(context.Background(), "new-id")
			require.NoError(t, err)
			assert.Equal(t, "new-id", s.ID)
			assert.Equal(t, domain.PhaseGreeting, s.Phase)
			assert.Empty(t, s.Order.Items)
			assert.False(t, s.CreatedAt.IsZero())
		})
	}
}

func TestSessionStore_SaveLoadRoundTrip(t *testing.T) {
	for name, ss := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, ss.Save(ctx, populated(t)))

			got, err := ss.Load(ctx, "sess-1")
			require.NoError(t, err)
			assert.Equal(t, domain.PhaseOrder, got.Phase)
			assert.Equal(t, domain.BacktrackFromCheckout, got.Backtrack)
			assert.Equal(t, domain.IntentOrder, got.Intent)
			assert.Equal(t, "Sara", got.CustomerName)
			assert.Equal(t, 3, got.Turns)
			assert.Equal(t, "النرجس", got.Order.District)
			require.Len(t, got.Order.Items, 1)
			assert.Equal(t, "بدون بصل", got.Order.Items[0].Notes)
			assert.True(t, got.Order.Items[0].UnitPrice.Equal(decimal.NewFromInt(28)))
			assert.True(t, got.Order.ComputeTotals().Total.Equal(decimal.NewFromInt(71)))
			assert.Len(t, got.Digest, 2)
		})
	}
}

func TestSessionStore_SaveReplaces(t *testing.T) {
	for name, ss := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := populated(t)
			require.NoError(t, ss.Save(ctx, s))

			require.NoError(t, s.Order.RemoveLine("classic-beef-burger"))
			s.Phase = domain.PhaseCheckout
			s.Backtrack = domain.BacktrackNone
			require.NoError(t, ss.Save(ctx, s))

			got, err := ss.Load(ctx, "sess-1")
			require.NoError(t, err)
			assert.Equal(t, domain.PhaseCheckout, got.Phase)
			assert.Equal(t, domain.BacktrackNone, got.Backtrack)
			assert.Empty(t, got.Order.Items)
		})
	}
}

func TestSessionStore_LoadedCopyIsIndependent(t *testing.T) {
	for name, ss := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, ss.Save(ctx, populated(t)))

			a, err := ss.Load(ctx, "sess-1")
			require.NoError(t, err)
			a.Order.Items[0].Quantity = 50
			a.Phase = domain.PhaseCheckout

			b, err := ss.Load(ctx, "sess-1")
			require.NoError(t, err)
			assert.Equal(t, 2, b.Order.Items[0].Quantity)
			assert.Equal(t, domain.PhaseOrder, b.Phase)
		})
	}
}

func TestSessionStore_Delete(t *testing.T) {
	for name, ss := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, ss.Save(ctx, populated(t)))
			require.NoError(t, ss.Delete(ctx, "sess-1"))
			require.NoError(t, ss.Delete(ctx, "sess-1"))

			got, err := ss.Load(ctx, "sess-1")
			require.NoError(t, err)
			assert.Equal(t, domain.PhaseGreeting, got.Phase)
		})
	}
}

func TestSessionStore_List(t *testing.T) {
	for name, ss := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := domain.NewSession("a", now)
			b := domain.NewSession("b", now.Add(time.Minute))
			b.Phase = domain.PhaseLocation
			require.NoError(t, ss.Save(ctx, a))
			require.NoError(t, ss.Save(ctx, b))

			list, err := ss.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "b", list[0].ID)
			assert.Equal(t, domain.PhaseLocation, list[0].Phase)
			assert.Equal(t, "a", list[1].ID)
		})
	}
}

func TestSessionStore_SaveRequiresID(t *testing.T) {
	for name, ss := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			err := ss.Save(context.Background(), &domain.Session{})
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

// --- Locker tests ---

func TestLocker_SerializesSameID(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "s")
			require.NoError(t, err)
			mu.Lock()
			active++
			maxActive = max(maxActive, active)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
	assert.Equal(t, 0, l.Len())
}

func TestLocker_DifferentIDsIndependent(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := l.Lock(ctx, "b")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different id blocked")
	}
}

func TestLocker_FIFO(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "s")
	require.NoError(t, err)

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := l.Lock(ctx, "s")
			require.NoError(t, err)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			u()
		}()
		// wait until the goroutine is queued before starting the next
		require.Eventually(t, func() bool {
			l.mu.Lock()
			defer l.mu.Unlock()
			return len(l.locks["s"].waiters) == i+1
		}, time.Second, time.Millisecond)
	}

	unlock()
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestLocker_ContextCancel(t *testing.T) {
	l := NewLocker()
	unlock, err := l.Lock(context.Background(), "s")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "s")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // second call is a no-op
	assert.Equal(t, 0, l.Len())

	u, err := l.Lock(context.Background(), "s")
	require.NoError(t, err)
	u()
}

// --- Catalog store tests ---

func TestSeed_Default(t *testing.T) {
	cs := NewCatalogStore(testDB(t))
	sd, err := DefaultSeed()
	require.NoError(t, err)

	res, err := cs.Seed(context.Background(), sd)
	require.NoError(t, err)
	assert.Greater(t, res.Items, 100)
	assert.Equal(t, 14, res.Districts)
	assert.Equal(t, 3, res.Promos)

	// reseeding is idempotent
	_, err = cs.Seed(context.Background(), sd)
	require.NoError(t, err)
	items, err := cs.ListItems(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, items, res.Items)
}

func TestCatalog_GetItem(t *testing.T) {
	cs := seededCatalog(t)
	ctx := context.Background()

	m, err := cs.GetItem(ctx, "classic-beef-burger")
	require.NoError(t, err)
	assert.Equal(t, "برجر لحم كلاسيك", m.Name)
	assert.Equal(t, "main", m.Category)
	assert.True(t, m.Price.Equal(decimal.NewFromInt(28)))
	assert.True(t, m.Available)

	_, err = cs.GetItem(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalog_UpsertItemUpdatesPriceAndSearch(t *testing.T) {
	cs := NewCatalogStore(testDB(t))
	ctx := context.Background()

	item := catalog.MenuItem{ID: "x", Name: "شاورما", NameEN: "Shawarma", Category: "main", Price: decimal.NewFromInt(18), Available: true}
	require.NoError(t, cs.UpsertItem(ctx, item))

	item.Price = decimal.RequireFromString("19.50")
	item.NameEN = "Chicken Shawarma"
	item.Available = false
	require.NoError(t, cs.UpsertItem(ctx, item))

	m, err := cs.GetItem(ctx, "x")
	require.NoError(t, err)
	assert.True(t, m.Price.Equal(decimal.RequireFromString("19.50")))
	assert.False(t, m.Available)

	hits, err := cs.SearchText(ctx, "chicken", "", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "x", hits[0].ItemID)
	assert.False(t, hits[0].Available)

	assert.Error(t, cs.UpsertItem(ctx, catalog.MenuItem{}))
}

func TestCatalog_SearchText(t *testing.T) {
	cs := seededCatalog(t)
	ctx := context.Background()

	hits, err := cs.SearchText(ctx, "برجر", "", 5)
	require.NoError(t, err)
	require.Len(t, hits, 5)
	for i, h := range hits {
		assert.Contains(t, h.Name, "برجر")
		assert.Greater(t, h.Score, 0.3)
		if i > 0 {
			assert.Less(t, h.Score, hits[i-1].Score)
		}
	}

	hits, err = cs.SearchText(ctx, "cheesecake", "desserts", 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ItemID)
	}
	assert.Contains(t, ids, "cheesecake")
	assert.Contains(t, ids, "berry-cheesecake")

	hits, err = cs.SearchText(ctx, "cheesecake", "beverages", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = cs.SearchText(ctx, `"?`, "", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"burger" OR "cheese"`, ftsQuery("burger, cheese!"))
	assert.Equal(t, `"a""b"`, ftsQuery(`a"b`))
	assert.Equal(t, "", ftsQuery("  ? "))
}

func TestCatalog_DistrictCheck(t *testing.T) {
	cs := seededCatalog(t)
	ctx := context.Background()

	cov, err := cs.Check(ctx, "حي النرجس")
	require.NoError(t, err)
	assert.True(t, cov.Covered)
	assert.Equal(t, "النرجس", cov.District)
	assert.True(t, cov.Fee.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, "30-45 دقيقة", cov.ETA)

	cov, err = cs.Check(ctx, "Al Olaya")
	require.NoError(t, err)
	assert.True(t, cov.Covered)
	assert.True(t, cov.Fee.Equal(decimal.NewFromInt(10)))

	cov, err = cs.Check(ctx, "جدة")
	require.NoError(t, err)
	assert.False(t, cov.Covered)
}

func TestCatalog_DistrictRoundTrip(t *testing.T) {
	cs := NewCatalogStore(testDB(t))
	ctx := context.Background()

	require.NoError(t, cs.UpsertDistrict(ctx, catalog.District{Name: "الملقا", Aliases: []string{"ملقا"}, Fee: decimal.NewFromInt(15), Active: true}))
	assert.ErrorIs(t, cs.UpsertDistrict(ctx, catalog.District{Name: "x", Fee: decimal.NewFromInt(-1)}), domain.ErrValidation)

	ds, err := cs.Districts(ctx)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, []string{"ملقا"}, ds[0].Aliases)
}

func TestCatalog_Promo(t *testing.T) {
	cs := seededCatalog(t)
	ctx := context.Background()

	p, err := cs.GetPromo(ctx, " welcome10 ")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", p.Code)
	assert.Equal(t, domain.PromoPercentage, p.Kind)
	assert.True(t, p.Value.Equal(decimal.NewFromInt(10)))
	assert.True(t, p.MaxDiscount.Equal(decimal.NewFromInt(30)))
	assert.True(t, p.Active)

	_, err = cs.GetPromo(ctx, "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalog_PromoValidityWindow(t *testing.T) {
	cs := NewCatalogStore(testDB(t))
	ctx := context.Background()

	require.NoError(t, cs.UpsertPromo(ctx, domain.Promo{
		Code: "ramadan", Kind: domain.PromoFixed, Value: decimal.NewFromInt(5),
		ValidFrom: now, ValidUntil: now.Add(24 * time.Hour), Active: true,
	}))
	p, err := cs.GetPromo(ctx, "RAMADAN")
	require.NoError(t, err)
	assert.Equal(t, now, p.ValidFrom)
	assert.NoError(t, p.Usable(now.Add(time.Hour)))
	assert.Error(t, p.Usable(now.Add(48*time.Hour)))
}

func confirmedSession(t *testing.T, promo *domain.Promo) *domain.Session {
	t.Helper()
	s := populated(t)
	s.CustomerPhone = "0551234567"
	if promo != nil {
		require.NoError(t, s.Order.ApplyPromo(*promo))
	}
	require.NoError(t, s.Order.Confirm(now))
	return s
}

func TestCatalog_PersistOrder(t *testing.T) {
	cs := seededCatalog(t)
	ctx := context.Background()

	promo, err := cs.GetPromo(ctx, "WELCOME10")
	require.NoError(t, err)
	s := confirmedSession(t, &promo)
	require.NoError(t, cs.PersistOrder(ctx, s))

	rec, err := cs.GetOrder(ctx, s.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, domain.Delivery, rec.Fulfillment)
	assert.Equal(t, "0551234567", rec.CustomerPhone)
	assert.Equal(t, "WELCOME10", rec.PromoCode)
	assert.True(t, rec.Totals.Subtotal.Equal(decimal.NewFromInt(56)))
	assert.True(t, rec.Totals.Discount.Equal(decimal.RequireFromString("5.6")))
	assert.True(t, rec.Totals.Total.Equal(decimal.RequireFromString("65.4")))
	require.Len(t, rec.Items, 1)
	assert.Equal(t, 2, rec.Items[0].Quantity)

	after, err := cs.GetPromo(ctx, "WELCOME10")
	require.NoError(t, err)
	assert.Equal(t, promo.UsageCount+1, after.UsageCount)

	n, err := cs.CountOrders(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCatalog_PersistOrderKeepsOneOrderPerConversation(t *testing.T) {
	cs := seededCatalog(t)
	ctx := context.Background()

	promo, err := cs.GetPromo(ctx, "WELCOME10")
	require.NoError(t, err)
	s := confirmedSession(t, &promo)
	require.NoError(t, cs.PersistOrder(ctx, s))
	first := s.Order.ID
	firstAt := s.Order.ConfirmedAt

	// A retried confirmation carries a fresh number and one more burger.
	retry := populated(t)
	retry.CustomerPhone = "0551234567"
	require.NoError(t, retry.Order.AddLine("classic-beef-burger", "برجر لحم كلاسيك", decimal.NewFromInt(28), 1, ""))
	require.NoError(t, retry.Order.ApplyPromo(promo))
	require.NoError(t, retry.Order.Confirm(now.Add(time.Minute)))
	require.NoError(t, cs.PersistOrder(ctx, retry))
	assert.Equal(t, first, retry.Order.ID)
	assert.True(t, firstAt.Equal(retry.Order.ConfirmedAt))

	n, err := cs.CountOrders(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := cs.GetOrder(ctx, first)
	require.NoError(t, err)
	require.Len(t, rec.Items, 2)

	after, err := cs.GetPromo(ctx, "WELCOME10")
	require.NoError(t, err)
	assert.Equal(t, promo.UsageCount+1, after.UsageCount)
}

func TestCatalog_PersistOrderNewConversationGetsNewOrder(t *testing.T) {
	cs := seededCatalog(t)
	ctx := context.Background()

	s := confirmedSession(t, nil)
	require.NoError(t, cs.PersistOrder(ctx, s))

	next := confirmedSession(t, nil)
	next.CreatedAt = next.CreatedAt.Add(time.Hour)
	require.NoError(t, cs.PersistOrder(ctx, next))
	assert.NotEqual(t, s.Order.ID, next.Order.ID)

	n, err := cs.CountOrders(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCatalog_PersistOrderRequiresConfirmation(t *testing.T) {
	cs := seededCatalog(t)
	err := cs.PersistOrder(context.Background(), populated(t))
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCatalog_GetOrderNotFound(t *testing.T) {
	cs := seededCatalog(t)
	_, err := cs.GetOrder(context.Background(), "ORD-missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalog_CorruptRowsReturnErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("district fee", func(t *testing.T) {
		cs := seededCatalog(t)
		_, err := cs.db.sql.Exec(`UPDATE covered_areas SET fee = 'fifteen' WHERE name = 'النرجس'`)
		require.NoError(t, err)

		_, err = cs.Districts(ctx)
		assert.ErrorContains(t, err, "district النرجس has invalid fee")
		_, err = cs.Check(ctx, "النرجس")
		assert.Error(t, err)
	})

	t.Run("district aliases", func(t *testing.T) {
		cs := seededCatalog(t)
		_, err := cs.db.sql.Exec(`UPDATE covered_areas SET aliases = '{broken' WHERE name = 'النرجس'`)
		require.NoError(t, err)

		_, err = cs.Districts(ctx)
		assert.ErrorContains(t, err, "invalid aliases")
	})

	t.Run("promo value", func(t *testing.T) {
		cs := seededCatalog(t)
		_, err := cs.db.sql.Exec(`UPDATE promo_codes SET value = '' WHERE code = 'WELCOME10'`)
		require.NoError(t, err)

		_, err = cs.GetPromo(ctx, "WELCOME10")
		assert.ErrorContains(t, err, "promo WELCOME10 has invalid value")
	})

	t.Run("search price", func(t *testing.T) {
		cs := seededCatalog(t)
		_, err := cs.db.sql.Exec(`UPDATE menu_items SET price = 'n/a' WHERE id = 'classic-beef-burger'`)
		require.NoError(t, err)

		_, err = cs.SearchText(ctx, "برجر", "", 10)
		assert.ErrorContains(t, err, "invalid price")
	})

	t.Run("order total", func(t *testing.T) {
		cs := seededCatalog(t)
		s := confirmedSession(t, nil)
		require.NoError(t, cs.PersistOrder(ctx, s))
		_, err := cs.db.sql.Exec(`UPDATE orders SET total = 'x' WHERE id = ?`, s.Order.ID)
		require.NoError(t, err)

		_, err = cs.GetOrder(ctx, s.Order.ID)
		assert.ErrorContains(t, err, "invalid total")
	})
}
