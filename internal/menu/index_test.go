package menu

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/sawt/internal/catalog"
	"github.com/soyeahso/sawt/internal/logging"
)

type fakeKeyword struct {
	hits  []catalog.SearchHit
	err   error
	calls int
	limit int
}

func (f *fakeKeyword) SearchText(_ context.Context, _, _ string, limit int) ([]catalog.SearchHit, error) {
	f.calls++
	f.limit = limit
	return f.hits, f.err
}

// switchEmbedder fails every call once broken is set.
type switchEmbedder struct {
	HashEmbedder
	broken atomic.Bool
}

func (s *switchEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.broken.Load() {
		return nil, errors.New("embeddings unavailable")
	}
	return s.HashEmbedder.Embed(ctx, texts)
}

func testItems() []catalog.MenuItem {
	item := func(id, name, en, cat, price string, available bool) catalog.MenuItem {
		return catalog.MenuItem{
			ID: id, Name: name, NameEN: en, Category: cat,
			Price: decimal.RequireFromString(price), Available: available,
		}
	}
	return []catalog.MenuItem{
		item("chicken-burger", "برجر دجاج", "Chicken Burger", "main", "24", true),
		item("beef-burger", "برجر لحم", "Beef Burger", "main", "28", true),
		item("orange-juice", "عصير برتقال", "Orange Juice", "beverages", "12", true),
		item("tea", "شاي", "Tea", "beverages", "5", false),
		item("cheesecake", "تشيز كيك", "Cheesecake", "desserts", "22", true),
	}
}

func testIndex(t *testing.T, fb KeywordSearcher) *Index {
	t.Helper()
	ix, err := NewIndex(HashEmbedder{Dims: 256}, fb, Options{}, logging.New(nil, "silent"))
	require.NoError(t, err)
	n, err := ix.Build(context.Background(), testItems())
	require.NoError(t, err)
	require.Equal(t, 5, n)
	return ix
}

// --- Embedder tests ---

func TestHashEmbedder_DeterministicAndNormalized(t *testing.T) {
	e := HashEmbedder{Dims: 64}
	a, err := e.Embed(context.Background(), []string{"برجر دجاج", "برجر دجاج"})
	require.NoError(t, err)
	assert.Equal(t, a[0], a[1])

	var sum float64
	for _, v := range a[0] {
		sum += float64(v * v)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestHashEmbedder_EmptyTextIsNonZero(t *testing.T) {
	vecs, err := HashEmbedder{}.Embed(context.Background(), []string{""})
	require.NoError(t, err)
	require.Len(t, vecs[0], 256)
	assert.Equal(t, float32(1), vecs[0][0])
}

func TestHashEmbedder_IgnoresDiacritics(t *testing.T) {
	e := HashEmbedder{Dims: 128}
	vecs, err := e.Embed(context.Background(), []string{"قَهْوَة", "قهوه"})
	require.NoError(t, err)
	assert.Equal(t, vecs[0], vecs[1])
}

// --- Index tests ---

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 5, ClampLimit(0))
	assert.Equal(t, 5, ClampLimit(3))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, 10, ClampLimit(50))
}

func TestSearch_RanksClosestItemFirst(t *testing.T) {
	fb := &fakeKeyword{}
	ix := testIndex(t, fb)

	hits, err := ix.Search(context.Background(), "برجر دجاج", "")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "chicken-burger", hits[0].ItemID)
	assert.Equal(t, "برجر دجاج", hits[0].Name)
	assert.True(t, hits[0].Price.Equal(decimal.NewFromInt(24)))
	assert.True(t, hits[0].Available)
	assert.LessOrEqual(t, len(hits), MaxLimit)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, DefaultMinScore)
	}
	assert.Zero(t, fb.calls)
}

func TestSearch_CategoryFilter(t *testing.T) {
	ix := testIndex(t, nil)

	hits, err := ix.Search(context.Background(), "عصير برتقال orange juice", "beverages")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "orange-juice", hits[0].ItemID)
	for _, h := range hits {
		assert.Equal(t, "beverages", h.Category)
	}

	hits, err = ix.Search(context.Background(), "برجر دجاج", "desserts")
	require.NoError(t, err)
	for _, h := range hits {
		assert.Equal(t, "desserts", h.Category)
	}
}

func TestSearch_CarriesAvailability(t *testing.T) {
	ix := testIndex(t, nil)

	hits, err := ix.Search(context.Background(), "شاي tea", "")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "tea", hits[0].ItemID)
	assert.False(t, hits[0].Available)
}

func TestSearch_EmptyQuery(t *testing.T) {
	fb := &fakeKeyword{}
	ix := testIndex(t, fb)

	hits, err := ix.Search(context.Background(), "   ", "")
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Zero(t, fb.calls)
}

func TestSearch_EmptyIndexFallsBack(t *testing.T) {
	fb := &fakeKeyword{hits: []catalog.SearchHit{{ItemID: "x", Score: 1}}}
	ix, err := NewIndex(HashEmbedder{}, fb, Options{Limit: 8}, logging.New(nil, "silent"))
	require.NoError(t, err)

	hits, err := ix.Search(context.Background(), "burger", "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "x", hits[0].ItemID)
	assert.Equal(t, 1, fb.calls)
	assert.Equal(t, 8, fb.limit)
}

func TestSearch_EmbedderFailureFallsBack(t *testing.T) {
	emb := &switchEmbedder{HashEmbedder: HashEmbedder{Dims: 128}}
	fb := &fakeKeyword{hits: []catalog.SearchHit{{ItemID: "beef-burger", Score: 0.9}}}
	ix, err := NewIndex(emb, fb, Options{}, logging.New(nil, "silent"))
	require.NoError(t, err)
	_, err = ix.Build(context.Background(), testItems())
	require.NoError(t, err)

	emb.broken.Store(true)
	hits, err := ix.Search(context.Background(), "برجر", "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "beef-burger", hits[0].ItemID)
	assert.Equal(t, 1, fb.calls)
}

func TestSearch_FallbackDropsLowScores(t *testing.T) {
	fb := &fakeKeyword{hits: []catalog.SearchHit{
		{ItemID: "a", Score: 0.9},
		{ItemID: "b", Score: 0.1},
	}}
	ix, err := NewIndex(HashEmbedder{}, fb, Options{}, logging.New(nil, "silent"))
	require.NoError(t, err)

	hits, err := ix.Search(context.Background(), "anything", "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ItemID)
}

func TestSearch_FallbackError(t *testing.T) {
	fb := &fakeKeyword{err: errors.New("db closed")}
	ix, err := NewIndex(HashEmbedder{}, fb, Options{}, logging.New(nil, "silent"))
	require.NoError(t, err)

	_, err = ix.Search(context.Background(), "burger", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db closed")
}

func TestSearch_CancelledContext(t *testing.T) {
	emb := &switchEmbedder{HashEmbedder: HashEmbedder{}}
	fb := &fakeKeyword{}
	ix, err := NewIndex(emb, fb, Options{}, logging.New(nil, "silent"))
	require.NoError(t, err)
	_, err = ix.Build(context.Background(), testItems())
	require.NoError(t, err)

	emb.broken.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ix.Search(ctx, "burger", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fb.calls)
}

func TestBuild_ReplacesContents(t *testing.T) {
	ix := testIndex(t, nil)
	assert.Equal(t, 5, ix.Count())

	n, err := ix.Build(context.Background(), testItems()[:2])
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, ix.Count())

	n, err = ix.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, ix.Count())
}

func TestIndex_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	log := logging.New(nil, "silent")

	ix, err := NewIndex(HashEmbedder{}, nil, Options{Path: dir}, log)
	require.NoError(t, err)
	_, err = ix.Build(context.Background(), testItems())
	require.NoError(t, err)

	reopened, err := NewIndex(HashEmbedder{}, nil, Options{Path: dir}, log)
	require.NoError(t, err)
	assert.Equal(t, 5, reopened.Count())

	hits, err := reopened.Search(context.Background(), "Cheesecake تشيز كيك", "")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "cheesecake", hits[0].ItemID)
}
