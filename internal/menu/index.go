// Package menu serves menu semantic search from an embedded chromem-go
// vector index, falling back to keyword search when the index cannot answer.
package menu

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"github.com/shopspring/decimal"

	"github.com/soyeahso/sawt/internal/catalog"
	"github.com/soyeahso/sawt/internal/logging"
	"github.com/soyeahso/sawt/internal/metrics"
)

const (
	collectionName = "menu"

	MinLimit        = 5
	MaxLimit        = 10
	DefaultMinScore = 0.3
)

// KeywordSearcher is the fallback used when the vector index is empty,
// fails, or has nothing above the score floor.
type KeywordSearcher interface {
	SearchText(ctx context.Context, query, category string, limit int) ([]catalog.SearchHit, error)
}

// Options tunes an Index.
type Options struct {
	// Path persists the index to a directory. Empty keeps it in memory.
	Path     string
	MinScore float64
	Limit    int
}

// Index is a catalog.Searcher over menu items.
type Index struct {
	mu       sync.RWMutex
	db       *chromem.DB
	col      *chromem.Collection
	embed    chromem.EmbeddingFunc
	embedder Embedder
	fallback KeywordSearcher
	minScore float32
	limit    int
	log      *logging.Logger
}

// NewIndex opens or creates the menu index. fallback may be nil.
func NewIndex(embedder Embedder, fallback KeywordSearcher, opts Options, log *logging.Logger) (*Index, error) {
	var db *chromem.DB
	if opts.Path != "" {
		var err error
		db, err = chromem.NewPersistentDB(opts.Path, true)
		if err != nil {
			return nil, fmt.Errorf("open menu index: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	ef := chromemFunc(embedder)
	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	minScore := opts.MinScore
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	return &Index{
		db:       db,
		col:      col,
		embed:    ef,
		embedder: embedder,
		fallback: fallback,
		minScore: float32(minScore),
		limit:    ClampLimit(opts.Limit),
		log:      log.Sub("menu"),
	}, nil
}

// ClampLimit bounds a result count to the 5..10 window.
func ClampLimit(n int) int {
	return max(MinLimit, min(n, MaxLimit))
}

// Build replaces the index contents with items. Unavailable items are
// indexed too so the assistant can tell the customer they are sold out.
func (ix *Index) Build(ctx context.Context, items []catalog.MenuItem) (int, error) {
	docs := make([]chromem.Document, 0, len(items))
	for _, m := range items {
		docs = append(docs, chromem.Document{
			ID:       m.ID,
			Content:  m.SearchText(),
			Metadata: itemMetadata(m),
		})
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.db.DeleteCollection(collectionName); err != nil {
		return 0, fmt.Errorf("reset collection: %w", err)
	}
	col, err := ix.db.CreateCollection(collectionName, nil, ix.embed)
	if err != nil {
		return 0, fmt.Errorf("create collection: %w", err)
	}
	ix.col = col

	if len(docs) == 0 {
		return 0, nil
	}
	if err := col.AddDocuments(ctx, docs, 4); err != nil {
		return 0, fmt.Errorf("index menu: %w", err)
	}
	ix.log.Info().Int("items", len(docs)).Str("embedder", ix.embedder.Name()).Msg("menu index built")
	return len(docs), nil
}

// Count reports the number of indexed items.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.col.Count()
}

// Search returns up to the configured limit of items scoring at least the
// floor. An empty result is not an error.
func (ix *Index) Search(ctx context.Context, query, category string) ([]catalog.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	hits, err := ix.vectorSearch(ctx, query, category)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		ix.log.Warn().Err(err).Str("query", query).Msg("vector search failed, using keyword search")
	}
	if len(hits) > 0 {
		metrics.Get().MenuSearchesTotal.WithLabelValues("vector").Inc()
		return hits, nil
	}

	hits, err = ix.keywordSearch(ctx, query, category)
	if err != nil {
		return nil, err
	}
	source := "keyword"
	if len(hits) == 0 {
		source = "none"
	}
	metrics.Get().MenuSearchesTotal.WithLabelValues(source).Inc()
	return hits, nil
}

func (ix *Index) vectorSearch(ctx context.Context, query, category string) ([]catalog.SearchHit, error) {
	ix.mu.RLock()
	col := ix.col
	ix.mu.RUnlock()

	n := min(ix.limit, col.Count())
	if n == 0 {
		return nil, nil
	}

	var where map[string]string
	if category != "" {
		where = map[string]string{"category": category}
	}

	results, err := col.Query(ctx, query, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	hits := make([]catalog.SearchHit, 0, len(results))
	for _, r := range results {
		if r.Similarity < ix.minScore {
			continue
		}
		hits = append(hits, hitFromMetadata(r.ID, r.Metadata, float64(r.Similarity)))
	}
	return hits, nil
}

func (ix *Index) keywordSearch(ctx context.Context, query, category string) ([]catalog.SearchHit, error) {
	if ix.fallback == nil {
		return nil, nil
	}
	hits, err := ix.fallback.SearchText(ctx, query, category, ix.limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	out := make([]catalog.SearchHit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= float64(ix.minScore) {
			out = append(out, h)
		}
	}
	return out, nil
}

func itemMetadata(m catalog.MenuItem) map[string]string {
	return map[string]string{
		"name":      m.Name,
		"category":  m.Category,
		"price":     m.Price.StringFixed(2),
		"available": strconv.FormatBool(m.Available),
	}
}

func hitFromMetadata(id string, md map[string]string, score float64) catalog.SearchHit {
	price, _ := decimal.NewFromString(md["price"])
	available, _ := strconv.ParseBool(md["available"])
	return catalog.SearchHit{
		ItemID:    id,
		Name:      md["name"],
		Category:  md["category"],
		Price:     price,
		Available: available,
		Score:     score,
	}
}
