package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/sawt/internal/catalog"
	"github.com/soyeahso/sawt/internal/domain"
	"github.com/soyeahso/sawt/internal/metrics"
)

// retrier runs read-only collaborator lookups with bounded exponential
// backoff. Classified domain errors (unknown item, invalid input) are
// answers, not failures, and are returned as is.
type retrier struct {
	retries int
	backoff time.Duration
}

func (r retrier) do(ctx context.Context, service string, op func(ctx context.Context) error) error {
	backoff := r.backoff
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !transient(err) {
			return err
		}
		if ctx.Err() != nil {
			return domain.External(service, ctx.Err())
		}
		if attempt >= r.retries {
			return domain.External(service, fmt.Errorf("failed after %d retries: %w", r.retries, err))
		}

		metrics.Get().LookupRetries.WithLabelValues(service).Inc()

		select {
		case <-ctx.Done():
			return domain.External(service, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// transient reports whether err is worth another attempt.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, domain.ErrExternal) {
		return true
	}
	return domain.KindOf(err) == ""
}

func retryValue[T any](ctx context.Context, r retrier, service string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.do(ctx, service, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Retrying wrappers around the lookup collaborators. Writes such as
// PersistOrder are never wrapped.

type retryingSearcher struct {
	r    retrier
	next catalog.Searcher
}

func (s retryingSearcher) Search(ctx context.Context, query, category string) ([]catalog.SearchHit, error) {
	return retryValue(ctx, s.r, "menu", func(ctx context.Context) ([]catalog.SearchHit, error) {
		return s.next.Search(ctx, query, category)
	})
}

type retryingCoverage struct {
	r    retrier
	next catalog.CoverageChecker
}

func (c retryingCoverage) Check(ctx context.Context, district string) (catalog.Coverage, error) {
	return retryValue(ctx, c.r, "districts", func(ctx context.Context) (catalog.Coverage, error) {
		return c.next.Check(ctx, district)
	})
}

type retryingItems struct {
	r    retrier
	next catalog.ItemSource
}

func (i retryingItems) GetItem(ctx context.Context, id string) (catalog.MenuItem, error) {
	return retryValue(ctx, i.r, "items", func(ctx context.Context) (catalog.MenuItem, error) {
		return i.next.GetItem(ctx, id)
	})
}

type retryingPromos struct {
	r    retrier
	next catalog.PromoSource
}

func (p retryingPromos) GetPromo(ctx context.Context, code string) (domain.Promo, error) {
	return retryValue(ctx, p.r, "promos", func(ctx context.Context) (domain.Promo, error) {
		return p.next.GetPromo(ctx, code)
	})
}
