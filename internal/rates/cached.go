package rates

import (
	"context"
	"time"

	"github.com/foliostat/folio/internal/cache"
	"github.com/foliostat/folio/internal/money"
)

// Pair is a cache key for one base/quote rate.
type Pair struct {
	Base  string
	Quote string
}

// CachedSource wraps a Source in a cached value coordinator: fresh rates are
// served from memory, stale pairs are refetched at most once no matter how
// many aggregations ask concurrently.
type CachedSource struct {
	upstream Source
	cached   *cache.CachedValue[Pair, money.Value]
}

// NewCachedSource creates a CachedSource with a periodic TTL.
func NewCachedSource(upstream Source, ttl time.Duration, opts ...cache.Option) *CachedSource {
	s := &CachedSource{upstream: upstream}
	s.cached = cache.NewCachedValue(s.fetch, cache.Periodic(ttl), opts...)
	return s
}

func (s *CachedSource) fetch(ctx context.Context, pair Pair) (money.Value, error) {
	base, err := money.CurrencyByCode(pair.Base)
	if err != nil {
		return money.Value{}, err
	}
	quote, err := money.CurrencyByCode(pair.Quote)
	if err != nil {
		return money.Value{}, err
	}
	return s.upstream.FetchRate(ctx, base, quote)
}

// FetchRate implements Source through the cache.
func (s *CachedSource) FetchRate(ctx context.Context, base, quote money.Currency) (money.Value, error) {
	return s.cached.Get(ctx, Pair{Base: base.Code, Quote: quote.Code})
}

// Invalidate drops the cached rate for one pair.
func (s *CachedSource) Invalidate(base, quote money.Currency) {
	s.cached.Invalidate(Pair{Base: base.Code, Quote: quote.Code})
}

// InvalidateAll drops every cached rate; the next fetch per pair goes
// upstream.
func (s *CachedSource) InvalidateAll() {
	s.cached.InvalidateAll()
}
