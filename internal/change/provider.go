// Package change computes the portfolio balance delta against a historical
// baseline: current vs. N-days-ago totals, with a percentage change that is
// defined (zero) even for zero or negative baselines.
package change

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliostat/folio/internal/cache"
	"github.com/foliostat/folio/internal/money"
)

// PortfolioSource supplies the current fiat-converted portfolio total.
type PortfolioSource interface {
	FiatBalance(ctx context.Context, target money.Currency) (money.Value, error)
}

// HistorySource supplies the portfolio total as of a past date.
type HistorySource interface {
	BalanceAsOf(ctx context.Context, target money.Currency, asOf time.Time) (money.Value, error)
}

// Change is one computed balance movement. Current, Previous, and Delta all
// share the target fiat currency; Percentage is a ratio (0.5 = +50%).
type Change struct {
	Current    money.Value     `json:"current"`
	Previous   money.Value     `json:"previous"`
	Delta      money.Value     `json:"delta"`
	Percentage decimal.Decimal `json:"percentage"`
}

// State is what the provider exposes to consumers: either a computed change
// or a calculating placeholder. Computation errors collapse into the
// calculating state rather than a terminal failure; the provider keeps
// retrying on the next get. The underlying error is logged so a persistently
// failing backend is visible to operators even though consumers only see
// "calculating".
type State struct {
	Calculating bool    `json:"calculating"`
	Change      *Change `json:"change,omitempty"`
}

func calculating() State {
	return State{Calculating: true}
}

// Provider computes and caches the portfolio change for one target currency.
// Concurrent refreshes coalesce into a single recomputation.
type Provider struct {
	portfolio PortfolioSource
	history   HistorySource
	target    money.Currency
	lookback  time.Duration
	clock     cache.Clock
	cached    *cache.CachedValue[string, Change]
}

// NewProvider creates a Provider. lookback is how far back the baseline
// lies (e.g. 24h for day-over-day change); ttl bounds how long a computed
// change is served before recomputation.
func NewProvider(portfolio PortfolioSource, history HistorySource, target money.Currency, lookback, ttl time.Duration, opts ...cache.Option) *Provider {
	p := &Provider{
		portfolio: portfolio,
		history:   history,
		target:    target,
		lookback:  lookback,
		clock:     cache.SystemClock(),
	}
	p.cached = cache.NewCachedValue(p.compute, cache.Periodic(ttl), opts...)
	return p
}

// WithClock overrides the provider's baseline clock, for tests. Must be
// called before the first Get.
func (p *Provider) WithClock(clock cache.Clock) *Provider {
	p.clock = clock
	return p
}

// Get returns the current change state, computing it if absent or stale.
// Any computation failure yields the calculating state.
func (p *Provider) Get(ctx context.Context) State {
	change, err := p.cached.Get(ctx, p.target.Code)
	if err != nil {
		slog.Error("change: computation failed, staying in calculating state",
			"target", p.target.Code, "error", err)
		return calculating()
	}
	return State{Change: &change}
}

// Refresh discards the cached change and recomputes. Idempotent; concurrent
// refreshes share one recomputation through the cache coordinator.
func (p *Provider) Refresh(ctx context.Context) State {
	p.cached.Invalidate(p.target.Code)
	return p.Get(ctx)
}

// InvalidateAll discards any cached change without recomputing. The next Get
// recomputes from live data.
func (p *Provider) InvalidateAll() {
	p.cached.InvalidateAll()
}

func (p *Provider) compute(ctx context.Context, _ string) (Change, error) {
	current, err := p.portfolio.FiatBalance(ctx, p.target)
	if err != nil {
		return Change{}, fmt.Errorf("fetching current balance: %w", err)
	}

	asOf := p.clock.Now().Add(-p.lookback)
	previous, err := p.history.BalanceAsOf(ctx, p.target, asOf)
	if err != nil {
		return Change{}, fmt.Errorf("fetching previous balance: %w", err)
	}

	delta, err := current.Sub(previous)
	if err != nil {
		return Change{}, fmt.Errorf("computing delta: %w", err)
	}

	return Change{
		Current:    current,
		Previous:   previous,
		Delta:      delta,
		Percentage: percentage(current, previous),
	}, nil
}

// percentage returns (current-previous)/previous with the source-observed
// guards: a zero current balance or a zero/negative baseline reports no
// change instead of a meaningless or undefined ratio.
func percentage(current, previous money.Value) decimal.Decimal {
	if current.IsZero() {
		return decimal.Zero
	}
	if previous.IsZero() || previous.IsNegative() {
		return decimal.Zero
	}
	pct, err := current.Percentage(previous)
	if err != nil {
		return decimal.Zero
	}
	return pct
}
