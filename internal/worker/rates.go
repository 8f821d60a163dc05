package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/foliostat/folio/internal/money"
	"github.com/foliostat/folio/internal/rates"
)

// RateWorker periodically warms the rate cache for a fixed set of pairs so
// aggregations usually hit fresh cached rates instead of paying upstream
// latency.
type RateWorker struct {
	source   rates.Source
	pairs    []rates.Pair
	interval time.Duration
}

// NewRateWorker creates a RateWorker warming the given pairs.
func NewRateWorker(source rates.Source, pairs []rates.Pair, interval time.Duration) *RateWorker {
	return &RateWorker{
		source:   source,
		pairs:    pairs,
		interval: interval,
	}
}

func (w *RateWorker) warm(ctx context.Context) {
	for _, pair := range w.pairs {
		base, err := money.CurrencyByCode(pair.Base)
		if err != nil {
			slog.Warn("RateWorker: skipping pair with unknown base", "pair", pair, "error", err)
			continue
		}
		quote, err := money.CurrencyByCode(pair.Quote)
		if err != nil {
			slog.Warn("RateWorker: skipping pair with unknown quote", "pair", pair, "error", err)
			continue
		}
		if _, err := w.source.FetchRate(ctx, base, quote); err != nil {
			slog.Error("RateWorker: warm fetch failed", "pair", pair, "error", err)
		}
	}
}

// Run starts the rate worker loop. It blocks until the context is cancelled.
// Pairs are warmed immediately on startup.
func (w *RateWorker) Run(ctx context.Context) {
	slog.Info("RateWorker: starting", "pairs", len(w.pairs))

	w.warm(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("RateWorker: shutting down")
			return
		case <-ticker.C:
			w.warm(ctx)
		}
	}
}
