package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/foliostat/folio/internal/balance"
	"github.com/foliostat/folio/internal/group"
	"github.com/foliostat/folio/internal/metrics"
	"github.com/foliostat/folio/internal/money"
	"github.com/foliostat/folio/internal/snapshot"
)

// instrumentedGroup wraps the portfolio group and records aggregation
// durations on every full balance computation.
type instrumentedGroup struct {
	group     *group.Group
	collector *metrics.Collector
}

func (g *instrumentedGroup) FiatBalance(ctx context.Context, target money.Currency) (money.Value, error) {
	start := time.Now()
	total, err := g.group.FiatBalance(ctx, target)
	if err == nil {
		g.collector.ObserveAggregation(time.Since(start))
	}
	return total, err
}

func (g *instrumentedGroup) IsFunded(ctx context.Context) bool {
	return g.group.IsFunded(ctx)
}

func (g *instrumentedGroup) Actions() []balance.Action {
	return g.group.Actions()
}

func unmarshalSnapshot(snap *snapshot.Snapshot, data *snapshot.PortfolioData) error {
	if err := json.Unmarshal(snap.Data, data); err != nil {
		return fmt.Errorf("unmarshaling snapshot %s: %w", snap.SnapshotDate.Format("2006-01-02"), err)
	}
	return nil
}
