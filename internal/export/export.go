package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/foliostat/folio/internal/balance"
	"github.com/foliostat/folio/internal/money"
	"github.com/foliostat/folio/internal/snapshot"
)

// changePeriods is the set of lookback windows (days) reported per export.
var changePeriods = []int{7, 30, 90, 365}

// defaultHistoryLimit caps the HISTORY section at one year of daily rows.
const defaultHistoryLimit = 365

// PeriodChange holds the fractional balance change over a lookback window.
// Change is nil when no usable snapshot exists that far back.
type PeriodChange struct {
	Days   int
	Change *decimal.Decimal
}

// HistoryRow is one past snapshot reduced to the exported columns.
type HistoryRow struct {
	Date   time.Time
	Total  money.Value
	Funded bool
}

// Report is the full document a ReportWriter renders.
type Report struct {
	GeneratedAt time.Time
	Total       money.Value
	Funded      bool
	Actions     []balance.Action
	Changes     []PeriodChange
	History     []HistoryRow
}

// ReportWriter renders a Report to a spreadsheet destination.
type ReportWriter interface {
	Write(ctx context.Context, report Report) error
}

// Service builds portfolio reports from snapshot history and delegates
// rendering to a ReportWriter.
type Service struct {
	snapshots snapshot.Repository
	writer    ReportWriter
}

// NewService creates a new export Service.
func NewService(snapshots snapshot.Repository, writer ReportWriter) *Service {
	return &Service{snapshots: snapshots, writer: writer}
}

// Export builds a report for the given portfolio state and writes it.
// Implements worker.AfterSnapshotHook.
func (s *Service) Export(ctx context.Context, data snapshot.PortfolioData) error {
	report, err := s.buildReport(ctx, data)
	if err != nil {
		return fmt.Errorf("building report: %w", err)
	}
	return s.writer.Write(ctx, report)
}

func (s *Service) buildReport(ctx context.Context, data snapshot.PortfolioData) (Report, error) {
	report := Report{
		GeneratedAt: time.Now().UTC(),
		Total:       data.Total,
		Funded:      data.Funded,
		Actions:     data.Actions,
		Changes:     s.fetchChanges(ctx, data.Total),
	}

	history, err := s.snapshots.List(ctx, snapshot.DefaultSlug, defaultHistoryLimit)
	if err != nil {
		return Report{}, fmt.Errorf("listing snapshot history: %w", err)
	}
	report.History = lo.FilterMap(history, func(snap snapshot.Snapshot, _ int) (HistoryRow, bool) {
		var past snapshot.PortfolioData
		if err := json.Unmarshal(snap.Data, &past); err != nil {
			slog.Warn("export: skipping unreadable snapshot", "date", snap.SnapshotDate, "error", err)
			return HistoryRow{}, false
		}
		return HistoryRow{Date: snap.SnapshotDate, Total: past.Total, Funded: past.Funded}, true
	})

	return report, nil
}

// fetchChanges computes the fractional change against the closest snapshot at
// or before each lookback window. Missing or unreadable history yields a nil
// change for that period, never an error.
func (s *Service) fetchChanges(ctx context.Context, current money.Value) []PeriodChange {
	now := time.Now().UTC()

	changes := make([]PeriodChange, 0, len(changePeriods))
	for _, days := range changePeriods {
		pc := PeriodChange{Days: days}

		snap, err := s.snapshots.GetClosestBefore(ctx, snapshot.DefaultSlug, now.AddDate(0, 0, -days))
		if err != nil {
			slog.Warn("export: historical snapshot unavailable", "days", days, "error", err)
			changes = append(changes, pc)
			continue
		}

		var past snapshot.PortfolioData
		if err := json.Unmarshal(snap.Data, &past); err != nil {
			slog.Warn("export: failed to unmarshal historical snapshot", "days", days, "error", err)
			changes = append(changes, pc)
			continue
		}

		pc.Change = computeChange(current, past.Total)
		changes = append(changes, pc)
	}

	return changes
}

// computeChange returns (current - past) / past in major units, or nil when
// the currencies differ or the past total is zero.
func computeChange(current, past money.Value) *decimal.Decimal {
	if current.Currency() != past.Currency() || past.IsZero() {
		return nil
	}
	pct := current.Major().Sub(past.Major()).Div(past.Major())
	return &pct
}
