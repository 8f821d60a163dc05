package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliostat/folio/internal/money"
	"github.com/foliostat/folio/internal/snapshot"
)

type fakeRepo struct {
	snapshots []snapshot.Snapshot
}

func (r *fakeRepo) Save(context.Context, int, time.Time, json.RawMessage) error { return nil }

func (r *fakeRepo) GetLatest(context.Context, string) (*snapshot.Snapshot, error) {
	return nil, snapshot.ErrNotFound
}

func (r *fakeRepo) GetByDate(context.Context, string, time.Time) (*snapshot.Snapshot, error) {
	return nil, snapshot.ErrNotFound
}

func (r *fakeRepo) GetClosestBefore(_ context.Context, _ string, asOf time.Time) (*snapshot.Snapshot, error) {
	var found *snapshot.Snapshot
	for i := range r.snapshots {
		s := r.snapshots[i]
		if s.SnapshotDate.After(asOf) {
			continue
		}
		if found == nil || s.SnapshotDate.After(found.SnapshotDate) {
			found = &s
		}
	}
	if found == nil {
		return nil, snapshot.ErrNotFound
	}
	return found, nil
}

func (r *fakeRepo) List(context.Context, string, int) ([]snapshot.Snapshot, error) {
	return r.snapshots, nil
}

func (r *fakeRepo) GetPortfolioID(context.Context, string) (int, error) { return 1, nil }

func (r *fakeRepo) EnsurePortfolio(context.Context, string, string, string) (int, error) {
	return 1, nil
}

type captureWriter struct {
	report Report
}

func (w *captureWriter) Write(_ context.Context, report Report) error {
	w.report = report
	return nil
}

func mustSnapshot(t *testing.T, daysAgo int, totalMinor int64) snapshot.Snapshot {
	t.Helper()
	date := time.Now().UTC().AddDate(0, 0, -daysAgo).Truncate(24 * time.Hour)
	data, err := json.Marshal(snapshot.PortfolioData{
		Date:   date,
		Total:  money.New(totalMinor, money.USD()),
		Funded: totalMinor > 0,
	})
	if err != nil {
		t.Fatal(err)
	}
	return snapshot.Snapshot{SnapshotDate: date, Data: data}
}

func TestExport_PeriodChanges(t *testing.T) {
	repo := &fakeRepo{snapshots: []snapshot.Snapshot{
		mustSnapshot(t, 8, 100000),  // covers the 7d window
		mustSnapshot(t, 32, 200000), // covers the 30d window
	}}
	writer := &captureWriter{}
	svc := NewService(repo, writer)

	current := snapshot.PortfolioData{
		Total:  money.New(150000, money.USD()),
		Funded: true,
	}
	if err := svc.Export(context.Background(), current); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	report := writer.report
	if len(report.Changes) != 4 {
		t.Fatalf("expected 4 period changes, got %d", len(report.Changes))
	}

	byDays := make(map[int]*decimal.Decimal)
	for _, pc := range report.Changes {
		byDays[pc.Days] = pc.Change
	}

	// 150000 vs 100000 a week ago: +50%
	if byDays[7] == nil || !byDays[7].Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("7d change: expected 0.5, got %v", byDays[7])
	}
	// 150000 vs 200000 a month ago: -25%
	if byDays[30] == nil || !byDays[30].Equal(decimal.NewFromFloat(-0.25)) {
		t.Errorf("30d change: expected -0.25, got %v", byDays[30])
	}
	// No snapshot a year back
	if byDays[365] != nil {
		t.Errorf("365d change: expected nil, got %v", byDays[365])
	}

	if len(report.History) != 2 {
		t.Errorf("expected 2 history rows, got %d", len(report.History))
	}
}

func TestExport_ZeroBaselineSkipped(t *testing.T) {
	repo := &fakeRepo{snapshots: []snapshot.Snapshot{
		mustSnapshot(t, 10, 0),
	}}
	writer := &captureWriter{}
	svc := NewService(repo, writer)

	current := snapshot.PortfolioData{Total: money.New(150000, money.USD()), Funded: true}
	if err := svc.Export(context.Background(), current); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	for _, pc := range writer.report.Changes {
		if pc.Change != nil {
			t.Errorf("%dd change: expected nil against zero baseline, got %v", pc.Days, pc.Change)
		}
	}
}

func TestExport_SkipsUnreadableHistory(t *testing.T) {
	good := mustSnapshot(t, 3, 50000)
	bad := snapshot.Snapshot{
		SnapshotDate: time.Now().UTC().AddDate(0, 0, -4).Truncate(24 * time.Hour),
		Data:         json.RawMessage(`{not json`),
	}
	repo := &fakeRepo{snapshots: []snapshot.Snapshot{good, bad}}
	writer := &captureWriter{}
	svc := NewService(repo, writer)

	current := snapshot.PortfolioData{Total: money.New(150000, money.USD()), Funded: true}
	if err := svc.Export(context.Background(), current); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(writer.report.History) != 1 {
		t.Errorf("expected 1 readable history row, got %d", len(writer.report.History))
	}
}

func TestBuildSummary(t *testing.T) {
	pct := decimal.NewFromFloat(0.1)
	report := Report{
		GeneratedAt: time.Date(2026, 2, 24, 12, 0, 0, 0, time.UTC),
		Total:       money.New(650000, money.USD()),
		Funded:      true,
		Changes: []PeriodChange{
			{Days: 7, Change: &pct},
			{Days: 30},
		},
	}

	rows := buildSummary(report)
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	if rows[0][1] != "24.02.2026 12:00" {
		t.Errorf("generated row: got %v", rows[0][1])
	}
	if rows[1][0] != "Total USD" {
		t.Errorf("total label: got %v", rows[1][0])
	}
	if v, ok := rows[1][1].(float64); !ok || v != 6500.0 {
		t.Errorf("total value: expected 6500.0 major units, got %v", rows[1][1])
	}
	if v, ok := rows[3][1].(float64); !ok || v != 0.1 {
		t.Errorf("7d change cell: expected 0.1, got %v", rows[3][1])
	}
	if rows[4][1] != nil {
		t.Errorf("30d change cell: expected nil, got %v", rows[4][1])
	}
}

func TestXLSXWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	writer := NewXLSXWriter(path)

	report := Report{
		GeneratedAt: time.Now().UTC(),
		Total:       money.New(650000, money.USD()),
		Funded:      true,
		History: []HistoryRow{
			{Date: time.Now().UTC(), Total: money.New(650000, money.USD()), Funded: true},
		},
	}
	if err := writer.Write(context.Background(), report); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected workbook file: %v", err)
	}
}
