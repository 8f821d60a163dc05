package snapshot

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliostat/folio/internal/balance"
	"github.com/foliostat/folio/internal/money"
)

// memRepo is an in-memory Repository for tests.
type memRepo struct {
	snapshots map[time.Time]json.RawMessage
	nextID    int
}

func newMemRepo() *memRepo {
	return &memRepo{snapshots: make(map[time.Time]json.RawMessage), nextID: 1}
}

func (r *memRepo) Save(ctx context.Context, portfolioID int, date time.Time, data json.RawMessage) error {
	r.snapshots[date] = data
	return nil
}

func (r *memRepo) snapshotFor(date time.Time) *Snapshot {
	data := r.snapshots[date]
	return &Snapshot{ID: 1, PortfolioID: 1, SnapshotDate: date, Data: data, CreatedAt: date}
}

func (r *memRepo) GetLatest(ctx context.Context, slug string) (*Snapshot, error) {
	var latest time.Time
	found := false
	for date := range r.snapshots {
		if !found || date.After(latest) {
			latest = date
			found = true
		}
	}
	if !found {
		return nil, ErrNotFound
	}
	return r.snapshotFor(latest), nil
}

func (r *memRepo) GetByDate(ctx context.Context, slug string, date time.Time) (*Snapshot, error) {
	if _, ok := r.snapshots[date]; !ok {
		return nil, ErrNotFound
	}
	return r.snapshotFor(date), nil
}

func (r *memRepo) GetClosestBefore(ctx context.Context, slug string, asOf time.Time) (*Snapshot, error) {
	var best time.Time
	found := false
	for date := range r.snapshots {
		if date.After(asOf) {
			continue
		}
		if !found || date.After(best) {
			best = date
			found = true
		}
	}
	if !found {
		return nil, ErrNotFound
	}
	return r.snapshotFor(best), nil
}

func (r *memRepo) List(ctx context.Context, slug string, limit int) ([]Snapshot, error) {
	var out []Snapshot
	for date := range r.snapshots {
		out = append(out, *r.snapshotFor(date))
	}
	return out, nil
}

func (r *memRepo) GetPortfolioID(ctx context.Context, slug string) (int, error) {
	return 1, nil
}

func (r *memRepo) EnsurePortfolio(ctx context.Context, slug, name, description string) (int, error) {
	return 1, nil
}

type stubAggregator struct {
	total  money.Value
	funded bool
}

func (s *stubAggregator) FiatBalance(ctx context.Context, target money.Currency) (money.Value, error) {
	return s.total, nil
}

func (s *stubAggregator) IsFunded(ctx context.Context) bool { return s.funded }

func (s *stubAggregator) Actions() []balance.Action {
	return []balance.Action{balance.ActionView}
}

func day(d int) time.Time {
	return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateAndGetLatest(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(&stubAggregator{total: money.New(650_000, money.USD()), funded: true}, repo, money.USD())

	data, err := svc.Generate(context.Background(), DefaultSlug, day(1))
	if err != nil {
		t.Fatalf("Generate(): %v", err)
	}
	if !data.Funded {
		t.Error("generated data not funded")
	}
	if !data.Total.Minor().Equal(decimal.NewFromInt(650_000)) {
		t.Errorf("total = %s, want 650000", data.Total.Minor())
	}

	latest, err := svc.GetLatest(context.Background(), DefaultSlug)
	if err != nil {
		t.Fatalf("GetLatest(): %v", err)
	}

	var stored PortfolioData
	if err := json.Unmarshal(latest.Data, &stored); err != nil {
		t.Fatalf("unmarshal stored data: %v", err)
	}
	eq, err := stored.Total.Equal(data.Total)
	if err != nil || !eq {
		t.Errorf("stored total = %s, want %s (err %v)", stored.Total, data.Total, err)
	}
}

func TestBalanceAsOfPicksClosestBefore(t *testing.T) {
	repo := newMemRepo()
	agg := &stubAggregator{total: money.New(100, money.USD())}
	svc := NewService(agg, repo, money.USD())

	agg.total = money.New(100, money.USD())
	svc.Generate(context.Background(), DefaultSlug, day(1))
	agg.total = money.New(200, money.USD())
	svc.Generate(context.Background(), DefaultSlug, day(5))
	agg.total = money.New(300, money.USD())
	svc.Generate(context.Background(), DefaultSlug, day(10))

	got, err := svc.BalanceAsOf(context.Background(), money.USD(), day(7))
	if err != nil {
		t.Fatalf("BalanceAsOf(): %v", err)
	}
	if !got.Minor().Equal(decimal.NewFromInt(200)) {
		t.Errorf("baseline = %s, want the day-5 snapshot (200)", got.Minor())
	}
}

func TestBalanceAsOfNoHistory(t *testing.T) {
	svc := NewService(&stubAggregator{}, newMemRepo(), money.USD())

	got, err := svc.BalanceAsOf(context.Background(), money.USD(), day(1))
	if err != nil {
		t.Fatalf("BalanceAsOf() with empty history: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("baseline = %s, want zero for empty history", got.Minor())
	}
	if got.Currency().Code != "USD" {
		t.Errorf("baseline currency = %s, want USD", got.Currency().Code)
	}
}

func TestBalanceAsOfCurrencyMismatch(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(&stubAggregator{total: money.New(100, money.EUR())}, repo, money.EUR())
	svc.Generate(context.Background(), DefaultSlug, day(1))

	if _, err := svc.BalanceAsOf(context.Background(), money.USD(), day(2)); err == nil {
		t.Error("expected error when baseline currency differs from requested")
	}
}

func TestGenerateOverwritesSameDay(t *testing.T) {
	repo := newMemRepo()
	agg := &stubAggregator{total: money.New(100, money.USD())}
	svc := NewService(agg, repo, money.USD())

	svc.Generate(context.Background(), DefaultSlug, day(1))
	agg.total = money.New(500, money.USD())
	svc.Generate(context.Background(), DefaultSlug, day(1))

	got, err := svc.BalanceAsOf(context.Background(), money.USD(), day(1))
	if err != nil {
		t.Fatalf("BalanceAsOf(): %v", err)
	}
	if !got.Minor().Equal(decimal.NewFromInt(500)) {
		t.Errorf("baseline = %s, want overwritten 500", got.Minor())
	}
}
