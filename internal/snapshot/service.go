package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foliostat/folio/internal/balance"
	"github.com/foliostat/folio/internal/money"
)

// PortfolioAggregator supplies the group-level figures that go into a
// snapshot.
type PortfolioAggregator interface {
	FiatBalance(ctx context.Context, target money.Currency) (money.Value, error)
	IsFunded(ctx context.Context) bool
	Actions() []balance.Action
}

// PortfolioData is the JSON document stored per snapshot: the portfolio's
// fiat total at generation time plus the funded flag and the combined
// action set.
type PortfolioData struct {
	Date    time.Time        `json:"date"`
	Total   money.Value      `json:"total"`
	Funded  bool             `json:"funded"`
	Actions []balance.Action `json:"actions"`
}

// Service manages snapshot generation and retrieval, and serves historical
// balances to the change provider.
type Service struct {
	aggregator PortfolioAggregator
	repo       Repository
	base       money.Currency
}

// NewService creates a snapshot Service aggregating into the base currency.
func NewService(aggregator PortfolioAggregator, repo Repository, base money.Currency) *Service {
	return &Service{aggregator: aggregator, repo: repo, base: base}
}

// Generate aggregates the portfolio and persists a snapshot for the given
// slug and date. Overwrites an existing snapshot for the same day.
func (s *Service) Generate(ctx context.Context, slug string, date time.Time) (PortfolioData, error) {
	portfolioID, err := s.repo.GetPortfolioID(ctx, slug)
	if err != nil {
		return PortfolioData{}, fmt.Errorf("getting portfolio: %w", err)
	}

	total, err := s.aggregator.FiatBalance(ctx, s.base)
	if err != nil {
		return PortfolioData{}, fmt.Errorf("aggregating portfolio balance: %w", err)
	}

	data := PortfolioData{
		Date:    date,
		Total:   total,
		Funded:  s.aggregator.IsFunded(ctx),
		Actions: s.aggregator.Actions(),
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return PortfolioData{}, fmt.Errorf("marshaling portfolio data: %w", err)
	}

	if err := s.repo.Save(ctx, portfolioID, date, raw); err != nil {
		return PortfolioData{}, fmt.Errorf("saving snapshot: %w", err)
	}

	return data, nil
}

// GetLatest retrieves the most recent snapshot for the portfolio.
func (s *Service) GetLatest(ctx context.Context, slug string) (*Snapshot, error) {
	return s.repo.GetLatest(ctx, slug)
}

// GetByDate retrieves a snapshot for a specific date.
func (s *Service) GetByDate(ctx context.Context, slug string, date time.Time) (*Snapshot, error) {
	return s.repo.GetByDate(ctx, slug, date)
}

// List retrieves the most recent snapshots, newest first.
func (s *Service) List(ctx context.Context, slug string, limit int) ([]Snapshot, error) {
	return s.repo.List(ctx, slug, limit)
}

// DefaultSlug is the portfolio every deployment tracks.
const DefaultSlug = "main"

// BalanceAsOf returns the stored portfolio total closest before asOf. With
// no history yet it returns zero in the target currency: a new deployment's
// baseline is "nothing", which the change percentage guard maps to 0%.
func (s *Service) BalanceAsOf(ctx context.Context, target money.Currency, asOf time.Time) (money.Value, error) {
	snap, err := s.repo.GetClosestBefore(ctx, DefaultSlug, asOf)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Debug("no snapshot history before baseline, using zero", "asOf", asOf)
			return money.Zero(target), nil
		}
		return money.Value{}, fmt.Errorf("loading baseline snapshot: %w", err)
	}

	var data PortfolioData
	if err := json.Unmarshal(snap.Data, &data); err != nil {
		return money.Value{}, fmt.Errorf("parsing baseline snapshot: %w", err)
	}

	if data.Total.Currency().Code != target.Code {
		return money.Value{}, fmt.Errorf("baseline snapshot is %s, change requested in %s",
			data.Total.Currency().Code, target.Code)
	}
	return data.Total, nil
}
