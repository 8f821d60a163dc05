package change

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliostat/folio/internal/money"
)

type stubPortfolio struct {
	balance money.Value
	err     error
	calls   atomic.Int64
}

func (s *stubPortfolio) FiatBalance(ctx context.Context, target money.Currency) (money.Value, error) {
	s.calls.Add(1)
	if s.err != nil {
		return money.Value{}, s.err
	}
	return s.balance, nil
}

type stubHistory struct {
	balance money.Value
	err     error
}

func (s *stubHistory) BalanceAsOf(ctx context.Context, target money.Currency, asOf time.Time) (money.Value, error) {
	if s.err != nil {
		return money.Value{}, s.err
	}
	return s.balance, nil
}

func newProvider(current, previous money.Value) *Provider {
	return NewProvider(
		&stubPortfolio{balance: current},
		&stubHistory{balance: previous},
		money.USD(), 24*time.Hour, time.Minute,
	)
}

func TestGetComputesChange(t *testing.T) {
	p := newProvider(money.New(15_000, money.USD()), money.New(10_000, money.USD()))

	state := p.Get(context.Background())
	if state.Calculating {
		t.Fatal("Get() = calculating, want computed change")
	}

	c := state.Change
	if !c.Delta.Minor().Equal(decimal.NewFromInt(5_000)) {
		t.Errorf("delta = %s, want 5000", c.Delta.Minor())
	}
	if !c.Percentage.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("percentage = %s, want 0.5", c.Percentage)
	}
}

func TestGetNegativeChange(t *testing.T) {
	p := newProvider(money.New(5_000, money.USD()), money.New(10_000, money.USD()))

	state := p.Get(context.Background())
	c := state.Change
	if !c.Delta.IsNegative() {
		t.Error("delta should be negative")
	}
	if !c.Percentage.Equal(decimal.NewFromFloat(-0.5)) {
		t.Errorf("percentage = %s, want -0.5", c.Percentage)
	}
}

func TestZeroBaselineGuard(t *testing.T) {
	p := newProvider(money.New(100, money.USD()), money.Zero(money.USD()))

	state := p.Get(context.Background())
	if state.Calculating {
		t.Fatal("zero baseline must not be an error")
	}
	if !state.Change.Percentage.IsZero() {
		t.Errorf("percentage = %s, want 0 for zero baseline", state.Change.Percentage)
	}
	if !state.Change.Delta.Minor().Equal(decimal.NewFromInt(100)) {
		t.Errorf("delta = %s, want 100", state.Change.Delta.Minor())
	}
}

func TestNegativeBaselineGuard(t *testing.T) {
	p := newProvider(money.New(100, money.USD()), money.New(-50, money.USD()))

	state := p.Get(context.Background())
	if !state.Change.Percentage.IsZero() {
		t.Errorf("percentage = %s, want 0 for negative baseline", state.Change.Percentage)
	}
}

func TestZeroCurrentGuard(t *testing.T) {
	p := newProvider(money.Zero(money.USD()), money.New(10_000, money.USD()))

	state := p.Get(context.Background())
	if !state.Change.Percentage.IsZero() {
		t.Errorf("percentage = %s, want 0 for zero current balance", state.Change.Percentage)
	}
}

func TestErrorYieldsCalculating(t *testing.T) {
	portfolio := &stubPortfolio{err: errors.New("backend down")}
	p := NewProvider(portfolio, &stubHistory{balance: money.Zero(money.USD())},
		money.USD(), 24*time.Hour, time.Minute)

	state := p.Get(context.Background())
	if !state.Calculating {
		t.Error("Get() on failure should stay in calculating state")
	}
	if state.Change != nil {
		t.Error("calculating state must carry no change")
	}

	// Errors are not cached: recovery on the next get.
	portfolio.err = nil
	portfolio.balance = money.New(100, money.USD())
	state = p.Get(context.Background())
	if state.Calculating {
		t.Error("Get() after recovery should return a change")
	}
}

func TestHistoryErrorYieldsCalculating(t *testing.T) {
	p := NewProvider(
		&stubPortfolio{balance: money.New(100, money.USD())},
		&stubHistory{err: errors.New("no history")},
		money.USD(), 24*time.Hour, time.Minute,
	)

	if state := p.Get(context.Background()); !state.Calculating {
		t.Error("Get() with failing history should stay calculating")
	}
}

func TestGetServesCachedChange(t *testing.T) {
	portfolio := &stubPortfolio{balance: money.New(100, money.USD())}
	p := NewProvider(portfolio, &stubHistory{balance: money.New(50, money.USD())},
		money.USD(), 24*time.Hour, time.Minute)

	p.Get(context.Background())
	p.Get(context.Background())

	if portfolio.calls.Load() != 1 {
		t.Errorf("portfolio calls = %d, want 1 (second get cached)", portfolio.calls.Load())
	}
}

func TestRefreshRecomputes(t *testing.T) {
	portfolio := &stubPortfolio{balance: money.New(100, money.USD())}
	p := NewProvider(portfolio, &stubHistory{balance: money.New(50, money.USD())},
		money.USD(), 24*time.Hour, time.Minute)

	p.Get(context.Background())
	portfolio.balance = money.New(200, money.USD())
	state := p.Refresh(context.Background())

	if portfolio.calls.Load() != 2 {
		t.Errorf("portfolio calls = %d, want 2 after refresh", portfolio.calls.Load())
	}
	if !state.Change.Current.Minor().Equal(decimal.NewFromInt(200)) {
		t.Errorf("current = %s, want refreshed 200", state.Change.Current.Minor())
	}
}
