package money

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAddSameCurrency(t *testing.T) {
	a := New(1500, USD())
	b := New(250, USD())

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sum.Minor().Equal(decimal.NewFromInt(1750)) {
		t.Errorf("sum = %s, want 1750", sum.Minor())
	}
	if sum.Currency().Code != "USD" {
		t.Errorf("sum currency = %s, want USD", sum.Currency().Code)
	}
}

func TestArithmeticCurrencyMismatch(t *testing.T) {
	a := New(100, USD())
	b := New(100, EUR())

	if _, err := a.Add(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Add() error = %v, want ErrCurrencyMismatch", err)
	}
	if _, err := a.Sub(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Sub() error = %v, want ErrCurrencyMismatch", err)
	}
	if _, err := a.Less(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Less() error = %v, want ErrCurrencyMismatch", err)
	}
	if _, err := a.Greater(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Greater() error = %v, want ErrCurrencyMismatch", err)
	}
	if _, err := a.Equal(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Equal() error = %v, want ErrCurrencyMismatch", err)
	}
	if _, err := a.Percentage(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Percentage() error = %v, want ErrCurrencyMismatch", err)
	}
}

func TestSubNegativeResult(t *testing.T) {
	a := New(100, USD())
	b := New(250, USD())

	diff, err := a.Sub(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !diff.IsNegative() {
		t.Errorf("diff = %s, want negative", diff.Minor())
	}
	if !diff.Minor().Equal(decimal.NewFromInt(-150)) {
		t.Errorf("diff = %s, want -150", diff.Minor())
	}
}

func TestComparisons(t *testing.T) {
	small := New(1, USD())
	big := New(2, USD())

	if less, _ := small.Less(big); !less {
		t.Error("Less() = false, want true")
	}
	if greater, _ := big.Greater(small); !greater {
		t.Error("Greater() = false, want true")
	}
	if eq, _ := small.Equal(New(1, USD())); !eq {
		t.Error("Equal() = false, want true")
	}
}

func TestPredicates(t *testing.T) {
	if !Zero(EUR()).IsZero() {
		t.Error("Zero().IsZero() = false")
	}
	if Zero(EUR()).IsNegative() {
		t.Error("Zero().IsNegative() = true")
	}
	if !New(-1, EUR()).IsNegative() {
		t.Error("New(-1).IsNegative() = false")
	}
	if !New(1, EUR()).IsPositive() {
		t.Error("New(1).IsPositive() = false")
	}
}

func TestPercentage(t *testing.T) {
	current := New(150, USD())
	baseline := New(100, USD())

	pct, err := current.Percentage(baseline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pct.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("Percentage() = %s, want 0.5", pct)
	}
}

func TestPercentageZeroBaseline(t *testing.T) {
	current := New(100, USD())

	_, err := current.Percentage(Zero(USD()))
	if !errors.Is(err, ErrZeroBaseline) {
		t.Errorf("Percentage() error = %v, want ErrZeroBaseline", err)
	}
}

func TestConvertBTCToUSD(t *testing.T) {
	// 0.01 BTC = 1_000_000 satoshis; 1 BTC = 50_000 USD
	balance := New(1_000_000, BTC())
	rate := New(5_000_000, USD()) // 50,000.00 USD in cents

	converted := balance.Convert(rate)
	if converted.Currency().Code != "USD" {
		t.Fatalf("converted currency = %s, want USD", converted.Currency().Code)
	}
	if !converted.Minor().Equal(decimal.NewFromInt(50_000)) {
		t.Errorf("converted = %s cents, want 50000 (500.00 USD)", converted.Minor())
	}
}

func TestConvertLargeAmountsExact(t *testing.T) {
	// Amounts up to 10^15 minor units must stay exact.
	balance := New(1_000_000_000_000_000, BTC()) // 10^15 satoshis
	rate := New(5_000_000, USD())

	converted := balance.Convert(rate)
	want := decimal.NewFromInt(50_000_000_000_000) // 5*10^13 cents
	if !converted.Minor().Equal(want) {
		t.Errorf("converted = %s, want %s", converted.Minor(), want)
	}
}

func TestConvertExactScaling(t *testing.T) {
	// 1501 minor * rate 100.02 major must match exact integer arithmetic:
	// 15.01 USD-equivalent scaled with no float drift.
	balance := New(1501, USD())
	rate := New(10002, USD()) // 100.02 in cents

	converted := balance.Convert(rate)
	// 15.01 * 100.02 = 1501.3002 major = 150130.02 minor
	want, _ := decimal.NewFromString("150130.02")
	if !converted.Minor().Equal(want) {
		t.Errorf("converted = %s, want %s", converted.Minor(), want)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	v := New(650_000, USD())

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Value
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	eq, err := v.Equal(back)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !eq {
		t.Errorf("round-tripped value = %s, want %s", back, v)
	}
}

func TestUnmarshalUnknownCurrency(t *testing.T) {
	var v Value
	err := json.Unmarshal([]byte(`{"amount":"100","currency":"ZZZ"}`), &v)
	if err == nil {
		t.Error("expected error for unsupported currency")
	}
}
