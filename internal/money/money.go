package money

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrCurrencyMismatch indicates arithmetic between two different currencies.
// It is a programming error upstream and is never recovered silently.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// ErrZeroBaseline indicates a percentage computation against a zero baseline.
var ErrZeroBaseline = errors.New("zero baseline")

// Value is an immutable monetary amount expressed in minor units
// (cents, satoshis, wei). Amounts may be negative; deltas and
// reversals are representable.
type Value struct {
	amount   decimal.Decimal
	currency Currency
}

// New creates a Value from a minor-unit amount.
func New(minor int64, currency Currency) Value {
	return Value{amount: decimal.NewFromInt(minor), currency: currency}
}

// NewFromDecimal creates a Value from a minor-unit decimal amount.
func NewFromDecimal(minor decimal.Decimal, currency Currency) Value {
	return Value{amount: minor, currency: currency}
}

// NewFromMajor creates a Value from a major-unit decimal amount
// (e.g. 0.01 BTC becomes 1_000_000 satoshis at precision 8).
func NewFromMajor(major decimal.Decimal, currency Currency) Value {
	return Value{amount: major.Shift(currency.Precision), currency: currency}
}

// Zero returns the zero amount in the given currency.
func Zero(currency Currency) Value {
	return Value{amount: decimal.Zero, currency: currency}
}

// Minor returns the amount in minor units.
func (v Value) Minor() decimal.Decimal {
	return v.amount
}

// Major returns the amount in major units (minor shifted by precision).
func (v Value) Major() decimal.Decimal {
	return v.amount.Shift(-v.currency.Precision)
}

// Currency returns the currency tag.
func (v Value) Currency() Currency {
	return v.currency
}

// IsZero reports whether the amount is zero.
func (v Value) IsZero() bool {
	return v.amount.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (v Value) IsNegative() bool {
	return v.amount.IsNegative()
}

// IsPositive reports whether the amount is above zero.
func (v Value) IsPositive() bool {
	return v.amount.IsPositive()
}

func (v Value) checkCurrency(other Value) error {
	if v.currency.Code != other.currency.Code {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, v.currency.Code, other.currency.Code)
	}
	return nil
}

// Add returns v + other. Fails if the currencies differ.
func (v Value) Add(other Value) (Value, error) {
	if err := v.checkCurrency(other); err != nil {
		return Value{}, err
	}
	return Value{amount: v.amount.Add(other.amount), currency: v.currency}, nil
}

// Sub returns v - other. Fails if the currencies differ.
func (v Value) Sub(other Value) (Value, error) {
	if err := v.checkCurrency(other); err != nil {
		return Value{}, err
	}
	return Value{amount: v.amount.Sub(other.amount), currency: v.currency}, nil
}

// Less reports whether v < other. Fails if the currencies differ.
func (v Value) Less(other Value) (bool, error) {
	if err := v.checkCurrency(other); err != nil {
		return false, err
	}
	return v.amount.LessThan(other.amount), nil
}

// Greater reports whether v > other. Fails if the currencies differ.
func (v Value) Greater(other Value) (bool, error) {
	if err := v.checkCurrency(other); err != nil {
		return false, err
	}
	return v.amount.GreaterThan(other.amount), nil
}

// Equal reports whether v == other. Fails if the currencies differ.
func (v Value) Equal(other Value) (bool, error) {
	if err := v.checkCurrency(other); err != nil {
		return false, err
	}
	return v.amount.Equal(other.amount), nil
}

// Percentage returns (v - baseline) / baseline as a ratio.
// Fails with ErrZeroBaseline when the baseline amount is zero.
func (v Value) Percentage(baseline Value) (decimal.Decimal, error) {
	if err := v.checkCurrency(baseline); err != nil {
		return decimal.Zero, err
	}
	if baseline.IsZero() {
		return decimal.Zero, ErrZeroBaseline
	}
	return v.amount.Sub(baseline.amount).Div(baseline.amount), nil
}

// Convert converts v into the rate's quote currency. The rate is the price
// of 1 major unit of v's currency expressed in the target currency, so the
// amount is shifted to major units, multiplied, and shifted back to the
// target's minor units. All arithmetic is exact decimal.
func (v Value) Convert(rate Value) Value {
	converted := v.Major().Mul(rate.Major())
	return Value{
		amount:   converted.Shift(rate.currency.Precision),
		currency: rate.currency,
	}
}

// String formats the value in major units with the currency code,
// e.g. "6500 USD".
func (v Value) String() string {
	return fmt.Sprintf("%s %s", v.Major().String(), v.currency.Code)
}

// MarshalJSON encodes the value as {"amount": "<minor>", "currency": "<code>"}.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"amount":%q,"currency":%q}`, v.amount.String(), v.currency.Code)), nil
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON. The currency
// must be present in the supported registry.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing money value: %w", err)
	}
	currency, err := CurrencyByCode(raw.Currency)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return fmt.Errorf("parsing amount %q: %w", raw.Amount, err)
	}
	v.amount = amount
	v.currency = currency
	return nil
}
