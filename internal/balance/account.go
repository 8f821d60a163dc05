package balance

import (
	"github.com/foliostat/folio/internal/money"
)

// Action is a capability an account supports.
type Action string

const (
	ActionView     Action = "view"
	ActionBuy      Action = "buy"
	ActionSell     Action = "sell"
	ActionSwap     Action = "swap"
	ActionSend     Action = "send"
	ActionReceive  Action = "receive"
	ActionDeposit  Action = "deposit"
	ActionWithdraw Action = "withdraw"
)

// AccountKind classifies how an account's funds are held.
type AccountKind string

const (
	KindCustodial    AccountKind = "custodial"
	KindNonCustodial AccountKind = "noncustodial"
	KindInterest     AccountKind = "interest"
)

// Account describes one wallet account: a single-currency bucket of funds
// with a fixed capability set.
type Account struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Currency money.Currency `json:"currency"`
	Kind     AccountKind    `json:"kind"`
	Actions  []Action       `json:"actions"`
}

// Snapshot is one account's balance split. All three values share the
// account's currency. Pending may be negative: refunds and reversals are
// booked as negative pending amounts, so callers must not assume
// non-negativity anywhere in the split.
type Snapshot struct {
	Available    money.Value `json:"available"`
	Pending      money.Value `json:"pending"`
	Withdrawable money.Value `json:"withdrawable"`
}

// Total returns available + pending.
func (s Snapshot) Total() (money.Value, error) {
	return s.Available.Add(s.Pending)
}

// Funded reports whether the account holds a positive available balance.
func (s Snapshot) Funded() bool {
	return s.Available.IsPositive()
}

// ZeroSnapshot returns an all-zero snapshot in the given currency.
func ZeroSnapshot(currency money.Currency) Snapshot {
	return Snapshot{
		Available:    money.Zero(currency),
		Pending:      money.Zero(currency),
		Withdrawable: money.Zero(currency),
	}
}
