package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/foliostat/folio/internal/balance"
	"github.com/foliostat/folio/internal/money"
)

// accountSpec is the JSON form of one configured account.
type accountSpec struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Currency string   `json:"currency"`
	Kind     string   `json:"kind"`
	Actions  []string `json:"actions"`
}

// defaultAccounts is the built-in registry used when no accounts file is
// configured: a custodial and a non-custodial account per major asset.
var defaultAccounts = []accountSpec{
	{ID: "btc-trading", Label: "BTC Trading", Currency: "BTC", Kind: "custodial",
		Actions: []string{"view", "buy", "sell", "swap", "send", "receive"}},
	{ID: "btc-wallet", Label: "BTC Private Key Wallet", Currency: "BTC", Kind: "noncustodial",
		Actions: []string{"view", "send", "receive", "swap"}},
	{ID: "eth-trading", Label: "ETH Trading", Currency: "ETH", Kind: "custodial",
		Actions: []string{"view", "buy", "sell", "swap", "send", "receive"}},
	{ID: "eth-wallet", Label: "ETH Private Key Wallet", Currency: "ETH", Kind: "noncustodial",
		Actions: []string{"view", "send", "receive", "swap"}},
	{ID: "xlm-trading", Label: "XLM Trading", Currency: "XLM", Kind: "custodial",
		Actions: []string{"view", "buy", "sell", "swap", "send", "receive"}},
	{ID: "usd-funds", Label: "USD Funds", Currency: "USD", Kind: "custodial",
		Actions: []string{"view", "deposit", "withdraw"}},
}

// LoadAccounts returns the account registry: parsed from the JSON file at
// path when set, otherwise the built-in defaults.
func LoadAccounts(path string) ([]balance.Account, error) {
	specs := defaultAccounts
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading accounts file: %w", err)
		}
		specs = nil
		if err := json.Unmarshal(raw, &specs); err != nil {
			return nil, fmt.Errorf("parsing accounts file: %w", err)
		}
	}

	accounts := make([]balance.Account, 0, len(specs))
	for _, spec := range specs {
		currency, err := money.CurrencyByCode(spec.Currency)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", spec.ID, err)
		}

		kind := balance.AccountKind(spec.Kind)
		switch kind {
		case balance.KindCustodial, balance.KindNonCustodial, balance.KindInterest:
		default:
			return nil, fmt.Errorf("account %s: unknown kind %q", spec.ID, spec.Kind)
		}

		actions := make([]balance.Action, 0, len(spec.Actions))
		for _, a := range spec.Actions {
			actions = append(actions, balance.Action(a))
		}

		accounts = append(accounts, balance.Account{
			ID:       spec.ID,
			Label:    spec.Label,
			Currency: currency,
			Kind:     kind,
			Actions:  actions,
		})
	}
	return accounts, nil
}
