package money

import (
	"fmt"

	"github.com/samber/lo"
)

// CurrencyKind classifies a currency as fiat or crypto.
type CurrencyKind string

const (
	KindFiat   CurrencyKind = "fiat"
	KindCrypto CurrencyKind = "crypto"
)

// Currency identifies a currency and its minor-unit precision
// (2 for cents, 8 for satoshis, 18 for wei).
type Currency struct {
	Code      string       `json:"code"`
	Precision int32        `json:"precision"`
	Kind      CurrencyKind `json:"kind"`
}

// IsFiat returns true for fiat currencies.
func (c Currency) IsFiat() bool {
	return c.Kind == KindFiat
}

// IsCrypto returns true for crypto currencies.
func (c Currency) IsCrypto() bool {
	return c.Kind == KindCrypto
}

func (c Currency) String() string {
	return c.Code
}

var (
	usd  = Currency{Code: "USD", Precision: 2, Kind: KindFiat}
	eur  = Currency{Code: "EUR", Precision: 2, Kind: KindFiat}
	gbp  = Currency{Code: "GBP", Precision: 2, Kind: KindFiat}
	btc  = Currency{Code: "BTC", Precision: 8, Kind: KindCrypto}
	eth  = Currency{Code: "ETH", Precision: 18, Kind: KindCrypto}
	xlm  = Currency{Code: "XLM", Precision: 7, Kind: KindCrypto}
	usdt = Currency{Code: "USDT", Precision: 6, Kind: KindCrypto}
)

// USD returns the US dollar currency.
func USD() Currency { return usd }

// EUR returns the euro currency.
func EUR() Currency { return eur }

// GBP returns the pound sterling currency.
func GBP() Currency { return gbp }

// BTC returns the Bitcoin currency.
func BTC() Currency { return btc }

// ETH returns the Ethereum currency.
func ETH() Currency { return eth }

// XLM returns the Stellar lumens currency.
func XLM() Currency { return xlm }

// USDT returns the Tether currency.
func USDT() Currency { return usdt }

var registry = []Currency{usd, eur, gbp, btc, eth, xlm, usdt}

// Currencies returns a copy of the supported currency registry.
func Currencies() []Currency {
	out := make([]Currency, len(registry))
	copy(out, registry)
	return out
}

// CurrencyByCode looks up a supported currency by its code.
func CurrencyByCode(code string) (Currency, error) {
	c, found := lo.Find(registry, func(c Currency) bool {
		return c.Code == code
	})
	if !found {
		return Currency{}, fmt.Errorf("unsupported currency %q", code)
	}
	return c, nil
}
