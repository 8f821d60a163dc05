package rates

import (
	"context"
	"errors"

	"github.com/foliostat/folio/internal/money"
)

// ErrNoRate indicates that no rate could be determined for a pair.
var ErrNoRate = errors.New("no rate available")

// Source provides the price of 1 major unit of a base currency expressed in
// a quote currency.
type Source interface {
	FetchRate(ctx context.Context, base, quote money.Currency) (money.Value, error)
}
