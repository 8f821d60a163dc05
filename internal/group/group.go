// Package group aggregates heterogeneous wallet accounts into group-level
// totals: a fiat-converted balance sum, a funded check, and a combined
// action set.
package group

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/foliostat/folio/internal/balance"
	"github.com/foliostat/folio/internal/money"
	"github.com/foliostat/folio/internal/rates"
)

// DefaultMemberTimeout bounds each member's balance+rate fetch so one stuck
// account cannot block the whole aggregation.
const DefaultMemberTimeout = 15 * time.Second

// Group composes a list of account balance sources. The group owns its
// member list; sources are not shared between groups.
type Group struct {
	name          string
	accounts      []balance.Source
	rates         rates.Source
	memberTimeout time.Duration
}

// New creates a Group over the given accounts. A non-positive timeout falls
// back to DefaultMemberTimeout.
func New(name string, accounts []balance.Source, rateSource rates.Source, memberTimeout time.Duration) *Group {
	if memberTimeout <= 0 {
		memberTimeout = DefaultMemberTimeout
	}
	return &Group{
		name:          name,
		accounts:      accounts,
		rates:         rateSource,
		memberTimeout: memberTimeout,
	}
}

// Name returns the group's name.
func (g *Group) Name() string { return g.name }

// Size returns the number of member accounts.
func (g *Group) Size() int { return len(g.accounts) }

// FiatBalance computes the group total converted to the target currency.
// Every member's balance and exchange rate are fetched concurrently; the
// call is bounded by the slowest single member, not the sum. A member whose
// fetch fails or times out contributes zero, so one failing account never
// fails the group sum. An empty group returns zero without any fetches.
func (g *Group) FiatBalance(ctx context.Context, target money.Currency) (money.Value, error) {
	if len(g.accounts) == 0 {
		return money.Zero(target), nil
	}

	converted := make([]money.Value, len(g.accounts))
	var wg sync.WaitGroup
	for i, src := range g.accounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			converted[i] = g.memberFiatBalance(ctx, src, target)
		}()
	}
	wg.Wait()

	total := money.Zero(target)
	for _, v := range converted {
		sum, err := total.Add(v)
		if err != nil {
			// Only possible if a rate source returned the wrong quote
			// currency; this is an invariant violation, not a data error.
			return money.Value{}, fmt.Errorf("summing group %s: %w", g.name, err)
		}
		total = sum
	}
	return total, nil
}

// memberFiatBalance resolves one member to a target-currency value,
// substituting zero on any failure. Balance and rate are fetched
// independently under a shared per-member timeout; sibling members are
// unaffected by this member's outcome.
func (g *Group) memberFiatBalance(ctx context.Context, src balance.Source, target money.Currency) money.Value {
	ctx, cancel := context.WithTimeout(ctx, g.memberTimeout)
	defer cancel()

	account := src.Account()

	type balanceResult struct {
		snap balance.Snapshot
		err  error
	}
	type rateResult struct {
		rate money.Value
		err  error
	}

	balCh := make(chan balanceResult, 1)
	rateCh := make(chan rateResult, 1)

	go func() {
		snap, err := src.FetchBalance(ctx)
		balCh <- balanceResult{snap, err}
	}()
	go func() {
		rate, err := g.rates.FetchRate(ctx, account.Currency, target)
		rateCh <- rateResult{rate, err}
	}()

	bal := <-balCh
	rate := <-rateCh

	if bal.err != nil {
		slog.Warn("group: member balance unavailable, substituting zero",
			"group", g.name, "account", account.ID, "error", bal.err)
		return money.Zero(target)
	}
	if rate.err != nil {
		slog.Warn("group: member rate unavailable, substituting zero",
			"group", g.name, "account", account.ID,
			"pair", account.Currency.Code+"/"+target.Code, "error", rate.err)
		return money.Zero(target)
	}

	total, err := bal.snap.Total()
	if err != nil {
		slog.Warn("group: inconsistent member snapshot, substituting zero",
			"group", g.name, "account", account.ID, "error", err)
		return money.Zero(target)
	}

	return total.Convert(rate.rate)
}

// IsFunded reports whether every member holds a positive available balance.
// An empty group is never funded. A member whose balance cannot be fetched
// counts as not funded: an unknown balance is not provably positive.
func (g *Group) IsFunded(ctx context.Context) bool {
	if len(g.accounts) == 0 {
		return false
	}

	funded := make([]bool, len(g.accounts))
	var wg sync.WaitGroup
	for i, src := range g.accounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			memberCtx, cancel := context.WithTimeout(ctx, g.memberTimeout)
			defer cancel()

			snap, err := src.FetchBalance(memberCtx)
			if err != nil {
				slog.Warn("group: funded check failed for member, treating as unfunded",
					"group", g.name, "account", src.Account().ID, "error", err)
				return
			}
			funded[i] = snap.Funded()
		}()
	}
	wg.Wait()

	return lo.EveryBy(funded, func(f bool) bool { return f })
}

// Actions returns the union of every member's action set.
func (g *Group) Actions() []balance.Action {
	all := lo.FlatMap(g.accounts, func(src balance.Source, _ int) []balance.Action {
		return src.Account().Actions
	})
	return lo.Uniq(all)
}
