package cache

import "time"

// RefreshControl decides whether a cached entry is stale and must be
// refetched before being served again. A control is fixed for the lifetime
// of the cache it configures.
type RefreshControl interface {
	ShouldRefresh(lastRefreshed, now time.Time) bool
}

type onSubscription struct{}

func (onSubscription) ShouldRefresh(time.Time, time.Time) bool { return false }

// OnSubscription returns a control under which a value, once fetched, is
// never considered stale. Only explicit invalidation forces a refetch.
func OnSubscription() RefreshControl {
	return onSubscription{}
}

type periodic struct {
	interval time.Duration
}

func (p periodic) ShouldRefresh(lastRefreshed, now time.Time) bool {
	return now.Sub(lastRefreshed) >= p.interval
}

// Periodic returns a control under which a value is stale once its age
// reaches the interval.
func Periodic(interval time.Duration) RefreshControl {
	return periodic{interval: interval}
}

type custom struct {
	predicate func(lastRefreshed, now time.Time) bool
}

func (c custom) ShouldRefresh(lastRefreshed, now time.Time) bool {
	return c.predicate(lastRefreshed, now)
}

// Custom returns a control delegating staleness to the given predicate,
// evaluated on every get.
func Custom(predicate func(lastRefreshed, now time.Time) bool) RefreshControl {
	return custom{predicate: predicate}
}
