package worker

import (
	"context"
	"log/slog"

	"github.com/foliostat/folio/internal/events"
)

// Invalidator drops cached state so the next read goes upstream.
type Invalidator interface {
	InvalidateAll()
}

// InvalidationWorker listens for refresh requests on the event bus and
// flushes the registered caches. Triggers are idempotent; flushing an
// already-empty cache is a no-op.
type InvalidationWorker struct {
	bus     *events.Bus
	targets []Invalidator
}

// NewInvalidationWorker creates a worker flushing targets on each
// refresh-requested event.
func NewInvalidationWorker(bus *events.Bus, targets ...Invalidator) *InvalidationWorker {
	return &InvalidationWorker{bus: bus, targets: targets}
}

// Run blocks until the context is cancelled, flushing targets on each
// refresh request.
func (w *InvalidationWorker) Run(ctx context.Context) {
	slog.Info("InvalidationWorker: starting", "targets", len(w.targets))

	ch := w.bus.Subscribe(events.TopicRefreshRequested)
	for {
		select {
		case <-ctx.Done():
			slog.Info("InvalidationWorker: shutting down")
			return
		case <-ch:
			for _, target := range w.targets {
				target.InvalidateAll()
			}
			slog.Info("InvalidationWorker: caches flushed")
		}
	}
}
