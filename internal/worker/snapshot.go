package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/foliostat/folio/internal/events"
	"github.com/foliostat/folio/internal/snapshot"
)

// SnapshotGenerator defines the interface for generating portfolio snapshots.
type SnapshotGenerator interface {
	Generate(ctx context.Context, slug string, date time.Time) (snapshot.PortfolioData, error)
}

// AfterSnapshotHook is called after each successful snapshot generation.
type AfterSnapshotHook interface {
	Export(ctx context.Context, data snapshot.PortfolioData) error
}

// SnapshotWorker periodically persists a portfolio snapshot and announces
// each write on the event bus.
type SnapshotWorker struct {
	generator SnapshotGenerator
	interval  time.Duration
	bus       *events.Bus
	hook      AfterSnapshotHook // optional
}

// NewSnapshotWorker creates a SnapshotWorker with an optional
// post-generation hook.
func NewSnapshotWorker(generator SnapshotGenerator, interval time.Duration, bus *events.Bus, hook AfterSnapshotHook) *SnapshotWorker {
	return &SnapshotWorker{
		generator: generator,
		interval:  interval,
		bus:       bus,
		hook:      hook,
	}
}

func (w *SnapshotWorker) generate(ctx context.Context) {
	data, err := w.generator.Generate(ctx, snapshot.DefaultSlug, utcDate())
	if err != nil {
		slog.Error("SnapshotWorker: generation failed", "error", err)
		return
	}
	slog.Info("SnapshotWorker: generation completed", "total", data.Total.String())

	if w.bus != nil {
		w.bus.Emit(events.TopicSnapshotWritten)
	}
	if w.hook != nil {
		if err := w.hook.Export(ctx, data); err != nil {
			slog.Error("SnapshotWorker: export hook failed", "error", err)
		} else {
			slog.Info("SnapshotWorker: export hook completed")
		}
	}
}

// utcDate returns the current date normalized to midnight UTC.
func utcDate() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Run starts the snapshot worker loop. It blocks until the context is
// cancelled. A snapshot is generated immediately on startup.
func (w *SnapshotWorker) Run(ctx context.Context) {
	slog.Info("SnapshotWorker: starting")

	w.generate(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("SnapshotWorker: shutting down")
			return
		case <-ticker.C:
			w.generate(ctx)
		}
	}
}
