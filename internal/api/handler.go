package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/foliostat/folio/internal/balance"
	"github.com/foliostat/folio/internal/change"
	"github.com/foliostat/folio/internal/events"
	"github.com/foliostat/folio/internal/money"
	"github.com/foliostat/folio/internal/snapshot"
)

// Aggregator is the portfolio-level view the API serves.
type Aggregator interface {
	FiatBalance(ctx context.Context, target money.Currency) (money.Value, error)
	IsFunded(ctx context.Context) bool
	Actions() []balance.Action
}

// Handler provides HTTP endpoints for the portfolio API.
type Handler struct {
	aggregator Aggregator
	changes    *change.Provider
	snapshots  *snapshot.Service
	bus        *events.Bus
	base       money.Currency
}

// NewHandler creates a new API handler.
func NewHandler(aggregator Aggregator, changes *change.Provider, snapshots *snapshot.Service, bus *events.Bus, base money.Currency) *Handler {
	return &Handler{
		aggregator: aggregator,
		changes:    changes,
		snapshots:  snapshots,
		bus:        bus,
		base:       base,
	}
}

// GetBalance handles GET /api/v1/portfolio/balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	target := h.base
	if code := r.URL.Query().Get("currency"); code != "" {
		c, err := money.CurrencyByCode(code)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unsupported currency")
			return
		}
		target = c
	}

	total, err := h.aggregator.FiatBalance(r.Context(), target)
	if err != nil {
		slog.Error("failed to aggregate portfolio balance", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"balance": total,
		"funded":  h.aggregator.IsFunded(r.Context()),
		"actions": h.aggregator.Actions(),
	})
}

// GetChange handles GET /api/v1/portfolio/change. A computation failure
// surfaces as {"calculating": true}, not an error status.
func (h *Handler) GetChange(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.changes.Get(r.Context()))
}

// Refresh handles POST /api/v1/refresh: flushes caches via the event bus
// and recomputes the change state.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.bus.Emit(events.TopicRefreshRequested)
	writeJSON(w, http.StatusOK, h.changes.Refresh(r.Context()))
}

// GetLatestSnapshot handles GET /api/v1/snapshots/latest.
func (h *Handler) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	s, err := h.snapshots.GetLatest(r.Context(), snapshot.DefaultSlug)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no snapshots found")
			return
		}
		slog.Error("failed to get latest snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GetSnapshotByDate handles GET /api/v1/snapshots/{date}.
func (h *Handler) GetSnapshotByDate(w http.ResponseWriter, r *http.Request) {
	dateStr := r.PathValue("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	s, err := h.snapshots.GetByDate(r.Context(), snapshot.DefaultSlug, date)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			writeError(w, http.StatusNotFound, "snapshot not found for date")
			return
		}
		slog.Error("failed to get snapshot by date", "date", dateStr, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ListSnapshots handles GET /api/v1/snapshots.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	const maxLimit = 365
	limit := 30
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxLimit)
		}
	}

	snapshots, err := h.snapshots.List(r.Context(), snapshot.DefaultSlug, limit)
	if err != nil {
		slog.Error("failed to list snapshots", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

// GenerateSnapshot handles POST /api/v1/snapshots/generate.
func (h *Handler) GenerateSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := h.snapshots.Generate(r.Context(), snapshot.DefaultSlug, time.Now().UTC().Truncate(24*time.Hour))
	if err != nil {
		slog.Error("failed to generate snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate snapshot")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
