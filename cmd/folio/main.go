package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/foliostat/folio/internal/api"
	"github.com/foliostat/folio/internal/balance"
	"github.com/foliostat/folio/internal/cache"
	"github.com/foliostat/folio/internal/change"
	"github.com/foliostat/folio/internal/config"
	"github.com/foliostat/folio/internal/database"
	"github.com/foliostat/folio/internal/events"
	"github.com/foliostat/folio/internal/export"
	"github.com/foliostat/folio/internal/group"
	"github.com/foliostat/folio/internal/metrics"
	"github.com/foliostat/folio/internal/money"
	"github.com/foliostat/folio/internal/rates"
	"github.com/foliostat/folio/internal/snapshot"
	"github.com/foliostat/folio/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	app := &cli.App{
		Name:  "folio",
		Usage: "portfolio balance aggregation and history service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API with background workers",
				Action: runServe,
			},
			{
				Name:   "snapshot",
				Usage:  "generate a single portfolio snapshot and exit",
				Action: runSnapshot,
			},
			{
				Name:  "export",
				Usage: "export the portfolio report from stored snapshots and exit",
				Action: runExport,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out",
						Usage: "write an .xlsx workbook to this path instead of Google Sheets",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// app bundles the wired services a command works with.
type app struct {
	cfg       config.Config
	pool      *pgxpool.Pool
	collector *metrics.Collector
	bus       *events.Bus
	portfolio *instrumentedGroup
	rateCache *rates.CachedSource
	snapshots *snapshot.Service
	changes   *change.Provider
	base      money.Currency
	pairs     []rates.Pair
}

func setup(ctx context.Context) (*app, error) {
	cfg := config.Load()

	base, err := money.CurrencyByCode(cfg.BaseCurrency)
	if err != nil {
		return nil, fmt.Errorf("invalid BASE_CURRENCY: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	accounts, err := config.LoadAccounts(cfg.AccountsFile)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("loading accounts: %w", err)
	}

	collector := metrics.NewCollector()

	balanceClient := balance.NewClient(cfg.BalanceAPIURL, cfg.BalanceRetryMax, cfg.BalanceRetryDelay)
	sources := make([]balance.Source, 0, len(accounts))
	pairSet := make(map[rates.Pair]bool)
	for _, account := range accounts {
		sources = append(sources, balance.NewClientSource(account, balanceClient))
		pairSet[rates.Pair{Base: account.Currency.Code, Quote: base.Code}] = true
	}
	pairs := make([]rates.Pair, 0, len(pairSet))
	for pair := range pairSet {
		pairs = append(pairs, pair)
	}

	rateClient := rates.NewClient(cfg.RateAPIURL, cfg.RateRetryDelay, cfg.RateRetryMax)
	rateCache := rates.NewCachedSource(rateClient, cfg.RateCacheTTL, cache.WithRecorder(collector))

	portfolio := &instrumentedGroup{
		group:     group.New("portfolio", sources, rateCache, cfg.MemberTimeout),
		collector: collector,
	}

	snapshotRepo := snapshot.NewPgRepository(pool)
	snapshotSvc := snapshot.NewService(portfolio, snapshotRepo, base)
	if _, err := snapshotRepo.EnsurePortfolio(ctx, snapshot.DefaultSlug, "Main Portfolio", "aggregated wallet balances"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring portfolio row: %w", err)
	}

	changes := change.NewProvider(portfolio, snapshotSvc, base,
		cfg.ChangeLookback, cfg.ChangeCacheTTL, cache.WithRecorder(collector))

	return &app{
		cfg:       cfg,
		pool:      pool,
		collector: collector,
		bus:       events.NewBus(),
		portfolio: portfolio,
		rateCache: rateCache,
		snapshots: snapshotSvc,
		changes:   changes,
		base:      base,
		pairs:     pairs,
	}, nil
}

// exportWriter picks the configured report destination, or nil when export is
// not configured.
func (a *app) exportWriter(ctx context.Context, xlsxPath string) (export.ReportWriter, error) {
	if xlsxPath == "" {
		xlsxPath = a.cfg.ExportFile
	}
	if xlsxPath != "" {
		return export.NewXLSXWriter(xlsxPath), nil
	}
	if a.cfg.SheetsSpreadsheetID != "" && a.cfg.SheetsCredentials != "" {
		return export.NewSheetsWriter(ctx, a.cfg.SheetsSpreadsheetID, a.cfg.SheetsCredentials)
	}
	return nil, nil
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.pool.Close()

	writer, err := a.exportWriter(ctx, "")
	if err != nil {
		return fmt.Errorf("configuring export: %w", err)
	}
	var hook worker.AfterSnapshotHook
	if writer != nil {
		hook = export.NewService(snapshot.NewPgRepository(a.pool), writer)
	}

	snapshotWorker := worker.NewSnapshotWorker(a.snapshots, a.cfg.SnapshotInterval, a.bus, hook)
	go snapshotWorker.Run(ctx)

	rateWorker := worker.NewRateWorker(a.rateCache, a.pairs, a.cfg.RateWorkerInterval)
	go rateWorker.Run(ctx)

	invalidationWorker := worker.NewInvalidationWorker(a.bus, a.rateCache, a.changes)
	go invalidationWorker.Run(ctx)

	go countSnapshotWrites(ctx, a.bus, a.collector)

	if a.cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, generate endpoint is unprotected")
	}

	handler := api.NewHandler(a.portfolio, a.changes, a.snapshots, a.bus, a.base)
	srv := api.NewServer(a.cfg.HTTPPort, handler, a.collector.Handler(), a.cfg.AdminAPIKey)

	go func() {
		slog.Info("HTTP server listening", "port", a.cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func runSnapshot(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.pool.Close()

	date := time.Now().UTC().Truncate(24 * time.Hour)
	data, err := a.snapshots.Generate(ctx, snapshot.DefaultSlug, date)
	if err != nil {
		return fmt.Errorf("generating snapshot: %w", err)
	}
	a.collector.SnapshotWritten()

	slog.Info("snapshot written",
		"date", date.Format("2006-01-02"),
		"total", data.Total.Minor(),
		"currency", data.Total.Currency().Code,
		"funded", data.Funded)
	return nil
}

func runExport(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.pool.Close()

	writer, err := a.exportWriter(ctx, c.String("out"))
	if err != nil {
		return fmt.Errorf("configuring export: %w", err)
	}
	if writer == nil {
		return fmt.Errorf("no export destination configured: set --out, EXPORT_XLSX_FILE, or SHEETS_SPREADSHEET_ID")
	}

	latest, err := a.snapshots.GetLatest(ctx, snapshot.DefaultSlug)
	if err != nil {
		return fmt.Errorf("loading latest snapshot: %w", err)
	}
	var data snapshot.PortfolioData
	if err := unmarshalSnapshot(latest, &data); err != nil {
		return err
	}

	svc := export.NewService(snapshot.NewPgRepository(a.pool), writer)
	if err := svc.Export(ctx, data); err != nil {
		return fmt.Errorf("exporting report: %w", err)
	}

	slog.Info("report exported", "date", data.Date.Format("2006-01-02"))
	return nil
}

// countSnapshotWrites feeds the snapshot-written counter from bus events.
func countSnapshotWrites(ctx context.Context, bus *events.Bus, collector *metrics.Collector) {
	written := bus.Subscribe(events.TopicSnapshotWritten)
	for {
		select {
		case <-ctx.Done():
			return
		case <-written:
			collector.SnapshotWritten()
		}
	}
}
