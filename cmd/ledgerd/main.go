// Command ledgerd runs the exchange ledger data service. It selects a
// persistence backend at startup (spreadsheet or relational), runs the
// one-shot legacy group migration on the spreadsheet path, and optionally
// serves Prometheus metrics until interrupted.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/xchangebot/ledger/internal/cache"
	"github.com/xchangebot/ledger/internal/config"
	"github.com/xchangebot/ledger/internal/metrics"
	"github.com/xchangebot/ledger/internal/repo"
	"github.com/xchangebot/ledger/internal/services"
	"github.com/xchangebot/ledger/internal/sheets"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	log := newLogger(cfg)
	ctx := context.Background()

	var (
		backend services.Backend
		kind    services.BackendKind
		c       *cache.Manager
	)

	if cfg.UseDatabase {
		kind = services.BackendDatabase
		c = cache.New(cfg.CacheTTL, cache.WithHooks(metrics.CacheHooks(string(kind))))

		db, err := repo.OpenSQLite(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
		}
		if err := repo.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("migrate database schema")
		}
		backend = repo.New(db, c, log)
		log.Info().Str("path", cfg.DBPath).Msg("using relational backend")
	} else {
		kind = services.BackendSheets
		c = cache.New(cfg.CacheTTL, cache.WithHooks(metrics.CacheHooks(string(kind))))

		store := sheets.New(ctx, sheets.Config{
			CredentialsFile: cfg.Sheets.CredentialsFile,
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			SheetName:       cfg.Sheets.SheetName,
			LegacyGroups:    cfg.LegacyGroupMap,
		}, c, log)
		backend = store
		log.Info().Bool("offline", store.Offline()).Msg("using spreadsheet backend")
	}

	if kind == services.BackendSheets && len(cfg.LegacyGroupMap) > 0 {
		n, err := services.MigrateLegacyGroups(ctx, backend, cfg.LegacyGroupMap, log)
		if err != nil {
			log.Error().Err(err).Msg("legacy group migration failed")
		} else if n > 0 {
			log.Info().Int("migrated", n).Msg("legacy groups migrated")
		}
	}

	mgr := services.NewManager(backend, kind, cfg.LegacyGroupMap, log)

	// Startup probe: exercise the read path once so backend problems show up
	// in the log right away instead of on the first user request.
	if rate, ok, err := mgr.CurrentRate(ctx, 0); err != nil {
		log.Warn().Err(err).Msg("startup rate probe failed")
	} else if ok {
		log.Info().Float64("rate", rate).Msg("current exchange rate")
	} else {
		log.Info().Msg("no exchange rate configured yet")
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listener started")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics listener")
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	st := c.Stats()
	log.Info().
		Int("entries", st.Size).
		Int64("hits", st.Hits).
		Int64("misses", st.Misses).
		Float64("hit_rate", st.HitRate).
		Msg("shutting down")
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.LogPretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
