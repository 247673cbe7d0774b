// Command terminald runs the point-of-sale terminal sync daemon: the local
// HTTP API for the till UI, the durable offline queue, the connectivity
// monitor, and the automatic queue drain.
//
// Startup order matters: the local store opens before anything else so a
// terminal that boots without connectivity can still take orders. A store
// that fails to open is not fatal; the daemon degrades to online-only
// operation and says so loudly in the logs.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/looppos/terminal-sync/internal/client"
	"github.com/looppos/terminal-sync/internal/config"
	httpapi "github.com/looppos/terminal-sync/internal/http"
	"github.com/looppos/terminal-sync/internal/idgen"
	"github.com/looppos/terminal-sync/internal/netmon"
	"github.com/looppos/terminal-sync/internal/observability"
	"github.com/looppos/terminal-sync/internal/printer"
	"github.com/looppos/terminal-sync/internal/repo"
	"github.com/looppos/terminal-sync/internal/services"
	"github.com/looppos/terminal-sync/internal/session"
	"github.com/looppos/terminal-sync/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Info().
		Str("version", version).
		Str("station_id", cfg.StationID).
		Msg("terminald starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version, cfg.StationID)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Local store first: an offline boot must still be able to take orders.
	db, err := repo.OpenSQLite(cfg.QueuePath)
	if err != nil {
		// Degraded mode: online commits only, no queue, no mirror.
		log.Error().Err(err).Str("path", cfg.QueuePath).
			Msg("offline store unavailable, running online-only")
		db = nil
	} else {
		if cfg.OTEL.Enabled {
			if err := repo.EnableTracing(db); err != nil {
				log.Warn().Err(err).Msg("gorm tracing not enabled")
			}
		}
		if err := repo.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		if err := repo.EnsureMetaDefaults(ctx, db, time.Now()); err != nil {
			log.Fatal().Err(err).Msg("metadata seed failed")
		}
	}

	api := client.New(cfg.Remote.BaseURL, cfg.Remote.Timeout)
	mon := netmon.New(api, cfg.Remote.ProbeInterval)

	var prn printer.Printer = printer.Nop{}
	if cfg.PrinterURL != "" {
		prn = printer.NewHTTP(cfg.PrinterURL, cfg.Remote.Timeout)
	}

	svc := services.NewSyncService(db, api, mon, idgen.NewAllocator(db), prn,
		session.Context{StationID: cfg.StationID},
		session.Rates{Cash: cfg.TaxCashRate, Card: cfg.TaxCardRate})

	// Background loops: connectivity probing and drain-on-reconnect. The
	// subscription is taken before Run so the first transition is not missed.
	transitions := mon.Subscribe()
	go mon.Run(ctx)
	go svc.RunAutoSync(ctx, transitions)

	// Align with the backend when it is reachable at boot. Failure is fine:
	// the terminal continues from its persisted last-known id.
	if err := svc.Bootstrap(ctx); err != nil {
		log.Warn().Err(err).Msg("startup sync skipped")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, svc, mon, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("terminal API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	log.Info().Msg("terminald stopped")
}
