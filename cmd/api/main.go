package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"rental_portal/internal/adapters/auth"
	server "rental_portal/internal/adapters/http_server"
	"rental_portal/internal/adapters/notify"
	"rental_portal/internal/adapters/objectstore"
	"rental_portal/internal/adapters/observability"
	"rental_portal/internal/adapters/payments"
	redisad "rental_portal/internal/adapters/redis"
	"rental_portal/internal/app"
	"rental_portal/internal/domain"
	"rental_portal/internal/shared"
	"rental_portal/internal/storage/memory"
	mysqlrepo "rental_portal/internal/storage/mysql"
)

// store is everything the services need from persistence.
type store interface {
	domain.SlotRepository
	domain.ApplicationRepository
	domain.HouseholdIndex
	domain.PropertyRegistry
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	st := openStore(ctx, cfg)

	// deps
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable; slot listings are not cached")
		} else {
			cache = rc
			defer rc.Close()
		}
	}

	pay, err := payments.New(cfg.PaymentsBase, cfg.PaymentsKey, cfg.PaymentsRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize payments client")
	}

	var notifier domain.Notifier
	if cfg.NotifyFrom != "" {
		n, err := notify.NewSES(ctx, cfg.AWSRegion, cfg.NotifyFrom)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize SES notifier")
		}
		notifier = n
	} else {
		log.Warn().Msg("NOTIFY_FROM is empty; booking notifications are disabled")
	}

	var docs domain.DocumentStore
	if cfg.DocumentsBucket != "" {
		d, err := objectstore.NewS3(ctx, cfg.AWSRegion, cfg.DocumentsBucket, cfg.S3Endpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize S3 document store")
		}
		docs = d
	}

	households := app.NewHouseholdResolver(st, st)
	slots := app.NewSlotService(st, st, notifier, cache, app.SlotConfig{
		AdminEmail:  cfg.NotifyAdminEmail,
		UnitMinutes: cfg.SlotUnitMinutes,
		CacheTTL:    cfg.CacheTTL,
	})
	apps := app.NewApplicationService(st, st, households, docs)
	fees := app.NewFeeService(st, households, pay)
	props := app.NewPropertyService(st)

	// http
	srv := server.New(auth.NewVerifier(cfg.JWTSecret))
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Props: props, Slots: slots, Apps: apps, Fees: fees})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.Store).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}

func openStore(ctx context.Context, cfg shared.Config) store {
	if cfg.Store == "memory" {
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return memory.New()
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	if err := mysqlrepo.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}
	return mysqlrepo.New(db)
}
