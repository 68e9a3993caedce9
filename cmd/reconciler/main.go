package main

import (
	"context"
	"database/sql"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"rental_portal/internal/adapters/observability"
	"rental_portal/internal/app"
	"rental_portal/internal/domain"
	"rental_portal/internal/shared"
	mysqlrepo "rental_portal/internal/storage/mysql"
)

// reconciler re-runs the co-applicant payment fan-out for every principal
// whose payment is completed. It is safe to run repeatedly.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	log.Info().Int("workers", cfg.ReconcileWorkers).Msg("reconciler starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	fees := app.NewFeeService(repo, app.NewHouseholdResolver(repo, repo), nil)

	principals, err := repo.ListCompletedPrincipals(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("listing paid principals failed")
	}

	sum := reconcile(ctx, fees, principals, cfg.ReconcileWorkers)
	log.Info().
		Int("principals", len(principals)).
		Int("updated", sum.updated).
		Int("skipped", sum.skipped).
		Int("failed", sum.failed).
		Msg("reconciliation completed")
}

type householdReconciler interface {
	ReconcileHousehold(ctx context.Context, principal domain.Application) app.FanoutReport
}

type summary struct{ updated, skipped, failed int }

func reconcile(ctx context.Context, r householdReconciler, principals []domain.Application, workers int) summary {
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sum summary
	)

	for _, p := range principals {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("reconciliation interrupted")
			break
		}

		wg.Add(1)
		go func(p domain.Application) {
			defer wg.Done()
			defer sem.Release(1)

			rep := r.ReconcileHousehold(ctx, p)
			mu.Lock()
			sum.updated += len(rep.Updated)
			sum.skipped += len(rep.Skipped)
			sum.failed += len(rep.Failed)
			mu.Unlock()

			if len(rep.Failed) > 0 {
				log.Warn().Str("application", p.ID).Strs("failed", rep.Failed).Msg("household reconcile incomplete")
				return
			}
			if len(rep.Updated) > 0 {
				log.Info().Str("application", p.ID).Strs("updated", rep.Updated).Msg("household reconciled")
			}
		}(p)
	}

	wg.Wait()
	return sum
}
