//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"rental_portal/internal/app"
	"rental_portal/internal/domain"
	mysqlrepo "rental_portal/internal/storage/mysql"
)

// startMySQL runs an isolated MySQL, applies the embedded migrations and
// returns a ready repo.
func startMySQL(t *testing.T) *mysqlrepo.Repo {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=rental",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "rental")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(32)

	if err := mysqlrepo.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return mysqlrepo.New(db)
}

func TestRepo_MySQL_SlotsAndHouseholds(t *testing.T) {
	repo := startMySQL(t)
	ctx := context.Background()

	if err := repo.UpsertProperty(ctx, "prop-1", "12 Harbour Road"); err != nil {
		t.Fatalf("UpsertProperty: %v", err)
	}

	admin := domain.Caller{Email: "admin@example.com", Admin: true}
	slots := app.NewSlotService(repo, repo, nil, nil, app.SlotConfig{UnitMinutes: 10})
	created, err := slots.CreateSlots(ctx, admin, "prop-1", "2025-03-01", "09:00", "10:00")
	if err != nil {
		t.Fatalf("CreateSlots: %v", err)
	}
	if len(created) != 6 {
		t.Fatalf("created %d slots", len(created))
	}

	_, err = slots.CreateSlots(ctx, admin, "prop-1", "2025-03-01", "09:45", "10:15")
	var ce *domain.ConflictError
	if !errors.As(err, &ce) || len(ce.Slots) != 2 {
		t.Fatalf("expected conflict with 2 slots, got %v", err)
	}

	// N racing bookings against the real store: exactly one wins.
	const n = 16
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := slots.BookSlot(ctx, created[0].ID, domain.Booker{Name: fmt.Sprintf("v%d", i), FamilySize: 1, Contact: "x"})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if wins.Load() != 1 || conflicts.Load() != n-1 {
		t.Fatalf("wins=%d conflicts=%d", wins.Load(), conflicts.Load())
	}

	avail, err := repo.ListSlots(ctx, "prop-1", true)
	if err != nil || len(avail) != 5 {
		t.Fatalf("available: %d %v", len(avail), err)
	}

	// Household propagation through the index table.
	resolver := app.NewHouseholdResolver(repo, repo)
	apps := app.NewApplicationService(repo, repo, resolver, nil)
	kim, err := apps.Create(ctx, domain.Caller{Email: "kim@example.com"}, app.NewApplication{PropertyID: "prop-1", ApplicantName: "Kim"})
	if err != nil {
		t.Fatalf("create kim: %v", err)
	}
	if kim.HouseholdID != nil {
		t.Fatalf("kim resolved too early: %v", *kim.HouseholdID)
	}
	pat, err := apps.Create(ctx, domain.Caller{Email: "pat@example.com"}, app.NewApplication{
		PropertyID: "prop-1", ApplicantName: "Pat", IsPrincipal: true, NumberOfAdults: 2,
		CoApplicantEmails: []string{"kim@example.com"},
	})
	if err != nil {
		t.Fatalf("create pat: %v", err)
	}
	got, err := repo.GetApplication(ctx, kim.ID)
	if err != nil || got.Household() != "pat@example.com" {
		t.Fatalf("kim household: %q %v", got.Household(), err)
	}

	_, err = apps.Create(ctx, domain.Caller{Email: "pat@example.com"}, app.NewApplication{
		PropertyID: "prop-1", ApplicantName: "Pat again", IsPrincipal: true, NumberOfAdults: 1,
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}

	principals, err := repo.ListCompletedPrincipals(ctx)
	if err != nil || len(principals) != 0 {
		t.Fatalf("no principal has paid yet: %d %v", len(principals), err)
	}
	pat.PaymentStatus = domain.PaymentCompleted
	if err := repo.SaveApplication(ctx, pat); err != nil {
		t.Fatalf("save pat: %v", err)
	}
	principals, err = repo.ListCompletedPrincipals(ctx)
	if err != nil || len(principals) != 1 {
		t.Fatalf("completed principals: %d %v", len(principals), err)
	}
}
