package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rental_portal/internal/app"
	"rental_portal/internal/domain"
	"rental_portal/internal/storage/memory"
)

// ---- fakes ----

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]domain.Slot
	hits  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if d, ok := dst.(*[]domain.Slot); ok {
		*d = append([]domain.Slot(nil), v...)
	}
	c.hits++
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]domain.Slot{}
	}
	c.store[key] = v.([]domain.Slot)
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []domain.BookingNotice
	to   []string
	err  error
}

func (n *fakeNotifier) NotifyBooking(ctx context.Context, admin string, notice domain.BookingNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.to = append(n.to, admin)
	n.sent = append(n.sent, notice)
	return nil
}

type fakePayments map[string]domain.Payment

func (f fakePayments) GetPayment(ctx context.Context, ref string) (domain.Payment, error) {
	p, ok := f[ref]
	if !ok {
		return domain.Payment{}, domain.ErrNotFound
	}
	return p, nil
}

type fakeDocuments struct {
	removed []string
}

func (f *fakeDocuments) RemoveDocuments(ctx context.Context, urls []string) error {
	f.removed = append(f.removed, urls...)
	return nil
}

// flakyStore fails SaveApplication for the listed application ids.
type flakyStore struct {
	*memory.Store
	failSave map[string]bool
}

func (f *flakyStore) SaveApplication(ctx context.Context, a domain.Application) error {
	if f.failSave[a.ID] {
		return errors.New("db error: connection reset")
	}
	return f.Store.SaveApplication(ctx, a)
}

// reloadFailStore loses its connection right after a booking commits.
type reloadFailStore struct {
	*memory.Store
	mu     sync.Mutex
	booked bool
}

func (f *reloadFailStore) BookSlot(ctx context.Context, slotID string, b domain.Booker) (bool, error) {
	ok, err := f.Store.BookSlot(ctx, slotID, b)
	f.mu.Lock()
	f.booked = f.booked || ok
	f.mu.Unlock()
	return ok, err
}

func (f *reloadFailStore) GetSlot(ctx context.Context, slotID string) (domain.Slot, error) {
	f.mu.Lock()
	down := f.booked
	f.mu.Unlock()
	if down {
		return domain.Slot{}, errors.New("db error: connection reset")
	}
	return f.Store.GetSlot(ctx, slotID)
}

// ---- fixtures ----

const (
	propertyID = "prop-1"
	adminEmail = "lettings@example.com"
)

var (
	admin = domain.Caller{Email: "admin@example.com", Admin: true}
)

func as(email string) domain.Caller { return domain.Caller{Email: email} }

type env struct {
	store    *memory.Store
	cache    *fakeCache
	notifier *fakeNotifier
	docs     *fakeDocuments
	payments fakePayments
	resolver *app.HouseholdResolver
	slots    *app.SlotService
	apps     *app.ApplicationService
	fees     *app.FeeService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memory.New()
	st.AddProperty(propertyID, "12 Harbour Road")
	e := &env{
		store:    st,
		cache:    &fakeCache{},
		notifier: &fakeNotifier{},
		docs:     &fakeDocuments{},
		payments: fakePayments{
			"pi_ok":     {ID: "pi_ok", Succeeded: true, Amount: decimal.RequireFromString("144.00"), Currency: "usd"},
			"pi_failed": {ID: "pi_failed", Succeeded: false},
		},
	}
	e.resolver = app.NewHouseholdResolver(st, st)
	e.slots = app.NewSlotService(st, st, e.notifier, e.cache, app.SlotConfig{
		AdminEmail:  adminEmail,
		UnitMinutes: 10,
		CacheTTL:    time.Minute,
	})
	e.apps = app.NewApplicationService(st, st, e.resolver, e.docs)
	e.fees = app.NewFeeService(st, e.resolver, e.payments)
	return e
}

func (e *env) principal(t *testing.T, email string, adults int, co ...string) domain.Application {
	t.Helper()
	a, err := e.apps.Create(context.Background(), as(email), app.NewApplication{
		PropertyID:        propertyID,
		ApplicantName:     "Principal " + email,
		ApplicantEmail:    email,
		IsPrincipal:       true,
		NumberOfAdults:    adults,
		CoApplicantEmails: co,
	})
	if err != nil {
		t.Fatalf("create principal %s: %v", email, err)
	}
	return a
}

func (e *env) coApplicant(t *testing.T, email string) domain.Application {
	t.Helper()
	a, err := e.apps.Create(context.Background(), as(email), app.NewApplication{
		PropertyID:     propertyID,
		ApplicantName:  "Co " + email,
		ApplicantEmail: email,
	})
	if err != nil {
		t.Fatalf("create co-applicant %s: %v", email, err)
	}
	return a
}

func (e *env) reload(t *testing.T, id string) domain.Application {
	t.Helper()
	a, err := e.store.GetApplication(context.Background(), id)
	if err != nil {
		t.Fatalf("reload %s: %v", id, err)
	}
	return a
}
