package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type SlotRepository interface {
	// Write paths
	InsertSlots(ctx context.Context, slots []Slot) error
	// BookSlot flips booked false->true in one conditional update and reports
	// whether a row matched.
	BookSlot(ctx context.Context, slotID string, b Booker) (bool, error)
	DeleteSlot(ctx context.Context, slotID string) error

	// Read paths
	GetSlot(ctx context.Context, slotID string) (Slot, error)
	ListSlotsByDate(ctx context.Context, propertyID, date string) ([]Slot, error)
	ListSlots(ctx context.Context, propertyID string, onlyAvailable bool) ([]Slot, error)
}

type ApplicationRepository interface {
	// Write paths
	CreateApplication(ctx context.Context, a Application) error
	// SaveApplication overwrites the whole record (last write wins).
	SaveApplication(ctx context.Context, a Application) error
	DeleteApplication(ctx context.Context, id string) error
	// AssignHousehold sets householdID on non-principal applications of the
	// property whose email is in emails; returns the number updated.
	AssignHousehold(ctx context.Context, propertyID, householdID string, emails []string) (int64, error)

	// Read paths
	GetApplication(ctx context.Context, id string) (Application, error)
	ListByProperty(ctx context.Context, propertyID string) ([]Application, error)
	ListHousehold(ctx context.Context, propertyID, householdID string) ([]Application, error)
	ListCompletedPrincipals(ctx context.Context) ([]Application, error)
}

// HouseholdIndex maps (property, member email) to a household id. It is
// rewritten whenever a principal declares or changes its co-applicants.
type HouseholdIndex interface {
	SetHouseholdMembers(ctx context.Context, propertyID, householdID string, emails []string) error
	LookupHousehold(ctx context.Context, propertyID, email string) (string, bool, error)
}

// HouseholdReader is the read-only view the fee engine needs.
type HouseholdReader interface {
	Members(ctx context.Context, propertyID, householdID string) ([]Application, error)
	Principal(ctx context.Context, propertyID, householdID string) (Application, bool, error)
}

type PropertyDirectory interface {
	PropertyAddress(ctx context.Context, propertyID string) (string, error)
}

// PropertyRegistry adds the admin write path to PropertyDirectory.
type PropertyRegistry interface {
	PropertyDirectory
	UpsertProperty(ctx context.Context, id, address string) error
}

type Notifier interface {
	NotifyBooking(ctx context.Context, adminAddress string, n BookingNotice) error
}

type Payment struct {
	ID        string
	Succeeded bool
	Amount    decimal.Decimal
	Currency  string
}

type PaymentProvider interface {
	GetPayment(ctx context.Context, ref string) (Payment, error)
}

// DocumentStore deletes uploaded document objects.
type DocumentStore interface {
	RemoveDocuments(ctx context.Context, urls []string) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Caller is the authenticated identity behind a request. The zero value is
// an anonymous caller.
type Caller struct {
	Email string
	Admin bool
}

func (c Caller) Anonymous() bool { return c.Email == "" && !c.Admin }
