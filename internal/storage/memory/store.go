// Package memory is a process-local implementation of the repository ports.
// It backs STORE=memory runs and service tests; BookSlot is a compare-and-set
// under the store mutex.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"rental_portal/internal/domain"
)

var (
	_ domain.SlotRepository        = (*Store)(nil)
	_ domain.ApplicationRepository = (*Store)(nil)
	_ domain.HouseholdIndex        = (*Store)(nil)
	_ domain.PropertyRegistry      = (*Store)(nil)
)

type Store struct {
	mu         sync.Mutex
	slots      map[string]domain.Slot
	apps       map[string]domain.Application
	members    map[memberKey]string
	properties map[string]string
}

type memberKey struct{ property, email string }

func New() *Store {
	return &Store{
		slots:      map[string]domain.Slot{},
		apps:       map[string]domain.Application{},
		members:    map[memberKey]string{},
		properties: map[string]string{},
	}
}

// AddProperty registers a property address for PropertyAddress lookups.
func (s *Store) AddProperty(id, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[id] = address
}

func (s *Store) UpsertProperty(_ context.Context, id, address string) error {
	s.AddProperty(id, address)
	return nil
}

func (s *Store) PropertyAddress(_ context.Context, propertyID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.properties[propertyID]
	if !ok {
		return "", fmt.Errorf("property %s: %w", propertyID, domain.ErrNotFound)
	}
	return addr, nil
}

// ---- slots ----

func (s *Store) InsertSlots(_ context.Context, slots []domain.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range slots {
		if _, ok := s.slots[sl.ID]; ok {
			return fmt.Errorf("slot %s: %w", sl.ID, domain.ErrConflict)
		}
	}
	for _, sl := range slots {
		s.slots[sl.ID] = sl
	}
	return nil
}

func (s *Store) BookSlot(_ context.Context, slotID string, b domain.Booker) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[slotID]
	if !ok || sl.Booked {
		return false, nil
	}
	bk := b
	sl.Booked = true
	sl.Booker = &bk
	s.slots[slotID] = sl
	return true, nil
}

func (s *Store) DeleteSlot(_ context.Context, slotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[slotID]; !ok {
		return fmt.Errorf("slot %s: %w", slotID, domain.ErrNotFound)
	}
	delete(s.slots, slotID)
	return nil
}

func (s *Store) GetSlot(_ context.Context, slotID string) (domain.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[slotID]
	if !ok {
		return domain.Slot{}, fmt.Errorf("slot %s: %w", slotID, domain.ErrNotFound)
	}
	return sl, nil
}

func (s *Store) ListSlotsByDate(_ context.Context, propertyID, date string) ([]domain.Slot, error) {
	return s.filterSlots(func(sl domain.Slot) bool {
		return sl.PropertyID == propertyID && sl.Date == date
	}), nil
}

func (s *Store) ListSlots(_ context.Context, propertyID string, onlyAvailable bool) ([]domain.Slot, error) {
	return s.filterSlots(func(sl domain.Slot) bool {
		return sl.PropertyID == propertyID && (!onlyAvailable || !sl.Booked)
	}), nil
}

func (s *Store) filterSlots(keep func(domain.Slot) bool) []domain.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Slot
	for _, sl := range s.slots {
		if keep(sl) {
			out = append(out, sl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// ---- applications ----

func (s *Store) CreateApplication(_ context.Context, a domain.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.apps {
		if cur.PropertyID == a.PropertyID && cur.ApplicantEmail == a.ApplicantEmail {
			return fmt.Errorf("application for %s: %w", a.ApplicantEmail, domain.ErrConflict)
		}
	}
	s.apps[a.ID] = a.Clone()
	return nil
}

func (s *Store) SaveApplication(_ context.Context, a domain.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[a.ID]; !ok {
		return fmt.Errorf("application %s: %w", a.ID, domain.ErrNotFound)
	}
	a.UpdatedAt = time.Now().UTC()
	s.apps[a.ID] = a.Clone()
	return nil
}

func (s *Store) DeleteApplication(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[id]; !ok {
		return fmt.Errorf("application %s: %w", id, domain.ErrNotFound)
	}
	delete(s.apps, id)
	return nil
}

func (s *Store) AssignHousehold(_ context.Context, propertyID, householdID string, emails []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]bool{}
	for _, e := range emails {
		want[e] = true
	}
	var n int64
	for id, a := range s.apps {
		if a.PropertyID != propertyID || a.IsPrincipal || !want[a.ApplicantEmail] {
			continue
		}
		h := householdID
		a.HouseholdID = &h
		s.apps[id] = a
		n++
	}
	return n, nil
}

func (s *Store) GetApplication(_ context.Context, id string) (domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return domain.Application{}, fmt.Errorf("application %s: %w", id, domain.ErrNotFound)
	}
	return a.Clone(), nil
}

func (s *Store) ListByProperty(_ context.Context, propertyID string) ([]domain.Application, error) {
	return s.filterApps(func(a domain.Application) bool { return a.PropertyID == propertyID }), nil
}

func (s *Store) ListHousehold(_ context.Context, propertyID, householdID string) ([]domain.Application, error) {
	return s.filterApps(func(a domain.Application) bool {
		return a.PropertyID == propertyID && a.Household() == householdID
	}), nil
}

func (s *Store) ListCompletedPrincipals(_ context.Context) ([]domain.Application, error) {
	return s.filterApps(func(a domain.Application) bool {
		return a.IsPrincipal && a.PaymentCompleted() && len(a.CoApplicantEmails) > 0
	}), nil
}

func (s *Store) filterApps(keep func(domain.Application) bool) []domain.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Application
	for _, a := range s.apps {
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ---- household index ----

func (s *Store) SetHouseholdMembers(_ context.Context, propertyID, householdID string, emails []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.members {
		if k.property == propertyID && v == householdID {
			delete(s.members, k)
		}
	}
	for _, e := range emails {
		s.members[memberKey{propertyID, e}] = householdID
	}
	return nil
}

func (s *Store) LookupHousehold(_ context.Context, propertyID, email string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.members[memberKey{propertyID, email}]
	return h, ok, nil
}
