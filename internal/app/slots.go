package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"rental_portal/internal/adapters/observability"
	"rental_portal/internal/domain"
)

const DefaultUnitMinutes = 10

const notifyTimeout = 10 * time.Second

type SlotConfig struct {
	AdminEmail  string
	UnitMinutes int
	CacheTTL    time.Duration
}

type SlotService struct {
	repo     domain.SlotRepository
	props    domain.PropertyDirectory
	notifier domain.Notifier
	cache    domain.Cache
	cfg      SlotConfig
	now      func() time.Time
}

// NewSlotService wires the slot engine. notifier and cache may be nil.
func NewSlotService(r domain.SlotRepository, p domain.PropertyDirectory, n domain.Notifier, c domain.Cache, cfg SlotConfig) *SlotService {
	if cfg.UnitMinutes <= 0 {
		cfg.UnitMinutes = DefaultUnitMinutes
	}
	return &SlotService{repo: r, props: p, notifier: n, cache: c, cfg: cfg, now: time.Now}
}

// SplitRange cuts [start,end) into unitMinutes-wide ranges. A trailing
// remainder shorter than one unit is dropped.
func SplitRange(date, start, end string, unitMinutes int) ([]domain.TimeRange, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD", domain.ErrValidation, date)
	}
	if unitMinutes <= 0 {
		return nil, fmt.Errorf("%w: unit must be positive", domain.ErrValidation)
	}
	from, err := parseClock(start)
	if err != nil {
		return nil, err
	}
	to, err := parseClock(end)
	if err != nil {
		return nil, err
	}
	if to <= from {
		return nil, fmt.Errorf("%w: end %s must be after start %s", domain.ErrValidation, end, start)
	}

	var out []domain.TimeRange
	for cur := from; cur+unitMinutes <= to; cur += unitMinutes {
		out = append(out, domain.TimeRange{Start: formatClock(cur), End: formatClock(cur + unitMinutes)})
	}
	return out, nil
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	bad := fmt.Errorf("%w: time %q must be HH:MM", domain.ErrValidation, s)
	h, m, ok := strings.Cut(s, ":")
	if !ok || !twoDigits(h) || !twoDigits(m) {
		return 0, bad
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, bad
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, bad
	}
	return hh*60 + mm, nil
}

func twoDigits(s string) bool {
	return len(s) == 2 && s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9'
}

func formatClock(min int) string { return fmt.Sprintf("%02d:%02d", min/60, min%60) }

// overlaps applies the four collision rules of an existing [s,e) against a
// requested [S,E).
func overlaps(s, e, S, E int) bool {
	switch {
	case s == S && e == E:
		return true
	case s >= S && s < E:
		return true
	case e > S && e <= E:
		return true
	case s <= S && e >= E:
		return true
	}
	return false
}

// CreateSlots splits the window and persists one unbooked slot per unit.
// The overlap check and the insert are separate steps: two admins creating
// slots for the same property and date at once can both pass the check.
func (s *SlotService) CreateSlots(ctx context.Context, caller domain.Caller, propertyID, date, start, end string) ([]domain.Slot, error) {
	if !caller.Admin {
		return nil, fmt.Errorf("%w: creating slots requires an administrator", domain.ErrForbidden)
	}
	if strings.TrimSpace(propertyID) == "" {
		return nil, fmt.Errorf("%w: propertyId is required", domain.ErrValidation)
	}
	units, err := SplitRange(date, start, end, s.cfg.UnitMinutes)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: %s-%s is shorter than one %d-minute slot", domain.ErrValidation, start, end, s.cfg.UnitMinutes)
	}
	if _, err := s.props.PropertyAddress(ctx, propertyID); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListSlotsByDate(ctx, propertyID, date)
	if err != nil {
		return nil, err
	}
	from, _ := parseClock(start)
	to, _ := parseClock(end)
	var clash []domain.Slot
	for _, sl := range existing {
		es, err1 := parseClock(sl.StartTime)
		ee, err2 := parseClock(sl.EndTime)
		if err1 != nil || err2 != nil {
			log.Warn().Str("slot", sl.ID).Msg("stored slot has malformed times; skipping overlap check")
			continue
		}
		if overlaps(es, ee, from, to) {
			clash = append(clash, sl)
		}
	}
	if len(clash) > 0 {
		return nil, &domain.ConflictError{Msg: "requested range overlaps existing slots", Slots: clash}
	}

	created := s.now().UTC()
	slots := make([]domain.Slot, 0, len(units))
	for _, u := range units {
		slots = append(slots, domain.Slot{
			ID:         uuid.NewString(),
			PropertyID: propertyID,
			Date:       date,
			StartTime:  u.Start,
			EndTime:    u.End,
			CreatedAt:  created,
		})
	}
	if err := s.repo.InsertSlots(ctx, slots); err != nil {
		return nil, err
	}
	s.invalidate(ctx, propertyID)

	log.Info().Str("property", propertyID).Str("date", date).Int("count", len(slots)).Msg("slots created")
	return slots, nil
}

// BookSlot claims a slot with a single conditional update. Losing a race, or
// naming a slot that does not exist, yields a Conflict; callers must not retry.
func (s *SlotService) BookSlot(ctx context.Context, slotID string, b domain.Booker) (domain.Slot, error) {
	b.Name = strings.TrimSpace(b.Name)
	b.Contact = strings.TrimSpace(b.Contact)
	switch {
	case b.Name == "":
		return domain.Slot{}, fmt.Errorf("%w: booker name is required", domain.ErrValidation)
	case b.Contact == "":
		return domain.Slot{}, fmt.Errorf("%w: booker contact is required", domain.ErrValidation)
	case b.FamilySize < 1:
		return domain.Slot{}, fmt.Errorf("%w: family size must be at least 1", domain.ErrValidation)
	}

	// Property, date and times never change, so they are read before the
	// claim; only booked/booker is decided by the conditional update.
	before, err := s.repo.GetSlot(ctx, slotID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		observability.ObserveBooking("conflict")
		return domain.Slot{}, &domain.ConflictError{Msg: "slot already booked or does not exist"}
	case err != nil:
		observability.ObserveBooking("error")
		return domain.Slot{}, err
	}

	ok, err := s.repo.BookSlot(ctx, slotID, b)
	if err != nil {
		observability.ObserveBooking("error")
		return domain.Slot{}, err
	}
	if !ok {
		observability.ObserveBooking("conflict")
		return domain.Slot{}, &domain.ConflictError{Msg: "slot already booked or does not exist"}
	}
	observability.ObserveBooking("booked")

	// The booking is committed; nothing below may turn it into a failure.
	sl, err := s.repo.GetSlot(ctx, slotID)
	if err != nil {
		log.Warn().Err(err).Str("slot", slotID).Msg("booked slot could not be reloaded")
		sl = before
		sl.Booked = true
		sl.Booker = &b
	}
	s.invalidate(ctx, sl.PropertyID)
	s.notifyBooking(ctx, sl)
	return sl, nil
}

func (s *SlotService) notifyBooking(ctx context.Context, sl domain.Slot) {
	if s.notifier == nil || s.cfg.AdminEmail == "" {
		observability.ObserveNotification("skipped")
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	addr, err := s.props.PropertyAddress(ctx, sl.PropertyID)
	if err != nil {
		log.Warn().Err(err).Str("property", sl.PropertyID).Msg("property address lookup failed for booking notice")
		addr = sl.PropertyID
	}
	n := domain.BookingNotice{
		SlotID:          sl.ID,
		PropertyID:      sl.PropertyID,
		PropertyAddress: addr,
		Date:            sl.Date,
		StartTime:       sl.StartTime,
		EndTime:         sl.EndTime,
	}
	if sl.Booker != nil {
		n.Booker = *sl.Booker
	}
	if err := s.notifier.NotifyBooking(ctx, s.cfg.AdminEmail, n); err != nil {
		observability.ObserveNotification("failed")
		log.Warn().Err(err).Str("slot", sl.ID).Msg("booking notification failed")
		return
	}
	observability.ObserveNotification("sent")
}

func (s *SlotService) ListAvailable(ctx context.Context, propertyID string) ([]domain.Slot, error) {
	return s.list(ctx, propertyID, true)
}

func (s *SlotService) ListAll(ctx context.Context, caller domain.Caller, propertyID string) ([]domain.Slot, error) {
	if !caller.Admin {
		return nil, fmt.Errorf("%w: listing all slots requires an administrator", domain.ErrForbidden)
	}
	return s.list(ctx, propertyID, false)
}

func (s *SlotService) list(ctx context.Context, propertyID string, onlyAvailable bool) ([]domain.Slot, error) {
	key := slotsKey(propertyID, onlyAvailable)
	var out []domain.Slot
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}
	out, err := s.repo.ListSlots(ctx, propertyID, onlyAvailable)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Slot{}
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, out, int(s.cfg.CacheTTL.Seconds()))
	}
	return out, nil
}

// DeleteSlot removes the record entirely, booked or not.
func (s *SlotService) DeleteSlot(ctx context.Context, caller domain.Caller, slotID string) error {
	if !caller.Admin {
		return fmt.Errorf("%w: deleting slots requires an administrator", domain.ErrForbidden)
	}
	sl, err := s.repo.GetSlot(ctx, slotID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSlot(ctx, slotID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete slot %s: %w", slotID, err)
	}
	s.invalidate(ctx, sl.PropertyID)
	return nil
}

func slotsKey(propertyID string, onlyAvailable bool) string {
	if onlyAvailable {
		return fmt.Sprintf("slots:%s:available", propertyID)
	}
	return fmt.Sprintf("slots:%s:all", propertyID)
}

func (s *SlotService) invalidate(ctx context.Context, propertyID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, slotsKey(propertyID, true))
	_ = s.cache.Del(ctx, slotsKey(propertyID, false))
}
