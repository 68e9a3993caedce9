package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"rental_portal/internal/domain"
)

// HouseholdResolver assigns household ids and serves the read-only household
// view used by the fee engine.
type HouseholdResolver struct {
	apps  domain.ApplicationRepository
	index domain.HouseholdIndex
}

func NewHouseholdResolver(apps domain.ApplicationRepository, index domain.HouseholdIndex) *HouseholdResolver {
	return &HouseholdResolver{apps: apps, index: index}
}

var _ domain.HouseholdReader = (*HouseholdResolver)(nil)

// Resolve sets a.HouseholdID. A principal owns the household named after its
// email; a co-applicant joins whatever household lists it, or stays unset.
func (r *HouseholdResolver) Resolve(ctx context.Context, a *domain.Application) error {
	if a.IsPrincipal {
		h := a.ApplicantEmail
		a.HouseholdID = &h
		return nil
	}
	h, ok, err := r.index.LookupHousehold(ctx, a.PropertyID, a.ApplicantEmail)
	if err != nil {
		return fmt.Errorf("household lookup: %w", err)
	}
	if ok {
		a.HouseholdID = &h
	}
	return nil
}

// Propagate rewrites the member index for a principal and pulls existing
// co-applicant applications of the same property into its household.
func (r *HouseholdResolver) Propagate(ctx context.Context, principal domain.Application) error {
	if !principal.IsPrincipal {
		return nil
	}
	hh := principal.Household()
	if hh == "" {
		hh = principal.ApplicantEmail
	}
	if err := r.index.SetHouseholdMembers(ctx, principal.PropertyID, hh, principal.CoApplicantEmails); err != nil {
		return fmt.Errorf("household index: %w", err)
	}
	if len(principal.CoApplicantEmails) == 0 {
		return nil
	}
	n, err := r.apps.AssignHousehold(ctx, principal.PropertyID, hh, principal.CoApplicantEmails)
	if err != nil {
		return fmt.Errorf("assign household: %w", err)
	}
	if n > 0 {
		log.Info().Str("property", principal.PropertyID).Str("household", hh).Int64("members", n).Msg("co-applicants joined household")
	}
	return nil
}

// Forget drops the member index of a deleted principal.
func (r *HouseholdResolver) Forget(ctx context.Context, principal domain.Application) error {
	if !principal.IsPrincipal {
		return nil
	}
	return r.index.SetHouseholdMembers(ctx, principal.PropertyID, principal.Household(), nil)
}

func (r *HouseholdResolver) Members(ctx context.Context, propertyID, householdID string) ([]domain.Application, error) {
	if householdID == "" {
		return nil, nil
	}
	return r.apps.ListHousehold(ctx, propertyID, householdID)
}

func (r *HouseholdResolver) Principal(ctx context.Context, propertyID, householdID string) (domain.Application, bool, error) {
	members, err := r.Members(ctx, propertyID, householdID)
	if err != nil {
		return domain.Application{}, false, err
	}
	for _, m := range members {
		if m.IsPrincipal {
			return m, true, nil
		}
	}
	return domain.Application{}, false, nil
}

// normalizeEmail trims and lower-cases; household matching is done on the
// normalized form.
func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func normalizeEmails(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, e := range in {
		e = normalizeEmail(e)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
