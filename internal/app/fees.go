package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"rental_portal/internal/adapters/observability"
	"rental_portal/internal/domain"
)

// FeePerAdult is the application fee charged once per household adult.
const FeePerAdult = 48

const (
	RolePrincipal   = "principal"
	RoleCoApplicant = "co_applicant"
)

const (
	msgPrincipalDue  = "application fee for the household"
	msgPrincipalPaid = "application fee paid for the household"
	msgPaidByPrinc   = "fee paid by your principal"
	msgPrincipalMust = "your principal must pay for the household"
)

type FeeBreakdownEntry struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Paid  bool   `json:"paid"`
}

type FeeQuote struct {
	Role      string              `json:"role"`
	TotalDue  int                 `json:"totalDue"`
	Breakdown []FeeBreakdownEntry `json:"breakdown,omitempty"`
	Message   string              `json:"message"`
}

// FanoutReport lists co-applicant emails by outcome of a payment fan-out.
type FanoutReport struct {
	Updated []string `json:"updated"`
	Skipped []string `json:"skipped"`
	Failed  []string `json:"failed"`
}

type PaymentResult struct {
	Application domain.Application `json:"application"`
	Fanout      FanoutReport       `json:"fanout"`
}

type FeeService struct {
	repo       domain.ApplicationRepository
	households domain.HouseholdReader
	payments   domain.PaymentProvider
}

func NewFeeService(r domain.ApplicationRepository, h domain.HouseholdReader, p domain.PaymentProvider) *FeeService {
	return &FeeService{repo: r, households: h, payments: p}
}

func (s *FeeService) Quote(ctx context.Context, caller domain.Caller, id string) (FeeQuote, error) {
	a, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return FeeQuote{}, err
	}
	if err := ownerOrAdmin(caller, a); err != nil {
		return FeeQuote{}, err
	}
	return s.ComputeFee(ctx, a)
}

// ComputeFee prices the application. The principal owes 48 per adult; a
// co-applicant owes nothing and is told whether the principal has paid.
func (s *FeeService) ComputeFee(ctx context.Context, a domain.Application) (FeeQuote, error) {
	members, err := s.households.Members(ctx, a.PropertyID, a.Household())
	if err != nil {
		return FeeQuote{}, err
	}

	if !a.IsPrincipal {
		q := FeeQuote{Role: RoleCoApplicant, TotalDue: 0, Message: msgPrincipalMust}
		for _, m := range members {
			if m.IsPrincipal && m.PaymentCompleted() {
				q.Message = msgPaidByPrinc
				break
			}
		}
		return q, nil
	}

	paid := map[string]bool{}
	for _, m := range members {
		if m.PaymentCompleted() {
			paid[m.ApplicantEmail] = true
		}
	}
	q := FeeQuote{
		Role:      RolePrincipal,
		TotalDue:  a.NumberOfAdults * FeePerAdult,
		Breakdown: []FeeBreakdownEntry{{Email: a.ApplicantEmail, Role: RolePrincipal, Paid: a.PaymentCompleted()}},
		Message:   msgPrincipalDue,
	}
	if a.PaymentCompleted() {
		q.Message = msgPrincipalPaid
	}
	for _, e := range a.CoApplicantEmails {
		q.Breakdown = append(q.Breakdown, FeeBreakdownEntry{Email: e, Role: RoleCoApplicant, Paid: paid[e]})
	}
	return q, nil
}

// ConfirmPayment records a successful provider payment and, for a principal,
// marks every listed co-applicant as paid. Co-applicant failures are reported
// in the fan-out and do not fail the call.
func (s *FeeService) ConfirmPayment(ctx context.Context, caller domain.Caller, id, paymentID string) (PaymentResult, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return PaymentResult{}, fmt.Errorf("%w: paymentId is required", domain.ErrValidation)
	}
	a, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return PaymentResult{}, err
	}
	if err := ownerOrAdmin(caller, a); err != nil {
		return PaymentResult{}, err
	}

	p, err := s.payments.GetPayment(ctx, paymentID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return PaymentResult{}, fmt.Errorf("%w: payment not successful", domain.ErrValidation)
	case err != nil:
		return PaymentResult{}, fmt.Errorf("payment lookup: %w", err)
	case !p.Succeeded:
		return PaymentResult{}, fmt.Errorf("%w: payment not successful", domain.ErrValidation)
	}

	a.PaymentStatus = domain.PaymentCompleted
	a.PaymentID = &paymentID
	amount := p.Amount
	a.PaymentAmount = &amount
	domain.Advance(&a)
	if err := s.repo.SaveApplication(ctx, a); err != nil {
		return PaymentResult{}, err
	}
	log.Info().Str("application", a.ID).Str("payment", paymentID).Str("amount", amount.String()).Msg("payment confirmed")

	var report FanoutReport
	if a.IsPrincipal {
		report = s.ReconcileHousehold(ctx, a)
	}
	return PaymentResult{Application: a, Fanout: report}, nil
}

// ReconcileHousehold propagates a completed principal payment to its listed
// co-applicants. Each member is an independent read-modify-write; running it
// again only touches members still pending.
func (s *FeeService) ReconcileHousehold(ctx context.Context, principal domain.Application) FanoutReport {
	report := FanoutReport{Updated: []string{}, Skipped: []string{}, Failed: []string{}}
	if !principal.IsPrincipal || !principal.PaymentCompleted() || len(principal.CoApplicantEmails) == 0 {
		return report
	}
	listed := map[string]bool{}
	for _, e := range principal.CoApplicantEmails {
		listed[e] = true
	}
	members, err := s.households.Members(ctx, principal.PropertyID, principal.Household())
	if err != nil {
		log.Warn().Err(err).Str("household", principal.Household()).Msg("fan-out: member listing failed")
		observability.ObserveFanout("failed")
		report.Failed = append(report.Failed, principal.CoApplicantEmails...)
		return report
	}

	for _, m := range members {
		if m.IsPrincipal || !listed[m.ApplicantEmail] {
			continue
		}
		if err := s.markPaid(ctx, m.ID, &report); err != nil {
			observability.ObserveFanout("failed")
			log.Warn().Err(err).Str("application", m.ID).Str("email", m.ApplicantEmail).Msg("fan-out: co-applicant update failed")
			report.Failed = append(report.Failed, m.ApplicantEmail)
		}
	}
	return report
}

func (s *FeeService) markPaid(ctx context.Context, id string, report *FanoutReport) error {
	cur, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return err
	}
	if cur.PaymentCompleted() {
		observability.ObserveFanout("skipped")
		report.Skipped = append(report.Skipped, cur.ApplicantEmail)
		return nil
	}
	cur.PaymentStatus = domain.PaymentCompleted
	domain.Advance(&cur)
	if err := s.repo.SaveApplication(ctx, cur); err != nil {
		return err
	}
	observability.ObserveFanout("updated")
	report.Updated = append(report.Updated, cur.ApplicantEmail)
	return nil
}
