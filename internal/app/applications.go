package app

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"rental_portal/internal/domain"
)

type ApplicationService struct {
	repo      domain.ApplicationRepository
	props     domain.PropertyDirectory
	resolver  *HouseholdResolver
	documents domain.DocumentStore
	now       func() time.Time
}

// NewApplicationService builds the application state machine. documents may
// be nil, in which case stored objects are never removed.
func NewApplicationService(r domain.ApplicationRepository, p domain.PropertyDirectory, h *HouseholdResolver, d domain.DocumentStore) *ApplicationService {
	return &ApplicationService{repo: r, props: p, resolver: h, documents: d, now: time.Now}
}

type NewApplication struct {
	PropertyID        string   `json:"propertyId"`
	ApplicantName     string   `json:"applicantName"`
	ApplicantEmail    string   `json:"applicantEmail"`
	ApplicantPhone    string   `json:"applicantPhone"`
	IsPrincipal       bool     `json:"isPrincipalApplicant"`
	NumberOfAdults    int      `json:"numberOfAdults"`
	CoApplicantEmails []string `json:"coApplicantEmails"`
}

// ApplicantUpdate carries the owner-editable fields; nil means unchanged.
type ApplicantUpdate struct {
	ApplicantName     *string   `json:"applicantName"`
	ApplicantPhone    *string   `json:"applicantPhone"`
	NumberOfAdults    *int      `json:"numberOfAdults"`
	CoApplicantEmails *[]string `json:"coApplicantEmails"`
}

type DocumentUpload struct {
	Type        domain.DocumentType `json:"type"`
	URL         string              `json:"url"`
	Description string              `json:"description"`
}

func (s *ApplicationService) Create(ctx context.Context, caller domain.Caller, in NewApplication) (domain.Application, error) {
	if caller.Anonymous() {
		return domain.Application{}, fmt.Errorf("%w: sign in to apply", domain.ErrForbidden)
	}
	email := normalizeEmail(in.ApplicantEmail)
	if email == "" {
		if caller.Admin {
			return domain.Application{}, fmt.Errorf("%w: applicantEmail is required when filing for an applicant", domain.ErrValidation)
		}
		email = normalizeEmail(caller.Email)
	}
	if !caller.Admin && email != normalizeEmail(caller.Email) {
		return domain.Application{}, fmt.Errorf("%w: applicants may only apply for themselves", domain.ErrForbidden)
	}

	a := domain.Application{
		ID:                uuid.NewString(),
		PropertyID:        strings.TrimSpace(in.PropertyID),
		ApplicantName:     strings.TrimSpace(in.ApplicantName),
		ApplicantEmail:    email,
		ApplicantPhone:    strings.TrimSpace(in.ApplicantPhone),
		IsPrincipal:       in.IsPrincipal,
		NumberOfAdults:    in.NumberOfAdults,
		CoApplicantEmails: normalizeEmails(in.CoApplicantEmails),
		Documents:         []domain.Document{},
		PaymentStatus:     domain.PaymentPending,
		Status:            domain.StatusGenerated,
	}
	if err := validateApplicant(a); err != nil {
		return domain.Application{}, err
	}

	addr, err := s.props.PropertyAddress(ctx, a.PropertyID)
	if err != nil {
		return domain.Application{}, err
	}
	a.PropertyAddress = addr

	if err := s.resolver.Resolve(ctx, &a); err != nil {
		return domain.Application{}, err
	}
	a.CreatedAt = s.now().UTC()
	a.UpdatedAt = a.CreatedAt
	if err := s.repo.CreateApplication(ctx, a); err != nil {
		return domain.Application{}, err
	}
	if err := s.resolver.Propagate(ctx, a); err != nil {
		return domain.Application{}, err
	}

	log.Info().Str("application", a.ID).Str("property", a.PropertyID).Bool("principal", a.IsPrincipal).Msg("application created")
	return a, nil
}

func validateApplicant(a domain.Application) error {
	switch {
	case a.PropertyID == "":
		return fmt.Errorf("%w: propertyId is required", domain.ErrValidation)
	case a.ApplicantName == "":
		return fmt.Errorf("%w: applicantName is required", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(a.ApplicantEmail); err != nil {
		return fmt.Errorf("%w: applicantEmail %q is not an email address", domain.ErrValidation, a.ApplicantEmail)
	}
	if !a.IsPrincipal {
		if a.NumberOfAdults != 0 || len(a.CoApplicantEmails) > 0 {
			return fmt.Errorf("%w: only the principal applicant declares adults and co-applicants", domain.ErrValidation)
		}
		return nil
	}
	if a.NumberOfAdults < 1 {
		return fmt.Errorf("%w: numberOfAdults must be at least 1", domain.ErrValidation)
	}
	for _, e := range a.CoApplicantEmails {
		if e == a.ApplicantEmail {
			return fmt.Errorf("%w: the principal cannot be its own co-applicant", domain.ErrValidation)
		}
		if _, err := mail.ParseAddress(e); err != nil {
			return fmt.Errorf("%w: co-applicant %q is not an email address", domain.ErrValidation, e)
		}
	}
	return nil
}

func (s *ApplicationService) Get(ctx context.Context, caller domain.Caller, id string) (domain.Application, error) {
	a, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return domain.Application{}, err
	}
	if err := ownerOrAdmin(caller, a); err != nil {
		return domain.Application{}, err
	}
	return a, nil
}

// UpdateApplicant edits the applicant's own fields. A changed co-applicant
// list rewrites the household index; dropped members leave the household.
func (s *ApplicationService) UpdateApplicant(ctx context.Context, caller domain.Caller, id string, in ApplicantUpdate) (domain.Application, error) {
	a, err := s.owned(ctx, caller, id)
	if err != nil {
		return domain.Application{}, err
	}
	before := append([]string(nil), a.CoApplicantEmails...)

	if in.ApplicantName != nil {
		a.ApplicantName = strings.TrimSpace(*in.ApplicantName)
	}
	if in.ApplicantPhone != nil {
		a.ApplicantPhone = strings.TrimSpace(*in.ApplicantPhone)
	}
	if in.NumberOfAdults != nil {
		a.NumberOfAdults = *in.NumberOfAdults
	}
	if in.CoApplicantEmails != nil {
		a.CoApplicantEmails = normalizeEmails(*in.CoApplicantEmails)
	}
	if err := validateApplicant(a); err != nil {
		return domain.Application{}, err
	}
	if err := s.repo.SaveApplication(ctx, a); err != nil {
		return domain.Application{}, err
	}

	if in.CoApplicantEmails != nil && a.IsPrincipal {
		if err := s.resolver.Propagate(ctx, a); err != nil {
			return domain.Application{}, err
		}
		s.detach(ctx, a, removed(before, a.CoApplicantEmails))
	}
	return s.repo.GetApplication(ctx, id)
}

// detach clears the household id of members no longer listed by the principal.
func (s *ApplicationService) detach(ctx context.Context, principal domain.Application, emails []string) {
	if len(emails) == 0 {
		return
	}
	gone := map[string]bool{}
	for _, e := range emails {
		gone[e] = true
	}
	members, err := s.resolver.Members(ctx, principal.PropertyID, principal.Household())
	if err != nil {
		log.Warn().Err(err).Str("household", principal.Household()).Msg("detach: member listing failed")
		return
	}
	for _, m := range members {
		if m.IsPrincipal || !gone[m.ApplicantEmail] {
			continue
		}
		m.HouseholdID = nil
		if err := s.repo.SaveApplication(ctx, m); err != nil {
			log.Warn().Err(err).Str("application", m.ID).Msg("detach: save failed")
		}
	}
}

func removed(before, after []string) []string {
	keep := map[string]bool{}
	for _, e := range after {
		keep[e] = true
	}
	var out []string
	for _, e := range before {
		if !keep[e] {
			out = append(out, e)
		}
	}
	return out
}

// Delete hard-deletes an application and, best effort, its stored documents.
func (s *ApplicationService) Delete(ctx context.Context, caller domain.Caller, id string) error {
	if !caller.Admin {
		return fmt.Errorf("%w: deleting applications requires an administrator", domain.ErrForbidden)
	}
	a, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteApplication(ctx, id); err != nil {
		return err
	}
	if err := s.resolver.Forget(ctx, a); err != nil {
		log.Warn().Err(err).Str("application", id).Msg("household index cleanup failed")
	}
	s.removeObjects(ctx, a.Documents)
	log.Info().Str("application", id).Msg("application deleted")
	return nil
}

func (s *ApplicationService) UploadDocument(ctx context.Context, caller domain.Caller, id string, in DocumentUpload) (domain.Application, error) {
	if _, ok := domain.PolicyFor(in.Type); !ok {
		return domain.Application{}, fmt.Errorf("%w: unknown document type %q", domain.ErrValidation, in.Type)
	}
	if strings.TrimSpace(in.URL) == "" {
		return domain.Application{}, fmt.Errorf("%w: document url is required", domain.ErrValidation)
	}
	a, err := s.owned(ctx, caller, id)
	if err != nil {
		return domain.Application{}, err
	}

	doc := domain.Document{
		ID:          uuid.NewString(),
		Type:        in.Type,
		URL:         strings.TrimSpace(in.URL),
		UploadedAt:  s.now().UTC(),
		Description: strings.TrimSpace(in.Description),
	}
	var replaced []domain.Document
	a.Documents, replaced = domain.ApplyUpload(a.Documents, doc)
	a.DocumentsSubmitted = true
	domain.Advance(&a)

	if err := s.repo.SaveApplication(ctx, a); err != nil {
		return domain.Application{}, err
	}
	s.removeObjects(ctx, replaced)
	return a, nil
}

// DeleteDocument removes one document. Removing the last one withdraws the
// submission and resets the status to generated.
func (s *ApplicationService) DeleteDocument(ctx context.Context, caller domain.Caller, id, documentID string) (domain.Application, error) {
	a, err := s.owned(ctx, caller, id)
	if err != nil {
		return domain.Application{}, err
	}
	kept := make([]domain.Document, 0, len(a.Documents))
	var gone []domain.Document
	for _, d := range a.Documents {
		if d.ID == documentID {
			gone = append(gone, d)
			continue
		}
		kept = append(kept, d)
	}
	if len(gone) == 0 {
		return domain.Application{}, fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	a.Documents = kept
	if len(kept) == 0 {
		a.DocumentsSubmitted = false
		a.Status = domain.StatusGenerated
	}
	if err := s.repo.SaveApplication(ctx, a); err != nil {
		return domain.Application{}, err
	}
	s.removeObjects(ctx, gone)
	return a, nil
}

// PatchStatus lets an administrator set any status, terminal ones included.
func (s *ApplicationService) PatchStatus(ctx context.Context, caller domain.Caller, id, status string) (domain.Application, error) {
	st, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Application{}, err
	}
	return s.setStatus(ctx, caller, id, st)
}

func (s *ApplicationService) Approve(ctx context.Context, caller domain.Caller, id string) (domain.Application, error) {
	return s.setStatus(ctx, caller, id, domain.StatusApproved)
}

func (s *ApplicationService) Reject(ctx context.Context, caller domain.Caller, id string) (domain.Application, error) {
	return s.setStatus(ctx, caller, id, domain.StatusRejected)
}

func (s *ApplicationService) setStatus(ctx context.Context, caller domain.Caller, id string, st domain.Status) (domain.Application, error) {
	if !caller.Admin {
		return domain.Application{}, fmt.Errorf("%w: changing status requires an administrator", domain.ErrForbidden)
	}
	a, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return domain.Application{}, err
	}
	a.Status = st
	if err := s.repo.SaveApplication(ctx, a); err != nil {
		return domain.Application{}, err
	}
	log.Info().Str("application", id).Str("status", string(st)).Str("by", caller.Email).Msg("status set")
	return a, nil
}

func (s *ApplicationService) RequestViewing(ctx context.Context, caller domain.Caller, id, date string) (domain.Application, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return domain.Application{}, fmt.Errorf("%w: viewing date %q must be YYYY-MM-DD", domain.ErrValidation, date)
	}
	a, err := s.owned(ctx, caller, id)
	if err != nil {
		return domain.Application{}, err
	}
	a.ViewingRequested = true
	a.ViewingDate = date
	a.ViewingStatus = domain.ViewingPending
	a.Status = domain.StatusPendingSubmission
	if err := s.repo.SaveApplication(ctx, a); err != nil {
		return domain.Application{}, err
	}
	return a, nil
}

func (s *ApplicationService) UpdateViewingStatus(ctx context.Context, caller domain.Caller, id, status string) (domain.Application, error) {
	if !caller.Admin {
		return domain.Application{}, fmt.Errorf("%w: viewing decisions require an administrator", domain.ErrForbidden)
	}
	vs, err := domain.ParseViewingStatus(status)
	if err != nil {
		return domain.Application{}, err
	}
	a, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return domain.Application{}, err
	}
	a.ViewingStatus = vs
	if err := s.repo.SaveApplication(ctx, a); err != nil {
		return domain.Application{}, err
	}
	return a, nil
}

// Households returns the property's applications grouped by household.
func (s *ApplicationService) Households(ctx context.Context, caller domain.Caller, propertyID string) ([]domain.Household, error) {
	if !caller.Admin {
		return nil, fmt.Errorf("%w: household listing requires an administrator", domain.ErrForbidden)
	}
	apps, err := s.repo.ListByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return domain.GroupByHousehold(apps), nil
}

func (s *ApplicationService) owned(ctx context.Context, caller domain.Caller, id string) (domain.Application, error) {
	a, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return domain.Application{}, err
	}
	if !isOwner(caller, a) {
		return domain.Application{}, fmt.Errorf("%w: application %s belongs to another applicant", domain.ErrForbidden, id)
	}
	return a, nil
}

func isOwner(c domain.Caller, a domain.Application) bool {
	return c.Email != "" && normalizeEmail(c.Email) == a.ApplicantEmail
}

func ownerOrAdmin(c domain.Caller, a domain.Application) error {
	if c.Admin || isOwner(c, a) {
		return nil
	}
	return fmt.Errorf("%w: application %s belongs to another applicant", domain.ErrForbidden, a.ID)
}

func (s *ApplicationService) removeObjects(ctx context.Context, docs []domain.Document) {
	if s.documents == nil || len(docs) == 0 {
		return
	}
	urls := make([]string, 0, len(docs))
	for _, d := range docs {
		urls = append(urls, d.URL)
	}
	if err := s.documents.RemoveDocuments(context.WithoutCancel(ctx), urls); err != nil {
		log.Warn().Err(err).Strs("urls", urls).Msg("document object cleanup failed")
	}
}
