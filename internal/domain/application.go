package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusGenerated         Status = "generated"
	StatusPendingPayment    Status = "pending_payment"
	StatusPendingSubmission Status = "pending_submission"
	StatusSubmitted         Status = "submitted"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type ViewingStatus string

const (
	ViewingNone      ViewingStatus = ""
	ViewingPending   ViewingStatus = "pending"
	ViewingApproved  ViewingStatus = "approved"
	ViewingRejected  ViewingStatus = "rejected"
	ViewingCompleted ViewingStatus = "completed"
)

type Application struct {
	ID                 string           `json:"id"`
	PropertyID         string           `json:"propertyId"`
	PropertyAddress    string           `json:"propertyAddress"`
	ApplicantName      string           `json:"applicantName"`
	ApplicantEmail     string           `json:"applicantEmail"`
	ApplicantPhone     string           `json:"applicantPhone"`
	IsPrincipal        bool             `json:"isPrincipalApplicant"`
	NumberOfAdults     int              `json:"numberOfAdults"`
	CoApplicantEmails  []string         `json:"coApplicantEmails"`
	HouseholdID        *string          `json:"householdId"` // nil until resolved
	Documents          []Document       `json:"documents"`
	DocumentsSubmitted bool             `json:"documentsSubmitted"`
	PaymentStatus      PaymentStatus    `json:"paymentStatus"`
	PaymentID          *string          `json:"paymentId,omitempty"`
	PaymentAmount      *decimal.Decimal `json:"paymentAmount,omitempty"`
	Status             Status           `json:"status"`
	ViewingRequested   bool             `json:"viewingRequested"`
	ViewingDate        string           `json:"viewingDate,omitempty"`
	ViewingStatus      ViewingStatus    `json:"viewingStatus,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// Household returns the resolved household id or "".
func (a Application) Household() string {
	if a.HouseholdID == nil {
		return ""
	}
	return *a.HouseholdID
}

// PaymentCompleted reports whether the applicant's fee is settled.
func (a Application) PaymentCompleted() bool { return a.PaymentStatus == PaymentCompleted }

// Clone copies the slices and pointers so callers may mutate the result freely.
func (a Application) Clone() Application {
	out := a
	if a.CoApplicantEmails != nil {
		out.CoApplicantEmails = append([]string(nil), a.CoApplicantEmails...)
	}
	if a.Documents != nil {
		out.Documents = append([]Document(nil), a.Documents...)
	}
	if a.HouseholdID != nil {
		h := *a.HouseholdID
		out.HouseholdID = &h
	}
	if a.PaymentID != nil {
		p := *a.PaymentID
		out.PaymentID = &p
	}
	if a.PaymentAmount != nil {
		m := *a.PaymentAmount
		out.PaymentAmount = &m
	}
	return out
}
