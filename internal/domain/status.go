package domain

import "fmt"

var validStatuses = map[Status]struct{}{
	StatusGenerated:         {},
	StatusPendingPayment:    {},
	StatusPendingSubmission: {},
	StatusSubmitted:         {},
	StatusApproved:          {},
	StatusRejected:          {},
}

// ParseStatus accepts exactly the six application states.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validStatuses[st]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
	return st, nil
}

func ParseViewingStatus(s string) (ViewingStatus, error) {
	switch v := ViewingStatus(s); v {
	case ViewingPending, ViewingApproved, ViewingRejected, ViewingCompleted:
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown viewing status %q", ErrValidation, s)
}

// Terminal reports whether s is only left through an explicit admin action.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Advance derives the status from documentsSubmitted and the payment state.
// Terminal states are left alone; with neither documents nor payment the
// status does not change.
func Advance(a *Application) {
	if a.Status.Terminal() {
		return
	}
	paid := a.PaymentCompleted()
	switch {
	case a.DocumentsSubmitted && paid:
		a.Status = StatusSubmitted
	case a.DocumentsSubmitted:
		a.Status = StatusPendingPayment
	case paid:
		a.Status = StatusPendingSubmission
	}
}
