package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rental_portal/internal/domain"
)

func jsonList[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func valAmount(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.StringFixed(2)
}

func (r *Repo) CreateApplication(ctx context.Context, a domain.Application) error {
	co, err := jsonList(a.CoApplicantEmails)
	if err != nil {
		return err
	}
	docs, err := jsonList(a.Documents)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, insertApplicationSQL,
		a.ID,
		a.PropertyID,
		a.PropertyAddress,
		a.ApplicantName,
		a.ApplicantEmail,
		a.ApplicantPhone,
		a.IsPrincipal,
		a.NumberOfAdults,
		co,
		valStr(a.HouseholdID),
		docs,
		a.DocumentsSubmitted,
		string(a.PaymentStatus),
		valStr(a.PaymentID),
		valAmount(a.PaymentAmount),
		string(a.Status),
		a.ViewingRequested,
		a.ViewingDate,
		string(a.ViewingStatus),
		a.CreatedAt,
		a.UpdatedAt,
	)
	return dbErr(err)
}

func (r *Repo) SaveApplication(ctx context.Context, a domain.Application) error {
	co, err := jsonList(a.CoApplicantEmails)
	if err != nil {
		return err
	}
	docs, err := jsonList(a.Documents)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, saveApplicationSQL,
		a.ApplicantName,
		a.ApplicantPhone,
		a.NumberOfAdults,
		co,
		valStr(a.HouseholdID),
		docs,
		a.DocumentsSubmitted,
		string(a.PaymentStatus),
		valStr(a.PaymentID),
		valAmount(a.PaymentAmount),
		string(a.Status),
		a.ViewingRequested,
		a.ViewingDate,
		string(a.ViewingStatus),
		time.Now().UTC(),
		a.ID,
	)
	if err != nil {
		return dbErr(err)
	}
	// MySQL reports changed rows, so an identical overwrite also yields 0;
	// only treat 0 as missing when the id really is gone.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := r.GetApplication(ctx, a.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) DeleteApplication(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteApplicationSQL, id)
	if err != nil {
		return dbErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("application %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *Repo) AssignHousehold(ctx context.Context, propertyID, householdID string, emails []string) (int64, error) {
	if len(emails) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(emails)+3)
	args = append(args, householdID, time.Now().UTC(), propertyID)
	for _, e := range emails {
		args = append(args, e)
	}
	res, err := r.db.ExecContext(ctx, assignHouseholdPrefix+placeholders(len(emails)), args...)
	if err != nil {
		return 0, dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbErr(err)
	}
	return n, nil
}

func (r *Repo) GetApplication(ctx context.Context, id string) (domain.Application, error) {
	a, err := scanApplication(r.db.QueryRowContext(ctx, getApplicationSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Application{}, fmt.Errorf("application %s: %w", id, domain.ErrNotFound)
		}
		return domain.Application{}, dbErr(err)
	}
	return a, nil
}

func (r *Repo) ListByProperty(ctx context.Context, propertyID string) ([]domain.Application, error) {
	return r.queryApplications(ctx, listApplicationsByPropertySQL, propertyID)
}

func (r *Repo) ListHousehold(ctx context.Context, propertyID, householdID string) ([]domain.Application, error) {
	return r.queryApplications(ctx, listHouseholdSQL, propertyID, householdID)
}

func (r *Repo) ListCompletedPrincipals(ctx context.Context) ([]domain.Application, error) {
	return r.queryApplications(ctx, listCompletedPrincipalsSQL)
}

func (r *Repo) queryApplications(ctx context.Context, q string, args ...any) ([]domain.Application, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var out []domain.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, dbErr(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return out, nil
}

func scanApplication(row rowScanner) (domain.Application, error) {
	var (
		a             domain.Application
		coRaw         []byte
		docsRaw       []byte
		household     sql.NullString
		payID         sql.NullString
		amount        decimal.NullDecimal
		payStatus     string
		status        string
		viewingStatus string
	)
	if err := row.Scan(
		&a.ID,
		&a.PropertyID,
		&a.PropertyAddress,
		&a.ApplicantName,
		&a.ApplicantEmail,
		&a.ApplicantPhone,
		&a.IsPrincipal,
		&a.NumberOfAdults,
		&coRaw,
		&household,
		&docsRaw,
		&a.DocumentsSubmitted,
		&payStatus,
		&payID,
		&amount,
		&status,
		&a.ViewingRequested,
		&a.ViewingDate,
		&viewingStatus,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return domain.Application{}, err
	}
	if err := json.Unmarshal(coRaw, &a.CoApplicantEmails); err != nil {
		return domain.Application{}, fmt.Errorf("co_applicant_emails of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal(docsRaw, &a.Documents); err != nil {
		return domain.Application{}, fmt.Errorf("documents of %s: %w", a.ID, err)
	}
	a.HouseholdID = valNullStr(household)
	a.PaymentID = valNullStr(payID)
	if amount.Valid {
		d := amount.Decimal
		a.PaymentAmount = &d
	}
	a.PaymentStatus = domain.PaymentStatus(payStatus)
	a.Status = domain.Status(status)
	a.ViewingStatus = domain.ViewingStatus(strings.TrimSpace(viewingStatus))
	return a, nil
}
