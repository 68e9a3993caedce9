package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// SetHouseholdMembers replaces the member list of a household in one
// transaction.
func (r *Repo) SetHouseholdMembers(ctx context.Context, propertyID, householdID string, emails []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dbErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, clearHouseholdMembersSQL, propertyID, householdID); err != nil {
		return dbErr(err)
	}
	if len(emails) > 0 {
		values := make([]string, 0, len(emails))
		args := make([]any, 0, len(emails)*3)
		for _, e := range emails {
			values = append(values, "(?,?,?)")
			args = append(args, propertyID, e, householdID)
		}
		q := insertHouseholdMembersPrefix + strings.Join(values, ",") + insertHouseholdMembersOnDup
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return dbErr(err)
		}
	}
	return dbErr(tx.Commit())
}

func (r *Repo) LookupHousehold(ctx context.Context, propertyID, email string) (string, bool, error) {
	var h string
	err := r.db.QueryRowContext(ctx, lookupHouseholdSQL, propertyID, email).Scan(&h)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, dbErr(err)
	}
	return h, true, nil
}
