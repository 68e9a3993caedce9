package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"

	"rental_portal/internal/domain"
)

const errDuplicateEntry = 1062

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valNullStr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// placeholders returns "(?,?,...)" with n markers.
func placeholders(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?,", n), ",") + ")"
}

// dbErr maps driver errors onto the domain taxonomy.
func dbErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var me *mysqldrv.MySQLError
	if errors.As(err, &me) && me.Number == errDuplicateEntry {
		return fmt.Errorf("%w: %s", domain.ErrConflict, me.Message)
	}
	return fmt.Errorf("db error: %w", err)
}

// Repo implements the slot, application, household-index and property ports
// on one *sql.DB.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

var (
	_ domain.SlotRepository        = (*Repo)(nil)
	_ domain.ApplicationRepository = (*Repo)(nil)
	_ domain.HouseholdIndex        = (*Repo)(nil)
	_ domain.PropertyRegistry      = (*Repo)(nil)
)

// UpsertProperty registers or renames a property.
func (r *Repo) UpsertProperty(ctx context.Context, id, address string) error {
	_, err := r.db.ExecContext(ctx, upsertPropertySQL, id, address)
	return dbErr(err)
}

func (r *Repo) PropertyAddress(ctx context.Context, propertyID string) (string, error) {
	var addr string
	if err := r.db.QueryRowContext(ctx, getPropertyAddressSQL, propertyID).Scan(&addr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("property %s: %w", propertyID, domain.ErrNotFound)
		}
		return "", dbErr(err)
	}
	return addr, nil
}
