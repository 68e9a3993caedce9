package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"rental_portal/internal/domain"
)

func (r *Repo) InsertSlots(ctx context.Context, slots []domain.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	values := make([]string, 0, len(slots))
	args := make([]any, 0, len(slots)*7)
	for _, s := range slots {
		values = append(values, "(?,?,?,?,?,?,?)")
		args = append(args, s.ID, s.PropertyID, s.Date, s.StartTime, s.EndTime, s.Booked, s.CreatedAt)
	}
	_, err := r.db.ExecContext(ctx, insertSlotsPrefix+strings.Join(values, ","), args...)
	return dbErr(err)
}

func (r *Repo) BookSlot(ctx context.Context, slotID string, b domain.Booker) (bool, error) {
	res, err := r.db.ExecContext(ctx, bookSlotSQL, b.Name, b.FamilySize, b.Contact, b.HasApplication, slotID)
	if err != nil {
		return false, dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbErr(err)
	}
	return n == 1, nil
}

func (r *Repo) DeleteSlot(ctx context.Context, slotID string) error {
	res, err := r.db.ExecContext(ctx, deleteSlotSQL, slotID)
	if err != nil {
		return dbErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("slot %s: %w", slotID, domain.ErrNotFound)
	}
	return nil
}

func (r *Repo) GetSlot(ctx context.Context, slotID string) (domain.Slot, error) {
	s, err := scanSlot(r.db.QueryRowContext(ctx, getSlotSQL, slotID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Slot{}, fmt.Errorf("slot %s: %w", slotID, domain.ErrNotFound)
		}
		return domain.Slot{}, dbErr(err)
	}
	return s, nil
}

func (r *Repo) ListSlotsByDate(ctx context.Context, propertyID, date string) ([]domain.Slot, error) {
	return r.querySlots(ctx, listSlotsByDateSQL, propertyID, date)
}

func (r *Repo) ListSlots(ctx context.Context, propertyID string, onlyAvailable bool) ([]domain.Slot, error) {
	if onlyAvailable {
		return r.querySlots(ctx, listAvailableSlotsSQL, propertyID)
	}
	return r.querySlots(ctx, listSlotsSQL, propertyID)
}

func (r *Repo) querySlots(ctx context.Context, q string, args ...any) ([]domain.Slot, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var out []domain.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, dbErr(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (domain.Slot, error) {
	var (
		s       domain.Slot
		name    sql.NullString
		family  sql.NullInt64
		contact sql.NullString
		hasApp  sql.NullBool
	)
	if err := row.Scan(
		&s.ID,
		&s.PropertyID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.Booked,
		&name,
		&family,
		&contact,
		&hasApp,
		&s.CreatedAt,
	); err != nil {
		return domain.Slot{}, err
	}
	if s.Booked {
		s.Booker = &domain.Booker{
			Name:           name.String,
			FamilySize:     int(family.Int64),
			Contact:        contact.String,
			HasApplication: hasApp.Bool,
		}
	}
	return s, nil
}
