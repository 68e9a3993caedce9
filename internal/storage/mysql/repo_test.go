package mysql

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldrv "github.com/go-sql-driver/mysql"

	"rental_portal/internal/domain"
)

func newRepoWithMock(t *testing.T) (*Repo, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return New(db), mock, db
}

var slotCols = []string{
	"id", "property_id", "slot_date", "start_time", "end_time", "booked",
	"booker_name", "booker_family_size", "booker_contact", "booker_has_application", "created_at",
}

func TestBookSlot_ConditionalUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+viewing_slots\s+SET\s+booked\s*=\s*1.*WHERE\s+id\s*=\s*\?\s+AND\s+booked\s*=\s*0\s*$`

	mock.ExpectExec(q).
		WithArgs("Ana", 3, "555-0100", true, "s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).
		WithArgs("Bob", 1, "555-0101", false, "s-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.BookSlot(context.Background(), "s-1", domain.Booker{Name: "Ana", FamilySize: 3, Contact: "555-0100", HasApplication: true})
	if err != nil || !ok {
		t.Fatalf("first booking: ok=%v err=%v", ok, err)
	}
	ok, err = repo.BookSlot(context.Background(), "s-1", domain.Booker{Name: "Bob", FamilySize: 1, Contact: "555-0101"})
	if err != nil || ok {
		t.Fatalf("second booking must not match: ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookSlot_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE\s+viewing_slots`).WillReturnError(errors.New("db down"))

	_, err := repo.BookSlot(context.Background(), "s-1", domain.Booker{Name: "Ana", FamilySize: 1, Contact: "x"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestInsertSlots_MultiRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	slots := []domain.Slot{
		{ID: "a", PropertyID: "p", Date: "2025-03-01", StartTime: "09:00", EndTime: "09:10", CreatedAt: now},
		{ID: "b", PropertyID: "p", Date: "2025-03-01", StartTime: "09:10", EndTime: "09:20", CreatedAt: now},
	}
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+viewing_slots.*VALUES\s+\(\?,\?,\?,\?,\?,\?,\?\),\(\?,\?,\?,\?,\?,\?,\?\)$`).
		WithArgs("a", "p", "2025-03-01", "09:00", "09:10", false, now,
			"b", "p", "2025-03-01", "09:10", "09:20", false, now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.InsertSlots(context.Background(), slots); err != nil {
		t.Fatalf("InsertSlots: %v", err)
	}
	if err := repo.InsertSlots(context.Background(), nil); err != nil {
		t.Fatalf("empty InsertSlots: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetSlot(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,.*FROM\s+viewing_slots\s+WHERE\s+id\s*=\s*\?$`
	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q).WithArgs("s-1").WillReturnRows(
		sqlmock.NewRows(slotCols).AddRow("s-1", "p", "2025-03-01", "09:00", "09:10", true, "Ana", 2, "555", true, created))
	mock.ExpectQuery(q).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	s, err := repo.GetSlot(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if !s.Booked || s.Booker == nil || s.Booker.Name != "Ana" || s.Booker.FamilySize != 2 || !s.Booker.HasApplication {
		t.Fatalf("unexpected slot: %+v", s)
	}

	if _, err := repo.GetSlot(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSlots_AvailableFilter(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`(?s)FROM\s+viewing_slots\s+WHERE\s+property_id\s*=\s*\?\s+AND\s+booked\s*=\s*0`).
		WithArgs("p").
		WillReturnRows(sqlmock.NewRows(slotCols).
			AddRow("s-2", "p", "2025-03-01", "09:10", "09:20", false, nil, nil, nil, nil, created))

	out, err := repo.ListSlots(context.Background(), "p", true)
	if err != nil {
		t.Fatalf("ListSlots: %v", err)
	}
	if len(out) != 1 || out[0].Booker != nil {
		t.Fatalf("unexpected slots: %+v", out)
	}
}

func TestDeleteSlot_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+viewing_slots\s+WHERE\s+id\s*=\s*\?$`).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.DeleteSlot(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPropertyAddress(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^SELECT\s+address\s+FROM\s+properties\s+WHERE\s+id\s*=\s*\?$`
	mock.ExpectQuery(q).WithArgs("p").WillReturnRows(sqlmock.NewRows([]string{"address"}).AddRow("12 Harbour Road"))
	mock.ExpectQuery(q).WithArgs("x").WillReturnError(sql.ErrNoRows)

	addr, err := repo.PropertyAddress(context.Background(), "p")
	if err != nil || addr != "12 Harbour Road" {
		t.Fatalf("PropertyAddress: %q %v", addr, err)
	}
	if _, err := repo.PropertyAddress(context.Background(), "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateApplication_DuplicateIsConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+applications`).
		WillReturnError(&mysqldrv.MySQLError{Number: 1062, Message: "Duplicate entry 'p-pat@example.com'"})

	err := repo.CreateApplication(context.Background(), domain.Application{ID: "a-1", PropertyID: "p", ApplicantEmail: "pat@example.com"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGetApplication_DecodesColumns(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cols := []string{
		"id", "property_id", "property_address", "applicant_name", "applicant_email",
		"applicant_phone", "is_principal", "number_of_adults", "co_applicant_emails", "household_id",
		"documents", "documents_submitted", "payment_status", "payment_id", "payment_amount", "status",
		"viewing_requested", "viewing_date", "viewing_status", "created_at", "updated_at",
	}
	ts := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+applications\s+WHERE\s+id\s*=\s*\?$`).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"a-1", "p", "12 Harbour Road", "Pat", "pat@example.com",
			"", true, 3, []byte(`["kim@example.com"]`), "pat@example.com",
			[]byte(`[{"id":"d1","type":"income","url":"https://docs/i.pdf","uploadedAt":"2025-03-01T08:00:00Z"}]`), true,
			"completed", "pi_1", "144.00", "submitted",
			false, "", "", ts, ts,
		))

	a, err := repo.GetApplication(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if !a.IsPrincipal || a.NumberOfAdults != 3 || a.Household() != "pat@example.com" {
		t.Fatalf("unexpected application: %+v", a)
	}
	if len(a.CoApplicantEmails) != 1 || a.CoApplicantEmails[0] != "kim@example.com" {
		t.Fatalf("co-applicants: %v", a.CoApplicantEmails)
	}
	if len(a.Documents) != 1 || a.Documents[0].Type != domain.DocumentIncome {
		t.Fatalf("documents: %+v", a.Documents)
	}
	if a.PaymentAmount == nil || a.PaymentAmount.StringFixed(2) != "144.00" {
		t.Fatalf("amount: %v", a.PaymentAmount)
	}
	if a.Status != domain.StatusSubmitted || !a.PaymentCompleted() {
		t.Fatalf("status: %s payment: %s", a.Status, a.PaymentStatus)
	}
}

func TestAssignHousehold_InList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE\s+applications\s+SET\s+household_id.*is_principal\s*=\s*0\s+AND\s+applicant_email\s+IN\s+\(\?,\?\)$`).
		WithArgs("pat@example.com", sqlmock.AnyArg(), "p", "kim@example.com", "lee@example.com").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.AssignHousehold(context.Background(), "p", "pat@example.com", []string{"kim@example.com", "lee@example.com"})
	if err != nil || n != 2 {
		t.Fatalf("AssignHousehold: n=%d err=%v", n, err)
	}
	if n, err := repo.AssignHousehold(context.Background(), "p", "pat@example.com", nil); err != nil || n != 0 {
		t.Fatalf("empty AssignHousehold: n=%d err=%v", n, err)
	}
}

func TestSetHouseholdMembers_ReplacesInTx(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`^DELETE\s+FROM\s+household_members\s+WHERE\s+property_id\s*=\s*\?\s+AND\s+household_id\s*=\s*\?$`).
		WithArgs("p", "pat@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+household_members.*VALUES\s+\(\?,\?,\?\),\(\?,\?,\?\)\s+ON\s+DUPLICATE\s+KEY\s+UPDATE`).
		WithArgs("p", "kim@example.com", "pat@example.com", "p", "lee@example.com", "pat@example.com").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	if err := repo.SetHouseholdMembers(context.Background(), "p", "pat@example.com", []string{"kim@example.com", "lee@example.com"}); err != nil {
		t.Fatalf("SetHouseholdMembers: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetHouseholdMembers_RollsBackOnError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE\s+FROM\s+household_members`).WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	if err := repo.SetHouseholdMembers(context.Background(), "p", "h", []string{"a@example.com"}); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLookupHousehold(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^SELECT\s+household_id\s+FROM\s+household_members\s+WHERE\s+property_id\s*=\s*\?\s+AND\s+member_email\s*=\s*\?$`
	mock.ExpectQuery(q).WithArgs("p", "kim@example.com").WillReturnRows(sqlmock.NewRows([]string{"household_id"}).AddRow("pat@example.com"))
	mock.ExpectQuery(q).WithArgs("p", "nobody@example.com").WillReturnError(sql.ErrNoRows)

	h, ok, err := repo.LookupHousehold(context.Background(), "p", "kim@example.com")
	if err != nil || !ok || h != "pat@example.com" {
		t.Fatalf("lookup: %q %v %v", h, ok, err)
	}
	_, ok, err = repo.LookupHousehold(context.Background(), "p", "nobody@example.com")
	if err != nil || ok {
		t.Fatalf("missing member: ok=%v err=%v", ok, err)
	}
}

func TestMigrate_UsesEmbeddedDir(t *testing.T) {
	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	var gotDir string
	gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}
	if err := Migrate(context.Background(), nil); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if gotDir != "migrations" {
		t.Fatalf("dir = %q", gotDir)
	}
	if _, err := migrations.ReadFile("migrations/00001_init.sql"); err != nil {
		t.Fatalf("embedded migration missing: %v", err)
	}
}
