package store

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ppiankov/pactline/internal/contract"
	"github.com/ppiankov/pactline/internal/model"
)

func newMockStore(t *testing.T) (*SQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQL(db, DialectPostgres), mock
}

func TestRebindPostgresPlaceholders(t *testing.T) {
	s := NewSQL(nil, DialectPostgres)
	got := s.rebind("UPDATE t SET a = ?, b = ? WHERE id = ?")
	if got != "UPDATE t SET a = $1, b = $2 WHERE id = $3" {
		t.Errorf("unexpected rebind %q", got)
	}
	if q := NewSQL(nil, DialectSQLite).rebind("a = ?"); q != "a = ?" {
		t.Errorf("sqlite query rewritten: %q", q)
	}
}

func TestPostgresCreate(t *testing.T) {
	s, mock := newMockStore(t)
	c := draft(t, "ctr-pg", t0)

	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING")).
		WithArgs("ctr-pg", "Draft", "urn:product:sales", 1, formatTime(t0), formatTime(t0), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO contracts")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := s.Create(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if created.Revision != 1 {
		t.Errorf("expected revision 1, got %d", created.Revision)
	}
	if _, err := s.Create(context.Background(), c); !errors.Is(err, model.ErrVersionConflict) {
		t.Errorf("expected duplicate to conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresUpdateConflict(t *testing.T) {
	s, mock := newMockStore(t)
	c := draft(t, "ctr-pg", t0)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $5 AND revision = $6")).
		WithArgs("Draft", 4, sqlmock.AnyArg(), sqlmock.AnyArg(), "ctr-pg", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT revision FROM contracts WHERE id = $1")).
		WithArgs("ctr-pg").
		WillReturnRows(sqlmock.NewRows([]string{"revision"}).AddRow(7))

	_, err := s.Update(context.Background(), c, 3)
	e, ok := model.AsError(err)
	if !ok || e.Kind != model.KindVersionConflict {
		t.Fatalf("expected VersionConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresUpdateSuccess(t *testing.T) {
	s, mock := newMockStore(t)
	c := draft(t, "ctr-pg", t0)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE contracts SET")).
		WithArgs("Draft", 2, sqlmock.AnyArg(), sqlmock.AnyArg(), "ctr-pg", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := s.Update(context.Background(), c, 1)
	if err != nil || updated.Revision != 2 {
		t.Fatalf("expected revision 2, got %d %v", updated.Revision, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresGetNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT body FROM contracts WHERE id = $1")).
		WithArgs("ctr-none").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))

	if _, err := s.Get(context.Background(), "ctr-none"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresListFiltered(t *testing.T) {
	s, mock := newMockStore(t)
	c := draft(t, "ctr-pg", t0)
	c.Revision = 1
	body, _ := json.Marshal(c)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, body FROM contracts WHERE status = $1 AND product_ref = $2 ORDER BY created_at, id")).
		WithArgs("Draft", "urn:product:sales").
		WillReturnRows(sqlmock.NewRows([]string{"id", "body"}).AddRow("ctr-pg", string(body)))

	list, err := s.List(context.Background(), Filter{Status: contract.Draft, ProductRef: "urn:product:sales"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "ctr-pg" || !list[0].MyPolicy.Equal(c.MyPolicy) {
		t.Errorf("unexpected list %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresMigrate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS contracts")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
