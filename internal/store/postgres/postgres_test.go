package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/seenimoa/coinsync/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := New(sqlx.NewDb(db, "sqlmock"))
	n := 0
	s.newID = func() string {
		n++
		return []string{"id-1", "id-2", "id-3"}[n-1]
	}
	return s, mock
}

func TestCreate(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	insert := regexp.QuoteMeta(`INSERT INTO records (id, table_name, fields) VALUES ($1, $2, $3::jsonb) RETURNING created_at`)
	mock.ExpectBegin()
	mock.ExpectQuery(insert).
		WithArgs("id-1", "Coins", `{"symbol":"btc"}`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectQuery(insert).
		WithArgs("id-2", "Coins", `{"current_price":0.08,"symbol":"doge"}`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectCommit()

	recs, err := s.Create(context.Background(), "Coins", []map[string]any{
		{"symbol": "btc"},
		{"symbol": "doge", "current_price": 0.08},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "id-1" || recs[1].ID != "id-2" {
		t.Fatalf("records = %+v", recs)
	}
	if p, ok := recs[1].Float("current_price"); !ok || p != 0.08 {
		t.Errorf("current_price = %v, %v", p, ok)
	}
	if !recs[0].CreatedTime.Equal(created) {
		t.Errorf("CreatedTime = %v", recs[0].CreatedTime)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreateRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO records`).WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	if _, err := s.Create(context.Background(), "Coins", []map[string]any{{"symbol": "btc"}}); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFirstPageWithFilter(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	query := regexp.QuoteMeta(`SELECT id, fields, created_at FROM records WHERE table_name = $1 AND fields->>$2 = $3 ORDER BY created_at, id LIMIT 1`)
	mock.ExpectQuery(query).
		WithArgs("Coins", "symbol", "doge").
		WillReturnRows(sqlmock.NewRows([]string{"id", "fields", "created_at"}).
			AddRow("id-9", []byte(`{"symbol":"doge","current_price":0.08}`), created))

	recs, err := s.FirstPage(context.Background(), "Coins", store.Query{
		MaxRecords: 1,
		Filter:     store.FieldEquals("symbol", "doge"),
	})
	if err != nil {
		t.Fatalf("FirstPage: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "id-9" || recs[0].String("symbol") != "doge" {
		t.Errorf("records = %+v", recs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAllWithoutLimit(t *testing.T) {
	s, mock := newMockStore(t)

	query := regexp.QuoteMeta(`SELECT id, fields, created_at FROM records WHERE table_name = $1 ORDER BY created_at, id`) + `$`
	mock.ExpectQuery(query).
		WithArgs("Data").
		WillReturnRows(sqlmock.NewRows([]string{"id", "fields", "created_at"}))

	recs, err := s.All(context.Background(), "Data", store.Query{})
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("records = %#v, want empty slice", recs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSelectError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT id, fields, created_at FROM records`).WillReturnError(errors.New("connection refused"))

	if _, err := s.FirstPage(context.Background(), "Coins", store.Query{MaxRecords: 20}); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnsureSchema(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS records`).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), Options{}); err == nil {
		t.Error("expected error for empty DSN")
	}
}
