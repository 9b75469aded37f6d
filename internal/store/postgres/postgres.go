// Package postgres implements store.Store on PostgreSQL. Every logical table
// lives in one "records" table with a JSONB fields column, so arbitrary
// tables can be created and listed without migrations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/seenimoa/coinsync/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id          TEXT PRIMARY KEY,
	table_name  TEXT NOT NULL,
	fields      JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS records_table_created_idx ON records (table_name, created_at);
`

// Options configures the connection pool.
type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is a store.Store backed by PostgreSQL.
type Store struct {
	db    *sqlx.DB
	newID func() string
}

// Open connects, pings and returns a Store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	db, err := sqlx.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db), nil
}

// New wraps an existing connection.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:    db,
		newID: func() string { return uuid.New().String() },
	}
}

// EnsureSchema creates the records table if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type recordRow struct {
	ID        string    `db:"id"`
	Fields    []byte    `db:"fields"`
	CreatedAt time.Time `db:"created_at"`
}

func (r recordRow) toRecord() (store.Record, error) {
	fields := map[string]any{}
	if len(r.Fields) > 0 {
		if err := json.Unmarshal(r.Fields, &fields); err != nil {
			return store.Record{}, fmt.Errorf("decode fields of %s: %w", r.ID, err)
		}
	}
	return store.Record{ID: r.ID, CreatedTime: r.CreatedAt, Fields: fields}, nil
}

// Create inserts all records in one transaction.
func (s *Store) Create(ctx context.Context, table string, fields []map[string]any) ([]store.Record, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s: begin: %w", table, err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO records (id, table_name, fields) VALUES ($1, $2, $3::jsonb) RETURNING created_at`

	created := make([]store.Record, 0, len(fields))
	for _, f := range fields {
		data, err := json.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("create %s: encode fields: %w", table, err)
		}

		id := s.newID()
		var createdAt time.Time
		if err := tx.QueryRowxContext(ctx, query, id, table, string(data)).Scan(&createdAt); err != nil {
			return nil, fmt.Errorf("create %s: insert: %w", table, err)
		}

		rec, err := recordRow{ID: id, Fields: data, CreatedAt: createdAt}.toRecord()
		if err != nil {
			return nil, err
		}
		created = append(created, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create %s: commit: %w", table, err)
	}
	return created, nil
}

// FirstPage returns up to q.Limit() records ordered by creation time.
func (s *Store) FirstPage(ctx context.Context, table string, q store.Query) ([]store.Record, error) {
	return s.selectRecords(ctx, table, q, q.Limit())
}

// All returns every matching record, capped by q.MaxRecords when set.
func (s *Store) All(ctx context.Context, table string, q store.Query) ([]store.Record, error) {
	return s.selectRecords(ctx, table, q, q.MaxRecords)
}

func (s *Store) selectRecords(ctx context.Context, table string, q store.Query, limit int) ([]store.Record, error) {
	query := `SELECT id, fields, created_at FROM records WHERE table_name = $1`
	args := []interface{}{table}

	if q.Filter != nil {
		query += ` AND fields->>$2 = $3`
		args = append(args, q.Filter.Field, q.Filter.Value)
	}
	query += ` ORDER BY created_at, id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}

	out := make([]store.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
