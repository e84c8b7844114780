package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/pactline/internal/contract"
)

// Dialect selects the SQL driver and placeholder style.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQL stores contracts as JSON documents in one table. Revisions are
// enforced by a conditional UPDATE, so several processes may share the
// database.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL opens dsn with the dialect's driver and creates the schema.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQL, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s store needs a dsn", dialect)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	s := NewSQL(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQL wraps an open database. Call Migrate before first use.
func NewSQL(db *sql.DB, dialect Dialect) *SQL {
	return &SQL{db: db, dialect: dialect}
}

// Migrate creates the contracts table if it does not exist.
func (s *SQL) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS contracts (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	product_ref TEXT NOT NULL,
	revision BIGINT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	body TEXT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("migrate contracts table: %w", err)
	}
	return nil
}

func (s *SQL) Create(ctx context.Context, c contract.Contract) (contract.Contract, error) {
	c = c.Clone()
	c.Revision = 1
	body, err := json.Marshal(c)
	if err != nil {
		return contract.Contract{}, fmt.Errorf("encode contract %s: %w", c.ID, err)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO contracts (id, status, product_ref, revision, created_at, updated_at, body)
VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`),
		c.ID, string(c.Status), c.ProductRef, c.Revision, formatTime(c.CreatedAt), formatTime(c.UpdatedAt), string(body))
	if err != nil {
		return contract.Contract{}, fmt.Errorf("insert contract %s: %w", c.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return contract.Contract{}, exists(c.ID)
	}
	return c, nil
}

func (s *SQL) Get(ctx context.Context, id string) (contract.Contract, error) {
	var body string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT body FROM contracts WHERE id = ?`), id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return contract.Contract{}, notFound(id)
	}
	if err != nil {
		return contract.Contract{}, fmt.Errorf("get contract %s: %w", id, err)
	}
	return decode(id, body)
}

func (s *SQL) Update(ctx context.Context, c contract.Contract, expectedRevision int64) (contract.Contract, error) {
	c = c.Clone()
	c.Revision = expectedRevision + 1
	body, err := json.Marshal(c)
	if err != nil {
		return contract.Contract{}, fmt.Errorf("encode contract %s: %w", c.ID, err)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE contracts SET status = ?, revision = ?, updated_at = ?, body = ?
WHERE id = ? AND revision = ?`),
		string(c.Status), c.Revision, formatTime(c.UpdatedAt), string(body), c.ID, expectedRevision)
	if err != nil {
		return contract.Contract{}, fmt.Errorf("update contract %s: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return contract.Contract{}, fmt.Errorf("update contract %s: %w", c.ID, err)
	}
	if n == 1 {
		return c, nil
	}

	var actual int64
	err = s.db.QueryRowContext(ctx, s.rebind(`SELECT revision FROM contracts WHERE id = ?`), c.ID).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return contract.Contract{}, notFound(c.ID)
	}
	if err != nil {
		return contract.Contract{}, fmt.Errorf("read revision of %s: %w", c.ID, err)
	}
	return contract.Contract{}, conflict(c.ID, expectedRevision, actual)
}

func (s *SQL) List(ctx context.Context, f Filter) ([]contract.Contract, error) {
	query := `SELECT id, body FROM contracts`
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.ProductRef != "" {
		where = append(where, "product_ref = ?")
		args = append(args, f.ProductRef)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []contract.Contract
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		c, err := decode(id, body)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQL) Close() error { return s.db.Close() }

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQL) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func decode(id, body string) (contract.Contract, error) {
	var c contract.Contract
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return contract.Contract{}, fmt.Errorf("decode contract %s: %w", id, err)
	}
	return c, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
