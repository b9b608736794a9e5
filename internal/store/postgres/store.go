package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/database"
)

// Schema holding every time-series table
const Schema = "ts"

// PostgreSQL error codes
const (
	pgErrUniqueViolation = "23505" // unique_violation
	pgErrUndefinedTable  = "42P01" // undefined_table
)

var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Store implements contracts.Store on PostgreSQL. Each logical table is a
// physical table ts.<name>(trade_date, entity_id, vals jsonb) keyed by
// (trade_date, entity_id).
type Store struct {
	pool *pgxpool.Pool

	// tables created by this process
	ensured sync.Map
}

// NewStore creates a store over pool
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Compile-time interface check.
var _ contracts.Store = (*Store)(nil)

// ident returns the quoted ts.<table> identifier
func ident(table string) (string, error) {
	if !tableNamePattern.MatchString(table) {
		return "", fmt.Errorf("table name %q: %w", table, contracts.ErrInvalidInput)
	}
	return pgx.Identifier{Schema, table}.Sanitize(), nil
}

// Read implements contracts.Store. A table that does not exist reads empty.
func (s *Store) Read(ctx context.Context, q contracts.Query) (*contracts.Frame, error) {
	name, err := ident(q.Table)
	if err != nil {
		return nil, err
	}

	sql, args := buildSelect(name, q)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		if isUndefinedTableError(err) {
			return contracts.NewFrame(nil), nil
		}
		return nil, contracts.Unavailable("read", q.Table, fmt.Errorf("query %s: %w", q.Table, err))
	}
	defer rows.Close()

	var obs []contracts.Observation
	for rows.Next() {
		var (
			date time.Time
			id   string
			vals map[string]float64
		)
		if err := rows.Scan(&date, &id, &vals); err != nil {
			return nil, contracts.Unavailable("read", q.Table, fmt.Errorf("scan %s: %w", q.Table, err))
		}
		values := project(vals, q.Fields)
		if len(values) == 0 {
			continue
		}
		obs = append(obs, contracts.Observation{Date: contracts.Day(date), ID: id, Values: values})
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTableError(err) {
			return contracts.NewFrame(nil), nil
		}
		return nil, contracts.Unavailable("read", q.Table, fmt.Errorf("iterate %s: %w", q.Table, err))
	}

	return contracts.NewFrame(obs), nil
}

// buildSelect turns a query into SQL with positional arguments
func buildSelect(name string, q contracts.Query) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if len(q.Dates) > 0 {
		dates := make([]time.Time, len(q.Dates))
		for i, d := range q.Dates {
			dates[i] = contracts.Day(d)
		}
		add("trade_date = ANY($%d)", dates)
	}
	if !q.Start.IsZero() {
		add("trade_date >= $%d", contracts.Day(q.Start))
	}
	if !q.End.IsZero() {
		add("trade_date <= $%d", contracts.Day(q.End))
	}
	if len(q.IDs) > 0 {
		add("entity_id = ANY($%d)", q.IDs)
	}

	sql := "SELECT trade_date, entity_id, vals FROM " + name
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY trade_date ASC, entity_id ASC"
	return sql, args
}

func project(row map[string]float64, fields []string) map[string]float64 {
	if len(fields) == 0 {
		return row
	}
	out := make(map[string]float64, len(fields))
	for _, f := range fields {
		if v, ok := row[f]; ok {
			out[f] = v
		}
	}
	return out
}

// Insert implements contracts.Store. Fails entire batch on any duplicate.
func (s *Store) Insert(ctx context.Context, table string, rows []contracts.Observation) error {
	return s.write(ctx, "insert", table, rows,
		`INSERT INTO %s (trade_date, entity_id, vals) VALUES ($1, $2, $3)`)
}

// Upsert implements contracts.Store. Fields merge over an existing row.
func (s *Store) Upsert(ctx context.Context, table string, rows []contracts.Observation) error {
	return s.write(ctx, "upsert", table, rows,
		`INSERT INTO %s AS t (trade_date, entity_id, vals) VALUES ($1, $2, $3)
		 ON CONFLICT (trade_date, entity_id) DO UPDATE SET vals = t.vals || EXCLUDED.vals, updated_at = now()`)
}

// write runs one batch in a single transaction
func (s *Store) write(ctx context.Context, op, table string, rows []contracts.Observation, stmt string) error {
	if len(rows) == 0 {
		return nil
	}
	name, err := ident(table)
	if err != nil {
		return err
	}
	if err := checkBatch(rows); err != nil {
		return err
	}

	query := fmt.Sprintf(stmt, name)
	err = database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.ensureTable(ctx, tx, table, name); err != nil {
			return err
		}
		for _, r := range rows {
			if _, err := tx.Exec(ctx, query, contracts.Day(r.Date), r.ID, r.Values); err != nil {
				if isDuplicateKeyError(err) {
					return contracts.ErrDuplicateKey
				}
				return fmt.Errorf("%s %s row %s/%s: %w", op, table, r.ID, r.Date.Format("2006-01-02"), err)
			}
		}
		return nil
	})
	if err == nil {
		s.ensured.Store(table, struct{}{})
	}
	return contracts.Unavailable(op, table, err)
}

// checkBatch rejects empty rows and intra-batch duplicates
func checkBatch(rows []contracts.Observation) error {
	seen := make(map[contracts.Key]struct{}, len(rows))
	for _, r := range rows {
		if r.ID == "" || r.Date.IsZero() || len(r.Values) == 0 {
			return contracts.ErrInvalidInput
		}
		k := contracts.Key{Date: contracts.Day(r.Date), ID: r.ID}
		if _, dup := seen[k]; dup {
			return contracts.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}
	return nil
}

// ensureTable creates the physical table on first write. DDL rolls back
// with the batch, so the table is only remembered after commit.
func (s *Store) ensureTable(ctx context.Context, tx pgx.Tx, table, name string) error {
	if _, ok := s.ensured.Load(table); ok {
		return nil
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		trade_date DATE NOT NULL,
		entity_id  TEXT NOT NULL,
		vals       JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (trade_date, entity_id)
	)`, name)
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure table %s: %w", table, err)
	}
	return nil
}

// LatestTimestamp implements contracts.Store. A missing table is absent.
func (s *Store) LatestTimestamp(ctx context.Context, table string, filter *contracts.EntityFilter) (time.Time, bool, error) {
	name, err := ident(table)
	if err != nil {
		return time.Time{}, false, err
	}

	query := "SELECT max(trade_date) FROM " + name
	var args []interface{}
	if filter != nil {
		query += " WHERE entity_id = $1"
		args = append(args, filter.ID)
	}

	var latest *time.Time
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&latest); err != nil {
		if isUndefinedTableError(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, contracts.Unavailable("latest", table, fmt.Errorf("max trade_date: %w", err))
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return contracts.Day(*latest), true, nil
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}

// isUndefinedTableError checks if error is a missing relation
func isUndefinedTableError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUndefinedTable
	}
	return false
}
