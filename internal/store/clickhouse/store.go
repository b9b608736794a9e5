package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
)

// Store implements contracts.Store over the observations table, one row
// per (table, date, entity, field). ReplacingMergeTree keeps the highest
// version of a row; reads use FINAL.
type Store struct {
	conn driver.Conn
	now  func() time.Time
}

// NewStore creates a store over conn
func NewStore(conn driver.Conn) *Store {
	return &Store{conn: conn, now: time.Now}
}

// Compile-time interface check.
var _ contracts.Store = (*Store)(nil)

// Read implements contracts.Store
func (s *Store) Read(ctx context.Context, q contracts.Query) (*contracts.Frame, error) {
	sql, args := buildSelect(q)
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, contracts.Unavailable("read", q.Table, fmt.Errorf("query %s: %w", q.Table, err))
	}
	defer rows.Close()

	var obs []contracts.Observation
	for rows.Next() {
		var (
			date  time.Time
			id    string
			field string
			value float64
		)
		if err := rows.Scan(&date, &id, &field, &value); err != nil {
			return nil, contracts.Unavailable("read", q.Table, fmt.Errorf("scan %s: %w", q.Table, err))
		}
		obs = append(obs, contracts.NewObservation(date, id, field, value))
	}
	if err := rows.Err(); err != nil {
		return nil, contracts.Unavailable("read", q.Table, fmt.Errorf("iterate %s: %w", q.Table, err))
	}

	// NewFrame merges the per-field rows of one key
	return contracts.NewFrame(obs), nil
}

func buildSelect(q contracts.Query) (string, []interface{}) {
	where := []string{"table_name = ?"}
	args := []interface{}{q.Table}

	if len(q.Dates) > 0 {
		dates := make([]time.Time, len(q.Dates))
		for i, d := range q.Dates {
			dates[i] = contracts.Day(d)
		}
		where = append(where, "trade_date IN ?")
		args = append(args, dates)
	}
	if !q.Start.IsZero() {
		where = append(where, "trade_date >= ?")
		args = append(args, contracts.Day(q.Start))
	}
	if !q.End.IsZero() {
		where = append(where, "trade_date <= ?")
		args = append(args, contracts.Day(q.End))
	}
	if len(q.IDs) > 0 {
		where = append(where, "entity_id IN ?")
		args = append(args, q.IDs)
	}
	if len(q.Fields) > 0 {
		where = append(where, "field IN ?")
		args = append(args, q.Fields)
	}

	sql := "SELECT trade_date, entity_id, field, value FROM observations FINAL WHERE " +
		strings.Join(where, " AND ") +
		" ORDER BY trade_date ASC, entity_id ASC"
	return sql, args
}

// Insert implements contracts.Store. MergeTree does not enforce keys, so
// existing keys are checked before the batch is sent.
func (s *Store) Insert(ctx context.Context, table string, rows []contracts.Observation) error {
	if len(rows) == 0 {
		return nil
	}
	if err := checkBatch(rows); err != nil {
		return err
	}

	existing, err := s.existingKeys(ctx, table, rows)
	if err != nil {
		return contracts.Unavailable("insert", table, fmt.Errorf("check exists: %w", err))
	}
	for _, r := range rows {
		if _, ok := existing[contracts.Key{Date: contracts.Day(r.Date), ID: r.ID}]; ok {
			return contracts.ErrDuplicateKey
		}
	}

	return contracts.Unavailable("insert", table, s.send(ctx, table, rows))
}

// Upsert implements contracts.Store. A newer version replaces each field.
func (s *Store) Upsert(ctx context.Context, table string, rows []contracts.Observation) error {
	if len(rows) == 0 {
		return nil
	}
	if err := checkBatch(rows); err != nil {
		return err
	}
	return contracts.Unavailable("upsert", table, s.send(ctx, table, rows))
}

// send writes rows as one native batch
func (s *Store) send(ctx context.Context, table string, rows []contracts.Observation) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO observations (table_name, trade_date, entity_id, field, value, version)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	version := uint64(s.now().UnixNano())
	for _, r := range rows {
		for field, value := range r.Values {
			if err := batch.Append(table, contracts.Day(r.Date), r.ID, field, value, version); err != nil {
				return fmt.Errorf("append to batch: %w", err)
			}
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// existingKeys returns the (date, id) keys of rows already stored
func (s *Store) existingKeys(ctx context.Context, table string, rows []contracts.Observation) (map[contracts.Key]struct{}, error) {
	dates := make([]time.Time, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		dates = append(dates, contracts.Day(r.Date))
		ids = append(ids, r.ID)
	}

	res, err := s.conn.Query(ctx, `
		SELECT DISTINCT trade_date, entity_id FROM observations FINAL
		WHERE table_name = ? AND trade_date IN ? AND entity_id IN ?
	`, table, dates, ids)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	existing := make(map[contracts.Key]struct{})
	for res.Next() {
		var (
			date time.Time
			id   string
		)
		if err := res.Scan(&date, &id); err != nil {
			return nil, err
		}
		existing[contracts.Key{Date: contracts.Day(date), ID: id}] = struct{}{}
	}
	return existing, res.Err()
}

// LatestTimestamp implements contracts.Store
func (s *Store) LatestTimestamp(ctx context.Context, table string, filter *contracts.EntityFilter) (time.Time, bool, error) {
	query := "SELECT count(), max(trade_date) FROM observations WHERE table_name = ?"
	args := []interface{}{table}
	if filter != nil {
		query += " AND entity_id = ?"
		args = append(args, filter.ID)
	}

	var (
		count  uint64
		latest time.Time
	)
	if err := s.conn.QueryRow(ctx, query, args...).Scan(&count, &latest); err != nil {
		return time.Time{}, false, contracts.Unavailable("latest", table, fmt.Errorf("max trade_date: %w", err))
	}
	// max() over no rows is the Date zero value, so the count decides
	if count == 0 {
		return time.Time{}, false, nil
	}
	return contracts.Day(latest), true, nil
}

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
