package memory

import (
	"context"
	"sync"
	"time"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
)

// Store is an in-memory implementation of contracts.Store.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[contracts.Key]map[string]float64

	// writes counts successful batches per table
	writes map[string]int
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		tables: make(map[string]map[contracts.Key]map[string]float64),
		writes: make(map[string]int),
	}
}

// Compile-time interface check.
var _ contracts.Store = (*Store)(nil)

// Read returns the rows of q.Table matching q. A missing table reads empty.
func (s *Store) Read(_ context.Context, q contracts.Query) (*contracts.Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table := s.tables[q.Table]
	var obs []contracts.Observation
	for k, row := range table {
		if !q.Matches(k.Date, k.ID) {
			continue
		}
		values := project(row, q.Fields)
		if len(values) == 0 {
			continue
		}
		obs = append(obs, contracts.Observation{Date: k.Date, ID: k.ID, Values: values})
	}

	return contracts.NewFrame(obs), nil
}

// project copies the requested fields of a row (all when fields is empty)
func project(row map[string]float64, fields []string) map[string]float64 {
	out := make(map[string]float64, len(row))
	if len(fields) == 0 {
		for f, v := range row {
			out[f] = v
		}
		return out
	}
	for _, f := range fields {
		if v, ok := row[f]; ok {
			out[f] = v
		}
	}
	return out
}

// validate checks a batch and returns its keys. Intra-batch duplicates are
// rejected for both Insert and Upsert.
func validate(rows []contracts.Observation) ([]contracts.Key, error) {
	keys := make([]contracts.Key, 0, len(rows))
	seen := make(map[contracts.Key]struct{}, len(rows))
	for _, r := range rows {
		if r.ID == "" || len(r.Values) == 0 || r.Date.IsZero() {
			return nil, contracts.ErrInvalidInput
		}
		k := contracts.Key{Date: contracts.Day(r.Date), ID: r.ID}
		if _, dup := seen[k]; dup {
			return nil, contracts.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys, nil
}

// Insert appends rows. Fails entire batch on any existing key.
func (s *Store) Insert(_ context.Context, table string, rows []contracts.Observation) error {
	if len(rows) == 0 {
		return nil
	}
	keys, err := validate(rows)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(table)
	for _, k := range keys {
		if _, exists := t[k]; exists {
			return contracts.ErrDuplicateKey
		}
	}
	for i, k := range keys {
		t[k] = project(rows[i].Values, nil)
	}
	s.writes[table]++
	return nil
}

// Upsert writes rows, merging fields over existing keys.
func (s *Store) Upsert(_ context.Context, table string, rows []contracts.Observation) error {
	if len(rows) == 0 {
		return nil
	}
	keys, err := validate(rows)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(table)
	for i, k := range keys {
		row, ok := t[k]
		if !ok {
			row = make(map[string]float64, len(rows[i].Values))
			t[k] = row
		}
		for f, v := range rows[i].Values {
			row[f] = v
		}
	}
	s.writes[table]++
	return nil
}

// LatestTimestamp returns the max date in table, optionally for one id.
func (s *Store) LatestTimestamp(_ context.Context, table string, filter *contracts.EntityFilter) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	found := false
	for k := range s.tables[table] {
		if filter != nil && k.ID != filter.ID {
			continue
		}
		if !found || k.Date.After(latest) {
			latest = k.Date
			found = true
		}
	}
	return latest, found, nil
}

// Writes returns how many batches were committed to table.
func (s *Store) Writes(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes[table]
}

// Count returns the number of rows in table.
func (s *Store) Count(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

// table returns (creating) the row map of a table. Caller holds mu.
func (s *Store) table(name string) map[contracts.Key]map[string]float64 {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[contracts.Key]map[string]float64)
		s.tables[name] = t
	}
	return t
}
