package contracts

import (
	"sort"
	"time"
)

// Day truncates t to a UTC calendar day. Every date that enters a Frame or
// a store key goes through Day so that (date, id) keys compare equal
// regardless of the location they were parsed in.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Observation is one row of a table keyed by (Date, ID)
// ⭐ SSOT: 저장소에 쓰이는 모든 레코드는 이 타입
type Observation struct {
	Date   time.Time
	ID     string
	Values map[string]float64
}

// NewObservation builds a single-field observation
func NewObservation(date time.Time, id, field string, value float64) Observation {
	return Observation{
		Date:   Day(date),
		ID:     id,
		Values: map[string]float64{field: value},
	}
}

// Key identifies a row inside a table
type Key struct {
	Date time.Time
	ID   string
}

// EntityFilter restricts a timestamp lookup to one entity
type EntityFilter struct {
	ID string
}

// Query describes a read from a table. Dates selects exact sessions; Start
// and End bound an inclusive range and are ignored when zero. Empty Fields
// or IDs mean "all".
type Query struct {
	Table  string
	Fields []string
	Dates  []time.Time
	Start  time.Time
	End    time.Time
	IDs    []string
}

// Matches reports whether a row key satisfies the query's date and id
// predicates. Store adapters without a query language use it directly.
func (q Query) Matches(date time.Time, id string) bool {
	date = Day(date)

	if len(q.Dates) > 0 {
		found := false
		for _, d := range q.Dates {
			if Day(d).Equal(date) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !q.Start.IsZero() && date.Before(Day(q.Start)) {
		return false
	}
	if !q.End.IsZero() && date.After(Day(q.End)) {
		return false
	}
	if len(q.IDs) > 0 {
		for _, want := range q.IDs {
			if want == id {
				return true
			}
		}
		return false
	}
	return true
}

// Frame is a read result indexed by (date, id)
type Frame struct {
	rows map[Key]map[string]float64
	keys []Key
}

// NewFrame indexes observations. Later observations for the same key merge
// their fields over earlier ones.
func NewFrame(obs []Observation) *Frame {
	f := &Frame{rows: make(map[Key]map[string]float64, len(obs))}
	for _, o := range obs {
		k := Key{Date: Day(o.Date), ID: o.ID}
		row, ok := f.rows[k]
		if !ok {
			row = make(map[string]float64, len(o.Values))
			f.rows[k] = row
			f.keys = append(f.keys, k)
		}
		for field, v := range o.Values {
			row[field] = v
		}
	}

	sort.Slice(f.keys, func(i, j int) bool {
		if !f.keys[i].Date.Equal(f.keys[j].Date) {
			return f.keys[i].Date.Before(f.keys[j].Date)
		}
		return f.keys[i].ID < f.keys[j].ID
	})
	return f
}

// Len returns the number of (date, id) rows
func (f *Frame) Len() int {
	return len(f.keys)
}

// Empty reports whether the frame has no rows
func (f *Frame) Empty() bool {
	return len(f.keys) == 0
}

// Value returns one field of one row
func (f *Frame) Value(date time.Time, id, field string) (float64, bool) {
	row, ok := f.rows[Key{Date: Day(date), ID: id}]
	if !ok {
		return 0, false
	}
	v, ok := row[field]
	return v, ok
}

// IDs returns the ids present on date, ascending
func (f *Frame) IDs(date time.Time) []string {
	date = Day(date)
	var ids []string
	for _, k := range f.keys {
		if k.Date.Equal(date) {
			ids = append(ids, k.ID)
		}
	}
	return ids
}

// Dates returns the distinct dates in the frame, ascending
func (f *Frame) Dates() []time.Time {
	var dates []time.Time
	for _, k := range f.keys {
		if len(dates) == 0 || !dates[len(dates)-1].Equal(k.Date) {
			dates = append(dates, k.Date)
		}
	}
	return dates
}

// Rows returns the frame as observations ordered by (date, id)
func (f *Frame) Rows() []Observation {
	out := make([]Observation, 0, len(f.keys))
	for _, k := range f.keys {
		values := make(map[string]float64, len(f.rows[k]))
		for field, v := range f.rows[k] {
			values[field] = v
		}
		out = append(out, Observation{Date: k.Date, ID: k.ID, Values: values})
	}
	return out
}
