// Package compositor derives factor tables from raw market tables. Every
// compositor resumes from the latest date in its own table and commits one
// batch per period, so an interrupted run is resumed by running it again.
package compositor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/TMG-TheMoneyGame/AShareData/internal/checkpoint"
	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/internal/metrics"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
)

// Deps are the collaborators shared by every compositor
type Deps struct {
	Store    contracts.Store
	Calendar contracts.Calendar
	Log      *logger.Logger

	// Metrics may be nil
	Metrics *metrics.Registry
}

func (d Deps) validate() error {
	if d.Store == nil {
		return fmt.Errorf("compositor: store is required")
	}
	if d.Calendar == nil {
		return fmt.Errorf("compositor: calendar is required")
	}
	return nil
}

func (d Deps) logger() *logger.Logger {
	if d.Log == nil {
		return logger.Nop()
	}
	return d.Log
}

func (d Deps) resolver() *checkpoint.Resolver {
	return checkpoint.NewResolver(d.Store)
}

// sessionsAfter returns the sessions in (from, to], ascending
func sessionsAfter(cal contracts.Calendar, from, to time.Time) []time.Time {
	from = contracts.Day(from)
	sessions := cal.SessionsBetween(from, to)
	for len(sessions) > 0 && !sessions[0].After(from) {
		sessions = sessions[1:]
	}
	return sessions
}

// series tracks the latest value of a sparse field per id. Factor tables
// only store a row when the value changes, so the value on a date is the
// last one recorded on or before it. Only ids passed to advance are read.
type series struct {
	store contracts.Store
	table string
	field string

	last    map[string]float64
	loaded  map[string]struct{}
	through time.Time
}

func newSeries(store contracts.Store, table, field string) *series {
	return &series{
		store:  store,
		table:  table,
		field:  field,
		last:   make(map[string]float64),
		loaded: make(map[string]struct{}),
	}
}

// advance moves the series to date for ids. Ids seen before fold in the
// rows dated after the previous advance, new ids read their history up to
// date. A date before the previous advance only loads new ids.
func (s *series) advance(ctx context.Context, date time.Time, ids []string) error {
	date = contracts.Day(date)
	if date.Before(s.through) {
		date = s.through
	}

	var fresh []string
	for _, id := range ids {
		if _, ok := s.loaded[id]; ok {
			continue
		}
		s.loaded[id] = struct{}{}
		fresh = append(fresh, id)
	}

	moved := !s.through.IsZero() && date.After(s.through)

	// history first so the rows after through win
	if len(fresh) > 0 {
		end := date
		if moved {
			end = s.through
		}
		if err := s.read(ctx, contracts.Query{End: end, IDs: fresh}); err != nil {
			s.forget(fresh)
			return err
		}
	}
	if moved && len(s.loaded) > 0 {
		known := make([]string, 0, len(s.loaded))
		for id := range s.loaded {
			known = append(known, id)
		}
		if err := s.read(ctx, contracts.Query{Start: s.through.AddDate(0, 0, 1), End: date, IDs: known}); err != nil {
			s.forget(fresh)
			return err
		}
	}
	s.through = date
	return nil
}

func (s *series) read(ctx context.Context, q contracts.Query) error {
	q.Table, q.Fields = s.table, []string{s.field}
	sort.Strings(q.IDs)
	f, err := s.store.Read(ctx, q)
	if err != nil {
		return fmt.Errorf("read %s through %s: %w", s.table, q.End.Format("2006-01-02"), err)
	}

	// rows arrive by date ascending, so later values win
	for _, o := range f.Rows() {
		if v, ok := o.Values[s.field]; ok {
			s.last[o.ID] = v
		}
	}
	return nil
}

func (s *series) forget(ids []string) {
	for _, id := range ids {
		delete(s.loaded, id)
		delete(s.last, id)
	}
}

// at returns id's value as of the last advance
func (s *series) at(id string) (float64, bool) {
	v, ok := s.last[id]
	return v, ok
}
