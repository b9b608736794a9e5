package compositor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TMG-TheMoneyGame/AShareData/internal/calendar"
	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/internal/metrics"
	"github.com/TMG-TheMoneyGame/AShareData/internal/store/memory"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// first week of 2024 plus the following Monday and Tuesday
func testCalendar() *calendar.Calendar {
	return calendar.New([]time.Time{
		day("2024-01-02"), day("2024-01-03"), day("2024-01-04"),
		day("2024-01-05"), day("2024-01-08"), day("2024-01-09"),
	})
}

type fixture struct {
	t       *testing.T
	store   *memory.Store
	cal     *calendar.Calendar
	metrics *metrics.Registry
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, store: memory.NewStore(), cal: testCalendar(), metrics: metrics.New()}
}

func (f *fixture) deps() Deps {
	return Deps{Store: f.store, Calendar: f.cal, Log: logger.Nop(), Metrics: f.metrics}
}

// put upserts one field value
func (f *fixture) put(table, date, id, field string, v float64) {
	f.t.Helper()
	require.NoError(f.t, f.store.Upsert(context.Background(), table,
		[]contracts.Observation{contracts.NewObservation(day(date), id, field, v)}))
}

func (f *fixture) bar(date, id string, high, low float64) {
	f.put(contracts.TableStockDaily, date, id, contracts.FieldHigh, high)
	f.put(contracts.TableStockDaily, date, id, contracts.FieldLow, low)
}

func (f *fixture) value(table, date, id, field string) (float64, bool) {
	f.t.Helper()
	frame, err := f.store.Read(context.Background(), contracts.Query{Table: table})
	require.NoError(f.t, err)
	return frame.Value(day(date), id, field)
}

// staticSelector returns fixed ids per date
type staticSelector struct {
	policy contracts.SelectionPolicy
	byDate map[string][]string
	err    error
}

func (s *staticSelector) Policy() contracts.SelectionPolicy { return s.policy }

func (s *staticSelector) Eligible(_ context.Context, date time.Time) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byDate[date.Format("2006-01-02")], nil
}

func TestSeries_CarriesSparseValues(t *testing.T) {
	f := newFixture(t)
	f.put(contracts.TableAdjFactor, "2023-06-01", "A", contracts.FieldAdjFactor, 1.5)
	f.put(contracts.TableAdjFactor, "2024-01-04", "A", contracts.FieldAdjFactor, 3.0)
	f.put(contracts.TableAdjFactor, "2024-01-03", "B", contracts.FieldAdjFactor, 1.0)

	s := newSeries(f.store, contracts.TableAdjFactor, contracts.FieldAdjFactor)
	ctx := context.Background()

	require.NoError(t, s.advance(ctx, day("2024-01-02"), []string{"A", "B"}))
	v, ok := s.at("A")
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)
	_, ok = s.at("B")
	assert.False(t, ok, "B has no factor yet")

	require.NoError(t, s.advance(ctx, day("2024-01-05"), []string{"A", "B"}))
	v, _ = s.at("A")
	assert.Equal(t, 3.0, v)
	v, _ = s.at("B")
	assert.Equal(t, 1.0, v)

	// going backwards is a no-op
	require.NoError(t, s.advance(ctx, day("2024-01-03"), []string{"A", "B"}))
	v, _ = s.at("A")
	assert.Equal(t, 3.0, v)
}

// recordingStore keeps every query it serves
type recordingStore struct {
	contracts.Store
	queries []contracts.Query
}

func (r *recordingStore) Read(ctx context.Context, q contracts.Query) (*contracts.Frame, error) {
	r.queries = append(r.queries, q)
	return r.Store.Read(ctx, q)
}

func TestSeries_ReadsOnlyRequestedIDs(t *testing.T) {
	f := newFixture(t)
	f.put(contracts.TableAdjFactor, "2023-06-01", "A", contracts.FieldAdjFactor, 1.5)
	f.put(contracts.TableAdjFactor, "2024-01-04", "A", contracts.FieldAdjFactor, 3.0)
	f.put(contracts.TableAdjFactor, "2023-06-01", "B", contracts.FieldAdjFactor, 2.0)
	f.put(contracts.TableAdjFactor, "2024-01-05", "B", contracts.FieldAdjFactor, 4.0)
	f.put(contracts.TableAdjFactor, "2023-06-01", "C", contracts.FieldAdjFactor, 9.0)

	rec := &recordingStore{Store: f.store}
	s := newSeries(rec, contracts.TableAdjFactor, contracts.FieldAdjFactor)
	ctx := context.Background()

	require.NoError(t, s.advance(ctx, day("2024-01-03"), []string{"A"}))
	require.Len(t, rec.queries, 1)
	assert.Equal(t, []string{"A"}, rec.queries[0].IDs)
	assert.True(t, rec.queries[0].Start.IsZero(), "first read covers the whole history")

	// B joins later: its history up to the previous advance, then both move on
	require.NoError(t, s.advance(ctx, day("2024-01-05"), []string{"A", "B"}))
	require.Len(t, rec.queries, 3)
	assert.Equal(t, []string{"B"}, rec.queries[1].IDs)
	assert.True(t, rec.queries[1].End.Equal(day("2024-01-03")))
	assert.Equal(t, []string{"A", "B"}, rec.queries[2].IDs)
	assert.True(t, rec.queries[2].Start.Equal(day("2024-01-04")))

	for _, q := range rec.queries {
		assert.NotEmpty(t, q.IDs, "never an unscoped read")
		assert.NotContains(t, q.IDs, "C")
	}

	v, ok := s.at("A")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
	v, ok = s.at("B")
	require.True(t, ok)
	assert.Equal(t, 4.0, v, "newer row wins over the history read")
	_, ok = s.at("C")
	assert.False(t, ok, "C was never requested")

	// nothing new and no new date: no read
	require.NoError(t, s.advance(ctx, day("2024-01-05"), []string{"B"}))
	assert.Len(t, rec.queries, 3)
}

func TestSessionsAfter(t *testing.T) {
	cal := testCalendar()

	assert.Equal(t, []time.Time{day("2024-01-04"), day("2024-01-05")},
		sessionsAfter(cal, day("2024-01-03"), day("2024-01-05")))
	assert.Equal(t, []time.Time{day("2024-01-08")},
		sessionsAfter(cal, day("2024-01-06"), day("2024-01-08")), "non-session start")
	assert.Empty(t, sessionsAfter(cal, day("2024-01-09"), day("2024-01-09")))
}

func TestDeps_Validate(t *testing.T) {
	_, err := NewLimitBoard(Deps{}, &staticSelector{policy: contracts.SuspendedPolicy()})
	assert.Error(t, err)

	_, err = NewFundAdjFactor(Deps{Store: memory.NewStore()}, nil)
	assert.Error(t, err)
}
