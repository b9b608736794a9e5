package compositor

import (
	"context"
	"fmt"
	"time"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
)

var (
	// first session the limit board table covers
	limitBoardStart = time.Date(1999, 5, 4, 0, 0, 0, 0, time.UTC)

	// resolves an empty price table to a range before limitBoardStart
	priceTableStart = time.Date(1990, 12, 10, 0, 0, 0, 0, time.UTC)
)

// LimitBoard flags one-character limit sessions: high == low, not
// suspended, and a nonzero back-adjusted move against the previous session.
// +1 is limit-up, -1 limit-down.
type LimitBoard struct {
	deps      Deps
	suspended contracts.Selector
	log       *logger.Logger
}

// Compile-time interface check.
var _ contracts.Compositor = (*LimitBoard)(nil)

// NewLimitBoard creates the compositor. suspended must select tickers in
// a trading suspension.
func NewLimitBoard(deps Deps, suspended contracts.Selector) (*LimitBoard, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if suspended == nil || !suspended.Policy().SelectSuspended {
		return nil, fmt.Errorf("limit board: selector must use a select_suspended policy")
	}
	c := &LimitBoard{deps: deps, suspended: suspended}
	c.log = deps.logger().ForCompositor(c.Name(), c.Table())
	return c, nil
}

// Name implements contracts.Compositor
func (c *LimitBoard) Name() string { return "limit_board" }

// Table implements contracts.Compositor
func (c *LimitBoard) Table() string { return contracts.TableConstLimit }

// Run labels every price session after the checkpoint
func (c *LimitBoard) Run(ctx context.Context) error {
	resolver := c.deps.resolver()

	start, err := resolver.Resolve(ctx, contracts.TableConstLimit, limitBoardStart, nil)
	if err != nil {
		return err
	}
	end, err := resolver.Resolve(ctx, contracts.TableStockDaily, priceTableStart, nil)
	if err != nil {
		return err
	}

	dates := c.deps.Calendar.SessionsBetween(start, end)
	if len(dates) < 2 {
		c.log.Debug("limit board up to date")
		return nil
	}

	preDate := dates[0]
	pre, err := c.readBars(ctx, preDate)
	if err != nil {
		return err
	}
	adj := newSeries(c.deps.Store, contracts.TableAdjFactor, contracts.FieldAdjFactor)

	total := len(dates) - 1
	for i, date := range dates[1:] {
		if err := ctx.Err(); err != nil {
			return err
		}

		bars, err := c.readBars(ctx, date)
		if err != nil {
			return err
		}

		labels, err := c.session(ctx, preDate, date, pre, bars, adj)
		if err != nil {
			return err
		}
		if len(labels) > 0 {
			if err := c.deps.Store.Insert(ctx, contracts.TableConstLimit, labels); err != nil {
				return fmt.Errorf("write limit board %s: %w", date.Format("2006-01-02"), err)
			}
		}

		c.deps.Metrics.PeriodDone(c.Name(), c.Table(), len(labels))
		c.log.Progress(date, i+1, total, len(labels))

		pre, preDate = bars, date
	}
	return nil
}

// session computes the labels of one session. nil means nothing to write.
func (c *LimitBoard) session(ctx context.Context, preDate, date time.Time, pre, bars *contracts.Frame, adj *series) ([]contracts.Observation, error) {
	var candidates []string
	for _, id := range bars.IDs(date) {
		high, okH := bars.Value(date, id, contracts.FieldHigh)
		low, okL := bars.Value(date, id, contracts.FieldLow)
		if okH && okL && high == low {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	suspended, err := c.suspended.Eligible(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("suspended tickers on %s: %w", date.Format("2006-01-02"), err)
	}
	candidates = subtract(candidates, suspended)
	if len(candidates) == 0 {
		return nil, nil
	}

	// factors as of the previous session, then as of this one
	if err := adj.advance(ctx, preDate, candidates); err != nil {
		return nil, err
	}
	preAdj := make(map[string]float64, len(candidates))
	for _, id := range candidates {
		if v, ok := adj.at(id); ok {
			preAdj[id] = v
		}
	}
	if err := adj.advance(ctx, date, candidates); err != nil {
		return nil, err
	}

	var labels []contracts.Observation
	for _, id := range candidates {
		high, _ := bars.Value(date, id, contracts.FieldHigh)
		preHigh, ok := pre.Value(preDate, id, contracts.FieldHigh)
		if !ok {
			continue
		}
		pa, ok := preAdj[id]
		if !ok {
			continue
		}
		a, ok := adj.at(id)
		if !ok {
			continue
		}

		delta := high*a - preHigh*pa
		switch {
		case delta > 0:
			labels = append(labels, contracts.NewObservation(date, id, contracts.FieldLimitFlag, 1))
		case delta < 0:
			labels = append(labels, contracts.NewObservation(date, id, contracts.FieldLimitFlag, -1))
		}
	}
	return labels, nil
}

func (c *LimitBoard) readBars(ctx context.Context, date time.Time) (*contracts.Frame, error) {
	f, err := c.deps.Store.Read(ctx, contracts.Query{
		Table:  contracts.TableStockDaily,
		Fields: []string{contracts.FieldHigh, contracts.FieldLow},
		Dates:  []time.Time{date},
	})
	if err != nil {
		return nil, fmt.Errorf("read prices %s: %w", date.Format("2006-01-02"), err)
	}
	return f, nil
}

// subtract returns ids not in drop, keeping order
func subtract(ids, drop []string) []string {
	if len(drop) == 0 {
		return ids
	}
	skip := make(map[string]struct{}, len(drop))
	for _, id := range drop {
		skip[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
