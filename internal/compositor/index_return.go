package compositor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
)

// IndexReturn writes the daily return of a self-constructed index: the
// previous-session cap weighted mean of constituent returns.
type IndexReturn struct {
	deps     Deps
	policy   contracts.CompositionPolicy
	selector contracts.Selector
	log      *logger.Logger
}

// Compile-time interface check.
var _ contracts.Compositor = (*IndexReturn)(nil)

// NewIndexReturn creates the compositor for one index policy. selector must
// be built from policy.Selection.
func NewIndexReturn(deps Deps, policy contracts.CompositionPolicy, selector contracts.Selector) (*IndexReturn, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if selector == nil {
		return nil, fmt.Errorf("index %s: selector is required", policy.Ticker)
	}
	c := &IndexReturn{deps: deps, policy: policy, selector: selector}
	c.log = deps.logger().ForCompositor(c.Name(), c.Table()).WithField("index", policy.Ticker)
	return c, nil
}

// Name implements contracts.Compositor
func (c *IndexReturn) Name() string { return "index_return:" + c.policy.Ticker }

// Table implements contracts.Compositor
func (c *IndexReturn) Table() string { return contracts.TableCustomIndex }

// Policy returns the composition policy
func (c *IndexReturn) Policy() contracts.CompositionPolicy { return c.policy }

// Run computes every session after the index's own checkpoint. An undefined
// session stops the run; earlier sessions stay written.
func (c *IndexReturn) Run(ctx context.Context) error {
	resolver := c.deps.resolver()

	start, err := resolver.Resolve(ctx, contracts.TableCustomIndex, c.policy.StartDate,
		&contracts.EntityFilter{ID: c.policy.Ticker})
	if err != nil {
		return err
	}
	end, err := resolver.Resolve(ctx, contracts.TableStockDaily, start, nil)
	if err != nil {
		return err
	}

	dates := sessionsAfter(c.deps.Calendar, start, end)
	if len(dates) == 0 {
		c.log.Debug("index up to date")
		return nil
	}

	units := newSeries(c.deps.Store, c.policy.WeightTable, c.policy.WeightField)
	adj := newSeries(c.deps.Store, contracts.TableAdjFactor, contracts.FieldAdjFactor)

	for i, date := range dates {
		if err := ctx.Err(); err != nil {
			return err
		}

		ret, err := c.session(ctx, date, units, adj)
		if err != nil {
			return err
		}

		row := contracts.NewObservation(date, c.policy.Ticker, contracts.FieldReturn, ret)
		if err := c.deps.Store.Upsert(ctx, contracts.TableCustomIndex, []contracts.Observation{row}); err != nil {
			return fmt.Errorf("write index %s %s: %w", c.policy.Ticker, date.Format("2006-01-02"), err)
		}

		c.deps.Metrics.PeriodDone(c.Name(), c.Table(), 1)
		c.log.Progress(date, i+1, len(dates), 1)
	}
	return nil
}

// constituent carries one stock's inputs for a session
type constituent struct {
	ID     string
	Return float64

	// Weight is base*close at the previous session, before normalisation
	Weight float64
}

func (c *IndexReturn) undefined(date time.Time, reason string) error {
	return &contracts.UndefinedComputationError{
		Table:  contracts.TableCustomIndex,
		Entity: c.policy.Ticker,
		Date:   date,
		Reason: reason,
	}
}

// session computes the index return on date
func (c *IndexReturn) session(ctx context.Context, date time.Time, units, adj *series) (float64, error) {
	ids, err := c.selector.Eligible(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("constituents of %s on %s: %w", c.policy.Ticker, date.Format("2006-01-02"), err)
	}
	if len(ids) == 0 {
		return 0, c.undefined(date, "empty constituent set")
	}

	pre, err := c.deps.Calendar.Offset(date, -1)
	if err != nil {
		return 0, fmt.Errorf("previous session of %s: %w", date.Format("2006-01-02"), err)
	}

	closes, err := c.deps.Store.Read(ctx, contracts.Query{
		Table:  contracts.TableStockDaily,
		Fields: []string{contracts.FieldClose},
		Dates:  []time.Time{pre, date},
		IDs:    ids,
	})
	if err != nil {
		return 0, fmt.Errorf("read closes %s: %w", date.Format("2006-01-02"), err)
	}

	if err := units.advance(ctx, pre, ids); err != nil {
		return 0, err
	}
	if err := adj.advance(ctx, pre, ids); err != nil {
		return 0, err
	}
	preAdj := make(map[string]float64, len(ids))
	for _, id := range ids {
		if v, ok := adj.at(id); ok {
			preAdj[id] = v
		}
	}
	if err := adj.advance(ctx, date, ids); err != nil {
		return 0, err
	}

	members := make([]constituent, 0, len(ids))
	var dropped []string
	for _, id := range ids {
		closePre, ok1 := closes.Value(pre, id, contracts.FieldClose)
		closeNow, ok2 := closes.Value(date, id, contracts.FieldClose)
		adjPre, ok3 := preAdj[id]
		adjNow, ok4 := adj.at(id)
		base, ok5 := units.at(id)
		if !(ok1 && ok2 && ok3 && ok4 && ok5) || closePre*adjPre == 0 {
			dropped = append(dropped, id)
			continue
		}
		members = append(members, constituent{
			ID:     id,
			Return: (closeNow*adjNow)/(closePre*adjPre) - 1,
			Weight: base * closePre,
		})
	}
	if len(dropped) > 0 {
		sort.Strings(dropped)
		c.log.WithFields(map[string]interface{}{
			"date":    date.Format("2006-01-02"),
			"dropped": strings.Join(dropped, ","),
			"kept":    len(members),
		}).Warnf("%d of %d constituents dropped for missing prices, factors or weights", len(dropped), len(ids))
	}

	ret, ok := weightedReturn(members)
	if !ok {
		if len(members) == 0 {
			return 0, c.undefined(date, "no constituent has complete inputs")
		}
		return 0, c.undefined(date, "constituent weights do not sum to a positive value")
	}
	return ret, nil
}

// weightedReturn normalises the weights to sum 1 and returns the dot
// product with the returns. ok is false when the weight sum is not positive.
func weightedReturn(members []constituent) (float64, bool) {
	var sum float64
	for _, m := range members {
		sum += m.Weight
	}
	if len(members) == 0 || sum <= 0 {
		return 0, false
	}

	var ret float64
	for _, m := range members {
		ret += m.Return * (m.Weight / sum)
	}
	return ret, true
}
