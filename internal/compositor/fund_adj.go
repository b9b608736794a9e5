package compositor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
)

// FundAdjFactor maintains each fund's cumulative adjustment factor from its
// dividend history. The factor is 1.0 on the listing date and, on the
// session after each dividend, the product of price/(price-dividend) over
// every dividend so far.
type FundAdjFactor struct {
	deps     Deps
	registry contracts.FundRegistry
	log      *logger.Logger
}

// Compile-time interface check.
var _ contracts.Compositor = (*FundAdjFactor)(nil)

// NewFundAdjFactor creates the compositor
func NewFundAdjFactor(deps Deps, registry contracts.FundRegistry) (*FundAdjFactor, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, fmt.Errorf("fund adj factor: registry is required")
	}
	c := &FundAdjFactor{deps: deps, registry: registry}
	c.log = deps.logger().ForCompositor(c.Name(), c.Table())
	return c, nil
}

// Name implements contracts.Compositor
func (c *FundAdjFactor) Name() string { return "fund_adj_factor" }

// Table implements contracts.Compositor
func (c *FundAdjFactor) Table() string { return contracts.TableAdjFactor }

// fundPrice returns the table and field holding a fund's price. Off-exchange
// funds are priced at unit NAV, exchange funds at the close.
func fundPrice(ticker string) (table, field string) {
	if strings.HasSuffix(ticker, contracts.OTCFundSuffix) {
		return contracts.TableOTCFundNAV, contracts.FieldUnitNAV
	}
	return contracts.TableExchangeFundDaily, contracts.FieldClose
}

// Run recomputes every fund's series. Data gaps and undefined ratios abort
// only the fund, the loop moves on to the next one.
func (c *FundAdjFactor) Run(ctx context.Context) error {
	tickers, err := c.registry.AllTickers(ctx)
	if err != nil {
		return contracts.Unavailable("read", "market.fund_listing", err)
	}

	gaps, aborted := 0, 0
	for i, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return err
		}

		rows, err := c.Compute(ctx, ticker)
		if err != nil {
			var gap *contracts.DataGapError
			var undef *contracts.UndefinedComputationError
			switch {
			case errors.As(err, &gap):
				gaps++
				c.deps.Metrics.DataGap(c.Name())
				c.log.WithFields(map[string]interface{}{
					"entity":   ticker,
					"expected": gap.Expected,
					"got":      gap.Got,
				}).WithError(err).Warn("incomplete fund prices, factor series left untouched")
			case errors.As(err, &undef):
				aborted++
				c.deps.Metrics.DataGap(c.Name())
				c.log.WithFields(map[string]interface{}{
					"table":  undef.Table,
					"entity": undef.Entity,
					"date":   undef.Date.Format("2006-01-02"),
					"reason": undef.Reason,
				}).Warn("undefined dividend ratio, fund skipped")
			default:
				return err
			}
			continue
		}

		c.deps.Metrics.PeriodDone(c.Name(), c.Table(), rows)
		c.log.WithField("entity", ticker).Progress(time.Time{}, i+1, len(tickers), rows)
	}

	c.log.WithFields(map[string]interface{}{
		"funds":   len(tickers),
		"gaps":    gaps,
		"aborted": aborted,
	}).Info("fund adjustment factors updated")
	return nil
}

// Compute writes one fund's factor series and returns the number of rows
// written. A *contracts.DataGapError or *contracts.UndefinedComputationError
// leaves the fund's dividend factors untouched.
func (c *FundAdjFactor) Compute(ctx context.Context, ticker string) (int, error) {
	listDate, err := c.registry.ListDate(ctx, ticker)
	if err != nil {
		if errors.Is(err, contracts.ErrNotFound) {
			return 0, &contracts.DataGapError{Table: "market.fund_listing", Entity: ticker, Expected: 1, Got: 0}
		}
		return 0, contracts.Unavailable("read", "market.fund_listing", err)
	}

	// baseline, idempotent
	seed := []contracts.Observation{contracts.NewObservation(listDate, ticker, contracts.FieldAdjFactor, 1)}
	if err := c.deps.Store.Upsert(ctx, contracts.TableAdjFactor, seed); err != nil {
		return 0, fmt.Errorf("seed %s: %w", ticker, err)
	}

	divs, err := c.deps.Store.Read(ctx, contracts.Query{
		Table:  contracts.TableFundDividend,
		Fields: []string{contracts.FieldDividend},
		IDs:    []string{ticker},
	})
	if err != nil {
		return 0, fmt.Errorf("read dividends %s: %w", ticker, err)
	}
	events := divs.Dates()
	if len(events) == 0 {
		return 1, nil
	}

	table, field := fundPrice(ticker)
	prices, err := c.deps.Store.Read(ctx, contracts.Query{
		Table:  table,
		Fields: []string{field},
		Dates:  events,
		IDs:    []string{ticker},
	})
	if err != nil {
		return 0, fmt.Errorf("read %s prices %s: %w", table, ticker, err)
	}
	if prices.Len() != len(events) {
		return 0, &contracts.DataGapError{
			Table:    table,
			Entity:   ticker,
			Expected: len(events),
			Got:      prices.Len(),
		}
	}

	series, err := c.factorSeries(ticker, events, divs, prices, field)
	if err != nil {
		return 0, err
	}
	if len(series) == 0 {
		return 1, nil
	}
	if err := c.deps.Store.Upsert(ctx, contracts.TableAdjFactor, series); err != nil {
		return 0, fmt.Errorf("write factors %s: %w", ticker, err)
	}
	return 1 + len(series), nil
}

// factorSeries chains the dividend ratios in event order. Events whose
// next session is not in the calendar yet are left for a later run.
func (c *FundAdjFactor) factorSeries(ticker string, events []time.Time, divs, prices *contracts.Frame, field string) ([]contracts.Observation, error) {
	var out []contracts.Observation
	factor := 1.0

	for _, e := range events {
		a, _ := divs.Value(e, ticker, contracts.FieldDividend)
		p, ok := prices.Value(e, ticker, field)
		if !ok {
			return nil, &contracts.DataGapError{Table: contracts.TableFundDividend, Entity: ticker, Date: e, Expected: 1, Got: 0}
		}
		if p <= 0 || p-a <= 0 {
			return nil, &contracts.UndefinedComputationError{
				Table:  contracts.TableAdjFactor,
				Entity: ticker,
				Date:   e,
				Reason: fmt.Sprintf("price %.4f with dividend %.4f gives no positive ratio", p, a),
			}
		}

		post, err := c.deps.Calendar.Offset(e, 1)
		if err != nil {
			if errors.Is(err, contracts.ErrOutOfRange) {
				c.log.WithField("entity", ticker).WithField("date", e.Format("2006-01-02")).
					Info("dividend after last known session, deferred")
				break
			}
			return nil, err
		}

		factor *= p / (p - a)
		row := contracts.NewObservation(post, ticker, contracts.FieldAdjFactor, factor)

		// two events before the same session collapse onto it
		if n := len(out); n > 0 && out[n-1].Date.Equal(row.Date) {
			out[n-1] = row
			continue
		}
		out = append(out, row)
	}
	return out, nil
}
