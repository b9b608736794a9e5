package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TMG-TheMoneyGame/AShareData/internal/calendar"
	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
)

// Repository reads the market.* master tables
// ⭐ SSOT: 거래일/상장/정지/ST 마스터 데이터 조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Compile-time interface check.
var _ contracts.FundRegistry = (*Repository)(nil)

// Sessions returns every trading date, ascending
func (r *Repository) Sessions(ctx context.Context) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT trade_date FROM market.trading_calendar ORDER BY trade_date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query trading calendar: %w", err)
	}
	defer rows.Close()

	var sessions []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan trading date: %w", err)
		}
		sessions = append(sessions, contracts.Day(d))
	}
	return sessions, rows.Err()
}

// LoadCalendar builds the in-memory calendar from the trading calendar table
func (r *Repository) LoadCalendar(ctx context.Context) (*calendar.Calendar, error) {
	sessions, err := r.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("trading calendar is empty: %w", contracts.ErrNotFound)
	}
	return calendar.New(sessions), nil
}

// Listings returns every stock listing, including delisted ones
func (r *Repository) Listings(ctx context.Context) ([]contracts.Listing, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ticker, name, list_date, delist_date
		FROM market.stock_listing
		ORDER BY ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("query stock listings: %w", err)
	}
	defer rows.Close()

	var out []contracts.Listing
	for rows.Next() {
		var l contracts.Listing
		if err := rows.Scan(&l.Ticker, &l.Name, &l.ListDate, &l.DelistDate); err != nil {
			return nil, fmt.Errorf("scan stock listing: %w", err)
		}
		l.ListDate = contracts.Day(l.ListDate)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock listings: %w", err)
	}
	return out, nil
}

// Suspended returns the tickers in a trading suspension on date
func (r *Repository) Suspended(ctx context.Context, date time.Time) ([]string, error) {
	return r.tickers(ctx, `
		SELECT ticker FROM market.stock_suspension
		WHERE trade_date = $1
		ORDER BY ticker
	`, contracts.Day(date))
}

// SpecialTreatment returns the tickers flagged ST on date
func (r *Repository) SpecialTreatment(ctx context.Context, date time.Time) ([]string, error) {
	return r.tickers(ctx, `
		SELECT DISTINCT ticker FROM market.stock_st
		WHERE start_date <= $1 AND (end_date IS NULL OR end_date >= $1)
		ORDER BY ticker
	`, contracts.Day(date))
}

func (r *Repository) tickers(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tickers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AllTickers implements contracts.FundRegistry
func (r *Repository) AllTickers(ctx context.Context) ([]string, error) {
	return r.tickers(ctx, `SELECT ticker FROM market.fund_listing ORDER BY ticker`)
}

// ListDate implements contracts.FundRegistry
func (r *Repository) ListDate(ctx context.Context, ticker string) (time.Time, error) {
	var d time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT list_date FROM market.fund_listing WHERE ticker = $1
	`, ticker).Scan(&d)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, fmt.Errorf("fund %s: %w", ticker, contracts.ErrNotFound)
		}
		return time.Time{}, fmt.Errorf("query fund list date %s: %w", ticker, err)
	}
	return contracts.Day(d), nil
}
