package universe

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
)

// Source provides the master data a selector filters on
type Source interface {
	Listings(ctx context.Context) ([]contracts.Listing, error)
	Suspended(ctx context.Context, date time.Time) ([]string, error)
	SpecialTreatment(ctx context.Context, date time.Time) ([]string, error)
}

// Selector returns the tickers eligible under one SelectionPolicy
// ⭐ SSOT: 정지 종목 제외와 지수 구성 종목 선택은 모두 여기서
type Selector struct {
	src    Source
	cal    contracts.Calendar
	policy contracts.SelectionPolicy

	mu       sync.Mutex
	listings []contracts.Listing
}

// Compile-time interface check.
var _ contracts.Selector = (*Selector)(nil)

// NewSelector creates a selector for policy. cal is only consulted when the
// policy sets MinListingSessions.
func NewSelector(src Source, cal contracts.Calendar, policy contracts.SelectionPolicy) (*Selector, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.MinListingSessions > 0 && cal == nil {
		return nil, fmt.Errorf("policy %s: min_listing_sessions needs a calendar", policy.Name)
	}
	return &Selector{src: src, cal: cal, policy: policy}, nil
}

// Policy returns the selector's policy
func (s *Selector) Policy() contracts.SelectionPolicy {
	return s.policy
}

// Eligible returns the eligible tickers on date, ascending
func (s *Selector) Eligible(ctx context.Context, date time.Time) ([]string, error) {
	date = contracts.Day(date)

	if s.policy.SelectSuspended {
		suspended, err := s.src.Suspended(ctx, date)
		if err != nil {
			return nil, contracts.Unavailable("select", "market.stock_suspension", err)
		}
		return s.onBoard(suspended), nil
	}

	listings, err := s.loadListings(ctx)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]struct{})
	if s.policy.ExcludeSuspended {
		suspended, err := s.src.Suspended(ctx, date)
		if err != nil {
			return nil, contracts.Unavailable("select", "market.stock_suspension", err)
		}
		for _, t := range suspended {
			excluded[t] = struct{}{}
		}
	}
	if s.policy.ExcludeST {
		st, err := s.src.SpecialTreatment(ctx, date)
		if err != nil {
			return nil, contracts.Unavailable("select", "market.stock_st", err)
		}
		for _, t := range st {
			excluded[t] = struct{}{}
		}
	}

	var out []string
	for _, l := range listings {
		if !l.ListedOn(date) || !s.policy.OnBoard(l.Ticker) {
			continue
		}
		if _, skip := excluded[l.Ticker]; skip {
			continue
		}
		if s.policy.MinListingSessions > 0 &&
			s.cal.SessionCountBetween(l.ListDate, date) < s.policy.MinListingSessions {
			continue
		}
		out = append(out, l.Ticker)
	}
	sort.Strings(out)
	return out, nil
}

// loadListings reads the listing table once per selector
func (s *Selector) loadListings(ctx context.Context) ([]contracts.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listings != nil {
		return s.listings, nil
	}
	listings, err := s.src.Listings(ctx)
	if err != nil {
		return nil, contracts.Unavailable("select", "market.stock_listing", err)
	}
	if listings == nil {
		listings = []contracts.Listing{}
	}
	s.listings = listings
	return listings, nil
}

func (s *Selector) onBoard(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if s.policy.OnBoard(t) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
