package contracts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SelectionPolicy describes which tickers a Selector returns on a date.
// The zero value selects every listed, not-yet-delisted stock.
// ⭐ SSOT: 종목 선택 기준은 이 타입 하나로 표현
type SelectionPolicy struct {
	Name string

	// SelectSuspended returns only tickers suspended on the date.
	SelectSuspended bool

	ExcludeSuspended   bool
	ExcludeST          bool
	MinListingSessions int

	// Boards is an allow-list of ticker prefixes (e.g. "60", "00", "30", "68").
	Boards []string
}

// SuspendedPolicy selects tickers in a trading suspension
func SuspendedPolicy() SelectionPolicy {
	return SelectionPolicy{Name: "suspended", SelectSuspended: true}
}

// Validate checks the policy for contradictory settings
func (p SelectionPolicy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("selection policy name is required")
	}
	if p.SelectSuspended && p.ExcludeSuspended {
		return fmt.Errorf("policy %s: select_suspended and exclude_suspended are exclusive", p.Name)
	}
	if p.MinListingSessions < 0 {
		return fmt.Errorf("policy %s: min_listing_sessions must be >= 0", p.Name)
	}
	return nil
}

// Fingerprint identifies the policy's filter settings. The name is not
// part of it; board order does not matter.
func (p SelectionPolicy) Fingerprint() string {
	boards := append([]string(nil), p.Boards...)
	sort.Strings(boards)
	raw := fmt.Sprintf("%t|%t|%t|%d|%s",
		p.SelectSuspended, p.ExcludeSuspended, p.ExcludeST, p.MinListingSessions, strings.Join(boards, ","))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:4])
}

// OnBoard reports whether ticker passes the board allow-list
func (p SelectionPolicy) OnBoard(ticker string) bool {
	if len(p.Boards) == 0 {
		return true
	}
	for _, prefix := range p.Boards {
		if strings.HasPrefix(ticker, prefix) {
			return true
		}
	}
	return false
}

// CompositionPolicy configures one self-constructed index. Immutable once
// handed to a compositor.
type CompositionPolicy struct {
	Name      string
	Ticker    string
	Selection SelectionPolicy

	// Weighting base read at the previous session, e.g. stock_units.float_shares.
	WeightTable string
	WeightField string

	// StartDate is the index base date; the first return is computed for
	// the session after it.
	StartDate time.Time
}

// Validate checks that the policy is complete
func (p CompositionPolicy) Validate() error {
	if p.Ticker == "" {
		return fmt.Errorf("index policy %q: ticker is required", p.Name)
	}
	if p.WeightTable == "" || p.WeightField == "" {
		return fmt.Errorf("index policy %q: weight table and field are required", p.Name)
	}
	if p.StartDate.IsZero() {
		return fmt.Errorf("index policy %q: start date is required", p.Name)
	}
	if err := p.Selection.Validate(); err != nil {
		return fmt.Errorf("index policy %q: %w", p.Name, err)
	}
	return nil
}
