package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
)

// Calendar is an in-memory list of trading sessions
// ⭐ SSOT: 거래일 계산은 여기서만
type Calendar struct {
	sessions []time.Time
}

// Compile-time interface check.
var _ contracts.Calendar = (*Calendar)(nil)

// New builds a calendar from an unordered session list. Duplicates are
// dropped and every date is truncated to a day.
func New(sessions []time.Time) *Calendar {
	seen := make(map[time.Time]struct{}, len(sessions))
	days := make([]time.Time, 0, len(sessions))
	for _, s := range sessions {
		day := contracts.Day(s)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return &Calendar{sessions: days}
}

// Len returns the number of known sessions
func (c *Calendar) Len() int {
	return len(c.sessions)
}

// First returns the earliest session
func (c *Calendar) First() time.Time {
	if len(c.sessions) == 0 {
		return time.Time{}
	}
	return c.sessions[0]
}

// Last returns the latest session
func (c *Calendar) Last() time.Time {
	if len(c.sessions) == 0 {
		return time.Time{}
	}
	return c.sessions[len(c.sessions)-1]
}

// search returns the index of the first session >= date
func (c *Calendar) search(date time.Time) int {
	date = contracts.Day(date)
	return sort.Search(len(c.sessions), func(i int) bool {
		return !c.sessions[i].Before(date)
	})
}

// IsSession reports whether date is a trading session
func (c *Calendar) IsSession(date time.Time) bool {
	i := c.search(date)
	return i < len(c.sessions) && c.sessions[i].Equal(contracts.Day(date))
}

// SessionsBetween returns the sessions in [start, end], ascending
func (c *Calendar) SessionsBetween(start, end time.Time) []time.Time {
	lo := c.search(start)
	hi := c.search(contracts.Day(end).AddDate(0, 0, 1))
	if lo >= hi {
		return nil
	}

	out := make([]time.Time, hi-lo)
	copy(out, c.sessions[lo:hi])
	return out
}

// SessionCountBetween counts sessions in [a, b]
func (c *Calendar) SessionCountBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	return c.search(contracts.Day(b).AddDate(0, 0, 1)) - c.search(a)
}

// Offset moves date by n sessions. A non-session date sits between its
// neighbours: Offset(holiday, 1) is the next session and Offset(holiday, -1)
// the previous one. Offset(holiday, 0) rolls forward.
func (c *Calendar) Offset(date time.Time, n int) (time.Time, error) {
	i := c.search(date)

	var target int
	switch {
	case c.IsSession(date):
		target = i + n
	case n > 0:
		target = i + n - 1
	default:
		target = i + n
	}

	if target < 0 || target >= len(c.sessions) {
		return time.Time{}, fmt.Errorf("offset %s by %d: %w",
			contracts.Day(date).Format("2006-01-02"), n, contracts.ErrOutOfRange)
	}
	return c.sessions[target], nil
}

// Next returns the first session strictly after date
func (c *Calendar) Next(date time.Time) (time.Time, bool) {
	i := c.search(contracts.Day(date).AddDate(0, 0, 1))
	if i >= len(c.sessions) {
		return time.Time{}, false
	}
	return c.sessions[i], true
}
