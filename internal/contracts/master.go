package contracts

import "time"

// Listing is the master record of one stock or fund
type Listing struct {
	Ticker     string
	Name       string
	ListDate   time.Time
	DelistDate *time.Time
}

// ListedOn reports whether the ticker trades on date: listed on or before
// it and not yet delisted.
func (l Listing) ListedOn(date time.Time) bool {
	date = Day(date)
	if Day(l.ListDate).After(date) {
		return false
	}
	if l.DelistDate != nil && !Day(*l.DelistDate).After(date) {
		return false
	}
	return true
}
