package policyconfig

import (
	"time"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
)

// DateLayout is the date format used in policy files
const DateLayout = "2006-01-02"

// Config는 자체 합성 지수 정책 파일 전체
type Config struct {
	Meta       Meta        `yaml:"meta" json:"meta"`
	Selections []Selection `yaml:"selections" json:"selections"`
	Indices    []Index     `yaml:"indices" json:"indices"`
}

// Meta 메타 정보
type Meta struct {
	Version string `yaml:"version" json:"version"`
	Owner   string `yaml:"owner,omitempty" json:"owner,omitempty"`
}

// Selection is a named stock selection policy that indices refer to
type Selection struct {
	Name               string   `yaml:"name" json:"name"`
	SelectSuspended    bool     `yaml:"select_suspended,omitempty" json:"select_suspended,omitempty"`
	ExcludeSuspended   bool     `yaml:"exclude_suspended,omitempty" json:"exclude_suspended,omitempty"`
	ExcludeST          bool     `yaml:"exclude_st,omitempty" json:"exclude_st,omitempty"`
	MinListingSessions int      `yaml:"min_listing_sessions,omitempty" json:"min_listing_sessions,omitempty"`
	Boards             []string `yaml:"boards,omitempty" json:"boards,omitempty"`
}

// Index is one self-constructed index
type Index struct {
	Name      string `yaml:"name" json:"name"`
	Ticker    string `yaml:"ticker" json:"ticker"`
	Selection string `yaml:"selection" json:"selection"`
	Weight    Weight `yaml:"weight" json:"weight"`
	StartDate string `yaml:"start_date" json:"start_date"` // YYYY-MM-DD, 기준일
}

// Weight names the weighting base read at the previous session
type Weight struct {
	Table string `yaml:"table" json:"table"`
	Field string `yaml:"field" json:"field"`
}

// Policy converts the selection to the contracts type
func (s Selection) Policy() contracts.SelectionPolicy {
	return contracts.SelectionPolicy{
		Name:               s.Name,
		SelectSuspended:    s.SelectSuspended,
		ExcludeSuspended:   s.ExcludeSuspended,
		ExcludeST:          s.ExcludeST,
		MinListingSessions: s.MinListingSessions,
		Boards:             append([]string(nil), s.Boards...),
	}
}

// selection finds a selection by name
func (c *Config) selection(name string) (Selection, bool) {
	for _, s := range c.Selections {
		if s.Name == name {
			return s, true
		}
	}
	return Selection{}, false
}

// Policies resolves every index against its selection. The config must
// have passed Validate.
func (c *Config) Policies() ([]contracts.CompositionPolicy, error) {
	out := make([]contracts.CompositionPolicy, 0, len(c.Indices))
	for i, idx := range c.Indices {
		sel, ok := c.selection(idx.Selection)
		if !ok {
			return nil, ValidationError{indexField(i, "selection"), "unknown selection " + idx.Selection}
		}
		start, err := time.Parse(DateLayout, idx.StartDate)
		if err != nil {
			return nil, ValidationError{indexField(i, "start_date"), "must be YYYY-MM-DD"}
		}
		p := contracts.CompositionPolicy{
			Name:        idx.Name,
			Ticker:      idx.Ticker,
			Selection:   sel.Policy(),
			WeightTable: idx.Weight.Table,
			WeightField: idx.Weight.Field,
			StartDate:   start,
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
