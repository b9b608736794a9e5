package contracts

import (
	"context"
	"time"
)

// Store is the time-series store every compositor reads from and writes to
// ⭐ SSOT: 저장소 인터페이스는 여기서만 정의
type Store interface {
	// Read returns the rows of q.Table matching q. A missing table reads as
	// an empty frame.
	Read(ctx context.Context, q Query) (*Frame, error)

	// Insert appends rows atomically. Any existing (date, id) key fails the
	// whole batch with ErrDuplicateKey.
	Insert(ctx context.Context, table string, rows []Observation) error

	// Upsert writes rows atomically, overwriting existing keys.
	Upsert(ctx context.Context, table string, rows []Observation) error

	// LatestTimestamp returns the max date in table (restricted by filter
	// when non-nil). ok is false for an empty or missing table.
	LatestTimestamp(ctx context.Context, table string, filter *EntityFilter) (latest time.Time, ok bool, err error)
}

// Calendar answers trading-session questions
type Calendar interface {
	// SessionsBetween returns the sessions in [start, end], ascending.
	SessionsBetween(start, end time.Time) []time.Time

	// Offset moves date by n sessions (n may be negative).
	Offset(date time.Time, n int) (time.Time, error)

	// SessionCountBetween counts sessions in [a, b].
	SessionCountBetween(a, b time.Time) int
}

// Selector returns the ids eligible under one fixed policy
type Selector interface {
	Policy() SelectionPolicy
	Eligible(ctx context.Context, date time.Time) ([]string, error)
}

// FundRegistry provides fund master data
type FundRegistry interface {
	AllTickers(ctx context.Context) ([]string, error)
	ListDate(ctx context.Context, ticker string) (time.Time, error)
}

// Compositor derives one table from raw tables incrementally
type Compositor interface {
	Name() string
	Table() string
	Run(ctx context.Context) error
}
