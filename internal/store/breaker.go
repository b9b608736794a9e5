// Package store holds the store adapters and the decorators shared by them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
)

// BreakerConfig configures the store circuit breaker
type BreakerConfig struct {
	Name string

	// ConsecutiveFailures trips the breaker
	ConsecutiveFailures uint32

	// Timeout is how long the breaker stays open before a trial request
	Timeout time.Duration
}

// Breaker guards a Store with a circuit breaker. While the circuit is open
// every call fails fast with a StoreUnavailableError.
type Breaker struct {
	next contracts.Store
	cb   *gobreaker.CircuitBreaker
}

// Compile-time interface check.
var _ contracts.Store = (*Breaker)(nil)

// NewBreaker wraps next
func NewBreaker(next contracts.Store, cfg BreakerConfig, log *logger.Logger) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "store"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 3
	}

	st := gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// duplicate keys and bad rows are caller errors, not outages
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, contracts.ErrDuplicateKey) ||
				errors.Is(err, contracts.ErrInvalidInput)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.WithFields(map[string]interface{}{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("store circuit state changed")
			}
		},
	}

	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// State returns the current circuit state name
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Read implements contracts.Store
func (b *Breaker) Read(ctx context.Context, q contracts.Query) (*contracts.Frame, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Read(ctx, q)
	})
	if err != nil {
		return nil, contracts.Unavailable("read", q.Table, err)
	}
	return res.(*contracts.Frame), nil
}

// Insert implements contracts.Store
func (b *Breaker) Insert(ctx context.Context, table string, rows []contracts.Observation) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Insert(ctx, table, rows)
	})
	return contracts.Unavailable("insert", table, err)
}

// Upsert implements contracts.Store
func (b *Breaker) Upsert(ctx context.Context, table string, rows []contracts.Observation) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Upsert(ctx, table, rows)
	})
	return contracts.Unavailable("upsert", table, err)
}

type latest struct {
	at time.Time
	ok bool
}

// LatestTimestamp implements contracts.Store
func (b *Breaker) LatestTimestamp(ctx context.Context, table string, filter *contracts.EntityFilter) (time.Time, bool, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		at, ok, err := b.next.LatestTimestamp(ctx, table, filter)
		return latest{at: at, ok: ok}, err
	})
	if err != nil {
		return time.Time{}, false, contracts.Unavailable("latest", table, err)
	}
	l := res.(latest)
	return l.at, l.ok, nil
}
