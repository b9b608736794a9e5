package contracts

import (
	"errors"
	"fmt"
	"time"
)

// Store sentinel errors
var (
	// ErrDuplicateKey is returned by Insert when a (date, id) key exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound is returned when master data for an entity is missing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for rows without an id or values.
	ErrInvalidInput = errors.New("invalid input")

	// ErrOutOfRange is returned when a calendar offset leaves the known sessions.
	ErrOutOfRange = errors.New("date out of calendar range")
)

// DataGapError reports fewer observations than required for one entity.
// Compositors recover from it by skipping the entity.
type DataGapError struct {
	Table    string
	Entity   string
	Date     time.Time
	Expected int
	Got      int
}

func (e *DataGapError) Error() string {
	msg := fmt.Sprintf("data gap in %s for %s: expected %d observations, got %d",
		e.Table, e.Entity, e.Expected, e.Got)
	if !e.Date.IsZero() {
		msg += " at " + e.Date.Format("2006-01-02")
	}
	return msg
}

// UndefinedComputationError reports an empty or degenerate input set. It
// halts the run: nothing is written for the period.
type UndefinedComputationError struct {
	Table  string
	Entity string
	Date   time.Time
	Reason string
}

func (e *UndefinedComputationError) Error() string {
	return fmt.Sprintf("undefined computation for %s/%s on %s: %s",
		e.Table, e.Entity, e.Date.Format("2006-01-02"), e.Reason)
}

// StoreUnavailableError wraps a failed store read or write
type StoreUnavailableError struct {
	Table string
	Op    string
	Err   error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err as a StoreUnavailableError unless it already is one
// or is a store sentinel the caller must see unchanged.
func Unavailable(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var sue *StoreUnavailableError
	if errors.As(err, &sue) || errors.Is(err, ErrDuplicateKey) || errors.Is(err, ErrInvalidInput) {
		return err
	}
	return &StoreUnavailableError{Table: table, Op: op, Err: err}
}

// IsDataGap reports whether err is (or wraps) a DataGapError
func IsDataGap(err error) bool {
	var gap *DataGapError
	return errors.As(err, &gap)
}
