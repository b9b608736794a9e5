package policyconfig

import (
	"fmt"
	"regexp"
	"time"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

var (
	tableName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	boardCode = regexp.MustCompile(`^[0-9]{1,3}$`)
)

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.Version == "" {
		return ValidationError{"meta.version", "required"}
	}

	// === Selections ===
	seen := make(map[string]struct{}, len(cfg.Selections))
	for i, s := range cfg.Selections {
		field := fmt.Sprintf("selections[%d]", i)
		if s.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if _, dup := seen[s.Name]; dup {
			return ValidationError{field + ".name", "duplicate selection " + s.Name}
		}
		seen[s.Name] = struct{}{}

		if err := s.Policy().Validate(); err != nil {
			return ValidationError{field, err.Error()}
		}
		for _, b := range s.Boards {
			if !boardCode.MatchString(b) {
				return ValidationError{field + ".boards", fmt.Sprintf("%q is not a ticker prefix", b)}
			}
		}
	}

	// === Indices ===
	if len(cfg.Indices) == 0 {
		return ValidationError{"indices", "at least one index is required"}
	}
	tickers := make(map[string]struct{}, len(cfg.Indices))
	for i, idx := range cfg.Indices {
		if idx.Ticker == "" {
			return ValidationError{indexField(i, "ticker"), "required"}
		}
		if _, dup := tickers[idx.Ticker]; dup {
			return ValidationError{indexField(i, "ticker"), "duplicate ticker " + idx.Ticker}
		}
		tickers[idx.Ticker] = struct{}{}

		sel, ok := cfg.selection(idx.Selection)
		if !ok {
			return ValidationError{indexField(i, "selection"), "unknown selection " + idx.Selection}
		}
		if sel.SelectSuspended {
			return ValidationError{indexField(i, "selection"), "an index cannot be built from suspended stocks"}
		}
		if !tableName.MatchString(idx.Weight.Table) {
			return ValidationError{indexField(i, "weight.table"), "must be a lowercase table name"}
		}
		if idx.Weight.Field == "" {
			return ValidationError{indexField(i, "weight.field"), "required"}
		}
		if _, err := time.Parse(DateLayout, idx.StartDate); err != nil {
			return ValidationError{indexField(i, "start_date"), "must be YYYY-MM-DD"}
		}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	for _, idx := range cfg.Indices {
		sel, ok := cfg.selection(idx.Selection)
		if !ok {
			continue
		}
		// 거래정지 종목은 수익률 0으로 지수에 포함됨
		if !sel.ExcludeSuspended {
			warnings = append(warnings, Warning{
				Code:    "SUSPENDED_INCLUDED",
				Message: fmt.Sprintf("index %s keeps suspended stocks at a zero return", idx.Ticker),
			})
		}
		if sel.MinListingSessions == 0 {
			warnings = append(warnings, Warning{
				Code:    "NEW_LISTINGS_INCLUDED",
				Message: fmt.Sprintf("index %s includes stocks from their first session", idx.Ticker),
			})
		}
	}

	return warnings
}

func indexField(i int, name string) string {
	return fmt.Sprintf("indices[%d].%s", i, name)
}
