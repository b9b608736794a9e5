package quality

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/internal/metrics"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
)

// Inputs measured by the gate
const (
	InputPrice  = "price"
	InputFactor = "adj_factor"
	InputUnits  = "units"
)

// Config holds the minimum coverage per input, each a ratio in [0, 1]
type Config struct {
	MinPriceCoverage  float64 `yaml:"min_price_coverage"`  // 0.95
	MinFactorCoverage float64 `yaml:"min_factor_coverage"` // 0.95
	MinUnitsCoverage  float64 `yaml:"min_units_coverage"`  // 0.90
}

// DefaultConfig returns the thresholds used when none are configured
func DefaultConfig() Config {
	return Config{
		MinPriceCoverage:  0.95,
		MinFactorCoverage: 0.95,
		MinUnitsCoverage:  0.90,
	}
}

func (c Config) threshold(input string) float64 {
	switch input {
	case InputPrice:
		return c.MinPriceCoverage
	case InputFactor:
		return c.MinFactorCoverage
	default:
		return c.MinUnitsCoverage
	}
}

// Snapshot is the result of one gate check
type Snapshot struct {
	Date     time.Time
	Trading  int                // stocks the selector says traded on Date
	Coverage map[string]float64 // input → share of Trading with a value
	Score    float64
	Failures []string
}

// Passed reports whether every input met its threshold
func (s *Snapshot) Passed() bool {
	return len(s.Failures) == 0
}

// FailedError is returned by Require when a snapshot misses a threshold.
// It is a data error, never retried.
type FailedError struct {
	Snapshot *Snapshot
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("input coverage on %s below threshold: %s",
		e.Snapshot.Date.Format("2006-01-02"), strings.Join(e.Snapshot.Failures, "; "))
}

// Gate checks that the raw tables the compositors read are populated for
// the stocks that traded on a session
// ⭐ SSOT: 합성 전 입력 데이터 품질 검증
type Gate struct {
	store   contracts.Store
	trading contracts.Selector
	cfg     Config
	log     *logger.Logger
	metrics *metrics.Registry
}

// NewGate creates a gate. trading must select the listed, non-suspended
// stocks of a session.
func NewGate(store contracts.Store, trading contracts.Selector, cfg Config, log *logger.Logger, m *metrics.Registry) *Gate {
	if log == nil {
		log = logger.Nop()
	}
	return &Gate{store: store, trading: trading, cfg: cfg, log: log, metrics: m}
}

// Check measures coverage on date
func (g *Gate) Check(ctx context.Context, date time.Time) (*Snapshot, error) {
	date = contracts.Day(date)
	snapshot := &Snapshot{
		Date:     date,
		Coverage: make(map[string]float64),
	}

	// 1. 거래 종목
	ids, err := g.trading.Eligible(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("select trading stocks: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no trading stocks on %s", date.Format("2006-01-02"))
	}
	snapshot.Trading = len(ids)

	// 2. 커버리지
	price, err := g.store.Read(ctx, contracts.Query{
		Table:  contracts.TableStockDaily,
		Fields: []string{contracts.FieldClose},
		Dates:  []time.Time{date},
		IDs:    ids,
	})
	if err != nil {
		return nil, contracts.Unavailable("read", contracts.TableStockDaily, err)
	}
	snapshot.Coverage[InputPrice] = ratio(len(price.IDs(date)), len(ids))

	// factor and units are sparse, any value on or before date counts
	factor, err := g.carried(ctx, contracts.TableAdjFactor, contracts.FieldAdjFactor, date, ids)
	if err != nil {
		return nil, err
	}
	snapshot.Coverage[InputFactor] = ratio(factor, len(ids))

	units, err := g.carried(ctx, contracts.TableStockUnits, contracts.FieldFloatShares, date, ids)
	if err != nil {
		return nil, err
	}
	snapshot.Coverage[InputUnits] = ratio(units, len(ids))

	// 3. 점수와 임계값
	snapshot.Score = calculateScore(snapshot.Coverage)
	inputs := make([]string, 0, len(snapshot.Coverage))
	for input := range snapshot.Coverage {
		inputs = append(inputs, input)
	}
	sort.Strings(inputs)
	for _, input := range inputs {
		cov := snapshot.Coverage[input]
		g.metrics.SetCoverage(input, cov)
		if want := g.cfg.threshold(input); cov < want {
			snapshot.Failures = append(snapshot.Failures, fmt.Sprintf("%s %.4f < %.4f", input, cov, want))
		}
	}

	g.log.WithFields(map[string]interface{}{
		"date":    date.Format("2006-01-02"),
		"trading": snapshot.Trading,
		"price":   snapshot.Coverage[InputPrice],
		"factor":  snapshot.Coverage[InputFactor],
		"units":   snapshot.Coverage[InputUnits],
		"score":   snapshot.Score,
	}).Info("Input coverage checked")

	return snapshot, nil
}

// CheckLatest checks the newest session in stock_daily. ok is false when
// the price table is empty.
func (g *Gate) CheckLatest(ctx context.Context) (snapshot *Snapshot, ok bool, err error) {
	latest, ok, err := g.store.LatestTimestamp(ctx, contracts.TableStockDaily, nil)
	if err != nil {
		return nil, false, contracts.Unavailable("latest", contracts.TableStockDaily, err)
	}
	if !ok {
		return nil, false, nil
	}
	snapshot, err = g.Check(ctx, latest)
	if err != nil {
		return nil, false, err
	}
	return snapshot, true, nil
}

// Require runs CheckLatest and turns a failed snapshot into a FailedError.
// An empty price table passes: there is nothing to compose yet.
func (g *Gate) Require(ctx context.Context) error {
	snapshot, ok, err := g.CheckLatest(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if !snapshot.Passed() {
		return &FailedError{Snapshot: snapshot}
	}
	return nil
}

// carried counts ids with at least one value in table on or before date
func (g *Gate) carried(ctx context.Context, table, field string, date time.Time, ids []string) (int, error) {
	frame, err := g.store.Read(ctx, contracts.Query{
		Table:  table,
		Fields: []string{field},
		End:    date,
		IDs:    ids,
	})
	if err != nil {
		return 0, contracts.Unavailable("read", table, err)
	}

	seen := make(map[string]struct{})
	for _, row := range frame.Rows() {
		seen[row.ID] = struct{}{}
	}
	return len(seen), nil
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// calculateScore is the weighted average coverage
func calculateScore(coverage map[string]float64) float64 {
	// 가중치 (합계 = 1.0)
	weights := map[string]float64{
		InputPrice:  0.50, // limit board and index returns
		InputFactor: 0.30,
		InputUnits:  0.20, // index weights only
	}

	score := 0.0
	for key, weight := range weights {
		if cov, exists := coverage[key]; exists {
			score += cov * weight
		}
	}
	return score
}
