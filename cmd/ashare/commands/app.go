package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/TMG-TheMoneyGame/AShareData/internal/compositor"
	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/internal/marketdata"
	"github.com/TMG-TheMoneyGame/AShareData/internal/metrics"
	"github.com/TMG-TheMoneyGame/AShareData/internal/policyconfig"
	"github.com/TMG-TheMoneyGame/AShareData/internal/quality"
	"github.com/TMG-TheMoneyGame/AShareData/internal/store"
	chstore "github.com/TMG-TheMoneyGame/AShareData/internal/store/clickhouse"
	pgstore "github.com/TMG-TheMoneyGame/AShareData/internal/store/postgres"
	"github.com/TMG-TheMoneyGame/AShareData/internal/universe"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/config"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/database"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/redis"
)

const cachePrefix = "ashare"

// app holds the long-lived dependencies every command shares
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB
	ch      *chstore.Conn
	store   contracts.Store
	market  *marketdata.Repository
	redis   *redis.Client
	metrics *metrics.Registry
}

// newApp loads config and opens connections
// 1. config → 2. logger → 3. postgres → 4. store backend → 5. redis
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	// master data always lives in Postgres
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a := &app{cfg: cfg, log: log, db: db, market: marketdata.NewRepository(db.Pool)}

	var backend contracts.Store
	switch cfg.StoreBackend {
	case "clickhouse":
		a.ch, err = chstore.NewConn(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		backend = chstore.NewStore(a.ch.Conn)
	default:
		backend = pgstore.NewStore(db.Pool)
	}
	a.store = store.NewBreaker(backend, store.BreakerConfig{
		Name:                cfg.StoreBackend,
		ConsecutiveFailures: cfg.Compose.BreakerFailures,
		Timeout:             cfg.Compose.BreakerTimeout,
	}, log)

	a.redis, err = redis.New(ctx, cfg)
	if err != nil {
		// the cache is optional, run without it
		log.WithError(err).Warn("Redis unavailable, selector cache disabled")
		a.redis = nil
	}

	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
	}

	log.WithFields(map[string]interface{}{
		"env":     cfg.Env,
		"backend": cfg.StoreBackend,
		"cache":   a.redis != nil && a.redis.Enabled(),
	}).Debug("Dependencies initialised")
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.ch != nil {
		a.ch.Close()
	}
	a.db.Close()
}

// selector builds a selector for policy, cached in Redis when enabled
func (a *app) selector(cal contracts.Calendar, policy contracts.SelectionPolicy) (contracts.Selector, error) {
	sel, err := universe.NewSelector(a.market, cal, policy)
	if err != nil {
		return nil, err
	}
	if a.redis == nil || !a.redis.Enabled() {
		return sel, nil
	}
	cache := redis.NewCache(a.redis, cachePrefix)
	return universe.NewCachedSelector(sel, cache, a.cfg.Redis.TTL, a.log), nil
}

// gate builds the input coverage gate over listed, non-suspended stocks
func (a *app) gate(ctx context.Context) (*quality.Gate, error) {
	cal, err := a.market.LoadCalendar(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trading calendar: %w", err)
	}
	trading, err := a.selector(cal, contracts.SelectionPolicy{Name: "trading", ExcludeSuspended: true})
	if err != nil {
		return nil, err
	}
	cfg := quality.Config{
		MinPriceCoverage:  a.cfg.Compose.MinPriceCoverage,
		MinFactorCoverage: a.cfg.Compose.MinFactorCoverage,
		MinUnitsCoverage:  a.cfg.Compose.MinUnitsCoverage,
	}
	return quality.NewGate(a.store, trading, cfg, a.log, a.metrics), nil
}

// requireInputs blocks a run whose newest raw session is incomplete
func (a *app) requireInputs(ctx context.Context) error {
	if !a.cfg.Compose.Gate {
		return nil
	}
	g, err := a.gate(ctx)
	if err != nil {
		return err
	}
	return g.Require(ctx)
}

// pipelineOptions narrows a run to some compositors
type pipelineOptions struct {
	only    []string // limit_board, fund_adj_factor, index_return
	indices []string // index tickers, empty means all
}

func (o pipelineOptions) wants(kind string) bool {
	if len(o.only) == 0 {
		return true
	}
	for _, k := range o.only {
		if k == kind {
			return true
		}
	}
	return false
}

func (o pipelineOptions) wantsIndex(ticker string) bool {
	if len(o.indices) == 0 {
		return true
	}
	for _, t := range o.indices {
		if strings.EqualFold(t, ticker) {
			return true
		}
	}
	return false
}

// buildPipeline loads the calendar and policies and assembles the
// compositors in their fixed order: limit board, fund factors, indices
func (a *app) buildPipeline(ctx context.Context, opts pipelineOptions) (*compositor.Pipeline, error) {
	cal, err := a.market.LoadCalendar(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trading calendar: %w", err)
	}
	deps := compositor.Deps{Store: a.store, Calendar: cal, Log: a.log, Metrics: a.metrics}

	var compositors []contracts.Compositor

	if opts.wants("limit_board") {
		suspended, err := a.selector(cal, contracts.SuspendedPolicy())
		if err != nil {
			return nil, err
		}
		c, err := compositor.NewLimitBoard(deps, suspended)
		if err != nil {
			return nil, err
		}
		compositors = append(compositors, c)
	}

	if opts.wants("fund_adj_factor") {
		c, err := compositor.NewFundAdjFactor(deps, a.market)
		if err != nil {
			return nil, err
		}
		compositors = append(compositors, c)
	}

	if opts.wants("index_return") {
		cfg, _, err := policyconfig.Load(a.cfg.Compose.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("load index policies: %w", err)
		}
		for _, w := range policyconfig.Warn(cfg) {
			a.log.WithField("code", w.Code).Warn(w.Message)
		}
		policies, err := cfg.Policies()
		if err != nil {
			return nil, err
		}
		for _, p := range policies {
			if !opts.wantsIndex(p.Ticker) {
				continue
			}
			sel, err := a.selector(cal, p.Selection)
			if err != nil {
				return nil, fmt.Errorf("index %s: %w", p.Ticker, err)
			}
			c, err := compositor.NewIndexReturn(deps, p, sel)
			if err != nil {
				return nil, err
			}
			compositors = append(compositors, c)
		}
	}

	if len(compositors) == 0 {
		return nil, fmt.Errorf("no compositor selected")
	}
	return compositor.NewPipeline(a.store, a.log, a.metrics, compositors...), nil
}
