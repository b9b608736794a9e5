package compositor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TMG-TheMoneyGame/AShareData/internal/checkpoint"
	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/internal/metrics"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
)

// Pipeline runs compositors in order and stops at the first failure.
// ⭐ SSOT: 일일 합성 순서 (일자판 → 펀드 복권인자 → 자체 지수)
type Pipeline struct {
	compositors []contracts.Compositor
	resolver    *checkpoint.Resolver
	log         *logger.Logger
	metrics     *metrics.Registry
}

// RunReport summarises one pipeline run
type RunReport struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Completed []string

	// Failed is the compositor that stopped the run, empty on success
	Failed string
}

// NewPipeline creates a pipeline. metrics may be nil.
func NewPipeline(store contracts.Store, log *logger.Logger, m *metrics.Registry, compositors ...contracts.Compositor) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		compositors: compositors,
		resolver:    checkpoint.NewResolver(store),
		log:         log,
		metrics:     m,
	}
}

// Names lists the compositors in run order
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.compositors))
	for i, c := range p.compositors {
		names[i] = c.Name()
	}
	return names
}

// Run executes every compositor. The report is returned even on error.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{RunID: uuid.NewString(), StartedAt: time.Now()}
	log := p.log.WithField("run_id", report.RunID)
	log.WithField("compositors", p.Names()).Info("composition run started")

	defer func() {
		report.Duration = time.Since(report.StartedAt)
	}()

	for _, c := range p.compositors {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		started := time.Now()
		err := c.Run(ctx)
		p.metrics.RunFinished(c.Name(), started, err)
		if err != nil {
			report.Failed = c.Name()
			log.WithError(err).WithField("compositor", c.Name()).Error("compositor failed, run stopped")
			return report, fmt.Errorf("compositor %s: %w", c.Name(), err)
		}
		report.Completed = append(report.Completed, c.Name())

		if at, ok, err := p.checkpoint(ctx, c.Table()); err == nil && ok {
			p.metrics.SetCheckpoint(c.Table(), at)
			log.WithFields(map[string]interface{}{
				"compositor": c.Name(),
				"checkpoint": at.Format("2006-01-02"),
				"elapsed":    time.Since(started).String(),
			}).Info("compositor finished")
		}
	}

	log.WithField("elapsed", time.Since(report.StartedAt).String()).Info("composition run finished")
	return report, nil
}

func (p *Pipeline) checkpoint(ctx context.Context, table string) (time.Time, bool, error) {
	at, err := p.resolver.Resolve(ctx, table, time.Time{}, nil)
	if err != nil {
		return time.Time{}, false, err
	}
	return at, !at.IsZero(), nil
}
