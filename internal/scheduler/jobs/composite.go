package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/TMG-TheMoneyGame/AShareData/internal/compositor"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
)

// DefaultSchedule runs after the exchange close data has landed, weekdays
// only. Holidays make the run a no-op since no new price session exists.
const DefaultSchedule = "0 30 18 * * 1-5"

// Runner runs one composition pass
type Runner interface {
	Run(ctx context.Context) (*compositor.RunReport, error)
}

// BuildFunc assembles a fresh runner for each run so master data such as
// the trading calendar is reloaded
type BuildFunc func(ctx context.Context) (Runner, error)

// CompositeJob runs the compositor pipeline on a schedule
type CompositeJob struct {
	build    BuildFunc
	schedule string
	logger   *logger.Logger

	mu   sync.Mutex
	last *compositor.RunReport
}

// NewCompositeJob creates the job. An empty schedule uses DefaultSchedule.
func NewCompositeJob(build BuildFunc, schedule string, log *logger.Logger) *CompositeJob {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &CompositeJob{build: build, schedule: schedule, logger: log}
}

// Name returns the job name
func (j *CompositeJob) Name() string {
	return "compose"
}

// Schedule returns the cron schedule
func (j *CompositeJob) Schedule() string {
	return j.schedule
}

// LastReport returns the report of the latest run, nil before the first
func (j *CompositeJob) LastReport() *compositor.RunReport {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

// Run builds the pipeline and executes it
func (j *CompositeJob) Run(ctx context.Context) error {
	runner, err := j.build(ctx)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	report, err := runner.Run(ctx)
	j.mu.Lock()
	j.last = report
	j.mu.Unlock()
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":    report.RunID,
		"completed": len(report.Completed),
		"duration":  report.Duration.String(),
	}).Info("Scheduled composition finished")
	return nil
}
