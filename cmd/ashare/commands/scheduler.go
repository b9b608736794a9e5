package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TMG-TheMoneyGame/AShareData/internal/api"
	"github.com/TMG-TheMoneyGame/AShareData/internal/api/handlers"
	"github.com/TMG-TheMoneyGame/AShareData/internal/scheduler"
	"github.com/TMG-TheMoneyGame/AShareData/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `Runs the compositors on a cron schedule.

Subcommands:
  start   - scheduler daemon with the HTTP API (health, metrics, checkpoints)
  run     - run the compose job once through the scheduler (with retries)

Example:
  go run ./cmd/ashare scheduler start
  go run ./cmd/ashare scheduler run`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `Schedules the compose job (COMPOSE_SCHEDULE, seconds first) and
serves the HTTP API on PORT until Ctrl+C. Store outages are retried;
data errors are logged and wait for the next run.`,
		RunE: runScheduler,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run",
		Short: "작업 즉시 실행",
		RunE:  runComposeJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// initScheduler registers the compose job. The pipeline is rebuilt per run
// so calendar and policy changes are picked up without a restart.
func initScheduler(a *app) (*scheduler.Scheduler, *jobs.CompositeJob, error) {
	sched := scheduler.New(a.log)

	job := jobs.NewCompositeJob(func(ctx context.Context) (jobs.Runner, error) {
		if err := a.requireInputs(ctx); err != nil {
			return nil, err
		}
		return a.buildPipeline(ctx, pipelineOptions{})
	}, a.cfg.Compose.Schedule, a.log)

	if err := sched.AddJob(job); err != nil {
		return nil, nil, err
	}
	return sched, job, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.close()

	sched, _, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	routes := api.Routes{
		Checkpoints: handlers.NewCheckpointHandler(a.store, a.log),
		Jobs:        handlers.NewJobsHandler(sched),
	}
	if a.metrics != nil {
		routes.Metrics = a.metrics.Handler()
	}
	server := api.New(a.cfg, a.log, api.NewRouter(routes, a.log))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sched.Start()

	PrintHeader("Compositor scheduler")
	PrintKeyValue("Schedule", a.cfg.Compose.Schedule, 8)
	PrintKeyValue("API", ":"+a.cfg.Port, 8)
	PrintList(sched.GetAllJobs())
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			a.log.WithError(err).Error("API server stopped")
		}
	}

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	fmt.Println("Scheduler stopped")
	return nil
}

func runComposeJob(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.close()

	sched, job, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	result, err := sched.RunJob(job.Name())
	if err != nil {
		return err
	}

	PrintHeader("Job " + result.JobName)
	PrintKeyValue("Duration", result.Duration.Round(time.Millisecond).String(), 8)
	if report := job.LastReport(); report != nil {
		PrintKeyValue("Run ID", report.RunID, 8)
		PrintList(report.Completed)
	}
	if !result.Success {
		PrintError(result.Error)
		return fmt.Errorf("job %s failed", result.JobName)
	}
	PrintSuccess("Job completed")
	return nil
}
