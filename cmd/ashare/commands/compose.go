package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	composeOnly    []string
	composeIndices []string
	composeNoGate  bool
)

// composeCmd runs the compositor pipeline once
var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Run the compositors once",
	Long: `Runs the compositors in order and stops at the first fatal error:

  1. limit_board      const_limit
  2. fund_adj_factor  adj_factor (funds)
  3. index_return     custom_index, one per policy in POLICY_FILE

Each compositor resumes from its own checkpoint, so an interrupted run is
resumed by running it again. Ctrl+C stops after the current period.

Unless QUALITY_GATE=false or --no-gate is set, the run is refused when the
newest stock_daily session lacks price, factor or share data for too many
trading stocks (see 'ashare quality').

Example:
  go run ./cmd/ashare compose
  go run ./cmd/ashare compose --only index_return --index CI0001.CUSTOM`,
	RunE: runCompose,
}

func init() {
	rootCmd.AddCommand(composeCmd)
	composeCmd.Flags().StringSliceVar(&composeOnly, "only", nil, "compositors to run (limit_board, fund_adj_factor, index_return)")
	composeCmd.Flags().StringSliceVar(&composeIndices, "index", nil, "index tickers to run (default all)")
	composeCmd.Flags().BoolVar(&composeNoGate, "no-gate", false, "skip the input coverage gate")
}

func runCompose(cmd *cobra.Command, args []string) error {
	for _, k := range composeOnly {
		switch k {
		case "limit_board", "fund_adj_factor", "index_return":
		default:
			return fmt.Errorf("unknown compositor %q", k)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if composeNoGate {
		a.cfg.Compose.Gate = false
	}
	if err := a.requireInputs(ctx); err != nil {
		return err
	}

	pipeline, err := a.buildPipeline(ctx, pipelineOptions{only: composeOnly, indices: composeIndices})
	if err != nil {
		return err
	}

	PrintHeader("Composition run")
	PrintList(pipeline.Names())
	PrintSeparator()

	report, runErr := pipeline.Run(ctx)

	PrintKeyValue("Run ID", report.RunID, 10)
	PrintKeyValue("Completed", fmt.Sprintf("%d/%d", len(report.Completed), len(pipeline.Names())), 10)
	PrintKeyValue("Duration", report.Duration.Round(time.Millisecond).String(), 10)
	if runErr != nil {
		PrintError(fmt.Sprintf("%s failed: %v", report.Failed, runErr))
		return runErr
	}
	PrintSuccess("All compositors up to date")
	return nil
}
