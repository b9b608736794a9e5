package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/TMG-TheMoneyGame/AShareData/internal/quality"
)

// qualityCmd checks raw input coverage
var qualityCmd = &cobra.Command{
	Use:   "quality [date]",
	Short: "Check raw input coverage for a session",
	Long: `Measures which share of listed, non-suspended stocks has a close in
stock_daily, an adj_factor and float shares on the session. Without a date
the newest stock_daily session is checked. Exits non-zero when a
QUALITY_MIN_*_COVERAGE threshold is missed.

Example:
  go run ./cmd/ashare quality
  go run ./cmd/ashare quality 2024-01-04`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuality,
}

func init() {
	rootCmd.AddCommand(qualityCmd)
}

func runQuality(cmd *cobra.Command, args []string) error {
	var date time.Time
	if len(args) == 1 {
		d, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", args[0], err)
		}
		date = d
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	g, err := a.gate(ctx)
	if err != nil {
		return err
	}

	var snapshot *quality.Snapshot
	if date.IsZero() {
		var ok bool
		snapshot, ok, err = g.CheckLatest(ctx)
		if err == nil && !ok {
			PrintWarning("stock_daily is empty, nothing to check")
			return nil
		}
	} else {
		snapshot, err = g.Check(ctx, date)
	}
	if err != nil {
		return err
	}

	PrintHeader("Input coverage " + snapshot.Date.Format("2006-01-02"))
	PrintKeyValue("Trading", fmt.Sprintf("%d", snapshot.Trading), 10)

	inputs := make([]string, 0, len(snapshot.Coverage))
	for input := range snapshot.Coverage {
		inputs = append(inputs, input)
	}
	sort.Strings(inputs)
	for _, input := range inputs {
		PrintKeyValue(input, fmt.Sprintf("%.2f%%", snapshot.Coverage[input]*100), 10)
	}
	PrintKeyValue("Score", fmt.Sprintf("%.4f", snapshot.Score), 10)
	PrintSeparator()

	if !snapshot.Passed() {
		for _, f := range snapshot.Failures {
			PrintError(f)
		}
		return &quality.FailedError{Snapshot: snapshot}
	}
	PrintSuccess("Coverage meets every threshold")
	return nil
}
