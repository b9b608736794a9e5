package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TMG-TheMoneyGame/AShareData/pkg/config"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/database"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/redis"
)

// testDBCmd represents the test-db command
var testDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "PostgreSQL 연결 테스트",
	Long: `데이터베이스 연결을 테스트하고 풀 통계를 표시합니다.

Also checks that the trading calendar is loaded, since every compositor
needs it, and pings Redis when the selector cache is enabled.

Example:
  go run ./cmd/ashare test-db`,
	RunE: runTestDB,
}

func init() {
	rootCmd.AddCommand(testDBCmd)
}

func runTestDB(cmd *cobra.Command, args []string) error {
	PrintHeader("Database Connection Test")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	PrintSuccess(fmt.Sprintf("Config loaded (ENV: %s)", cfg.Env))
	PrintKeyValue("Database URL", maskPassword(cfg.Database.URL), 12)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()
	PrintSuccess("Database connection established")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}
	PrintKeyValue("Healthy", fmt.Sprint(status.Healthy), 12)
	PrintKeyValue("Response", status.ResponseTime.String(), 12)

	fmt.Println("📊 Connection Pool Statistics:")
	PrintKeyValue("Max", fmt.Sprint(status.Stats.MaxConns), 12)
	PrintKeyValue("Total", fmt.Sprint(status.Stats.TotalConns), 12)
	PrintKeyValue("Acquired", fmt.Sprint(status.Stats.AcquiredConns), 12)
	PrintKeyValue("Idle", fmt.Sprint(status.Stats.IdleConns), 12)

	var sessions int
	var last *time.Time
	err = db.Pool.QueryRow(ctx, `SELECT count(*), max(trade_date) FROM market.trading_calendar`).Scan(&sessions, &last)
	if err != nil {
		PrintWarning(fmt.Sprintf("Trading calendar not readable (run migrate?): %v", err))
		return nil
	}
	if sessions == 0 || last == nil {
		PrintWarning("Trading calendar is empty")
		return nil
	}
	PrintKeyValue("Sessions", fmt.Sprint(sessions), 12)
	PrintKeyValue("Last", last.Format("2006-01-02"), 12)

	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, cfg)
		if err != nil {
			PrintWarning(fmt.Sprintf("Redis unreachable, selector cache will be skipped: %v", err))
		} else {
			defer rc.Close()
			PrintSuccess("Redis connection established")
		}
	}

	PrintSuccess("All checks passed")
	return nil
}
