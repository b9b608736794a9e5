package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TMG-TheMoneyGame/AShareData/internal/store/migrations"
)

// migrateCmd applies the embedded schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Applies the embedded SQL migrations. Postgres always receives the
market master-data schema and the time-series tables; ClickHouse is
migrated too when STORE_BACKEND=clickhouse. Migrations are idempotent.

Example:
  go run ./cmd/ashare migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	PrintHeader("Migrations")

	applied, err := migrations.RunPostgres(ctx, a.db.Pool)
	if err != nil {
		PrintError("postgres")
		return err
	}
	PrintSuccess(fmt.Sprintf("postgres: %d files", len(applied)))
	PrintList(applied)

	if a.ch != nil {
		applied, err = migrations.RunClickhouse(ctx, a.ch.Conn)
		if err != nil {
			PrintError("clickhouse")
			return err
		}
		PrintSuccess(fmt.Sprintf("clickhouse: %d files", len(applied)))
		PrintList(applied)
	}

	a.log.Info("Migrations applied")
	return nil
}
