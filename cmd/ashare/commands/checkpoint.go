package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TMG-TheMoneyGame/AShareData/internal/api/handlers"
	"github.com/TMG-TheMoneyGame/AShareData/internal/checkpoint"
	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/httputil"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
)

var (
	checkpointID     string
	checkpointServer string
)

// checkpointCmd prints resume points
var checkpointCmd = &cobra.Command{
	Use:   "checkpoint [table]",
	Short: "Show the latest date of a table",
	Long: `Prints the date a compositor would resume from. Without a table
every known table is listed. --id scopes the lookup to one entity, e.g.
one custom index. --server asks a running daemon instead of the store.

Example:
  go run ./cmd/ashare checkpoint
  go run ./cmd/ashare checkpoint custom_index --id CI0001.CUSTOM
  go run ./cmd/ashare checkpoint const_limit --server http://localhost:8090`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheckpoint,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.Flags().StringVar(&checkpointID, "id", "", "entity id to scope the lookup")
	checkpointCmd.Flags().StringVar(&checkpointServer, "server", "", "daemon base URL")
}

func runCheckpoint(cmd *cobra.Command, args []string) error {
	tables := contracts.Tables
	if len(args) == 1 {
		if !contracts.KnownTable(args[0]) {
			return fmt.Errorf("unknown table %q (known: %s)", args[0], strings.Join(contracts.Tables, ", "))
		}
		tables = args[:1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var rows []handlers.CheckpointResponse
	var err error
	if checkpointServer != "" {
		rows, err = remoteCheckpoints(ctx, checkpointServer, tables, checkpointID)
	} else {
		rows, err = localCheckpoints(ctx, tables, checkpointID)
	}
	if err != nil {
		return err
	}

	widths := []int{20, 16, 12}
	PrintTableHeader([]string{"TABLE", "ID", "LATEST"}, widths)
	for _, r := range rows {
		latest := "(empty)"
		if r.Latest != nil {
			latest = *r.Latest
		}
		id := r.ID
		if id == "" {
			id = "*"
		}
		PrintTableRow([]string{r.Table, id, latest}, widths)
	}
	return nil
}

func localCheckpoints(ctx context.Context, tables []string, id string) ([]handlers.CheckpointResponse, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	defer a.close()

	var filter *contracts.EntityFilter
	if id != "" {
		filter = &contracts.EntityFilter{ID: id}
	}

	resolver := checkpoint.NewResolver(a.store)
	out := make([]handlers.CheckpointResponse, 0, len(tables))
	for _, table := range tables {
		at, err := resolver.Resolve(ctx, table, time.Time{}, filter)
		if err != nil {
			return nil, err
		}
		row := handlers.CheckpointResponse{Table: table, ID: id}
		if !at.IsZero() {
			s := at.Format("2006-01-02")
			row.Latest = &s
		}
		out = append(out, row)
	}
	return out, nil
}

func remoteCheckpoints(ctx context.Context, server string, tables []string, id string) ([]handlers.CheckpointResponse, error) {
	client := httputil.New(logger.Nop(), 30*time.Second).WithRetry(2, time.Second)
	base := strings.TrimRight(server, "/") + "/api/checkpoints/"

	out := make([]handlers.CheckpointResponse, 0, len(tables))
	for _, table := range tables {
		target := base + url.PathEscape(table)
		if id != "" {
			target += "?id=" + url.QueryEscape(id)
		}
		var row handlers.CheckpointResponse
		if err := client.GetJSON(ctx, target, &row); err != nil {
			return nil, fmt.Errorf("checkpoint %s: %w", table, err)
		}
		out = append(out, row)
	}
	return out, nil
}
