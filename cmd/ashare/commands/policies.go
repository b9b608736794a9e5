package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TMG-TheMoneyGame/AShareData/internal/policyconfig"
)

// policiesCmd validates the index policy file without touching the store
var policiesCmd = &cobra.Command{
	Use:   "policies [file]",
	Short: "Validate index composition policies",
	Long: `Loads the policy YAML (default POLICY_FILE), validates it and prints
each index with the policy hash. Unknown fields are errors.

Example:
  go run ./cmd/ashare policies config/index_policies.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPolicies,
}

func init() {
	rootCmd.AddCommand(policiesCmd)
}

func runPolicies(cmd *cobra.Command, args []string) error {
	path := os.Getenv("POLICY_FILE")
	if path == "" {
		path = "config/index_policies.yaml"
	}
	if len(args) == 1 {
		path = args[0]
	}

	cfg, _, err := policyconfig.Load(path)
	if err != nil {
		PrintError(err.Error())
		return err
	}
	policies, err := cfg.Policies()
	if err != nil {
		return err
	}
	hash, err := policyconfig.Hash(cfg)
	if err != nil {
		return err
	}

	PrintHeader("Index policies " + cfg.Meta.Version)
	PrintKeyValue("File", path, 6)
	PrintKeyValue("Hash", hash[:16], 6)
	PrintSeparator()

	widths := []int{16, 14, 26, 10}
	PrintTableHeader([]string{"TICKER", "SELECTION", "WEIGHT", "START"}, widths)
	for _, p := range policies {
		PrintTableRow([]string{
			p.Ticker,
			p.Selection.Name,
			p.WeightTable + "." + p.WeightField,
			p.StartDate.Format("2006-01-02"),
		}, widths)
	}

	for _, w := range policyconfig.Warn(cfg) {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	return nil
}
