package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ashare",
	Short: "A-share factor compositor",
	Long: `A-share factor compositor CLI

Derives factor tables from raw daily market tables:
  const_limit   one-character limit-up/limit-down board
  adj_factor    fund adjustment factors from dividends
  custom_index  self-constructed index returns

Every compositor resumes from the latest date of its own table.

Usage:
  go run ./cmd/ashare [command]

Examples:
  go run ./cmd/ashare migrate
  go run ./cmd/ashare compose
  go run ./cmd/ashare checkpoint const_limit
  go run ./cmd/ashare scheduler start`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			os.Setenv("LOG_LEVEL", "debug")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
