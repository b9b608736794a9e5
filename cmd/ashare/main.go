package main

import (
	"os"

	"github.com/TMG-TheMoneyGame/AShareData/cmd/ashare/commands"
)

// main is the entry point for the compositor CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/ashare [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
