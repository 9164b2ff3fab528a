// Package cmd provides the CLI commands for guardrail-gate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aegiswall/guardrail/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "guardrail-gate",
	Short: "Guardrail - deterministic validation for AI-agent tool calls",
	Long: `Guardrail is a runtime for validating AI-agent tool calls against
path-addressed constraints, expression rules, and signed rule bundles
before the call reaches its tool.

Configuration:
  Config is loaded from guardrail.yaml in the current directory,
  $HOME/.guardrail/, or /etc/guardrail/.

  Environment variables override config values with the GUARDRAIL_ prefix.
  Example: GUARDRAIL_MODE=log

Commands:
  lint      Load a rules directory and report what would be loaded
  evaluate  Run one tool call through the engine and print its explanation`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./guardrail.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
