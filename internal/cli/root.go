// Package cli wires the dosed commands: a long-running HTTP daemon and
// one-shot solve, sample and surface runs.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ryantjarrett/CTSI-2024/pkg/logger"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "dosed",
	Short: "Dosing regimen engine for long-acting antibody prophylaxis",
	Long: `dosed simulates two-compartment antibody kinetics over a virtual
population and searches for the repeated dose (and optional loading dose)
that keeps a chosen fraction of the population above a protection target
for the whole coverage window.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetDefault(logger.Select(logFormat, logLevel, os.Stderr))
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
}
