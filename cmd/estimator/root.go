// cmd/estimator/root.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootOptions struct {
	configPath string
	sqlitePath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "estimator",
		Short: "Estimate electrical installation offers from free-text descriptions",
		Long: "estimator interprets a customer's description of an electrical job, prices it\n" +
			"against the component catalog, assesses its risks and assembles the offer text.\n" +
			"Completed projects feed back into the calibration of future estimates.",
		Version:      version,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "Config file (default: configs/config.yaml)")
	f.StringVar(&opts.sqlitePath, "sqlite", "", "SQLite database file (overrides database.sqlite.path)")
	f.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newInterpretCmd(opts))
	cmd.AddCommand(newEstimateCmd(opts))
	cmd.AddCommand(newCalibrateCmd(opts))
	cmd.AddCommand(newProjectCmd(opts))
	cmd.AddCommand(newTemplateCmd(opts))
	cmd.AddCommand(newSubmitCmd(opts))
	cmd.AddCommand(newDeployCmd(opts))
	cmd.AddCommand(newRegistryCmd(opts))
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
