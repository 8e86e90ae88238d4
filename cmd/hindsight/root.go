package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hindsight-hq/hindsight/pkg/cli"
	"hindsight-hq/hindsight/pkg/config"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "hindsight",
	Short: "Hindsight - memory service telemetry",
	Long: `Hindsight exposes operation and LLM call metrics of the hindsight memory
service in the Prometheus text format.

Metric families:
  - hindsight.operation.duration / hindsight.operation.total
  - hindsight.llm.duration / hindsight.llm.calls.total
  - hindsight.llm.tokens.input / hindsight.llm.tokens.output

Token counts are exported as bounded token_bucket ranges. The ranges are
configurable and can be reviewed with "hindsight tokens report".`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a status derived from the
// returned error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(cli.ExitCode(err))
	}
}

func printError(err error) {
	if fields := cli.ConfigErrors(err); len(fields) > 0 {
		fmt.Fprintln(os.Stderr, "Error: invalid configuration")
		for _, f := range fields {
			fmt.Fprintf(os.Stderr, "  - %s: %s\n", f.Field, f.Message)
		}
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
}

// loadConfig loads the file named by --config, or the defaults when no
// file was given. Environment overrides apply in both cases.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults and HINDSIGHT_* environment when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
