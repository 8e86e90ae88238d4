package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hindsight-hq/hindsight/pkg/cli"
	"hindsight-hq/hindsight/pkg/config"
	"hindsight-hq/hindsight/pkg/telemetry/metrics"
	"hindsight-hq/hindsight/pkg/telemetry/tokenstats"
)

var tokensFlags struct {
	boundaries []int
	since      time.Duration
	provider   string
	model      string
	scope      string
	direction  string
	olderThan  time.Duration
	dryRun     bool
	output     string
}

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Inspect token buckets and sampled token counts",
	Long: `Inspect the token_bucket ranges and the raw token counts sampled while
running with telemetry.token_stats.enabled.

Subcommands:
  bucket  - Show the bucket label for token counts
  report  - Show how sampled token counts spread over the buckets
  prune   - Delete samples older than the retention period`,
}

var tokensBucketCmd = &cobra.Command{
	Use:   "bucket N...",
	Short: "Show the token_bucket label for token counts",
	Long: `Show the token_bucket label each token count is exported under.

Examples:
  hindsight tokens bucket 90 750 60000

  # Try other boundaries before changing the config
  hindsight tokens bucket --boundaries 256,1024,4096 750 3000`,
	Args: cobra.MinimumNArgs(1),
	RunE: bucketTokens,
}

var tokensReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report the distribution of sampled token counts",
	Long: `Report how sampled token counts spread over the configured token buckets,
with p50/p90/p99 per provider, model, scope and direction.

A bucket holding most samples, or percentiles far from any boundary, means
the boundaries should be revisited.

Examples:
  # Last 7 days
  hindsight tokens report --since 168h

  # Input tokens of answer calls, as CSV
  hindsight tokens report --scope answer --direction input --output csv`,
	RunE: reportTokens,
}

var tokensPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old token samples",
	Long: `Delete token samples older than --older-than, or than the configured
retention period when the flag is not given.

Examples:
  hindsight tokens prune --older-than 720h --dry-run`,
	RunE: pruneTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	tokensCmd.AddCommand(tokensBucketCmd, tokensReportCmd, tokensPruneCmd)

	tokensBucketCmd.Flags().IntSliceVar(&tokensFlags.boundaries, "boundaries", nil, "bucket boundaries (uses config if not specified)")
	tokensBucketCmd.Flags().StringVarP(&tokensFlags.output, "output", "o", "text", "output format: text, json, csv")

	tokensReportCmd.Flags().DurationVar(&tokensFlags.since, "since", 7*24*time.Hour, "only samples recorded within this duration (0 for all)")
	tokensReportCmd.Flags().StringVar(&tokensFlags.provider, "provider", "", "filter by provider")
	tokensReportCmd.Flags().StringVar(&tokensFlags.model, "model", "", "filter by model")
	tokensReportCmd.Flags().StringVar(&tokensFlags.scope, "scope", "", "filter by scope (memory, reflect, entity_observation, answer)")
	tokensReportCmd.Flags().StringVar(&tokensFlags.direction, "direction", "", "filter by direction (input, output)")
	tokensReportCmd.Flags().StringVarP(&tokensFlags.output, "output", "o", "text", "output format: text, json, csv")

	tokensPruneCmd.Flags().DurationVar(&tokensFlags.olderThan, "older-than", 0, "delete samples older than this (uses retention.days if not specified)")
	tokensPruneCmd.Flags().BoolVar(&tokensFlags.dryRun, "dry-run", false, "count matching samples without deleting")
}

// bucketAssignment is the bucket of one token count.
type bucketAssignment struct {
	Tokens int    `json:"tokens"`
	Bucket string `json:"bucket"`
}

type bucketResult struct {
	Boundaries  []int              `json:"boundaries"`
	Assignments []bucketAssignment `json:"assignments"`
}

func (r bucketResult) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKENS\tBUCKET")
	for _, a := range r.Assignments {
		fmt.Fprintf(tw, "%s\t%s\n", humanize.Comma(int64(a.Tokens)), a.Bucket)
	}
	return tw.Flush()
}

func (r bucketResult) TableHeader() []string { return []string{"tokens", "bucket"} }

func (r bucketResult) TableRows() [][]string {
	rows := make([][]string, len(r.Assignments))
	for i, a := range r.Assignments {
		rows[i] = []string{strconv.Itoa(a.Tokens), a.Bucket}
	}
	return rows
}

func bucketTokens(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(tokensFlags.output)
	if err != nil {
		return err
	}

	bounds := tokensFlags.boundaries
	if len(bounds) == 0 {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		bounds = cfg.Telemetry.Metrics.TokenBuckets
	}
	buckets, err := metrics.NewTokenBuckets(bounds)
	if err != nil {
		return cli.NewConfigError("boundaries", err.Error())
	}

	result := bucketResult{Boundaries: buckets.Boundaries()}
	for _, arg := range args {
		n, err := strconv.Atoi(strings.ReplaceAll(arg, ",", ""))
		if err != nil || n < 0 {
			return cli.NewCommandError("tokens bucket", fmt.Errorf("invalid token count %q", arg))
		}
		result.Assignments = append(result.Assignments, bucketAssignment{Tokens: n, Bucket: buckets.Bucket(n)})
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)
}

func reportTokens(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(tokensFlags.output)
	if err != nil {
		return err
	}
	filter, err := reportFilter(time.Now())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	buckets, err := metrics.NewTokenBuckets(cfg.Telemetry.Metrics.TokenBuckets)
	if err != nil {
		return cli.NewConfigError("telemetry.metrics.token_buckets", err.Error())
	}

	store, err := openPersistentStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	samples, err := store.Samples(cmd.Context(), filter)
	if err != nil {
		return cli.NewCommandError("tokens report", err)
	}

	report := tokenstats.BuildReport(samples, buckets, time.Now())
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report)
}

// reportFilter builds the sample filter from the report flags.
func reportFilter(now time.Time) (tokenstats.Filter, error) {
	filter := tokenstats.Filter{
		Provider:  strings.ToLower(tokensFlags.provider),
		Model:     tokensFlags.model,
		Scope:     metrics.Scope(tokensFlags.scope),
		Direction: metrics.TokenDirection(tokensFlags.direction),
	}
	if filter.Scope != "" && !filter.Scope.Valid() {
		return filter, cli.NewConfigError("scope", fmt.Sprintf("unknown scope %q", tokensFlags.scope))
	}
	switch filter.Direction {
	case "", metrics.DirectionInput, metrics.DirectionOutput:
	default:
		return filter, cli.NewConfigError("direction", fmt.Sprintf("unknown direction %q (want input or output)", tokensFlags.direction))
	}
	if tokensFlags.since < 0 {
		return filter, cli.NewConfigError("since", "must not be negative")
	}
	if tokensFlags.since > 0 {
		filter.Since = now.Add(-tokensFlags.since)
	}
	return filter, nil
}

func pruneTokens(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	olderThan := tokensFlags.olderThan
	if olderThan == 0 {
		if cfg.Telemetry.TokenStats.Retention.Days <= 0 {
			return cli.NewConfigError("telemetry.token_stats.retention.days", "retention is disabled; pass --older-than")
		}
		olderThan = time.Duration(cfg.Telemetry.TokenStats.Retention.Days) * 24 * time.Hour
	}
	if olderThan < 0 {
		return cli.NewConfigError("older-than", "must not be negative")
	}
	cutoff := time.Now().Add(-olderThan)

	store, err := openPersistentStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if tokensFlags.dryRun {
		n, err := store.Count(cmd.Context(), tokenstats.Filter{Until: cutoff})
		if err != nil {
			return cli.NewCommandError("tokens prune", err)
		}
		fmt.Fprintf(out, "Would delete %s samples recorded before %s\n", humanize.Comma(n), cutoff.Format(time.RFC3339))
		return nil
	}

	deleted, err := store.Prune(cmd.Context(), cutoff)
	if err != nil {
		return cli.NewCommandError("tokens prune", err)
	}
	fmt.Fprintf(out, "✓ Deleted %s samples recorded before %s\n", humanize.Comma(deleted), cutoff.Format(time.RFC3339))
	return nil
}

// openPersistentStore opens the sample store for offline commands. The
// memory backend only lives inside a running server, so it is rejected.
func openPersistentStore(cfg *config.Config) (tokenstats.Store, error) {
	ts := cfg.Telemetry.TokenStats
	if ts.Backend != "sqlite" {
		return nil, cli.NewConfigError("telemetry.token_stats.backend",
			fmt.Sprintf("%q keeps samples in memory only; offline commands need the sqlite backend", ts.Backend))
	}

	logger, err := newLogger(cfg, cliLogWriter())
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	store, err := openStore(ts, logger)
	if err != nil {
		return nil, cli.NewCommandError("open token store", err)
	}
	return store, nil
}

// cliLogWriter keeps library logs off stdout so command output stays
// machine readable; they are only shown with --verbose.
func cliLogWriter() io.Writer {
	if verbose {
		return rootCmd.ErrOrStderr()
	}
	return io.Discard
}
