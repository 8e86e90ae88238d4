package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hindsight-hq/hindsight/pkg/cli"
	"hindsight-hq/hindsight/pkg/telemetry/metrics"
)

var metricsFlags struct {
	output string
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "List the exported metric families",
	Long: `List the metric families hindsight exports with their exposition names,
kinds, labels and histogram buckets. Names and labels are a stable contract
for dashboards and alerts.`,
	RunE: listMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.Flags().StringVarP(&metricsFlags.output, "output", "o", "text", "output format: text, json, csv")
}

type familyInfo struct {
	Name           string    `json:"name"`
	ExpositionName string    `json:"exposition_name"`
	Kind           string    `json:"kind"`
	Help           string    `json:"help"`
	Labels         []string  `json:"labels"`
	Buckets        []float64 `json:"buckets,omitempty"`
}

type familyList []familyInfo

func (l familyList) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tEXPOSED AS\tKIND\tLABELS")
	for _, f := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name, f.ExpositionName, f.Kind, strings.Join(f.Labels, ","))
	}
	return tw.Flush()
}

func (l familyList) TableHeader() []string {
	return []string{"name", "exposition_name", "kind", "labels", "buckets"}
}

func (l familyList) TableRows() [][]string {
	rows := make([][]string, len(l))
	for i, f := range l {
		buckets := make([]string, len(f.Buckets))
		for j, b := range f.Buckets {
			buckets[j] = fmt.Sprint(b)
		}
		rows[i] = []string{f.Name, f.ExpositionName, f.Kind, strings.Join(f.Labels, ";"), strings.Join(buckets, ";")}
	}
	return rows
}

func metricFamilies() familyList {
	descs := metrics.Descriptors()
	out := make(familyList, len(descs))
	for i, d := range descs {
		out[i] = familyInfo{
			Name:           d.Name,
			ExpositionName: d.ExpositionName(),
			Kind:           d.Kind.String(),
			Help:           d.Help,
			Labels:         d.LabelNames,
			Buckets:        d.Buckets,
		}
	}
	return out
}

func listMetrics(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(metricsFlags.output)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), metricFamilies())
}
