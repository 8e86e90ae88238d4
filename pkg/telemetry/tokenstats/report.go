package tokenstats

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"hindsight-hq/hindsight/pkg/telemetry/metrics"
)

// BucketStat is the share of samples that fell into one token bucket.
type BucketStat struct {
	Label    string  `json:"label"`
	Count    int     `json:"count"`
	Fraction float64 `json:"fraction"`
}

// SeriesReport summarizes the samples of one provider, model, scope and
// direction.
type SeriesReport struct {
	Key     Key          `json:"key"`
	Samples int          `json:"samples"`
	P50     int          `json:"p50"`
	P90     int          `json:"p90"`
	P99     int          `json:"p99"`
	Max     int          `json:"max"`
	Buckets []BucketStat `json:"buckets"`
}

// Report shows how sampled token counts spread over the token buckets.
type Report struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Boundaries  []int          `json:"boundaries"`
	Total       int            `json:"total"`
	Overall     SeriesReport   `json:"overall"`
	Series      []SeriesReport `json:"series"`
}

// BuildReport groups samples by series and computes bucket shares and
// nearest-rank percentiles for each series and for all samples together.
func BuildReport(samples []Sample, buckets *metrics.TokenBuckets, now time.Time) Report {
	groups := make(map[Key][]int)
	all := make([]int, 0, len(samples))
	for _, s := range samples {
		groups[s.Key()] = append(groups[s.Key()], s.Tokens)
		all = append(all, s.Tokens)
	}

	report := Report{
		GeneratedAt: now,
		Boundaries:  buckets.Boundaries(),
		Total:       len(samples),
		Overall:     summarize(Key{}, all, buckets),
		Series:      make([]SeriesReport, 0, len(groups)),
	}
	for key, values := range groups {
		report.Series = append(report.Series, summarize(key, values, buckets))
	}
	slices.SortFunc(report.Series, func(a, b SeriesReport) int {
		return cmp.Or(
			cmp.Compare(a.Key.Provider, b.Key.Provider),
			cmp.Compare(a.Key.Model, b.Key.Model),
			cmp.Compare(a.Key.Scope, b.Key.Scope),
			cmp.Compare(a.Key.Direction, b.Key.Direction),
		)
	})
	return report
}

func summarize(key Key, values []int, buckets *metrics.TokenBuckets) SeriesReport {
	labels := buckets.Labels()
	counts := make([]int, len(labels))
	for _, v := range values {
		counts[buckets.Index(v)]++
	}

	sr := SeriesReport{
		Key:     key,
		Samples: len(values),
		Buckets: make([]BucketStat, len(labels)),
	}
	for i, label := range labels {
		sr.Buckets[i] = BucketStat{Label: label, Count: counts[i]}
		if len(values) > 0 {
			sr.Buckets[i].Fraction = float64(counts[i]) / float64(len(values))
		}
	}

	if len(values) == 0 {
		return sr
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	sr.P50 = percentile(sorted, 50)
	sr.P90 = percentile(sorted, 90)
	sr.P99 = percentile(sorted, 99)
	sr.Max = sorted[len(sorted)-1]
	return sr
}

// percentile returns the nearest-rank p-th percentile of sorted values.
func percentile(sorted []int, p float64) int {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	rank = max(rank, 1)
	return sorted[rank-1]
}

// WriteText writes the report as aligned text tables.
func (r Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Token samples: %s\n", humanize.Comma(int64(r.Total)))
	fmt.Fprintf(tw, "Boundaries: %s\n\n", joinInts(r.Boundaries))

	fmt.Fprintln(tw, "PROVIDER\tMODEL\tSCOPE\tDIRECTION\tSAMPLES\tP50\tP90\tP99\tMAX")
	for _, s := range append([]SeriesReport{r.Overall}, r.Series...) {
		provider, model := s.Key.Provider, s.Key.Model
		if s.Key == (Key{}) {
			provider, model = "(all)", ""
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			provider, model, s.Key.Scope, s.Key.Direction,
			humanize.Comma(int64(s.Samples)), s.P50, s.P90, s.P99, s.Max)
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "BUCKET\tSAMPLES\tSHARE")
	for _, b := range r.Overall.Buckets {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\n", b.Label, humanize.Comma(int64(b.Count)), b.Fraction*100)
	}
	return tw.Flush()
}

// TableHeader and TableRows render one row per series and bucket.
func (r Report) TableHeader() []string {
	return []string{"provider", "model", "scope", "direction", "bucket", "count", "fraction"}
}

func (r Report) TableRows() [][]string {
	var rows [][]string
	for _, s := range r.Series {
		for _, b := range s.Buckets {
			rows = append(rows, []string{
				s.Key.Provider, s.Key.Model, string(s.Key.Scope), string(s.Key.Direction),
				b.Label, strconv.Itoa(b.Count), strconv.FormatFloat(b.Fraction, 'f', 4, 64),
			})
		}
	}
	return rows
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = humanize.Comma(int64(v))
	}
	return strings.Join(parts, ", ")
}
