package metrics

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
)

// DefaultTokenBoundaries are the lower bounds of the token_bucket label
// ranges after the first one (which starts at 0). They produce the labels
// 0-100, 100-500, 500-1k, 1k-5k, 5k-10k, 10k-50k and 50k+.
var DefaultTokenBoundaries = []int{100, 500, 1000, 5000, 10000, 50000}

// TokenBuckets maps raw token counts to a bounded set of range labels so a
// token count never becomes a label value of its own.
//
// Ranges are inclusive at the lower bound and exclusive at the upper bound;
// the last range is open ended.
type TokenBuckets struct {
	bounds []int
	labels []string
}

// NewTokenBuckets builds buckets from strictly increasing positive bounds.
func NewTokenBuckets(bounds []int) (*TokenBuckets, error) {
	if len(bounds) == 0 {
		return nil, fmt.Errorf("%w: token buckets need at least one boundary", ErrInvalidDescriptor)
	}
	for i, b := range bounds {
		if b <= 0 {
			return nil, fmt.Errorf("%w: token bucket boundary %d must be positive", ErrInvalidDescriptor, b)
		}
		if i > 0 && b <= bounds[i-1] {
			return nil, fmt.Errorf("%w: token bucket boundaries must be strictly increasing", ErrInvalidDescriptor)
		}
	}

	tb := &TokenBuckets{
		bounds: slices.Clone(bounds),
		labels: make([]string, 0, len(bounds)+1),
	}
	lower := 0
	for _, upper := range bounds {
		tb.labels = append(tb.labels, humanTokens(lower)+"-"+humanTokens(upper))
		lower = upper
	}
	tb.labels = append(tb.labels, humanTokens(lower)+"+")
	return tb, nil
}

// DefaultTokenBuckets returns buckets built from DefaultTokenBoundaries.
func DefaultTokenBuckets() *TokenBuckets {
	tb, err := NewTokenBuckets(DefaultTokenBoundaries)
	if err != nil {
		panic(err)
	}
	return tb
}

// Bucket returns the label of the range containing n. Negative counts are
// treated as zero.
func (tb *TokenBuckets) Bucket(n int) string {
	return tb.labels[tb.Index(n)]
}

// Index returns the position of n's range in Labels.
func (tb *TokenBuckets) Index(n int) int {
	// First boundary strictly greater than n.
	return sort.Search(len(tb.bounds), func(i int) bool { return tb.bounds[i] > n })
}

// Labels returns every label Bucket can produce, in range order.
func (tb *TokenBuckets) Labels() []string {
	return slices.Clone(tb.labels)
}

// Boundaries returns the configured boundaries.
func (tb *TokenBuckets) Boundaries() []int {
	return slices.Clone(tb.bounds)
}

// humanTokens renders 500 as "500", 1000 as "1k" and 2000000 as "2m".
// Values that are not whole thousands keep their digits.
func humanTokens(n int) string {
	switch {
	case n >= 1_000_000 && n%1_000_000 == 0:
		return strconv.Itoa(n/1_000_000) + "m"
	case n >= 1000 && n%1000 == 0:
		return strconv.Itoa(n/1000) + "k"
	default:
		return strconv.Itoa(n)
	}
}
