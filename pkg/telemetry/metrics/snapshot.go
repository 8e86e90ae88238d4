package metrics

import (
	"math"

	dto "github.com/prometheus/client_model/go"
)

// Bucket is one cumulative histogram bucket.
type Bucket struct {
	UpperBound      float64
	CumulativeCount uint64
}

// Series is the point-in-time state of one labelled series.
type Series struct {
	Name   string
	Kind   Kind
	Labels Labels

	// Value is the counter total. Zero for histograms.
	Value float64

	// Buckets are cumulative and end with the +Inf bucket, whose count
	// always equals Count. Empty for counters.
	Buckets []Bucket
	Sum     float64
	Count   uint64
}

// BucketCount returns the cumulative count of the bucket with the given
// upper bound.
func (s Series) BucketCount(upperBound float64) (uint64, bool) {
	for _, b := range s.Buckets {
		if b.UpperBound == upperBound {
			return b.CumulativeCount, true
		}
	}
	return 0, false
}

// Snapshot returns every series ordered by exposition name and then label
// values. Each series is internally consistent; series are not captured at
// one global instant.
func (r *Registry) Snapshot() ([]Series, error) {
	families, err := r.prom.Gather()
	if err != nil {
		return nil, newMetricError("snapshot", "", err)
	}

	r.mu.RLock()
	handles := make(map[string]*Handle, len(r.exposed))
	for name, h := range r.exposed {
		handles[name] = h
	}
	r.mu.RUnlock()

	var out []Series
	for _, mf := range families {
		h, ok := handles[mf.GetName()]
		if !ok {
			continue
		}
		for _, m := range mf.GetMetric() {
			out = append(out, seriesFromMetric(h.desc, m))
		}
	}
	return out, nil
}

func seriesFromMetric(desc Descriptor, m *dto.Metric) Series {
	s := Series{
		Name:   desc.Name,
		Kind:   desc.Kind,
		Labels: make(Labels, len(m.GetLabel())),
	}
	for _, lp := range m.GetLabel() {
		s.Labels[lp.GetName()] = lp.GetValue()
	}

	switch desc.Kind {
	case KindCounter:
		s.Value = m.GetCounter().GetValue()
	case KindHistogram:
		hist := m.GetHistogram()
		s.Sum = hist.GetSampleSum()
		s.Count = hist.GetSampleCount()
		s.Buckets = make([]Bucket, 0, len(hist.GetBucket())+1)
		for _, b := range hist.GetBucket() {
			if math.IsInf(b.GetUpperBound(), 1) {
				continue
			}
			s.Buckets = append(s.Buckets, Bucket{
				UpperBound:      b.GetUpperBound(),
				CumulativeCount: b.GetCumulativeCount(),
			})
		}
		s.Buckets = append(s.Buckets, Bucket{UpperBound: math.Inf(1), CumulativeCount: s.Count})
	}
	return s
}
