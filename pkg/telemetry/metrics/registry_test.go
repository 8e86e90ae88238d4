package metrics

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func counterDescriptor() Descriptor {
	return Descriptor{
		Name:       "test.requests.total",
		Help:       "Test counter",
		Kind:       KindCounter,
		LabelNames: []string{"route", "success"},
	}
}

func histogramDescriptor() Descriptor {
	return Descriptor{
		Name:       "test.request.duration",
		Help:       "Test histogram",
		Kind:       KindHistogram,
		LabelNames: []string{"route"},
		Buckets:    OperationDurationBuckets,
	}
}

func TestRegistry_RegisterIdempotent(t *testing.T) {
	reg := NewRegistry()

	h1, err := reg.Register(counterDescriptor())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	again := counterDescriptor()
	again.Help = "different help text is not part of the shape"
	h2, err := reg.Register(again)
	if err != nil {
		t.Fatalf("second Register() error = %v", err)
	}
	if h1 != h2 {
		t.Error("expected identical descriptor to return the existing handle")
	}

	if got, ok := reg.Lookup("test.requests.total"); !ok || got != h1 {
		t.Error("Lookup() did not return the registered handle")
	}
}

func TestRegistry_RegisterConflict(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Descriptor)
	}{
		{"different kind", func(d *Descriptor) {
			d.Kind = KindHistogram
			d.Buckets = []float64{1}
		}},
		{"different labels", func(d *Descriptor) { d.LabelNames = []string{"route"} }},
		{"different label order", func(d *Descriptor) { d.LabelNames = []string{"success", "route"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			reg.MustRegister(counterDescriptor())

			d := counterDescriptor()
			tt.mutate(&d)
			_, err := reg.Register(d)
			if !errors.Is(err, ErrDescriptorConflict) {
				t.Fatalf("Register() error = %v, want ErrDescriptorConflict", err)
			}

			var merr *MetricError
			if !errors.As(err, &merr) || merr.Op != "register" || merr.Metric != d.Name {
				t.Errorf("expected MetricError for register of %q, got %#v", d.Name, err)
			}
		})
	}
}

func TestRegistry_RegisterBucketConflict(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(histogramDescriptor())

	d := histogramDescriptor()
	d.Buckets = LLMDurationBuckets
	if _, err := reg.Register(d); !errors.Is(err, ErrDescriptorConflict) {
		t.Errorf("Register() error = %v, want ErrDescriptorConflict", err)
	}
}

func TestRegistry_RegisterExposedNameCollision(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Descriptor{Name: "a.b", Kind: KindCounter})

	if _, err := reg.Register(Descriptor{Name: "a_b", Kind: KindCounter}); !errors.Is(err, ErrDescriptorConflict) {
		t.Errorf("Register() error = %v, want ErrDescriptorConflict", err)
	}
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	tests := []struct {
		name string
		desc Descriptor
	}{
		{"empty name", Descriptor{Kind: KindCounter}},
		{"unknown kind", Descriptor{Name: "x"}},
		{"duplicate label", Descriptor{Name: "x", Kind: KindCounter, LabelNames: []string{"a", "a"}}},
		{"invalid label", Descriptor{Name: "x", Kind: KindCounter, LabelNames: []string{"bad-label"}}},
		{"reserved label", Descriptor{Name: "x", Kind: KindCounter, LabelNames: []string{"__name"}}},
		{"counter with buckets", Descriptor{Name: "x", Kind: KindCounter, Buckets: []float64{1}}},
		{"histogram without buckets", Descriptor{Name: "x", Kind: KindHistogram}},
		{"histogram with le label", Descriptor{Name: "x", Kind: KindHistogram, LabelNames: []string{"le"}, Buckets: []float64{1}}},
		{"unsorted buckets", Descriptor{Name: "x", Kind: KindHistogram, Buckets: []float64{2, 1}}},
		{"infinite bucket", Descriptor{Name: "x", Kind: KindHistogram, Buckets: []float64{1, math.Inf(1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			if _, err := reg.Register(tt.desc); !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("Register() error = %v, want ErrInvalidDescriptor", err)
			}
		})
	}
}

func TestRegistry_MustRegisterPanicsOnConflict(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(counterDescriptor())

	defer func() {
		if recover() == nil {
			t.Error("expected MustRegister to panic")
		}
	}()

	d := counterDescriptor()
	d.LabelNames = nil
	reg.MustRegister(d)
}

func TestRegistry_UnknownMetric(t *testing.T) {
	reg := NewRegistry()
	counter := reg.MustRegister(counterDescriptor())
	histogram := reg.MustRegister(histogramDescriptor())

	foreign := NewRegistry().MustRegister(counterDescriptor())

	tests := []struct {
		name string
		err  error
	}{
		{"nil counter handle", reg.IncrementCounter(nil, Labels{}, 1)},
		{"nil histogram handle", reg.ObserveHistogram(nil, Labels{}, 1)},
		{"handle from another registry", reg.IncrementCounter(foreign, Labels{"route": "a", "success": "true"}, 1)},
		{"histogram used as counter", reg.IncrementCounter(histogram, Labels{"route": "a"}, 1)},
		{"counter used as histogram", reg.ObserveHistogram(counter, Labels{"route": "a", "success": "true"}, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, ErrUnknownMetric) {
				t.Errorf("error = %v, want ErrUnknownMetric", tt.err)
			}
		})
	}

	if got := testutil.CollectAndCount(foreign.counter); got != 0 {
		t.Errorf("foreign registry gained %d series", got)
	}
}

func TestRegistry_LabelSchemaMismatch(t *testing.T) {
	reg := NewRegistry()
	h := reg.MustRegister(counterDescriptor())

	tests := []struct {
		name   string
		labels Labels
	}{
		{"missing label", Labels{"route": "a"}},
		{"extra label", Labels{"route": "a", "success": "true", "typo": "x"}},
		{"renamed label", Labels{"rout": "a", "success": "true"}},
		{"no labels", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.IncrementCounter(h, tt.labels, 1)
			if !errors.Is(err, ErrLabelSchemaMismatch) {
				t.Errorf("IncrementCounter() error = %v, want ErrLabelSchemaMismatch", err)
			}
		})
	}

	if got := testutil.CollectAndCount(h.counter); got != 0 {
		t.Errorf("mismatched labels created %d series", got)
	}
}

func TestRegistry_InvalidValues(t *testing.T) {
	reg := NewRegistry()
	counter := reg.MustRegister(counterDescriptor())
	histogram := reg.MustRegister(histogramDescriptor())
	labels := Labels{"route": "a", "success": "true"}

	if err := reg.IncrementCounter(counter, labels, -1); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("negative delta error = %v, want ErrInvalidValue", err)
	}
	if err := reg.IncrementCounter(counter, labels, math.NaN()); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("NaN delta error = %v, want ErrInvalidValue", err)
	}
	if err := reg.ObserveHistogram(histogram, Labels{"route": "a"}, math.NaN()); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("NaN observation error = %v, want ErrInvalidValue", err)
	}
}

func TestRegistry_IncrementCounter(t *testing.T) {
	reg := NewRegistry()
	h := reg.MustRegister(counterDescriptor())

	labels := Labels{"route": "/recall", "success": "true"}
	for i := 0; i < 3; i++ {
		if err := reg.IncrementCounter(h, labels, 2); err != nil {
			t.Fatalf("IncrementCounter() error = %v", err)
		}
	}
	if err := reg.IncrementCounter(h, labels, 0); err != nil {
		t.Fatalf("IncrementCounter(0) error = %v", err)
	}

	got := testutil.ToFloat64(h.counter.WithLabelValues("/recall", "true"))
	if got != 6 {
		t.Errorf("counter = %v, want 6", got)
	}
}

func TestRegistry_ConcurrentIncrements(t *testing.T) {
	reg := NewRegistry()
	h := reg.MustRegister(counterDescriptor())
	labels := Labels{"route": "/recall", "success": "true"}

	const goroutines = 16
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				if err := reg.IncrementCounter(h, labels, 1); err != nil {
					t.Errorf("IncrementCounter() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got := testutil.ToFloat64(h.counter.WithLabelValues("/recall", "true"))
	if got != goroutines*perGoroutine {
		t.Errorf("counter = %v, want %d", got, goroutines*perGoroutine)
	}
}

func TestRegistry_ConcurrentFirstObservation(t *testing.T) {
	reg := NewRegistry()
	h := reg.MustRegister(histogramDescriptor())

	const goroutines = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_ = reg.ObserveHistogram(h, Labels{"route": "/fresh"}, 0.3)
		}()
	}
	close(start)
	wg.Wait()

	if got := testutil.CollectAndCount(h.histogram); got != 1 {
		t.Fatalf("series count = %d, want 1", got)
	}

	series, err := reg.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(series) != 1 || series[0].Count != goroutines {
		t.Errorf("snapshot = %+v, want one series with count %d", series, goroutines)
	}
}

func TestRegistry_HistogramCumulativeBuckets(t *testing.T) {
	reg := NewRegistry()
	h := reg.MustRegister(histogramDescriptor())
	labels := Labels{"route": "/reflect"}

	for _, v := range []float64{0.2, 1.5, 50} {
		if err := reg.ObserveHistogram(h, labels, v); err != nil {
			t.Fatalf("ObserveHistogram(%v) error = %v", v, err)
		}
	}

	series, err := reg.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("got %d series, want 1", len(series))
	}
	s := series[0]

	if s.Kind != KindHistogram || s.Name != "test.request.duration" {
		t.Errorf("unexpected series identity %s %s", s.Kind, s.Name)
	}
	if len(s.Buckets) != len(OperationDurationBuckets)+1 {
		t.Fatalf("got %d buckets, want %d", len(s.Buckets), len(OperationDurationBuckets)+1)
	}
	for i := 1; i < len(s.Buckets); i++ {
		if s.Buckets[i-1].CumulativeCount > s.Buckets[i].CumulativeCount {
			t.Errorf("bucket %v (%d) > bucket %v (%d)",
				s.Buckets[i-1].UpperBound, s.Buckets[i-1].CumulativeCount,
				s.Buckets[i].UpperBound, s.Buckets[i].CumulativeCount)
		}
	}

	last := s.Buckets[len(s.Buckets)-1]
	if !math.IsInf(last.UpperBound, 1) || last.CumulativeCount != 3 {
		t.Errorf("+Inf bucket = %+v, want count 3", last)
	}
	if s.Count != 3 {
		t.Errorf("count = %d, want 3", s.Count)
	}
	if math.Abs(s.Sum-51.7) > 1e-9 {
		t.Errorf("sum = %v, want 51.7", s.Sum)
	}

	expect := map[float64]uint64{0.1: 0, 0.25: 1, 1.0: 1, 2.0: 2, 30.0: 2, 60.0: 3, 120.0: 3}
	for bound, want := range expect {
		got, ok := s.BucketCount(bound)
		if !ok || got != want {
			t.Errorf("bucket %v = %d (found=%v), want %d", bound, got, ok, want)
		}
	}
}

func TestRegistry_SnapshotMatchesState(t *testing.T) {
	reg := NewRegistry()
	counter := reg.MustRegister(counterDescriptor())
	histogram := reg.MustRegister(histogramDescriptor())

	_ = reg.IncrementCounter(counter, Labels{"route": "a", "success": "true"}, 3)
	_ = reg.IncrementCounter(counter, Labels{"route": "b", "success": "false"}, 1)
	_ = reg.ObserveHistogram(histogram, Labels{"route": "a"}, 0.5)

	series, err := reg.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("got %d series, want 3", len(series))
	}

	// Families come back ordered by exposition name.
	if series[0].Name != "test.request.duration" || series[1].Name != "test.requests.total" {
		t.Errorf("unexpected order: %s, %s", series[0].Name, series[1].Name)
	}

	values := map[string]float64{}
	for _, s := range series {
		if s.Kind == KindCounter {
			values[s.Labels["route"]+"/"+s.Labels["success"]] = s.Value
		}
	}
	if values["a/true"] != 3 || values["b/false"] != 1 {
		t.Errorf("counter values = %v", values)
	}
}
