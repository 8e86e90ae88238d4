package metrics

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Labels maps label names to values for a single observation.
type Labels map[string]string

// Registry owns every series of the process. Series state lives in
// client_golang vectors, which create series lazily, converge concurrent
// first observations on one series and update each series atomically.
//
// The registry mutex only guards the descriptor index. It is taken on
// Register and briefly during Snapshot; Increment and Observe never touch it.
type Registry struct {
	prom *prometheus.Registry

	mu      sync.RWMutex
	byName  map[string]*Handle
	exposed map[string]*Handle
}

// Handle is the result of registering a Descriptor. It is only valid with
// the Registry that produced it.
type Handle struct {
	desc     Descriptor
	registry *Registry

	counter   *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// Descriptor returns a copy of the registered descriptor.
func (h *Handle) Descriptor() Descriptor {
	return h.desc.clone()
}

// Name returns the descriptor name.
func (h *Handle) Name() string {
	return h.desc.Name
}

// NewRegistry creates an empty registry backed by a fresh Prometheus registry.
func NewRegistry() *Registry {
	return &Registry{
		prom:    prometheus.NewRegistry(),
		byName:  make(map[string]*Handle),
		exposed: make(map[string]*Handle),
	}
}

// Gatherer exposes the registry to promhttp and testutil.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.prom
}

// Register adds a metric family. Registering an identical descriptor again
// returns the existing handle; the same name with a different shape fails
// with ErrDescriptorConflict.
func (r *Registry) Register(d Descriptor) (*Handle, error) {
	if err := d.validate(); err != nil {
		return nil, newMetricError("register", d.Name, err)
	}
	d = d.clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[d.Name]; ok {
		if existing.desc.sameShape(d) {
			return existing, nil
		}
		return nil, newMetricError("register", d.Name,
			fmt.Errorf("%w: registered as %s, requested %s", ErrDescriptorConflict, existing.desc, d))
	}

	exposed := d.ExpositionName()
	if other, ok := r.exposed[exposed]; ok {
		return nil, newMetricError("register", d.Name,
			fmt.Errorf("%w: %q and %q are both exposed as %q", ErrDescriptorConflict, other.desc.Name, d.Name, exposed))
	}

	help := d.Help
	if help == "" {
		help = d.Name
	}

	h := &Handle{desc: d, registry: r}
	var collector prometheus.Collector
	switch d.Kind {
	case KindCounter:
		h.counter = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: exposed, Help: help},
			d.LabelNames,
		)
		collector = h.counter
	case KindHistogram:
		h.histogram = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: exposed, Help: help, Buckets: d.Buckets},
			d.LabelNames,
		)
		collector = h.histogram
	}

	if err := r.prom.Register(collector); err != nil {
		return nil, newMetricError("register", d.Name, fmt.Errorf("%w: %v", ErrDescriptorConflict, err))
	}

	r.byName[d.Name] = h
	r.exposed[exposed] = h
	return h, nil
}

// MustRegister is like Register but panics on error. Registration problems
// are code defects and should stop the process during startup.
func (r *Registry) MustRegister(d Descriptor) *Handle {
	h, err := r.Register(d)
	if err != nil {
		panic(err)
	}
	return h
}

// Lookup returns the handle registered under name.
func (r *Registry) Lookup(name string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byName[name]
	return h, ok
}

// IncrementCounter adds delta (>= 0) to the counter series identified by labels.
func (r *Registry) IncrementCounter(h *Handle, labels Labels, delta float64) error {
	if err := r.owns(h, KindCounter); err != nil {
		return newMetricError("increment", handleName(h), err)
	}
	if delta < 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return newMetricError("increment", h.desc.Name, fmt.Errorf("%w: counter delta %v", ErrInvalidValue, delta))
	}
	if err := h.checkLabels(labels); err != nil {
		return newMetricError("increment", h.desc.Name, err)
	}

	c, err := h.counter.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return newMetricError("increment", h.desc.Name, fmt.Errorf("%w: %v", ErrLabelSchemaMismatch, err))
	}
	c.Add(delta)
	return nil
}

// ObserveHistogram records value in the histogram series identified by labels.
func (r *Registry) ObserveHistogram(h *Handle, labels Labels, value float64) error {
	if err := r.owns(h, KindHistogram); err != nil {
		return newMetricError("observe", handleName(h), err)
	}
	if math.IsNaN(value) {
		return newMetricError("observe", h.desc.Name, fmt.Errorf("%w: NaN observation", ErrInvalidValue))
	}
	if err := h.checkLabels(labels); err != nil {
		return newMetricError("observe", h.desc.Name, err)
	}

	o, err := h.histogram.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return newMetricError("observe", h.desc.Name, fmt.Errorf("%w: %v", ErrLabelSchemaMismatch, err))
	}
	o.Observe(value)
	return nil
}

func (r *Registry) owns(h *Handle, kind Kind) error {
	if h == nil {
		return fmt.Errorf("%w: nil handle", ErrUnknownMetric)
	}
	if h.registry != r {
		return fmt.Errorf("%w: %q is not registered with this registry", ErrUnknownMetric, h.desc.Name)
	}
	if h.desc.Kind != kind {
		return fmt.Errorf("%w: %q is a %s, not a %s", ErrUnknownMetric, h.desc.Name, h.desc.Kind, kind)
	}
	return nil
}

// checkLabels requires exactly the registered label names.
func (h *Handle) checkLabels(labels Labels) error {
	var missing, extra []string
	for _, name := range h.desc.LabelNames {
		if _, ok := labels[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range labels {
		if !slices.Contains(h.desc.LabelNames, name) {
			extra = append(extra, name)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	return fmt.Errorf("%w: missing %v, unexpected %v", ErrLabelSchemaMismatch, missing, extra)
}

func handleName(h *Handle) string {
	if h == nil {
		return ""
	}
	return h.desc.Name
}
