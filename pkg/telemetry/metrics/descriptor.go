package metrics

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/prometheus/common/model"
)

// Kind is the type of a registered metric.
type Kind int

const (
	// KindCounter is a monotonically non-decreasing total.
	KindCounter Kind = iota + 1

	// KindHistogram tracks cumulative bucket counts, a sum and a count.
	KindHistogram
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindHistogram:
		return "histogram"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Descriptor describes a metric family. It is immutable once registered.
//
// Name is the dotted wire name (e.g. "hindsight.operation.total"). On the
// exposition endpoint characters that are not valid in a Prometheus metric
// name are replaced by underscores, so "hindsight.operation.total" is scraped
// as hindsight_operation_total.
type Descriptor struct {
	Name       string
	Help       string
	Kind       Kind
	LabelNames []string

	// Buckets are the histogram upper bounds in increasing order. The +Inf
	// bucket is implicit. Must be empty for counters.
	Buckets []float64
}

// ExpositionName returns the name the family is scraped under.
func (d Descriptor) ExpositionName() string {
	return model.EscapeName(d.Name, model.UnderscoreEscaping)
}

// String renders the shape of the descriptor for error messages.
func (d Descriptor) String() string {
	var sb strings.Builder
	sb.WriteString(d.Kind.String())
	sb.WriteString(" ")
	sb.WriteString(d.Name)
	sb.WriteString("{")
	sb.WriteString(strings.Join(d.LabelNames, ","))
	sb.WriteString("}")
	if d.Kind == KindHistogram {
		sb.WriteString(fmt.Sprintf(" buckets=%v", d.Buckets))
	}
	return sb.String()
}

// sameShape reports whether two descriptors describe the same family. Help
// text is not part of the shape.
func (d Descriptor) sameShape(o Descriptor) bool {
	return d.Name == o.Name &&
		d.Kind == o.Kind &&
		slices.Equal(d.LabelNames, o.LabelNames) &&
		slices.Equal(d.Buckets, o.Buckets)
}

func (d Descriptor) clone() Descriptor {
	d.LabelNames = slices.Clone(d.LabelNames)
	d.Buckets = slices.Clone(d.Buckets)
	return d
}

func (d Descriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDescriptor)
	}
	if !model.IsValidLegacyMetricName(d.ExpositionName()) {
		return fmt.Errorf("%w: name %q cannot be exposed", ErrInvalidDescriptor, d.Name)
	}

	seen := make(map[string]struct{}, len(d.LabelNames))
	for _, name := range d.LabelNames {
		if !validLabelName(name) {
			return fmt.Errorf("%w: invalid label name %q", ErrInvalidDescriptor, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate label name %q", ErrInvalidDescriptor, name)
		}
		seen[name] = struct{}{}
	}

	switch d.Kind {
	case KindCounter:
		if len(d.Buckets) > 0 {
			return fmt.Errorf("%w: counter %q cannot have buckets", ErrInvalidDescriptor, d.Name)
		}
	case KindHistogram:
		if _, reserved := seen[model.BucketLabel]; reserved {
			return fmt.Errorf("%w: histogram %q cannot use label %q", ErrInvalidDescriptor, d.Name, model.BucketLabel)
		}
		if len(d.Buckets) == 0 {
			return fmt.Errorf("%w: histogram %q needs at least one bucket", ErrInvalidDescriptor, d.Name)
		}
		for i, b := range d.Buckets {
			if math.IsNaN(b) || math.IsInf(b, 0) {
				return fmt.Errorf("%w: histogram %q bucket %v must be finite", ErrInvalidDescriptor, d.Name, b)
			}
			if i > 0 && b <= d.Buckets[i-1] {
				return fmt.Errorf("%w: histogram %q buckets must be strictly increasing", ErrInvalidDescriptor, d.Name)
			}
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidDescriptor, int(d.Kind))
	}

	return nil
}

// validLabelName accepts the legacy Prometheus label charset. Names starting
// with "__" are reserved.
func validLabelName(name string) bool {
	if strings.HasPrefix(name, "__") || strings.ContainsRune(name, ':') {
		return false
	}
	return model.IsValidLegacyMetricName(name)
}
