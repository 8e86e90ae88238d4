package metrics

import "sync"

// OverflowLabelValue replaces free-form label values once a label has used
// up its budget of distinct values.
const OverflowLabelValue = "other"

// CardinalityLimiter caps the number of distinct values a free-form label
// (bank_id, model, provider, max_tokens) may take within a metric family.
// Values already admitted keep passing through unchanged; new values beyond
// the cap are folded into OverflowLabelValue.
type CardinalityLimiter struct {
	maxValues int
	mu        sync.RWMutex
	seen      map[limiterKey]map[string]struct{}
}

type limiterKey struct {
	family string
	label  string
}

// NewCardinalityLimiter creates a limiter admitting up to maxValues distinct
// values per (family, label). A non-positive maxValues disables the limit.
func NewCardinalityLimiter(maxValues int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxValues: maxValues,
		seen:      make(map[limiterKey]map[string]struct{}),
	}
}

// Admit returns value if it may be used as a label value, or
// OverflowLabelValue if the label is full.
func (cl *CardinalityLimiter) Admit(family, label, value string) string {
	if cl == nil || cl.maxValues <= 0 {
		return value
	}
	key := limiterKey{family: family, label: label}

	cl.mu.RLock()
	if _, exists := cl.seen[key][value]; exists {
		cl.mu.RUnlock()
		return value
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	values := cl.seen[key]
	if _, exists := values[value]; exists {
		return value
	}
	if len(values) >= cl.maxValues {
		return OverflowLabelValue
	}
	if values == nil {
		values = make(map[string]struct{})
		cl.seen[key] = values
	}
	values[value] = struct{}{}
	return value
}

// Count returns the number of distinct values admitted for a label.
func (cl *CardinalityLimiter) Count(family, label string) int {
	if cl == nil {
		return 0
	}
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.seen[limiterKey{family: family, label: label}])
}
