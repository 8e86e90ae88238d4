package metrics

import (
	"errors"
	"slices"
	"testing"
)

func TestTokenBuckets_Default(t *testing.T) {
	tb := DefaultTokenBuckets()

	tests := []struct {
		tokens int
		want   string
	}{
		{0, "0-100"},
		{1, "0-100"},
		{99, "0-100"},
		{100, "100-500"},
		{499, "100-500"},
		{500, "500-1k"},
		{750, "500-1k"},
		{999, "500-1k"},
		{1000, "1k-5k"},
		{4999, "1k-5k"},
		{5000, "5k-10k"},
		{9999, "5k-10k"},
		{10000, "10k-50k"},
		{49999, "10k-50k"},
		{50000, "50k+"},
		{1_000_000_000, "50k+"},
		{-5, "0-100"},
	}

	for _, tt := range tests {
		if got := tb.Bucket(tt.tokens); got != tt.want {
			t.Errorf("Bucket(%d) = %q, want %q", tt.tokens, got, tt.want)
		}
	}
}

func TestTokenBuckets_Labels(t *testing.T) {
	want := []string{"0-100", "100-500", "500-1k", "1k-5k", "5k-10k", "10k-50k", "50k+"}
	if got := DefaultTokenBuckets().Labels(); !slices.Equal(got, want) {
		t.Errorf("Labels() = %v, want %v", got, want)
	}
}

func TestTokenBuckets_Monotonic(t *testing.T) {
	tb := DefaultTokenBuckets()
	labels := tb.Labels()

	prev := 0
	for n := 0; n <= 120_000; n += 7 {
		idx := tb.Index(n)
		if idx < prev {
			t.Fatalf("Index(%d) = %d, decreased from %d", n, idx, prev)
		}
		if !slices.Contains(labels, tb.Bucket(n)) {
			t.Fatalf("Bucket(%d) = %q is not a known label", n, tb.Bucket(n))
		}
		prev = idx
	}
}

func TestNewTokenBuckets_Custom(t *testing.T) {
	tb, err := NewTokenBuckets([]int{256, 2048, 1_000_000})
	if err != nil {
		t.Fatalf("NewTokenBuckets() error = %v", err)
	}

	want := []string{"0-256", "256-2048", "2048-1m", "1m+"}
	if got := tb.Labels(); !slices.Equal(got, want) {
		t.Errorf("Labels() = %v, want %v", got, want)
	}
	if got := tb.Bucket(2048); got != "2048-1m" {
		t.Errorf("Bucket(2048) = %q, want %q", got, "2048-1m")
	}
}

func TestNewTokenBuckets_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		bounds []int
	}{
		{"empty", nil},
		{"zero boundary", []int{0, 100}},
		{"negative boundary", []int{-1}},
		{"not increasing", []int{100, 100}},
		{"decreasing", []int{500, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenBuckets(tt.bounds)
			if !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("NewTokenBuckets(%v) error = %v, want ErrInvalidDescriptor", tt.bounds, err)
			}
		})
	}
}

func TestTokenBuckets_BoundariesAreCopied(t *testing.T) {
	bounds := []int{10, 20}
	tb, err := NewTokenBuckets(bounds)
	if err != nil {
		t.Fatalf("NewTokenBuckets() error = %v", err)
	}
	bounds[0] = 15

	if got := tb.Bucket(12); got != "10-20" {
		t.Errorf("Bucket(12) = %q after caller mutation, want %q", got, "10-20")
	}
}
