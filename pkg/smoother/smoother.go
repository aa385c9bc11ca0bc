// Package smoother aggregates raw pressure samples into stable readings before
// they reach the altitude model.
package smoother

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"

	"variogo/pkg/sensor"
)

// MinWindow is the smallest group of raw readings a smoother aggregates.
const MinWindow = 5

// Policy names accepted by New.
const (
	PolicyMedian = "median"
	PolicyMean   = "mean"
)

// Smoother turns raw samples into smoothed ones. Add reports false while it
// is still collecting.
type Smoother interface {
	Add(s sensor.PressureSample) (sensor.PressureSample, bool)
	Reset()
}

// New returns the smoother for policy. Empty policy selects the block median.
func New(policy string, n int) (Smoother, error) {
	if n < MinWindow {
		n = MinWindow
	}
	switch policy {
	case "", PolicyMedian:
		return NewBlockMedian(n), nil
	case PolicyMean:
		return NewSlidingMean(n), nil
	default:
		return nil, fmt.Errorf("unknown smoothing policy %q", policy)
	}
}

// BlockMedian collects N samples, emits their median and starts over.
type BlockMedian struct {
	n      int
	values []float64
	sorted []float64
	lastTS int64
}

// NewBlockMedian creates a block median over n samples.
func NewBlockMedian(n int) *BlockMedian {
	if n < MinWindow {
		n = MinWindow
	}
	return &BlockMedian{
		n:      n,
		values: make([]float64, 0, n),
		sorted: make([]float64, n),
	}
}

func (b *BlockMedian) Add(s sensor.PressureSample) (sensor.PressureSample, bool) {
	b.values = append(b.values, s.Value)
	b.lastTS = s.Timestamp
	if len(b.values) < b.n {
		return sensor.PressureSample{}, false
	}

	sorted := b.sorted[:len(b.values)]
	copy(sorted, b.values)
	slices.Sort(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	b.values = b.values[:0]
	return sensor.PressureSample{Value: median, Timestamp: b.lastTS}, true
}

func (b *BlockMedian) Reset() {
	b.values = b.values[:0]
	b.lastTS = 0
}

// SlidingMean averages the last N samples and emits on every sample once full.
type SlidingMean struct {
	n      int
	window []float64
	next   int
	full   bool
}

// NewSlidingMean creates a sliding mean over n samples.
func NewSlidingMean(n int) *SlidingMean {
	if n < MinWindow {
		n = MinWindow
	}
	return &SlidingMean{n: n, window: make([]float64, 0, n)}
}

func (m *SlidingMean) Add(s sensor.PressureSample) (sensor.PressureSample, bool) {
	if len(m.window) < m.n {
		m.window = append(m.window, s.Value)
	} else {
		m.window[m.next] = s.Value
	}
	m.next = (m.next + 1) % m.n
	if len(m.window) < m.n {
		return sensor.PressureSample{}, false
	}
	return sensor.PressureSample{Value: stat.Mean(m.window, nil), Timestamp: s.Timestamp}, true
}

func (m *SlidingMean) Reset() {
	m.window = m.window[:0]
	m.next = 0
}
