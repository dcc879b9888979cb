package score

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Histogram counts scores in unit-width bins (bin = floor(score)). It is the
// null score population of one scan in e-value mode.
type Histogram struct {
	counts []float64
}

// NewHistogram returns an empty histogram.
func NewHistogram() *Histogram { return &Histogram{} }

// Add records a score. Negative, infinite and NaN scores are ignored.
func (h *Histogram) Add(score float64) {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return
	}
	bin := int(math.Floor(score))
	h.grow(bin + 1)
	h.counts[bin]++
}

func (h *Histogram) grow(n int) {
	if len(h.counts) < n {
		h.counts = append(h.counts, make([]float64, n-len(h.counts))...)
	}
}

// Merge adds the counts of other into h.
func (h *Histogram) Merge(other *Histogram) {
	if other == nil {
		return
	}
	h.grow(len(other.counts))
	floats.Add(h.counts[:len(other.counts)], other.counts)
}

// Count returns the number of recorded scores.
func (h *Histogram) Count() int {
	if h == nil {
		return 0
	}
	return int(floats.Sum(h.counts))
}

// Sum returns the sum of the binned scores.
func (h *Histogram) Sum() float64 {
	if h == nil || len(h.counts) == 0 {
		return 0
	}
	return floats.Dot(h.bins(), h.counts)
}

// Mean returns the mean binned score, or NaN when empty.
func (h *Histogram) Mean() float64 {
	if h.Count() == 0 {
		return math.NaN()
	}
	return stat.Mean(h.bins(), h.counts)
}

// bin returns the number of scores in the bin of score.
func (h *Histogram) bin(score float64) int {
	bin := int(math.Floor(score))
	if h == nil || bin < 0 || bin >= len(h.counts) {
		return 0
	}
	return int(h.counts[bin])
}

// Without returns a copy with one occurrence of score removed, if present.
func (h *Histogram) Without(score float64) *Histogram {
	out := &Histogram{counts: append([]float64(nil), h.counts...)}
	bin := int(math.Floor(score))
	if bin >= 0 && bin < len(out.counts) && out.counts[bin] > 0 {
		out.counts[bin]--
	}
	return out
}

func (h *Histogram) bins() []float64 {
	x := make([]float64, len(h.counts))
	for i := range x {
		x[i] = float64(i)
	}
	return x
}
