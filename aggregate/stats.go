package aggregate

import (
	"math"
	"sort"
)

// durations accumulates the trip durations of one group.
type durations struct {
	vals []float64
	sum  float64
}

func (d *durations) add(v float64) {
	d.vals = append(d.vals, v)
	d.sum += v
}

func (d *durations) count() int { return len(d.vals) }

func (d *durations) mean() float64 {
	if len(d.vals) == 0 {
		return 0
	}
	return d.sum / float64(len(d.vals))
}

// summary returns min, median, mean and max. The median of an even number of
// values is the mean of the two middle values.
func (d *durations) summary() (min, median, mean, max float64) {
	if len(d.vals) == 0 {
		return 0, 0, 0, 0
	}
	sorted := make([]float64, len(d.vals))
	copy(sorted, d.vals)
	sort.Float64s(sorted)
	return sorted[0], quantile(sorted, 0.5), d.mean(), sorted[len(sorted)-1]
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	idx := q * float64(len(sorted)-1)
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	w := idx - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
