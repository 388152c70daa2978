package measure

import (
	"math"
	"slices"
)

// Aggregator combines the costs of every occupied cell of a multi-cell token
// for one sub-step into a single cost.
type Aggregator func(costs []float64) float64

// Median returns the median cost. Any infinite cost makes the result
// infinite; with an even number of costs the two middle values are averaged.
func Median(costs []float64) float64 {
	if len(costs) == 0 {
		return 0
	}
	for _, c := range costs {
		if math.IsInf(c, 1) {
			return math.Inf(1)
		}
	}
	sorted := slices.Clone(costs)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Max returns the most expensive cost.
func Max(costs []float64) float64 {
	if len(costs) == 0 {
		return 0
	}
	return slices.Max(costs)
}

// Mean returns the average cost, infinite when any cost is.
func Mean(costs []float64) float64 {
	if len(costs) == 0 {
		return 0
	}
	var sum float64
	for _, c := range costs {
		sum += c
	}
	return sum / float64(len(costs))
}
