package hostinfo

import "math"

// AuroraWeight computes the Aurora "lower is better" weight used by the
// highest-weight selector: replica lag dominates, CPU load breaks ties
// within the same lag bucket.
//
//	weight = round(replicaLagMs * 100 + cpuPct)
func AuroraWeight(replicaLagMs, cpuPct float64) uint64 {
	w := math.Round(replicaLagMs*100 + cpuPct)
	if w < 0 {
		return 0
	}
	return uint64(w)
}

// Limitless router weight scaling, per spec.md §3.
const (
	WeightScaling uint64 = 100
	MinWeight     uint64 = 1
	MaxWeight     uint64 = WeightScaling
)

// LimitlessWeight inverts a router's reported load (0..1, "higher is
// busier") into the same "lower is better" weight scale used everywhere
// else in the selectors. An invalid load (outside [0,1], NaN, ...) falls
// back to MinWeight, matching the spec's documented edge case. Valid
// loads are not additionally clamped: load=0 yields WeightScaling and
// load=1 yields 0 exactly.
func LimitlessWeight(load float64) uint64 {
	if math.IsNaN(load) || load < 0 || load > 1 {
		return MinWeight
	}

	return WeightScaling - uint64(math.Floor(load*float64(WeightScaling)))
}
