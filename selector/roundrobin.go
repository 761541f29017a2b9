package selector

import (
	"sort"

	"github.com/auroralink/wrapper-core/cache"
	"github.com/auroralink/wrapper-core/hostinfo"
)

// RoundRobin cycles through candidates in host_id order, sticking with
// the current host for a number of consecutive picks inversely
// proportional to its weight (so heavier/less-desirable hosts yield the cursor sooner)
// before advancing. Cursor state is per cluster/service key and lives
// in a sliding-TTL cache so an idle cluster's cursor naturally expires
// instead of growing the cache unbounded across cluster churn.
type RoundRobin struct {
	state *cache.Cache[string, *rrState]
}

type rrState struct {
	lastHostID string
	remaining  int
}

// NewRoundRobin builds a RoundRobin strategy with its own cursor
// cache. Cursor entries slide on every Select call for the same key.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{state: cache.New[string, *rrState]()}
}

// Select picks the next host for clusterKey's round-robin cursor.
func (r *RoundRobin) Select(clusterKey string, candidates []hostinfo.HostInfo) (hostinfo.HostInfo, error) {
	if len(candidates) == 0 {
		return hostinfo.HostInfo{}, ErrNoCandidates
	}

	sorted := make([]hostinfo.HostInfo, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].HostID < sorted[j].HostID })

	st, ok := r.state.Get(clusterKey)
	if ok && st.remaining > 0 {
		if idx := indexOf(sorted, st.lastHostID); idx >= 0 {
			st.remaining--
			r.state.PutTTL(clusterKey, st, cache.DefaultTTL)
			return sorted[idx], nil
		}
		// the sticky host dropped out of the topology; fall through
		// to advance the cursor onto the next candidate below.
	}

	nextIdx := 0
	if ok {
		if prev := indexOf(sorted, st.lastHostID); prev >= 0 {
			nextIdx = (prev + 1) % len(sorted)
		}
	}
	next := sorted[nextIdx]
	r.state.PutTTL(clusterKey, &rrState{lastHostID: next.HostID, remaining: weightTurns(next) - 1}, cache.DefaultTTL)
	return next, nil
}

func indexOf(hosts []hostinfo.HostInfo, hostID string) int {
	for i, h := range hosts {
		if h.HostID == hostID {
			return i
		}
	}
	return -1
}

// weightTurns converts a host's weight into a consecutive-pick count:
// at least one turn, scaled so lighter-weight (more desirable) hosts
// are favored with more consecutive picks.
func weightTurns(h hostinfo.HostInfo) int {
	if h.Weight == 0 {
		return 1
	}
	turns := int(hostinfo.WeightScaling / h.Weight)
	if turns < 1 {
		return 1
	}
	return turns
}
