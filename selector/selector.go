// Package selector implements the host-selection strategies used to
// pick a single candidate HostInfo out of a filtered topology slice.
package selector

import (
	"errors"
	"math/rand"

	"github.com/auroralink/wrapper-core/hostinfo"
)

// ErrNoCandidates is returned when a strategy is given an empty slice.
var ErrNoCandidates = errors.New("selector: no candidate hosts available")

// Strategy picks one HostInfo out of candidates.
type Strategy interface {
	Select(candidates []hostinfo.HostInfo) (hostinfo.HostInfo, error)
}

// Random picks uniformly at random among the candidates.
type Random struct{}

func (Random) Select(candidates []hostinfo.HostInfo) (hostinfo.HostInfo, error) {
	if len(candidates) == 0 {
		return hostinfo.HostInfo{}, ErrNoCandidates
	}
	return candidates[rand.Intn(len(candidates))], nil
}

// HighestWeight deterministically picks the candidate with the lowest
// weight value ("highest weight" in the original driver's naming
// refers to connection desirability, not the numeric weight itself:
// lower numeric weight means less lag/CPU/load and so is preferred).
// Ties are broken by the lexicographically smallest host_id so that
// repeated calls over an unchanged candidate set are deterministic.
type HighestWeight struct{}

func (HighestWeight) Select(candidates []hostinfo.HostInfo) (hostinfo.HostInfo, error) {
	if len(candidates) == 0 {
		return hostinfo.HostInfo{}, ErrNoCandidates
	}
	best := candidates[0]
	for _, h := range candidates[1:] {
		if h.Weight < best.Weight || (h.Weight == best.Weight && h.HostID < best.HostID) {
			best = h
		}
	}
	return best, nil
}
