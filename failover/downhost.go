package failover

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultDownHostCacheSize bounds how many distinct host ids a
// DownHostTracker remembers at once; a cluster churning through more
// hosts than this within one TTL window evicts its oldest entries
// rather than growing unbounded.
const DefaultDownHostCacheSize = 256

// DefaultDownHostTTL is how long a host stays excluded from candidate
// selection after a failed connect, mirroring the original driver's
// DOWN-host cooldown before a host is retried.
const DefaultDownHostTTL = 5 * time.Second

// DownHostTracker remembers, by host_id, the last time a candidate
// failed to connect, so a single Failover call's "mark DOWN and don't
// retry this attempt" behavior (coordinator.removeHost) extends across
// separate Failover calls too: a host that just failed stays excluded
// from candidate lists for TTL, instead of being immediately eligible
// again on the very next failover.
type DownHostTracker struct {
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration
}

// NewDownHostTracker builds a tracker holding up to size host ids,
// each excluded for ttl after being marked down.
func NewDownHostTracker(size int, ttl time.Duration) *DownHostTracker {
	if size <= 0 {
		size = DefaultDownHostCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultDownHostTTL
	}
	c, _ := lru.New[string, time.Time](size)
	return &DownHostTracker{cache: c, ttl: ttl}
}

// MarkDown records hostID as having just failed.
func (t *DownHostTracker) MarkDown(hostID string) {
	if t == nil {
		return
	}
	t.cache.Add(hostID, time.Now())
}

// ClearDown removes hostID from the tracker, e.g. after it accepts a
// connection successfully.
func (t *DownHostTracker) ClearDown(hostID string) {
	if t == nil {
		return
	}
	t.cache.Remove(hostID)
}

// IsDown reports whether hostID was marked down within the last ttl.
func (t *DownHostTracker) IsDown(hostID string) bool {
	if t == nil {
		return false
	}
	markedAt, ok := t.cache.Get(hostID)
	if !ok {
		return false
	}
	if time.Since(markedAt) > t.ttl {
		t.cache.Remove(hostID)
		return false
	}
	return true
}
