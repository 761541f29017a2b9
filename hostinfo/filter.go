package hostinfo

// Filter holds two disjoint sets of host_id and an optional endpoint
// type label. At most one of Allowed/Blocked is effective: if both are
// non-empty, Allowed wins.
type Filter struct {
	Allowed      map[string]struct{}
	Blocked      map[string]struct{}
	EndpointType string // "READER" filters writers out of the blocked view
}

// NewFilter builds a Filter from plain string slices.
func NewFilter(allowed, blocked []string, endpointType string) Filter {
	f := Filter{EndpointType: endpointType}
	if len(allowed) > 0 {
		f.Allowed = toSet(allowed)
	}
	if len(blocked) > 0 {
		f.Blocked = toSet(blocked)
	}
	return f
}

func toSet(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Apply returns the subset of candidates that pass the filter.
func (f Filter) Apply(candidates []HostInfo) []HostInfo {
	out := make([]HostInfo, 0, len(candidates))
	for _, h := range candidates {
		if f.Allows(h) {
			out = append(out, h)
		}
	}
	return out
}

// Allows reports whether a single host passes the filter.
func (f Filter) Allows(h HostInfo) bool {
	if len(f.Allowed) > 0 {
		_, ok := f.Allowed[h.HostID]
		return ok
	}
	if len(f.Blocked) > 0 {
		if f.EndpointType == "READER" && h.Role == RoleWriter {
			return false
		}
		_, blocked := f.Blocked[h.HostID]
		return !blocked
	}
	return true
}
