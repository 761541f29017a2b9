package hostinfo

import (
	"regexp"
	"strconv"
	"time"
)

// rdsClusterPattern matches an RDS/Aurora cluster endpoint DNS name and
// captures the cluster identifier, e.g.
// "mydb.cluster-abc123.us-east-1.rds.amazonaws.com" -> "mydb".
//
// Grounded on the original driver's rds_strings cluster-DNS matching:
// a cluster endpoint is "<id>.cluster-<random>.<region>.rds.amazonaws.com"
// (writer) or "<id>.cluster-ro-<random>...." (reader), both stable
// per-cluster identifiers.
var rdsClusterPattern = regexp.MustCompile(`^([a-zA-Z0-9][a-zA-Z0-9-]*)\.cluster-(?:ro-)?[a-zA-Z0-9]+\.[a-zA-Z0-9-]+\.rds\.amazonaws\.com$`)

// DeriveClusterID implements the priority order from spec.md §3:
// (1) an explicit override (e.g. the CLUSTER_ID connection option),
// (2) an RDS cluster DNS pattern match of the initial server,
// (3) a monotonic clock reading rendered as text.
func DeriveClusterID(override, initialHost string) string {
	if override != "" {
		return override
	}
	if m := rdsClusterPattern.FindStringSubmatch(initialHost); m != nil {
		return m[1]
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
