// Package collectors turns a vehicle and part request into OEM candidates, one
// adapter per catalog strategy or shop. Adapters never fail: errors are logged and
// become an empty candidate list.
package collectors

import (
	"context"
	"strconv"

	"partsbot/internal"
)

// Request is the read-only input every collector of one run receives.
type Request struct {
	Vehicle  internal.VehicleDescriptor
	Identity internal.VehicleIdentity
	Category *internal.CategoryMatch
	Part     internal.PartQuery
}

type Collector interface {
	Name() string
	Tier() internal.Tier
	ResolveCandidates(ctx context.Context, req Request) []internal.OemCandidate
}

func (r Request) CategoryID() int {
	if r.Category == nil {
		return 0
	}
	return r.Category.ID
}

func itoa(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func withProvenance(c internal.OemCandidate, kv ...string) internal.OemCandidate {
	if c.Provenance == nil {
		c.Provenance = map[string]string{}
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			c.Provenance[kv[i]] = kv[i+1]
		}
	}
	return c
}
