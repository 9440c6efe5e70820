// Package consensus merges candidate lists from all sources and picks the OEM
// number the run settles on.
package consensus

import (
	"fmt"
	"sort"

	"partsbot/internal"
)

type Resolver struct {
	// combine scores an OEM seen in both tiers from each tier's best confidence.
	combine func(catalogConf, openConf float64) float64
}

func NewResolver() *Resolver {
	return &Resolver{combine: func(c, o float64) float64 { return c + o }}
}

type oemStats struct {
	oem        string
	catalogMax float64
	openMax    float64
	inCatalog  bool
	inOpen     bool
	sources    map[string]struct{}
}

type ranked struct {
	oem     string
	score   float64
	sources int
}

// Resolve groups candidates by normalized OEM and classifies the outcome. Notes are
// appended to trail. A panic while scoring yields StatusError instead of escaping.
func (r *Resolver) Resolve(results []internal.SourceResult, trail []string) (res internal.ResolutionResult) {
	res = internal.ResolutionResult{
		Status:             internal.StatusNotFound,
		CandidatesBySource: map[string][]internal.OemCandidate{},
		DebugTrail:         append([]string{}, trail...),
	}
	defer func() {
		if rec := recover(); rec != nil {
			res.Status = internal.StatusError
			res.BestMatch = nil
			res.DebugTrail = append(res.DebugTrail, fmt.Sprintf("consensus: internal error: %v", rec))
		}
	}()

	stats := map[string]*oemStats{}
	order := []string{}
	for _, sr := range results {
		if _, ok := res.CandidatesBySource[sr.Source]; !ok {
			res.CandidatesBySource[sr.Source] = []internal.OemCandidate{}
		}
		res.CandidatesBySource[sr.Source] = append(res.CandidatesBySource[sr.Source], sr.Candidates...)
		for _, c := range sr.Candidates {
			if c.Oem == "" {
				continue
			}
			st, ok := stats[c.Oem]
			if !ok {
				st = &oemStats{oem: c.Oem, sources: map[string]struct{}{}}
				stats[c.Oem] = st
				order = append(order, c.Oem)
			}
			st.sources[c.Source] = struct{}{}
			conf := internal.ClampConfidence(c.Confidence)
			if sr.Tier == internal.TierCatalog {
				st.inCatalog = true
				st.catalogMax = max(st.catalogMax, conf)
			} else {
				st.inOpen = true
				st.openMax = max(st.openMax, conf)
			}
		}
	}

	intersection := []ranked{}
	catalogOnly := []ranked{}
	for _, oem := range order {
		st := stats[oem]
		if st.inCatalog && st.inOpen {
			intersection = append(intersection, ranked{oem: oem, score: r.combine(st.catalogMax, st.openMax), sources: len(st.sources)})
		}
		if st.inCatalog {
			catalogOnly = append(catalogOnly, ranked{oem: oem, score: st.catalogMax, sources: len(st.sources)})
		}
	}

	switch {
	case len(intersection) > 0:
		best := top(intersection)
		res.Status = internal.StatusConfirmed
		res.BestMatch = &best.oem
		res.DebugTrail = append(res.DebugTrail, fmt.Sprintf("consensus: %s confirmed by catalog and open sources (score %.2f, %d sources, %d overlapping numbers)", best.oem, best.score, best.sources, len(intersection)))
	case len(catalogOnly) > 0:
		best := top(catalogOnly)
		res.Status = internal.StatusSingleSource
		res.BestMatch = &best.oem
		res.DebugTrail = append(res.DebugTrail, fmt.Sprintf("consensus: no cross-tier overlap, best catalog candidate %s (confidence %.2f)", best.oem, best.score))
	default:
		res.DebugTrail = append(res.DebugTrail, fmt.Sprintf("consensus: no catalog candidates, %d open candidates without confirmation", countOpen(stats)))
	}
	return res
}

// top orders by score, then number of agreeing sources, then OEM so the pick never
// depends on arrival order.
func top(list []ranked) ranked {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		if list[i].sources != list[j].sources {
			return list[i].sources > list[j].sources
		}
		return list[i].oem < list[j].oem
	})
	return list[0]
}

func countOpen(stats map[string]*oemStats) int {
	n := 0
	for _, st := range stats {
		if st.inOpen {
			n++
		}
	}
	return n
}
