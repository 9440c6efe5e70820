package identity

import (
	"strings"

	"partsbot/internal/catalog"
	"partsbot/internal/util"
)

const yearRangeBonus = 2

// Score is the fuzzy name score: the needle length when the name contains it.
func Score(name, needle string) int {
	name = util.NormalizeText(name)
	needle = util.NormalizeText(needle)
	if name == "" || needle == "" {
		return 0
	}
	if strings.Contains(name, needle) {
		return len(needle)
	}
	return 0
}

// InYearRange reports whether year falls inside the record's construction years.
// Both ends must be known.
func InYearRange(r catalog.Record, year int) bool {
	if year == 0 {
		return false
	}
	from := r.Year(catalog.YearFromFields...)
	to := r.Year(catalog.YearToFields...)
	return from != 0 && to != 0 && year >= from && year <= to
}

// BestMatch returns the index of the highest scoring record, or -1 when nothing
// scores above zero. Ties keep the earlier record.
func BestMatch(records []catalog.Record, needle string, year int, nameFields []string) int {
	best, bestScore := -1, 0
	for i, r := range records {
		s := Score(r.String(nameFields...), needle)
		if InYearRange(r, year) {
			s += yearRangeBonus
		}
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
