// Package classify picks the catalog category that best fits a free-text part request.
package classify

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"partsbot/internal"
	"partsbot/internal/catalog"
	"partsbot/internal/util"
)

const (
	substringScore = 2.0
	familyScore    = 1.2
	positionScore  = 0.5
	sideScore      = 0.3
)

// keywordFamilies are bilingual keyword sets; a family counts once when both the
// category name and the part text hit it.
var keywordFamilies = map[string][]string{
	"brake":      {"bremse", "brems", "brake"},
	"pad":        {"belag", "pad"},
	"disc":       {"scheibe", "disc"},
	"filter":     {"filter", "ölfilter", "luftfilter"},
	"suspension": {"lenker", "querlenker", "control arm", "suspension", "stabilizer", "koppel"},
	"spark":      {"zündkerze", "spark"},
}

// familyOrder fixes iteration so scores never depend on map order.
var familyOrder = []string{"brake", "pad", "disc", "filter", "suspension", "spark"}

var positionMarkers = map[internal.Position][]string{
	internal.PositionFront: {"front", "vorder", "vorn"},
	internal.PositionRear:  {"rear", "hinter", "hinten"},
}

// sideMarkers accept either language regardless of how the side was given.
var sideMarkers = [][]string{
	{"left", "links"},
	{"right", "rechts"},
}

// CategorySource lists the category tree for a vehicle.
type CategorySource interface {
	Categories(ctx context.Context, v internal.VehicleIdentity) ([]catalog.Record, error)
	CategoriesLegacy(ctx context.Context, v internal.VehicleIdentity) ([]catalog.Record, error)
}

type Classifier struct {
	source CategorySource
	log    zerolog.Logger
}

func NewClassifier(source CategorySource, log zerolog.Logger) *Classifier {
	return &Classifier{source: source, log: log.With().Str("component", "classify").Logger()}
}

// Load fetches the flattened category list, falling back to the legacy endpoint
// when the primary one fails or is empty.
func (c *Classifier) Load(ctx context.Context, v internal.VehicleIdentity) []internal.Category {
	records, err := c.source.Categories(ctx, v)
	if err != nil {
		c.log.Warn().Err(err).Msg("category tree lookup failed, trying legacy endpoint")
	}
	categories := Flatten(records)
	if len(categories) > 0 {
		return categories
	}

	records, err = c.source.CategoriesLegacy(ctx, v)
	if err != nil {
		c.log.Warn().Err(err).Msg("legacy category lookup failed")
		return nil
	}
	return Flatten(records)
}

// Pick loads categories for the vehicle and classifies the query against them.
func (c *Classifier) Pick(ctx context.Context, q internal.PartQuery, v internal.VehicleIdentity) (internal.CategoryMatch, bool) {
	return Classify(q, c.Load(ctx, v))
}

// Flatten walks a category tree depth-first, parents before children. Nodes
// without an id or name are skipped but their children are still visited.
func Flatten(records []catalog.Record) []internal.Category {
	out := []internal.Category{}
	var walk func(nodes []catalog.Record)
	walk = func(nodes []catalog.Record) {
		for _, n := range nodes {
			id := n.Int(catalog.CategoryIDFields...)
			name := n.String(catalog.CategoryNameFields...)
			if id != 0 && name != "" {
				out = append(out, internal.Category{ID: id, Name: name})
			}
			walk(n.Children())
		}
	}
	walk(records)
	return out
}

// Classify returns the highest scoring category. A score of zero is no match and
// ties keep the earlier category.
func Classify(q internal.PartQuery, categories []internal.Category) (internal.CategoryMatch, bool) {
	var best internal.CategoryMatch
	found := false
	for _, c := range categories {
		s := Score(q, c.Name)
		if s > best.Score {
			best = internal.CategoryMatch{Category: c, Score: s}
			found = true
		}
	}
	return best, found
}

func Score(q internal.PartQuery, categoryName string) float64 {
	name := util.NormalizeText(categoryName)
	text := util.NormalizeText(q.Text)
	if name == "" {
		return 0
	}

	score := 0.0
	if text != "" && (strings.Contains(name, text) || strings.Contains(text, name)) {
		score += substringScore
	}
	for _, family := range familyOrder {
		words := keywordFamilies[family]
		if containsAny(name, words) && containsAny(text, words) {
			score += familyScore
		}
	}
	if markers, ok := positionMarkers[q.Position]; ok && containsAny(name, markers) {
		score += positionScore
	}
	if side := util.NormalizeText(q.Side); side != "" && containsAny(name, sideWords(side)) {
		score += sideScore
	}
	return score
}

func sideWords(side string) []string {
	for _, words := range sideMarkers {
		for _, w := range words {
			if w == side {
				return words
			}
		}
	}
	return []string{side}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
