package collectors

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"partsbot/internal"
	"partsbot/internal/catalog"
)

const (
	SourceNumberSearch = "catalog_number_search"
	SourceEqualOem     = "catalog_equal_oem"
)

// NumberSearch looks the suspected article number up directly, bypassing vehicle
// and category matching.
type NumberSearch struct {
	name       string
	catalog    ArticleCatalog
	confidence float64
	limit      int
	search     func(ctx context.Context, langID int, number string) ([]catalog.Record, error)
	log        zerolog.Logger
}

func NewNumberSearch(c ArticleCatalog, log zerolog.Logger) *NumberSearch {
	return &NumberSearch{
		name:       SourceNumberSearch,
		catalog:    c,
		confidence: 0.9,
		limit:      5,
		search:     c.SearchArticlesByNumber,
		log:        log.With().Str("source", SourceNumberSearch).Logger(),
	}
}

func NewEqualOemSearch(c ArticleCatalog, log zerolog.Logger) *NumberSearch {
	return &NumberSearch{
		name:       SourceEqualOem,
		catalog:    c,
		confidence: 0.95,
		limit:      10,
		search:     c.SearchArticlesByEqualOemNumber,
		log:        log.With().Str("source", SourceEqualOem).Logger(),
	}
}

func (n *NumberSearch) Name() string        { return n.name }
func (n *NumberSearch) Tier() internal.Tier { return internal.TierCatalog }

func (n *NumberSearch) ResolveCandidates(ctx context.Context, req Request) []internal.OemCandidate {
	number := strings.TrimSpace(req.Part.SuspectedNumber)
	if number == "" {
		return nil
	}
	articles, err := n.search(ctx, req.Identity.LangID, number)
	if err != nil {
		n.log.Warn().Err(err).Str("number", number).Msg("number search failed")
		return nil
	}
	if len(articles) > n.limit {
		articles = articles[:n.limit]
	}
	out := candidatesFromArticles(ctx, n.catalog, req.Identity.BaseParams, articles, n.name, n.confidence, n.log)
	for i := range out {
		out[i].Provenance["query"] = number
	}
	return out
}
