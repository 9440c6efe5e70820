package collectors

import (
	"context"

	"github.com/rs/zerolog"

	"partsbot/internal"
	"partsbot/internal/catalog"
)

const (
	SourceCatalogVIN     = "catalog_vin"
	SourceCatalogVehicle = "catalog_vehicle"

	articleDetailLimit = 10
	contextNudge       = 0.05
)

// ArticleCatalog is the part of the catalog client used for article lookups.
type ArticleCatalog interface {
	Articles(ctx context.Context, v internal.VehicleIdentity, categoryID int) ([]catalog.Record, error)
	ArticleDetails(ctx context.Context, p internal.BaseParams, articleID int) (catalog.Record, error)
	SearchArticlesByNumber(ctx context.Context, langID int, number string) ([]catalog.Record, error)
	SearchArticlesByEqualOemNumber(ctx context.Context, langID int, number string) ([]catalog.Record, error)
}

// VehicleArticles lists the articles linked to a vehicle and category and emits
// every OE number attached to them.
type VehicleArticles struct {
	name    string
	catalog ArticleCatalog
	base    float64
	applies func(internal.VehicleIdentity) bool
	log     zerolog.Logger
}

// NewVINArticles serves identities confirmed by VIN decoding.
func NewVINArticles(c ArticleCatalog, log zerolog.Logger) *VehicleArticles {
	return &VehicleArticles{
		name:    SourceCatalogVIN,
		catalog: c,
		base:    0.85,
		applies: func(v internal.VehicleIdentity) bool { return v.Strategy == internal.StrategyVIN },
		log:     log.With().Str("source", SourceCatalogVIN).Logger(),
	}
}

// NewGenericArticles serves every identity not produced by VIN decoding,
// including partially resolved ones.
func NewGenericArticles(c ArticleCatalog, log zerolog.Logger) *VehicleArticles {
	return &VehicleArticles{
		name:    SourceCatalogVehicle,
		catalog: c,
		base:    0.8,
		applies: func(v internal.VehicleIdentity) bool { return v.Strategy != internal.StrategyVIN },
		log:     log.With().Str("source", SourceCatalogVehicle).Logger(),
	}
}

func (a *VehicleArticles) Name() string        { return a.name }
func (a *VehicleArticles) Tier() internal.Tier { return internal.TierCatalog }

// Confidence grows with the precise context behind the lookup.
func (a *VehicleArticles) Confidence(req Request) float64 {
	c := a.base
	if req.CategoryID() != 0 {
		c += contextNudge
	}
	if req.Identity.Resolved() {
		c += contextNudge
	}
	return internal.ClampConfidence(c)
}

func (a *VehicleArticles) ResolveCandidates(ctx context.Context, req Request) []internal.OemCandidate {
	if !a.applies(req.Identity) || req.CategoryID() == 0 {
		return nil
	}
	articles, err := a.catalog.Articles(ctx, req.Identity, req.CategoryID())
	if err != nil {
		a.log.Warn().Err(err).Int("category_id", req.CategoryID()).Msg("article list failed")
		return nil
	}
	if len(articles) > articleDetailLimit {
		articles = articles[:articleDetailLimit]
	}
	return candidatesFromArticles(ctx, a.catalog, req.Identity.BaseParams, articles, a.name, a.Confidence(req), a.log)
}

// candidatesFromArticles fetches details per article and turns every reference
// number into a candidate. A failed detail call still uses the list entry.
func candidatesFromArticles(ctx context.Context, c ArticleCatalog, p internal.BaseParams, articles []catalog.Record, source string, confidence float64, log zerolog.Logger) []internal.OemCandidate {
	out := []internal.OemCandidate{}
	for _, article := range articles {
		if ctx.Err() != nil {
			break
		}
		info := catalog.ReadArticle(article)
		var details catalog.Record
		if info.ID != 0 {
			d, err := c.ArticleDetails(ctx, p, info.ID)
			if err != nil {
				log.Debug().Err(err).Int("article_id", info.ID).Msg("article details failed")
			} else {
				details = d
			}
		}
		for _, ref := range catalog.CollectReferenceNumbers(article, details) {
			cand, ok := internal.NewCandidate(ref.Raw, source, confidence)
			if !ok {
				continue
			}
			cand.Brand = ref.Brand
			if cand.Brand == "" {
				cand.Brand = info.Brand
			}
			cand.Description = info.Description
			out = append(out, withProvenance(cand,
				"articleId", itoa(info.ID),
				"articleNo", info.Number,
				"kind", ref.Kind,
			))
		}
	}
	return out
}
