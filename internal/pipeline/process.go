package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"partsbot/internal"
	"partsbot/internal/catalog"
	"partsbot/internal/classify"
	"partsbot/internal/collectors"
	"partsbot/internal/config"
	"partsbot/internal/consensus"
	"partsbot/internal/identity"
	"partsbot/internal/util"
)

// Catalog is everything the resolution run needs from the structured catalog.
type Catalog interface {
	catalog.ReferenceSource
	identity.Catalog
	classify.CategorySource
	collectors.ArticleCatalog
}

// Recorder persists finished runs.
type Recorder interface {
	InsertResolution(rec internal.ResolutionRecord, sources []internal.SourceResult) (int64, error)
}

type Deps struct {
	Catalog  Catalog
	Fetcher  collectors.PageFetcher
	Metadata catalog.MetadataStore
	Recorder Recorder
	// Collectors replaces the default collector set when non-nil.
	Collectors []collectors.Collector
}

type Service struct {
	cfg        config.Config
	log        zerolog.Logger
	reference  *catalog.ReferenceService
	identity   *identity.Resolver
	classifier *classify.Classifier
	collectors []collectors.Collector
	consensus  *consensus.Resolver
	recorder   Recorder
	newTraceID func() string
}

// NewService fails when the catalog is not configured: without it no partial
// resolution is possible.
func NewService(cfg config.Config, deps Deps, log zerolog.Logger) (*Service, error) {
	if err := cfg.RequireCatalog(); err != nil {
		return nil, err
	}
	if deps.Catalog == nil {
		return nil, errors.New("pipeline: catalog client is required")
	}

	list := deps.Collectors
	if list == nil {
		list = DefaultCollectors(cfg, deps.Catalog, deps.Fetcher, log)
	}

	return &Service{
		cfg:        cfg,
		log:        log,
		reference:  catalog.NewReferenceService(deps.Catalog, deps.Metadata, log),
		identity:   identity.NewResolver(deps.Catalog, log),
		classifier: classify.NewClassifier(deps.Catalog, log),
		collectors: list,
		consensus:  consensus.NewResolver(),
		recorder:   deps.Recorder,
		newTraceID: uuid.NewString,
	}, nil
}

// DefaultCollectors is the catalog-tier set plus one scraper per enabled site.
// Scrapers are skipped when fetcher is nil.
func DefaultCollectors(cfg config.Config, c collectors.ArticleCatalog, fetcher collectors.PageFetcher, log zerolog.Logger) []collectors.Collector {
	out := []collectors.Collector{
		collectors.NewVINArticles(c, log),
		collectors.NewGenericArticles(c, log),
		collectors.NewNumberSearch(c, log),
		collectors.NewEqualOemSearch(c, log),
	}
	if fetcher != nil {
		for _, s := range collectors.NewScrapers(cfg, collectors.DefaultSites(), fetcher, log) {
			out = append(out, s)
		}
	}
	return out
}

// ResolveOem runs the whole resolution for one request. It never fails: problems
// surface as the result status and in the debug trail.
func (s *Service) ResolveOem(ctx context.Context, vehicle internal.VehicleDescriptor, part internal.PartQuery, opts internal.ResolveOptions) (res internal.ResolutionResult) {
	start := time.Now()
	traceID := s.newTraceID()
	log := s.log.With().Str("trace_id", traceID).Logger()
	trail := []string{}
	var sources []internal.SourceResult

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("resolution aborted")
			res = internal.ResolutionResult{
				Status:             internal.StatusError,
				CandidatesBySource: map[string][]internal.OemCandidate{},
				DebugTrail:         append(trail, fmt.Sprintf("aborted: %v", rec)),
			}
		}
		res.TraceID = traceID
		s.record(log, vehicle, part, res, sources, time.Since(start))
	}()

	if s.cfg.ResolveTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ResolveTimeout())
		defer cancel()
	}

	lang := util.FirstNonEmpty(opts.PreferredLanguage, s.cfg.CatalogLanguage, "de")
	country := util.FirstNonEmpty(opts.CountryCode, s.cfg.CatalogCountry, "DE")
	base := s.reference.BaseParams(ctx, lang, country)
	trail = append(trail, fmt.Sprintf("base: langId=%d countryId=%d vehicleTypeId=%d", base.LangID, base.CountryID, base.VehicleTypeID))

	part = DetectPartHints(part)
	if part.SuspectedNumber != "" {
		trail = append(trail, fmt.Sprintf("part: suspected article number %s", part.SuspectedNumber))
	}

	id := s.identity.Resolve(ctx, vehicle, base)
	if id.Resolved() {
		trail = append(trail, fmt.Sprintf("identity: strategy=%s vehicleId=%d manufacturerId=%d modelSeriesId=%d", id.Strategy, id.VehicleID, id.ManufacturerID, id.ModelSeriesID))
	} else {
		trail = append(trail, fmt.Sprintf("identity: unresolved (manufacturerId=%d modelSeriesId=%d)", id.ManufacturerID, id.ModelSeriesID))
	}

	var category *internal.CategoryMatch
	if m, ok := s.classifier.Pick(ctx, part, id); ok {
		category = &m
		trail = append(trail, fmt.Sprintf("category: id=%d name=%q score=%.1f", m.ID, m.Name, m.Score))
	} else {
		trail = append(trail, "category: none, identifier lookups only")
	}

	sources = s.fanOut(ctx, collectors.Request{Vehicle: vehicle, Identity: id, Category: category, Part: part}, log)
	for _, sr := range sources {
		if sr.Completed {
			trail = append(trail, fmt.Sprintf("source %s: %d candidates in %dms", sr.Source, len(sr.Candidates), sr.DurationMs))
		} else {
			trail = append(trail, fmt.Sprintf("source %s: abandoned at deadline", sr.Source))
		}
	}

	res = s.consensus.Resolve(sources, trail)
	log.Info().
		Str("status", string(res.Status)).
		Str("best_match", derefString(res.BestMatch)).
		Dur("took", time.Since(start)).
		Msg("resolution finished")
	return res
}

func (s *Service) record(log zerolog.Logger, vehicle internal.VehicleDescriptor, part internal.PartQuery, res internal.ResolutionResult, sources []internal.SourceResult, took time.Duration) {
	if s.recorder == nil {
		return
	}
	rec := internal.ResolutionRecord{
		TraceID:    res.TraceID,
		Vehicle:    vehicle,
		Part:       part,
		Result:     res,
		DurationMs: took.Milliseconds(),
	}
	if _, err := s.recorder.InsertResolution(rec, sources); err != nil {
		log.Warn().Err(err).Msg("recording resolution failed")
	}
}
