package collectors

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"partsbot/internal"
	"partsbot/internal/config"
)

const (
	maxCandidatesPerSite = 8
	genericWeightFactor  = 0.7
)

var commonChallengeMarkers = []string{"challenge-platform", "cf-browser-verification", "Just a moment"}

// Site describes one shop or aggregator search page.
type Site struct {
	Name          string
	DefaultWeight float64
	// URLs builds the search URLs to try, in order.
	URLs func(req Request) []string
	// ChallengeMarkers are matched against the raw body, ChallengeText only
	// against visible text so widgets embedded in scripts do not count.
	ChallengeMarkers []string
	ChallengeText    []string
	Labels           []*regexp.Regexp
	// StopAfter ends the URL loop once this many candidates were found; zero runs all URLs.
	StopAfter int
}

// DefaultSites returns the built-in shop list.
func DefaultSites() []Site {
	return []Site{
		{
			Name:          "partsouq",
			DefaultWeight: 0.50,
			URLs: func(req Request) []string {
				queries := []string{}
				if n := strings.TrimSpace(req.Part.SuspectedNumber); n != "" {
					queries = append(queries, n)
				}
				if vin := strings.TrimSpace(req.Vehicle.VIN); vin != "" {
					queries = append(queries, vin)
				}
				if q := searchText(req, true); q != "" {
					queries = append(queries, q)
				}
				out := make([]string, 0, len(queries))
				for _, q := range queries {
					out = append(out, "https://partsouq.com/en/search/all?q="+url.QueryEscape(q))
				}
				return out
			},
			ChallengeMarkers: []string{"cf-mitigated"},
			ChallengeText:    []string{"captcha"},
			StopAfter:        5,
		},
		{
			Name:          "kfzteile24",
			DefaultWeight: 0.85,
			URLs:          single("https://www.kfzteile24.de/search?q=", false),
			ChallengeText: []string{"captcha"},
			Labels:        []*regexp.Regexp{regexp.MustCompile(`(?i)Herstellernummer(?:[.:#]|\s)+`)},
		},
		{
			Name:          "oscaro",
			DefaultWeight: 0.83,
			URLs:          single("https://www.oscaro.com/search?term=", true),
			ChallengeText: []string{"captcha"},
			Labels:        []*regexp.Regexp{regexp.MustCompile(`(?i)R[ée]f[ée]rence constructeur(?:[.:#]|\s)+`)},
		},
		{
			Name:          "pkwteile",
			DefaultWeight: 0.82,
			URLs:          single("https://www.pkwteile.de/search?search=", false),
			ChallengeText: []string{"captcha"},
		},
		{
			Name:             "autodoc",
			DefaultWeight:    0.55,
			URLs:             single("https://www.autodoc.de/search?keyword=", false),
			ChallengeMarkers: []string{"px-captcha"},
			ChallengeText:    []string{"captcha"},
		},
		{
			Name:          "motointegrator",
			DefaultWeight: 0.60,
			URLs: func(req Request) []string {
				part := strings.TrimSpace(req.Part.Text)
				if part == "" {
					return nil
				}
				v := url.Values{}
				v.Set("q", part)
				if req.Vehicle.Make != "" {
					v.Set("make", req.Vehicle.Make)
				}
				if req.Vehicle.Model != "" {
					v.Set("model", req.Vehicle.Model)
				}
				return []string{"https://www.motointegrator.com/search?" + v.Encode()}
			},
			ChallengeText: []string{"captcha"},
		},
	}
}

func single(prefix string, withYear bool) func(Request) []string {
	return func(req Request) []string {
		q := searchText(req, withYear)
		if q == "" {
			return nil
		}
		return []string{prefix + url.QueryEscape(q)}
	}
}

// searchText is "make model [year] part". Part text is required.
func searchText(req Request, withYear bool) string {
	part := strings.TrimSpace(req.Part.Text)
	if part == "" {
		return ""
	}
	fields := []string{req.Vehicle.Make, req.Vehicle.Model}
	if withYear && req.Vehicle.Year > 0 {
		fields = append(fields, strconv.Itoa(req.Vehicle.Year))
	}
	fields = append(fields, part)
	return strings.Join(strings.Fields(strings.Join(fields, " ")), " ")
}

// Scraper is the collector for one Site.
type Scraper struct {
	site    Site
	fetcher PageFetcher
	weight  float64
	log     zerolog.Logger
}

func NewScraper(site Site, fetcher PageFetcher, weight float64, log zerolog.Logger) *Scraper {
	return &Scraper{
		site:    site,
		fetcher: fetcher,
		weight:  internal.ClampConfidence(weight),
		log:     log.With().Str("source", site.Name).Logger(),
	}
}

// NewScrapers builds a collector for every enabled site with its configured weight.
func NewScrapers(cfg config.Config, sites []Site, fetcher PageFetcher, log zerolog.Logger) []*Scraper {
	out := []*Scraper{}
	for _, s := range sites {
		if !cfg.SourceEnabled(s.Name) {
			continue
		}
		out = append(out, NewScraper(s, fetcher, cfg.Weight(s.Name, s.DefaultWeight), log))
	}
	return out
}

func (s *Scraper) Name() string        { return s.site.Name }
func (s *Scraper) Tier() internal.Tier { return internal.TierOpen }

func (s *Scraper) ResolveCandidates(ctx context.Context, req Request) []internal.OemCandidate {
	out := []internal.OemCandidate{}
	exclude := []string{req.Vehicle.VIN}
	for _, u := range s.site.URLs(req) {
		if ctx.Err() != nil || len(out) >= maxCandidatesPerSite {
			break
		}
		page, err := s.fetcher.Fetch(ctx, u)
		if err != nil {
			s.log.Warn().Err(err).Str("url", u).Msg("search page fetch failed")
			continue
		}
		if marker, hit := s.challenged(page); hit {
			s.log.Warn().Str("url", u).Str("marker", marker).Msg("bot challenge detected")
			continue
		}

		found := ExtractOEMs(page.Body, ExtractOptions{
			Labels:  s.site.Labels,
			Exclude: exclude,
			Limit:   maxCandidatesPerSite - len(out),
		})
		for _, ex := range found {
			exclude = append(exclude, ex.Raw)
			conf := s.weight
			if ex.Method == MethodGeneric {
				conf *= genericWeightFactor
			}
			cand, ok := internal.NewCandidate(ex.Raw, s.site.Name, conf)
			if !ok {
				continue
			}
			out = append(out, withProvenance(cand, "url", u, "method", ex.Method))
		}
		if s.site.StopAfter > 0 && len(out) >= s.site.StopAfter {
			break
		}
	}
	s.log.Debug().Int("candidates", len(out)).Msg("scrape finished")
	return out
}

func (s *Scraper) challenged(page Page) (string, bool) {
	if page.Header != nil && page.Header.Get("cf-mitigated") != "" {
		return "cf-mitigated", true
	}
	body := strings.ToLower(page.Body)
	for _, list := range [][]string{commonChallengeMarkers, s.site.ChallengeMarkers} {
		for _, m := range list {
			if strings.Contains(body, strings.ToLower(m)) {
				return m, true
			}
		}
	}
	if len(s.site.ChallengeText) == 0 {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return "", false
	}
	text := strings.ToLower(visibleText(doc))
	for _, m := range s.site.ChallengeText {
		if strings.Contains(text, strings.ToLower(m)) {
			return m, true
		}
	}
	return "", false
}
