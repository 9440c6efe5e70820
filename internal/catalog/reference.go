package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"partsbot/internal"
)

const (
	fallbackLangID       = 4
	fallbackCountryID    = 62
	passengerVehicleType = 1
	baseParamsMemoMaxAge = 30 * 24 * time.Hour
	germanLangID         = 10
	englishLangID        = 4
)

var (
	reGerman  = regexp.MustCompile(`(?i)german|deutsch`)
	reEnglish = regexp.MustCompile(`(?i)english|englisch`)
	reGermany = regexp.MustCompile(`(?i)germany|deutschland`)
)

// ReferenceSource is the subset of the catalog needed to pick base parameters.
type ReferenceSource interface {
	Languages(ctx context.Context) ([]Record, error)
	Countries(ctx context.Context, langID int) ([]Record, error)
}

// MetadataStore persists small key/value facts between runs.
type MetadataStore interface {
	GetMetadata(key string) (*string, error)
	SetMetadata(key, value string) error
}

type ReferenceService struct {
	source ReferenceSource
	store  MetadataStore
	log    zerolog.Logger
	now    func() time.Time
}

func NewReferenceService(source ReferenceSource, store MetadataStore, log zerolog.Logger) *ReferenceService {
	return &ReferenceService{source: source, store: store, log: log, now: time.Now}
}

type baseParamsMemo struct {
	Params  internal.BaseParams `json:"params"`
	SavedAt string              `json:"savedAt"`
}

// BaseParams picks language, country and vehicle type ids for one run. Catalog
// failures degrade to the fallback ids; only a fully successful lookup is memoised.
func (s *ReferenceService) BaseParams(ctx context.Context, language, countryCode string) internal.BaseParams {
	key := fmt.Sprintf("catalog.base_params.%s.%s", strings.ToLower(language), strings.ToUpper(countryCode))
	if memo, ok := s.loadMemo(key); ok {
		return memo
	}

	params := internal.BaseParams{LangID: fallbackLangID, CountryID: fallbackCountryID, VehicleTypeID: passengerVehicleType}
	langs, err := s.source.Languages(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("catalog languages lookup failed, using fallback ids")
		return params
	}
	params.LangID = PickLanguageID(langs, language)

	countries, err := s.source.Countries(ctx, params.LangID)
	if err != nil {
		s.log.Warn().Err(err).Msg("catalog countries lookup failed, using fallback country")
		return params
	}
	params.CountryID = PickCountryID(countries, countryCode)

	s.saveMemo(key, params)
	return params
}

func (s *ReferenceService) loadMemo(key string) (internal.BaseParams, bool) {
	if s.store == nil {
		return internal.BaseParams{}, false
	}
	raw, err := s.store.GetMetadata(key)
	if err != nil || raw == nil {
		return internal.BaseParams{}, false
	}
	var memo baseParamsMemo
	if err := json.Unmarshal([]byte(*raw), &memo); err != nil {
		return internal.BaseParams{}, false
	}
	saved, err := time.Parse(time.RFC3339, memo.SavedAt)
	if err != nil || s.now().Sub(saved) > baseParamsMemoMaxAge {
		return internal.BaseParams{}, false
	}
	return memo.Params, true
}

func (s *ReferenceService) saveMemo(key string, params internal.BaseParams) {
	if s.store == nil {
		return
	}
	blob, _ := json.Marshal(baseParamsMemo{Params: params, SavedAt: s.now().UTC().Format(time.RFC3339)})
	if err := s.store.SetMetadata(key, string(blob)); err != nil {
		s.log.Warn().Err(err).Msg("storing base params memo failed")
	}
}

// PickLanguageID prefers German for "de" and English for "en", then whichever of the
// two exists, then the English id.
func PickLanguageID(langs []Record, preferred string) int {
	var german, english int
	for _, l := range langs {
		id := l.Int(LanguageIDFields...)
		name := l.String(LanguageNameFields...)
		if german == 0 && (reGerman.MatchString(name) || id == germanLangID) {
			german = id
		}
		if english == 0 && (reEnglish.MatchString(name) || id == englishLangID) {
			english = id
		}
	}
	switch {
	case strings.EqualFold(preferred, "en") && english != 0:
		return english
	case !strings.EqualFold(preferred, "en") && german != 0:
		return german
	case german != 0:
		return german
	case english != 0:
		return english
	}
	return fallbackLangID
}

// PickCountryID prefers an exact country code, then a display name containing the
// code, then Germany, then the hard-coded fallback.
func PickCountryID(countries []Record, countryCode string) int {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if code == "" {
		code = "DE"
	}
	for _, c := range countries {
		if strings.EqualFold(c.String(CountryCodeFields...), code) {
			if id := c.Int(CountryIDFields...); id != 0 {
				return id
			}
		}
	}
	for _, c := range countries {
		if strings.Contains(strings.ToUpper(c.String(CountryNameFields...)), code) {
			if id := c.Int(CountryIDFields...); id != 0 {
				return id
			}
		}
	}
	for _, c := range countries {
		id := c.Int(CountryIDFields...)
		if id != 0 && (reGermany.MatchString(c.String(CountryNameFields...)) || id == fallbackCountryID) {
			return id
		}
	}
	return fallbackCountryID
}
