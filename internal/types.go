package internal

import "partsbot/internal/util"

type ResolutionStatus string

const (
	StatusConfirmed    ResolutionStatus = "confirmed"
	StatusSingleSource ResolutionStatus = "single_source"
	StatusNotFound     ResolutionStatus = "not_found"
	StatusError        ResolutionStatus = "error"
)

type IdentityStrategy string

const (
	StrategyVIN          IdentityStrategy = "vin"
	StrategyRegistration IdentityStrategy = "registration"
	StrategyFuzzy        IdentityStrategy = "fuzzy"
	StrategyNone         IdentityStrategy = "none"
)

// Tier groups candidate sources by trust.
type Tier string

const (
	TierCatalog Tier = "catalog"
	TierOpen    Tier = "open"
)

type VehicleDescriptor struct {
	Make        string `json:"make,omitempty"`
	Model       string `json:"model,omitempty"`
	Year        int    `json:"year,omitempty"`
	VIN         string `json:"vin,omitempty"`
	RC1         string `json:"rc1,omitempty"`
	RC2         string `json:"rc2,omitempty"`
	EngineCode  string `json:"engineCode,omitempty"`
	EnginePower int    `json:"enginePowerKw,omitempty"`
}

// BaseParams scope every catalog call of a single resolution run.
type BaseParams struct {
	LangID        int `json:"langId"`
	CountryID     int `json:"countryId"`
	VehicleTypeID int `json:"vehicleTypeId"`
}

type VehicleIdentity struct {
	BaseParams
	Strategy         IdentityStrategy `json:"strategy"`
	ManufacturerID   int              `json:"manufacturerId,omitempty"`
	ManufacturerName string           `json:"manufacturerName,omitempty"`
	ModelSeriesID    int              `json:"modelSeriesId,omitempty"`
	ModelName        string           `json:"modelName,omitempty"`
	VehicleID        int              `json:"vehicleId,omitempty"`
	VariantName      string           `json:"variantName,omitempty"`
}

// Resolved reports whether a concrete catalog vehicle node was found.
func (v VehicleIdentity) Resolved() bool {
	return v.VehicleID != 0
}

type Position string

const (
	PositionFront Position = "front"
	PositionRear  Position = "rear"
)

type PartQuery struct {
	Text            string   `json:"text"`
	Position        Position `json:"position,omitempty"`
	Side            string   `json:"side,omitempty"`
	SuspectedNumber string   `json:"suspectedNumber,omitempty"`
}

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type CategoryMatch struct {
	Category
	Score float64 `json:"score"`
}

type OemCandidate struct {
	Oem         string            `json:"oem"`
	RawOem      string            `json:"rawOem"`
	Source      string            `json:"source"`
	Confidence  float64           `json:"confidence"`
	Brand       string            `json:"brand,omitempty"`
	Description string            `json:"description,omitempty"`
	Provenance  map[string]string `json:"provenance,omitempty"`
}

// NewCandidate is the only place a candidate's normalized OEM is derived.
// It reports false when the raw value normalizes to nothing.
func NewCandidate(rawOem, source string, confidence float64) (OemCandidate, bool) {
	norm := util.NormalizeOEM(rawOem)
	if norm == "" {
		return OemCandidate{}, false
	}
	return OemCandidate{
		Oem:        norm,
		RawOem:     rawOem,
		Source:     source,
		Confidence: ClampConfidence(confidence),
	}, true
}

func ClampConfidence(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SourceResult is what one collector produced during a run.
type SourceResult struct {
	Source     string         `json:"source"`
	Tier       Tier           `json:"tier"`
	Candidates []OemCandidate `json:"candidates"`
	Completed  bool           `json:"completed"`
	DurationMs int64          `json:"durationMs"`
}

type ResolutionResult struct {
	TraceID            string                    `json:"traceId,omitempty"`
	Status             ResolutionStatus          `json:"status"`
	BestMatch          *string                   `json:"bestMatch"`
	CandidatesBySource map[string][]OemCandidate `json:"candidatesBySource"`
	DebugTrail         []string                  `json:"debugTrail"`
}

type ResolveOptions struct {
	PreferredLanguage string `json:"preferredLanguage,omitempty"`
	CountryCode       string `json:"countryCode,omitempty"`
}

// ResolutionRecord is a stored resolution run.
type ResolutionRecord struct {
	ID         int               `json:"id"`
	TraceID    string            `json:"traceId"`
	Vehicle    VehicleDescriptor `json:"vehicle"`
	Part       PartQuery         `json:"part"`
	Result     ResolutionResult  `json:"result"`
	DurationMs int64             `json:"durationMs"`
	CreatedAt  string            `json:"createdAt"`
}

// ResolutionExportRow is one candidate of a stored resolution, flattened for export.
type ResolutionExportRow struct {
	TraceID     string
	CreatedAt   string
	Vehicle     string
	PartText    string
	Status      ResolutionStatus
	BestMatch   *string
	Source      *string
	Tier        *string
	Oem         *string
	RawOem      *string
	Confidence  *float64
	Brand       *string
	Description *string
}
