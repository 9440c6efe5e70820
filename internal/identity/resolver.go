// Package identity maps a loose vehicle description onto catalog identifiers.
package identity

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"partsbot/internal"
	"partsbot/internal/catalog"
)

// Catalog is the part of the catalog client the waterfall depends on.
type Catalog interface {
	DecodeVIN(ctx context.Context, vin string, p internal.BaseParams) ([]catalog.Record, error)
	DecodeRegistrationCode(ctx context.Context, rc1, rc2 string, p internal.BaseParams) ([]catalog.Record, error)
	Manufacturers(ctx context.Context, p internal.BaseParams) ([]catalog.Record, error)
	Models(ctx context.Context, p internal.BaseParams, manufacturerID int) ([]catalog.Record, error)
	EngineVariants(ctx context.Context, p internal.BaseParams, manufacturerID, modelSeriesID int) ([]catalog.Record, error)
}

// manufacturerFallback covers the common makes when the manufacturer list is
// unavailable or has no usable match.
var manufacturerFallback = map[string]int{
	"bmw":           63,
	"vw":            2068,
	"volkswagen":    2068,
	"audi":          2031,
	"mercedes":      2026,
	"mercedesbenz":  2026,
	"mercedes-benz": 2026,
	"opel":          2153,
}

type Resolver struct {
	catalog Catalog
	log     zerolog.Logger
}

func NewResolver(c Catalog, log zerolog.Logger) *Resolver {
	return &Resolver{catalog: c, log: log.With().Str("component", "identity").Logger()}
}

// Resolve runs the strategies in priority order and stops at the first one that
// yields a vehicle id. Strategy errors count as "no result". The returned identity
// may carry manufacturer and model data without a vehicle id; Strategy is
// StrategyNone in that case.
func (r *Resolver) Resolve(ctx context.Context, d internal.VehicleDescriptor, p internal.BaseParams) internal.VehicleIdentity {
	if vin := strings.TrimSpace(d.VIN); vin != "" {
		records, err := r.catalog.DecodeVIN(ctx, vin, p)
		if err != nil {
			r.log.Warn().Err(err).Str("strategy", string(internal.StrategyVIN)).Msg("vin decode failed")
		} else if id, ok := fromDecodedVehicles(records, p, internal.StrategyVIN); ok {
			return id
		}
	}

	if rc1, rc2 := strings.TrimSpace(d.RC1), strings.TrimSpace(d.RC2); rc1 != "" && rc2 != "" {
		records, err := r.catalog.DecodeRegistrationCode(ctx, rc1, rc2, p)
		if err != nil {
			r.log.Warn().Err(err).Str("strategy", string(internal.StrategyRegistration)).Msg("registration code decode failed")
		} else if id, ok := fromDecodedVehicles(records, p, internal.StrategyRegistration); ok {
			return id
		}
	}

	return r.fuzzy(ctx, d, p)
}

// fromDecodedVehicles takes the first decoded vehicle carrying a usable id.
func fromDecodedVehicles(records []catalog.Record, p internal.BaseParams, strategy internal.IdentityStrategy) (internal.VehicleIdentity, bool) {
	for _, v := range records {
		vehicleID := v.Int(catalog.VehicleIDFields...)
		if vehicleID == 0 {
			continue
		}
		return internal.VehicleIdentity{
			BaseParams:       p,
			Strategy:         strategy,
			ManufacturerID:   v.ManufacturerID(),
			ManufacturerName: v.String(catalog.VehicleManufacturerNames...),
			ModelSeriesID:    v.Int(catalog.VehicleModelIDs...),
			ModelName:        v.String(catalog.VehicleModelNames...),
			VehicleID:        vehicleID,
			VariantName:      v.String(catalog.VehicleVariantNames...),
		}, true
	}
	return internal.VehicleIdentity{}, false
}

func (r *Resolver) fuzzy(ctx context.Context, d internal.VehicleDescriptor, p internal.BaseParams) internal.VehicleIdentity {
	out := internal.VehicleIdentity{BaseParams: p, Strategy: internal.StrategyNone}
	if strings.TrimSpace(d.Make) == "" {
		return out
	}

	manufacturers, err := r.catalog.Manufacturers(ctx, p)
	if err != nil {
		r.log.Warn().Err(err).Msg("manufacturer list failed, using static ids")
	}
	if i := BestMatch(manufacturers, d.Make, 0, catalog.ManufacturerNameFields); i >= 0 {
		out.ManufacturerID = manufacturers[i].Int(catalog.ManufacturerIDFields...)
		out.ManufacturerName = manufacturers[i].String(catalog.ManufacturerNameFields...)
	}
	if out.ManufacturerID == 0 {
		key := strings.ToLower(strings.Join(strings.Fields(d.Make), ""))
		out.ManufacturerID = manufacturerFallback[key]
		if out.ManufacturerID != 0 {
			out.ManufacturerName = d.Make
		}
	}
	if out.ManufacturerID == 0 {
		return out
	}

	models, err := r.catalog.Models(ctx, p, out.ManufacturerID)
	if err != nil {
		r.log.Warn().Err(err).Int("manufacturer_id", out.ManufacturerID).Msg("model list failed")
		return out
	}
	mi := BestMatch(models, d.Model, d.Year, catalog.ModelNameFields)
	if mi < 0 {
		return out
	}
	out.ModelSeriesID = models[mi].Int(catalog.ModelIDFields...)
	out.ModelName = models[mi].String(catalog.ModelNameFields...)
	if out.ModelSeriesID == 0 {
		return out
	}

	engines, err := r.catalog.EngineVariants(ctx, p, out.ManufacturerID, out.ModelSeriesID)
	if err != nil {
		r.log.Warn().Err(err).Int("model_series_id", out.ModelSeriesID).Msg("engine variant list failed")
		return out
	}
	ei := BestMatch(engines, d.EngineCode, d.Year, catalog.EngineNameFields)
	if ei < 0 {
		return out
	}
	out.VehicleID = engines[ei].Int(catalog.VehicleIDFields...)
	out.VariantName = engines[ei].String(catalog.VehicleVariantNames...)
	if out.VehicleID != 0 {
		out.Strategy = internal.StrategyFuzzy
	}
	return out
}
