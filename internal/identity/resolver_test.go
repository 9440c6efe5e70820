package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsbot/internal"
	"partsbot/internal/catalog"
)

type fakeCatalog struct {
	vin           []catalog.Record
	vinErr        error
	registration  []catalog.Record
	manufacturers []catalog.Record
	manuErr       error
	models        []catalog.Record
	engines       []catalog.Record

	vinCalls          int
	registrationCalls int
	manufacturerCalls int
	modelManuID       int
}

func (f *fakeCatalog) DecodeVIN(ctx context.Context, vin string, p internal.BaseParams) ([]catalog.Record, error) {
	f.vinCalls++
	return f.vin, f.vinErr
}

func (f *fakeCatalog) DecodeRegistrationCode(ctx context.Context, rc1, rc2 string, p internal.BaseParams) ([]catalog.Record, error) {
	f.registrationCalls++
	return f.registration, nil
}

func (f *fakeCatalog) Manufacturers(ctx context.Context, p internal.BaseParams) ([]catalog.Record, error) {
	f.manufacturerCalls++
	return f.manufacturers, f.manuErr
}

func (f *fakeCatalog) Models(ctx context.Context, p internal.BaseParams, manufacturerID int) ([]catalog.Record, error) {
	f.modelManuID = manufacturerID
	return f.models, nil
}

func (f *fakeCatalog) EngineVariants(ctx context.Context, p internal.BaseParams, manufacturerID, modelSeriesID int) ([]catalog.Record, error) {
	return f.engines, nil
}

var base = internal.BaseParams{LangID: 4, CountryID: 62, VehicleTypeID: 1}

func TestVINShortCircuitsRegistrationCodes(t *testing.T) {
	fc := &fakeCatalog{
		vin: []catalog.Record{{"vehicleId": 19942.0, "manuId": 121.0, "manufacturerName": "VW", "modelName": "Golf VII"}},
	}
	r := NewResolver(fc, zerolog.Nop())

	id := r.Resolve(context.Background(), internal.VehicleDescriptor{VIN: "WVWZZZAUZFW123456", RC1: "0603", RC2: "BFN"}, base)

	assert.Equal(t, internal.StrategyVIN, id.Strategy)
	assert.Equal(t, 19942, id.VehicleID)
	assert.Equal(t, 121, id.ManufacturerID)
	assert.Equal(t, 0, fc.registrationCalls)
	assert.Equal(t, 0, fc.manufacturerCalls)
}

func TestVINAcceptsAliasField(t *testing.T) {
	fc := &fakeCatalog{vin: []catalog.Record{{"name": "no id"}, {"typeId": "5511"}}}
	id := NewResolver(fc, zerolog.Nop()).Resolve(context.Background(), internal.VehicleDescriptor{VIN: "X"}, base)
	assert.Equal(t, 5511, id.VehicleID)
	assert.True(t, id.Resolved())
}

func TestVINFailureFallsThroughToRegistrationCodes(t *testing.T) {
	fc := &fakeCatalog{
		vinErr:       errors.New("timeout"),
		registration: []catalog.Record{{"carId": 777.0}},
	}
	id := NewResolver(fc, zerolog.Nop()).Resolve(context.Background(), internal.VehicleDescriptor{VIN: "X", RC1: "0603", RC2: "BFN"}, base)

	assert.Equal(t, internal.StrategyRegistration, id.Strategy)
	assert.Equal(t, 777, id.VehicleID)
	assert.Equal(t, 1, fc.vinCalls)
}

func TestRegistrationNeedsBothCodes(t *testing.T) {
	fc := &fakeCatalog{}
	NewResolver(fc, zerolog.Nop()).Resolve(context.Background(), internal.VehicleDescriptor{RC1: "0603"}, base)
	assert.Equal(t, 0, fc.registrationCalls)
}

func TestFuzzyWaterfall(t *testing.T) {
	fc := &fakeCatalog{
		manufacturers: []catalog.Record{
			{"manuId": 2.0, "manuName": "VOLKSWAGEN NUTZFAHRZEUGE"},
			{"manuId": 121.0, "manuName": "VW"},
		},
		models: []catalog.Record{
			{"modelId": 10.0, "modelName": "GOLF IV", "yearFrom": 1997.0, "yearTo": 2006.0},
			{"modelId": 11.0, "modelName": "GOLF VII", "yearOfConstrFrom": 201208.0, "yearOfConstrTo": 202012.0},
		},
		engines: []catalog.Record{
			{"vehicleId": 500.0, "engineCode": "CJZA", "typeName": "1.2 TSI", "yearFrom": 2012.0, "yearTo": 2018.0},
			{"vehicleId": 501.0, "engineCode": "CHPA", "typeName": "1.4 TSI", "yearFrom": 2012.0, "yearTo": 2018.0},
		},
	}
	id := NewResolver(fc, zerolog.Nop()).Resolve(context.Background(), internal.VehicleDescriptor{
		Make: "Volkswagen", Model: "Golf", Year: 2015, EngineCode: "CHPA",
	}, base)

	require.True(t, id.Resolved())
	assert.Equal(t, internal.StrategyFuzzy, id.Strategy)
	assert.Equal(t, 2, id.ManufacturerID)
	assert.Equal(t, 11, id.ModelSeriesID)
	assert.Equal(t, 501, id.VehicleID)
	assert.Equal(t, "1.4 TSI", id.VariantName)
}

func TestFuzzyUsesStaticManufacturerFallback(t *testing.T) {
	fc := &fakeCatalog{manuErr: errors.New("down")}
	id := NewResolver(fc, zerolog.Nop()).Resolve(context.Background(), internal.VehicleDescriptor{Make: "Mercedes Benz"}, base)

	assert.False(t, id.Resolved())
	assert.Equal(t, internal.StrategyNone, id.Strategy)
	assert.Equal(t, 2026, id.ManufacturerID)
	assert.Equal(t, 2026, fc.modelManuID)
}

func TestUnresolvedWithoutAnyData(t *testing.T) {
	fc := &fakeCatalog{}
	id := NewResolver(fc, zerolog.Nop()).Resolve(context.Background(), internal.VehicleDescriptor{}, base)
	assert.False(t, id.Resolved())
	assert.Equal(t, base, id.BaseParams)
	assert.Equal(t, 0, fc.manufacturerCalls)
}
