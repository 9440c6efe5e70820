package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsbot/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "partsbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleRecord(traceID string) (internal.ResolutionRecord, []internal.SourceResult) {
	best := "5Q0615301H"
	vin := internal.OemCandidate{Oem: "5Q0615301H", RawOem: "5Q0 615 301 H", Source: "catalog_vin", Confidence: 0.95, Brand: "VW", Provenance: map[string]string{"articleId": "1"}}
	shop := internal.OemCandidate{Oem: "5Q0615301H", RawOem: "5Q0615301H", Source: "kfzteile24", Confidence: 0.85, Provenance: map[string]string{"url": "https://example.test"}}
	rec := internal.ResolutionRecord{
		TraceID: traceID,
		Vehicle: internal.VehicleDescriptor{Make: "VW", Model: "Golf", Year: 2015, VIN: "WVWZZZAUZFW123456"},
		Part:    internal.PartQuery{Text: "Bremsscheiben vorne", Position: internal.PositionFront},
		Result: internal.ResolutionResult{
			TraceID:    traceID,
			Status:     internal.StatusConfirmed,
			BestMatch:  &best,
			DebugTrail: []string{"identity: strategy=vin vehicleId=19942", "consensus: confirmed"},
		},
		DurationMs: 1234,
	}
	sources := []internal.SourceResult{
		{Source: "catalog_vin", Tier: internal.TierCatalog, Candidates: []internal.OemCandidate{vin}, Completed: true, DurationMs: 800},
		{Source: "kfzteile24", Tier: internal.TierOpen, Candidates: []internal.OemCandidate{shop}, Completed: true, DurationMs: 600},
		{Source: "oscaro", Tier: internal.TierOpen, Completed: false, DurationMs: 25000},
	}
	return rec, sources
}

func TestResolutionRoundTrip(t *testing.T) {
	db := openTestDB(t)
	rec, sources := sampleRecord("trace-1")

	id, err := db.InsertResolution(rec, sources)
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := db.GetResolution("trace-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, internal.StatusConfirmed, got.Result.Status)
	require.NotNil(t, got.Result.BestMatch)
	assert.Equal(t, "5Q0615301H", *got.Result.BestMatch)
	assert.Equal(t, rec.Vehicle, got.Vehicle)
	assert.Equal(t, rec.Part, got.Part)
	assert.Equal(t, rec.Result.DebugTrail, got.Result.DebugTrail)
	assert.Equal(t, int64(1234), got.DurationMs)
	require.Len(t, got.Result.CandidatesBySource["catalog_vin"], 1)
	assert.Equal(t, "VW", got.Result.CandidatesBySource["catalog_vin"][0].Brand)
	assert.Equal(t, "1", got.Result.CandidatesBySource["catalog_vin"][0].Provenance["articleId"])

	missing, err := db.GetResolution("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = db.MustResolution("nope")
	assert.Error(t, err)
}

func TestDuplicateTraceIDIsRejected(t *testing.T) {
	db := openTestDB(t)
	rec, sources := sampleRecord("trace-dup")
	_, err := db.InsertResolution(rec, sources)
	require.NoError(t, err)
	_, err = db.InsertResolution(rec, sources)
	assert.Error(t, err)
}

func TestListAndExportRows(t *testing.T) {
	db := openTestDB(t)
	for _, id := range []string{"a", "b"} {
		rec, sources := sampleRecord(id)
		_, err := db.InsertResolution(rec, sources)
		require.NoError(t, err)
	}
	empty := internal.ResolutionRecord{TraceID: "c", Result: internal.ResolutionResult{Status: internal.StatusNotFound}}
	_, err := db.InsertResolution(empty, nil)
	require.NoError(t, err)

	list, err := db.ListResolutions(2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].TraceID)
	assert.Nil(t, list[0].Result.BestMatch)

	rows, err := db.GetExportRows(0)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
	assert.Equal(t, "c", rows[0].TraceID)
	assert.Nil(t, rows[0].Oem)
	assert.Equal(t, "VW Golf 2015 (VIN WVWZZZAUZFW123456)", rows[1].Vehicle)
	require.NotNil(t, rows[1].Confidence)
	assert.InDelta(t, 0.95, *rows[1].Confidence, 1e-9)
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)
	v, err := db.GetMetadata("k")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, db.SetMetadata("k", "1"))
	require.NoError(t, db.SetMetadata("k", "2"))
	v, err = db.GetMetadata("k")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "2", *v)
}
