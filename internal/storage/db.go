package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"partsbot/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS resolutions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL UNIQUE,
  vehicleJson TEXT NOT NULL,
  partJson TEXT NOT NULL,
  status TEXT NOT NULL,
  bestMatch TEXT,
  trailJson TEXT NOT NULL,
  durationMs INTEGER NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_resolutions_bestMatch ON resolutions(bestMatch);

CREATE TABLE IF NOT EXISTS candidates (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  resolutionId INTEGER NOT NULL,
  source TEXT NOT NULL,
  tier TEXT NOT NULL,
  oem TEXT NOT NULL,
  rawOem TEXT NOT NULL,
  confidence REAL NOT NULL,
  brand TEXT,
  description TEXT,
  provenanceJson TEXT NOT NULL,
  FOREIGN KEY(resolutionId) REFERENCES resolutions(id)
);
CREATE INDEX IF NOT EXISTS idx_candidates_oem ON candidates(oem);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  resolutionId INTEGER NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  abandonedJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(resolutionId) REFERENCES resolutions(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// InsertResolution stores a finished run with its candidates and per-source timings.
func (d *DB) InsertResolution(rec internal.ResolutionRecord, sources []internal.SourceResult) (int64, error) {
	vehicleJSON, _ := json.Marshal(rec.Vehicle)
	partJSON, _ := json.Marshal(rec.Part)
	trailJSON, _ := json.Marshal(rec.Result.DebugTrail)

	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.Exec(`
INSERT INTO resolutions (traceId, vehicleJson, partJson, status, bestMatch, trailJson, durationMs)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, rec.TraceID, string(vehicleJSON), string(partJSON), string(rec.Result.Status), rec.Result.BestMatch, string(trailJSON), rec.DurationMs)
	if err != nil {
		return 0, err
	}
	resolutionID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`
INSERT INTO candidates (resolutionId, source, tier, oem, rawOem, confidence, brand, description, provenanceJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	timings := map[string]int64{}
	counts := map[string]int{}
	abandoned := []string{}
	for _, sr := range sources {
		timings[sr.Source] = sr.DurationMs
		counts[sr.Source] = len(sr.Candidates)
		if !sr.Completed {
			abandoned = append(abandoned, sr.Source)
		}
		for _, c := range sr.Candidates {
			provenanceJSON, _ := json.Marshal(c.Provenance)
			if _, err := stmt.Exec(
				resolutionID, c.Source, string(sr.Tier), c.Oem, c.RawOem, c.Confidence,
				nullable(c.Brand), nullable(c.Description), string(provenanceJSON),
			); err != nil {
				return 0, err
			}
		}
	}

	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	abandonedJSON, _ := json.Marshal(abandoned)
	if _, err := tx.Exec(`INSERT INTO runs (resolutionId, timingsJson, countsJson, abandonedJson) VALUES (?, ?, ?, ?)`,
		resolutionID, string(timingsJSON), string(countsJSON), string(abandonedJSON)); err != nil {
		return 0, err
	}

	return resolutionID, tx.Commit()
}

// GetResolution returns nil when the trace id is unknown.
func (d *DB) GetResolution(traceID string) (*internal.ResolutionRecord, error) {
	row := d.conn.QueryRow(`
SELECT id, traceId, vehicleJson, partJson, status, bestMatch, trailJson, durationMs, createdAt
FROM resolutions WHERE traceId = ?
`, traceID)
	rec, err := scanResolution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := d.conn.Query(`
SELECT source, oem, rawOem, confidence, brand, description, provenanceJson
FROM candidates WHERE resolutionId = ? ORDER BY id ASC
`, rec.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c internal.OemCandidate
		var brand, description sql.NullString
		var provenanceJSON string
		if err := rows.Scan(&c.Source, &c.Oem, &c.RawOem, &c.Confidence, &brand, &description, &provenanceJSON); err != nil {
			return nil, err
		}
		c.Brand = brand.String
		c.Description = description.String
		_ = json.Unmarshal([]byte(provenanceJSON), &c.Provenance)
		rec.Result.CandidatesBySource[c.Source] = append(rec.Result.CandidatesBySource[c.Source], c)
	}
	return &rec, rows.Err()
}

// ListResolutions returns the newest runs first, without candidates.
func (d *DB) ListResolutions(limit int) ([]internal.ResolutionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
SELECT id, traceId, vehicleJson, partJson, status, bestMatch, trailJson, durationMs, createdAt
FROM resolutions ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ResolutionRecord
	for rows.Next() {
		rec, err := scanResolution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResolution(s scanner) (internal.ResolutionRecord, error) {
	var rec internal.ResolutionRecord
	var vehicleJSON, partJSON, status, trailJSON string
	var bestMatch sql.NullString
	if err := s.Scan(&rec.ID, &rec.TraceID, &vehicleJSON, &partJSON, &status, &bestMatch, &trailJSON, &rec.DurationMs, &rec.CreatedAt); err != nil {
		return rec, err
	}
	_ = json.Unmarshal([]byte(vehicleJSON), &rec.Vehicle)
	_ = json.Unmarshal([]byte(partJSON), &rec.Part)
	_ = json.Unmarshal([]byte(trailJSON), &rec.Result.DebugTrail)
	rec.Result.TraceID = rec.TraceID
	rec.Result.Status = internal.ResolutionStatus(status)
	if bestMatch.Valid {
		v := bestMatch.String
		rec.Result.BestMatch = &v
	}
	rec.Result.CandidatesBySource = map[string][]internal.OemCandidate{}
	return rec, nil
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// GetExportRows flattens the newest resolutions into one row per candidate; a
// resolution without candidates still yields one row.
func (d *DB) GetExportRows(limit int) ([]internal.ResolutionExportRow, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := d.conn.Query(`
SELECT
  r.traceId,
  r.createdAt,
  r.vehicleJson,
  r.partJson,
  r.status,
  r.bestMatch,
  c.source,
  c.tier,
  c.oem,
  c.rawOem,
  c.confidence,
  c.brand,
  c.description
FROM (SELECT * FROM resolutions ORDER BY id DESC LIMIT ?) r
LEFT JOIN candidates c ON c.resolutionId = r.id
ORDER BY
  r.id DESC,
  CASE WHEN c.oem = r.bestMatch THEN 0 ELSE 1 END,
  c.confidence DESC
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ResolutionExportRow
	for rows.Next() {
		var row internal.ResolutionExportRow
		var vehicleJSON, partJSON, status string
		if err := rows.Scan(
			&row.TraceID,
			&row.CreatedAt,
			&vehicleJSON,
			&partJSON,
			&status,
			&row.BestMatch,
			&row.Source,
			&row.Tier,
			&row.Oem,
			&row.RawOem,
			&row.Confidence,
			&row.Brand,
			&row.Description,
		); err != nil {
			return nil, err
		}
		var vehicle internal.VehicleDescriptor
		var part internal.PartQuery
		_ = json.Unmarshal([]byte(vehicleJSON), &vehicle)
		_ = json.Unmarshal([]byte(partJSON), &part)
		row.Vehicle = DescribeVehicle(vehicle)
		row.PartText = part.Text
		row.Status = internal.ResolutionStatus(status)
		out = append(out, row)
	}

	return out, rows.Err()
}

// DescribeVehicle renders a descriptor as "make model year (VIN ...)".
func DescribeVehicle(v internal.VehicleDescriptor) string {
	parts := []string{}
	for _, p := range []string{v.Make, v.Model} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	if v.Year > 0 {
		parts = append(parts, fmt.Sprint(v.Year))
	}
	if v.VIN != "" {
		parts = append(parts, "(VIN "+v.VIN+")")
	} else if v.RC1 != "" && v.RC2 != "" {
		parts = append(parts, "("+v.RC1+"/"+v.RC2+")")
	}
	return strings.Join(parts, " ")
}

func (d *DB) MustResolution(traceID string) (internal.ResolutionRecord, error) {
	rec, err := d.GetResolution(traceID)
	if err != nil {
		return internal.ResolutionRecord{}, err
	}
	if rec == nil {
		return internal.ResolutionRecord{}, fmt.Errorf("resolution not found: traceId=%s", traceID)
	}
	return *rec, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
