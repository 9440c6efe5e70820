package pipeline

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"partsbot/internal"
)

// ExportResolutionsToXLSX writes one row per stored candidate. Runs without
// candidates still get a row carrying status and best match.
func ExportResolutionsToXLSX(rows []internal.ResolutionExportRow, outputPath string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)

	headers := []string{
		"trace_id", "created_at", "vehicle", "part", "status", "best_match",
		"source", "tier", "oem", "raw_oem", "confidence", "brand", "description",
	}
	writeHeader(f, sheet, headers)

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.TraceID)
		set(2, row.CreatedAt)
		set(3, row.Vehicle)
		set(4, row.PartText)
		set(5, string(row.Status))
		set(6, derefString(row.BestMatch))
		set(7, derefString(row.Source))
		set(8, derefString(row.Tier))
		set(9, derefString(row.Oem))
		set(10, derefString(row.RawOem))
		set(11, derefFloat(row.Confidence))
		set(12, derefString(row.Brand))
		set(13, derefString(row.Description))
	}

	return save(f, outputPath)
}

// BatchOutcome pairs one input row with its resolution.
type BatchOutcome struct {
	RowNo   int
	Vehicle internal.VehicleDescriptor
	Part    internal.PartQuery
	Result  internal.ResolutionResult
}

// ExportBatchToXLSX writes a summary sheet with one line per input row.
func ExportBatchToXLSX(outcomes []BatchOutcome, outputPath string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)

	headers := []string{
		"row_no", "make", "model", "year", "vin", "part", "status", "best_match",
		"sources_with_candidates", "trace_id",
	}
	writeHeader(f, sheet, headers)

	for i, o := range outcomes {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, o.RowNo)
		set(2, o.Vehicle.Make)
		set(3, o.Vehicle.Model)
		if o.Vehicle.Year > 0 {
			set(4, o.Vehicle.Year)
		}
		set(5, o.Vehicle.VIN)
		set(6, o.Part.Text)
		set(7, string(o.Result.Status))
		set(8, derefString(o.Result.BestMatch))
		set(9, strings.Join(sourcesWithCandidates(o.Result), ", "))
		set(10, o.Result.TraceID)
	}

	return save(f, outputPath)
}

func sourcesWithCandidates(res internal.ResolutionResult) []string {
	out := []string{}
	for name, list := range res.CandidatesBySource {
		if len(list) > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func save(f *excelize.File, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
