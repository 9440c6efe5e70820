package pipeline

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"partsbot/internal"
)

// BatchRow is one request read from a batch workbook.
type BatchRow struct {
	RowNo   int
	Vehicle internal.VehicleDescriptor
	Part    internal.PartQuery
}

type batchColumns struct {
	make, model, year, vin, rc1, rc2, engine, part, position, side, number int
}

// ParseBatchXLSX reads requests from every sheet. The first row of a sheet is a
// header when it names a part column; otherwise columns default to
// make, model, year, part. Rows without part text are skipped.
func ParseBatchXLSX(content []byte) ([]BatchRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []BatchRow{}
	rowNo := 0
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		cols, isHeader := inferBatchColumns(rows[0])
		for i, row := range rows {
			if i == 0 && isHeader {
				continue
			}
			cells := normalizeCells(row)
			text := pickCell(cells, cols.part, -1)
			if text == "" {
				continue
			}

			rowNo++
			year, _ := strconv.Atoi(pickCell(cells, cols.year, -1))
			out = append(out, BatchRow{
				RowNo: rowNo,
				Vehicle: internal.VehicleDescriptor{
					Make:       pickCell(cells, cols.make, -1),
					Model:      pickCell(cells, cols.model, -1),
					Year:       year,
					VIN:        pickCell(cells, cols.vin, -1),
					RC1:        pickCell(cells, cols.rc1, -1),
					RC2:        pickCell(cells, cols.rc2, -1),
					EngineCode: pickCell(cells, cols.engine, -1),
				},
				Part: internal.PartQuery{
					Text:            text,
					Position:        internal.Position(strings.ToLower(pickCell(cells, cols.position, -1))),
					Side:            strings.ToLower(pickCell(cells, cols.side, -1)),
					SuspectedNumber: pickCell(cells, cols.number, -1),
				},
			})
		}
	}
	return out, nil
}

// RunBatch resolves rows one after another. Each row already fans out over all
// sources, so rows are not run concurrently. Stops early when ctx is done.
func RunBatch(ctx context.Context, svc *Service, rows []BatchRow, log zerolog.Logger) []BatchOutcome {
	out := make([]BatchOutcome, 0, len(rows))
	for _, row := range rows {
		if ctx.Err() != nil {
			log.Warn().Int("done", len(out)).Int("total", len(rows)).Msg("batch interrupted")
			break
		}
		res := svc.ResolveOem(ctx, row.Vehicle, row.Part, internal.ResolveOptions{})
		log.Info().Int("row", row.RowNo).Str("status", string(res.Status)).Str("best_match", derefString(res.BestMatch)).Msg("batch row resolved")
		out = append(out, BatchOutcome{RowNo: row.RowNo, Vehicle: row.Vehicle, Part: row.Part, Result: res})
	}
	return out
}

func inferBatchColumns(header []string) (batchColumns, bool) {
	norm := make([]string, 0, len(header))
	for _, h := range header {
		norm = append(norm, strings.ToLower(normalizeSpaces(h)))
	}
	cols := batchColumns{
		make:     findHeaderIndex(norm, []string{"make", "marke", "hersteller", "brand"}),
		model:    findHeaderIndex(norm, []string{"model"}),
		year:     findHeaderIndex(norm, []string{"year", "baujahr", "jahr"}),
		vin:      findHeaderIndex(norm, []string{"vin", "fahrgestell"}),
		rc1:      findHeaderIndex(norm, []string{"rc1", "hsn"}),
		rc2:      findHeaderIndex(norm, []string{"rc2", "tsn"}),
		engine:   findHeaderIndex(norm, []string{"engine", "motor"}),
		part:     findHeaderIndex(norm, []string{"part", "teil", "query"}),
		position: findHeaderIndex(norm, []string{"position"}),
		side:     findHeaderIndex(norm, []string{"side", "seite"}),
		number:   findHeaderIndex(norm, []string{"number", "nummer", "article"}),
	}
	if cols.part >= 0 {
		return cols, true
	}
	return batchColumns{make: 0, model: 1, year: 2, vin: -1, rc1: -1, rc2: -1, engine: -1, part: 3, position: -1, side: -1, number: -1}, false
}

func findHeaderIndex(headers []string, keys []string) int {
	for i, h := range headers {
		for _, key := range keys {
			if strings.Contains(h, key) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int, fallback int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	if fallback >= 0 && fallback < len(cells) {
		return strings.TrimSpace(cells[fallback])
	}
	return ""
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, normalizeSpaces(c))
	}
	return out
}

func normalizeSpaces(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
