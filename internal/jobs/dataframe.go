package jobs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mavedb/worker/internal/jobserr"
)

// scoreRow is one parsed row of a scores (or counts) file: the HGVS key
// plus its numeric columns, keyed by the column's declared name.
type scoreRow struct {
	HGVS   string
	Values map[string]float64
}

// validateColumnsMetadata checks that meta names exactly one "hgvs" column
// and at least one numeric column, the 10%-progress checkpoint of
// create_variants_for_score_set.
func validateColumnsMetadata(meta []ColumnMetadata) error {
	hgvsCount := 0
	numericCount := 0
	for _, m := range meta {
		switch m.Kind {
		case "hgvs":
			hgvsCount++
		case "score", "count":
			numericCount++
		case "auxiliary":
		default:
			return &jobserr.ValidationError{
				Classification: "unrecognized column kind",
				Detail:         m,
			}
		}
	}
	if hgvsCount != 1 {
		return &jobserr.ValidationError{
			Classification: "column metadata must name exactly one hgvs column",
			Detail:         map[string]int{"hgvs_columns": hgvsCount},
		}
	}
	if numericCount == 0 {
		return &jobserr.ValidationError{
			Classification: "column metadata must name at least one score or count column",
		}
	}
	return nil
}

// parseDataframe validates data's header against meta and parses every row,
// the 80%-progress checkpoint. A row whose numeric column fails to parse
// fails the whole job rather than being silently dropped — partial variant
// sets are not a valid terminal state for this job, unlike map_variants.
func parseDataframe(data []byte, meta []ColumnMetadata) ([]scoreRow, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, &jobserr.ValidationError{Classification: "failed to read file header", Err: err}
	}

	byName := make(map[string]ColumnMetadata, len(meta))
	for _, m := range meta {
		byName[m.Name] = m
	}

	var hgvsCol = -1
	numericCols := map[int]string{}
	for i, col := range header {
		m, ok := byName[col]
		if !ok {
			continue
		}
		switch m.Kind {
		case "hgvs":
			hgvsCol = i
		case "score", "count":
			numericCols[i] = col
		}
	}
	if hgvsCol == -1 {
		return nil, &jobserr.ValidationError{
			Classification: "declared hgvs column not present in file header",
			Detail:         map[string]any{"header": header},
		}
	}

	var rows []scoreRow
	lineNum := 1
	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &jobserr.ValidationError{
				Classification: fmt.Sprintf("failed to parse row %d", lineNum),
				Err:            err,
			}
		}
		lineNum++

		row := scoreRow{HGVS: record[hgvsCol], Values: make(map[string]float64, len(numericCols))}
		for i, name := range numericCols {
			if i >= len(record) || record[i] == "" {
				continue
			}
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, &jobserr.ValidationError{
					Classification: fmt.Sprintf("non-numeric value in column %q at row %d", name, lineNum),
					Err:            err,
				}
			}
			row.Values[name] = v
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, &jobserr.ValidationError{Classification: "file contains no data rows"}
	}
	return rows, nil
}
