// Package xlsx implements ports.Archive as one Excel workbook per export,
// for handing retired data to people rather than programs.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/aretw0/witmorph/pkg/domain"
)

// ErrValueTooLong is returned when a value would not fit in one cell.
var ErrValueTooLong = errors.New("value too long for a spreadsheet cell")

const (
	recordsSheet = "Records"
	batchSheet   = "Batch"
)

// Archive writes <base>/<key>.xlsx workbooks.
// Read returns field values as text, the way spreadsheets hold them.
type Archive struct {
	BasePath string
}

// NewArchive creates an archive rooted at basePath.
// If basePath is empty, it defaults to ".witmorph/exports".
func NewArchive(basePath string) *Archive {
	if basePath == "" {
		basePath = filepath.Join(".witmorph", "exports")
	}
	return &Archive{BasePath: basePath}
}

// Write renders the batch into a workbook with a Records sheet (id, state,
// then one column per field) and a Batch sheet holding the export metadata.
// An existing workbook is kept. Values longer than a cell can hold fail the
// write instead of being cut.
func (a *Archive) Write(ctx context.Context, key string, batch domain.ExportBatch) (string, error) {
	dest, err := a.path(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrArchiveEntryExists, dest)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", recordsSheet); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}
	columns := columnsOf(batch)
	header := append([]any{"id", "state"}, toAny(columns)...)
	if err := setRow(f, recordsSheet, 1, header); err != nil {
		return "", err
	}
	for i, rec := range batch.Records {
		row := []any{rec.ID, rec.State}
		for _, c := range columns {
			v, ok := rec.Fields[c]
			if !ok {
				v = nil
			}
			row = append(row, v)
		}
		if err := setRow(f, recordsSheet, i+2, row); err != nil {
			return "", err
		}
	}

	if _, err := f.NewSheet(batchSheet); err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	meta := [][]any{
		{"plan_id", batch.PlanID},
		{"step", batch.Step},
		{"type", batch.Type},
		{"fields", strings.Join(batch.Fields, ",")},
		{"all_fields", strconv.FormatBool(batch.AllFields)},
		{"exported_at", batch.ExportedAt.UTC().Format(time.RFC3339Nano)},
	}
	for i, row := range meta {
		if err := setRow(f, batchSheet, i+1, row); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to ensure directory: %w", err)
	}
	if err := f.SaveAs(dest); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return dest, nil
}

// Read implements ports.ArchiveReader.
func (a *Archive) Read(ctx context.Context, key string) (domain.ExportBatch, error) {
	var batch domain.ExportBatch
	src, err := a.path(key)
	if err != nil {
		return batch, err
	}
	f, err := excelize.OpenFile(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return batch, domain.ErrArchiveEntryNotFound
		}
		return batch, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	meta, err := f.GetRows(batchSheet)
	if err != nil {
		return batch, fmt.Errorf("read batch sheet: %w", err)
	}
	for _, row := range meta {
		if len(row) < 2 {
			continue
		}
		switch row[0] {
		case "plan_id":
			batch.PlanID = row[1]
		case "step":
			batch.Step, _ = strconv.Atoi(row[1])
		case "type":
			batch.Type = row[1]
		case "fields":
			if row[1] != "" {
				batch.Fields = strings.Split(row[1], ",")
			}
		case "all_fields":
			batch.AllFields, _ = strconv.ParseBool(row[1])
		case "exported_at":
			batch.ExportedAt, _ = time.Parse(time.RFC3339Nano, row[1])
		}
	}

	rows, err := f.GetRows(recordsSheet)
	if err != nil {
		return batch, fmt.Errorf("read records sheet: %w", err)
	}
	if len(rows) == 0 {
		return batch, nil
	}
	header := rows[0]
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return batch, fmt.Errorf("invalid record id %q: %w", row[0], err)
		}
		rec := domain.Record{ID: id, Type: batch.Type, Fields: map[string]any{}}
		if len(row) > 1 {
			rec.State = row[1]
		}
		for c := 2; c < len(header) && c < len(row); c++ {
			if row[c] != "" {
				rec.Fields[header[c]] = row[c]
			}
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch, nil
}

// columnsOf lists the exported fields, or every field present when the
// batch exports all fields.
func columnsOf(batch domain.ExportBatch) []string {
	if !batch.AllFields && len(batch.Fields) > 0 {
		return batch.Fields
	}
	seen := map[string]bool{}
	var cols []string
	for _, r := range batch.Records {
		for k := range r.Fields {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	for col, v := range values {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		if n := utf8.RuneCountInString(s); n > excelize.TotalCellChars {
			name, _ := excelize.CoordinatesToCellName(col+1, row)
			return fmt.Errorf("%w: %s!%s holds %d characters, cells take at most %d",
				ErrValueTooLong, sheet, name, n, excelize.TotalCellChars)
		}
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func (a *Archive) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid archive key %q", key)
	}
	return filepath.Join(a.BasePath, clean+".xlsx"), nil
}
