package loader

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LoadXLSX reads every sheet of the workbook at path. The first row of each
// sheet is a header. Cell values have embedded TABs removed and are trimmed
// before being joined.
func LoadXLSX(path string, opts ...Option) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	return ReadXLSX(f, opts...)
}

// ReadXLSX is LoadXLSX over an arbitrary reader.
func ReadXLSX(r io.Reader, opts ...Option) ([]Record, error) {
	c := newConfig(opts)

	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("loader: open workbook: %w", err)
	}
	defer wb.Close()

	var records []Record

	sheets := wb.GetSheetList()
	c.logger.Info("reading workbook", "sheets", len(sheets))

	for _, sheet := range sheets {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("loader: read sheet %q: %w", sheet, err)
		}

		for i, row := range rows {
			if i == 0 || len(row) < 2 {
				continue
			}

			id, err := parseID(row[0])
			if err != nil {
				c.logger.Warn("skipping row with invalid id", "sheet", sheet, "row", i+1, "id", row[0], "error", err)
				continue
			}

			fields := make([]string, 0, len(row)-1)
			for _, cell := range row[1:] {
				fields = append(fields, strings.TrimSpace(strings.ReplaceAll(cell, "\t", "")))
			}

			records = c.collect(records, id, strings.Join(fields, Separator))
		}
	}

	c.logger.Info("documents loaded", "records", len(records))

	return records, nil
}
