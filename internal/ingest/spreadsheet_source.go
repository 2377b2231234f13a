// internal/ingest/spreadsheet_source.go
package ingest

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"absence-analytics/internal/models"

	"github.com/xuri/excelize/v2"
)

// SpreadsheetSource источник строк из листа книги xlsx.
// Значения читаются без форматирования, даты в колонках dateColumns
// переводятся из серийных номеров Excel в ISO.
type SpreadsheetSource struct {
	name        string
	open        func() (*excelize.File, error)
	sheet       string
	dateColumns map[string]bool
}

// NewSpreadsheetFile источник из файла xlsx; пустой sheet - первый лист
func NewSpreadsheetFile(path, sheet string, dateColumns ...string) *SpreadsheetSource {
	return newSpreadsheetSource(path, func() (*excelize.File, error) {
		return excelize.OpenFile(path)
	}, sheet, dateColumns)
}

// NewSpreadsheetReader источник поверх потока xlsx
func NewSpreadsheetReader(name string, r io.Reader, sheet string, dateColumns ...string) *SpreadsheetSource {
	return newSpreadsheetSource(name, func() (*excelize.File, error) {
		return excelize.OpenReader(r)
	}, sheet, dateColumns)
}

func newSpreadsheetSource(name string, open func() (*excelize.File, error), sheet string, dateColumns []string) *SpreadsheetSource {
	cols := make(map[string]bool, len(dateColumns))
	for _, c := range dateColumns {
		cols[c] = true
	}
	return &SpreadsheetSource{name: name, open: open, sheet: sheet, dateColumns: cols}
}

func (s *SpreadsheetSource) Name() string {
	if s.sheet == "" {
		return s.name
	}
	return s.name + "#" + s.sheet
}

func (s *SpreadsheetSource) Rows(ctx context.Context) (iter.Seq2[Row, error], error) {
	f, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.name, err)
	}

	sheet := s.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			f.Close()
			return nil, fmt.Errorf("workbook %s has no sheets", s.name)
		}
		sheet = sheets[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open sheet %s: %w", sheet, err)
	}

	if !rows.Next() {
		rows.Close()
		f.Close()
		return nil, fmt.Errorf("sheet %s has no header row", sheet)
	}
	header, err := rows.Columns(excelize.Options{RawCellValue: true})
	if err != nil {
		rows.Close()
		f.Close()
		return nil, fmt.Errorf("read header of %s: %w", sheet, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	return func(yield func(Row, error) bool) {
		defer f.Close()
		defer rows.Close()

		for rows.Next() {
			cells, err := rows.Columns(excelize.Options{RawCellValue: true})
			if err != nil {
				if !yield(nil, &MalformedRowError{Err: err}) {
					return
				}
				continue
			}

			row := make(Row, len(header))
			for i, value := range cells {
				if i >= len(header) {
					break
				}
				row[header[i]] = s.cellValue(header[i], strings.TrimSpace(value))
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Error(); err != nil {
			yield(nil, err)
		}
	}, nil
}

func (s *SpreadsheetSource) cellValue(column, value string) string {
	if !s.dateColumns[column] || value == "" {
		return value
	}
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return value
	}
	return t.Format(models.DateLayout)
}
