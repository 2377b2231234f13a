// internal/ingest/csv_source.go
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
)

const utf8BOM = "\ufeff"

// CSVSource источник строк из текста с разделителями.
// Первая строка - заголовок. Разделитель 0 определяется по заголовку.
type CSVSource struct {
	name  string
	open  func() (io.ReadCloser, error)
	comma rune
}

// NewCSVFile источник из файла; каждый вызов Rows открывает файл заново
func NewCSVFile(path string, comma rune) *CSVSource {
	return &CSVSource{
		name:  path,
		open:  func() (io.ReadCloser, error) { return os.Open(path) },
		comma: comma,
	}
}

// NewCSVReader источник поверх уже открытого потока, читается один раз
func NewCSVReader(name string, r io.Reader, comma rune) *CSVSource {
	return &CSVSource{
		name:  name,
		open:  func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
		comma: comma,
	}
}

func (s *CSVSource) Name() string {
	return s.name
}

func (s *CSVSource) Rows(ctx context.Context) (iter.Seq2[Row, error], error) {
	rc, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.name, err)
	}

	br := bufio.NewReader(rc)
	comma := s.comma
	if comma == 0 {
		comma = sniffDelimiter(br)
	}

	reader := csv.NewReader(br)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		rc.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header of %s: empty input", s.name)
		}
		return nil, fmt.Errorf("read header of %s: %w", s.name, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], utf8BOM))
	}

	return func(yield func(Row, error) bool) {
		defer rc.Close()
		for {
			fields, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var parseErr *csv.ParseError
				if errors.As(err, &parseErr) {
					if !yield(nil, &MalformedRowError{Err: err}) {
						return
					}
					continue
				}
				yield(nil, err)
				return
			}

			row := make(Row, len(header))
			for i, value := range fields {
				if i >= len(header) {
					break
				}
				row[header[i]] = strings.TrimSpace(value)
			}
			if !yield(row, nil) {
				return
			}
		}
	}, nil
}

// sniffDelimiter выбирает разделитель по первой строке: ';', '\t' или ','
func sniffDelimiter(br *bufio.Reader) rune {
	peek, _ := br.Peek(4096)
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		peek = peek[:i]
	}
	best, bestCount := ',', bytes.Count(peek, []byte{','})
	for _, candidate := range []rune{';', '\t'} {
		if n := bytes.Count(peek, []byte(string(candidate))); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}
