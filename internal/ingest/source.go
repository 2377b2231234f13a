// internal/ingest/source.go
package ingest

import (
	"context"
	"iter"
)

// Row одна строка источника: имя колонки -> значение
type Row map[string]string

// RowSource табличный источник строк.
// Rows возвращает ошибку, если источник нельзя открыть; ошибки чтения
// в процессе обхода приходят вторым значением последовательности.
type RowSource interface {
	Name() string
	Rows(ctx context.Context) (iter.Seq2[Row, error], error)
}

// MalformedRowError строку нельзя разобрать, но чтение источника можно продолжить
type MalformedRowError struct {
	Err error
}

func (e *MalformedRowError) Error() string {
	return "malformed row: " + e.Err.Error()
}

func (e *MalformedRowError) Unwrap() error {
	return e.Err
}

// SliceSource источник поверх готовых строк (выгрузки коллабораторов, тесты)
type SliceSource struct {
	name string
	rows []Row
}

func NewSliceSource(name string, rows []Row) *SliceSource {
	return &SliceSource{name: name, rows: rows}
}

func (s *SliceSource) Name() string {
	return s.name
}

func (s *SliceSource) Rows(ctx context.Context) (iter.Seq2[Row, error], error) {
	return func(yield func(Row, error) bool) {
		for _, row := range s.rows {
			if !yield(row, nil) {
				return
			}
		}
	}, nil
}
