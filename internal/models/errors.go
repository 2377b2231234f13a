package models

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable источник строк не удалось прочитать
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrConfiguration некорректные критерии, группировка или настройки движка
	ErrConfiguration = errors.New("configuration error")
)

// ConfigurationError описывает некорректный параметр запроса или настройки
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// Коды структурных ошибок приема
const (
	CodeMissingColumn   = "missing-column"
	CodeUnparseableDate = "unparseable-date"
	CodeMalformedRow    = "malformed-row"
)

// StructuralError строка источника не сопоставилась с моделью записи.
// Такие строки пропускаются и попадают в отчет приема.
type StructuralError struct {
	RowIndex int    `json:"row_index"`
	Code     string `json:"code"`
	Detail   string `json:"detail,omitempty"`
}

func (e StructuralError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("row %d: %s", e.RowIndex, e.Code)
	}
	return fmt.Sprintf("row %d: %s: %s", e.RowIndex, e.Code, e.Detail)
}
