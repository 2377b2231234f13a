// internal/ingest/adapter.go
package ingest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	"absence-analytics/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// recordNamespace пространство имен для детерминированных ID записей
var recordNamespace = uuid.MustParse("6f1c2a8e-4d1b-5c7a-9e3f-2b8d0a6c4e51")

// ColumnMapping соответствие полей записи колонкам источника
type ColumnMapping struct {
	EmployeeID   string `json:"employee_id"`
	DepartmentID string `json:"department_id"`
	Reason       string `json:"reason"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	// Необязательные колонки
	EmployeeName string `json:"employee_name,omitempty"`
	Supersedes   string `json:"supersedes,omitempty"`
}

func DefaultColumnMapping() ColumnMapping {
	return ColumnMapping{
		EmployeeID:   "employee_id",
		DepartmentID: "department_id",
		Reason:       "reason",
		StartDate:    "start_date",
		EndDate:      "end_date",
		EmployeeName: "employee_name",
		Supersedes:   "supersedes",
	}
}

func (m ColumnMapping) Validate() error {
	required := map[string]string{
		"employee_id":   m.EmployeeID,
		"department_id": m.DepartmentID,
		"reason":        m.Reason,
		"start_date":    m.StartDate,
		"end_date":      m.EndDate,
	}
	for field, column := range required {
		if strings.TrimSpace(column) == "" {
			return &models.ConfigurationError{Field: "column_mapping." + field, Reason: "column name is required"}
		}
	}
	return nil
}

// Report отчет приема одной партии
type Report struct {
	Source       string                   `json:"source"`
	RowsSeen     int                      `json:"rows_seen"`
	RowsAccepted int                      `json:"rows_accepted"`
	RowsRejected []models.StructuralError `json:"rows_rejected"`
	// Stopped прием остановлен по запросу вызывающего
	Stopped bool `json:"stopped"`
	// Partial источник упал посреди чтения, партия принята частично
	Partial bool `json:"partial"`
}

// Batch результат приема: сырые записи и отчет
type Batch struct {
	Provenance models.Provenance
	Records    []models.AbsenceRecord
	Report     Report
}

type Adapter struct {
	mapping    ColumnMapping
	bestEffort bool
	logger     *logrus.Logger
}

type Option func(*Adapter)

// WithBestEffort принимать частичную партию, если источник упал посреди чтения
// или прием остановлен через ctx
func WithBestEffort() Option {
	return func(a *Adapter) {
		a.bestEffort = true
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

func NewAdapter(mapping ColumnMapping, opts ...Option) (*Adapter, error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}

	a := &Adapter{mapping: mapping}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logrus.New()
		a.logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	return a, nil
}

// Mapping колонки, по которым адаптер читает строки
func (a *Adapter) Mapping() ColumnMapping {
	return a.mapping
}

// Stream ленивая последовательность сырых записей одного прохода по источнику
type Stream struct {
	adapter    *Adapter
	ctx        context.Context
	rows       iter.Seq2[Row, error]
	provenance models.Provenance

	once   sync.Once
	report Report
	err    error
}

// Stream открывает источник. Ошибка открытия - ErrSourceUnavailable.
func (a *Adapter) Stream(ctx context.Context, src RowSource, prov models.Provenance) (*Stream, error) {
	if prov.Source == "" {
		prov.Source = src.Name()
	}
	rows, err := src.Rows(ctx)
	if err != nil {
		a.logger.WithError(err).WithField("source", src.Name()).Error("Source unavailable")
		return nil, fmt.Errorf("%w: %s: %v", models.ErrSourceUnavailable, src.Name(), err)
	}
	return &Stream{
		adapter:    a,
		ctx:        ctx,
		rows:       rows,
		provenance: prov,
		report:     Report{Source: prov.Source, RowsRejected: []models.StructuralError{}},
	}, nil
}

// Records обходит источник один раз; повторный вызов ничего не отдает.
// Отмена ctx проверяется между строками.
func (s *Stream) Records() iter.Seq[models.AbsenceRecord] {
	return func(yield func(models.AbsenceRecord) bool) {
		first := false
		s.once.Do(func() { first = true })
		if !first {
			return
		}

		rowIndex := -1
		for row, err := range s.rows {
			if s.ctx.Err() != nil {
				s.report.Stopped = true
				return
			}
			rowIndex++
			s.report.RowsSeen++

			if err != nil {
				var malformed *MalformedRowError
				if errors.As(err, &malformed) {
					s.reject(models.StructuralError{RowIndex: rowIndex, Code: models.CodeMalformedRow, Detail: malformed.Err.Error()})
					continue
				}
				s.report.RowsSeen--
				s.err = fmt.Errorf("%w: %s: %v", models.ErrSourceUnavailable, s.provenance.Source, err)
				s.adapter.logger.WithError(err).WithField("source", s.provenance.Source).Error("Source failed mid-read")
				return
			}

			record, serr := s.adapter.mapRow(row, rowIndex, s.provenance)
			if serr != nil {
				s.reject(*serr)
				continue
			}

			s.report.RowsAccepted++
			if !yield(record) {
				s.report.Stopped = true
				return
			}
		}
	}
}

func (s *Stream) reject(serr models.StructuralError) {
	s.report.RowsRejected = append(s.report.RowsRejected, serr)
	s.adapter.logger.WithFields(logrus.Fields{
		"source": s.provenance.Source,
		"row":    serr.RowIndex,
		"code":   serr.Code,
	}).Warn("Row skipped")
}

// Report отчет, актуальный после обхода Records
func (s *Stream) Report() Report {
	out := s.report
	out.RowsRejected = append([]models.StructuralError(nil), s.report.RowsRejected...)
	return out
}

// Close освобождает источник, если Records не обходили.
// После Close обход Records ничего не отдает.
func (s *Stream) Close() {
	s.once.Do(func() {
		// источники закрываются, когда их последовательность завершается
		for range s.rows {
			break
		}
	})
}

// Err ошибка чтения источника посреди обхода
func (s *Stream) Err() error {
	return s.err
}

// Ingest читает источник целиком в партию.
// Сбой чтения или остановка по ctx посреди источника отбрасывают партию,
// если не включен best-effort; тогда прочитанное принимается с Partial = true.
func (a *Adapter) Ingest(ctx context.Context, src RowSource, prov models.Provenance) (*Batch, error) {
	stream, err := a.Stream(ctx, src, prov)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var records []models.AbsenceRecord
	for record := range stream.Records() {
		records = append(records, record)
	}

	report := stream.Report()
	if stream.Err() != nil {
		if !a.bestEffort {
			return nil, stream.Err()
		}
		report.Partial = true
		a.logger.WithField("accepted", report.RowsAccepted).Warn("Partial batch accepted")
	}
	if report.Stopped {
		if !a.bestEffort {
			a.logger.WithField("source", report.Source).Warn("Ingestion stopped, batch discarded")
			return nil, fmt.Errorf("ingestion of %s stopped after %d rows: %w", report.Source, report.RowsSeen, ctx.Err())
		}
		report.Partial = true
		a.logger.WithField("accepted", report.RowsAccepted).Warn("Stopped batch accepted as partial")
	}

	a.logger.WithFields(logrus.Fields{
		"source":   report.Source,
		"seen":     report.RowsSeen,
		"accepted": report.RowsAccepted,
		"rejected": len(report.RowsRejected),
		"stopped":  report.Stopped,
	}).Info("Ingestion finished")

	return &Batch{
		Provenance: stream.provenance,
		Records:    records,
		Report:     report,
	}, nil
}

// mapRow переводит нетипизированную строку в сырую запись
func (a *Adapter) mapRow(row Row, rowIndex int, prov models.Provenance) (models.AbsenceRecord, *models.StructuralError) {
	get := func(column string) (string, bool) {
		v, ok := row[column]
		return v, ok
	}

	required := []string{a.mapping.EmployeeID, a.mapping.DepartmentID, a.mapping.Reason, a.mapping.StartDate, a.mapping.EndDate}
	for _, column := range required {
		if _, ok := get(column); !ok {
			return models.AbsenceRecord{}, &models.StructuralError{RowIndex: rowIndex, Code: models.CodeMissingColumn, Detail: column}
		}
	}

	rawStart, _ := get(a.mapping.StartDate)
	start, err := models.ParseDate(rawStart)
	if err != nil {
		return models.AbsenceRecord{}, &models.StructuralError{RowIndex: rowIndex, Code: models.CodeUnparseableDate, Detail: err.Error()}
	}
	rawEnd, _ := get(a.mapping.EndDate)
	end, err := models.ParseDate(rawEnd)
	if err != nil {
		return models.AbsenceRecord{}, &models.StructuralError{RowIndex: rowIndex, Code: models.CodeUnparseableDate, Detail: err.Error()}
	}

	employeeID, _ := get(a.mapping.EmployeeID)
	departmentID, _ := get(a.mapping.DepartmentID)
	rawReason, _ := get(a.mapping.Reason)

	record := models.AbsenceRecord{
		ID:           RecordID(prov, rowIndex),
		EmployeeID:   employeeID,
		DepartmentID: departmentID,
		RawReason:    rawReason,
		StartDate:    start,
		EndDate:      end,
		Provenance:   prov,
		RowIndex:     rowIndex,
		Status:       models.StatusRaw,
	}
	if a.mapping.EmployeeName != "" {
		record.EmployeeName, _ = get(a.mapping.EmployeeName)
	}
	if a.mapping.Supersedes != "" {
		record.Supersedes, _ = get(a.mapping.Supersedes)
	}
	return record, nil
}

// RecordID детерминированный ID: одна и та же строка партии всегда получает один ID
func RecordID(prov models.Provenance, rowIndex int) string {
	name := fmt.Sprintf("%s|%s|%d", prov.BatchID, prov.Source, rowIndex)
	return uuid.NewSHA1(recordNamespace, []byte(name)).String()
}
