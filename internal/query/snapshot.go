// internal/query/snapshot.go
package query

import (
	"iter"
	"sort"

	"absence-analytics/internal/models"
)

// Snapshot неизменяемый набор чистых записей.
// Запросы получают копии и никогда не меняют снимок.
type Snapshot struct {
	id      string
	records []models.AbsenceRecord
}

// NewSnapshot копирует чистые записи; отклоненные и сырые в снимок не попадают
func NewSnapshot(id string, records []models.AbsenceRecord) *Snapshot {
	clean := make([]models.AbsenceRecord, 0, len(records))
	for _, rec := range records {
		if rec.IsClean() {
			clean = append(clean, rec)
		}
	}
	return &Snapshot{id: id, records: clean}
}

// ID идентичность снимка для ключей кэша
func (s *Snapshot) ID() string {
	return s.id
}

func (s *Snapshot) Len() int {
	return len(s.records)
}

// Records копия всех записей снимка
func (s *Snapshot) Records() []models.AbsenceRecord {
	out := make([]models.AbsenceRecord, len(s.records))
	copy(out, s.records)
	return out
}

// All обход записей без копирования среза
func (s *Snapshot) All() iter.Seq[models.AbsenceRecord] {
	return func(yield func(models.AbsenceRecord) bool) {
		for _, rec := range s.records {
			if !yield(rec) {
				return
			}
		}
	}
}

// Query фильтрует снимок; пустые критерии возвращают все записи
func (s *Snapshot) Query(criteria ...models.FilterCriteria) ([]models.AbsenceRecord, error) {
	return Filter(s.records, criteria...)
}

// Departments отсортированные подразделения, встречающиеся в снимке
func (s *Snapshot) Departments() []string {
	return s.distinct(func(r models.AbsenceRecord) string { return r.DepartmentID })
}

// Employees отсортированные сотрудники, встречающиеся в снимке
func (s *Snapshot) Employees() []string {
	return s.distinct(func(r models.AbsenceRecord) string { return r.EmployeeID })
}

// Span самая ранняя и самая поздняя даты снимка
func (s *Snapshot) Span() (models.DateRange, bool) {
	if len(s.records) == 0 {
		return models.DateRange{}, false
	}
	span := models.DateRange{Start: s.records[0].StartDate, End: s.records[0].EndDate}
	for _, rec := range s.records[1:] {
		if rec.StartDate.Before(span.Start) {
			span.Start = rec.StartDate
		}
		if rec.EndDate.After(span.End) {
			span.End = rec.EndDate
		}
	}
	return span, true
}

func (s *Snapshot) distinct(key func(models.AbsenceRecord) string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, rec := range s.records {
		k := key(rec)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
