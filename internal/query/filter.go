// internal/query/filter.go
package query

import (
	"time"

	"absence-analytics/internal/models"
)

// Filter возвращает записи, подходящие под все критерии сразу.
// Несколько критериев объединяются через И: Filter(Filter(r, c1), c2)
// совпадает с Filter(r, c1, c2). Порядок входа сохраняется.
func Filter(records []models.AbsenceRecord, criteria ...models.FilterCriteria) ([]models.AbsenceRecord, error) {
	for _, c := range criteria {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}

	out := make([]models.AbsenceRecord, 0, len(records))
	for _, rec := range records {
		if matchesAll(rec, criteria) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func matchesAll(rec models.AbsenceRecord, criteria []models.FilterCriteria) bool {
	for _, c := range criteria {
		if !Matches(rec, c) {
			return false
		}
	}
	return true
}

// Matches проверяет одну запись. Внутри множества - ИЛИ, между полями - И.
// Диапазон дат сравнивается по пересечению.
func Matches(rec models.AbsenceRecord, c models.FilterCriteria) bool {
	if c.DepartmentIDs != nil && !containsString(c.DepartmentIDs, rec.DepartmentID) {
		return false
	}
	if c.EmployeeIDs != nil && !containsString(c.EmployeeIDs, rec.EmployeeID) {
		return false
	}
	if c.Reasons != nil && !containsReason(c.Reasons, rec.Reason) {
		return false
	}
	if c.DateRange != nil && !c.DateRange.Overlaps(rec.StartDate, rec.EndDate) {
		return false
	}
	return true
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsReason(set []models.Reason, v models.Reason) bool {
	for _, r := range set {
		if r == v {
			return true
		}
	}
	return false
}

// CurrentPeriod корзина, содержащая опорную дату.
// Опорную дату всегда передает вызывающий, часы здесь не читаются.
func CurrentPeriod(ref time.Time, bucket models.Bucket) (models.DateRange, error) {
	day := models.TruncateDate(ref)
	switch bucket {
	case models.BucketDay:
		return models.DateRange{Start: day, End: day}, nil
	case models.BucketWeek:
		// неделя ISO: понедельник..воскресенье
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return models.DateRange{Start: start, End: start.AddDate(0, 0, 6)}, nil
	case models.BucketMonth:
		start := models.Date(day.Year(), day.Month(), 1)
		return models.DateRange{Start: start, End: start.AddDate(0, 1, -1)}, nil
	}
	return models.DateRange{}, &models.ConfigurationError{Field: "bucket", Reason: "unsupported bucket " + string(bucket)}
}

// MonthRange диапазон с первого дня месяца from по последний день месяца to
func MonthRange(from, to time.Time) models.DateRange {
	start := models.Date(from.Year(), from.Month(), 1)
	end := models.Date(to.Year(), to.Month(), 1).AddDate(0, 1, -1)
	return models.DateRange{Start: start, End: end}
}
