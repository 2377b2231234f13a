// internal/metrics/engine.go
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"absence-analytics/internal/models"

	"github.com/sirupsen/logrus"
)

// OverlapPolicy как считать дни, покрытые несколькими записями одного сотрудника
type OverlapPolicy string

const (
	// OverlapCountBoth каждая запись считается целиком
	OverlapCountBoth OverlapPolicy = "count-both"
	// OverlapMerge день сотрудника считается один раз, за самой ранней записью входа
	OverlapMerge OverlapPolicy = "merge"
)

func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	p := OverlapPolicy(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case OverlapCountBoth, OverlapMerge:
		return p, nil
	case "":
		return OverlapCountBoth, nil
	}
	return "", &models.ConfigurationError{Field: "overlap_policy", Reason: fmt.Sprintf("unsupported policy %q", s)}
}

// Engine считает метрики по отфильтрованному набору записей.
// Состояния между вызовами нет, методы можно вызывать параллельно.
type Engine struct {
	policy   OverlapPolicy
	calendar Calendar
	logger   *logrus.Logger
}

type Option func(*Engine)

func WithOverlapPolicy(p OverlapPolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

func WithCalendar(c Calendar) Option {
	return func(e *Engine) {
		e.calendar = c
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{policy: OverlapCountBoth}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := ParseOverlapPolicy(string(e.policy)); err != nil {
		return nil, err
	}
	if e.calendar == nil {
		e.calendar = WeekendCalendar{}
	}
	if e.logger == nil {
		e.logger = logrus.New()
		e.logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	return e, nil
}

func (e *Engine) Policy() OverlapPolicy {
	return e.policy
}

func (e *Engine) Calendar() Calendar {
	return e.calendar
}

// Aggregate группирует чистые записи. Дни записи раскладываются по корзинам
// поденно, поэтому сумма по корзинам всегда равна длине записи.
// Группы без записей не выводятся, кроме ключей из Grouping.Universe.
func (e *Engine) Aggregate(records []models.AbsenceRecord, g models.Grouping) (models.AggregationResult, error) {
	if err := g.Validate(); err != nil {
		return models.AggregationResult{}, err
	}

	clean := cleanOnly(records)
	days := e.effectiveDays(clean)

	bundles := make(map[string]*models.MetricBundle)
	bundle := func(key string) *models.MetricBundle {
		b, ok := bundles[key]
		if !ok {
			nb := models.NewMetricBundle()
			b = &nb
			bundles[key] = b
		}
		return b
	}

	for i, rec := range clean {
		// запись считается один раз в каждой группе, которой касается ее период
		touched := make(map[string]struct{})
		for day := rec.StartDate; !day.After(rec.EndDate); day = day.AddDate(0, 0, 1) {
			touched[groupKey(rec, day, g)] = struct{}{}
		}
		for key := range touched {
			bundle(key).RecordCount++
		}

		for _, day := range days[i] {
			b := bundle(groupKey(rec, day, g))
			b.AbsenceDays++
			b.ByReason[rec.Reason]++
			if e.calendar.IsWorkingDay(day) {
				b.WorkingDays++
			}
		}
	}

	for _, key := range g.Universe {
		bundle(key)
	}

	keys := make([]string, 0, len(bundles))
	for k := range bundles {
		keys = append(keys, k)
	}
	sortKeys(keys, g.Dimension)

	result := models.AggregationResult{Grouping: g, Groups: make([]models.GroupMetrics, 0, len(keys))}
	if g.Universe != nil {
		result.Grouping.Universe = append([]string(nil), g.Universe...)
	}
	for _, k := range keys {
		result.Groups = append(result.Groups, models.GroupMetrics{Key: k, MetricBundle: *bundles[k]})
	}

	e.logger.WithFields(logrus.Fields{
		"dimension": g.Dimension,
		"bucket":    g.Bucket,
		"records":   len(clean),
		"groups":    len(result.Groups),
	}).Debug("Aggregation computed")

	return result, nil
}

// effectiveDays дни, которые каждая запись вносит в сумму с учетом политики
func (e *Engine) effectiveDays(records []models.AbsenceRecord) [][]time.Time {
	out := make([][]time.Time, len(records))
	covered := make(map[string]map[time.Time]struct{})
	for i, rec := range records {
		var days []time.Time
		for day := rec.StartDate; !day.After(rec.EndDate); day = day.AddDate(0, 0, 1) {
			if e.policy == OverlapMerge {
				seen, ok := covered[rec.EmployeeID]
				if !ok {
					seen = make(map[time.Time]struct{})
					covered[rec.EmployeeID] = seen
				}
				if _, dup := seen[day]; dup {
					continue
				}
				seen[day] = struct{}{}
			}
			days = append(days, day)
		}
		out[i] = days
	}
	return out
}

// Apportion раскладывает дни записи по корзинам: ключ корзины -> дни
func Apportion(rec models.AbsenceRecord, bucket models.Bucket) (map[string]int, error) {
	if !bucket.Valid() {
		return nil, &models.ConfigurationError{Field: "bucket", Reason: fmt.Sprintf("unsupported bucket %q", bucket)}
	}
	out := make(map[string]int)
	for day := rec.StartDate; !day.After(rec.EndDate); day = day.AddDate(0, 0, 1) {
		out[BucketKey(day, bucket)]++
	}
	return out, nil
}

// BucketKey ключ корзины дня: 2024-01-05, 2024-W01 или 2024-01
func BucketKey(day time.Time, bucket models.Bucket) string {
	switch bucket {
	case models.BucketDay:
		return day.Format(models.DateLayout)
	case models.BucketWeek:
		year, week := day.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return day.Format("2006-01")
	}
}

func groupKey(rec models.AbsenceRecord, day time.Time, g models.Grouping) string {
	switch g.Dimension {
	case models.DimensionEmployee:
		return rec.EmployeeID
	case models.DimensionDepartment:
		return rec.DepartmentID
	case models.DimensionReason:
		return string(rec.Reason)
	case models.DimensionWeekday:
		return day.Weekday().String()
	default:
		return BucketKey(day, g.Bucket)
	}
}

var weekdayOrder = map[string]int{
	time.Monday.String():    0,
	time.Tuesday.String():   1,
	time.Wednesday.String(): 2,
	time.Thursday.String():  3,
	time.Friday.String():    4,
	time.Saturday.String():  5,
	time.Sunday.String():    6,
}

// sortKeys порядок групп: дни недели с понедельника, причины в порядке
// перечисления, остальное лексикографически (ключи периодов сортируются как строки)
func sortKeys(keys []string, dim models.Dimension) {
	rank := func(k string) int {
		switch dim {
		case models.DimensionWeekday:
			if r, ok := weekdayOrder[k]; ok {
				return r
			}
			return len(weekdayOrder)
		case models.DimensionReason:
			if r := models.Reason(k).Index(); r >= 0 {
				return r
			}
			return len(models.Reasons())
		}
		return 0
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := rank(keys[i]), rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
}

func cleanOnly(records []models.AbsenceRecord) []models.AbsenceRecord {
	out := make([]models.AbsenceRecord, 0, len(records))
	for _, rec := range records {
		if rec.IsClean() {
			out = append(out, rec)
		}
	}
	return out
}
