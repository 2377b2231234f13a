package models

import (
	"fmt"
	"sort"
	"strings"
)

// Dimension ось группировки метрик
type Dimension string

const (
	DimensionEmployee   Dimension = "employee"
	DimensionDepartment Dimension = "department"
	DimensionPeriod     Dimension = "period"
	DimensionReason     Dimension = "reason"
	DimensionWeekday    Dimension = "weekday"
)

func ParseDimension(s string) (Dimension, error) {
	d := Dimension(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DimensionEmployee, DimensionDepartment, DimensionPeriod, DimensionReason, DimensionWeekday:
		return d, nil
	}
	return "", &ConfigurationError{Field: "dimension", Reason: fmt.Sprintf("unsupported dimension %q", s)}
}

// Bucket размер временной корзины
type Bucket string

const (
	BucketDay   Bucket = "day"
	BucketWeek  Bucket = "week"
	BucketMonth Bucket = "month"
)

func ParseBucket(s string) (Bucket, error) {
	b := Bucket(strings.ToLower(strings.TrimSpace(s)))
	if !b.Valid() {
		return "", &ConfigurationError{Field: "bucket", Reason: fmt.Sprintf("unsupported bucket %q", s)}
	}
	return b, nil
}

func (b Bucket) Valid() bool {
	switch b {
	case BucketDay, BucketWeek, BucketMonth:
		return true
	}
	return false
}

// Grouping параметры агрегации.
// Universe - полный набор ключей группы, для которых нужны нулевые строки.
type Grouping struct {
	Dimension Dimension `json:"dimension"`
	Bucket    Bucket    `json:"bucket,omitempty"`
	Universe  []string  `json:"universe,omitempty"`
}

func (g Grouping) Validate() error {
	switch g.Dimension {
	case DimensionEmployee, DimensionDepartment, DimensionReason, DimensionWeekday:
		return nil
	case DimensionPeriod:
		if !g.Bucket.Valid() {
			return &ConfigurationError{Field: "bucket", Reason: fmt.Sprintf("unsupported bucket %q", g.Bucket)}
		}
		return nil
	}
	return &ConfigurationError{Field: "dimension", Reason: fmt.Sprintf("unsupported dimension %q", g.Dimension)}
}

// MetricBundle метрики одной группы
type MetricBundle struct {
	AbsenceDays int            `json:"absence_days"`
	WorkingDays int            `json:"working_days"`
	RecordCount int            `json:"record_count"`
	ByReason    map[Reason]int `json:"by_reason"`
}

// NewMetricBundle пустой набор метрик с полным разбиением по причинам
func NewMetricBundle() MetricBundle {
	byReason := make(map[Reason]int, len(allReasons))
	for _, r := range allReasons {
		byReason[r] = 0
	}
	return MetricBundle{ByReason: byReason}
}

func (m MetricBundle) clone() MetricBundle {
	out := m
	out.ByReason = make(map[Reason]int, len(m.ByReason))
	for k, v := range m.ByReason {
		out.ByReason[k] = v
	}
	return out
}

type GroupMetrics struct {
	Key string `json:"key"`
	MetricBundle
}

// AggregationResult неизменяемый снимок результата агрегации.
// Группы упорядочены детерминированно.
type AggregationResult struct {
	Grouping Grouping       `json:"grouping"`
	Groups   []GroupMetrics `json:"groups"`
}

// Get возвращает метрики группы по ключу
func (a AggregationResult) Get(key string) (MetricBundle, bool) {
	for _, g := range a.Groups {
		if g.Key == key {
			return g.MetricBundle.clone(), true
		}
	}
	return MetricBundle{}, false
}

// Keys ключи групп в порядке результата
func (a AggregationResult) Keys() []string {
	keys := make([]string, len(a.Groups))
	for i, g := range a.Groups {
		keys[i] = g.Key
	}
	return keys
}

// Total сумма по всем группам
func (a AggregationResult) Total() MetricBundle {
	total := NewMetricBundle()
	for _, g := range a.Groups {
		total.AbsenceDays += g.AbsenceDays
		total.WorkingDays += g.WorkingDays
		total.RecordCount += g.RecordCount
		for r, d := range g.ByReason {
			total.ByReason[r] += d
		}
	}
	return total
}

// Clone глубокая копия, чтобы кэш не отдавал общие map
func (a AggregationResult) Clone() AggregationResult {
	out := AggregationResult{Grouping: a.Grouping}
	if a.Grouping.Universe != nil {
		out.Grouping.Universe = append([]string(nil), a.Grouping.Universe...)
	}
	out.Groups = make([]GroupMetrics, len(a.Groups))
	for i, g := range a.Groups {
		out.Groups[i] = GroupMetrics{Key: g.Key, MetricBundle: g.MetricBundle.clone()}
	}
	return out
}

// SortByDays копия групп, упорядоченная по убыванию дней (для топов)
func (a AggregationResult) SortByDays() []GroupMetrics {
	out := make([]GroupMetrics, len(a.Groups))
	copy(out, a.Groups)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AbsenceDays > out[j].AbsenceDays
	})
	return out
}
