// internal/metrics/statistics.go
package metrics

import (
	"math"
	"sort"
	"time"

	"absence-analytics/internal/models"

	"github.com/shopspring/decimal"
)

// SicknessTier оценка числа дней болезни сотрудника
type SicknessTier string

const (
	TierGood       SicknessTier = "good"
	TierModerate   SicknessTier = "moderate"
	TierConcerning SicknessTier = "concerning"
	TierCritical   SicknessTier = "critical"
)

// RateSickness оценка по числу дней
func RateSickness(days int) SicknessTier {
	switch {
	case days <= 10:
		return TierGood
	case days <= 20:
		return TierModerate
	case days <= 30:
		return TierConcerning
	default:
		return TierCritical
	}
}

type SicknessRating struct {
	EmployeeID   string       `json:"employee_id"`
	EmployeeName string       `json:"employee_name,omitempty"`
	DepartmentID string       `json:"department_id"`
	Days         int          `json:"days"`
	Tier         SicknessTier `json:"tier"`
}

// SicknessOverview дни болезни по сотрудникам, по возрастанию ID
func (e *Engine) SicknessOverview(records []models.AbsenceRecord) ([]SicknessRating, error) {
	sick := make([]models.AbsenceRecord, 0, len(records))
	for _, rec := range records {
		if rec.IsClean() && rec.Reason == models.ReasonSickness {
			sick = append(sick, rec)
		}
	}

	agg, err := e.Aggregate(sick, models.Grouping{Dimension: models.DimensionEmployee})
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	departments := make(map[string]string)
	for _, rec := range sick {
		if names[rec.EmployeeID] == "" && rec.EmployeeName != "" {
			names[rec.EmployeeID] = rec.EmployeeName
		}
		if _, ok := departments[rec.EmployeeID]; !ok {
			departments[rec.EmployeeID] = rec.DepartmentID
		}
	}

	out := make([]SicknessRating, 0, len(agg.Groups))
	for _, g := range agg.Groups {
		out = append(out, SicknessRating{
			EmployeeID:   g.Key,
			EmployeeName: names[g.Key],
			DepartmentID: departments[g.Key],
			Days:         g.AbsenceDays,
			Tier:         RateSickness(g.AbsenceDays),
		})
	}
	return out, nil
}

// MonthDailyStats статистика числа отсутствий в день за месяц
type MonthDailyStats struct {
	Month           string          `json:"month"`
	Mean            decimal.Decimal `json:"mean"`
	StdDev          decimal.Decimal `json:"std_dev"`
	Max             int             `json:"max"`
	Min             int             `json:"min"`
	DaysWithAbsence int             `json:"days_with_absence"`
	TotalDays       int             `json:"total_days"`
	// Quota доля дней с отсутствием, в процентах
	Quota decimal.Decimal `json:"quota"`
}

// DailyStatistics считает отсутствия по каждому дню от самой ранней до самой
// поздней даты набора (дни без отсутствий дают 0) и сводит их по месяцам.
func (e *Engine) DailyStatistics(records []models.AbsenceRecord) []MonthDailyStats {
	clean := cleanOnly(records)
	if len(clean) == 0 {
		return []MonthDailyStats{}
	}

	perDay := make(map[time.Time]int)
	first, last := clean[0].StartDate, clean[0].EndDate
	for i, days := range e.effectiveDays(clean) {
		rec := clean[i]
		if rec.StartDate.Before(first) {
			first = rec.StartDate
		}
		if rec.EndDate.After(last) {
			last = rec.EndDate
		}
		for _, day := range days {
			perDay[day]++
		}
	}

	byMonth := make(map[string][]int)
	var months []string
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01")
		if _, ok := byMonth[key]; !ok {
			months = append(months, key)
		}
		byMonth[key] = append(byMonth[key], perDay[day])
	}

	out := make([]MonthDailyStats, 0, len(months))
	for _, m := range months {
		out = append(out, monthStats(m, byMonth[m]))
	}
	return out
}

func monthStats(month string, counts []int) MonthDailyStats {
	s := MonthDailyStats{Month: month, TotalDays: len(counts), Min: counts[0], Max: counts[0]}
	sum := 0
	for _, c := range counts {
		sum += c
		if c > s.Max {
			s.Max = c
		}
		if c < s.Min {
			s.Min = c
		}
		if c > 0 {
			s.DaysWithAbsence++
		}
	}

	n := decimal.NewFromInt(int64(len(counts)))
	mean := decimal.NewFromInt(int64(sum)).Div(n)
	s.Mean = mean.Round(2)

	s.StdDev = decimal.Zero
	if len(counts) > 1 {
		// выборочное отклонение, делитель n-1
		sq := decimal.Zero
		for _, c := range counts {
			d := decimal.NewFromInt(int64(c)).Sub(mean)
			sq = sq.Add(d.Mul(d))
		}
		variance := sq.Div(n.Sub(decimal.NewFromInt(1)))
		f, _ := variance.Float64()
		s.StdDev = decimal.NewFromFloat(math.Sqrt(f)).Round(2)
	}

	s.Quota = decimal.NewFromInt(int64(s.DaysWithAbsence)).
		Mul(decimal.NewFromInt(100)).
		Div(n).
		Round(1)
	return s
}

// DurationBin число записей заданной длины
type DurationBin struct {
	Days  int `json:"days"`
	Count int `json:"count"`
}

type ReasonDuration struct {
	Reason models.Reason   `json:"reason"`
	Count  int             `json:"count"`
	Min    int             `json:"min"`
	Median decimal.Decimal `json:"median"`
	Max    int             `json:"max"`
}

type DurationDistribution struct {
	Histogram []DurationBin    `json:"histogram"`
	ByReason  []ReasonDuration `json:"by_reason"`
}

// Durations распределение длительностей чистых записей
func Durations(records []models.AbsenceRecord) DurationDistribution {
	hist := make(map[int]int)
	perReason := make(map[models.Reason][]int)
	for _, rec := range cleanOnly(records) {
		d := rec.Days()
		hist[d]++
		perReason[rec.Reason] = append(perReason[rec.Reason], d)
	}

	out := DurationDistribution{Histogram: []DurationBin{}, ByReason: []ReasonDuration{}}
	for d, c := range hist {
		out.Histogram = append(out.Histogram, DurationBin{Days: d, Count: c})
	}
	sort.Slice(out.Histogram, func(i, j int) bool {
		return out.Histogram[i].Days < out.Histogram[j].Days
	})

	for _, r := range models.Reasons() {
		spans := perReason[r]
		if len(spans) == 0 {
			continue
		}
		sort.Ints(spans)
		out.ByReason = append(out.ByReason, ReasonDuration{
			Reason: r,
			Count:  len(spans),
			Min:    spans[0],
			Median: median(spans),
			Max:    spans[len(spans)-1],
		})
	}
	return out
}

func median(sorted []int) decimal.Decimal {
	n := len(sorted)
	if n%2 == 1 {
		return decimal.NewFromInt(int64(sorted[n/2]))
	}
	return decimal.NewFromInt(int64(sorted[n/2-1] + sorted[n/2])).Div(decimal.NewFromInt(2))
}
