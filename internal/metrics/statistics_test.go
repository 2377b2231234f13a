package metrics

import (
	"testing"

	"absence-analytics/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestRateSickness(t *testing.T) {
	cases := []struct {
		days int
		want SicknessTier
	}{
		{0, TierGood},
		{10, TierGood},
		{11, TierModerate},
		{20, TierModerate},
		{21, TierConcerning},
		{30, TierConcerning},
		{31, TierCritical},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, RateSickness(c.days), "days=%d", c.days)
	}
}

func TestSicknessOverview(t *testing.T) {
	e := newTestEngine(t)
	anna := rec("1", "E2", "D1", models.ReasonSickness, "2024-01-01", "2024-01-12")
	anna.EmployeeName = "Anna"
	records := []models.AbsenceRecord{
		anna,
		rec("2", "E1", "D2", models.ReasonSickness, "2024-02-01", "2024-02-03"),
		rec("3", "E1", "D2", models.ReasonVacation, "2024-03-01", "2024-03-30"),
		rec("4", "E3", "D2", models.ReasonSickness, "2024-04-01", "2024-05-10"),
	}

	overview, err := e.SicknessOverview(records)
	require.NoError(t, err)
	require.Len(t, overview, 3)

	assert.Equal(t, SicknessRating{EmployeeID: "E1", DepartmentID: "D2", Days: 3, Tier: TierGood}, overview[0])
	assert.Equal(t, "Anna", overview[1].EmployeeName)
	assert.Equal(t, TierModerate, overview[1].Tier)
	assert.Equal(t, 40, overview[2].Days)
	assert.Equal(t, TierCritical, overview[2].Tier)
}

func TestDailyStatistics(t *testing.T) {
	e := newTestEngine(t)
	records := []models.AbsenceRecord{
		rec("1", "E1", "D1", models.ReasonSickness, "2024-01-30", "2024-02-01"),
		rec("2", "E2", "D1", models.ReasonVacation, "2024-01-31", "2024-01-31"),
		rec("3", "E3", "D1", models.ReasonOther, "2024-02-03", "2024-02-03"),
	}

	stats := e.DailyStatistics(records)
	require.Len(t, stats, 2)

	jan := stats[0]
	assert.Equal(t, "2024-01", jan.Month)
	assert.Equal(t, 2, jan.TotalDays)
	assert.Equal(t, 2, jan.DaysWithAbsence)
	assert.Equal(t, 2, jan.Max)
	assert.Equal(t, 1, jan.Min)
	assertDecimal(t, "1.5", jan.Mean)
	assertDecimal(t, "0.71", jan.StdDev)
	assertDecimal(t, "100", jan.Quota)

	feb := stats[1]
	assert.Equal(t, "2024-02", feb.Month)
	assert.Equal(t, 3, feb.TotalDays)
	assert.Equal(t, 2, feb.DaysWithAbsence)
	assert.Equal(t, 0, feb.Min)
	assertDecimal(t, "0.67", feb.Mean)
	assertDecimal(t, "0.58", feb.StdDev)
	assertDecimal(t, "66.7", feb.Quota)
}

func TestDailyStatisticsSingleDay(t *testing.T) {
	e := newTestEngine(t)
	stats := e.DailyStatistics([]models.AbsenceRecord{
		rec("1", "E1", "D1", models.ReasonSickness, "2024-05-05", "2024-05-05"),
	})
	require.Len(t, stats, 1)
	assertDecimal(t, "0", stats[0].StdDev)
	assertDecimal(t, "1", stats[0].Mean)

	assert.Empty(t, e.DailyStatistics(nil))
}

func TestDurations(t *testing.T) {
	records := []models.AbsenceRecord{
		rec("1", "E1", "D1", models.ReasonSickness, "2024-01-01", "2024-01-01"),
		rec("2", "E1", "D1", models.ReasonSickness, "2024-02-01", "2024-02-03"),
		rec("3", "E2", "D1", models.ReasonSickness, "2024-02-01", "2024-02-03"),
		rec("4", "E2", "D1", models.ReasonSickness, "2024-03-01", "2024-03-05"),
		rec("5", "E3", "D1", models.ReasonVacation, "2024-03-01", "2024-03-02"),
		rec("6", "E3", "D1", models.ReasonVacation, "2024-04-01", "2024-04-04"),
	}

	dist := Durations(records)

	assert.Equal(t, []DurationBin{{1, 1}, {2, 1}, {3, 2}, {4, 1}, {5, 1}}, dist.Histogram)
	require.Len(t, dist.ByReason, 2)
	assert.Equal(t, models.ReasonSickness, dist.ByReason[0].Reason)
	assert.Equal(t, 1, dist.ByReason[0].Min)
	assert.Equal(t, 5, dist.ByReason[0].Max)
	assertDecimal(t, "3", dist.ByReason[0].Median)
	assertDecimal(t, "3", dist.ByReason[1].Median)
}
